package host

import (
	"fmt"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/hostbridge/errors"
)

var primitives = map[string]wit.Type{
	"bool":   wit.Bool{},
	"s8":     wit.S8{},
	"s16":    wit.S16{},
	"s32":    wit.S32{},
	"s64":    wit.S64{},
	"u8":     wit.U8{},
	"u16":    wit.U16{},
	"u32":    wit.U32{},
	"u64":    wit.U64{},
	"f32":    wit.F32{},
	"f64":    wit.F64{},
	"char":   wit.Char{},
	"string": wit.String{},
}

// ParseType parses a WIT type expression. Primitives and the list, option,
// result and tuple constructors are supported.
func ParseType(s string) (wit.Type, error) {
	s = strings.TrimSpace(s)
	if t, ok := primitives[s]; ok {
		return t, nil
	}
	if s == "result" {
		return &wit.TypeDef{Kind: &wit.Result{}}, nil
	}

	open := strings.IndexByte(s, '<')
	if open <= 0 || !strings.HasSuffix(s, ">") {
		return nil, errors.ParseFailed("type", fmt.Errorf("unknown type %q", s))
	}
	ctor := strings.TrimSpace(s[:open])
	args := splitTopLevel(s[open+1 : len(s)-1])

	parseArgs := func() ([]wit.Type, error) {
		types := make([]wit.Type, len(args))
		for i, a := range args {
			if a == "_" {
				continue
			}
			t, err := ParseType(a)
			if err != nil {
				return nil, err
			}
			types[i] = t
		}
		return types, nil
	}

	types, err := parseArgs()
	if err != nil {
		return nil, err
	}

	switch ctor {
	case "list":
		if len(types) != 1 || types[0] == nil {
			return nil, errors.ParseFailed("type", fmt.Errorf("list takes one type: %q", s))
		}
		return &wit.TypeDef{Kind: &wit.List{Type: types[0]}}, nil
	case "option":
		if len(types) != 1 || types[0] == nil {
			return nil, errors.ParseFailed("type", fmt.Errorf("option takes one type: %q", s))
		}
		return &wit.TypeDef{Kind: &wit.Option{Type: types[0]}}, nil
	case "result":
		switch len(types) {
		case 1:
			return &wit.TypeDef{Kind: &wit.Result{OK: types[0]}}, nil
		case 2:
			return &wit.TypeDef{Kind: &wit.Result{OK: types[0], Err: types[1]}}, nil
		}
		return nil, errors.ParseFailed("type", fmt.Errorf("result takes one or two types: %q", s))
	case "tuple":
		if len(types) == 0 {
			return nil, errors.ParseFailed("type", fmt.Errorf("empty tuple: %q", s))
		}
		return &wit.TypeDef{Kind: &wit.Tuple{Types: types}}, nil
	}
	return nil, errors.ParseFailed("type", fmt.Errorf("unknown type constructor %q", ctor))
}

// Record builds an anonymous WIT record type.
func Record(fields ...wit.Field) wit.Type {
	return &wit.TypeDef{Kind: &wit.Record{Fields: fields}}
}

// List builds a WIT list type.
func List(elem wit.Type) wit.Type {
	return &wit.TypeDef{Kind: &wit.List{Type: elem}}
}

// TypeString renders t in WIT syntax. Records render their fields inline.
func TypeString(t wit.Type) string {
	switch t := t.(type) {
	case nil:
		return "_"
	case wit.Bool:
		return "bool"
	case wit.S8:
		return "s8"
	case wit.S16:
		return "s16"
	case wit.S32:
		return "s32"
	case wit.S64:
		return "s64"
	case wit.U8:
		return "u8"
	case wit.U16:
		return "u16"
	case wit.U32:
		return "u32"
	case wit.U64:
		return "u64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		return typeDefString(t)
	}
	return fmt.Sprintf("%T", t)
}

func typeDefString(td *wit.TypeDef) string {
	switch k := td.Kind.(type) {
	case *wit.List:
		return "list<" + TypeString(k.Type) + ">"
	case *wit.Option:
		return "option<" + TypeString(k.Type) + ">"
	case *wit.Result:
		if k.OK == nil && k.Err == nil {
			return "result"
		}
		if k.Err == nil {
			return "result<" + TypeString(k.OK) + ">"
		}
		return "result<" + TypeString(k.OK) + ", " + TypeString(k.Err) + ">"
	case *wit.Tuple:
		parts := make([]string, len(k.Types))
		for i, e := range k.Types {
			parts[i] = TypeString(e)
		}
		return "tuple<" + strings.Join(parts, ", ") + ">"
	case *wit.Record:
		parts := make([]string, len(k.Fields))
		for i, f := range k.Fields {
			parts[i] = f.Name + ": " + TypeString(f.Type)
		}
		return "record{" + strings.Join(parts, ", ") + "}"
	case wit.Type:
		return TypeString(k)
	}
	return fmt.Sprintf("%T", td.Kind)
}
