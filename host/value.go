package host

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/hostbridge/errors"
)

// typeName returns "nil" for nil values.
func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}

var baseTypes = map[reflect.Kind]reflect.Type{
	reflect.Bool:    reflect.TypeOf(false),
	reflect.Int:     reflect.TypeOf(int(0)),
	reflect.Int8:    reflect.TypeOf(int8(0)),
	reflect.Int16:   reflect.TypeOf(int16(0)),
	reflect.Int32:   reflect.TypeOf(int32(0)),
	reflect.Int64:   reflect.TypeOf(int64(0)),
	reflect.Uint:    reflect.TypeOf(uint(0)),
	reflect.Uint8:   reflect.TypeOf(uint8(0)),
	reflect.Uint16:  reflect.TypeOf(uint16(0)),
	reflect.Uint32:  reflect.TypeOf(uint32(0)),
	reflect.Uint64:  reflect.TypeOf(uint64(0)),
	reflect.Float32: reflect.TypeOf(float32(0)),
	reflect.Float64: reflect.TypeOf(float64(0)),
	reflect.String:  reflect.TypeOf(""),
}

// Normalize turns an arbitrary Go value into the host value model: structs
// and string-keyed maps become map[string]any, slices and arrays become
// []any, named scalar types become their predeclared base type and pointers
// are followed. Struct fields use their json tag name when present.
func Normalize(v any) any {
	if v == nil {
		return nil
	}
	return normalize(reflect.ValueOf(v))
}

func normalize(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Invalid:
		return nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem())
	case reflect.Struct:
		out := make(map[string]any, rv.NumField())
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() {
				continue
			}
			name, skip := fieldName(f)
			if skip {
				continue
			}
			out[name] = normalize(rv.Field(i))
		}
		return out
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i))
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return rv.Interface()
		}
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = normalize(iter.Value())
		}
		return out
	}

	if base, ok := baseTypes[rv.Kind()]; ok && rv.Type() != base {
		return rv.Convert(base).Interface()
	}
	return rv.Interface()
}

func fieldName(f reflect.StructField) (string, bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name, false
	}
	return f.Name, false
}

// Check reports whether a normalized value is acceptable for a parameter of
// WIT type t. Numbers are accepted in any Go numeric type as long as the
// value fits without loss.
func Check(value any, t wit.Type, path ...string) error {
	mismatch := func(detail string) error {
		return errors.New(errors.PhaseInvoke, errors.KindTypeMismatch).
			Path(path...).
			GoType(typeName(value)).
			WitType(TypeString(t)).
			Value(value).
			Detail("%s", detail).
			Build()
	}

	switch t := t.(type) {
	case nil:
		return nil
	case wit.Bool:
		if _, ok := value.(bool); !ok {
			return mismatch("expected bool")
		}
		return nil
	case wit.S8, wit.S16, wit.S32, wit.S64, wit.U8, wit.U16, wit.U32, wit.U64:
		target := witIntTypes[TypeString(t)]
		if value == nil {
			return mismatch("expected integer")
		}
		if _, err := convertInt(reflect.ValueOf(value), target); err != "" {
			return mismatch(err)
		}
		return nil
	case wit.F32, wit.F64:
		target := reflect.TypeOf(float64(0))
		if _, ok := t.(wit.F32); ok {
			target = reflect.TypeOf(float32(0))
		}
		if value == nil {
			return mismatch("expected number")
		}
		if _, err := convertFloat(reflect.ValueOf(value), target); err != "" {
			return mismatch(err)
		}
		return nil
	case wit.Char:
		switch v := value.(type) {
		case rune:
			if utf8.ValidRune(v) {
				return nil
			}
		case string:
			if utf8.RuneCountInString(v) == 1 {
				return nil
			}
		}
		return mismatch("expected a single unicode scalar value")
	case wit.String:
		if _, ok := value.(string); !ok {
			return mismatch("expected string")
		}
		return nil
	case *wit.TypeDef:
		return checkTypeDef(value, t, path, mismatch)
	}
	return nil
}

var witIntTypes = map[string]reflect.Type{
	"s8":  reflect.TypeOf(int8(0)),
	"s16": reflect.TypeOf(int16(0)),
	"s32": reflect.TypeOf(int32(0)),
	"s64": reflect.TypeOf(int64(0)),
	"u8":  reflect.TypeOf(uint8(0)),
	"u16": reflect.TypeOf(uint16(0)),
	"u32": reflect.TypeOf(uint32(0)),
	"u64": reflect.TypeOf(uint64(0)),
}

func checkTypeDef(value any, td *wit.TypeDef, path []string, mismatch func(string) error) error {
	switch k := td.Kind.(type) {
	case *wit.Option:
		if value == nil {
			return nil
		}
		return Check(value, k.Type, path...)
	case *wit.List:
		items, ok := value.([]any)
		if !ok {
			return mismatch("expected list")
		}
		for i, item := range items {
			if err := Check(item, k.Type, appendPath(path, strconv.Itoa(i))...); err != nil {
				return err
			}
		}
		return nil
	case *wit.Tuple:
		items, ok := value.([]any)
		if !ok || len(items) != len(k.Types) {
			return mismatch(fmt.Sprintf("expected tuple of %d", len(k.Types)))
		}
		for i, item := range items {
			if err := Check(item, k.Types[i], appendPath(path, strconv.Itoa(i))...); err != nil {
				return err
			}
		}
		return nil
	case *wit.Record:
		fields, ok := value.(map[string]any)
		if !ok {
			return mismatch("expected record")
		}
		for _, f := range k.Fields {
			v, present := fields[f.Name]
			if !present {
				if _, optional := optionOf(f.Type); optional {
					continue
				}
				return mismatch("missing field " + f.Name)
			}
			if err := Check(v, f.Type, appendPath(path, f.Name)...); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

func optionOf(t wit.Type) (*wit.Option, bool) {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		return nil, false
	}
	o, ok := td.Kind.(*wit.Option)
	return o, ok
}

func appendPath(path []string, elem string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, elem)
}

// ConvertTo converts a settled host value to T without loss.
func ConvertTo[T any](value any) (T, error) {
	var zero T
	target := reflect.TypeOf((*T)(nil)).Elem()
	rv, err := Convert(value, target)
	if err != nil {
		return zero, err
	}
	out, ok := rv.Interface().(T)
	if !ok {
		// nil into an interface type
		return zero, nil
	}
	return out, nil
}

// Convert converts a host value to target. Integers convert only when the
// value fits, floats convert to integers only when integral, and integers
// convert to floats only when exactly representable. Records convert to
// structs by json tag or field name.
func Convert(value any, target reflect.Type, path ...string) (reflect.Value, error) {
	return convert(value, target, path)
}

func convert(value any, target reflect.Type, path []string) (reflect.Value, error) {
	fail := func(detail string) (reflect.Value, error) {
		return reflect.Value{}, errors.Conversion(path, value, target.String(), detail)
	}

	if value == nil {
		switch target.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map:
			return reflect.Zero(target), nil
		}
		return fail("cannot convert nil")
	}

	rv := reflect.ValueOf(value)
	if rv.Type() == target {
		return rv, nil
	}
	if target.Kind() == reflect.Interface {
		if rv.Type().Implements(target) {
			out := reflect.New(target).Elem()
			out.Set(rv)
			return out, nil
		}
		return fail("does not implement " + target.String())
	}

	switch target.Kind() {
	case reflect.Bool:
		if rv.Kind() != reflect.Bool {
			return fail("expected bool, got " + typeName(value))
		}
		return rv.Convert(target), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		out, detail := convertInt(rv, target)
		if detail != "" {
			return fail(detail)
		}
		return out, nil
	case reflect.Float32, reflect.Float64:
		out, detail := convertFloat(rv, target)
		if detail != "" {
			return fail(detail)
		}
		return out, nil
	case reflect.String:
		if rv.Kind() != reflect.String {
			return fail("expected string, got " + typeName(value))
		}
		return rv.Convert(target), nil
	case reflect.Pointer:
		elem, err := convert(value, target.Elem(), path)
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(target.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	case reflect.Slice:
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return fail("expected list, got " + typeName(value))
		}
		out := reflect.MakeSlice(target, rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem, err := convert(rv.Index(i).Interface(), target.Elem(), appendPath(path, strconv.Itoa(i)))
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(elem)
		}
		return out, nil
	case reflect.Array:
		if (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) || rv.Len() != target.Len() {
			return fail(fmt.Sprintf("expected %d elements", target.Len()))
		}
		out := reflect.New(target).Elem()
		for i := 0; i < rv.Len(); i++ {
			elem, err := convert(rv.Index(i).Interface(), target.Elem(), appendPath(path, strconv.Itoa(i)))
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(elem)
		}
		return out, nil
	case reflect.Map:
		if target.Key().Kind() != reflect.String {
			return fail("map keys must be strings")
		}
		fields, ok := Normalize(value).(map[string]any)
		if !ok {
			return fail("expected record, got " + typeName(value))
		}
		out := reflect.MakeMapWithSize(target, len(fields))
		for k, v := range fields {
			elem, err := convert(v, target.Elem(), appendPath(path, k))
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(target.Key()), elem)
		}
		return out, nil
	case reflect.Struct:
		fields, ok := Normalize(value).(map[string]any)
		if !ok {
			return fail("expected record, got " + typeName(value))
		}
		return convertStruct(fields, target, path)
	}

	return fail("unsupported target type")
}

func convertStruct(fields map[string]any, target reflect.Type, path []string) (reflect.Value, error) {
	out := reflect.New(target).Elem()
	for i := 0; i < target.NumField(); i++ {
		f := target.Field(i)
		if !f.IsExported() {
			continue
		}
		name, skip := fieldName(f)
		if skip {
			continue
		}
		v, ok := fields[name]
		if !ok {
			v, ok = lookupFold(fields, name)
		}
		if !ok {
			continue
		}
		elem, err := convert(v, f.Type, appendPath(path, name))
		if err != nil {
			return reflect.Value{}, err
		}
		out.Field(i).Set(elem)
	}
	return out, nil
}

func lookupFold(fields map[string]any, name string) (any, bool) {
	for k, v := range fields {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// integer decomposes an integral numeric value into sign and magnitude.
func integer(rv reflect.Value) (neg bool, mag uint64, detail string) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n < 0 {
			return true, uint64(-(n + 1)) + 1, ""
		}
		return false, uint64(n), ""
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return false, rv.Uint(), ""
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return false, 0, fmt.Sprintf("%v is not an integer", f)
		}
		if f < -(1<<63) || f >= 1<<64 {
			return false, 0, fmt.Sprintf("%v overflows 64 bits", f)
		}
		if f < 0 {
			return true, uint64(-f), ""
		}
		return false, uint64(f), ""
	}
	return false, 0, "expected number, got " + rv.Type().String()
}

func convertInt(rv reflect.Value, target reflect.Type) (reflect.Value, string) {
	neg, mag, detail := integer(rv)
	if detail != "" {
		return reflect.Value{}, detail
	}
	bits := target.Bits()
	out := reflect.New(target).Elem()

	switch target.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		limit := uint64(1) << (bits - 1)
		if neg {
			if mag > limit {
				return reflect.Value{}, fmt.Sprintf("-%d overflows %s", mag, target)
			}
			out.SetInt(-int64(mag-1) - 1)
			return out, ""
		}
		if mag >= limit {
			return reflect.Value{}, fmt.Sprintf("%d overflows %s", mag, target)
		}
		out.SetInt(int64(mag))
		return out, ""
	default:
		if neg {
			return reflect.Value{}, fmt.Sprintf("-%d overflows %s", mag, target)
		}
		if bits < 64 && mag >= uint64(1)<<bits {
			return reflect.Value{}, fmt.Sprintf("%d overflows %s", mag, target)
		}
		out.SetUint(mag)
		return out, ""
	}
}

func convertFloat(rv reflect.Value, target reflect.Type) (reflect.Value, string) {
	out := reflect.New(target).Elem()
	exact := uint64(1) << 53
	if target.Kind() == reflect.Float32 {
		exact = 1 << 24
	}

	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if target.Kind() == reflect.Float32 && !math.IsNaN(f) && float64(float32(f)) != f {
			return reflect.Value{}, fmt.Sprintf("%v is not representable as float32", f)
		}
		out.SetFloat(f)
		return out, ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		neg, mag, _ := integer(rv)
		if mag > exact {
			return reflect.Value{}, fmt.Sprintf("%d is not exactly representable as %s", mag, target)
		}
		f := float64(mag)
		if neg {
			f = -f
		}
		out.SetFloat(f)
		return out, ""
	}
	return reflect.Value{}, "expected number, got " + rv.Type().String()
}
