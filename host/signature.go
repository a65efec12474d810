package host

import (
	"regexp"
	"strconv"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/hostbridge/errors"
)

// Param is a named parameter of a Signature.
type Param struct {
	Type wit.Type
	Name string
}

// Signature describes the argument and result types of a callable using
// WIT types. Results describe the value a token resolves with.
type Signature struct {
	Params  []Param
	Results []wit.Type
}

// Func builds an unnamed-parameter signature.
func Func(params ...wit.Type) *Signature {
	s := &Signature{}
	for i, p := range params {
		s.Params = append(s.Params, Param{Name: paramName(i), Type: p})
	}
	return s
}

// Returns sets the result types and returns s.
func (s *Signature) Returns(results ...wit.Type) *Signature {
	s.Results = results
	return s
}

// ParamTypes returns the parameter types in order.
func (s *Signature) ParamTypes() []wit.Type {
	types := make([]wit.Type, len(s.Params))
	for i, p := range s.Params {
		types[i] = p.Type
	}
	return types
}

// String renders s in WIT function syntax.
func (s *Signature) String() string {
	if s == nil {
		return "func(..)"
	}
	var b strings.Builder
	b.WriteString("func(")
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(TypeString(p.Type))
	}
	b.WriteByte(')')
	switch len(s.Results) {
	case 0:
	case 1:
		b.WriteString(" -> ")
		b.WriteString(TypeString(s.Results[0]))
	default:
		b.WriteString(" -> (")
		for i, r := range s.Results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(TypeString(r))
		}
		b.WriteByte(')')
	}
	return b.String()
}

// Equal reports whether s and o have the same parameter and result types.
// Parameter names are not compared.
func (s *Signature) Equal(o *Signature) bool {
	if s == nil || o == nil {
		return s == o
	}
	if len(s.Params) != len(o.Params) || len(s.Results) != len(o.Results) {
		return false
	}
	for i := range s.Params {
		if TypeString(s.Params[i].Type) != TypeString(o.Params[i].Type) {
			return false
		}
	}
	for i := range s.Results {
		if TypeString(s.Results[i]) != TypeString(o.Results[i]) {
			return false
		}
	}
	return true
}

// Match checks a declared signature against an expectation. A nil
// expectation accepts anything.
func Match(name string, expect, declared *Signature) error {
	if expect == nil {
		return nil
	}
	if declared == nil || !expect.Equal(declared) {
		return errors.SignatureMismatch(name, expect.String(), declared.String())
	}
	return nil
}

var signaturePattern = regexp.MustCompile(`^\s*(?:([a-zA-Z_][a-zA-Z0-9_-]*)\s*:\s*)?func\s*\(([^)]*)\)(?:\s*->\s*([^;]+))?\s*;?\s*$`)

// ParseSignature parses "name: func(a: s32, b: string) -> s32". The name
// prefix and parameter names are optional. A parenthesised result list
// yields several results.
func ParseSignature(text string) (string, *Signature, error) {
	match := signaturePattern.FindStringSubmatch(text)
	if match == nil {
		return "", nil, errors.InvalidInput(errors.PhaseParse, "not a function signature: "+text)
	}
	name := match[1]
	sig := &Signature{}

	if params := strings.TrimSpace(match[2]); params != "" {
		for i, p := range splitTopLevel(params) {
			pname, typStr := paramName(i), p
			if idx := strings.Index(p, ":"); idx != -1 {
				pname = strings.TrimSpace(p[:idx])
				typStr = p[idx+1:]
			}
			t, err := ParseType(typStr)
			if err != nil {
				return "", nil, err
			}
			sig.Params = append(sig.Params, Param{Name: pname, Type: t})
		}
	}

	result := strings.TrimSpace(match[3])
	if result == "" || result == "()" {
		return name, sig, nil
	}
	if strings.HasPrefix(result, "(") && strings.HasSuffix(result, ")") {
		for _, part := range splitTopLevel(result[1 : len(result)-1]) {
			t, err := ParseType(part)
			if err != nil {
				return "", nil, err
			}
			sig.Results = append(sig.Results, t)
		}
		return name, sig, nil
	}
	t, err := ParseType(result)
	if err != nil {
		return "", nil, err
	}
	sig.Results = []wit.Type{t}
	return name, sig, nil
}

// MustSignature is ParseSignature for package-level declarations. It panics
// on malformed text.
func MustSignature(text string) *Signature {
	_, sig, err := ParseSignature(text)
	if err != nil {
		panic(err)
	}
	return sig
}

func paramName(i int) string {
	return "p" + strconv.Itoa(i)
}

// splitTopLevel splits on commas outside angle brackets and parentheses.
func splitTopLevel(s string) []string {
	var parts []string
	var current strings.Builder
	depth := 0

	for _, ch := range s {
		switch ch {
		case '<', '(':
			depth++
		case '>', ')':
			depth--
		case ',':
			if depth == 0 {
				if str := strings.TrimSpace(current.String()); str != "" {
					parts = append(parts, str)
				}
				current.Reset()
				continue
			}
		}
		current.WriteRune(ch)
	}

	if str := strings.TrimSpace(current.String()); str != "" {
		parts = append(parts, str)
	}
	return parts
}

// CheckArgs validates normalized arguments against s before they enter the
// host. A mismatch is an invocation error with a type-mismatch cause. A nil
// signature accepts anything.
func (s *Signature) CheckArgs(name string, args []any) error {
	if s == nil {
		return nil
	}
	if len(args) != len(s.Params) {
		return errors.Invocation(name, errors.New(errors.PhaseInvoke, errors.KindTypeMismatch).
			Detail("expected %d arguments, got %d", len(s.Params), len(args)).
			Build())
	}
	for i, p := range s.Params {
		if err := Check(args[i], p.Type, p.Name); err != nil {
			return errors.Invocation(name, err)
		}
	}
	return nil
}

// NormalizeArgs applies Normalize to every argument.
func NormalizeArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = Normalize(a)
	}
	return out
}
