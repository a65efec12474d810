package wasmhost

import (
	"reflect"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/host"
)

// coreType maps a scalar WIT type onto the core value type carrying it.
func coreType(t wit.Type) (api.ValueType, bool) {
	switch t.(type) {
	case wit.Bool, wit.S8, wit.S16, wit.S32, wit.U8, wit.U16, wit.U32, wit.Char:
		return api.ValueTypeI32, true
	case wit.S64, wit.U64:
		return api.ValueTypeI64, true
	case wit.F32:
		return api.ValueTypeF32, true
	case wit.F64:
		return api.ValueTypeF64, true
	}
	return 0, false
}

// witType is the default WIT view of a core value type.
func witType(vt api.ValueType) wit.Type {
	switch vt {
	case api.ValueTypeI64:
		return wit.S64{}
	case api.ValueTypeF32:
		return wit.F32{}
	case api.ValueTypeF64:
		return wit.F64{}
	default:
		return wit.S32{}
	}
}

// coreSignature derives a signature from an export's core types.
func coreSignature(def api.FunctionDefinition) *host.Signature {
	params := make([]wit.Type, len(def.ParamTypes()))
	for i, vt := range def.ParamTypes() {
		params[i] = witType(vt)
	}
	results := make([]wit.Type, len(def.ResultTypes()))
	for i, vt := range def.ResultTypes() {
		results[i] = witType(vt)
	}
	return host.Func(params...).Returns(results...)
}

// checkLowering verifies that every type of sig lowers onto def's core types.
func checkLowering(name string, sig *host.Signature, def api.FunctionDefinition) error {
	mismatch := func(path string, t wit.Type, detail string) error {
		return errors.New(errors.PhaseResolve, errors.KindTypeMismatch).
			Path(name, path).
			WitType(host.TypeString(t)).
			Detail("%s", detail).
			Build()
	}

	core := def.ParamTypes()
	if len(sig.Params) != len(core) {
		return errors.SignatureMismatch(name, sig.String(), coreSignature(def).String())
	}
	for i, p := range sig.Params {
		vt, ok := coreType(p.Type)
		if !ok {
			return mismatch(p.Name, p.Type, "not a core scalar type")
		}
		if vt != core[i] {
			return mismatch(p.Name, p.Type, "lowers to "+api.ValueTypeName(vt)+", export takes "+api.ValueTypeName(core[i]))
		}
	}

	core = def.ResultTypes()
	if len(sig.Results) != len(core) {
		return errors.SignatureMismatch(name, sig.String(), coreSignature(def).String())
	}
	for i, r := range sig.Results {
		vt, ok := coreType(r)
		if !ok {
			return mismatch("result", r, "not a core scalar type")
		}
		if vt != core[i] {
			return mismatch("result", r, "lowers to "+api.ValueTypeName(vt)+", export returns "+api.ValueTypeName(core[i]))
		}
	}
	return nil
}

var (
	int32Type   = reflect.TypeOf(int32(0))
	uint32Type  = reflect.TypeOf(uint32(0))
	int64Type   = reflect.TypeOf(int64(0))
	uint64Type  = reflect.TypeOf(uint64(0))
	float32Type = reflect.TypeOf(float32(0))
	float64Type = reflect.TypeOf(float64(0))
)

// lower encodes a checked argument onto the wasm stack.
func lower(v any, t wit.Type, path string) (uint64, error) {
	switch t.(type) {
	case wit.Bool:
		if b, _ := v.(bool); b {
			return 1, nil
		}
		return 0, nil
	case wit.Char:
		if s, ok := v.(string); ok {
			for _, r := range s {
				return api.EncodeU32(uint32(r)), nil
			}
		}
	}

	switch vt, _ := coreType(t); vt {
	case api.ValueTypeI32:
		if isUnsigned(t) {
			rv, err := host.Convert(v, uint32Type, path)
			if err != nil {
				return 0, err
			}
			return api.EncodeU32(uint32(rv.Uint())), nil
		}
		rv, err := host.Convert(v, int32Type, path)
		if err != nil {
			return 0, err
		}
		return api.EncodeI32(int32(rv.Int())), nil
	case api.ValueTypeI64:
		if isUnsigned(t) {
			rv, err := host.Convert(v, uint64Type, path)
			if err != nil {
				return 0, err
			}
			return rv.Uint(), nil
		}
		rv, err := host.Convert(v, int64Type, path)
		if err != nil {
			return 0, err
		}
		return api.EncodeI64(rv.Int()), nil
	case api.ValueTypeF32:
		rv, err := host.Convert(v, float32Type, path)
		if err != nil {
			return 0, err
		}
		return api.EncodeF32(float32(rv.Float())), nil
	default:
		rv, err := host.Convert(v, float64Type, path)
		if err != nil {
			return 0, err
		}
		return api.EncodeF64(rv.Float()), nil
	}
}

func isUnsigned(t wit.Type) bool {
	switch t.(type) {
	case wit.U8, wit.U16, wit.U32, wit.U64, wit.Char:
		return true
	}
	return false
}

// lift decodes a raw result according to its WIT type.
func lift(raw uint64, t wit.Type) any {
	switch t.(type) {
	case wit.Bool:
		return uint32(raw) != 0
	case wit.S8:
		return int8(api.DecodeI32(raw))
	case wit.S16:
		return int16(api.DecodeI32(raw))
	case wit.S32:
		return api.DecodeI32(raw)
	case wit.U8:
		return uint8(api.DecodeU32(raw))
	case wit.U16:
		return uint16(api.DecodeU32(raw))
	case wit.U32:
		return api.DecodeU32(raw)
	case wit.Char:
		return rune(api.DecodeU32(raw))
	case wit.S64:
		return int64(raw)
	case wit.U64:
		return raw
	case wit.F32:
		return api.DecodeF32(raw)
	case wit.F64:
		return api.DecodeF64(raw)
	}
	return raw
}
