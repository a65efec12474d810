package memory

import (
	"reflect"

	"github.com/wippyai/hostbridge/docstore"
)

// cloneDoc copies doc so that no map or slice is shared with the caller.
func cloneDoc(doc docstore.Document) docstore.Document {
	if doc == nil {
		return nil
	}
	out := make(docstore.Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case nil, string, bool, float64, int, int32, int64:
		return v
	case map[string]any:
		return cloneDoc(v)
	case []any:
		if v == nil {
			return v
		}
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	}
	return cloneReflect(reflect.ValueOf(v)).Interface()
}

// cloneReflect handles typed maps and slices such as []string or
// map[string]int that come from Go callers.
func cloneReflect(rv reflect.Value) reflect.Value {
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return rv
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneElem(iter.Value(), rv.Type().Elem()))
		}
		return out
	case reflect.Slice:
		if rv.IsNil() {
			return rv
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(cloneElem(rv.Index(i), rv.Type().Elem()))
		}
		return out
	}
	return rv
}

func cloneElem(rv reflect.Value, typ reflect.Type) reflect.Value {
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Zero(typ)
		}
		return reflect.ValueOf(cloneValue(rv.Elem().Interface()))
	}
	return cloneReflect(rv)
}
