package resolver

import (
	"reflect"
	"strings"
)

// Equal reports whether two field values are semantically equal: deep equality
// for composites, case- and whitespace-insensitive comparison for strings,
// cross-type numeric equality for scalars. Values typically arrive from JSON,
// so []string vs []any and int vs float64 mismatches must not matter.
func Equal(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

// normalize rewrites a value into a canonical form: numbers to float64,
// strings lower-cased with collapsed whitespace, slices to []any and maps to
// map[string]any with normalized elements.
func normalize(v any) any {
	if v == nil {
		return nil
	}

	switch t := v.(type) {
	case string:
		return strings.ToLower(strings.Join(strings.Fields(t), " "))
	case bool:
		return t
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	case float64:
		return t
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, ok := iter.Key().Interface().(string)
			if !ok {
				key = iter.Key().String()
			}
			out[key] = normalize(iter.Value().Interface())
		}
		return out
	}
	return v
}

// contains reports whether list holds an element semantically equal to v.
func contains(list []any, v any) bool {
	for _, e := range list {
		if Equal(e, v) {
			return true
		}
	}
	return false
}
