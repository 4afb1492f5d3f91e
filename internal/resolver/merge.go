package resolver

import "reflect"

// TextMergeSeparator joins both sides of a free-text field when local and
// remote each edited it. Neither side is ever silently discarded.
const TextMergeSeparator = "\n\n--- merged remote edit ---\n\n"

// Merge combines local and remote type-directedly:
//   - arrays: union seeded from local, appending any remote element not
//     already structurally present. Idempotent, never drops a unique remote
//     addition.
//   - objects: key-by-key; a key only in remote is adopted; a key in both
//     where local still equals base is replaced by remote; otherwise local
//     wins.
//   - free text: if one side is unchanged from base, the other side is taken
//     verbatim; if both changed, local and remote are concatenated with a
//     visible separator.
//   - any other scalar: local wins. This is a documented default, distinct
//     from the explicit keep_local strategy.
func Merge(base, local, remote any) any {
	if ls, ok := asSlice(local); ok {
		if rs, ok := asSlice(remote); ok {
			return mergeArrays(ls, rs)
		}
	}
	if lm, ok := asMap(local); ok {
		if rm, ok := asMap(remote); ok {
			bm, _ := asMap(base)
			return mergeObjects(bm, lm, rm)
		}
	}
	if lt, ok := local.(string); ok {
		if rt, ok := remote.(string); ok {
			return mergeText(base, lt, rt)
		}
	}
	return local
}

func mergeArrays(local, remote []any) []any {
	merged := make([]any, len(local))
	copy(merged, local)
	for _, e := range remote {
		if !contains(merged, e) {
			merged = append(merged, e)
		}
	}
	return merged
}

func mergeObjects(base, local, remote map[string]any) map[string]any {
	merged := make(map[string]any, len(local)+len(remote))
	for k, v := range local {
		merged[k] = v
	}
	for k, rv := range remote {
		lv, inLocal := local[k]
		if !inLocal {
			merged[k] = rv
			continue
		}
		// Local untouched since base means the remote edit is the only one.
		if Equal(base[k], lv) {
			merged[k] = rv
		}
	}
	return merged
}

func mergeText(base any, local, remote string) any {
	switch {
	case Equal(base, local):
		return remote
	case Equal(base, remote):
		return local
	case Equal(local, remote):
		return local
	default:
		return local + TextMergeSeparator + remote
	}
}

func asSlice(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func asMap(v any) (map[string]any, bool) {
	if v == nil {
		return nil, false
	}
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}
