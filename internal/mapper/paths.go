package mapper

import "strings"

// lookupPath reads a dot-separated path out of nested maps. The second return
// is false when any segment is missing or not a map.
func lookupPath(src map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	current := any(src)
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// setPath writes a value at a dot-separated path, creating intermediate maps
// as needed. An intermediate segment that already holds a non-map value is
// overwritten.
func setPath(dst map[string]any, path string, v any) {
	segments := strings.Split(path, ".")
	current := dst
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[seg] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = v
}
