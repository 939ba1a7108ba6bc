package collection

// IntersectBy returns the elements of the first list whose key appears in
// every other list. Order follows the first list and each key is kept once,
// represented by its first occurrence.
func IntersectBy[T any, K comparable](lists [][]T, key func(T) K) []T {
	if len(lists) == 0 {
		return nil
	}
	others := make([]map[K]struct{}, 0, len(lists)-1)
	for _, l := range lists[1:] {
		if len(l) == 0 {
			return []T{}
		}
		set := make(map[K]struct{}, len(l))
		for _, e := range l {
			set[key(e)] = struct{}{}
		}
		others = append(others, set)
	}
	out := make([]T, 0)
	seen := make(map[K]struct{})
	for _, e := range lists[0] {
		k := key(e)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if inAll(others, k) {
			out = append(out, e)
		}
	}
	return out
}

func inAll[K comparable](sets []map[K]struct{}, k K) bool {
	for _, s := range sets {
		if _, ok := s[k]; !ok {
			return false
		}
	}
	return true
}
