package gen

// CopySlice returns a shallow copy of src. A nil input produces an empty, non-nil slice.
func CopySlice[T any](src []T) []T {
	dst := make([]T, len(src))
	copy(dst, src)
	return dst
}

// DeleteFirst removes the first occurrence of v from s, preserving order.
func DeleteFirst[T comparable](s []T, v T) []T {
	for i := range s {
		if s[i] == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
