package common

// Coalesce picks the first of values that differs from the zero value of T, so the
// caller can list overrides ahead of fallbacks. With no such value it returns zero.
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}
