package utils

// Value dereferences v, returning the zero value for nil. Used for the
// optional fields of provider token responses.
func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}
