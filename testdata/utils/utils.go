package utils

// Ptr returns a pointer to v; convenient for optional fields in tests.
func Ptr[T any](v T) *T {
	return &v
}
