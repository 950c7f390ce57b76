// Package ptrx provides pointer helpers for optional fields.
package ptrx

import "time"

// Ptr returns a pointer to the value passed in.
func Ptr[T any](v T) *T {
	return &v
}

// Value returns the value of the pointer passed in or the zero value if the pointer is nil.
func Value[T any](v *T) T {
	if v != nil {
		return *v
	}
	var zero T
	return zero
}

// ValueOr returns the value of the pointer passed in or the default value if the pointer is nil.
func ValueOr[T any](v *T, def T) T {
	if v != nil {
		return *v
	}
	return def
}

// IsNil checks if a pointer is nil.
func IsNil[T any](v *T) bool {
	return v == nil
}

// String returns a pointer value for the string value passed in.
func String(v string) *string {
	return &v
}

// StringValue returns the value of the string pointer passed in or empty string if the pointer is nil.
func StringValue(v *string) string {
	if v != nil {
		return *v
	}
	return ""
}

// Int returns a pointer value for the int value passed in.
func Int(v int) *int {
	return &v
}

// Float64 returns a pointer value for the float64 value passed in.
func Float64(v float64) *float64 {
	return &v
}

// Float64Value returns the value of the float64 pointer passed in or 0 if the pointer is nil.
func Float64Value(v *float64) float64 {
	if v != nil {
		return *v
	}
	return 0
}

// Time returns a pointer value for the time.Time value passed in.
func Time(v time.Time) *time.Time {
	return &v
}

// TimeValue returns the value of the time.Time pointer passed in or zero time if the pointer is nil.
func TimeValue(v *time.Time) time.Time {
	if v != nil {
		return *v
	}
	return time.Time{}
}
