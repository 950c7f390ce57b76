package errx

// Type categorizes an error so transport layers can map it to a response.
type Type string

const (
	// TypeInternal is an unexpected failure inside this service
	TypeInternal Type = "INTERNAL"

	// TypeValidation is a rejected input
	TypeValidation Type = "VALIDATION"

	// TypeAuthorization is a failed authentication or permission check
	TypeAuthorization Type = "AUTHORIZATION"

	// TypeNotFound is a missing resource
	TypeNotFound Type = "NOT_FOUND"

	// TypeConflict is a resource state conflict
	TypeConflict Type = "CONFLICT"

	// TypeBusiness is a domain rule violation
	TypeBusiness Type = "BUSINESS"

	// TypeExternal is a failure in a downstream dependency
	TypeExternal Type = "EXTERNAL"
)

// String returns the string representation of the error type
func (t Type) String() string {
	return string(t)
}
