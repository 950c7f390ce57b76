package kernel

// AuthContext is the authentication context injected into each request
type AuthContext struct {
	UserID UserID `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// IsValid checks whether the AuthContext carries an authenticated user
func (ac *AuthContext) IsValid() bool {
	return !ac.UserID.IsEmpty()
}

type ContextKey string

const (
	// AuthContextKey is the key under which AuthContext is stored
	AuthContextKey ContextKey = "auth_context"

	// UserContextKey is the key under which the UserID is stored
	UserContextKey ContextKey = "user_id"

	// RequestIDKey is the key under which the request ID is stored
	RequestIDKey ContextKey = "request_id"
)
