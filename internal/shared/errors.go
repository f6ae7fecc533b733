package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicate indicates an identifier that is already taken.
	ErrDuplicate = errors.New("identifier already in use")
)

// UserSafeMessage maps internal errors to a message safe for API clients.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "requested resource does not exist"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid credentials"
	case errors.Is(err, ErrDuplicate):
		return "identifier already in use"
	default:
		return "internal error"
	}
}
