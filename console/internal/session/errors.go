package session

import "errors"

var (
	// ErrUnresolved means Initialize has not finished. Guards must not treat
	// it as either signed in or signed out.
	ErrUnresolved       = errors.New("session is still being resolved")
	ErrNotAuthenticated = errors.New("not logged in")
	ErrForbidden        = errors.New("admin role required")
)

// AuthError reports rejected credentials or a failed login call. Msg is the
// backend's message, suitable for showing to the user as is.
type AuthError struct {
	Msg string
	Err error
}

func (e *AuthError) Error() string {
	return e.Msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func IsAuth(err error) bool {
	var a *AuthError
	return errors.As(err, &a)
}
