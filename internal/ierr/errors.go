package ierr

import "errors"

var (
	ErrValidation     = errors.New("validation failed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource conflict")
	ErrInternalServer = errors.New("internal server error")

	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrKeyNotFound        = errors.New("key not found")
	ErrTokenCollision     = errors.New("generated token collided with an existing key")
	ErrInvalidCredentials = errors.New("invalid admin token")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenInvalidClaims = errors.New("token contains invalid claims type")
)

// IsValidation reports whether err belongs to the bad-input family.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidParameter)
}

// IsNotFound reports whether err means the requested resource is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrKeyNotFound)
}
