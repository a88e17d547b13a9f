package auth

import "fmt"

var (
	ErrInvalidToken         = fmt.Errorf("invalid token")
	ErrInvalidSigningMethod = fmt.Errorf("invalid signing method")
	ErrUnknownRole          = fmt.Errorf("unknown role")
	ErrMissingSubject       = fmt.Errorf("missing subject")
)
