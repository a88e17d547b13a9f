package service

import "github.com/pkg/errors"

type ErrorCode string

const (
	// ErrorCodeValidation covers malformed input and duplicate submissions.
	ErrorCodeValidation ErrorCode = "VALIDATION"
	// ErrorCodeState is an illegal transition on a bid or package.
	ErrorCodeState ErrorCode = "STATE"
	// ErrorCodeConflict is a lost race, e.g. a package awarded concurrently.
	ErrorCodeConflict     ErrorCode = "CONFLICT"
	ErrorCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrorCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrorCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrorCodeInvalidBody  ErrorCode = "INVALID_BODY"
	ErrorCodeUnspecified  ErrorCode = "UNSPECIFIED"
)

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func (e *Error) Error() string {
	return e.Message
}

// asError extracts the service error carried by err. Errors that did not
// originate in a service, such as a failed commit, become UNSPECIFIED.
func asError(err error) *Error {
	if err == nil {
		return nil
	}
	var res *Error
	if errors.As(err, &res) {
		return res
	}
	return NewError(ErrorCodeUnspecified, "internal error")
}
