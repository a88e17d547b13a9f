package service

import "github.com/yakoovad/council-tenders/internal/auth"

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// authorize checks the role capability once at the service boundary.
func authorize(actor auth.Actor, c auth.Capability) *Error {
	if !actor.Can(c) {
		return NewError(ErrorCodeForbidden, "operation not permitted for this role")
	}
	return nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
