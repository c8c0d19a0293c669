package zento

import (
	"database/sql"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// ErrSessionNotFound is returned when a bearer token does not resolve to a
// live anonymous session
var ErrSessionNotFound = errors.New("anonymous session not found")

// ErrIdentityNotFound is returned when an identity record does not exist
var ErrIdentityNotFound = errors.New("identity not found")

// ErrUnauthenticated is returned by the confirmation endpoints when there is
// no signed in account
var ErrUnauthenticated = goerrors.New("sign in required", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode("UNAUTHENTICATED")

// IsNotFound reports record not found errors from bun and go-repository-bun
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, sql.ErrNoRows) ||
		repository.IsRecordNotFound(err) ||
		errors.Is(err, ErrIdentityNotFound) ||
		errors.Is(err, ErrSessionNotFound)
}
