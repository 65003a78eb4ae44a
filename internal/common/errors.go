// Package common defines shared constants and sentinel errors used across
// the client layers of FridgeKeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Validation errors for local mutations.
	ErrorValidation      = errors.New("validation error")
	ErrorParentNotFound  = errors.New("parent item not found")
	ErrorIncorrectExpiry = errors.New("incorrect expiry date, expected yyyy-MM-dd")
)
