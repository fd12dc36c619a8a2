package services

import "errors"

var (
	// ErrInvalidInput marks malformed or missing request fields; the caller
	// may resubmit.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateIdentity is returned when a username or email is taken.
	ErrDuplicateIdentity = errors.New("identity already exists")

	// ErrInvalidCredentials is returned on login failure. It deliberately
	// does not say whether the identifier or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrForbidden is returned when an authenticated user acts on a
	// resource they do not own.
	ErrForbidden = errors.New("forbidden")
)
