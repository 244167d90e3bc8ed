package domain

import "errors"

var (
	// ErrMissingSecret is a configuration error: no signing secret is set.
	ErrMissingSecret = errors.New("missing pixel jwt secret")

	// ErrInvalidToken covers malformed, tampered and expired tokens.
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidEvent  = errors.New("invalid event name")
	ErrUnknownAction = errors.New("unknown action")

	// ErrPersistence wraps adapter failures.
	ErrPersistence = errors.New("persistence failed")

	// ErrMissingEmail is returned by email-keyed stores for subjects they
	// cannot key.
	ErrMissingEmail = errors.New("subject has no email")
)
