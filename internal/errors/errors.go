package errors

import "errors"

// Client errors.
var (
	ErrMissingToken        = errors.New("no authentication token received")
	ErrUnsupportedProvider = errors.New("unsupported OAuth provider")
	ErrNotAuthenticated    = errors.New("not signed in")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrMalformedUser       = errors.New("malformed user payload")
)

// Server/transport errors.
var (
	ErrAPIRequest  = errors.New("API request failed")
	ErrAPIResponse = errors.New("unexpected API response")
)
