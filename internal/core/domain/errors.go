package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrSyncInProgress indicates a sync is already running
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrInvalidCredentials indicates wrong username/password combination
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidProvider indicates an unknown OCR or LLM provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates an upstream service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrAuthentication indicates an upstream provider rejected our credentials.
	// Retrying will not help.
	ErrAuthentication = errors.New("upstream authentication failed")

	// ErrRateLimited indicates an upstream provider throttled the request
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrMalformedResponse indicates an upstream reply could not be decoded
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrUnsupportedDocument indicates a file too large or of a type OCR cannot read
	ErrUnsupportedDocument = errors.New("unsupported document")

	// ErrJobNotFound indicates no schedule is registered under the name
	ErrJobNotFound = errors.New("job not found")
)
