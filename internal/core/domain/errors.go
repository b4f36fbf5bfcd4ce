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

	// ErrForbidden indicates the user lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidIdentity indicates an entity identity string that does not match the grammar
	ErrInvalidIdentity = errors.New("invalid entity identity")

	// ErrUnknownGroup indicates a group token outside the configured registry
	ErrUnknownGroup = errors.New("unknown group")

	// ErrVersionConflict indicates the stored version differs from the asserted one
	ErrVersionConflict = errors.New("version conflict")

	// ErrUnreadableDocument indicates the document container could not be decoded at all
	ErrUnreadableDocument = errors.New("unreadable document")

	// ErrImportFailed indicates the import transaction was rolled back
	ErrImportFailed = errors.New("import failed")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrSessionNotFound indicates the session does not exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidCredentials indicates wrong email/password combination
	ErrInvalidCredentials = errors.New("invalid credentials")
)
