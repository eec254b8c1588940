package chat

import "errors"

// Sentinel errors for the request admission and lookup phases. The HTTP
// layer maps these onto status codes; anything else is an internal error.
var (
	// ErrUnauthorized indicates the request carries no caller identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the caller exceeded their request budget.
	ErrRateLimited = errors.New("rate limited")

	// ErrNotFound indicates the companion id is unknown.
	ErrNotFound = errors.New("companion not found")

	// ErrGeneration indicates the model call failed or timed out.
	ErrGeneration = errors.New("generation failed")
)
