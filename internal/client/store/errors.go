package store

import "errors"

// Store errors
var (
	// ErrUnknownMutation indicates that no mutation is registered under the name
	ErrUnknownMutation = errors.New("unknown mutation")

	// ErrInvalidPayload indicates that a mutation payload has an unexpected type
	ErrInvalidPayload = errors.New("invalid mutation payload")

	// ErrUnknownModel indicates that the model is not in the registry
	ErrUnknownModel = errors.New("unknown model")
)
