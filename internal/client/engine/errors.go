package engine

import "errors"

// Engine errors
var (
	// ErrUnknownModel indicates that the payload type names no registered model
	ErrUnknownModel = errors.New("unknown model")

	// ErrMissingID indicates that an operation addressing one entity has no id
	ErrMissingID = errors.New("entity id is required")

	// ErrUnexpectedData indicates that the response data is neither an object nor an array of objects
	ErrUnexpectedData = errors.New("unexpected response data")
)
