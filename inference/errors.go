package inference

import "errors"

var (
	// ErrModelUnavailable is returned when a tokenizer/model pair cannot be
	// resolved, fetched or constructed.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrInvalidCredential marks load failures caused by the hub rejecting a
	// supplied access token. Such errors also match ErrModelUnavailable.
	ErrInvalidCredential = errors.New("invalid credential")
)
