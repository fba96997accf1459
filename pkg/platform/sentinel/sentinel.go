package sentinel

import "errors"

// Store-level errors. Stores return these (optionally wrapped) so services
// translate them into domain errors exactly once.
var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)
