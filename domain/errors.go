package domain

import "errors"

// ErrInvalidInput marks a computation rejected because a required field was
// missing, zero or out of range. Callers match it with errors.Is.
var ErrInvalidInput = errors.New("invalid input")
