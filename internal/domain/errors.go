package domain

import "errors"

var ErrNotFound = errors.New("not found")
var ErrAlreadyExists = errors.New("already exists")

// ErrIdentifierOverflow is returned when no transfer id is left to allocate.
var ErrIdentifierOverflow = errors.New("transfer id space exhausted")
