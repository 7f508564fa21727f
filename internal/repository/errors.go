package repository

import "errors"

// ErrVersionConflict is returned when an optimistic-concurrency update finds
// the row at a different version than the caller read.
var ErrVersionConflict = errors.New("version conflict")
