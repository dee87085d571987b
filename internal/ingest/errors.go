package ingest

import "errors"

// ErrNotFound is returned when the requested upload does not exist.
var ErrNotFound = errors.New("upload not found")

// ValidationError reports bad or missing input. It is raised before any side
// effect happens.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// StorageError wraps a blob store failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage " + e.Op + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

// PersistenceError wraps a row store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return "persistence " + e.Op + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }
