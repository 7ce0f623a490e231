package storage

import (
	"errors"
	"fmt"
)

// ErrCardNotFound is returned when a card is not found in the storage.
var ErrCardNotFound = errors.New("card not found")

// ErrCollectionNotFound is returned when a collection is not found in
// the storage.
var ErrCollectionNotFound = errors.New("collection not found")

// StorageError wraps a failure of the underlying record store (file
// I/O, SQL). Op names the operation that failed. Not-found conditions
// and validation failures are reported through their own error types,
// never through StorageError.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
