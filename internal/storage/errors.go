package storage

import "errors"

// Common storage errors
var (
	// ErrRecordNotFound indicates that record was not found
	ErrRecordNotFound = errors.New("record not found")

	// ErrHistoryNotFound indicates that history entry was not found
	ErrHistoryNotFound = errors.New("history entry not found")

	// ErrAlreadyResolved indicates that history entry already has a resolution
	ErrAlreadyResolved = errors.New("conflict already resolved")

	// ErrClockRegression indicates that the stored record is causally newer
	// than or concurrent with the record being saved
	ErrClockRegression = errors.New("record clock does not dominate stored clock")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
