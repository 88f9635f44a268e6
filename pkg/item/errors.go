package item

import "errors"

var (
	// ErrNotFound is returned when no item is stored under the requested id so HTTP handlers can respond with 404.
	ErrNotFound = errors.New("item not found")

	// ErrBusy is returned when the service goroutine does not pick up or answer a call in time.
	ErrBusy = errors.New("item store is busy")

	// ErrClosed is returned for calls made after Close.
	ErrClosed = errors.New("item service is closed")
)
