package storage

import "fmt"

// ErrNotFound is returned when a vector or document doesn't exist in the store.
type ErrNotFound struct {
	Kind string
	ID   string
}

func (e ErrNotFound) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "record"
	}

	if e.ID == "" {
		return kind + " not found"
	}

	return fmt.Sprintf("%s not found: %s", kind, e.ID)
}
