package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/vecshard/pkg/storage"
)

// ErrInjectedUpdate is returned by a FlakyDriver once its updates run out.
var ErrInjectedUpdate = errors.New("injected update failure")

// FlakyDriver wraps a storage.Driver and fails updates after a budget of
// successful ones is spent.
type FlakyDriver struct {
	storage.Driver

	mu        sync.Mutex
	remaining int
}

// NewFlakyDriver wraps driver with an unlimited update budget.
func NewFlakyDriver(driver storage.Driver) *FlakyDriver {
	return &FlakyDriver{Driver: driver, remaining: -1}
}

// AllowUpdates lets n more updates succeed before every later one fails.
// A negative n removes the limit.
func (d *FlakyDriver) AllowUpdates(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remaining = n
}

func (d *FlakyDriver) Update(ctx context.Context, fn func(storage.Tx) error) error {
	d.mu.Lock()
	switch {
	case d.remaining == 0:
		d.mu.Unlock()
		return ErrInjectedUpdate
	case d.remaining > 0:
		d.remaining--
	}
	d.mu.Unlock()

	return d.Driver.Update(ctx, fn)
}
