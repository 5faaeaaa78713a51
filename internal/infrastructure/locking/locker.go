// Package locking serializes mutations per Sol. Writers of one Sol exclude each other; different Sols never contend.
package locking

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrBusy is returned when the Sol stayed locked for longer than the configured wait.
var ErrBusy = errors.New("sol is busy, retry later")

// ErrLockLost is returned by Lease.Check once the section expired while still in use.
var ErrLockLost = errors.New("sol lock expired before commit, retry later")

// Lease is a held per-Sol section.
type Lease interface {
	// Release frees the section. Calls after the first are no-ops.
	Release()
	// Check reports ErrLockLost if the section is no longer exclusively held.
	Check(ctx context.Context) error
}

// Locker hands out per-Sol critical sections.
type Locker interface {
	// Lock obtains the exclusive section used by every mutating operation.
	Lock(ctx context.Context, solID uuid.UUID) (Lease, error)
	// RLock obtains a section that excludes writers but not other readers.
	RLock(ctx context.Context, solID uuid.UUID) (Lease, error)
}
