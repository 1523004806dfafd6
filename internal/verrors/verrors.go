// Package verrors holds the sentinel errors for the taxonomy in
// spec.md §7, in their own package so both the root vectorlite
// package and collection (which the root package composes) can return
// and compare against them without an import cycle.
package verrors

import (
	"errors"
	"fmt"
)

var (
	// ErrDimMismatch is returned when a vector's length does not match
	// the collection's configured dimension. Validation: no state change.
	ErrDimMismatch = errors.New("vectorlite: vector dimension mismatch")

	// ErrInvalidConfig is returned for a malformed collection config.
	ErrInvalidConfig = errors.New("vectorlite: invalid config")

	// ErrDuplicateID is returned when inserting an external id that
	// already exists in the collection.
	ErrDuplicateID = errors.New("vectorlite: duplicate id")

	// ErrNotFound covers both unknown collection names and unknown
	// record ids.
	ErrNotFound = errors.New("vectorlite: not found")

	// ErrAlreadyExists is returned by CreateCollection on a duplicate name.
	ErrAlreadyExists = errors.New("vectorlite: already exists")

	// ErrIO wraps a fatal disk error for the affected write. The
	// operation is never acknowledged when this is returned.
	ErrIO = errors.New("vectorlite: io error")

	// ErrCorrupt is surfaced on open when a snapshot or WAL is corrupt
	// in a way that isn't explained by a torn tail.
	ErrCorrupt = errors.New("vectorlite: corrupt data")

	// ErrIncompatibleVersion is returned when a manifest's format
	// version is newer than this binary understands.
	ErrIncompatibleVersion = errors.New("vectorlite: incompatible format version")

	// ErrTimeout completes the taxonomy for a search deadline. No
	// operation returns it: Search takes no deadline.
	ErrTimeout = errors.New("vectorlite: search timeout")

	// ErrPoisoned is returned by every operation on a collection whose
	// in-memory state may have diverged from durable state after an
	// IO error. The collection must be reopened.
	ErrPoisoned = errors.New("vectorlite: collection poisoned, reopen required")

	// ErrClosed completes the taxonomy for a closed DB or collection. No
	// operation in this module returns it.
	ErrClosed = errors.New("vectorlite: closed")

	// ErrInvalidName is returned by CreateCollection for names
	// containing path separators or otherwise unsafe for a directory name.
	ErrInvalidName = errors.New("vectorlite: invalid collection name")

	// ErrNotTrained is returned by Flush/snapshot when a trainable codec
	// (PerDimension SQ8, PQ) is still buffering inserts and has not yet
	// produced a codebook. The caller's data is durable in the WAL; it
	// becomes snapshottable once enough records accumulate to train.
	ErrNotTrained = errors.New("vectorlite: codec not yet trained")
)

// Wrapf wraps err with an operation label, matching the teacher's
// fmt.Errorf("op: %w", err) idiom.
func Wrapf(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
