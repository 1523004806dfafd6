package vectorlite

import "github.com/vectorlite/vectorlite/internal/verrors"

// Sentinel errors for the taxonomy described in spec.md §7. Callers
// compare with errors.Is; wrapped errors carry operation context.
// Defined in internal/verrors so collection (which this package
// composes) can return and compare against the same values without an
// import cycle; re-exported here under their public names.
var (
	ErrDimMismatch         = verrors.ErrDimMismatch
	ErrInvalidConfig       = verrors.ErrInvalidConfig
	ErrDuplicateID         = verrors.ErrDuplicateID
	ErrNotFound            = verrors.ErrNotFound
	ErrAlreadyExists       = verrors.ErrAlreadyExists
	ErrIO                  = verrors.ErrIO
	ErrCorrupt             = verrors.ErrCorrupt
	ErrIncompatibleVersion = verrors.ErrIncompatibleVersion
	ErrTimeout             = verrors.ErrTimeout
	ErrPoisoned            = verrors.ErrPoisoned
	ErrClosed              = verrors.ErrClosed
	ErrInvalidName         = verrors.ErrInvalidName
	ErrNotTrained          = verrors.ErrNotTrained
)

// wrapf wraps err with an operation label, matching the teacher's
// fmt.Errorf("op: %w", err) idiom.
func wrapf(op string, err error) error {
	return verrors.Wrapf(op, err)
}
