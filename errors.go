package accelade

import (
	"errors"

	"github.com/pthm/accelade/lib/store"
)

// Sentinel errors for runtime operations.
var (
	ErrDuplicateID      = errors.New("accelade: component id already live")
	ErrNoRoot           = errors.New("accelade: element is not a component root")
	ErrInvalidState     = errors.New("accelade: invalid state attribute")
	ErrUnknownFramework = store.ErrUnknownFramework
	ErrDisposed         = errors.New("accelade: component disposed")
	ErrUnknownMethod    = errors.New("accelade: unknown method")
	ErrInvalidConfig    = errors.New("accelade: invalid configuration")
	ErrDecryptFailed    = errors.New("accelade: sealed state decryption failed")
	ErrSignatureInvalid = errors.New("accelade: sealed state signature invalid")
	ErrInvalidFormat    = errors.New("accelade: invalid sealed state format")
)

// IsDuplicateID checks if err reports an id collision.
func IsDuplicateID(err error) bool {
	return errors.Is(err, ErrDuplicateID)
}

// IsDisposed checks if err reports use of a disposed component.
func IsDisposed(err error) bool {
	return errors.Is(err, ErrDisposed)
}

// IsUnknownMethod checks if err reports a call to an undefined method.
func IsUnknownMethod(err error) bool {
	return errors.Is(err, ErrUnknownMethod)
}

// IsSealError checks if err is a decryption, signature or format error
// from opening sealed state.
func IsSealError(err error) bool {
	return errors.Is(err, ErrDecryptFailed) ||
		errors.Is(err, ErrSignatureInvalid) ||
		errors.Is(err, ErrInvalidFormat)
}
