package accelade

import (
	"errors"

	"github.com/pthm/accelade/lib/encoding"
)

// Encoder is an alias for encoding.Encoder for convenience.
type Encoder = encoding.Encoder

// NewEncoder creates a sealing encoder with the given key.
func NewEncoder(key []byte) (*Encoder, error) {
	return encoding.NewEncoder(key)
}

// Seal produces a data-accelade-sealed value for state. Sensitive state is
// encrypted; everything else is signed and stays readable.
//
//	blob, err := accelade.Seal(key, map[string]any{"userId": 42}, false)
func Seal(key []byte, state map[string]any, sensitive bool) (string, error) {
	enc, err := encoding.NewEncoder(key)
	if err != nil {
		return "", err
	}
	return enc.Seal(state, sensitive)
}

// Open reverses Seal.
func Open(key []byte, blob string) (map[string]any, error) {
	enc, err := encoding.NewEncoder(key)
	if err != nil {
		return nil, err
	}
	state, err := enc.Open(blob)
	return state, wrapEncodingError(err)
}

// wrapEncodingError maps encoding errors onto the accelade sentinels.
func wrapEncodingError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, encoding.ErrInvalidFormat) {
		return ErrInvalidFormat
	}
	if errors.Is(err, encoding.ErrSignatureInvalid) {
		return ErrSignatureInvalid
	}
	if errors.Is(err, encoding.ErrDecryptFailed) {
		return ErrDecryptFailed
	}
	return err
}
