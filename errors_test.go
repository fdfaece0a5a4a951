package accelade

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	errs := []error{
		ErrDuplicateID,
		ErrNoRoot,
		ErrInvalidState,
		ErrUnknownFramework,
		ErrDisposed,
		ErrUnknownMethod,
		ErrInvalidConfig,
		ErrDecryptFailed,
		ErrSignatureInvalid,
		ErrInvalidFormat,
	}

	for i, err1 := range errs {
		for j, err2 := range errs {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("Sentinel errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestIsHelpers(t *testing.T) {
	tests := []struct {
		name   string
		check  func(error) bool
		err    error
		expect bool
	}{
		{"duplicate nil", IsDuplicateID, nil, false},
		{"duplicate", IsDuplicateID, ErrDuplicateID, true},
		{"duplicate wrapped", IsDuplicateID, fmt.Errorf("mount: %w", ErrDuplicateID), true},
		{"duplicate joined", IsDuplicateID, errors.Join(ErrNoRoot, ErrDuplicateID), true},
		{"disposed", IsDisposed, ErrDisposed, true},
		{"disposed other", IsDisposed, ErrNoRoot, false},
		{"unknown method", IsUnknownMethod, fmt.Errorf("%w: x", ErrUnknownMethod), true},
		{"seal decrypt", IsSealError, ErrDecryptFailed, true},
		{"seal signature", IsSealError, ErrSignatureInvalid, true},
		{"seal format", IsSealError, ErrInvalidFormat, true},
		{"seal other", IsSealError, ErrInvalidState, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.check(tt.err); got != tt.expect {
				t.Errorf("got %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestSealRoundTrip(t *testing.T) {
	key := []byte("a-key-that-is-long-enough-for-aes")
	for _, sensitive := range []bool{false, true} {
		blob, err := Seal(key, map[string]any{"id": 42, "name": "x"}, sensitive)
		if err != nil {
			t.Fatalf("Seal(sensitive=%v): %v", sensitive, err)
		}
		state, err := Open(key, blob)
		if err != nil {
			t.Fatalf("Open(sensitive=%v): %v", sensitive, err)
		}
		if state["id"] != 42.0 || state["name"] != "x" {
			t.Errorf("round trip = %v", state)
		}
	}
}

func TestOpenErrorsMapToSentinels(t *testing.T) {
	key := []byte("first-key")
	signed, _ := Seal(key, map[string]any{"a": 1}, false)
	sealed, _ := Seal(key, map[string]any{"a": 1}, true)

	tests := []struct {
		name string
		blob string
		want error
	}{
		{"garbage", "not-a-blob", ErrInvalidFormat},
		{"signed with other key", signed, ErrSignatureInvalid},
		{"encrypted with other key", sealed, ErrDecryptFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open([]byte("second-key"), tt.blob)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if !IsSealError(err) {
				t.Errorf("IsSealError(%v) = false", err)
			}
		})
	}
}
