package encoding

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func sampleState() map[string]any {
	return map[string]any{
		"count": 12345,
		"name":  "test-file.txt",
		"open":  true,
		"tags":  []any{"a", int8(2)},
		"user":  map[string]any{"id": int64(7)},
	}
}

func normalized() map[string]any {
	return map[string]any{
		"count": 12345.0,
		"name":  "test-file.txt",
		"open":  true,
		"tags":  []any{"a", 2.0},
		"user":  map[string]any{"id": 7.0},
	}
}

func TestNewEncoder(t *testing.T) {
	if _, err := NewEncoder([]byte("short")); err != nil {
		t.Fatalf("NewEncoder with short key failed: %v", err)
	}
	if _, err := NewEncoder([]byte("this-is-a-32-byte-key-for-aes!!!")); err != nil {
		t.Fatalf("NewEncoder with 32-byte key failed: %v", err)
	}
	if _, err := NewEncoder(nil); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestRoundTrip(t *testing.T) {
	enc, err := NewEncoder([]byte("test-key"))
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	tests := []struct {
		name      string
		sensitive bool
	}{
		{"signed", false},
		{"encrypted", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := enc.Seal(sampleState(), tt.sensitive)
			if err != nil {
				t.Fatalf("Seal failed: %v", err)
			}
			if got := strings.HasPrefix(blob, EncryptedPrefix); got != tt.sensitive {
				t.Errorf("encrypted prefix = %v, want %v", got, tt.sensitive)
			}

			opened, err := enc.Open(blob)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if !reflect.DeepEqual(opened, normalized()) {
				t.Errorf("Open = %#v, want %#v", opened, normalized())
			}
		})
	}
}

func TestSignatureVerificationFailure(t *testing.T) {
	enc, _ := NewEncoder([]byte("test-key"))
	blob, err := enc.Seal(map[string]any{"id": 1}, false)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	payload, _, _ := strings.Cut(blob, ".")
	other, _ := enc.Seal(map[string]any{"id": 2}, false)
	_, otherSig, _ := strings.Cut(other, ".")

	_, err = enc.Open(payload + "." + otherSig)
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("expected ErrSignatureInvalid, got: %v", err)
	}
}

func TestDecryptionFailure(t *testing.T) {
	enc, _ := NewEncoder([]byte("test-key"))
	blob, err := enc.Seal(map[string]any{"id": 1}, true)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	other, _ := NewEncoder([]byte("other-key"))
	if _, err := other.Open(blob); !errors.Is(err, ErrDecryptFailed) {
		t.Errorf("expected ErrDecryptFailed, got: %v", err)
	}
}

func TestInvalidFormat(t *testing.T) {
	enc, _ := NewEncoder([]byte("test-key"))

	for _, blob := range []string{"invalidbase64withoutseparator", "enc:!!", "enc:AAAA"} {
		if _, err := enc.Open(blob); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("Open(%q): expected ErrInvalidFormat, got: %v", blob, err)
		}
	}
}

func TestDifferentKeysCannotOpen(t *testing.T) {
	enc1, _ := NewEncoder([]byte("key-one"))
	enc2, _ := NewEncoder([]byte("key-two"))

	blob, err := enc1.Seal(map[string]any{"id": 1}, false)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if _, err := enc2.Open(blob); err == nil {
		t.Error("expected error when opening with a different key")
	}
}

func TestEmptyState(t *testing.T) {
	enc, _ := NewEncoder([]byte("test-key"))
	blob, err := enc.Seal(map[string]any{}, false)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	opened, err := enc.Open(blob)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(opened) != 0 {
		t.Errorf("expected empty state, got %v", opened)
	}
}
