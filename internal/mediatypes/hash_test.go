package mediatypes

import (
	"strings"
	"testing"
)

func TestHashHexRoundTrip(t *testing.T) {
	var h Hash
	for i := range h {
		h[i] = byte(i)
	}

	hexed := h.Hex()
	if len(hexed) != 64 {
		t.Fatalf("Hex() length = %d, want 64", len(hexed))
	}
	if !strings.HasPrefix(hexed, "000102") {
		t.Errorf("Hex() = %s", hexed)
	}

	back, err := ParseHash(hexed)
	if err != nil {
		t.Fatalf("ParseHash() error = %v", err)
	}
	if back != h {
		t.Errorf("ParseHash() = %v, want %v", back, h)
	}
}

func TestParseHashErrors(t *testing.T) {
	for _, in := range []string{"zz", "abcd", strings.Repeat("0", 66)} {
		if _, err := ParseHash(in); err == nil {
			t.Errorf("ParseHash(%q) expected error", in)
		}
	}
}

func TestHashScanValue(t *testing.T) {
	var h Hash
	h[0], h[31] = 0xAB, 0xCD

	v, err := h.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}

	var back Hash
	if err := back.Scan(v); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if back != h {
		t.Errorf("Scan() = %v, want %v", back, h)
	}

	tests := []struct {
		name string
		src  any
	}{
		{"nil", nil},
		{"short blob", []byte{1, 2, 3}},
		{"integer", 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h Hash
			if err := h.Scan(tt.src); err == nil {
				t.Errorf("Scan(%v) expected error", tt.src)
			}
		})
	}
}

func TestHashBytesIsCopy(t *testing.T) {
	var h Hash
	b := h.Bytes()
	b[0] = 0xFF
	if h[0] != 0 {
		t.Error("Bytes() should return a copy")
	}
}
