package safe

import (
	"math"
	"testing"
)

func TestUint32(t *testing.T) {
	tests := []struct {
		name    string
		value   int64
		want    uint32
		wantErr bool
	}{
		{name: "zero", value: 0, want: 0},
		{name: "typical", value: 1234, want: 1234},
		{name: "max", value: math.MaxUint32, want: math.MaxUint32},
		{name: "negative", value: -1, wantErr: true},
		{name: "overflow", value: math.MaxUint32 + 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Uint32(tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Uint32(%d): expected error, got %d", tt.value, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Uint32(%d): unexpected error: %v", tt.value, err)
			}
			if got != tt.want {
				t.Fatalf("Uint32(%d) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestUint64(t *testing.T) {
	if _, err := Uint64(-5); err == nil {
		t.Fatal("expected error for negative value")
	}

	got, err := Uint64(int64(math.MaxInt64))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != math.MaxInt64 {
		t.Fatalf("Uint64(MaxInt64) = %d", got)
	}

	if v, err := Uint64(uint32(7)); err != nil || v != 7 {
		t.Fatalf("Uint64(uint32(7)) = %d, %v", v, err)
	}
}
