// internal/orderid/orderid_test.go
package orderid

import (
	"regexp"
	"testing"
	"time"
)

func TestGenerator_Generate(t *testing.T) {
	gen := New(nil, nil, FixedDigits(4, 7))
	// 2025-03-09 17:45 UTC is 2025-03-10 00:15 in Yangon.
	at := time.Date(2025, 3, 9, 17, 45, 0, 0, time.UTC)

	tests := []struct {
		name   string
		origin string
		want   string
	}{
		{"sub-district wins over province", "Pyin Oo Lwin, Mandalay Region", "POL20250310001547"},
		{"province", "78th Street, Mandalay", "MDY20250310001547"},
		{"yangon", "Bahan, Yangon", "YGN20250310001547"},
		{"unknown falls back", "Unknown Place", "MDY20250310001547"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gen.Generate(tt.origin, at); got != tt.want {
				t.Errorf("Generate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGenerator_IgnoresDeviceZone(t *testing.T) {
	gen := New(nil, nil, FixedDigits(0, 0))
	utc := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ny := utc.In(time.FixedZone("EST", -5*3600))
	if gen.Generate("Yangon", utc) != gen.Generate("Yangon", ny) {
		t.Errorf("same instant must produce the same id regardless of caller zone")
	}
}

func TestGenerator_RandomDigitsShape(t *testing.T) {
	gen := New(nil, nil, nil)
	re := regexp.MustCompile(`^YGN\d{12}\d{2}$`)
	for i := 0; i < 50; i++ {
		id := gen.Generate("Yangon", time.Now())
		if !re.MatchString(id) {
			t.Fatalf("unexpected id shape %q", id)
		}
	}
}
