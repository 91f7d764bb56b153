// internal/region/region_test.go
package region

import "testing"

func TestDefaultTableDetect(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		address string
		want    string
		matched bool
	}{
		{"No. 12, 3rd Street, Pyin Oo Lwin, Mandalay Region", "POL", true},
		{"pyin oo lwin township", "POL", true},
		{"35th St, Chanayethazan, Mandalay", "MDY", true},
		{"Sule Pagoda Rd, Yangon", "YGN", true},
		{"ရန်ကုန်မြို့", "YGN", true},
		{"Zabu Thiri, Naypyidaw", "NPW", true},
		{"somewhere unknown", "MDY", false},
		{"", "MDY", false},
	}
	for _, tt := range tests {
		got, matched := table.Detect(tt.address)
		if got != tt.want || matched != tt.matched {
			t.Errorf("Detect(%q) = %s,%v want %s,%v", tt.address, got, matched, tt.want, tt.matched)
		}
	}
}

func TestTableOrderDecidesOverlap(t *testing.T) {
	broadFirst := NewTable("XXX",
		Matcher{Code: "MDY", Names: []string{"Mandalay"}},
		Matcher{Code: "POL", Names: []string{"Pyin Oo Lwin"}},
	)
	if got := broadFirst.Code("Pyin Oo Lwin, Mandalay"); got != "MDY" {
		t.Errorf("first matcher should win, got %s", got)
	}
	if got := broadFirst.Code("nowhere"); got != "XXX" {
		t.Errorf("fallback = %s, want XXX", got)
	}
}

func TestNewTableSkipsBlankNames(t *testing.T) {
	table := NewTable("", Matcher{Code: "YGN", Names: []string{"", "  "}})
	if got, ok := table.Detect("any address"); ok || got != Default {
		t.Errorf("blank names must never match, got %s,%v", got, ok)
	}
	if len(table.Codes()) != 1 {
		t.Errorf("Codes() = %v", table.Codes())
	}
}
