// internal/region/region.go
package region

import (
	"strings"

	"golang.org/x/text/cases"
)

// Default is the baseline region used when no matcher hits.
const Default = "MDY"

// Matcher maps any of its names, found as a substring of an address, to a region code.
type Matcher struct {
	Code  string
	Names []string
}

// Table is an ordered list of matchers, most specific first. The first hit wins, so a sub-district
// whose name sits inside a province address must be listed ahead of the province.
type Table struct {
	matchers []Matcher
	fallback string
}

func NewTable(fallback string, matchers ...Matcher) *Table {
	if fallback == "" {
		fallback = Default
	}
	t := &Table{fallback: fallback}
	for _, m := range matchers {
		folded := Matcher{Code: m.Code, Names: make([]string, 0, len(m.Names))}
		for _, n := range m.Names {
			n = strings.TrimSpace(n)
			if n == "" {
				continue
			}
			folded.Names = append(folded.Names, fold(n))
		}
		t.matchers = append(t.matchers, folded)
	}
	return t
}

// DefaultMatchers lists the delivery regions served today, most specific first.
func DefaultMatchers() []Matcher {
	return []Matcher{
		{Code: "POL", Names: []string{"Pyin Oo Lwin", "Pyin U Lwin", "PyinOoLwin", "Maymyo", "ပြင်ဦးလွင်", "彬乌伦"}},
		{Code: "MSE", Names: []string{"Muse", "မူဆယ်", "木姐"}},
		{Code: "LSO", Names: []string{"Lashio", "လားရှိုး", "腊戌"}},
		{Code: "TGI", Names: []string{"Taunggyi", "တောင်ကြီး", "东枝"}},
		{Code: "NPW", Names: []string{"Naypyidaw", "Nay Pyi Taw", "နေပြည်တော်", "内比都"}},
		{Code: "YGN", Names: []string{"Yangon", "Rangoon", "ရန်ကုန်", "仰光"}},
		{Code: "MDY", Names: []string{"Mandalay", "မန္တလေး", "曼德勒"}},
	}
}

func DefaultTable() *Table {
	return NewTable(Default, DefaultMatchers()...)
}

// Detect returns the code of the first matcher whose name occurs in address, and whether any matched.
func (t *Table) Detect(address string) (string, bool) {
	folded := fold(address)
	for _, m := range t.matchers {
		for _, n := range m.Names {
			if strings.Contains(folded, n) {
				return m.Code, true
			}
		}
	}
	return t.fallback, false
}

// fold builds a fresh Caser per call; a Caser carries state and must not be shared between goroutines.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Code is Detect without the match flag.
func (t *Table) Code(address string) string {
	code, _ := t.Detect(address)
	return code
}

func (t *Table) Fallback() string {
	return t.fallback
}

func (t *Table) Codes() []string {
	codes := make([]string, 0, len(t.matchers))
	for _, m := range t.matchers {
		codes = append(codes, m.Code)
	}
	return codes
}
