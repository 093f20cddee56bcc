package table

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// AllStates is the reserved state name that addresses every state column.
// It is compared case-insensitively and never matches a real column.
const AllStates = "__ALL_STATES__"

// Derived column names. They are computed on export and may not appear as
// state or attribute columns in a source table.
const (
	ColumnRowType     = "row_type"
	ColumnWeatherYear = "weather_year"
)

// NormalizeState trims, NFC-normalizes and lower-cases a state name.
// All state comparisons go through this function.
func NormalizeState(s string) string {
	// cases.Caser is stateful, so a fresh one is built per call.
	return cases.Lower(language.Und).String(norm.NFC.String(strings.TrimSpace(s)))
}

// NormalizeName trims and NFC-normalizes a subsector or column name while
// preserving its case.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// IsAllStates reports whether s names the all-states sentinel.
func IsAllStates(s string) bool {
	return NormalizeState(s) == strings.ToLower(AllStates)
}

// IsDerivedColumn reports whether name is computed on export.
func IsDerivedColumn(name string) bool {
	switch NormalizeState(name) {
	case ColumnRowType, ColumnWeatherYear:
		return true
	}
	return false
}
