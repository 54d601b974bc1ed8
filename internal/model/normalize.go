package model

import "strings"

// NormalizeEnumValue lowercases and collapses surrounding/internal whitespace.
// Used for ListValue.NormalizedValue, alias-index lookups, and the "unk" guard.
func NormalizeEnumValue(value string) string {
	fields := strings.Fields(strings.ToLower(value))
	return strings.Join(fields, " ")
}
