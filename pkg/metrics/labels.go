package metrics

import "strings"

const unknownLabel = "unknown"

// normalizeLabel trims a label value and maps blanks to "unknown" so a
// missing value never creates an empty series.
func normalizeLabel(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return unknownLabel
	}
	return v
}
