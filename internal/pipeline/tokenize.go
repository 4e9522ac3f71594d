package pipeline

import "strings"

// SplitLine splits one catalog line into raw fields. A comma separates
// fields unless it falls inside an open double-quote span; quote
// characters toggle the in-quote state and are consumed. Doubled
// quotes are not unescaped, matching the source export. The final
// field is always emitted, empty or not, and nothing is trimmed.
func SplitLine(line string) []string {
	fields := make([]string, 0, 10)
	inQuotes := false
	var current strings.Builder

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	fields = append(fields, current.String())

	return fields
}
