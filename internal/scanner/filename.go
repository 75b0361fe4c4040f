package scanner

import "regexp"

// datetimePattern recognises the two sortable filename conventions spec.md
// §3 names: `YYYY-MM-DD_HH-MM-SS` and `YYYYMMDD-HHMMSS`, as a prefix before
// the extension.
var datetimePattern = regexp.MustCompile(
	`^(\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}|\d{8}-\d{6})`,
)

// parseDatetimeToken extracts the leading sortable datetime token from a
// base file name (without extension). ok is false when the name matches
// neither recognised convention (spec.md B2: `invalid_filename`).
func parseDatetimeToken(baseName string) (token string, ok bool) {
	m := datetimePattern.FindString(baseName)
	if m == "" {
		return "", false
	}
	return m, true
}
