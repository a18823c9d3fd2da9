package version

import "strings"

// Number is the compact release number. Each digit becomes one dotted
// component, so "100" reads as 1.0.0.
const (
	Number  = "100"
	Channel = "beta"
)

// String returns the human-readable version, e.g. "1.0.0-beta".
func String() string {
	parts := make([]string, 0, len(Number))
	for _, d := range Number {
		parts = append(parts, string(d))
	}
	v := strings.Join(parts, ".")
	if Channel != "" {
		v += "-" + Channel
	}
	return v
}
