package utils

import "strings"

// Slugify normalizes a metric label into a lowercase, hyphen-separated
// ASCII identifier. Runs of non-alphanumeric characters collapse into a
// single hyphen and leading/trailing hyphens are trimmed.
// Vendor exports label rows like "Earnings Per Share USD" or
// "Operating Margin %"; these become "earnings-per-share-usd" and
// "operating-margin", the identifiers the derivation pipeline keys on.
func Slugify(label string) string {
	var b strings.Builder
	b.Grow(len(label))

	pendingHyphen := false
	for _, r := range strings.ToLower(label) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingHyphen = b.Len() > 0
			continue
		}
		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteRune(r)
	}

	return b.String()
}
