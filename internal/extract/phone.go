package extract

import "strings"

// NormalizePhone formats a spoken or loosely punctuated North American phone
// number as ddd-ddd-dddd. It reports whether the value was changed; numbers
// with an unexpected digit count pass through untouched so the validation
// screen shows exactly what was heard.
func NormalizePhone(raw string) (string, bool) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	d := digits.String()
	// A leading country code 1 is dropped; everything else must be a plain
	// ten-digit number.
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) != 10 {
		return raw, false
	}

	formatted := d[0:3] + "-" + d[3:6] + "-" + d[6:10]
	return formatted, formatted != raw
}
