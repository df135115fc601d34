package routing

import "strings"

// NormalizeE164 converges the phone number formats providers send into a
// single "+<digits>" key so every representation of the same number resolves
// to the same tenant.
//
// Accepted inputs: "+14255550100", "(425) 555-0100", "1-425-555-0100",
// "0014255550100", "425.555.0100". Ten-digit numbers are assumed NANP.
// Anything without digits comes back empty; callers treat that as a miss.
func NormalizeE164(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if d == "" {
		return ""
	}

	// International dialing prefix.
	if strings.HasPrefix(d, "00") && len(d) > 2 {
		d = d[2:]
	}

	switch {
	case len(d) == 10:
		return "+1" + d
	case len(d) == 11 && d[0] == '1':
		return "+" + d
	default:
		return "+" + d
	}
}
