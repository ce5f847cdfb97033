package conversation

import (
	"regexp"
	"strings"
	"unicode"
)

// RedactedPlaceholder replaces a message that discloses health details.
const RedactedPlaceholder = "[REDACTED]"

var (
	healthPrefaceRE = regexp.MustCompile(`(?i)\b(?:diagnosed|diagnosis|my condition|my symptoms|i have|i've had|i am|i'm)\b`)
	healthTermRE    = regexp.MustCompile(`(?i)\b(?:diabetes|hiv|aids|cancer|hepatitis|pregnant|pregnancy|depression|anxiety|bipolar|schizophrenia|asthma|hypertension|blood pressure|infection|herpes|std|sti)\b`)
	ssnRE           = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	cardCandidateRE = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)
)

// RedactForStaff prepares a patient chat message for a staff notification.
// Health disclosures replace the whole message; card and social security
// numbers are masked in place. ok reports whether anything was redacted.
func RedactForStaff(message string) (redacted string, ok bool) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return message, false
	}
	if healthPrefaceRE.MatchString(trimmed) && healthTermRE.MatchString(trimmed) {
		return RedactedPlaceholder, true
	}

	out := ssnRE.ReplaceAllString(trimmed, "[ssn]")
	out = cardCandidateRE.ReplaceAllStringFunc(out, func(candidate string) string {
		if luhnValid(candidate) {
			return "[card]"
		}
		return candidate
	})
	return out, out != trimmed
}

func luhnValid(candidate string) bool {
	var digits []int
	for _, r := range candidate {
		if unicode.IsDigit(r) {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
