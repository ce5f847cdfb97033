package bookings

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/net/idna"
)

// Contact identifies a patient. At least one field must be set.
type Contact struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

var contactValidator = validator.New()

// disposableDomains are throwaway inbox providers. Subdomains match too.
var disposableDomains = map[string]struct{}{
	"mailinator.com":    {},
	"guerrillamail.com": {},
	"guerrillamail.net": {},
	"sharklasers.com":   {},
	"10minutemail.com":  {},
	"tempmail.com":      {},
	"temp-mail.org":     {},
	"tempinbox.com":     {},
	"throwawaymail.com": {},
	"yopmail.com":       {},
	"trashmail.com":     {},
	"getnada.com":       {},
	"dispostable.com":   {},
	"maildrop.cc":       {},
	"fakeinbox.com":     {},
	"mintemail.com":     {},
	"mailnesia.com":     {},
	"emailondeck.com":   {},
	"moakt.com":         {},
	"burnermail.io":     {},
	"spamgourmet.com":   {},
	"mohmal.com":        {},
	"discard.email":     {},
	"mailcatch.com":     {},
	"inboxkitten.com":   {},
	"tempr.email":       {},
	"mytemp.email":      {},
	"emailfake.com":     {},
	"throwaway.email":   {},
	"anonaddy.me":       {},
}

// disposableMarkers catch look-alike providers that are not in the list yet.
var disposableMarkers = []string{"tempmail", "throwaway", "disposable", "trashmail", "mailinator", "10minute"}

// NormalizeEmail lowercases the address and converts the domain to its ASCII
// (punycode) form. It returns ErrInvalidEmail for anything that does not parse.
func NormalizeEmail(raw string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	at := strings.LastIndex(value, "@")
	if at <= 0 || at == len(value)-1 {
		return "", ErrInvalidEmail
	}
	local, domain := value[:at], value[at+1:]
	ascii, err := idna.Lookup.ToASCII(domain)
	if err != nil || !strings.Contains(ascii, ".") {
		return "", ErrInvalidEmail
	}
	normalized := local + "@" + ascii
	if err := contactValidator.Var(normalized, "email"); err != nil {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}

// ValidateEmail normalizes raw and rejects disposable providers.
func ValidateEmail(raw string) (string, error) {
	email, err := NormalizeEmail(raw)
	if err != nil {
		return "", err
	}
	if IsDisposableDomain(email[strings.LastIndex(email, "@")+1:]) {
		return "", ErrDisposableEmail
	}
	return email, nil
}

// IsDisposableDomain reports whether domain, or any parent of it, belongs to
// a throwaway inbox provider.
func IsDisposableDomain(domain string) bool {
	domain = strings.TrimSuffix(strings.ToLower(domain), ".")
	for _, marker := range disposableMarkers {
		if strings.Contains(domain, marker) {
			return true
		}
	}
	for d := domain; d != ""; {
		if _, ok := disposableDomains[d]; ok {
			return true
		}
		dot := strings.Index(d, ".")
		if dot < 0 {
			break
		}
		d = d[dot+1:]
	}
	return false
}

// PhoneDigits strips everything except digits.
func PhoneDigits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidatePhone reduces raw to a ten digit North American number. A leading
// country code 1 is dropped. Area codes and exchanges must start with 2-9,
// area codes of the form N11 are service codes, and a single repeated digit is
// never a real number.
func ValidatePhone(raw string) (string, error) {
	digits := PhoneDigits(raw)
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", ErrInvalidPhone
	}
	if digits[0] < '2' || digits[3] < '2' {
		return "", ErrInvalidPhone
	}
	if digits[1] == '1' && digits[2] == '1' {
		return "", ErrInvalidPhone
	}
	if strings.Count(digits, digits[:1]) == len(digits) {
		return "", ErrInvalidPhone
	}
	return digits, nil
}

// Normalize validates both fields and returns the canonical contact: a
// lowercased ASCII email and a ten digit phone.
func (c Contact) Normalize() (Contact, error) {
	email := strings.TrimSpace(c.Email)
	phone := strings.TrimSpace(c.Phone)
	if email == "" && phone == "" {
		return Contact{}, ErrContactRequired
	}
	var out Contact
	if email != "" {
		normalized, err := ValidateEmail(email)
		if err != nil {
			return Contact{}, err
		}
		out.Email = normalized
	}
	if phone != "" {
		digits, err := ValidatePhone(phone)
		if err != nil {
			return Contact{}, err
		}
		out.Phone = digits
	}
	return out, nil
}

// Key is a stable identifier for locking, preferring the email.
func (c Contact) Key() string {
	if c.Email != "" {
		return c.Email
	}
	return c.Phone
}
