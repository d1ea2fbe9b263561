// README: PII redaction for anything logged, persisted as a summary, or fed back to a model.
package policy

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	EmailPlaceholder = "[REDACTED_EMAIL]"
	PhonePlaceholder = "[REDACTED_PHONE]"
	IDPlaceholder    = "[REDACTED_ID]"
	CardPlaceholder  = "[REDACTED_CARD]"
)

var (
	// 13 to 19 digits, optionally grouped by single spaces or dashes.
	cardPattern  = regexp.MustCompile(`\b\d(?:[ \-]?\d){12,18}\b`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	// Digit runs with the usual phone separators; filtered by digit count below.
	phonePattern = regexp.MustCompile(`(?:\+\(?|\(|\b)\d[\d\s().\-]{7,}\d\b`)
	// Uppercase alphanumeric tokens such as passport or card references.
	idPattern = regexp.MustCompile(`\b[A-Z0-9]{8,}\b`)
	isoDate   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

const (
	minPhoneDigits = 9
	maxPhoneDigits = 15
)

// RedactPII replaces emails, payment card numbers, phone-like digit runs and
// long uppercase identifiers with fixed placeholders. It is idempotent.
func RedactPII(text string) string {
	if text == "" {
		return text
	}
	out := emailPattern.ReplaceAllString(text, EmailPlaceholder)
	out = redactCards(out)
	out = phonePattern.ReplaceAllStringFunc(out, func(m string) string {
		if isoDate.MatchString(m) {
			return m
		}
		n := countDigits(m)
		if n < minPhoneDigits || n > maxPhoneDigits {
			return m
		}
		return PhonePlaceholder
	})
	out = idPattern.ReplaceAllStringFunc(out, func(m string) string {
		if !hasDigit(m) || !hasLetter(m) {
			return m
		}
		return IDPlaceholder
	})
	return out
}

// RedactValue walks decoded JSON-like data and redacts every string it finds.
// Map keys are kept as-is.
func RedactValue(v any) any {
	switch t := v.(type) {
	case string:
		return RedactPII(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = RedactValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = RedactValue(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = RedactValue(val)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, val := range t {
			out[i] = RedactPII(val)
		}
		return out
	default:
		return v
	}
}

// ContainsPII reports whether RedactPII would change text.
func ContainsPII(text string) bool {
	return RedactPII(text) != text
}

// redactCards runs before the phone pass so long card numbers are not left
// behind by the phone digit-count ceiling. Only Luhn-valid runs count as cards,
// and a leading '+' marks an international phone number instead.
func redactCards(s string) string {
	matches := cardPattern.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return s
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		if m[0] > 0 && s[m[0]-1] == '+' {
			continue
		}
		if !luhnValid(s[m[0]:m[1]]) {
			continue
		}
		b.WriteString(s[last:m[0]])
		b.WriteString(CardPlaceholder)
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

func luhnValid(s string) bool {
	sum, double := 0, false
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if c < '0' || c > '9' {
			continue
		}
		d := int(c - '0')
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

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}
