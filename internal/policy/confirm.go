// README: Confirmation classification and tool allowlist checks.
package policy

import (
	"regexp"
	"strings"

	"concierge/internal/types"
)

var (
	irreversibleVerbs = regexp.MustCompile(`\b(book|confirm|pay|charge|cancel|purchase|buy|checkout)`)
	sharePersonal     = regexp.MustCompile(`\bshar(e|ing)\b.*\b(personal|contact|passport|pii|data|details)\b`)
)

// RequiresConfirmation reports whether an action name describes an irreversible or
// sensitive step (booking, paying, cancelling, sharing personal data).
func RequiresConfirmation(action string) bool {
	norm := strings.ToLower(strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(action))
	if irreversibleVerbs.MatchString(norm) {
		return true
	}
	return sharePersonal.MatchString(norm)
}

// AllowTool reports whether name is in the closed tool allowlist.
func AllowTool(name types.ToolName) bool {
	return types.IsKnownTool(name)
}
