// README: Monthly allowance of model-backed chat turns per signed-in user.
package aiusage

import (
	"errors"
	"time"
)

// ErrInsufficientTokens is returned when a user has no turns remaining for the current month.
var ErrInsufficientTokens = errors.New("insufficient tokens")

// DefaultTokens is the number of turns granted per month when no quota is configured.
const DefaultTokens = 100

func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
