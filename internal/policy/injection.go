// README: Prompt-injection heuristics applied to every user message before planning.
package policy

import "strings"

type Severity string

const (
	SeverityNone Severity = "none"
	SeverityLow  Severity = "low"
	SeverityHigh Severity = "high"
)

// Reason codes reported by DetectInjection.
const (
	ReasonIgnorePrevious   = "ignore_previous_instructions"
	ReasonRevealSystem     = "reveal_system_prompt"
	ReasonSecretSeeking    = "secret_seeking"
	ReasonOverrideRules    = "override_instructions"
	ReasonVendorBypass     = "vendor_bypass"
	RefusalMessage         = "I can't help with that request. I'm happy to help you plan, search for or book your travel."
	injectionScanMaxLength = 8000
)

type InjectionResult struct {
	Flagged  bool     `json:"flagged"`
	Reasons  []string `json:"reasons"`
	Severity Severity `json:"severity"`
}

var ignorePhrases = []string{
	"ignore previous",
	"ignore all previous",
	"ignore the previous",
	"ignore your previous",
	"disregard previous",
	"disregard all previous",
	"forget your instructions",
}

var secretPhrases = []string{
	"system prompt",
	"api key",
	"api_key",
	"apikey",
	"secret key",
	"client secret",
	"password",
	"credentials",
	"access token",
	"private key",
	"environment variable",
	"env var",
}

var vendorBypassPhrases = []string{
	"bypass the vendor",
	"bypass vendor",
	"bypass payment",
	"skip payment",
	"without paying",
	"without payment",
	"book directly with the supplier",
	"call the supplier api directly",
	"skip the confirmation",
	"skip confirmation",
	"bypass confirmation",
}

// DetectInjection runs lexical heuristics over text. Severity is high only when a
// secret-seeking or vendor-bypass reason fired.
func DetectInjection(text string) InjectionResult {
	if len(text) > injectionScanMaxLength {
		text = text[:injectionScanMaxLength]
	}
	lower := strings.ToLower(text)

	res := InjectionResult{Reasons: []string{}, Severity: SeverityNone}
	high := false

	if containsAny(lower, ignorePhrases) {
		res.Reasons = append(res.Reasons, ReasonIgnorePrevious)
	}
	if strings.Contains(lower, "reveal") && strings.Contains(lower, "system") {
		res.Reasons = append(res.Reasons, ReasonRevealSystem)
		high = true
	}
	if containsAny(lower, secretPhrases) {
		res.Reasons = append(res.Reasons, ReasonSecretSeeking)
		high = true
	}
	if strings.Contains(lower, "override") && strings.Contains(lower, "instruction") {
		res.Reasons = append(res.Reasons, ReasonOverrideRules)
	}
	if containsAny(lower, vendorBypassPhrases) {
		res.Reasons = append(res.Reasons, ReasonVendorBypass)
		high = true
	}

	if len(res.Reasons) == 0 {
		return res
	}
	res.Flagged = true
	res.Severity = SeverityLow
	if high {
		res.Severity = SeverityHigh
	}
	return res
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
