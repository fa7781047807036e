package orchestrator

import (
	"regexp"
	"strings"

	"github.com/edenlabs/eden/internal/models"
)

// shortQueryLength is the character count below which a query defaults
// to fast mode.
const shortQueryLength = 30

// Representative pattern sets; the precedence order is the contract, the
// exact wording is locale-specific.
var (
	greetingPattern = regexp.MustCompile(`^(hi|hey|hello|yo|howdy|good (morning|afternoon|evening)|thanks|thank you)\b`)

	deepQuestionPattern = regexp.MustCompile(`\b(explain|why|how does|how do|what is the difference|compare|in detail|walk me through)\b`)
)

// determineMode picks the response mode for a query. Precedence: an
// explicit force wins outright; then greeting, short message, and a
// strong memory match each select fast; a deep question selects
// detailed; everything else defaults to fast.
func determineMode(query string, force models.Mode, bestSimilarity, fastModeThreshold float64) models.Mode {
	if force != "" {
		return force
	}

	normalized := strings.ToLower(strings.TrimSpace(query))
	if greetingPattern.MatchString(normalized) {
		return models.ModeFast
	}
	if len(normalized) < shortQueryLength {
		return models.ModeFast
	}
	if bestSimilarity >= fastModeThreshold {
		return models.ModeFast
	}
	if deepQuestionPattern.MatchString(normalized) {
		return models.ModeDetailed
	}
	return models.ModeFast
}

// fallbackFor is the localized response used when generation fails. The
// failure never propagates past the orchestrator; the conversation gets
// a mode-appropriate apology instead.
func fallbackFor(mode models.Mode) string {
	switch mode {
	case models.ModeDetailed:
		return "I ran into a problem putting together a full answer just now. Nothing was lost on your side; please ask again and I'll give it another go."
	case models.ModeProactive:
		return "Just checking in. I had trouble composing a proper note, but I'm here if you need anything."
	default:
		return "Sorry, I couldn't answer that just now. Please try again."
	}
}
