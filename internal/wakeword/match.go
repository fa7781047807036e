package wakeword

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/edenlabs/eden/internal/models"
)

// thresholdFor maps sensitivity to the minimum fuzzy similarity a token
// must reach to count as a wake phrase.
func thresholdFor(s models.Sensitivity) float64 {
	switch s {
	case models.SensitivityLow:
		return 0.60
	case models.SensitivityHigh:
		return 0.85
	default:
		return 0.75
	}
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// matchPhrase tests phrases in declaration order against a normalized
// transcript: exact match, substring containment, then fuzzy similarity
// per token. The first matching phrase wins.
func matchPhrase(normalized string, phrases []string, threshold float64) (string, bool) {
	tokens := strings.Fields(normalized)

	for _, raw := range phrases {
		phrase := normalize(raw)
		if phrase == "" {
			continue
		}
		if normalized == phrase {
			return raw, true
		}
		if strings.Contains(normalized, phrase) {
			return raw, true
		}
		for _, token := range tokens {
			if similarity(token, phrase) >= threshold {
				return raw, true
			}
		}
	}
	return "", false
}

// similarity is 1 − editDistance/maxLen with adjacent transpositions
// counting as a single edit, so a swapped pair like "edne"/"eden" scores
// 0.75 rather than 0.5. The plain Levenshtein distance is cheap to
// compute and bounds the transposition-aware distance from above, so it
// serves as a pre-filter before the quadratic pass.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1
	}

	lev := levenshtein.ComputeDistance(a, b)
	if lev == 0 {
		return 1
	}
	// Each transposition saves at most one edit, so the real distance is
	// at least ceil(lev/2). If even that cannot beat a plain miss, skip
	// the full computation.
	if best := 1 - float64((lev+1)/2)/float64(maxLen); best <= 0 {
		return 1 - float64(lev)/float64(maxLen)
	}

	return 1 - float64(osaDistance(ra, rb))/float64(maxLen)
}

// osaDistance is the optimal string alignment distance: Levenshtein plus
// adjacent transposition as one edit, without the full Damerau
// unrestricted-transposition machinery.
func osaDistance(a, b []rune) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev2 := make([]int, lb+1)
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			d := curr[j-1] + 1
			if v := prev[j] + 1; v < d {
				d = v
			}
			if v := prev[j-1] + cost; v < d {
				d = v
			}
			if i > 1 && j > 1 && a[i-1] == b[j-2] && a[i-2] == b[j-1] {
				if v := prev2[j-2] + 1; v < d {
					d = v
				}
			}
			curr[j] = d
		}
		prev2, prev, curr = prev, curr, prev2
	}
	return prev[lb]
}
