package extraction

import (
	"strings"

	"github.com/cubomagico/memoria/internal/domain"
)

const summaryPrefixRunes = 20

// FindSimilar returns the first existing memory of the candidate's type that
// either shares a keyword with it (one containing the other, ignoring case)
// or whose summary contains the first 20 characters of the candidate's
// summary, or vice versa. Contradicted memories are skipped so only the
// current winner of a cluster is matched. There is no ranking.
func FindSimilar(c domain.MemoryCandidate, existing []domain.Memory) *domain.Memory {
	m, _ := similarFrom(c, existing, 0)
	return m
}

// similarFrom is FindSimilar starting at existing[start]. It also returns the
// index of the match, or -1.
func similarFrom(c domain.MemoryCandidate, existing []domain.Memory, start int) (*domain.Memory, int) {
	for i := start; i < len(existing); i++ {
		m := &existing[i]
		if m.Type != c.Type || m.IsContradicted {
			continue
		}
		if keywordsOverlap(c.Content.Keywords, m.Content.Keywords) ||
			summariesOverlap(c.Content.Summary, m.Content.Summary) {
			return m, i
		}
	}
	return nil, -1
}

func keywordsOverlap(a, b []string) bool {
	for _, ka := range a {
		ka = strings.ToLower(strings.TrimSpace(ka))
		if ka == "" {
			continue
		}
		for _, kb := range b {
			kb = strings.ToLower(strings.TrimSpace(kb))
			if kb == "" {
				continue
			}
			if strings.Contains(kb, ka) || strings.Contains(ka, kb) {
				return true
			}
		}
	}
	return false
}

func summariesOverlap(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}
	return strings.Contains(b, prefixRunes(a, summaryPrefixRunes)) ||
		strings.Contains(a, prefixRunes(b, summaryPrefixRunes))
}

func prefixRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
