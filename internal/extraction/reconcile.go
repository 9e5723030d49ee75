package extraction

import (
	"fmt"
	"strings"

	"github.com/cubomagico/memoria/internal/domain"
)

const (
	reinforcementBoostMul = 0.2
	dedupKeyRunes         = 50
)

var negationMarkers = []string{"não", "nunca", "contra", "odeio", "detesto"}

// Reconcile classifies each candidate, in order, as a reinforcement of or a
// contradiction with the most similar existing memory, or as new. New
// candidates are deduplicated last. Reconcile describes mutations; it never
// performs them.
func Reconcile(candidates []domain.MemoryCandidate, existing []domain.Memory) *domain.ExtractionResult {
	result := domain.NewExtractionResult()
	var fresh []domain.MemoryCandidate

	for _, c := range candidates {
		match := settledMatch(c, existing)
		if match == nil {
			fresh = append(fresh, c)
			continue
		}
		if reason, conflict := Conflicts(c.Content, match.Content); conflict {
			result.Contradictions = append(result.Contradictions, domain.Contradiction{
				ExistingMemoryID: match.ID,
				NewMemory:        c,
				ConflictReason:   reason,
				ExistingLocked:   match.IsLocked,
			})
			continue
		}
		result.Reinforcements = append(result.Reinforcements, domain.Reinforcement{
			MemoryID:        match.ID,
			ConfidenceBoost: domain.ClampConfidence(c.Confidence * reinforcementBoostMul),
			NewEvidence:     c.Content.Summary,
		})
	}

	result.NewMemories = append(result.NewMemories, Deduplicate(fresh)...)
	return result
}

// settledMatch is FindSimilar, except that a locked memory the candidate
// conflicts with is passed over when a later memory of the cluster also
// matches. That later memory is the one inserted when the lock was honored,
// so repeated input reinforces it instead of inserting it again.
func settledMatch(c domain.MemoryCandidate, existing []domain.Memory) *domain.Memory {
	match, idx := similarFrom(c, existing, 0)
	for match != nil && match.IsLocked {
		if _, conflict := Conflicts(c.Content, match.Content); !conflict {
			break
		}
		next, nextIdx := similarFrom(c, existing, idx+1)
		if next == nil {
			break
		}
		match, idx = next, nextIdx
	}
	return match
}

// Conflicts reports whether two memory contents disagree: both carry a
// polarity and the polarities differ, or exactly one summary contains a
// negation marker. The relation is symmetric.
func Conflicts(a, b domain.MemoryContent) (string, bool) {
	if a.Polarity != "" && b.Polarity != "" && a.Polarity != b.Polarity {
		return fmt.Sprintf("polarity mismatch: %s vs %s", a.Polarity, b.Polarity), true
	}
	if hasNegation(a.Summary) != hasNegation(b.Summary) {
		return "negation mismatch", true
	}
	return "", false
}

func hasNegation(s string) bool {
	s = strings.ToLower(s)
	for _, m := range negationMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Deduplicate keeps the highest-confidence candidate for each
// (memory type, first 50 characters of summary) key. Survivors keep the
// position of the first candidate seen for their key; on equal confidence
// the earlier candidate wins.
func Deduplicate(candidates []domain.MemoryCandidate) []domain.MemoryCandidate {
	type key struct {
		t      domain.MemoryType
		prefix string
	}
	slot := make(map[key]int, len(candidates))
	out := make([]domain.MemoryCandidate, 0, len(candidates))
	for _, c := range candidates {
		k := key{t: c.Type, prefix: prefixRunes(c.Content.Summary, dedupKeyRunes)}
		i, seen := slot[k]
		if !seen {
			slot[k] = len(out)
			out = append(out, c)
			continue
		}
		if c.Confidence > out[i].Confidence {
			out[i] = c
		}
	}
	return out
}
