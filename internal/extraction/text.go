package extraction

import (
	"strings"
	"unicode/utf8"

	"github.com/cubomagico/memoria/internal/domain"
)

const (
	windowBefore      = 50
	windowAfter       = 100
	maxSummaryRunes   = 100
	textConfidenceMul = 0.7
)

var positiveWords = []string{
	"adoro", "adorei", "eu amo", "amei", "gosto", "gostei", "ótimo", "ótima", "excelente",
	"maravilhoso", "maravilhosa", "incrível", "perfeito", "perfeita", "feliz", "satisfeito",
	"satisfeita", "recomendo", "love", "great", "excellent", "amazing", "happy",
}

var negativeWords = []string{
	"caro", "odeio", "detesto", "ruim", "péssimo", "péssima", "horrível", "problema", "difícil",
	"dificuldade", "frustrado", "frustrada", "medo", "não gosto", "decepcionado", "decepcionada",
	"reclamação", "hate", "terrible", "expensive", "awful",
}

// origin carries provenance from an analyzer into the candidates it emits.
type origin struct {
	source     domain.Source
	sourceID   string
	sourceName string
}

func (o origin) candidate(t domain.MemoryType, content domain.MemoryContent, confidence float64) domain.MemoryCandidate {
	return domain.MemoryCandidate{
		Type:       t,
		Content:    content,
		Confidence: domain.ClampConfidence(confidence),
		Source:     o.source,
		SourceID:   o.sourceID,
		SourceName: o.sourceName,
	}
}

// analyzeText scans text once per catalog entry, in catalog order, and emits
// at most one candidate per memory type: the first term that occurs wins.
func analyzeText(catalog *PatternCatalog, text string, o origin) []domain.MemoryCandidate {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	orig := []rune(text)
	lower := []rune(strings.ToLower(text))
	if len(lower) != len(orig) {
		// Lowercasing is rune-for-rune for the scripts we handle; fall back to
		// the lowered text for summaries if it ever is not.
		orig = lower
	}
	lowerStr := string(lower)

	var out []domain.MemoryCandidate
	for _, entry := range catalog.entries {
		for _, term := range entry.Terms() {
			pos := runeIndex(lowerStr, term)
			if pos < 0 {
				continue
			}
			start := max(0, pos-windowBefore)
			end := min(len(orig), pos+windowAfter)
			out = append(out, o.candidate(entry.Type, domain.MemoryContent{
				Summary:  truncate(strings.TrimSpace(string(orig[start:end])), maxSummaryRunes),
				Keywords: []string{term},
				Polarity: polarityAt(lower[start:end], pos-start, utf8.RuneCountInString(term)),
			}, entry.Weight*textConfidenceMul))
			break
		}
	}
	return out
}

// runeIndex is strings.Index measured in runes.
func runeIndex(s, substr string) int {
	i := strings.Index(s, substr)
	if i < 0 {
		return -1
	}
	return utf8.RuneCountInString(s[:i])
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// polarityAt picks the sentiment word closest to the matched term inside the
// window. A word overlapping the match is at distance zero; among equally
// close words the longer one wins, then negative over positive. With no
// sentiment word the polarity is neutral.
func polarityAt(window []rune, matchPos, matchLen int) domain.Polarity {
	text := string(window)
	best := domain.PolarityNeutral
	bestDist, bestLen := -1, 0

	consider := func(words []string, p domain.Polarity) {
		for _, w := range words {
			wl := utf8.RuneCountInString(w)
			for _, pos := range runeIndexes(text, w) {
				dist := gap(pos, pos+wl, matchPos, matchPos+matchLen)
				better := bestDist < 0 || dist < bestDist ||
					(dist == bestDist && wl > bestLen) ||
					(dist == bestDist && wl == bestLen && p == domain.PolarityNegative)
				if better {
					best, bestDist, bestLen = p, dist, wl
				}
			}
		}
	}
	consider(positiveWords, domain.PolarityPositive)
	consider(negativeWords, domain.PolarityNegative)
	return best
}

func runeIndexes(s, substr string) []int {
	var out []int
	offset := 0
	for {
		i := strings.Index(s[offset:], substr)
		if i < 0 {
			return out
		}
		out = append(out, utf8.RuneCountInString(s[:offset+i]))
		offset += i + len(substr)
	}
}

// gap is the distance in runes between [a0,a1) and [b0,b1), zero if they overlap.
func gap(a0, a1, b0, b1 int) int {
	switch {
	case a1 <= b0:
		return b0 - a1
	case b1 <= a0:
		return a0 - b1
	}
	return 0
}
