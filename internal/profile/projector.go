// Package profile projects a contact's memories into a CognitiveProfile. The
// projection is a pure aggregation: the same memory set and signal tallies
// always produce the same profile, regardless of input order.
package profile

import (
	"bytes"
	"math"
	"sort"
	"strings"

	"github.com/cubomagico/memoria/internal/domain"
)

const (
	clusterPrefixRunes = 20
	stylePrefix        = "estilo:"
)

// Scorer computes one aggregate statistic over a contact's memories. Inputs
// arrive in canonical order.
type Scorer interface {
	Score(memories []domain.Memory) float64
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(memories []domain.Memory) float64

func (f ScorerFunc) Score(memories []domain.Memory) float64 { return f(memories) }

// Projector holds the pluggable scoring functions. The zero value is not
// usable; use NewProjector.
type Projector struct {
	Confidence Scorer
	Entropy    Scorer
	Volatility Scorer
}

func NewProjector() *Projector {
	return &Projector{
		Confidence: ScorerFunc(ClusterConfidence),
		Entropy:    ScorerFunc(TypeEntropy),
		Volatility: ScorerFunc(ContradictionRatio),
	}
}

var defaultProjector = NewProjector()

// Project runs the default projector.
func Project(memories []domain.Memory, counts domain.SignalCounts) domain.CognitiveProfile {
	return defaultProjector.Project(memories, counts)
}

// Project builds the profile of the contact owning memories. Contradicted
// memories count toward volatility but not toward vectors or distribution.
// ComputedAt is left for the caller to stamp.
func (p *Projector) Project(memories []domain.Memory, counts domain.SignalCounts) domain.CognitiveProfile {
	sorted := canonical(memories)
	active := activeOnly(sorted)

	prof := domain.CognitiveProfile{
		TraitVector:       traitVector(active),
		IntentVector:      intentVector(active),
		TypeDistribution:  typeDistribution(active),
		SignalCounts:      copyCounts(counts),
		DominantChannel:   dominantChannel(counts),
		MemoryCount:       len(sorted),
		ActiveMemoryCount: len(active),
		ConfidenceScore:   unit(p.Confidence.Score(sorted)),
		EntropyScore:      unit(p.Entropy.Score(sorted)),
		VolatilityScore:   unit(p.Volatility.Score(sorted)),
	}
	prof.Fingerprint = Fingerprint(prof.TypeDistribution)
	if len(sorted) > 0 {
		prof.TenantID = sorted[0].TenantID
		prof.ProjectID = sorted[0].ProjectID
		prof.ContactID = sorted[0].ContactID
	}
	return prof
}

// EffectiveConfidence folds reinforcements into a memory's confidence, as if
// each reinforcement were an independent observation of the same strength.
func EffectiveConfidence(m domain.Memory) float64 {
	c := domain.ClampConfidence(m.Confidence)
	n := max(m.ReinforcementCount, 0)
	return 1 - math.Pow(1-c, float64(1+n))
}

// ClusterConfidence groups active memories into conclusions (same type and
// same first keyword, or same summary prefix when there are no keywords),
// combines each cluster's effective confidences with a noisy-OR and averages
// the clusters. Adding a corroborating memory to a cluster never lowers the
// score.
func ClusterConfidence(memories []domain.Memory) float64 {
	clusters := map[string]float64{}
	for _, m := range memories {
		if m.IsContradicted {
			continue
		}
		k := clusterKey(m)
		miss, ok := clusters[k]
		if !ok {
			miss = 1
		}
		clusters[k] = miss * (1 - EffectiveConfidence(m))
	}
	if len(clusters) == 0 {
		return 0
	}
	keys := make([]string, 0, len(clusters))
	for k := range clusters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sum := 0.0
	for _, k := range keys {
		sum += 1 - clusters[k]
	}
	return sum / float64(len(keys))
}

func clusterKey(m domain.Memory) string {
	anchor := ""
	if len(m.Content.Keywords) > 0 {
		anchor = strings.ToLower(m.Content.Keywords[0])
	} else {
		r := []rune(strings.ToLower(m.Content.Summary))
		anchor = string(r[:min(len(r), clusterPrefixRunes)])
	}
	return string(m.Type) + "|" + anchor
}

// TypeEntropy is the Shannon entropy of the active memories' type
// distribution, normalized by the entropy of a uniform distribution over all
// memory types.
func TypeEntropy(memories []domain.Memory) float64 {
	dist := typeDistribution(activeOnly(memories))
	h := 0.0
	for _, t := range domain.AllMemoryTypes {
		if p := dist[t]; p > 0 {
			h -= p * math.Log(p)
		}
	}
	return h / math.Log(float64(len(domain.AllMemoryTypes)))
}

// ContradictionRatio is the share of memories that were contradicted.
func ContradictionRatio(memories []domain.Memory) float64 {
	if len(memories) == 0 {
		return 0
	}
	n := 0
	for _, m := range memories {
		if m.IsContradicted {
			n++
		}
	}
	return float64(n) / float64(len(memories))
}

// Fingerprint lays a type distribution out as a vector indexed by
// domain.AllMemoryTypes, for similarity search between contacts.
func Fingerprint(dist map[domain.MemoryType]float64) []float32 {
	out := make([]float32, len(domain.AllMemoryTypes))
	for i, t := range domain.AllMemoryTypes {
		out[i] = float32(dist[t])
	}
	return out
}

// traitVector combines quiz traits (belief memories carrying a trait) and
// language style labels.
func traitVector(active []domain.Memory) map[string]float64 {
	misses := map[string]float64{}
	for _, m := range active {
		switch m.Type {
		case domain.MemoryTypeBelief:
			if name, ok := rawString(m, "trait"); ok {
				accumulate(misses, name, EffectiveConfidence(m))
			}
		case domain.MemoryTypeLanguageStyle:
			for _, label := range m.Content.Keywords {
				accumulate(misses, stylePrefix+strings.ToLower(label), EffectiveConfidence(m))
			}
		}
	}
	return noisyOr(misses)
}

// intentVector combines desires and goals, keyed by the quiz intent name when
// present and by the matched keyword otherwise.
func intentVector(active []domain.Memory) map[string]float64 {
	misses := map[string]float64{}
	for _, m := range active {
		if m.Type != domain.MemoryTypeDesire && m.Type != domain.MemoryTypeGoal {
			continue
		}
		name, ok := rawString(m, "intent")
		if !ok {
			if len(m.Content.Keywords) == 0 {
				continue
			}
			name = strings.ToLower(m.Content.Keywords[0])
		}
		accumulate(misses, name, EffectiveConfidence(m))
	}
	return noisyOr(misses)
}

func accumulate(misses map[string]float64, key string, c float64) {
	miss, ok := misses[key]
	if !ok {
		miss = 1
	}
	misses[key] = miss * (1 - c)
}

func noisyOr(misses map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(misses))
	for k, miss := range misses {
		out[k] = unit(1 - miss)
	}
	return out
}

func rawString(m domain.Memory, key string) (string, bool) {
	v, ok := m.Content.RawData[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func typeDistribution(active []domain.Memory) map[domain.MemoryType]float64 {
	dist := make(map[domain.MemoryType]float64, len(domain.AllMemoryTypes))
	if len(active) == 0 {
		return dist
	}
	counts := map[domain.MemoryType]int{}
	for _, m := range active {
		counts[m.Type]++
	}
	for t, n := range counts {
		dist[t] = float64(n) / float64(len(active))
	}
	return dist
}

func dominantChannel(counts domain.SignalCounts) domain.Source {
	var best domain.Source
	bestN := 0
	for src, n := range counts {
		if n > bestN || (n == bestN && n > 0 && src < best) {
			best, bestN = src, n
		}
	}
	return best
}

func copyCounts(counts domain.SignalCounts) domain.SignalCounts {
	out := make(domain.SignalCounts, len(counts))
	for k, v := range counts {
		out[k] = v
	}
	return out
}

// canonical returns memories ordered by id so floating-point folds do not
// depend on the caller's ordering.
func canonical(memories []domain.Memory) []domain.Memory {
	out := make([]domain.Memory, len(memories))
	copy(out, memories)
	sort.SliceStable(out, func(i, j int) bool {
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out
}

func activeOnly(memories []domain.Memory) []domain.Memory {
	out := make([]domain.Memory, 0, len(memories))
	for _, m := range memories {
		if !m.IsContradicted {
			out = append(out, m)
		}
	}
	return out
}

func unit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return domain.ClampConfidence(v)
}
