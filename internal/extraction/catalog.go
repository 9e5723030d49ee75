package extraction

import (
	"fmt"
	"io"
	"strings"

	"github.com/cubomagico/memoria/internal/domain"
	"gopkg.in/yaml.v3"
)

// PatternEntry maps a memory type to the phrases that signal it. Keywords are
// Portuguese, Indicators are English synonyms. Weight is the base reliability
// of the type's textual signal.
type PatternEntry struct {
	Type       domain.MemoryType `yaml:"type" json:"type"`
	Keywords   []string          `yaml:"keywords" json:"keywords"`
	Indicators []string          `yaml:"indicators,omitempty" json:"indicators,omitempty"`
	Weight     float64           `yaml:"weight" json:"weight"`
}

// Terms returns keywords followed by indicators, the order text analysis
// scans them in.
func (p PatternEntry) Terms() []string {
	terms := make([]string, 0, len(p.Keywords)+len(p.Indicators))
	terms = append(terms, p.Keywords...)
	return append(terms, p.Indicators...)
}

// PatternCatalog is an ordered, immutable list of pattern entries. Text
// analysis visits entries in list order.
type PatternCatalog struct {
	entries []PatternEntry
	index   map[domain.MemoryType]int
}

func NewPatternCatalog(entries []PatternEntry) (*PatternCatalog, error) {
	c := &PatternCatalog{
		entries: make([]PatternEntry, 0, len(entries)),
		index:   make(map[domain.MemoryType]int, len(entries)),
	}
	for i, e := range entries {
		if !domain.ValidMemoryType(string(e.Type)) {
			return nil, fmt.Errorf("catalog entry %d: unknown memory type %q", i, e.Type)
		}
		if _, dup := c.index[e.Type]; dup {
			return nil, fmt.Errorf("catalog entry %d: duplicate memory type %q", i, e.Type)
		}
		if e.Weight <= 0 || e.Weight > 1 {
			return nil, fmt.Errorf("catalog entry %d (%s): weight must be within (0,1]", i, e.Type)
		}
		entry := PatternEntry{
			Type:       e.Type,
			Keywords:   normalizeTerms(e.Keywords),
			Indicators: normalizeTerms(e.Indicators),
			Weight:     e.Weight,
		}
		if len(entry.Keywords)+len(entry.Indicators) == 0 {
			return nil, fmt.Errorf("catalog entry %d (%s): no keywords", i, e.Type)
		}
		c.index[e.Type] = len(c.entries)
		c.entries = append(c.entries, entry)
	}
	return c, nil
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Entries returns a copy of the catalog entries in scan order.
func (c *PatternCatalog) Entries() []PatternEntry {
	out := make([]PatternEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *PatternCatalog) Lookup(t domain.MemoryType) (PatternEntry, bool) {
	i, ok := c.index[t]
	if !ok {
		return PatternEntry{}, false
	}
	return c.entries[i], true
}

type catalogFile struct {
	Patterns []PatternEntry `yaml:"patterns"`
}

// LoadCatalogYAML reads a catalog document of the form
//
//	patterns:
//	  - type: preference
//	    weight: 0.8
//	    keywords: [adoro, gosto]
func LoadCatalogYAML(r io.Reader) (*PatternCatalog, error) {
	var f catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return NewPatternCatalog(f.Patterns)
}

func (c *PatternCatalog) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(catalogFile{Patterns: c.entries}); err != nil {
		return err
	}
	return enc.Close()
}

// DefaultCatalog returns the built-in Portuguese catalog. language_style and
// context have no entry: they come only from channel heuristics.
func DefaultCatalog() *PatternCatalog {
	c, err := NewPatternCatalog(defaultPatterns)
	if err != nil {
		panic(err)
	}
	return c
}

var defaultPatterns = []PatternEntry{
	{
		Type:       domain.MemoryTypePreference,
		Keywords:   []string{"adoro", "adorei", "eu amo", "amei", "gosto", "prefiro", "curto muito", "favorito", "favorita"},
		Indicators: []string{"love", "prefer", "favorite"},
		Weight:     0.8,
	},
	{
		Type:       domain.MemoryTypeObjection,
		Keywords:   []string{"caro", "não tenho tempo", "não sei se funciona", "muito dinheiro", "desconfio", "não confio", "golpe", "duvido"},
		Indicators: []string{"expensive", "too much", "not sure", "scam"},
		Weight:     0.75,
	},
	{
		Type:       domain.MemoryTypeDesire,
		Keywords:   []string{"quero", "queria", "gostaria", "sonho", "desejo", "vontade de"},
		Indicators: []string{"want", "wish", "dream"},
		Weight:     0.75,
	},
	{
		Type:       domain.MemoryTypeTrigger,
		Keywords:   []string{"promoção", "desconto", "urgente", "última chance", "oferta", "bônus", "grátis", "gratuito"},
		Indicators: []string{"discount", "free", "limited"},
		Weight:     0.65,
	},
	{
		Type:       domain.MemoryTypePainPoint,
		Keywords:   []string{"problema", "dificuldade", "não consigo", "frustrado", "frustrada", "cansado de", "cansada de", "sofro", "travado", "travada"},
		Indicators: []string{"problem", "struggle", "stuck", "frustrated"},
		Weight:     0.8,
	},
	{
		Type:       domain.MemoryTypeHabit,
		Keywords:   []string{"sempre", "todo dia", "todos os dias", "costumo", "rotina", "toda semana", "geralmente"},
		Indicators: []string{"always", "every day", "usually", "routine"},
		Weight:     0.7,
	},
	{
		Type:       domain.MemoryTypeBelief,
		Keywords:   []string{"acredito", "acho que", "penso que", "tenho certeza", "na minha opinião", "creio"},
		Indicators: []string{"believe", "i think", "in my opinion"},
		Weight:     0.6,
	},
	{
		Type:       domain.MemoryTypeGoal,
		Keywords:   []string{"meta", "objetivo", "pretendo", "planejo", "alcançar", "conquistar"},
		Indicators: []string{"goal", "plan to", "achieve"},
		Weight:     0.85,
	},
	{
		Type:       domain.MemoryTypeFear,
		Keywords:   []string{"medo", "receio", "pavor", "preocupado", "preocupada", "ansioso", "ansiosa", "inseguro", "insegura"},
		Indicators: []string{"afraid", "fear", "worried", "scared"},
		Weight:     0.75,
	},
	{
		Type:       domain.MemoryTypeValue,
		Keywords:   []string{"importante pra mim", "importante para mim", "valorizo", "prioridade", "essencial", "qualidade", "família", "honestidade"},
		Indicators: []string{"matters to me", "important to me", "quality"},
		Weight:     0.7,
	},
	{
		Type:       domain.MemoryTypeConstraint,
		Keywords:   []string{"não posso", "só posso", "limite", "orçamento", "sem tempo", "no máximo"},
		Indicators: []string{"can't", "cannot", "budget"},
		Weight:     0.75,
	},
}
