package extraction

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cubomagico/memoria/internal/domain"
)

const (
	traitThreshold  = 0.6
	traitTopN       = 3
	traitWeight     = 0.9
	intentThreshold = 0.5
	intentTopN      = 2
	intentWeight    = 0.85

	scaleMax      = 10.0
	scaleHigh     = 0.7
	scaleLow      = 0.3
	scaleWeight   = 0.8
	minSurveyText = 10

	sentimentHigh   = 0.7
	sentimentLow    = 0.3
	sentimentWeight = 0.6
	socialIntentMin = 0.7
	socialIntentMul = 0.7

	purchasePreferenceConfidence = 0.9
	purchaseHabitConfidence      = 0.7
	purchaseContextConfidence    = 0.85

	styleBaseConfidence = 0.5
	styleMaxConfidence  = 0.9
	detailedMinRunes    = 200
	directMaxRunes      = 50
)

func (e *Engine) quizCandidates(ev domain.QuizEvent) []domain.MemoryCandidate {
	o := origin{source: domain.SourceQuiz, sourceID: ev.QuizID, sourceName: ev.QuizName}

	var out []domain.MemoryCandidate
	for _, a := range ev.Answers {
		if strings.TrimSpace(a.Answer) == "" {
			continue
		}
		out = append(out, analyzeText(e.catalog, fmt.Sprintf("%s: %s", a.Question, a.Answer), o)...)
	}

	for _, t := range topScores(ev.Traits, traitThreshold, traitTopN) {
		out = append(out, o.candidate(domain.MemoryTypeBelief, domain.MemoryContent{
			Summary:  fmt.Sprintf("Traço %s predominante (%.0f%%)", t.name, t.value*100),
			Keywords: []string{t.name},
			RawData:  map[string]any{"trait": t.name, "score": t.value},
		}, t.value*traitWeight))
	}

	for _, i := range topScores(ev.Intents, intentThreshold, intentTopN) {
		out = append(out, o.candidate(domain.MemoryTypeDesire, domain.MemoryContent{
			Summary:  fmt.Sprintf("Intenção de %s (%.0f%%)", i.name, i.value*100),
			Keywords: []string{i.name},
			RawData:  map[string]any{"intent": i.name, "score": i.value},
		}, i.value*intentWeight))
	}
	return out
}

type namedScore struct {
	name  string
	value float64
}

// topScores returns up to n entries strictly above threshold, highest first.
// Ties are broken by name so the result does not depend on map order.
func topScores(scores map[string]float64, threshold float64, n int) []namedScore {
	var out []namedScore
	for name, v := range scores {
		if v > threshold && strings.TrimSpace(name) != "" {
			out = append(out, namedScore{name: name, value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].value != out[j].value {
			return out[i].value > out[j].value
		}
		return out[i].name < out[j].name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (e *Engine) surveyCandidates(ev domain.SurveyEvent) []domain.MemoryCandidate {
	sourceID := ev.ResponseID
	if sourceID == "" {
		sourceID = ev.SurveyID
	}
	o := origin{source: domain.SourceSurvey, sourceID: sourceID, sourceName: ev.SurveyName}

	var out []domain.MemoryCandidate
	for _, a := range ev.Answers {
		if a.QuestionType == domain.QuestionTypeScale {
			if c, ok := scaleCandidate(a, o); ok {
				out = append(out, c)
			}
			continue
		}
		text := strings.TrimSpace(a.Answer.Text)
		if utf8.RuneCountInString(text) > minSurveyText {
			out = append(out, analyzeText(e.catalog, text, o)...)
		}
	}
	return out
}

func scaleCandidate(a domain.SurveyAnswer, o origin) (domain.MemoryCandidate, bool) {
	if a.Answer.Number == nil {
		return domain.MemoryCandidate{}, false
	}
	raw := *a.Answer.Number
	score := raw / scaleMax

	var keywords []string
	if q := strings.ToLower(strings.TrimSpace(a.Question)); q != "" {
		keywords = []string{q}
	}
	content := domain.MemoryContent{
		Keywords: keywords,
		Context:  a.Question,
		RawData:  map[string]any{"question_id": a.QuestionID, "answer": raw, "normalized": score},
	}

	switch {
	case score >= scaleHigh:
		content.Summary = fmt.Sprintf("Avaliação alta (%g/10): %s", raw, a.Question)
		content.Intensity = &score
		return o.candidate(domain.MemoryTypePreference, content, score*scaleWeight), true
	case score <= scaleLow:
		inv := 1 - score
		content.Summary = fmt.Sprintf("Avaliação baixa (%g/10): %s", raw, a.Question)
		content.Intensity = &inv
		return o.candidate(domain.MemoryTypePainPoint, content, inv*scaleWeight), true
	}
	return domain.MemoryCandidate{}, false
}

func (e *Engine) socialCandidates(ev domain.SocialCommentEvent) []domain.MemoryCandidate {
	o := origin{source: domain.SourceSocial, sourceID: ev.CommentID, sourceName: ev.Platform}
	out := analyzeText(e.catalog, ev.Text, o)
	excerpt := truncate(strings.TrimSpace(ev.Text), 80)

	if s := ev.SentimentScore; s != nil {
		switch {
		case *s > sentimentHigh:
			out = append(out, o.candidate(domain.MemoryTypePreference, domain.MemoryContent{
				Summary:  "Sentimento positivo em comentário: " + excerpt,
				Polarity: domain.PolarityPositive,
				RawData:  map[string]any{"sentiment_score": *s},
			}, *s*sentimentWeight))
		case *s < sentimentLow:
			out = append(out, o.candidate(domain.MemoryTypeObjection, domain.MemoryContent{
				Summary:  "Sentimento negativo em comentário: " + excerpt,
				Polarity: domain.PolarityNegative,
				RawData:  map[string]any{"sentiment_score": *s},
			}, (1-*s)*sentimentWeight))
		}
	}

	if i := ev.IntentScore; i != nil && *i > socialIntentMin {
		out = append(out, o.candidate(domain.MemoryTypeDesire, domain.MemoryContent{
			Summary: "Alta intenção de compra em comentário: " + excerpt,
			RawData: map[string]any{"intent_score": *i},
		}, *i*socialIntentMul))
	}
	return out
}

func (e *Engine) purchaseCandidates(ev domain.PurchaseEvent) []domain.MemoryCandidate {
	item := ev.ItemName()
	o := origin{source: domain.SourcePurchase, sourceID: ev.TransactionID, sourceName: item}

	out := []domain.MemoryCandidate{
		o.candidate(domain.MemoryTypePreference, domain.MemoryContent{
			Summary:  "Comprou " + item,
			Details:  ev.OfferName,
			Keywords: []string{strings.ToLower(item)},
			Polarity: domain.PolarityPositive,
			RawData: map[string]any{
				"product_name": ev.ProductName,
				"offer_name":   ev.OfferName,
				"total_price":  ev.TotalPrice,
			},
		}, purchasePreferenceConfidence),
	}

	if method := strings.TrimSpace(ev.PaymentMethod); method != "" {
		out = append(out, o.candidate(domain.MemoryTypeHabit, domain.MemoryContent{
			Summary:  "Paga com " + method,
			Keywords: []string{strings.ToLower(method)},
		}, purchaseHabitConfidence))
	}

	tier := priceTier(ev.TotalPrice)
	kind := "Recompra"
	if ev.IsFirstPurchase {
		kind = "Primeira compra"
	}
	billing := "avulsa"
	if ev.IsRecurring {
		billing = "recorrente"
	}
	out = append(out, o.candidate(domain.MemoryTypeContext, domain.MemoryContent{
		Summary:  fmt.Sprintf("Compra %s de %s", billing, tier),
		Details:  fmt.Sprintf("%s, %s, valor %.2f %s", kind, tier, ev.TotalPrice, currencyOrDefault(ev.Currency)),
		Keywords: []string{tier},
		RawData: map[string]any{
			"price_tier":        tier,
			"is_first_purchase": ev.IsFirstPurchase,
			"is_recurring":      ev.IsRecurring,
		},
	}, purchaseContextConfidence))
	return out
}

func priceTier(price float64) string {
	switch {
	case price == 0:
		return "produto gratuito"
	case price < 100:
		return "baixo ticket"
	case price < 1000:
		return "médio ticket"
	}
	return "alto ticket"
}

func currencyOrDefault(c string) string {
	if c == "" {
		return "BRL"
	}
	return strings.ToUpper(c)
}

func (e *Engine) chatCandidates(ev domain.ChatEvent) []domain.MemoryCandidate {
	if ev.Direction != domain.DirectionInbound {
		return nil
	}
	o := origin{source: domain.SourceChat, sourceID: ev.MessageID, sourceName: ev.ConversationID}
	out := analyzeText(e.catalog, ev.Text, o)
	if c, ok := languageStyle(ev.Text, o); ok {
		out = append(out, c)
	}
	return out
}

var formalWords = map[string]bool{
	"senhor": true, "senhora": true, "prezado": true, "prezada": true,
	"cordialmente": true, "atenciosamente": true, "poderia": true, "vossa": true,
}

var formalPhrases = []string{"por gentileza", "por obséquio", "gostaria de solicitar"}

var informalWords = map[string]bool{
	"vc": true, "vcs": true, "blz": true, "kkk": true, "kkkk": true, "rs": true, "rsrs": true,
	"tb": true, "tbm": true, "pq": true, "mano": true, "tá": true, "né": true, "valeu": true,
	"beleza": true, "oi": true, "opa": true, "show": true,
}

// languageStyle labels the writing style of a message. Each characteristic
// adds to a 0.5 base confidence, capped at 0.9.
func languageStyle(text string, o origin) (domain.MemoryCandidate, bool) {
	lower := strings.ToLower(text)
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	formal, informal := false, false
	for _, tok := range tokens {
		formal = formal || formalWords[tok]
		informal = informal || informalWords[tok] || strings.HasPrefix(tok, "kkk")
	}
	for _, p := range formalPhrases {
		formal = formal || strings.Contains(lower, p)
	}

	var labels []string
	confidence := styleBaseConfidence
	if formal {
		labels = append(labels, "formal")
		confidence += 0.1
	}
	if informal {
		labels = append(labels, "informal")
		confidence += 0.1
	}
	if hasEmoji(text) {
		labels = append(labels, "usa emojis")
		confidence += 0.05
	}
	switch n := utf8.RuneCountInString(strings.TrimSpace(text)); {
	case n > detailedMinRunes:
		labels = append(labels, "detailista")
		confidence += 0.05
	case n < directMaxRunes:
		labels = append(labels, "direto")
		confidence += 0.05
	}
	if strings.Contains(text, "?") {
		labels = append(labels, "inquisitivo")
		confidence += 0.05
	}

	if len(labels) == 0 {
		return domain.MemoryCandidate{}, false
	}
	return o.candidate(domain.MemoryTypeLanguageStyle, domain.MemoryContent{
		Summary:  "Estilo de comunicação: " + strings.Join(labels, ", "),
		Keywords: labels,
		Polarity: domain.PolarityNeutral,
	}, min(confidence, styleMaxConfidence)), true
}

func hasEmoji(s string) bool {
	for _, r := range s {
		switch {
		case r >= 0x1F300 && r <= 0x1FAFF,
			r >= 0x2600 && r <= 0x27BF,
			r >= 0x1F1E6 && r <= 0x1F1FF:
			return true
		}
	}
	return false
}
