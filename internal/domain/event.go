package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidEvent = errors.New("invalid event")

// ValidationError names the offending field of a malformed event.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidEvent }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

type Channel string

const (
	ChannelQuiz     Channel = "quiz"
	ChannelSurvey   Channel = "survey"
	ChannelSocial   Channel = "social"
	ChannelPurchase Channel = "purchase"
	ChannelChat     Channel = "chat"
)

func (c Channel) Source() Source {
	switch c {
	case ChannelQuiz:
		return SourceQuiz
	case ChannelSurvey:
		return SourceSurvey
	case ChannelSocial:
		return SourceSocial
	case ChannelPurchase:
		return SourcePurchase
	case ChannelChat:
		return SourceChat
	}
	return SourceBehavior
}

// Event is one behavioral signal about a contact. The set of implementations
// is closed: QuizEvent, SurveyEvent, SocialCommentEvent, PurchaseEvent and
// ChatEvent.
type Event interface {
	Channel() Channel
	Contact() uuid.UUID
	Validate() error
	isEvent()
}

// NewEvent returns a pointer to the zero value of the channel's event type,
// ready to be unmarshalled into.
func NewEvent(channel Channel) (Event, error) {
	switch channel {
	case ChannelQuiz:
		return &QuizEvent{}, nil
	case ChannelSurvey:
		return &SurveyEvent{}, nil
	case ChannelSocial:
		return &SocialCommentEvent{}, nil
	case ChannelPurchase:
		return &PurchaseEvent{}, nil
	case ChannelChat:
		return &ChatEvent{}, nil
	}
	return nil, invalid("channel", fmt.Sprintf("%q is not supported", channel))
}

// DecodeEvent parses a JSON payload into the channel's event type and
// validates it.
func DecodeEvent(channel Channel, data []byte) (Event, error) {
	ev, err := NewEvent(channel)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

// DecodeEventFor is DecodeEvent for a payload addressed to a known contact,
// such as an HTTP path or a queue envelope. A payload without contact_id
// takes contactID; a payload naming a different contact is invalid.
func DecodeEventFor(channel Channel, data []byte, contactID uuid.UUID) (Event, error) {
	ev, err := NewEvent(channel)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if contactID != uuid.Nil {
		if err := bindContact(ev, contactID); err != nil {
			return nil, err
		}
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

func bindContact(ev Event, contactID uuid.UUID) error {
	var target *uuid.UUID
	switch v := ev.(type) {
	case *QuizEvent:
		target = &v.ContactID
	case *SurveyEvent:
		target = &v.ContactID
	case *SocialCommentEvent:
		target = &v.ContactID
	case *PurchaseEvent:
		target = &v.ContactID
	case *ChatEvent:
		target = &v.ContactID
	default:
		return invalid("event", "has an unsupported type")
	}
	switch *target {
	case uuid.Nil:
		*target = contactID
	case contactID:
	default:
		return invalid("contact_id", "does not match the addressed contact")
	}
	return nil
}

func validUnit(field string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || *v < 0 || *v > 1 {
		return invalid(field, "must be within [0,1]")
	}
	return nil
}

type QuizAnswer struct {
	QuestionID string `json:"question_id,omitempty"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
}

type QuizEvent struct {
	QuizID    string             `json:"quiz_id"`
	QuizName  string             `json:"quiz_name,omitempty"`
	ContactID uuid.UUID          `json:"contact_id"`
	Answers   []QuizAnswer       `json:"answers"`
	Traits    map[string]float64 `json:"traits_vector,omitempty"`
	Intents   map[string]float64 `json:"intent_vector,omitempty"`
}

func (QuizEvent) Channel() Channel     { return ChannelQuiz }
func (e QuizEvent) Contact() uuid.UUID { return e.ContactID }
func (QuizEvent) isEvent()             {}

func (e QuizEvent) Validate() error {
	if strings.TrimSpace(e.QuizID) == "" {
		return invalid("quiz_id", "is required")
	}
	if e.ContactID == uuid.Nil {
		return invalid("contact_id", "is required")
	}
	for name, v := range e.Traits {
		if err := validUnit("traits_vector."+name, &v); err != nil {
			return err
		}
	}
	for name, v := range e.Intents {
		if err := validUnit("intent_vector."+name, &v); err != nil {
			return err
		}
	}
	return nil
}

const QuestionTypeScale = "scale"

// AnswerValue holds a survey answer that arrives either as a number or as
// text. Numeric strings are read as numbers.
type AnswerValue struct {
	Number *float64
	Text   string
}

func NumberAnswer(n float64) AnswerValue { return AnswerValue{Number: &n} }

func TextAnswer(s string) AnswerValue { return AnswerValue{Text: s} }

func (a *AnswerValue) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		a.Number = &n
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("answer must be a number or a string")
	}
	a.Text = s
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		a.Number = &f
	}
	return nil
}

func (a AnswerValue) MarshalJSON() ([]byte, error) {
	if a.Number != nil && a.Text == "" {
		return json.Marshal(*a.Number)
	}
	return json.Marshal(a.Text)
}

type SurveyAnswer struct {
	QuestionID   string      `json:"question_id,omitempty"`
	Question     string      `json:"question"`
	QuestionType string      `json:"question_type"`
	Answer       AnswerValue `json:"answer"`
}

type SurveyEvent struct {
	SurveyID   string         `json:"survey_id"`
	SurveyName string         `json:"survey_name,omitempty"`
	ResponseID string         `json:"response_id,omitempty"`
	ContactID  uuid.UUID      `json:"contact_id"`
	Answers    []SurveyAnswer `json:"answers"`
}

func (SurveyEvent) Channel() Channel     { return ChannelSurvey }
func (e SurveyEvent) Contact() uuid.UUID { return e.ContactID }
func (SurveyEvent) isEvent()             {}

func (e SurveyEvent) Validate() error {
	if strings.TrimSpace(e.SurveyID) == "" {
		return invalid("survey_id", "is required")
	}
	if e.ContactID == uuid.Nil {
		return invalid("contact_id", "is required")
	}
	for i, a := range e.Answers {
		if a.QuestionType != QuestionTypeScale {
			continue
		}
		field := fmt.Sprintf("answers[%d].answer", i)
		if a.Answer.Number == nil {
			return invalid(field, "must be numeric for scale questions")
		}
		if n := *a.Answer.Number; math.IsNaN(n) || n < 0 || n > 10 {
			return invalid(field, "must be within [0,10] for scale questions")
		}
	}
	return nil
}

type SocialCommentEvent struct {
	CommentID      string    `json:"comment_id,omitempty"`
	ContactID      uuid.UUID `json:"contact_id"`
	Platform       string    `json:"platform,omitempty"`
	PostID         string    `json:"post_id,omitempty"`
	Text           string    `json:"text"`
	SentimentScore *float64  `json:"sentiment_score,omitempty"`
	IntentScore    *float64  `json:"intent_score,omitempty"`
}

func (SocialCommentEvent) Channel() Channel     { return ChannelSocial }
func (e SocialCommentEvent) Contact() uuid.UUID { return e.ContactID }
func (SocialCommentEvent) isEvent()             {}

func (e SocialCommentEvent) Validate() error {
	if e.ContactID == uuid.Nil {
		return invalid("contact_id", "is required")
	}
	if strings.TrimSpace(e.Text) == "" {
		return invalid("text", "is required")
	}
	if err := validUnit("sentiment_score", e.SentimentScore); err != nil {
		return err
	}
	return validUnit("intent_score", e.IntentScore)
}

type PurchaseEvent struct {
	TransactionID   string    `json:"transaction_id,omitempty"`
	ContactID       uuid.UUID `json:"contact_id"`
	ProductName     string    `json:"product_name,omitempty"`
	OfferName       string    `json:"offer_name,omitempty"`
	PaymentMethod   string    `json:"payment_method,omitempty"`
	TotalPrice      float64   `json:"total_price"`
	Currency        string    `json:"currency,omitempty"`
	IsFirstPurchase bool      `json:"is_first_purchase"`
	IsRecurring     bool      `json:"is_recurring"`
}

func (PurchaseEvent) Channel() Channel     { return ChannelPurchase }
func (e PurchaseEvent) Contact() uuid.UUID { return e.ContactID }
func (PurchaseEvent) isEvent()             {}

func (e PurchaseEvent) Validate() error {
	if e.ContactID == uuid.Nil {
		return invalid("contact_id", "is required")
	}
	if strings.TrimSpace(e.ProductName) == "" && strings.TrimSpace(e.OfferName) == "" {
		return invalid("product_name", "or offer_name is required")
	}
	if math.IsNaN(e.TotalPrice) || e.TotalPrice < 0 {
		return invalid("total_price", "must not be negative")
	}
	return nil
}

// ItemName is the product name, falling back to the offer name.
func (e PurchaseEvent) ItemName() string {
	if name := strings.TrimSpace(e.ProductName); name != "" {
		return name
	}
	return strings.TrimSpace(e.OfferName)
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type ChatEvent struct {
	MessageID      string    `json:"message_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	ContactID      uuid.UUID `json:"contact_id"`
	Direction      Direction `json:"direction"`
	Text           string    `json:"text"`
}

func (ChatEvent) Channel() Channel     { return ChannelChat }
func (e ChatEvent) Contact() uuid.UUID { return e.ContactID }
func (ChatEvent) isEvent()             {}

func (e ChatEvent) Validate() error {
	if e.ContactID == uuid.Nil {
		return invalid("contact_id", "is required")
	}
	switch e.Direction {
	case DirectionInbound:
		if strings.TrimSpace(e.Text) == "" {
			return invalid("text", "is required for inbound messages")
		}
	case DirectionOutbound:
	default:
		return invalid("direction", "must be inbound or outbound")
	}
	return nil
}
