package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/cubomagico/memoria/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProcessor struct {
	err   error
	calls []domain.Event
}

func (s *stubProcessor) Process(ctx context.Context, tenantID, projectID uuid.UUID, ev domain.Event) (*service.Outcome, error) {
	s.calls = append(s.calls, ev)
	if s.err != nil {
		return nil, s.err
	}
	return &service.Outcome{Result: domain.NewExtractionResult()}, nil
}

func newTestConsumer(p Processor) *Consumer {
	return NewConsumer(nil, p, Config{Stream: "SIGNALS", Durable: "test", MaxDeliver: 3}, zap.NewNop())
}

func payload(t *testing.T, contactInEvent bool) (uuid.UUID, []byte) {
	t.Helper()
	contact := uuid.New()
	event := `{"text":"Eu adoro o produto","direction":"inbound"}`
	if contactInEvent {
		event = fmt.Sprintf(`{"contact_id":%q,"text":"Eu adoro o produto","direction":"inbound"}`, contact)
	}
	data := fmt.Sprintf(`{"tenant_id":%q,"project_id":%q,"contact_id":%q,"event":%s}`,
		uuid.New(), uuid.New(), contact, event)
	return contact, []byte(data)
}

func TestDecodeEnvelopeBindsContact(t *testing.T) {
	contact, data := payload(t, false)
	env, ev, err := DecodeEnvelope("signals.chat", data)
	require.NoError(t, err)
	assert.Equal(t, contact, ev.Contact())
	assert.Equal(t, domain.ChannelChat, ev.Channel())
	assert.NotEqual(t, uuid.Nil, env.TenantID)
}

func TestDecodeEnvelopeRejectsMismatchedContact(t *testing.T) {
	data := fmt.Sprintf(`{"tenant_id":%q,"project_id":%q,"contact_id":%q,"event":{"contact_id":%q,"text":"oi","direction":"inbound"}}`,
		uuid.New(), uuid.New(), uuid.New(), uuid.New())
	_, _, err := DecodeEnvelope("signals.chat", []byte(data))
	assert.True(t, errors.Is(err, domain.ErrInvalidEvent))
}

func TestDecodeEnvelopeErrors(t *testing.T) {
	_, valid := payload(t, true)
	tests := []struct {
		name    string
		subject string
		data    string
	}{
		{"not json", "signals.chat", "{"},
		{"missing tenant", "signals.chat", fmt.Sprintf(`{"project_id":%q,"event":{}}`, uuid.New())},
		{"missing event", "signals.chat", fmt.Sprintf(`{"tenant_id":%q,"project_id":%q}`, uuid.New(), uuid.New())},
		{"unknown channel", "signals.fax", string(valid)},
		{"no channel", "signals.", string(valid)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeEnvelope(tt.subject, []byte(tt.data))
			assert.True(t, errors.Is(err, domain.ErrInvalidEvent), "got %v", err)
		})
	}
}

func TestEncodeEnvelopeRoundTrip(t *testing.T) {
	tenant, project := uuid.New(), uuid.New()
	in := &domain.SurveyEvent{
		SurveyID:  "nps",
		ContactID: uuid.New(),
		Answers: []domain.SurveyAnswer{
			{QuestionID: "q1", Question: "nota", QuestionType: domain.QuestionTypeScale, Answer: domain.NumberAnswer(9)},
		},
	}
	subject, data, err := EncodeEnvelope(tenant, project, in)
	require.NoError(t, err)
	assert.Equal(t, "signals.survey", subject)

	env, out, err := DecodeEnvelope(subject, data)
	require.NoError(t, err)
	assert.Equal(t, tenant, env.TenantID)
	assert.Equal(t, project, env.ProjectID)
	assert.Equal(t, in, out)
}

func TestHandleAcksProcessedSignal(t *testing.T) {
	p := &stubProcessor{}
	_, data := payload(t, true)

	d := newTestConsumer(p).Handle(context.Background(), "signals.chat", data, 1)
	assert.Equal(t, ActionAck, d.Action)
	assert.Len(t, p.calls, 1)
}

func TestHandleDeadLettersMalformedAtOnce(t *testing.T) {
	p := &stubProcessor{}
	d := newTestConsumer(p).Handle(context.Background(), "signals.chat", []byte(`{"tenant_id":"x"}`), 1)
	assert.Equal(t, ActionDeadLetter, d.Action)
	assert.Empty(t, p.calls)

	p.err = fmt.Errorf("wrapped: %w", domain.ErrInvalidEvent)
	_, data := payload(t, true)
	d = newTestConsumer(p).Handle(context.Background(), "signals.chat", data, 1)
	assert.Equal(t, ActionDeadLetter, d.Action)
}

func TestHandleRetriesTransientFailures(t *testing.T) {
	p := &stubProcessor{err: fmt.Errorf("%w: connection refused", service.ErrPersistence)}
	c := newTestConsumer(p)
	_, data := payload(t, true)

	d := c.Handle(context.Background(), "signals.chat", data, 1)
	assert.Equal(t, ActionRetry, d.Action)
	assert.Equal(t, time.Second, d.Delay)

	d = c.Handle(context.Background(), "signals.chat", data, 2)
	assert.Equal(t, ActionRetry, d.Action)
	assert.Equal(t, 2*time.Second, d.Delay)

	d = c.Handle(context.Background(), "signals.chat", data, 3)
	assert.Equal(t, ActionDeadLetter, d.Action)
	assert.True(t, errors.Is(d.Err, service.ErrPersistence))
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, Backoff(0))
	assert.Equal(t, 4*time.Second, Backoff(3))
	assert.Equal(t, 30*time.Second, Backoff(6))
	assert.Equal(t, 30*time.Second, Backoff(100))
}
