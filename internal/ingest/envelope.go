package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cubomagico/memoria/internal/domain"
	"github.com/google/uuid"
)

// Envelope is the queue payload for one signal. The channel comes from the
// subject, signals.<channel>. ContactID may be omitted when the event itself
// carries contact_id.
type Envelope struct {
	TenantID  uuid.UUID       `json:"tenant_id"`
	ProjectID uuid.UUID       `json:"project_id"`
	ContactID uuid.UUID       `json:"contact_id,omitempty"`
	Event     json.RawMessage `json:"event"`
}

// ChannelFromSubject extracts the channel from a signals.<channel> subject.
func ChannelFromSubject(subject string) (domain.Channel, error) {
	i := strings.LastIndexByte(subject, '.')
	if i < 0 || i == len(subject)-1 {
		return "", &domain.ValidationError{Field: "subject", Reason: fmt.Sprintf("%q has no channel", subject)}
	}
	return domain.Channel(subject[i+1:]), nil
}

// DecodeEnvelope parses and validates a queue payload.
func DecodeEnvelope(subject string, data []byte) (Envelope, domain.Event, error) {
	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return env, nil, fmt.Errorf("%w: envelope: %v", domain.ErrInvalidEvent, err)
	}
	if env.TenantID == uuid.Nil {
		return env, nil, &domain.ValidationError{Field: "tenant_id", Reason: "is required"}
	}
	if env.ProjectID == uuid.Nil {
		return env, nil, &domain.ValidationError{Field: "project_id", Reason: "is required"}
	}
	if len(env.Event) == 0 {
		return env, nil, &domain.ValidationError{Field: "event", Reason: "is required"}
	}
	channel, err := ChannelFromSubject(subject)
	if err != nil {
		return env, nil, err
	}
	ev, err := domain.DecodeEventFor(channel, env.Event, env.ContactID)
	if err != nil {
		return env, nil, err
	}
	return env, ev, nil
}

// EncodeEnvelope builds a payload for signals.<ev.Channel()>.
func EncodeEnvelope(tenantID, projectID uuid.UUID, ev domain.Event) (string, []byte, error) {
	raw, err := sonic.Marshal(ev)
	if err != nil {
		return "", nil, err
	}
	data, err := sonic.Marshal(Envelope{TenantID: tenantID, ProjectID: projectID, ContactID: ev.Contact(), Event: raw})
	if err != nil {
		return "", nil, err
	}
	return SubjectPrefix + string(ev.Channel()), data, nil
}
