// Package ingest consumes behavioral signals from NATS JetStream and feeds
// them through extraction. Each message is one signal; malformed ones are
// dead-lettered at once, transient failures are retried with backoff.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/cubomagico/memoria/internal/service"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	SubjectPrefix     = "signals."
	deadLetterPrefix  = "signals_dead."
	deadLetterStream  = "SIGNALS_DEAD"
	defaultMaxDeliver = 5
	baseDelay         = time.Second
	maxDelay          = 30 * time.Second
	processTimeout    = 30 * time.Second
)

// Processor runs one extraction pass.
type Processor interface {
	Process(ctx context.Context, tenantID, projectID uuid.UUID, ev domain.Event) (*service.Outcome, error)
}

type Action int

const (
	ActionAck Action = iota
	ActionRetry
	ActionDeadLetter
)

func (a Action) String() string {
	switch a {
	case ActionAck:
		return "ack"
	case ActionRetry:
		return "retry"
	case ActionDeadLetter:
		return "dead_letter"
	}
	return "unknown"
}

// Decision is what the consumer does with a message after handling it.
type Decision struct {
	Action Action
	Delay  time.Duration
	Err    error
}

type Config struct {
	Stream     string
	Durable    string
	MaxDeliver int
}

type Consumer struct {
	js        nats.JetStreamContext
	processor Processor
	cfg       Config
	logger    *zap.Logger

	mu  sync.Mutex
	sub *nats.Subscription
}

func NewConsumer(js nats.JetStreamContext, processor Processor, cfg Config, logger *zap.Logger) *Consumer {
	if cfg.MaxDeliver <= 0 {
		cfg.MaxDeliver = defaultMaxDeliver
	}
	return &Consumer{js: js, processor: processor, cfg: cfg, logger: logger.Named("ingest")}
}

// Start ensures the signal and dead-letter streams exist and subscribes
// with a durable, manually acknowledged consumer.
func (c *Consumer) Start(ctx context.Context) error {
	_, err := c.js.AddStream(&nats.StreamConfig{
		Name:     c.cfg.Stream,
		Subjects: []string{SubjectPrefix + "*"},
		Storage:  nats.FileStorage,
		MaxAge:   30 * 24 * time.Hour,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("add stream %s: %w", c.cfg.Stream, err)
	}
	if _, err := c.js.StreamInfo(deadLetterStream); err != nil {
		if _, err := c.js.AddStream(&nats.StreamConfig{
			Name:      deadLetterStream,
			Subjects:  []string{deadLetterPrefix + ">"},
			Retention: nats.LimitsPolicy,
			MaxAge:    7 * 24 * time.Hour,
		}); err != nil {
			c.logger.Error("failed to create dead-letter stream", zap.Error(err))
		}
	}

	sub, err := c.js.Subscribe(SubjectPrefix+"*", func(msg *nats.Msg) {
		c.onMessage(ctx, msg)
	}, nats.Durable(c.cfg.Durable), nats.ManualAck(), nats.MaxDeliver(c.cfg.MaxDeliver+1))
	if err != nil {
		return fmt.Errorf("subscribe %s*: %w", SubjectPrefix, err)
	}

	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()
	c.logger.Info("signal consumer started",
		zap.String("stream", c.cfg.Stream),
		zap.String("durable", c.cfg.Durable))
	return nil
}

// Stop drains the subscription so in-flight messages finish.
func (c *Consumer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub == nil {
		return nil
	}
	err := c.sub.Drain()
	c.sub = nil
	return err
}

func (c *Consumer) onMessage(ctx context.Context, msg *nats.Msg) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic in signal handler", zap.Any("panic", r), zap.Stack("stacktrace"))
			_ = msg.NakWithDelay(maxDelay)
		}
	}()

	delivered := uint64(1)
	if meta, err := msg.Metadata(); err == nil {
		delivered = meta.NumDelivered
	}

	d := c.Handle(ctx, msg.Subject, msg.Data, delivered)
	switch d.Action {
	case ActionAck:
		_ = msg.Ack()
	case ActionRetry:
		_ = msg.NakWithDelay(d.Delay)
	case ActionDeadLetter:
		c.deadLetter(msg, d.Err, delivered)
		_ = msg.Ack()
	}
}

// Handle processes one payload and decides its fate. It does not touch the
// message itself.
func (c *Consumer) Handle(ctx context.Context, subject string, data []byte, delivered uint64) Decision {
	env, ev, err := DecodeEnvelope(subject, data)
	if err != nil {
		c.logger.Warn("malformed signal", zap.String("subject", subject), zap.Error(err))
		return Decision{Action: ActionDeadLetter, Err: err}
	}

	pctx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()

	out, err := c.processor.Process(pctx, env.TenantID, env.ProjectID, ev)
	if err == nil {
		c.logger.Debug("signal consumed",
			zap.String("subject", subject),
			zap.String("project_id", env.ProjectID.String()),
			zap.String("contact_id", ev.Contact().String()),
			zap.Int("new", len(out.Result.NewMemories)))
		return Decision{Action: ActionAck}
	}

	if !retryable(err) {
		return Decision{Action: ActionDeadLetter, Err: err}
	}
	if delivered >= uint64(c.cfg.MaxDeliver) {
		c.logger.Error("max deliveries exceeded, dead-lettering",
			zap.String("subject", subject),
			zap.Uint64("delivered", delivered),
			zap.Error(err))
		return Decision{Action: ActionDeadLetter, Err: err}
	}
	delay := Backoff(delivered)
	c.logger.Warn("signal processing failed, retrying",
		zap.String("subject", subject),
		zap.Uint64("delivered", delivered),
		zap.Duration("delay", delay),
		zap.Error(err))
	return Decision{Action: ActionRetry, Delay: delay, Err: err}
}

func retryable(err error) bool {
	return !errors.Is(err, domain.ErrInvalidEvent) && !errors.Is(err, service.ErrScopeMissing)
}

// Backoff doubles from one second per delivery, capped at thirty seconds.
func Backoff(delivered uint64) time.Duration {
	if delivered < 1 {
		delivered = 1
	}
	if delivered > 6 {
		return maxDelay
	}
	return min(baseDelay*time.Duration(1<<(delivered-1)), maxDelay)
}

func (c *Consumer) deadLetter(msg *nats.Msg, cause error, delivered uint64) {
	dl := nats.NewMsg(deadLetterPrefix + msg.Subject)
	dl.Header.Set("Original-Subject", msg.Subject)
	if cause != nil {
		dl.Header.Set("Error", cause.Error())
	}
	dl.Header.Set("Delivery-Count", strconv.FormatUint(delivered, 10))
	dl.Header.Set("Failed-At", time.Now().UTC().Format(time.RFC3339))
	dl.Data = msg.Data
	if _, err := c.js.PublishMsg(dl); err != nil {
		c.logger.Error("failed to publish to dead-letter stream", zap.Error(err))
	}
}
