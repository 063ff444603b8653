package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Events emitted by the publisher pipeline.
const (
	EventPostPublished     = "post.published"
	EventPostFailed        = "post.failed"
	EventPlatformPublished = "platform.published"
	EventPlatformFailed    = "platform.failed"
	EventRetriesExhausted  = "platform.retries_exhausted"
)

// Sink receives fire-and-forget notifications about publish outcomes. Sink
// failures must never affect the publish outcome; implementations log and
// swallow their own errors.
type Sink interface {
	Notify(ctx context.Context, userID, event string, payload map[string]any)
}

type envelope struct {
	UserID  string         `json:"user_id"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}

// AMQPSink publishes notifications to a fanout-style topic exchange, one
// routing key per event type.
type AMQPSink struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      zerolog.Logger
}

// NewAMQPSink dials the broker and declares the notifications exchange.
func NewAMQPSink(url, exchange string, log zerolog.Logger) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPSink{conn: conn, ch: ch, exchange: exchange, log: log}, nil
}

func (s *AMQPSink) Notify(ctx context.Context, userID, event string, payload map[string]any) {
	body, err := json.Marshal(envelope{
		UserID:  userID,
		Event:   event,
		Payload: payload,
		At:      time.Now().UTC(),
	})
	if err != nil {
		s.log.Error().Err(err).Str("event", event).Msg("marshal notification")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.ch.PublishWithContext(ctx, s.exchange, event, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		s.log.Error().Err(err).Str("event", event).Str("user_id", userID).Msg("publish notification")
	}
}

func (s *AMQPSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// LogSink writes notifications to the log. Used when no broker is configured.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Notify(_ context.Context, userID, event string, payload map[string]any) {
	s.log.Info().Str("user_id", userID).Str("event", event).Interface("payload", payload).Msg("notification")
}
