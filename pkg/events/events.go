// Package events is a thin NATS transport: connect, publish a JSON payload
// to a subject, subscribe a byte-slice handler to a subject. Subject naming
// and payload shape are the caller's concern (see internal/notify/natsnotify
// for the subjects this module actually uses).
package events

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/queueme/scheduling-core/internal/config"
	"github.com/queueme/scheduling-core/pkg/logger"
)

// Publisher publishes JSON-encoded events to NATS subjects.
type Publisher struct {
	conn   *nats.Conn
	logger *logger.Logger
}

// Subscriber subscribes byte-slice handlers to NATS subjects.
type Subscriber struct {
	conn   *nats.Conn
	logger *logger.Logger
}

// Connect connects to NATS.
func Connect(cfg config.NATSConfig) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// NewPublisher creates a new event publisher. A nil conn produces a
// publisher that logs and discards, for environments without NATS
// configured.
func NewPublisher(conn *nats.Conn, logger *logger.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// Publish publishes an event; a nil underlying connection is treated as a
// no-op rather than an error, matching the "best effort, never blocks the
// caller" contract notifications carry throughout this module.
func (p *Publisher) Publish(subject string, data interface{}) error {
	if p.conn == nil {
		p.logger.Debug("event publishing skipped (no NATS connection)", "subject", subject)
		return nil
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("published event", "subject", subject)
	return nil
}

// NewSubscriber creates a new event subscriber.
func NewSubscriber(conn *nats.Conn, logger *logger.Logger) *Subscriber {
	return &Subscriber{conn: conn, logger: logger}
}

// Subscribe subscribes to events on a subject.
func (s *Subscriber) Subscribe(subject string, handler func([]byte) error) error {
	_, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		if err := handler(msg.Data); err != nil {
			s.logger.Error("failed to handle event", "subject", subject, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
	}

	s.logger.Debug("subscribed to subject", "subject", subject)
	return nil
}
