// Package notify publishes build-cycle summaries to NATS subscribers such as
// editor plugins or dashboards.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
	"git.home.luguber.info/inful/pursloader/internal/logfields"
)

// Summary describes one settled build cycle.
type Summary struct {
	Generation string    `json:"generation"`
	Mode       string    `json:"mode"`
	Modules    []string  `json:"modules"`
	Resolved   int       `json:"resolved"`
	Rejected   int       `json:"rejected"`
	Warnings   []string  `json:"warnings,omitempty"`
	Errors     []string  `json:"errors,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notifier delivers cycle summaries.
type Notifier interface {
	Publish(ctx context.Context, s Summary) error
	Close() error
}

// Nop discards summaries.
type Nop struct{}

func (Nop) Publish(context.Context, Summary) error { return nil }
func (Nop) Close() error                           { return nil }

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSPublisher publishes summaries as JSON on a fixed subject.
type NATSPublisher struct {
	conn    conn
	subject string
}

// Connect dials url and returns a publisher for subject.
func Connect(url, subject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("pursloader"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, errors.NotifyError("failed to connect to NATS").
			WithCause(err).
			WithContext("url", url).
			Build()
	}
	slog.Info("NATS notifier connected", "url", url, "subject", subject)
	return newPublisher(nc, subject), nil
}

func newPublisher(c conn, subject string) *NATSPublisher {
	return &NATSPublisher{conn: c, subject: subject}
}

// Publish sends s and waits for the server to acknowledge the flush.
func (p *NATSPublisher) Publish(ctx context.Context, s Summary) error {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	data, err := json.Marshal(s)
	if err != nil {
		return errors.NotifyError("failed to marshal summary").WithCause(err).Build()
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return errors.NotifyError("failed to publish summary").
			WithCause(err).
			WithContext("subject", p.subject).
			Build()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return errors.NotifyError("failed to flush summary").WithCause(err).Build()
	}
	slog.Debug("Published cycle summary", logfields.Generation(s.Generation), "subject", p.subject)
	return nil
}

// Close closes the NATS connection.
func (p *NATSPublisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
