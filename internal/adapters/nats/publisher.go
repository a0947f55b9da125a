package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dirtio/soilmap/internal/core/domain"
	"github.com/dirtio/soilmap/internal/core/ports"
	"github.com/dirtio/soilmap/internal/pkg/logging"
)

const (
	SubjectClickOccurred = "map.clicks.occurred"
	SubjectClickResolved = "map.clicks.resolved"
)

var (
	_ ports.EventPublisher = (*Publisher)(nil)
	_ ports.ClickObserver  = (*Publisher)(nil)
)

// Publisher implements ports.EventPublisher using NATS JetStream.
// It also satisfies ports.ClickObserver so it can be subscribed to a resolver.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the click event stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := Connect(url)
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      "MAP_CLICKS",
		Subjects:  []string{SubjectClickOccurred, SubjectClickResolved},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(cfg); err != nil {
		// Stream may already exist; try update
		if _, err := js.UpdateStream(cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishClickOccurred(ctx context.Context, click domain.Coordinate) error {
	data, err := json.Marshal(click)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectClickOccurred, data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishClickResolved(ctx context.Context, result domain.ClickResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectClickResolved, data, nats.Context(ctx), nats.MsgId(result.ID))
	return err
}

// ClickOccurred publishes the click; failures are logged, not returned.
func (p *Publisher) ClickOccurred(ctx context.Context, click domain.Coordinate) {
	if err := p.PublishClickOccurred(ctx, click); err != nil {
		logging.FromContext(ctx).Error("publish click occurred failed", "error", err)
	}
}

// ClickResolved publishes the applied result; failures are logged, not returned.
func (p *Publisher) ClickResolved(ctx context.Context, result domain.ClickResult) {
	if err := p.PublishClickResolved(ctx, result); err != nil {
		logging.FromContext(ctx).Error("publish click resolved failed",
			"generation", result.Generation, "error", err)
	}
}

// Connected reports whether the underlying connection is up.
func (p *Publisher) Connected() bool {
	return p.conn.IsConnected()
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// Connect opens a plain NATS connection that keeps reconnecting.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}
