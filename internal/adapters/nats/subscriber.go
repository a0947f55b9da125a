package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/dirtio/soilmap/internal/core/domain"
	"github.com/dirtio/soilmap/internal/core/ports"
	"github.com/dirtio/soilmap/internal/pkg/logging"
)

var _ ports.ClickSource = (*ClickSubscriber)(nil)

// ClickSubscriber implements ports.ClickSource over a core NATS subject.
// Map surfaces publish {"lat":..,"lng":..} messages to the subject.
type ClickSubscriber struct {
	conn    *nats.Conn
	subject string
	queue   string

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewClickSubscriber connects to NATS. A non-empty queue joins a queue group
// so that several resolver instances share the click stream.
func NewClickSubscriber(url, subject, queue string) (*ClickSubscriber, error) {
	conn, err := Connect(url)
	if err != nil {
		return nil, err
	}
	return &ClickSubscriber{conn: conn, subject: subject, queue: queue}, nil
}

// Listen delivers every decodable click to handler until stop is called.
func (s *ClickSubscriber) Listen(ctx context.Context, handler func(ctx context.Context, click domain.Coordinate)) (func(), error) {
	log := logging.FromContext(ctx)
	cb := func(msg *nats.Msg) {
		click, err := DecodeClick(msg.Data)
		if err != nil {
			log.Warn("dropping malformed click message", "subject", msg.Subject, "error", err)
			return
		}
		handler(ctx, click)
	}

	var (
		sub *nats.Subscription
		err error
	)
	if s.queue != "" {
		sub, err = s.conn.QueueSubscribe(s.subject, s.queue, cb)
	} else {
		sub, err = s.conn.Subscribe(s.subject, cb)
	}
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", s.subject, err)
	}

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { _ = sub.Unsubscribe() })
	}, nil
}

// DecodeClick parses a click message body.
func DecodeClick(data []byte) (domain.Coordinate, error) {
	var raw struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.Coordinate{}, fmt.Errorf("decode click: %w", err)
	}
	if raw.Lat == nil || raw.Lng == nil {
		return domain.Coordinate{}, fmt.Errorf("decode click: lat and lng are required")
	}
	return domain.Coordinate{Lat: *raw.Lat, Lng: *raw.Lng}, nil
}

// Close unsubscribes and drains.
func (s *ClickSubscriber) Close() {
	s.mu.Lock()
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = nil
	s.mu.Unlock()
	_ = s.conn.Drain()
}
