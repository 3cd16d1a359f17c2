package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Event types
const (
	EventCustomerDeleted = "customer.deleted"
)

// CustomersDeletedEvent is published after a cascade delete commits.
type CustomersDeletedEvent struct {
	EventType   string           `json:"event_type"`
	CustomerIDs []uint           `json:"customer_ids"`
	AccountIDs  []uint           `json:"account_ids"`
	Deleted     int64            `json:"deleted"`
	Rows        map[string]int64 `json:"rows"`
	Timestamp   time.Time        `json:"timestamp"`
}

type Publisher interface {
	PublishCustomersDeleted(ctx context.Context, event CustomersDeletedEvent) error
	Close()
}

// NATSPublisher publishes JSON events on "<prefix>.<event type>".
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *logrus.Entry
}

func NewNATSPublisher(url, prefix string, logger *logrus.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = logrus.New()
	}
	conn, err := nats.Connect(url,
		nats.Name("crm-backend"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{
		conn:   conn,
		prefix: prefix,
		logger: logger.WithField("component", "events.publisher"),
	}, nil
}

func (p *NATSPublisher) subject(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

func (p *NATSPublisher) PublishCustomersDeleted(_ context.Context, event CustomersDeletedEvent) error {
	event.EventType = EventCustomerDeleted
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	subject := p.subject(EventCustomerDeleted)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	p.logger.WithFields(logrus.Fields{
		"subject":   subject,
		"customers": len(event.CustomerIDs),
	}).Debug("Published event")
	return nil
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// NoopPublisher drops events.
type NoopPublisher struct{}

func (NoopPublisher) PublishCustomersDeleted(context.Context, CustomersDeletedEvent) error {
	return nil
}

func (NoopPublisher) Close() {}

// New connects to NATS when url is set, otherwise returns a NoopPublisher.
func New(url, prefix string, logger *logrus.Logger) Publisher {
	if logger == nil {
		logger = logrus.New()
	}
	if url == "" {
		logger.Warn("NATS url not set, event publishing disabled")
		return NoopPublisher{}
	}
	pub, err := NewNATSPublisher(url, prefix, logger)
	if err != nil {
		logger.WithError(err).Warn("Event publishing disabled")
		return NoopPublisher{}
	}
	return pub
}
