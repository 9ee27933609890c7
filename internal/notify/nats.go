package notify

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Publisher is the subset of *nats.Conn used to publish alerts.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Alert is the JSON payload published to NATS.
type Alert struct {
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

// NATSSender publishes alerts as JSON on a fixed subject.
type NATSSender struct {
	pub     Publisher
	subject string
	now     func() time.Time
}

// NewNATSSender wraps an existing publisher.
func NewNATSSender(pub Publisher, subject string) *NATSSender {
	return &NATSSender{pub: pub, subject: subject, now: time.Now}
}

// DialNATS connects to the server at url.
func DialNATS(url string, timeout time.Duration) (*nats.Conn, error) {
	if timeout <= 0 {
		timeout = nats.DefaultTimeout
	}
	nc, err := nats.Connect(url, nats.Name("cartwatch"), nats.Timeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	return nc, nil
}

func (s *NATSSender) Send(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(Alert{Subject: subject, Body: body, SentAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}
	if err := s.pub.Publish(s.subject, data); err != nil {
		return fmt.Errorf("nats publish to %s failed: %w", s.subject, err)
	}
	return nil
}
