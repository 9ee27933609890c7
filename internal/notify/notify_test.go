package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/cartwatch/internal/config"
)

type recordingSender struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (r *recordingSender) Send(_ context.Context, subject, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.subjects = append(r.subjects, subject)
	return nil
}

type sentCounter struct{ sent, failed int }

func (c *sentCounter) RecordNotification(sent bool) {
	if sent {
		c.sent++
	} else {
		c.failed++
	}
}

func TestLimitedSuppressesWithinInterval(t *testing.T) {
	next := &recordingSender{}
	obs := &sentCounter{}
	l := NewLimited(next, time.Hour, zaptest.NewLogger(t), obs)
	ctx := context.Background()

	require.NoError(t, l.Send(ctx, "first", "body"))
	assert.ErrorIs(t, l.Send(ctx, "second", "body"), ErrRateLimited)
	assert.Equal(t, []string{"first"}, next.subjects)
	assert.Equal(t, &sentCounter{sent: 1, failed: 1}, obs)
}

func TestLimitedFailureReleasesSlot(t *testing.T) {
	next := &recordingSender{err: errors.New("smtp: 451 try again later")}
	obs := &sentCounter{}
	l := NewLimited(next, time.Hour, zaptest.NewLogger(t), obs)
	ctx := context.Background()

	assert.ErrorContains(t, l.Send(ctx, "first", "body"), "451")

	next.mu.Lock()
	next.err = nil
	next.mu.Unlock()
	require.NoError(t, l.Send(ctx, "retry", "body"), "a failed delivery must not use up the interval")
	assert.ErrorIs(t, l.Send(ctx, "third", "body"), ErrRateLimited)
	assert.Equal(t, []string{"retry"}, next.subjects)
	assert.Equal(t, &sentCounter{sent: 1, failed: 2}, obs)
}

func TestLimitedDisabled(t *testing.T) {
	next := &recordingSender{}
	l := NewLimited(next, 0, zaptest.NewLogger(t), nil)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Send(context.Background(), "s", "b"))
	}
	assert.Len(t, next.subjects, 5)
}

func TestLimitedPropagatesFailure(t *testing.T) {
	boom := errors.New("boom")
	obs := &sentCounter{}
	l := NewLimited(&recordingSender{err: boom}, 0, zaptest.NewLogger(t), obs)
	assert.ErrorIs(t, l.Send(context.Background(), "s", "b"), boom)
	assert.Equal(t, 1, obs.failed)
}

func TestFanoutJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := &recordingSender{}
	f := Fanout{&recordingSender{err: boom}, ok}
	err := f.Send(context.Background(), "s", "b")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"s"}, ok.subjects)
}

func TestLogSender(t *testing.T) {
	s := NewLogSender(zaptest.NewLogger(t))
	assert.NoError(t, s.Send(context.Background(), "s", "b"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, "s", "b"), context.Canceled)
}

type fakeMailClient struct {
	msgs []*mail.Msg
	err  error
}

func (f *fakeMailClient) DialAndSendWithContext(_ context.Context, msgs ...*mail.Msg) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func TestSMTPSender(t *testing.T) {
	client := &fakeMailClient{}
	s := &SMTPSender{client: client, from: "alerts@shop.test", to: []string{"me@shop.test"}}

	require.NoError(t, s.Send(context.Background(), "Price drop", "now 89.00"))
	require.Len(t, client.msgs, 1)
	rcpts, err := client.msgs[0].GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"me@shop.test"}, rcpts)

	client.err = errors.New("421 try later")
	assert.ErrorContains(t, s.Send(context.Background(), "Price drop", "b"), "smtp delivery failed")
}

func TestSMTPSenderRejectsBadAddress(t *testing.T) {
	s := &SMTPSender{client: &fakeMailClient{}, from: "not an address", to: []string{"me@shop.test"}}
	assert.ErrorContains(t, s.Send(context.Background(), "s", "b"), "invalid sender address")
}

func TestNewSMTPSender(t *testing.T) {
	cfg := config.NewDefaultConfig().Notify()
	cfg.Username = "user"
	cfg.Password = "secret"
	cfg.From = "alerts@shop.test"
	cfg.To = []string{"me@shop.test"}
	s, err := NewSMTPSender(cfg)
	require.NoError(t, err)
	assert.NotNil(t, s.client)
}

type fakePublisher struct {
	subject string
	data    []byte
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subject, f.data = subject, data
	return nil
}

func TestNATSSender(t *testing.T) {
	pub := &fakePublisher{}
	s := NewNATSSender(pub, "cartwatch.price.alert")
	at := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return at }

	require.NoError(t, s.Send(context.Background(), "Price drop", "now 89.00"))
	assert.Equal(t, "cartwatch.price.alert", pub.subject)

	var got Alert
	require.NoError(t, json.Unmarshal(pub.data, &got))
	assert.Equal(t, Alert{Subject: "Price drop", Body: "now 89.00", SentAt: at}, got)
}

func TestFromConfigDefaultsToLog(t *testing.T) {
	s, closeFn, err := FromConfig(config.NewDefaultConfig().Notify(), zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	defer closeFn()

	l, ok := s.(*Limited)
	require.True(t, ok)
	assert.IsType(t, &LogSender{}, l.next)
}
