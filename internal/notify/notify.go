// Package notify delivers price alerts over SMTP, NATS or the log.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/cartwatch/internal/config"
)

// ErrRateLimited is returned when an alert arrives before the minimum
// interval since the previous one has elapsed.
var ErrRateLimited = errors.New("notification suppressed by rate limit")

// Sender delivers one alert.
type Sender interface {
	Send(ctx context.Context, subject, body string) error
}

// Observer receives delivery outcomes.
type Observer interface {
	RecordNotification(sent bool)
}

// LogSender writes alerts to the log. It is used when no transport is
// configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger.Named("notify")}
}

func (s *LogSender) Send(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("Alert (no transport configured).", zap.String("subject", subject), zap.String("body", body))
	return nil
}

// Limited allows at most one alert per interval through to the wrapped
// sender.
type Limited struct {
	next     Sender
	limiter  *rate.Limiter
	logger   *zap.Logger
	observer Observer
}

// NewLimited wraps next. A non-positive interval disables limiting.
func NewLimited(next Sender, interval time.Duration, logger *zap.Logger, observer Observer) *Limited {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Limited{
		next:     next,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger.Named("notify"),
		observer: observer,
	}
}

// Send delivers through the wrapped sender when the interval allows. A
// failed delivery gives its slot back, so a retry is not suppressed.
func (l *Limited) Send(ctx context.Context, subject, body string) error {
	now := time.Now()
	r := l.limiter.ReserveN(now, 1)
	if !r.OK() || r.DelayFrom(now) > 0 {
		r.CancelAt(now)
		l.logger.Info("Alert suppressed by rate limit.", zap.String("subject", subject))
		l.record(false)
		return ErrRateLimited
	}
	if err := l.next.Send(ctx, subject, body); err != nil {
		r.CancelAt(now)
		l.logger.Error("Failed to deliver alert.", zap.String("subject", subject), zap.Error(err))
		l.record(false)
		return err
	}
	l.logger.Info("Alert delivered.", zap.String("subject", subject))
	l.record(true)
	return nil
}

func (l *Limited) record(sent bool) {
	if l.observer != nil {
		l.observer.RecordNotification(sent)
	}
}

// Fanout sends to every sender and joins their errors.
type Fanout []Sender

func (f Fanout) Send(ctx context.Context, subject, body string) error {
	var errs []error
	for i, s := range f {
		if err := s.Send(ctx, subject, body); err != nil {
			errs = append(errs, fmt.Errorf("sender %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// FromConfig assembles the configured transports behind a rate limiter.
// The returned close function releases any open connections.
func FromConfig(cfg config.NotifyConfig, logger *zap.Logger, observer Observer) (Sender, func(), error) {
	var senders Fanout
	closeFn := func() {}

	if cfg.Enabled {
		s, err := NewSMTPSender(cfg)
		if err != nil {
			return nil, closeFn, err
		}
		senders = append(senders, s)
	}
	if cfg.NATSURL != "" {
		nc, err := DialNATS(cfg.NATSURL, cfg.Timeout)
		if err != nil {
			return nil, closeFn, err
		}
		closeFn = func() {
			if err := nc.Drain(); err != nil {
				logger.Warn("Failed to drain nats connection.", zap.Error(err))
			}
		}
		senders = append(senders, NewNATSSender(nc, cfg.NATSSubject))
	}

	var base Sender = NewLogSender(logger)
	switch len(senders) {
	case 0:
	case 1:
		base = senders[0]
	default:
		base = senders
	}
	return NewLimited(base, cfg.MinInterval, logger, observer), closeFn, nil
}
