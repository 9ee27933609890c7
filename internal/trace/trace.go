// Package trace records the ordered decisions a task makes so a failed run
// can be explained after the fact.
package trace

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Kind classifies an event.
type Kind string

const (
	KindGate     Kind = "gate"
	KindResolve  Kind = "resolve"
	KindAction   Kind = "action"
	KindClassify Kind = "classify"
	KindExtract  Kind = "extract"
	KindStep     Kind = "step"
)

// Event is a single recorded decision.
type Event struct {
	At     time.Time `json:"at"`
	Kind   Kind      `json:"kind"`
	Name   string    `json:"name"`
	OK     bool      `json:"ok"`
	Detail string    `json:"detail,omitempty"`
}

// Trace is safe for concurrent use. A nil *Trace discards events.
type Trace struct {
	ID      string    `json:"id"`
	Task    string    `json:"task"`
	Started time.Time `json:"started"`

	mu     sync.Mutex
	events []Event
	now    func() time.Time
}

// New starts a trace for the named task.
func New(task string) *Trace {
	return &Trace{
		ID:      uuid.NewString(),
		Task:    task,
		Started: time.Now(),
		now:     time.Now,
	}
}

// Add appends an event.
func (t *Trace) Add(kind Kind, name string, ok bool, detail string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, Event{At: t.now(), Kind: kind, Name: name, OK: ok, Detail: detail})
}

// Events returns a copy of the recorded events in order.
func (t *Trace) Events() []Event {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Event(nil), t.events...)
}

// Last returns the most recent event of the given kind.
func (t *Trace) Last(kind Kind) (Event, bool) {
	events := t.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == kind {
			return events[i], true
		}
	}
	return Event{}, false
}

// MarshalJSON renders the trace with its events.
func (t *Trace) MarshalJSON() ([]byte, error) {
	type alias struct {
		ID      string    `json:"id"`
		Task    string    `json:"task"`
		Started time.Time `json:"started"`
		Events  []Event   `json:"events"`
	}
	return json.Marshal(alias{ID: t.ID, Task: t.Task, Started: t.Started, Events: t.Events()})
}

// Log writes every event at debug level and a one-line summary at info.
func (t *Trace) Log(logger *zap.Logger) {
	if t == nil {
		return
	}
	events := t.Events()
	for _, e := range events {
		logger.Debug("Trace event.",
			zap.String("trace_id", t.ID),
			zap.String("kind", string(e.Kind)),
			zap.String("name", e.Name),
			zap.Bool("ok", e.OK),
			zap.String("detail", e.Detail),
		)
	}
	logger.Info("Trace recorded.", zap.String("trace_id", t.ID), zap.String("task", t.Task), zap.Int("events", len(events)))
}

type ctxKey struct{}

// WithTrace attaches t to ctx.
func WithTrace(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext returns the trace attached to ctx, or nil.
func FromContext(ctx context.Context) *Trace {
	t, _ := ctx.Value(ctxKey{}).(*Trace)
	return t
}
