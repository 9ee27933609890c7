package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process PriceStore. History is lost on exit.
type Memory struct {
	mu    sync.RWMutex
	byURL map[string][]Observation
}

var _ PriceStore = (*Memory)(nil)

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{byURL: make(map[string][]Observation)}
}

func (m *Memory) Record(ctx context.Context, o Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o = prepare(o)
	m.mu.Lock()
	defer m.mu.Unlock()
	obs := append(m.byURL[o.URL], o)
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].ObservedAt.Before(obs[j].ObservedAt) })
	m.byURL[o.URL] = obs
	return nil
}

func (m *Memory) Last(ctx context.Context, url string) (Observation, bool, error) {
	if err := ctx.Err(); err != nil {
		return Observation{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obs := m.byURL[url]
	if len(obs) == 0 {
		return Observation{}, false, nil
	}
	return obs[len(obs)-1], true, nil
}

func (m *Memory) History(ctx context.Context, url string, limit int) ([]Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obs := m.byURL[url]
	out := make([]Observation, 0, len(obs))
	for i := len(obs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, obs[i])
	}
	return out, nil
}
