package trace

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestTrace(t *testing.T) {
	t.Run("RecordsInOrder", func(t *testing.T) {
		tr := New("checkout-flow")
		tr.Add(KindResolve, "search box", true, "index=0")
		tr.Add(KindAction, "direct", false, "click intercepted")
		tr.Add(KindAction, "script-invoked", true, "")

		events := tr.Events()
		require.Len(t, events, 3)
		assert.Equal(t, KindResolve, events[0].Kind)
		last, ok := tr.Last(KindAction)
		require.True(t, ok)
		assert.Equal(t, "script-invoked", last.Name)
		_, ok = tr.Last(KindExtract)
		assert.False(t, ok)
	})

	t.Run("NilIsSafe", func(t *testing.T) {
		var tr *Trace
		tr.Add(KindStep, "x", true, "")
		assert.Nil(t, tr.Events())
		tr.Log(zaptest.NewLogger(t))
	})

	t.Run("Context", func(t *testing.T) {
		tr := New("t")
		ctx := WithTrace(context.Background(), tr)
		assert.Same(t, tr, FromContext(ctx))
		assert.Nil(t, FromContext(context.Background()))
	})

	t.Run("JSON", func(t *testing.T) {
		tr := New("price-monitor")
		tr.Add(KindExtract, "primary-selector", true, "99.99")
		b, err := json.Marshal(tr)
		require.NoError(t, err)
		assert.Contains(t, string(b), `"task":"price-monitor"`)
		assert.Contains(t, string(b), `"name":"primary-selector"`)
	})

	t.Run("Concurrent", func(t *testing.T) {
		tr := New("t")
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tr.Add(KindStep, "s", true, "")
			}()
		}
		wg.Wait()
		assert.Len(t, tr.Events(), 20)
	})
}
