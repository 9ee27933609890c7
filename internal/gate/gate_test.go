package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fixedClock(h, m, s int) Clock {
	return func() time.Time {
		return time.Date(2026, 3, 14, h, m, s, 0, time.UTC)
	}
}

func TestParseWindow(t *testing.T) {
	t.Run("BothEmptyIsUnrestricted", func(t *testing.T) {
		w, err := ParseWindow("", " ")
		require.NoError(t, err)
		assert.Nil(t, w)
	})

	t.Run("BoundsParsed", func(t *testing.T) {
		w, err := ParseWindow("15:00", "18:00")
		require.NoError(t, err)
		assert.Equal(t, TimeOfDay(15*time.Hour), w.Start)
		assert.Equal(t, TimeOfDay(18*time.Hour), w.End)
		assert.Equal(t, "[15:00, 18:00)", w.String())
	})

	t.Run("OpenEnded", func(t *testing.T) {
		w, err := ParseWindow("", "09:30")
		require.NoError(t, err)
		assert.Equal(t, TimeOfDay(0), w.Start)

		w, err = ParseWindow("22:00", "")
		require.NoError(t, err)
		assert.Equal(t, TimeOfDay(24*time.Hour), w.End)
		assert.Equal(t, "[22:00, 24:00)", w.String())
	})

	t.Run("RejectsInvertedAndMidnightSpanning", func(t *testing.T) {
		_, err := ParseWindow("18:00", "15:00")
		assert.ErrorIs(t, err, errInvertedWindow)

		_, err = ParseWindow("12:00", "12:00")
		assert.ErrorIs(t, err, errInvertedWindow)
	})

	t.Run("RejectsGarbage", func(t *testing.T) {
		_, err := ParseWindow("3pm", "18:00")
		assert.Error(t, err)
	})
}

func TestWindowContains(t *testing.T) {
	w := MustWindow("15:00", "18:00")
	at := func(h, m, s int) time.Time { return time.Date(2026, 1, 1, h, m, s, 0, time.UTC) }

	assert.True(t, w.Contains(at(15, 0, 0)), "start is inclusive")
	assert.True(t, w.Contains(at(17, 59, 59)))
	assert.False(t, w.Contains(at(18, 0, 0)), "end is exclusive")
	assert.False(t, w.Contains(at(14, 59, 59)))

	var none *Window
	assert.True(t, none.Contains(at(3, 0, 0)))
}

func TestRunIfWithinWindow(t *testing.T) {
	w := MustWindow("15:00", "18:00")

	t.Run("RunsInsideWindow", func(t *testing.T) {
		g := New(zaptest.NewLogger(t), WithClock(fixedClock(17, 59, 59)), WithLocation(time.UTC))
		ran := false
		d, err := g.RunIfWithinWindow(context.Background(), "product-selection", w, func(context.Context) error {
			ran = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, ran)
		assert.True(t, d.Run)
	})

	t.Run("SkipsAtEnd", func(t *testing.T) {
		g := New(zaptest.NewLogger(t), WithClock(fixedClock(18, 0, 0)), WithLocation(time.UTC))
		ran := false
		d, err := g.RunIfWithinWindow(context.Background(), "product-selection", w, func(context.Context) error {
			ran = true
			return nil
		})
		assert.ErrorIs(t, err, ErrWindowClosed)
		assert.False(t, ran)
		assert.False(t, d.Run)
		assert.Equal(t, 18, d.Observed.Hour())
	})

	t.Run("NilWindowAlwaysRuns", func(t *testing.T) {
		g := New(zaptest.NewLogger(t), WithClock(fixedClock(3, 0, 0)))
		ran := false
		_, err := g.RunIfWithinWindow(context.Background(), "price-monitor", nil, func(context.Context) error {
			ran = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, ran)
	})

	t.Run("PropagatesWorkError", func(t *testing.T) {
		g := New(zaptest.NewLogger(t), WithClock(fixedClock(16, 0, 0)), WithLocation(time.UTC))
		boom := errors.New("boom")
		_, err := g.RunIfWithinWindow(context.Background(), "t", w, func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("InterpretsBoundsInConfiguredLocation", func(t *testing.T) {
		loc := time.FixedZone("IST", 5*3600+1800)
		// 10:00 UTC is 15:30 in IST.
		clock := func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }
		g := New(zaptest.NewLogger(t), WithClock(clock), WithLocation(loc))
		assert.True(t, g.Check("t", w).Run)

		g = New(zaptest.NewLogger(t), WithClock(clock), WithLocation(time.UTC))
		assert.False(t, g.Check("t", w).Run)
	})

	t.Run("ObserverSeesEveryDecision", func(t *testing.T) {
		var seen []Decision
		g := New(zaptest.NewLogger(t),
			WithClock(fixedClock(12, 0, 0)),
			WithLocation(time.UTC),
			WithObserver(func(d Decision) { seen = append(seen, d) }),
		)
		g.Check("a", w)
		g.Check("b", nil)
		require.Len(t, seen, 2)
		assert.False(t, seen[0].Run)
		assert.True(t, seen[1].Run)
	})
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = LoadLocation("UTC")
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	_, err = LoadLocation("Not/AZone")
	assert.Error(t, err)
}
