package gate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// day is the exclusive upper bound of a TimeOfDay.
const day = 24 * time.Hour

// TimeOfDay is an offset from local midnight.
type TimeOfDay time.Duration

// ParseTimeOfDay accepts "15:04" or "15:04:05".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay(time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q: want HH:MM or HH:MM:SS", s)
}

// Of returns the time of day of t in t's own location.
func Of(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond()))
}

func (t TimeOfDay) String() string {
	if time.Duration(t) >= day {
		return "24:00"
	}
	d := time.Duration(t)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if s == 0 {
		return fmt.Sprintf("%02d:%02d", h, m)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Window is a half-open daily interval [Start, End). A nil *Window places no
// restriction on when work runs.
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

var errInvertedWindow = errors.New("window start must be before end; windows may not span midnight")

// ParseWindow builds a Window from two "HH:MM" bounds. Both empty yields a nil
// window. A missing start opens the window at midnight and a missing end
// closes it at the end of the day.
func ParseWindow(start, end string) (*Window, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return nil, nil
	}
	w := &Window{Start: 0, End: TimeOfDay(day)}
	if start != "" {
		s, err := ParseTimeOfDay(start)
		if err != nil {
			return nil, err
		}
		w.Start = s
	}
	if end != "" {
		e, err := ParseTimeOfDay(end)
		if err != nil {
			return nil, err
		}
		w.End = e
	}
	if w.Start >= w.End {
		return nil, fmt.Errorf("%w: [%s, %s)", errInvertedWindow, w.Start, w.End)
	}
	return w, nil
}

// MustWindow is ParseWindow for literals known to be valid.
func MustWindow(start, end string) *Window {
	w, err := ParseWindow(start, end)
	if err != nil {
		panic(err)
	}
	return w
}

// Contains reports whether the time of day of t lies in [Start, End).
func (w *Window) Contains(t time.Time) bool {
	if w == nil {
		return true
	}
	tod := Of(t)
	return w.Start <= tod && tod < w.End
}

func (w *Window) String() string {
	if w == nil {
		return "always"
	}
	return fmt.Sprintf("[%s, %s)", w.Start, w.End)
}
