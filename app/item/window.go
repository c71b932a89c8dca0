package item

import "time"

// Window is the span in which a source's items are eligible. Both ends are
// inclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

func NewWindow(end time.Time, lookback time.Duration) Window {
	return Window{Start: end.Add(-lookback), End: end}
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}
