package inspector

import "time"

// liveQuery is a query typed into a live session.
type liveQuery struct {
	Expr    string `json:"expr"`
	Preview bool   `json:"preview,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// debouncer holds the latest query until the window passes without a newer
// one. It is owned by a single goroutine; the owner selects on timerC.
type debouncer struct {
	window  time.Duration
	pending *liveQuery
	timer   *time.Timer
	timerCh <-chan time.Time
}

func newDebouncer(window time.Duration) *debouncer {
	if window <= 0 {
		window = 300 * time.Millisecond
	}
	return &debouncer{window: window}
}

// add replaces the pending query and restarts the window.
func (d *debouncer) add(q liveQuery) {
	d.pending = &q
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.NewTimer(d.window)
	d.timerCh = d.timer.C
}

// timerC fires when the window expires. nil while nothing is pending.
func (d *debouncer) timerC() <-chan time.Time {
	return d.timerCh
}

// take returns the pending query, if any, and resets.
func (d *debouncer) take() (liveQuery, bool) {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
		d.timerCh = nil
	}
	if d.pending == nil {
		return liveQuery{}, false
	}
	q := *d.pending
	d.pending = nil
	return q, true
}

// stop drops any pending query.
func (d *debouncer) stop() {
	d.take()
}
