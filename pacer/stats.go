package pacer

import (
	"sync"
	"time"
)

const statsWindow = 100

// Stats are cumulative counters of the tick loop.
type Stats struct {
	State         RunState      `json:"state"`
	Ticks         uint64        `json:"ticks"`
	Transmissions uint64        `json:"transmissions"`
	Suppressed    uint64        `json:"suppressed"`
	KeepAlives    uint64        `json:"keepAlives"`
	WouldBlocks   uint64        `json:"wouldBlocks"`
	HostMessages  uint64        `json:"hostMessages"`
	Reconnects    uint64        `json:"reconnects"`
	MeanPeriod    time.Duration `json:"meanPeriod"`
	MeanWork      time.Duration `json:"meanWork"`
	Rate          float64       `json:"rate"`
}

// window is a fixed-size ring of durations.
type window struct {
	vals [statsWindow]time.Duration
	n    int
	next int
	sum  time.Duration
}

func (w *window) add(d time.Duration) {
	if w.n == statsWindow {
		w.sum -= w.vals[w.next]
	} else {
		w.n++
	}
	w.vals[w.next] = d
	w.sum += d
	w.next = (w.next + 1) % statsWindow
}

func (w *window) mean() time.Duration {
	if w.n == 0 {
		return 0
	}
	return w.sum / time.Duration(w.n)
}

type statsRecorder struct {
	mu     sync.Mutex
	s      Stats
	period window
	work   window
}

func (r *statsRecorder) update(fn func(s *Stats)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.s)
}

func (r *statsRecorder) tick(period, work time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Ticks++
	if period > 0 {
		r.period.add(period)
	}
	r.work.add(work)
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.s
	s.MeanPeriod = r.period.mean()
	s.MeanWork = r.work.mean()
	if s.MeanPeriod > 0 {
		s.Rate = float64(time.Second) / float64(s.MeanPeriod)
	}
	return s
}
