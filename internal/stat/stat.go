// Package stat keeps cheap counters about connection churn for the
// monitoring api.
package stat

import (
	"sync"
	"sync/atomic"
	"time"
)

type timeRing struct {
	mu   sync.Mutex
	list [10]time.Time
	idx  int
}

func (r *timeRing) add(t time.Time) {
	r.mu.Lock()
	r.list[r.idx] = t
	r.idx++
	if r.idx == len(r.list) {
		r.idx = 0
	}
	r.mu.Unlock()
}

// recent returns the stored timestamps newest first.
func (r *timeRing) recent() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Time, 0, len(r.list))
	for i := 1; i <= len(r.list); i++ {
		t := r.list[(r.idx-i+len(r.list))%len(r.list)]
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out
}

type bucket struct {
	base time.Time
	cnt  uint64
}

// Stat is safe for concurrent use by the listener goroutines.
type Stat struct {
	connects    uint64
	disconnects uint64

	connect    timeRing
	disconnect timeRing

	mu    sync.Mutex
	buf   [60]bucket
	phead int
	dur   time.Duration

	created time.Time
}

func NewStat() *Stat {
	o := &Stat{}
	o.dur = time.Minute
	o.created = time.Now().UTC()
	return o
}

func (s *Stat) ConnectEv(t time.Time) {
	atomic.AddUint64(&s.connects, 1)
	s.connect.add(t)
	s.bump(1, t)
}

func (s *Stat) DisconnectEv(t time.Time) {
	atomic.AddUint64(&s.disconnects, 1)
	s.disconnect.add(t)
}

// bump counts into per-minute buckets, advancing the ring when the
// minute rolls over. Out of order timestamps older than the head bucket
// are dropped.
func (s *Stat) bump(amt uint64, t time.Time) {
	s.mu.Lock()
	f := t.Truncate(s.dur)
	last := &s.buf[s.phead]
	switch {
	case f.After(last.base):
		if last.cnt != 0 {
			s.phead++
			if s.phead == len(s.buf) {
				s.phead = 0
			}
		}
		s.buf[s.phead] = bucket{base: f, cnt: amt}
	case f.Equal(last.base):
		last.cnt += amt
	}
	s.mu.Unlock()
}

type RatePoint struct {
	Minute time.Time `json:"minute"`
	Count  uint64    `json:"count"`
}

type Snapshot struct {
	Started         time.Time   `json:"started"`
	Connects        uint64      `json:"connects"`
	Disconnects     uint64      `json:"disconnects"`
	LastConnects    []time.Time `json:"last_connects"`
	LastDisconnects []time.Time `json:"last_disconnects"`
	ConnRate        []RatePoint `json:"connects_per_minute"`
}

// Snapshot renders the current counters, rate buckets newest first.
func (s *Stat) Snapshot() Snapshot {
	snap := Snapshot{
		Started:         s.created,
		Connects:        atomic.LoadUint64(&s.connects),
		Disconnects:     atomic.LoadUint64(&s.disconnects),
		LastConnects:    s.connect.recent(),
		LastDisconnects: s.disconnect.recent(),
	}
	s.mu.Lock()
	for i := 0; i < len(s.buf); i++ {
		b := s.buf[(s.phead-i+len(s.buf))%len(s.buf)]
		if b.cnt == 0 {
			break
		}
		snap.ConnRate = append(snap.ConnRate, RatePoint{Minute: b.base, Count: b.cnt})
	}
	s.mu.Unlock()
	return snap
}
