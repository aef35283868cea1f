package sublist

import (
	"sync"

	"nuha.dev/eelink/internal/subscriber"
)

// SublistMap holds one sublist per device. It implements publish.Sink so
// the dispatcher can fan events out to live subscribers next to the
// external sink.
type SublistMap struct {
	mu   sync.Mutex
	list map[string]*Sublist
}

func NewSublistMap() *SublistMap {
	m := &SublistMap{}
	m.list = make(map[string]*Sublist)
	return m
}

func (m *SublistMap) GetSublist(imei string, create bool) (*Sublist, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.list[imei]
	if ok {
		return l, true
	}
	if !create {
		return nil, false
	}
	l = &Sublist{imei: imei}
	l.list = make(map[subscriber.Subscriber]bool)
	m.list[imei] = l
	return l, true
}

func (m *SublistMap) Publish(imei string, payload []byte) error {
	m.mu.Lock()
	l, ok := m.list[imei]
	m.mu.Unlock()
	if ok {
		l.Send(imei, payload)
	}
	return nil
}

// Sublist fans events of one device out to its subscribers. The last
// event is kept and replayed on subscribe so a fresh client sees the
// current state immediately.
type Sublist struct {
	imei string
	mu   sync.Mutex
	list map[subscriber.Subscriber]bool
	last []byte
}

func (s *Sublist) Subscribe(sub subscriber.Subscriber) {
	s.mu.Lock()
	s.list[sub] = true
	if s.last != nil {
		sub.Push(s.imei, s.last)
	}
	s.mu.Unlock()
}

func (s *Sublist) Unsubscribe(sub subscriber.Subscriber) {
	s.mu.Lock()
	delete(s.list, sub)
	s.mu.Unlock()
}

func (s *Sublist) Send(sender string, d []byte) {
	s.mu.Lock()
	s.last = d
	for sub := range s.list {
		closed := sub.Push(sender, d)
		if closed {
			delete(s.list, sub)
		}
	}
	s.mu.Unlock()
}
