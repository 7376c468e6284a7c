package http

import "sync"

// RebuildNotice tells feed subscribers that a bet got a new standings
// sequence and the ranked views should be re-fetched.
type RebuildNotice struct {
	BetID    int64 `json:"betId"`
	Sequence int64 `json:"sequence"`
	Count    int   `json:"count"`
}

// Feed fans rebuild notices out to websocket subscribers. Slow subscribers
// drop the oldest pending notice instead of blocking the publisher.
type Feed struct {
	mu          sync.Mutex
	subscribers map[chan RebuildNotice]struct{}
}

func NewFeed() *Feed {
	return &Feed{subscribers: make(map[chan RebuildNotice]struct{})}
}

// Subscribe registers a listener. The caller must invoke the returned cancel
// function to avoid leaks.
func (f *Feed) Subscribe() (<-chan RebuildNotice, func()) {
	ch := make(chan RebuildNotice, 8)
	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the notice to every subscriber without blocking.
func (f *Feed) Publish(notice RebuildNotice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- notice:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- notice
		}
	}
}
