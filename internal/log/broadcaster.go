package log

import (
	"io"
	"sync"
)

const subscriberBuffer = 256

// Broadcaster copies every log line written to it to all live subscribers.
// A subscriber that falls behind loses lines; the logger never blocks on it.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[chan []byte]struct{}
}

var _ io.Writer = (*Broadcaster)(nil)

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan []byte]struct{})}
}

func (b *Broadcaster) Write(p []byte) (int, error) {
	line := append([]byte(nil), p...)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- line:
		default:
		}
	}
	return len(p), nil
}

// Subscribe returns a channel of log lines and a function that detaches it.
// The channel is closed once cancel has been called.
func (b *Broadcaster) Subscribe() (lines <-chan []byte, cancel func()) {
	ch := make(chan []byte, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers reports how many clients are attached.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
