package statusapi

import (
	"sync"

	"libraryhub/internal/toast"
)

type event struct {
	name string
	data any
}

// Feed fans events out to every open stream.
type Feed struct {
	mu      sync.RWMutex
	clients map[chan event]struct{}
}

// constructor for Feed
func NewFeed() *Feed {
	return &Feed{clients: make(map[chan event]struct{})}
}

func (f *Feed) join() chan event {
	ch := make(chan event, 16)
	f.mu.Lock()
	f.clients[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

func (f *Feed) leave(ch chan event) {
	f.mu.Lock()
	delete(f.clients, ch)
	f.mu.Unlock()
}

// offer queues ev for one client; a slow client misses events instead of
// blocking the sender.
func (f *Feed) offer(ch chan event, ev event) {
	select {
	case ch <- ev:
	default:
	}
}

func (f *Feed) broadcast(ev event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.clients {
		f.offer(ch, ev)
	}
}

type toastEvent struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Toaster returns a toaster that forwards every toast to open streams as a
// "toast" event.
func (f *Feed) Toaster() toast.Func {
	return func(level toast.Level, msg string) {
		f.broadcast(event{name: "toast", data: toastEvent{Level: level.String(), Message: msg}})
	}
}
