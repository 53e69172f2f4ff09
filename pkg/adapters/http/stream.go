package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
)

// StreamManager fans executed events out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan<- string]struct{}
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan<- string]struct{}),
	}
}

func (sm *StreamManager) Subscribe() (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 64)
	sm.subscribers[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			delete(sm.subscribers, ch)
			close(ch)
		})
	}
}

// Subscribers returns the number of connected clients.
func (sm *StreamManager) Subscribers() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

func (sm *StreamManager) Broadcast(msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			slog.Warn("SSE: Client buffer full, dropping message")
		}
	}
}

// streamMessage is the SSE payload.
type streamMessage struct {
	Type   string            `json:"type"`
	Event  *domain.Event     `json:"event,omitempty"`
	Record *domain.RunRecord `json:"record,omitempty"`
}

// Hooks publishes acquisition progress to the stream. Register them on the
// engine with lattice.WithLifecycleHooks.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	publish := func(m streamMessage) {
		data, err := json.Marshal(m)
		if err != nil {
			slog.Warn("SSE: encode failed", "error", err)
			return
		}
		sm.Broadcast(string(data))
	}
	return domain.LifecycleHooks{
		OnRunStart: func(_ context.Context, rec *domain.RunRecord) {
			publish(streamMessage{Type: "run_started", Record: rec})
		},
		OnEventExecuted: func(_ context.Context, e *domain.Event) {
			publish(streamMessage{Type: "event_executed", Event: e})
		},
		OnRunEnd: func(_ context.Context, rec *domain.RunRecord) {
			publish(streamMessage{Type: "run_ended", Record: rec})
		},
	}
}
