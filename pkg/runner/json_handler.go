package runner

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
)

// Message types emitted by JSONHandler.
const (
	MessageRunStarted      = "run_started"
	MessageEventExecuted   = "event_executed"
	MessageEventSuppressed = "event_suppressed"
	MessageHookFailed      = "hook_failed"
	MessageRunEnded        = "run_ended"
	MessageSystem          = "system"
)

// Message is one line of JSON output.
type Message struct {
	Type    string            `json:"type"`
	Time    time.Time         `json:"time"`
	Stage   string            `json:"stage,omitempty"`
	Event   *domain.Event     `json:"event,omitempty"`
	Record  *domain.RunRecord `json:"record,omitempty"`
	Error   string            `json:"error,omitempty"`
	Message string            `json:"message,omitempty"`
}

// JSONHandler implements OutputHandler as JSON lines.
type JSONHandler struct {
	Writer io.Writer

	mu      sync.Mutex
	encoder *json.Encoder
	now     func() time.Time
}

// NewJSONHandler creates a handler writing to w (stdout if nil).
func NewJSONHandler(w io.Writer) *JSONHandler {
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Writer:  w,
		encoder: json.NewEncoder(w),
		now:     time.Now,
	}
}

func (h *JSONHandler) emit(m Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	m.Time = h.now().UTC()
	return h.encoder.Encode(m)
}

func (h *JSONHandler) RunStarted(ctx context.Context, rec *domain.RunRecord) error {
	return h.emit(Message{Type: MessageRunStarted, Record: rec})
}

func (h *JSONHandler) EventExecuted(ctx context.Context, e *domain.Event) error {
	return h.emit(Message{Type: MessageEventExecuted, Event: e})
}

func (h *JSONHandler) EventSuppressed(ctx context.Context, stage domain.Stage, e *domain.Event) error {
	return h.emit(Message{Type: MessageEventSuppressed, Stage: stage.String(), Event: e})
}

func (h *JSONHandler) HookFailed(ctx context.Context, stage domain.Stage, e *domain.Event, err error) error {
	return h.emit(Message{Type: MessageHookFailed, Stage: stage.String(), Event: e, Error: err.Error()})
}

func (h *JSONHandler) RunEnded(ctx context.Context, rec *domain.RunRecord) error {
	return h.emit(Message{Type: MessageRunEnded, Record: rec})
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.emit(Message{Type: MessageSystem, Message: msg})
}
