package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
)

// ContentRenderer transforms a markdown summary before it is printed.
// This allows TUI rendering without coupling the runner to a terminal library.
type ContentRenderer func(string) (string, error)

// TextHandler prints one line per executed event and a summary at the end.
type TextHandler struct {
	Writer   io.Writer
	Renderer ContentRenderer
	// Quiet suppresses the per-event lines.
	Quiet bool

	mu      sync.Mutex
	planned int
	done    int
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the summary renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithQuiet hides per-event progress.
func WithQuiet(quiet bool) TextHandlerOption {
	return func(h *TextHandler) {
		h.Quiet = quiet
	}
}

// NewTextHandler creates a handler writing to w (stdout if nil).
func NewTextHandler(w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{Writer: w}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) RunStarted(ctx context.Context, rec *domain.RunRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.planned = rec.EventsPlanned
	h.done = 0
	name := rec.Name
	if name == "" {
		name = rec.ID
	}
	_, err := fmt.Fprintf(h.Writer, "Acquiring %q: %d events (%s)\n", SanitizeLabel(name), rec.EventsPlanned, rec.OrderMode)
	return err
}

func (h *TextHandler) EventExecuted(ctx context.Context, e *domain.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.done++
	if h.Quiet {
		return nil
	}
	width := len(fmt.Sprint(h.planned))
	_, err := fmt.Fprintf(h.Writer, "[%*d/%d] %s\n", width, h.done, h.planned, SanitizeLabel(e.String()))
	return err
}

func (h *TextHandler) EventSuppressed(ctx context.Context, stage domain.Stage, e *domain.Event) error {
	if h.Quiet {
		return nil
	}
	_, err := fmt.Fprintf(h.Writer, "  skipped at %s: %s\n", stage, SanitizeLabel(e.String()))
	return err
}

func (h *TextHandler) HookFailed(ctx context.Context, stage domain.Stage, e *domain.Event, hookErr error) error {
	_, err := fmt.Fprintf(h.Writer, "  hook failed at %s: %s\n", stage, SanitizeLabel(hookErr.Error()))
	return err
}

func (h *TextHandler) RunEnded(ctx context.Context, rec *domain.RunRecord) error {
	summary := formatSummary(rec)
	output := summary
	if h.Renderer != nil {
		if rendered, err := h.Renderer(summary); err == nil {
			output = rendered
		}
	}
	_, err := fmt.Fprintln(h.Writer, strings.TrimRight(output, "\n"))
	return err
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	_, err := fmt.Fprintf(h.Writer, "\n[System] %s\n", SanitizeLabel(msg))
	return err
}

func formatSummary(rec *domain.RunRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Acquisition %s\n\n", rec.Status)
	fmt.Fprintf(&b, "| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Run | `%s` |\n", rec.ID)
	fmt.Fprintf(&b, "| Events | %d of %d |\n", rec.EventsExecuted, rec.EventsPlanned)
	if rec.EventsSuppressed > 0 {
		fmt.Fprintf(&b, "| Suppressed | %d |\n", rec.EventsSuppressed)
	}
	if rec.HookFailures > 0 {
		fmt.Fprintf(&b, "| Hook failures | %d |\n", rec.HookFailures)
	}
	if !rec.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "| Duration | %s |\n", rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond))
	}
	if rec.Error != "" {
		fmt.Fprintf(&b, "\n**Error:** %s\n", SanitizeLabel(rec.Error))
	}
	return b.String()
}
