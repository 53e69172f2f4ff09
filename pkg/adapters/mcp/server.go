// Package mcp exposes acquisition planning and control as Model Context
// Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/sequence"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// StatusURI is the resource describing the active acquisition.
const StatusURI = "lattice://acquisition/current"

// Engine defines the engine operations the MCP server needs.
type Engine interface {
	Start(ctx context.Context, s *domain.Settings, opts ...lattice.RunOption) (*lattice.Run, error)
	Current() (*lattice.Run, bool)
	Abort() bool
	SetPaused(paused bool) bool
	IsPaused() bool
	IsAbortRequested() bool
	NextWakeTime() (time.Time, bool)
	Events(ctx context.Context, s *domain.Settings) (*sequence.Iterator, error)
}

// SettingsArgs carries acquisition settings as a JSON document.
type SettingsArgs struct {
	Settings string `json:"settings"`
	Limit    int    `json:"limit,omitempty"`
}

// PlanResponse is the structured result of plan_events.
type PlanResponse struct {
	Summary   sequence.Summary `json:"summary" jsonschema_description:"Axis sizes, order and event count"`
	Events    []*domain.Event  `json:"events,omitempty" jsonschema_description:"The first events of the plan"`
	Truncated bool             `json:"truncated" jsonschema_description:"True when more events exist than returned"`
}

// StatusResponse is the structured result of acquisition_status.
type StatusResponse struct {
	Running        bool              `json:"running" jsonschema_description:"Whether an acquisition is active"`
	Record         *domain.RunRecord `json:"record,omitempty" jsonschema_description:"Progress of the active acquisition"`
	Paused         bool              `json:"paused"`
	AbortRequested bool              `json:"abort_requested"`
	NextWake       *time.Time        `json:"next_wake,omitempty" jsonschema_description:"When the next timed event becomes eligible"`
}

// Server wraps the Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("lattice-mcp", strings.TrimSpace(lattice.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	// TOOL: plan_events
	s.mcpServer.AddTool(mcp.NewTool("plan_events",
		mcp.WithDescription("Summarize acquisition settings and list the first events they produce, in execution order."),
		mcp.WithString("settings", mcp.Required(), mcp.Description("Acquisition settings as a JSON object")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of events to return (default 20, 0 for summary only)")),
		mcp.WithOutputSchema[PlanResponse](),
	), mcp.NewStructuredToolHandler(s.handlePlanEvents))

	// TOOL: start_acquisition
	s.mcpServer.AddTool(mcp.NewTool("start_acquisition",
		mcp.WithDescription("Start an acquisition in the background. Fails if one is already running."),
		mcp.WithString("settings", mcp.Required(), mcp.Description("Acquisition settings as a JSON object")),
		mcp.WithOutputSchema[domain.RunRecord](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	// TOOL: acquisition_status
	s.mcpServer.AddTool(mcp.NewTool("acquisition_status",
		mcp.WithDescription("Report progress of the active acquisition."),
		mcp.WithOutputSchema[StatusResponse](),
	), mcp.NewStructuredToolHandler(s.handleStatus))

	// TOOL: abort_acquisition
	s.mcpServer.AddTool(mcp.NewTool("abort_acquisition",
		mcp.WithDescription("Stop the active acquisition before its next event. Hardware state is restored."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !s.engine.Abort() {
			return mcp.NewToolResultError("no acquisition running"), nil
		}
		return mcp.NewToolResultText("abort requested"), nil
	})

	// TOOL: pause_acquisition
	s.mcpServer.AddTool(mcp.NewTool("pause_acquisition",
		mcp.WithDescription("Pause or resume the active acquisition between events."),
		mcp.WithBoolean("paused", mcp.Required(), mcp.Description("true to pause, false to resume")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		paused, err := request.RequireBool("paused")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !s.engine.SetPaused(paused) {
			return mcp.NewToolResultError("no acquisition running"), nil
		}
		if paused {
			return mcp.NewToolResultText("paused"), nil
		}
		return mcp.NewToolResultText("resumed"), nil
	})
}

// DefaultPlanLimit is the number of events plan_events returns by default.
const DefaultPlanLimit = 20

func parseSettings(raw string) (*domain.Settings, error) {
	var settings domain.Settings
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&settings); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &settings, nil
}

func (s *Server) handlePlanEvents(ctx context.Context, request mcp.CallToolRequest, args SettingsArgs) (PlanResponse, error) {
	settings, err := parseSettings(args.Settings)
	if err != nil {
		return PlanResponse{}, err
	}
	summary, err := sequence.Summarize(settings)
	if err != nil {
		return PlanResponse{}, err
	}

	limit := DefaultPlanLimit
	if _, given := request.GetArguments()["limit"]; given {
		limit = max(0, args.Limit)
	}
	resp := PlanResponse{Summary: summary}
	if limit == 0 {
		resp.Truncated = summary.TotalEvents > 0
		return resp, nil
	}

	it, err := s.engine.Events(ctx, settings)
	if err != nil {
		return PlanResponse{}, err
	}
	for len(resp.Events) < limit {
		e, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return PlanResponse{}, err
		}
		resp.Events = append(resp.Events, e)
	}
	resp.Truncated = summary.TotalEvents > len(resp.Events)
	return resp, nil
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest, args SettingsArgs) (domain.RunRecord, error) {
	settings, err := parseSettings(args.Settings)
	if err != nil {
		return domain.RunRecord{}, err
	}
	run, err := s.engine.Start(context.WithoutCancel(ctx), settings)
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("start failed: %w", err)
	}
	slog.Info("MCP: acquisition started", "run_id", run.ID())
	return run.Record(), nil
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (StatusResponse, error) {
	return s.status(), nil
}

func (s *Server) status() StatusResponse {
	run, ok := s.engine.Current()
	if !ok {
		return StatusResponse{}
	}
	rec := run.Record()
	resp := StatusResponse{
		Running:        true,
		Record:         &rec,
		Paused:         s.engine.IsPaused(),
		AbortRequested: s.engine.IsAbortRequested(),
	}
	if wake, ok := s.engine.NextWakeTime(); ok {
		resp.NextWake = &wake
	}
	return resp
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(StatusURI, "Active Acquisition",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.status())
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      StatusURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
