package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aretw0/lattice/internal/config"
	httpAdapter "github.com/aretw0/lattice/pkg/adapters/http"
	"github.com/aretw0/lattice/pkg/adapters/mcp"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions configures the serve and mcp commands.
type ServeOptions struct {
	ConfigPath string
	Debug      bool
	Stdout     io.Writer

	// Addr overrides http.addr from the configuration.
	Addr string

	// Transport selects the MCP transport: stdio or sse.
	Transport string

	// BaseURL is the public URL advertised by the MCP SSE transport.
	BaseURL string

	// Listening receives the bound address once the HTTP server accepts
	// connections.
	Listening func(addr string)
}

// Serve runs the HTTP API until ctx is done, then aborts the running
// acquisition and shuts the server down gracefully.
func Serve(ctx context.Context, opts ServeOptions) error {
	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}

	cfg, err := loadConfig(opts.ConfigPath, opts.Addr)
	if err != nil {
		return err
	}
	logger := serviceLogger(cfg, opts.Debug)

	stack, err := BuildStack(cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	handler := httpAdapter.NewHandler(stack.Engine,
		httpAdapter.WithStore(stack.Store),
		httpAdapter.WithStreams(stack.Streams),
		httpAdapter.WithLogger(logger),
		httpAdapter.WithMetrics(stack.Metrics.Handler()),
	)

	ln, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.HTTP.Addr, err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		printSystemMessage(out, "Lattice server listening on %s (store: %s).", ln.Addr(), cfg.Store.Backend)
		serverErrors <- srv.Serve(ln)
	}()
	if opts.Listening != nil {
		opts.Listening(ln.Addr().String())
	}

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	printSystemMessage(out, "Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if run, ok := stack.Engine.Current(); ok {
		run.Abort()
		if _, err := run.Wait(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("acquisition ended with error", "run_id", run.ID(), "error", err)
		}
	}

	// Asking listener to shut down and shed load.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
		return srv.Close()
	}
	printSystemMessage(out, "Lattice server stopped gracefully.")
	return nil
}

// ServeMCP runs the Model Context Protocol server on the chosen transport.
func ServeMCP(ctx context.Context, opts ServeOptions) error {
	cfg, err := loadConfig(opts.ConfigPath, opts.Addr)
	if err != nil {
		return err
	}
	logger := serviceLogger(cfg, opts.Debug)

	stack, err := BuildStack(cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	srv := mcp.NewServer(stack.Engine)
	switch opts.Transport {
	case "", "stdio":
		// Logs go to Stderr; Stdout carries JSON-RPC.
		logger.Info("starting MCP server", "transport", "stdio")
		return srv.ServeStdio()
	case "sse":
		baseURL := opts.BaseURL
		if baseURL == "" {
			baseURL = defaultBaseURL(cfg.HTTP.Addr)
		}
		logger.Info("starting MCP server", "transport", "sse", "address", cfg.HTTP.Addr)
		err := srv.ServeSSE(ctx, cfg.HTTP.Addr, baseURL)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	default:
		return fmt.Errorf("unknown transport %q: supported are stdio and sse", opts.Transport)
	}
}

func loadConfig(path, addr string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}
	return cfg, nil
}

// defaultBaseURL derives the advertised URL from a listen address.
func defaultBaseURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
