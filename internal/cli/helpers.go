package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/lattice/internal/config"
	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/domain"
)

// createLogger configures the logger of interactive commands.
// Without debug it is silent so the progress output stays readable.
func createLogger(cfg *config.Config, debug bool) *slog.Logger {
	if !debug {
		return logging.NewNop()
	}
	if strings.EqualFold(cfg.Log.Format, "json") {
		return logging.NewJSON(slog.LevelDebug)
	}
	return logging.New(slog.LevelDebug)
}

// serviceLogger configures the logger of long-running servers.
func serviceLogger(cfg *config.Config, debug bool) *slog.Logger {
	if debug {
		cfg.Log.Level = "debug"
	}
	return cfg.Logger()
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// loadInputs reads the service configuration and the acquisition settings.
func loadInputs(configPath, settingsPath string) (*config.Config, *domain.Settings, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	s, err := config.LoadSettings(settingsPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, s, nil
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}
