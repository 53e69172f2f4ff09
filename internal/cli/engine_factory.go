package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/config"
	"github.com/aretw0/lattice/internal/logging"
	httpAdapter "github.com/aretw0/lattice/pkg/adapters/http"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/adapters/process"
	"github.com/aretw0/lattice/pkg/adapters/redis"
	"github.com/aretw0/lattice/pkg/adapters/sqlite"
	"github.com/aretw0/lattice/pkg/observability"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Stack is an engine wired with the adapters selected by the configuration.
type Stack struct {
	Engine   *lattice.Engine
	Hardware *memory.Hardware
	Store    ports.RunStore
	Metrics  *observability.Metrics
	Streams  *httpAdapter.StreamManager

	closers []func() error
}

// Close releases the store connections.
func (s *Stack) Close() error {
	var errs []error
	for _, c := range slices.Backward(s.closers) {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// BuildStack initializes an engine with the standard CLI conventions: the
// simulated hardware, the configured store and locker, Prometheus metrics,
// the audit log and the SSE stream.
func BuildStack(cfg *config.Config, logger *slog.Logger) (*Stack, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	st := &Stack{
		Hardware: newHardware(cfg.Hardware),
		Streams:  httpAdapter.NewStreamManager(),
	}

	// 1. Persistence & Locking
	var locker ports.DistributedLocker
	switch cfg.Store.Backend {
	case config.BackendRedis:
		rc := cfg.Store.Redis
		store := redis.New(rc.Addr, rc.Password, rc.DB, redis.WithPrefix(rc.Prefix), redis.WithTTL(rc.TTL))
		st.Store = store
		st.closers = append(st.closers, store.Close)
		locker = redis.NewLocker(store.Client(), rc.Prefix)
	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.Store.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("error opening run store: %w", err)
		}
		st.Store = store
		st.closers = append(st.closers, store.Close)
		locker = memory.NewLocker()
	default:
		st.Store = memory.NewStore()
		locker = memory.NewLocker()
	}

	// 2. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	st.Metrics = observability.NewMetrics(reg)

	// 3. Initialize
	st.Engine = lattice.New(st.Hardware,
		lattice.WithLogger(logger),
		lattice.WithStore(st.Store),
		lattice.WithLocker(locker, cfg.Lock.Key, cfg.Lock.TTL),
		lattice.WithPollInterval(cfg.Engine.PollInterval),
		lattice.WithLifecycleHooks(st.Metrics.Hooks()),
		lattice.WithLifecycleHooks(st.Streams.Hooks()),
		lattice.WithLifecycleHooks(observability.AuditHooks(logger)),
	)

	// 4. External runnables
	if cfg.Runnables != "" {
		runnables, err := process.LoadRunnables(cfg.Runnables)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		pr := process.NewRunner(process.WithBaseDir(filepath.Dir(cfg.Runnables)), process.WithLogger(logger))
		for _, rc := range runnables {
			frame, position, channel, slice := rc.Indices()
			st.Engine.AttachRunnable(frame, position, channel, slice, pr.Func(rc))
			logger.Debug("runnable attached", "name", rc.Name, "command", rc.Command)
		}
	}
	return st, nil
}

func newHardware(hc config.HardwareConfig) *memory.Hardware {
	opts := []memory.HardwareOption{
		memory.WithFocus(hc.FocusUm),
		memory.WithContinuousFocus(hc.ContinuousFocus),
	}
	for _, group := range slices.Sorted(maps.Keys(hc.Configs)) {
		opts = append(opts, memory.WithConfig(group, hc.Configs[group]))
	}
	return memory.NewHardware(opts...)
}
