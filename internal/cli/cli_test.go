package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/lattice/internal/config"
	"github.com/aretw0/lattice/internal/testutils"
	"github.com/aretw0/lattice/pkg/adapters/redis"
	"github.com/aretw0/lattice/pkg/adapters/sqlite"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoChannelLapse = `
name: lapse
use_channels: true
channel_group: Channel
channels:
  - {config: GFP, use_channel: true, exposure_ms: 5}
  - {config: RFP, use_channel: true, exposure_ms: 5}
use_frames: true
num_frames: 2
acq_order_mode: TIME_POS_SLICE_CHANNEL
`

const focusStack = `
name: stack
use_slices: true
slice_z_bottom_um: -1
slice_z_top_um: 1
slice_z_step_um: 1
relative_z_slice: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	return testutils.WriteSettingsFile(t, "lattice.yaml", content)
}

func TestExecute_TextOutput(t *testing.T) {
	var out bytes.Buffer
	rec, err := Execute(context.Background(), RunOptions{
		SettingsPath:   testutils.WriteSettingsFile(t, "lapse.yaml", twoChannelLapse),
		Stdout:         &out,
		DisableSignals: true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, rec.Status)
	assert.Equal(t, 4, rec.EventsExecuted)
	assert.Contains(t, out.String(), `Acquiring "lapse": 4 events`)
	assert.Contains(t, out.String(), "[4/4] channel=1 time=1 preset=RFP")
	assert.Contains(t, out.String(), "## Acquisition completed")
	assert.NotContains(t, out.String(), "|_____", "no banner outside a terminal")
}

func TestExecute_JSONWithSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	cfgPath := writeConfig(t, fmt.Sprintf("store:\n  backend: sqlite\n  sqlite:\n    path: %s\n", dbPath))

	var out bytes.Buffer
	rec, err := Execute(context.Background(), RunOptions{
		SettingsPath:   testutils.WriteSettingsFile(t, "lapse.yaml", twoChannelLapse),
		ConfigPath:     cfgPath,
		RunID:          "sqlite-run",
		JSON:           true,
		Stdout:         &out,
		DisableSignals: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "sqlite-run", rec.ID)

	var types []string
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var msg map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &msg))
		types = append(types, msg["type"].(string))
	}
	require.NotEmpty(t, types)
	assert.Equal(t, "run_started", types[0])
	assert.Equal(t, "run_ended", types[len(types)-1])

	store, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	saved, err := store.Load(context.Background(), "sqlite-run")
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, saved.Status)

	events, err := store.Events(context.Background(), "sqlite-run")
	require.NoError(t, err)
	assert.Len(t, events, 4)
}

func TestExecute_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfgPath := writeConfig(t, fmt.Sprintf("store:\n  backend: redis\n  redis:\n    addr: %s\n    ttl: 1h\n", mr.Addr()))

	_, err := Execute(context.Background(), RunOptions{
		SettingsPath:   testutils.WriteSettingsFile(t, "lapse.yaml", twoChannelLapse),
		ConfigPath:     cfgPath,
		RunID:          "redis-run",
		Quiet:          true,
		Stdout:         &bytes.Buffer{},
		DisableSignals: true,
	})
	require.NoError(t, err)

	store := redis.New(mr.Addr(), "", 0)
	defer store.Close()
	saved, err := store.Load(context.Background(), "redis-run")
	require.NoError(t, err)
	assert.Equal(t, 4, saved.EventsExecuted)
	assert.False(t, mr.Exists("lattice:lock:acquisition"), "lock released after the run")
}

func TestExecute_InvalidSettings(t *testing.T) {
	_, err := Execute(context.Background(), RunOptions{
		SettingsPath:   testutils.WriteSettingsFile(t, "bad.yaml", "use_slices: true\nslice_z_step_um: 0\n"),
		Stdout:         &bytes.Buffer{},
		DisableSignals: true,
	})
	assert.ErrorIs(t, err, domain.ErrZeroZStep)
}

func TestExecute_InterruptAborts(t *testing.T) {
	interrupt := make(chan struct{})
	close(interrupt)

	var out bytes.Buffer
	rec, err := Execute(context.Background(), RunOptions{
		SettingsPath:   testutils.WriteSettingsFile(t, "long.yaml", "use_frames: true\nnum_frames: 100\ninterval_ms: 1000\n"),
		Stdout:         &out,
		Interrupt:      interrupt,
		DisableSignals: true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RunAborted, rec.Status)
	assert.Less(t, rec.EventsExecuted, 100)
	assert.Contains(t, out.String(), "interrupt: aborting acquisition")
}

func TestPlan_UsesConfiguredFocus(t *testing.T) {
	cfgPath := writeConfig(t, "hardware:\n  focus_um: 10\n")
	settings := testutils.WriteSettingsFile(t, "stack.yaml", focusStack)

	var out bytes.Buffer
	require.NoError(t, Plan(context.Background(), PlanOptions{SettingsPath: settings, ConfigPath: cfgPath, Stdout: &out}))
	assert.Contains(t, out.String(), "1  z=0 z=9.000")
	assert.Contains(t, out.String(), "3  z=2 z=11.000")

	out.Reset()
	require.NoError(t, Plan(context.Background(), PlanOptions{SettingsPath: settings, ConfigPath: cfgPath, Limit: 2, Stdout: &out}))
	assert.NotContains(t, out.String(), "z=11.000")
	assert.Contains(t, out.String(), "... 1 more")

	out.Reset()
	require.NoError(t, Plan(context.Background(), PlanOptions{SettingsPath: settings, ConfigPath: cfgPath, JSON: true, Stdout: &out}))
	var events []domain.Event
	require.NoError(t, json.Unmarshal(out.Bytes(), &events))
	require.Len(t, events, 3)
	z, ok := events[1].Z()
	require.True(t, ok)
	assert.Equal(t, 10.0, z)
}

func TestPlan_Mermaid(t *testing.T) {
	var out bytes.Buffer
	err := Plan(context.Background(), PlanOptions{
		SettingsPath: testutils.WriteSettingsFile(t, "lapse.yaml", twoChannelLapse),
		Mermaid:      true,
		Stdout:       &out,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "graph TD")
	assert.Contains(t, out.String(), "time --> channel")
	assert.Contains(t, out.String(), `snap[["snap × 4"]]`)
}

func TestCount(t *testing.T) {
	settings := testutils.WriteSettingsFile(t, "lapse.yaml", twoChannelLapse)

	var out bytes.Buffer
	require.NoError(t, Count(PlanOptions{SettingsPath: settings, Stdout: &out}))
	assert.Regexp(t, `Events\s+4`, out.String())
	assert.Regexp(t, `Channels\s+2`, out.String())
	assert.Regexp(t, `Memory\s+2.0 MiB \(512x512, 2 B/px\)`, out.String())

	out.Reset()
	require.NoError(t, Count(PlanOptions{SettingsPath: settings, JSON: true, Stdout: &out}))
	var summary struct {
		sequence.Summary
		TotalBytes int64 `json:"total_bytes"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, 4, summary.TotalEvents)
	assert.Equal(t, 2, summary.Dims.Frames)
	assert.Equal(t, int64(4*512*512*2), summary.TotalBytes)
}

func TestCount_SliceRange(t *testing.T) {
	settings := testutils.WriteSettingsFile(t, "stack.yaml", `
use_slices: true
slice_z_bottom_um: -2
slice_z_top_um: 2
slice_z_step_um: 0.5
`)

	var out bytes.Buffer
	require.NoError(t, Count(PlanOptions{SettingsPath: settings, Stdout: &out}))
	assert.Regexp(t, `Slices\s+9 \(-2 \.\. 2 µm\)`, out.String())
}

func TestValidate(t *testing.T) {
	var out bytes.Buffer
	err := Validate(PlanOptions{SettingsPath: testutils.WriteSettingsFile(t, "lapse.yaml", twoChannelLapse), Stdout: &out})
	require.NoError(t, err)
	assert.Equal(t, ">>> Settings are valid: 4 events.\n", out.String())

	err = Validate(PlanOptions{SettingsPath: testutils.WriteSettingsFile(t, "bad.yaml", "use_channels: true\n"), Stdout: &out})
	assert.ErrorIs(t, err, domain.ErrNoChannels)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrs := make(chan string, 1)
	done := make(chan error, 1)
	var out bytes.Buffer
	go func() {
		done <- Serve(ctx, ServeOptions{
			Addr:      "127.0.0.1:0",
			Stdout:    &out,
			Listening: func(addr string) { addrs <- addr },
		})
	}()

	var addr string
	select {
	case addr = <-addrs:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeMCP_UnknownTransport(t *testing.T) {
	err := ServeMCP(context.Background(), ServeOptions{Transport: "websocket"})
	assert.ErrorContains(t, err, "unknown transport")
}

func TestBuildStack_Backends(t *testing.T) {
	cfg := config.Default()
	cfg.Hardware.Configs = map[string]string{"Channel": "DAPI", "Objective": "10x"}

	st, err := BuildStack(cfg, nil)
	require.NoError(t, err)
	defer st.Close()
	assert.Equal(t, "DAPI", st.Hardware.Config("Channel"))
	assert.Equal(t, "10x", st.Hardware.Config("Objective"))

	cfg.Store.Backend = config.BackendSQLite
	cfg.Store.SQLite.Path = filepath.Join(t.TempDir(), "x.db")
	st, err = BuildStack(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, st.Store)
	require.NoError(t, st.Close())
}

func TestExecute_ProcessRunnables(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("runnable fixtures use sh")
	}
	dir := t.TempDir()
	marker := filepath.Join(dir, "hits.log")
	runnables := testutils.WriteSettingsFile(t, "runnables.yaml", fmt.Sprintf(`
runnables:
  - name: mark-rfp
    command: sh
    args: ["-c", "echo $LATTICE_TIME-$LATTICE_PRESET >> %s"]
    channel: 1
`, marker))
	cfgPath := writeConfig(t, "runnables: "+runnables+"\n")

	rec, err := Execute(context.Background(), RunOptions{
		SettingsPath:   testutils.WriteSettingsFile(t, "lapse.yaml", twoChannelLapse),
		ConfigPath:     cfgPath,
		Quiet:          true,
		Stdout:         &bytes.Buffer{},
		DisableSignals: true,
	})
	require.NoError(t, err)
	assert.Zero(t, rec.HookFailures)

	hits, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "0-RFP\n1-RFP\n", string(hits))
}

func TestDefaultBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080", defaultBaseURL(":8080"))
	assert.Equal(t, "http://10.0.0.2:9000", defaultBaseURL("10.0.0.2:9000"))
}
