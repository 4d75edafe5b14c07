package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"idlecraft/internal/catalog"
	"idlecraft/internal/clock"
	"idlecraft/internal/config"
	"idlecraft/internal/game"
)

func writeConfig(t *testing.T, dir, extra string) string {
	t.Helper()
	body := fmt.Sprintf(`
logging:
  level: error
  console: false
storage:
  driver: file
  path: %s
save:
  autosave: "off"
  flush_on_finish: true
http:
  enabled: false
%s`, filepath.Join(dir, "data", "idlecraft"), extra)
	p := filepath.Join(dir, "idlecraft.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestStopSavesAndNewRestores(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "")
	clk := clock.NewManual(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))

	a, err := New(path, Options{Clock: clk})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))

	a.Production().Mutate(func(st *game.State) { st.Inventory.Add("log_pine", 5) })
	require.NoError(t, a.Stop(context.Background(), StopAppStop))

	b, err := New(path, Options{Clock: clk})
	require.NoError(t, err)
	defer b.Stop(context.Background(), StopAppStop)
	require.Equal(t, 5, b.Production().Inventory().QuantityOf("log_pine"))
}

func TestFinishedActionFlushes(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "")
	clk := clock.NewManual(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))

	a, err := New(path, Options{Clock: clk})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))
	defer a.Stop(context.Background(), StopAppStop)

	a.Production().Mutate(func(st *game.State) { st.Inventory.Add("log_pine", 2) })
	require.NoError(t, a.Production().TryStart(catalog.Craft, "plank_pine", nil))
	clk.Advance(5 * time.Second)

	require.Eventually(t, func() bool {
		st, ok, err := a.store.LoadSave(context.Background(), "main")
		return err == nil && ok && st.Inventory.QuantityOf("plank_pine") == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConsoleSaveWithoutStorage(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "c.yaml")
	require.NoError(t, os.WriteFile(p, []byte("logging:\n  level: error\n"), 0o600))

	a, err := New(p, Options{})
	require.NoError(t, err)
	defer a.Stop(context.Background(), StopAppStop)

	_, err = a.Console().Exec(context.Background(), "save")
	require.Error(t, err)
}

func TestValidateRuntime(t *testing.T) {
	t.Parallel()
	ok, err := config.Decode("c.yaml", []byte("save:\n  autosave: 1m\n"))
	require.NoError(t, err)
	require.NoError(t, validateRuntime(ok))

	bad, err := config.Decode("c.yaml", []byte("save:\n  autosave: every banana\n"))
	require.NoError(t, err)
	require.ErrorContains(t, validateRuntime(bad), "save.autosave")

	tz, err := config.Decode("c.yaml", []byte("scheduler:\n  timezone: Mars/Olympus\n"))
	require.NoError(t, err)
	require.ErrorContains(t, validateRuntime(tz), "scheduler.timezone")

	require.ErrorContains(t, validateRuntime(&config.Config{Storage: &config.StorageConfig{Driver: "badger"}}), "storage.path")
}

func TestMapLogConfigTUI(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Logging: config.LoggingConfig{Level: "info", Console: true}}

	lc := mapLogConfig(cfg, false)
	require.True(t, lc.Console)
	require.False(t, lc.File.Enabled)

	lc = mapLogConfig(cfg, true)
	require.False(t, lc.Console)
	require.True(t, lc.File.Enabled)
	require.Equal(t, "./idlecraft.log", lc.File.Path)
}

func TestMapTaskEngineDefaults(t *testing.T) {
	t.Parallel()
	ec, err := mapTaskEngineConfig(&config.Config{})
	require.NoError(t, err)
	require.True(t, ec.Enabled)
	require.Equal(t, 1, ec.Workers)
	require.Equal(t, 64, ec.QueueSize)
	require.Equal(t, 10*time.Second, ec.DefaultTimeout)

	off := false
	ec, err = mapTaskEngineConfig(&config.Config{TaskEngine: &config.TaskEngineConfig{Enabled: &off, Workers: 3, DefaultTimeout: "2s"}})
	require.NoError(t, err)
	require.False(t, ec.Enabled)
	require.Equal(t, 3, ec.Workers)
	require.Equal(t, 2*time.Second, ec.DefaultTimeout)
}
