package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/simscript/internal/config/loader"
	"github.com/dshills/simscript/internal/override"
)

type memFS map[string]string

func (m memFS) ReadFile(path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, errors.New("not found")
	}
	return []byte(data), nil
}

func envOf(vars map[string]string) *loader.EnvLoader {
	return loader.NewEnvLoaderWithMapping(EnvPrefix, envMapping).WithLookup(func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	})
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1024, cfg.Loop.QueueSize)
	assert.Equal(t, "", cfg.Server.Listen)
	for _, f := range override.Families() {
		assert.Equal(t, 4, cfg.Controllers.Count(f), f)
	}
}

func TestLoadTOML(t *testing.T) {
	fsys := memFS{"/sim.toml": `
[log]
level = "debug"
format = "json"

[sim]
steps = 600
pace = "16ms"
code_watches = [0x80000010]
memory_watches = [0x80100004, 0x80100008]

[controllers]
gc = 1
wii = 0

[server]
listen = ":8080"
`}
	cfg, err := LoadWith(fsys, envOf(nil), "/sim.toml")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, uint64(600), cfg.Sim.Steps)
	assert.Equal(t, 16*time.Millisecond, cfg.Sim.Pace.Std())
	assert.Equal(t, []uint32{0x80000010}, cfg.Sim.CodeWatches)
	assert.Equal(t, []uint32{0x80100004, 0x80100008}, cfg.Sim.MemoryWatches)
	assert.Equal(t, 1, cfg.Controllers.GC)
	assert.Equal(t, 0, cfg.Controllers.Wii)
	assert.Equal(t, 4, cfg.Controllers.GBA, "unset fields keep defaults")
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, 64, cfg.Sim.FrameWidth)
}

func TestLoadYAML(t *testing.T) {
	fsys := memFS{"/sim.yml": `
loop:
  queue_size: 16
script:
  watch: true
  debounce: 250ms
sim:
  start_paused: true
`}
	cfg, err := LoadWith(fsys, envOf(nil), "/sim.yml")
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Loop.QueueSize)
	assert.True(t, cfg.Script.Watch)
	assert.Equal(t, 250*time.Millisecond, cfg.Script.Debounce.Std())
	assert.True(t, cfg.Sim.StartPaused)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	fsys := memFS{"/sim.toml": "[log]\nlevel = \"warn\"\n[server]\nlisten = \":1\"\n"}
	cfg, err := LoadWith(fsys, envOf(map[string]string{
		"SIMSCRIPT_LOG_LEVEL": "TRACE",
		"SIMSCRIPT_LISTEN":    "127.0.0.1:9000",
		"SIMSCRIPT_STEPS":     "42",
	}), "/sim.toml")
	require.NoError(t, err)

	assert.Equal(t, "trace", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Listen)
	assert.Equal(t, uint64(42), cfg.Sim.Steps)
}

func TestLoadBadEnvValue(t *testing.T) {
	_, err := LoadWith(memFS{}, envOf(map[string]string{"SIMSCRIPT_STEPS": "lots"}), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Contains(t, err.Error(), "SIMSCRIPT_STEPS")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadWith(memFS{}, envOf(nil), "/absent.toml")
	assert.Error(t, err)
}

func TestValidateCollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"
	cfg.Loop.QueueSize = 0
	cfg.Controllers.GBA = 5
	cfg.Sim.CodeWatches = []uint32{0x80000002}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)

	var errs ValidationErrors
	require.True(t, errors.As(err, &errs))
	paths := make([]string, len(errs))
	for i, e := range errs {
		paths[i] = e.Path
	}
	assert.ElementsMatch(t, []string{
		"log.level",
		"loop.queue_size",
		"sim.code_watches[0]",
		"controllers.gba",
	}, paths)
}

func TestSet(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Set("script.watch", "true"))
	assert.True(t, cfg.Script.Watch)
	require.NoError(t, cfg.Set("log.format", "JSON"))
	assert.Equal(t, "json", cfg.Log.Format)

	assert.ErrorIs(t, cfg.Set("ui.theme", "dark"), ErrUnknownSetting)
	assert.ErrorIs(t, cfg.Set("loop.queue_size", "big"), ErrValidationFailed)
}

func TestEnvVars(t *testing.T) {
	vars := EnvVars()
	assert.Contains(t, vars, "SIMSCRIPT_LOG_LEVEL")
	assert.Contains(t, vars, "SIMSCRIPT_LISTEN")
}
