package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]zerolog.Level{
		"":         zerolog.InfoLevel,
		"debug":    zerolog.DebugLevel,
		" WARN ":   zerolog.WarnLevel,
		"trace":    zerolog.TraceLevel,
		"error":    zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewJSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: FormatJSON, Output: &buf})
	require.NoError(t, err)

	hubLog := Component(logger, ComponentHub)
	hubLog.Debug().Str("kind", "step_advanced").Msg("listener failed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hub", line["component"])
	assert.Equal(t, "step_advanced", line["kind"])
	assert.Equal(t, "debug", line["level"])
	assert.Contains(t, line, "time")
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: FormatJSON, Output: &buf})
	require.NoError(t, err)

	logger.Info().Msg("quiet")
	assert.Zero(t, buf.Len())
	logger.Warn().Msg("loud")
	assert.NotZero(t, buf.Len())
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Output: &buf, NoColor: true})
	require.NoError(t, err)

	simLog := Component(logger, ComponentSim)
	simLog.Info().Uint64("steps", 3).Msg("simulation stopped")
	out := buf.String()
	assert.Contains(t, out, "INF")
	assert.Contains(t, out, "simulation stopped")
	assert.Contains(t, out, "component=sim")
	assert.Contains(t, out, "steps=3")
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = New(Options{Level: "chatty"})
	assert.Error(t, err)
}
