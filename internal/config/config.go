package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/simscript/internal/config/loader"
	"github.com/dshills/simscript/internal/logging"
	"github.com/dshills/simscript/internal/override"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SIMSCRIPT_"

// Config is the complete simscript configuration.
type Config struct {
	Log         LogConfig         `toml:"log" yaml:"log"`
	Loop        LoopConfig        `toml:"loop" yaml:"loop"`
	Sim         SimConfig         `toml:"sim" yaml:"sim"`
	Controllers ControllersConfig `toml:"controllers" yaml:"controllers"`
	Server      ServerConfig      `toml:"server" yaml:"server"`
	Script      ScriptConfig      `toml:"script" yaml:"script"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is a zerolog level name.
	Level string `toml:"level" yaml:"level"`
	// Format is "console" or "json".
	Format string `toml:"format" yaml:"format"`
}

// LoopConfig configures the owner loop.
type LoopConfig struct {
	QueueSize int `toml:"queue_size" yaml:"queue_size"`
}

// SimConfig configures the reference machine and its driver.
type SimConfig struct {
	// Steps ends the run after this many steps. Zero runs until stopped.
	Steps       uint64   `toml:"steps" yaml:"steps"`
	Pace        Duration `toml:"pace" yaml:"pace"`
	StartPaused bool     `toml:"start_paused" yaml:"start_paused"`

	FrameWidth     int `toml:"frame_width" yaml:"frame_width"`
	FrameHeight    int `toml:"frame_height" yaml:"frame_height"`
	FrameEvery     int `toml:"frame_every" yaml:"frame_every"`
	InterruptEvery int `toml:"interrupt_every" yaml:"interrupt_every"`
	PollsPerStep   int `toml:"polls_per_step" yaml:"polls_per_step"`

	CodeWatches   []uint32 `toml:"code_watches" yaml:"code_watches"`
	MemoryWatches []uint32 `toml:"memory_watches" yaml:"memory_watches"`
}

// ControllersConfig sets how many controllers of each family are
// connected.
type ControllersConfig struct {
	GC         int `toml:"gc" yaml:"gc"`
	Wii        int `toml:"wii" yaml:"wii"`
	WiiClassic int `toml:"wii_classic" yaml:"wii_classic"`
	WiiNunchuk int `toml:"wii_nunchuk" yaml:"wii_nunchuk"`
	GBA        int `toml:"gba" yaml:"gba"`
}

// Count returns the number of controllers configured for family.
func (c ControllersConfig) Count(family override.Family) int {
	switch family {
	case override.FamilyGC:
		return c.GC
	case override.FamilyWii:
		return c.Wii
	case override.FamilyWiiClassic:
		return c.WiiClassic
	case override.FamilyWiiNunchuk:
		return c.WiiNunchuk
	case override.FamilyGBA:
		return c.GBA
	default:
		return 0
	}
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Listen is the listen address. Empty disables the server.
	Listen string `toml:"listen" yaml:"listen"`
	// EventBuffer is the per socket event buffer.
	EventBuffer int `toml:"event_buffer" yaml:"event_buffer"`
}

// ScriptConfig configures the Lua runtime.
type ScriptConfig struct {
	Path          string   `toml:"path" yaml:"path"`
	Watch         bool     `toml:"watch" yaml:"watch"`
	Debounce      Duration `toml:"debounce" yaml:"debounce"`
	CallStackSize int      `toml:"call_stack_size" yaml:"call_stack_size"`
}

// Duration is a time.Duration written as a string such as "16ms".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Loop: LoopConfig{
			QueueSize: 1024,
		},
		Sim: SimConfig{
			FrameWidth:     64,
			FrameHeight:    48,
			FrameEvery:     4,
			InterruptEvery: 16,
			PollsPerStep:   2,
		},
		Controllers: ControllersConfig{
			GC:         4,
			Wii:        4,
			WiiClassic: 4,
			WiiNunchuk: 4,
			GBA:        4,
		},
		Server: ServerConfig{
			EventBuffer: 64,
		},
		Script: ScriptConfig{
			Debounce:      Duration(100 * time.Millisecond),
			CallStackSize: 256,
		},
	}
}

// envMapping binds SIMSCRIPT_* variables to setting paths.
var envMapping = map[string]string{
	"LOG_LEVEL":  "log.level",
	"LOG_FORMAT": "log.format",
	"LISTEN":     "server.listen",
	"QUEUE_SIZE": "loop.queue_size",
	"STEPS":      "sim.steps",
}

// Load builds the configuration from defaults, the file at path (if path
// is not empty) and the process environment, then validates it.
func Load(path string) (*Config, error) {
	return LoadWith(loader.DefaultFS(), loader.NewEnvLoaderWithMapping(EnvPrefix, envMapping), path)
}

// LoadWith is Load with an explicit file system and environment.
func LoadWith(fsys loader.FileSystem, env *loader.EnvLoader, path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loader.LoadFile(fsys, path, cfg); err != nil {
			return nil, err
		}
	}
	if env != nil {
		for _, o := range env.Load() {
			if err := cfg.Set(o.Path, o.Value); err != nil {
				return nil, fmt.Errorf("%s: %w", o.Env, err)
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EnvVars returns the environment variables Load consults.
func EnvVars() []string {
	return loader.NewEnvLoaderWithMapping(EnvPrefix, envMapping).Vars()
}

// Set assigns a single setting from its string form.
func (c *Config) Set(path, value string) error {
	var err error
	switch path {
	case "log.level":
		c.Log.Level = strings.ToLower(value)
	case "log.format":
		c.Log.Format = strings.ToLower(value)
	case "server.listen":
		c.Server.Listen = value
	case "loop.queue_size":
		c.Loop.QueueSize, err = strconv.Atoi(value)
	case "sim.steps":
		c.Sim.Steps, err = strconv.ParseUint(value, 10, 64)
	case "script.path":
		c.Script.Path = value
	case "script.watch":
		c.Script.Watch, err = strconv.ParseBool(value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSetting, path)
	}
	if err != nil {
		return &ValidationError{Path: path, Message: err.Error(), Value: value}
	}
	return nil
}

// Validate checks every setting and reports all failures together.
func (c *Config) Validate() error {
	var errs ValidationErrors
	check := func(ok bool, path, msg string, value any) {
		if !ok {
			errs = append(errs, &ValidationError{Path: path, Message: msg, Value: value})
		}
	}

	_, err := logging.ParseLevel(c.Log.Level)
	check(err == nil, "log.level", "unknown level", c.Log.Level)
	check(c.Log.Format == logging.FormatConsole || c.Log.Format == logging.FormatJSON,
		"log.format", `must be "console" or "json"`, c.Log.Format)

	check(c.Loop.QueueSize > 0, "loop.queue_size", "must be positive", c.Loop.QueueSize)

	check(c.Sim.Pace >= 0, "sim.pace", "must not be negative", c.Sim.Pace.Std())
	check(c.Sim.FrameWidth > 0, "sim.frame_width", "must be positive", c.Sim.FrameWidth)
	check(c.Sim.FrameHeight > 0, "sim.frame_height", "must be positive", c.Sim.FrameHeight)
	check(c.Sim.FrameEvery >= 0, "sim.frame_every", "must not be negative", c.Sim.FrameEvery)
	check(c.Sim.InterruptEvery >= 0, "sim.interrupt_every", "must not be negative", c.Sim.InterruptEvery)
	check(c.Sim.PollsPerStep > 0, "sim.polls_per_step", "must be positive", c.Sim.PollsPerStep)
	for i, addr := range c.Sim.CodeWatches {
		check(addr%4 == 0, fmt.Sprintf("sim.code_watches[%d]", i), "must be word aligned", fmt.Sprintf("%#x", addr))
	}

	for _, f := range override.Families() {
		n := c.Controllers.Count(f)
		check(n >= 0 && n <= 4, "controllers."+string(f), "must be between 0 and 4", n)
	}

	check(c.Server.EventBuffer > 0, "server.event_buffer", "must be positive", c.Server.EventBuffer)

	check(c.Script.Debounce >= 0, "script.debounce", "must not be negative", c.Script.Debounce.Std())
	check(c.Script.CallStackSize > 0, "script.call_stack_size", "must be positive", c.Script.CallStackSize)

	if len(errs) > 0 {
		return errs
	}
	return nil
}
