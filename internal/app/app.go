// Package app wires the simscript components together and manages their
// lifecycle.
//
// Components are created in dependency order: metrics, loop, hub, bridge,
// override caches and controller hooks, machine and driver. Run binds the
// calling goroutine as the loop owner, starts the script and the optional
// HTTP server and file watcher, and steps the machine until the context
// ends or the step limit is reached.
package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dshills/simscript/internal/automation"
	"github.com/dshills/simscript/internal/automation/lua"
	"github.com/dshills/simscript/internal/config"
	"github.com/dshills/simscript/internal/event"
	"github.com/dshills/simscript/internal/logging"
	"github.com/dshills/simscript/internal/loop"
	"github.com/dshills/simscript/internal/metrics"
	"github.com/dshills/simscript/internal/override"
	"github.com/dshills/simscript/internal/server"
	"github.com/dshills/simscript/internal/sim"
)

// Options configures the application.
type Options struct {
	// Config is the loaded configuration. Nil means config.Default().
	Config *config.Config

	// Logger is the root logger.
	Logger zerolog.Logger

	// Raw supplies controller values before overrides. Nil reads zero.
	Raw override.RawReader

	// Machine replaces the configured CounterMachine.
	Machine sim.Machine

	// FatalHandler replaces the exit-on-violation handler, for tests.
	FatalHandler event.FatalHandler
}

// Application is the central coordinator for all simscript components.
type Application struct {
	cfg *config.Config
	log zerolog.Logger

	metrics  *metrics.Metrics
	loop     *loop.Loop
	hub      *event.Hub
	bridge   *automation.Bridge
	registry *override.Registry
	caches   []*override.Cache
	bindings []*override.Binding
	pads     []*override.Pad
	machine  sim.Machine
	driver   *sim.Driver

	// runtime and scriptPath are owned by the loop goroutine.
	runtime    *lua.Runtime
	scriptPath string
	reloads    atomic.Uint64

	running atomic.Bool
}

// New creates an Application with the given options.
func New(opts Options) (*Application, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}

	app := &Application{
		cfg:        cfg,
		log:        opts.Logger,
		scriptPath: cfg.Script.Path,
	}
	if err := app.bootstrap(opts); err != nil {
		app.teardown()
		return nil, err
	}
	return app, nil
}

// bootstrap initializes all components in dependency order.
func (app *Application) bootstrap(opts Options) error {
	cfg := app.cfg

	// 1. Metrics
	app.metrics = metrics.New()

	// 2. Owner loop and hub
	app.loop = loop.New(
		loop.WithQueueSize(cfg.Loop.QueueSize),
		loop.WithLogger(logging.Component(app.log, logging.ComponentLoop)),
	)
	fatal := opts.FatalHandler
	if fatal == nil {
		fatal = event.FatalExit(logging.Component(app.log, logging.ComponentHub))
	}
	app.hub = event.NewHub(
		event.WithOwner(app.loop),
		event.WithFatalHandler(fatal),
		event.WithLogger(logging.Component(app.log, logging.ComponentHub)),
		event.WithObserver(app.metrics),
	)

	// 3. Suspension bridge
	app.bridge = automation.NewBridge(app.hub,
		automation.WithBridgeLogger(logging.Component(app.log, logging.ComponentBridge)),
		automation.WithBridgeObserver(app.metrics),
	)

	// 4. Override caches and controller hooks
	app.registry = override.NewRegistry()
	for _, family := range override.Families() {
		count := cfg.Controllers.Count(family)
		if count == 0 {
			continue
		}
		cache := override.NewCache(family,
			override.WithOwner(app.loop),
			override.WithFatalHandler(fatal),
			override.WithLogger(logging.Component(app.log, logging.ComponentOverride)),
			override.WithObserver(app.metrics),
		)
		binding, err := override.Bind(app.hub, app.registry, cache, count)
		if err != nil {
			return &InitError{Component: "overrides " + string(family), Err: err}
		}
		app.caches = append(app.caches, cache)
		app.bindings = append(app.bindings, binding)
		for _, id := range binding.Controllers() {
			app.pads = append(app.pads, override.NewPad(id, opts.Raw, app.registry))
		}
	}

	// 5. Machine and driver
	app.machine = opts.Machine
	if app.machine == nil {
		app.machine = sim.NewCounterMachine(sim.CounterConfig{
			CodeWatches:    cfg.Sim.CodeWatches,
			MemoryWatches:  cfg.Sim.MemoryWatches,
			FrameWidth:     cfg.Sim.FrameWidth,
			FrameHeight:    cfg.Sim.FrameHeight,
			FrameEvery:     cfg.Sim.FrameEvery,
			InterruptEvery: cfg.Sim.InterruptEvery,
			PollsPerStep:   cfg.Sim.PollsPerStep,
		})
	}
	driverOpts := []sim.DriverOption{
		sim.WithPace(cfg.Sim.Pace.Std()),
		sim.WithStepLimit(cfg.Sim.Steps),
		sim.WithDriverLogger(logging.Component(app.log, logging.ComponentSim)),
	}
	if cfg.Sim.StartPaused {
		driverOpts = append(driverOpts, sim.WithStartPaused())
	}
	app.driver = sim.NewDriver(app.loop, app.hub, app.machine, app.pads, driverOpts...)

	// 6. Scrape-time gauges
	gauges := []struct {
		subsystem, name, help string
		fn                    func() float64
	}{
		{"sim", "steps", "Steps since start or the last reset", func() float64 { return float64(app.driver.Steps()) }},
		{"loop", "pending_tasks", "Tasks queued for the loop goroutine", func() float64 { return float64(app.loop.Pending()) }},
		{"script", "reloads_total", "Script restarts", func() float64 { return float64(app.reloads.Load()) }},
	}
	for _, g := range gauges {
		if err := app.metrics.RegisterGaugeFunc(g.subsystem, g.name, g.help, g.fn); err != nil {
			return &InitError{Component: "metrics", Err: err}
		}
	}
	return nil
}

// Run binds the calling goroutine as the loop owner and runs until ctx is
// cancelled, the step limit is reached or the initial script fails.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		bgErr    error
		bgErrMu  sync.Mutex
		startErr error
	)
	fail := func(err error) {
		bgErrMu.Lock()
		if bgErr == nil {
			bgErr = err
		}
		bgErrMu.Unlock()
		cancel()
	}

	if app.cfg.Server.Listen != "" {
		srv := app.newServer()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(ctx, app.cfg.Server.Listen); err != nil {
				fail(&InitError{Component: "server", Err: err})
			}
		}()
	}

	if app.cfg.Script.Watch && app.scriptPath != "" {
		w, err := app.newWatcher()
		if err != nil {
			cancel()
			wg.Wait()
			return &InitError{Component: "watcher", Err: err}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.watch(ctx, w)
		}()
	}

	// The script starts on the loop goroutine before the first step.
	if app.scriptPath != "" {
		if err := app.loop.Submit(func() {
			if err := app.startScript(); err != nil {
				startErr = err
				app.driver.Stop()
			}
		}); err != nil {
			cancel()
			wg.Wait()
			return err
		}
	}

	runErr := app.driver.Run(ctx)

	// Script teardown happens on this goroutine, which owned the loop.
	app.closeScript()
	cancel()
	wg.Wait()

	switch {
	case startErr != nil:
		return startErr
	case bgErr != nil:
		return bgErr
	case runErr != nil && !errors.Is(runErr, context.Canceled):
		return runErr
	}
	return nil
}

// Reload restarts the script session on the loop goroutine. Safe from any
// goroutine.
func (app *Application) Reload() error {
	return app.loop.Submit(func() {
		if err := app.restartScript(); err != nil {
			app.log.Error().Err(err).Msg("script reload failed")
		}
	})
}

// startScript runs the main chunk of the configured script.
func (app *Application) startScript() error {
	if app.scriptPath == "" {
		return ErrNoScript
	}
	app.runtime = lua.NewRuntime(app.hub, app.bridge,
		lua.WithCaches(app.caches...),
		lua.WithEmulation(app.driver),
		lua.WithLogger(logging.Component(app.log, logging.ComponentLua)),
		lua.WithStateOptions(lua.WithCallStackSize(app.cfg.Script.CallStackSize)),
	)
	app.log.Info().
		Str("script", app.scriptPath).
		Str("session", app.runtime.Session().ID().String()).
		Msg("script started")
	if err := app.runtime.RunFile(app.scriptPath); err != nil {
		return &ScriptError{Path: app.scriptPath, Err: err}
	}
	return nil
}

// restartScript tears down the running session, clears overrides and
// starts the script again.
func (app *Application) restartScript() error {
	app.closeScript()
	for _, c := range app.caches {
		c.Reset()
	}
	app.reloads.Add(1)
	return app.startScript()
}

func (app *Application) closeScript() {
	if app.runtime == nil {
		return
	}
	app.runtime.Close()
	app.runtime = nil
}

// Shutdown releases the controller hooks and the loop. Call after Run
// returns.
func (app *Application) Shutdown() {
	app.teardown()
}

func (app *Application) teardown() {
	for _, b := range app.bindings {
		b.Unbind()
	}
	app.bindings = nil
	if app.hub != nil {
		app.hub.Close()
	}
	if app.loop != nil {
		app.loop.Close()
	}
}

// Status reports run state for health checks. Safe from any goroutine.
func (app *Application) Status() map[string]any {
	stats := app.hub.Stats()
	return map[string]any{
		"state":       app.driver.State().String(),
		"steps":       app.driver.Steps(),
		"script":      app.cfg.Script.Path,
		"reloads":     app.reloads.Load(),
		"controllers": len(app.pads),
		"dispatch": map[string]any{
			"calls":       stats.Dispatched,
			"failed":      stats.Failed,
			"panicked":    stats.Panicked,
			"avg_seconds": stats.AvgDuration.Seconds(),
		},
	}
}

// Loop returns the owner loop.
func (app *Application) Loop() *loop.Loop {
	return app.loop
}

// Hub returns the event hub.
func (app *Application) Hub() *event.Hub {
	return app.hub
}

// Driver returns the simulation driver.
func (app *Application) Driver() *sim.Driver {
	return app.driver
}

// Metrics returns the metrics collectors.
func (app *Application) Metrics() *metrics.Metrics {
	return app.metrics
}

// Caches returns the override caches, one per configured family.
func (app *Application) Caches() []*override.Cache {
	return app.caches
}

func (app *Application) newServer() *server.Server {
	return server.New(server.Options{
		Loop:        app.loop,
		Hub:         app.hub,
		Metrics:     app.metrics,
		Logger:      logging.Component(app.log, logging.ComponentServer),
		Status:      app.Status,
		EventBuffer: app.cfg.Server.EventBuffer,
	})
}
