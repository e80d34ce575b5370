package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/simscript/internal/app"
	"github.com/dshills/simscript/internal/config"
	"github.com/dshills/simscript/internal/event"
	"github.com/dshills/simscript/internal/logging"
	"github.com/dshills/simscript/internal/override"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "simscript",
		Short:         "Drive a simulated machine from Lua scripts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to a .toml or .yaml configuration file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: trace|debug|info|warn|error (defaults SIMSCRIPT_LOG_LEVEL or info)")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "Log format: console|json")

	root.AddCommand(newRunCmd(flags), newKindsCmd(), newVersionCmd())
	return root
}

// loadConfig loads the configuration file and applies the shared flags.
func (f *rootFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		if err := cfg.Set("log.level", f.logLevel); err != nil {
			return nil, err
		}
	}
	if f.logFormat != "" {
		if err := cfg.Set("log.format", f.logFormat); err != nil {
			return nil, err
		}
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Config, out io.Writer) (zerolog.Logger, error) {
	noColor := true
	if file, ok := out.(*os.File); ok {
		noColor = !isatty.IsTerminal(file.Fd())
	}
	return logging.New(logging.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  out,
		NoColor: noColor,
	})
}

type runFlags struct {
	steps  uint64
	listen string
	watch  bool
	paused bool
}

func newRunCmd(root *rootFlags) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <script.lua>",
		Short: "Run a script against the simulation",
		Example: "  simscript run press_a.lua --steps 600\n" +
			"  simscript run bot.lua --listen :8080 --watch",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			cfg.Script.Path = args[0]
			if cmd.Flags().Changed("steps") {
				cfg.Sim.Steps = flags.steps
			}
			if cmd.Flags().Changed("listen") {
				cfg.Server.Listen = flags.listen
			}
			if cmd.Flags().Changed("watch") {
				cfg.Script.Watch = flags.watch
			}
			if cmd.Flags().Changed("paused") {
				cfg.Sim.StartPaused = flags.paused
			}
			return runScript(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().Uint64Var(&flags.steps, "steps", 0, "Stop after this many steps (0 runs until interrupted)")
	cmd.Flags().StringVar(&flags.listen, "listen", "", "Serve /healthz, /metrics and /events on this address")
	cmd.Flags().BoolVar(&flags.watch, "watch", false, "Restart the script when the file changes")
	cmd.Flags().BoolVar(&flags.paused, "paused", false, "Start with the simulation paused")
	return cmd
}

func runScript(ctx context.Context, cfg *config.Config, logOut io.Writer) error {
	logger, err := newLogger(cfg, logOut)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(app.Options{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer application.Shutdown()

	logger.Info().
		Str("script", cfg.Script.Path).
		Uint64("steps", cfg.Sim.Steps).
		Str("listen", cfg.Server.Listen).
		Bool("watch", cfg.Script.Watch).
		Msg("starting")
	return application.Run(ctx)
}

func newKindsCmd() *cobra.Command {
	var families bool
	cmd := &cobra.Command{
		Use:   "kinds",
		Short: "List event kinds and controller controls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Event kinds:")
			for _, k := range event.Kinds() {
				fmt.Fprintf(out, "  %s\n", k)
			}
			if !families {
				return nil
			}
			for _, f := range override.Families() {
				fmt.Fprintf(out, "\n%s controls:\n", f)
				for _, c := range override.Controls(f) {
					kind := "digital"
					if c.Analog {
						kind = "analog"
					}
					fmt.Fprintf(out, "  %-14s %-24s %s\n", c.Name, c.Key, kind)
				}
			}
			fmt.Fprintln(out, "\nClear policies:")
			for _, p := range []override.ClearPolicy{override.OnNextPoll, override.OnNextStepBoundary} {
				fmt.Fprintf(out, "  %s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&families, "controls", true, "Also list the controls of every controller family")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "simscript %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
