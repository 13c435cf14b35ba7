// Package commands implements CLI command handlers for idspan.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/idspan/pkg/config"
	"github.com/Sumatoshi-tech/idspan/pkg/itvl"
	"github.com/Sumatoshi-tech/idspan/pkg/observability"
	"github.com/Sumatoshi-tech/idspan/pkg/store"
	"github.com/Sumatoshi-tech/idspan/pkg/version"
)

// Persistent flag names.
const (
	flagConfig   = "config"
	flagStateDir = "state-dir"
	flagName     = "name"
	flagCodec    = "codec"
	flagLimit    = "limit"
	flagLogLevel = "log-level"
	flagNoColor  = "no-color"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	stateDir   string
	name       string
	codec      string
	logLevel   string
	limit      uint32
	noColor    bool
}

// NewRootCommand creates the idspan command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "idspan",
		Short: "Persistent manager of available identifier ranges",
		Long: `idspan keeps the set of available identifiers of a state file as a
balanced tree of disjoint intervals.

Commands:
  init      Create a state with every identifier available
  reserve   Mark identifiers as used
  release   Mark identifiers as available again
  next      Print the smallest available identifier
  check     Test whether a range is available
  show      List available intervals
  tree      Print the interval tree
  stats     Print state statistics
  metrics   Print state metrics in Prometheus text format
  export    Write the state through another codec
  import    Replace the state from an exported file
  plot      Chart the state as an HTML page
  name      Generate non-colliding <prefix><n><suffix> names`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, flagConfig, "", "Config file (default: search for idspan.yaml)")
	flags.StringVar(&opts.stateDir, flagStateDir, "", "Directory holding the state files")
	flags.StringVar(&opts.name, flagName, "", "Base name of the state files")
	flags.StringVar(&opts.codec, flagCodec, "", "State codec: raw, lz4, json")
	flags.Uint32Var(&opts.limit, flagLimit, 0, "Largest identifier of a new state")
	flags.StringVar(&opts.logLevel, flagLogLevel, "", "Log level: debug, info, warn, error")
	flags.BoolVar(&opts.noColor, flagNoColor, false, "Disable colored output")

	rootCmd.AddCommand(
		newInitCommand(opts),
		newReserveCommand(opts),
		newReleaseCommand(opts),
		newNextCommand(opts),
		newCheckCommand(opts),
		newShowCommand(opts),
		newTreeCommand(opts),
		newStatsCommand(opts),
		newMetricsCommand(opts),
		newExportCommand(opts),
		newImportCommand(opts),
		newPlotCommand(opts),
		newNameCommand(),
		newConfigCommand(),
		newVersionCommand(),
	)

	return rootCmd
}

// app bundles what a command needs to act on the configured state.
type app struct {
	cfg       *config.Config
	providers observability.Providers
	store     *store.Store
	out       io.Writer
	paint     painter
}

// withApp loads the configuration, starts observability and opens the store,
// runs fn and flushes telemetry afterwards.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	obsCfg := cfg.Observability(version.Version)
	obsCfg.Output = cmd.ErrOrStderr()

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	opMetrics, err := observability.NewOpMetrics(providers.Meter)
	if err != nil {
		return err
	}

	st, err := store.New(store.Options{
		Dir:     cfg.State.Dir,
		Name:    cfg.State.Name,
		Codec:   cfg.State.Codec,
		Limit:   itvl.ID(cfg.State.Limit),
		Logger:  providers.Logger,
		Tracer:  providers.Tracer,
		Metrics: opMetrics,
	})
	if err != nil {
		return err
	}

	a := &app{
		cfg:       cfg,
		providers: providers,
		store:     st,
		out:       cmd.OutOrStdout(),
		paint:     newPainter(opts.noColor),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	providers.Logger.DebugContext(ctx, "command started",
		slog.String("command", cmd.Name()), slog.String("state", st.StatePath()))

	return fn(ctx, a)
}

// loadConfig reads the config file and applies the flags set on the command line.
func loadConfig(cmd *cobra.Command, opts *globalOptions) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed(flagStateDir) {
		cfg.State.Dir = opts.stateDir
	}

	if flags.Changed(flagName) {
		cfg.State.Name = opts.name
	}

	if flags.Changed(flagCodec) {
		cfg.State.Codec = opts.codec
	}

	if flags.Changed(flagLimit) {
		cfg.State.Limit = opts.limit
	}

	if flags.Changed(flagLogLevel) {
		cfg.Logging.Level = opts.logLevel
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// painter holds the colors used for terminal output.
type painter struct {
	good   *color.Color
	bad    *color.Color
	accent *color.Color
	muted  *color.Color
}

func newPainter(noColor bool) painter {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if noColor {
			c.DisableColor()
		}

		return c
	}

	return painter{
		good:   mk(color.FgGreen),
		bad:    mk(color.FgRed),
		accent: mk(color.FgCyan),
		muted:  mk(color.FgHiBlack),
	}
}
