package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/idspan/pkg/itvl"
	"github.com/Sumatoshi-tech/idspan/pkg/metrics"
	"github.com/Sumatoshi-tech/idspan/pkg/persist"
	"github.com/Sumatoshi-tech/idspan/pkg/plot"
	"github.com/Sumatoshi-tech/idspan/pkg/safeconv"
)

const (
	opShow    = "show"
	opTree    = "tree"
	opStats   = "stats"
	opMetrics = "metrics"
	opExport  = "export"
	opImport  = "import"
	opPlot    = "plot"

	treeIndent  = "    "
	stateLabel  = "state_file"
	outFilePerm = 0o600
)

func newInitCommand(opts *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a state with every identifier available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				mgr, err := a.store.Init(ctx, force)
				if err != nil {
					return err
				}

				fmt.Fprintf(a.out, "initialized %s (identifiers 0-%d)\n", a.store.StatePath(), mgr.Limit())

				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing state")

	return cmd
}

func newShowCommand(opts *globalOptions) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List available intervals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return a.store.View(ctx, opShow, func(mgr *itvl.Manager) error {
					if plain {
						return mgr.Print(a.out)
					}

					fmt.Fprintln(a.out, renderIntervals(mgr))

					return nil
				})
			})
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "One \"start - end\" line per interval")

	return cmd
}

func renderIntervals(mgr *itvl.Manager) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})

	tbl.AppendHeader(table.Row{"start", "end", "count"})

	var total uint64

	for iv := range mgr.All() {
		tbl.AppendRow(table.Row{iv.Start, iv.End, humanize.Comma(safeconv.MustUint64ToInt64(iv.Len()))})
		total += iv.Len()
	}

	tbl.AppendFooter(table.Row{"", "total", humanize.Comma(safeconv.MustUint64ToInt64(total))})

	return tbl.Render()
}

func newTreeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the interval tree sideways with balance markers",
		Long: `Print the interval tree sideways, left subtree first, one node per line
indented by depth. Each node is followed by its balance marker: ">" when the
left subtree is taller, "=" when balanced, "<" otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return a.store.View(ctx, opTree, func(mgr *itvl.Manager) error {
					mgr.WalkTree(func(nd itvl.Node) {
						fmt.Fprint(a.out, strings.Repeat(treeIndent, nd.Depth))
						a.paint.accent.Fprintf(a.out, " [%d - %d]", nd.Start, nd.End)
						a.paint.muted.Fprintln(a.out, itvl.BalanceMarker(nd.Balance))
					})

					return nil
				})
			})
		},
	}
}

func newStatsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print state statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				info, err := os.Stat(a.store.StatePath())
				if err != nil {
					return fmt.Errorf("stat state file: %w", err)
				}

				return a.store.View(ctx, opStats, func(mgr *itvl.Manager) error {
					fmt.Fprintln(a.out, renderStats(mgr.Stats(), a.store.StatePath(), info.Size()))

					return nil
				})
			})
		},
	}
}

func renderStats(stats itvl.Stats, path string, size int64) string {
	used := uint64(stats.Limit) + 1 - stats.Available

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.SeparateHeader = false

	tbl.AppendRows([]table.Row{
		{"state", path},
		{"file size", humanize.IBytes(uint64(size))},
		{"limit", humanize.Comma(int64(stats.Limit))},
		{"available", humanize.Comma(safeconv.MustUint64ToInt64(stats.Available))},
		{"used", humanize.Comma(safeconv.MustUint64ToInt64(used))},
		{"intervals", humanize.Comma(int64(stats.Intervals))},
		{"tree height", strconv.Itoa(stats.Height)},
		{"pool live", strconv.Itoa(stats.Pool.Live)},
		{"pool free", strconv.Itoa(stats.Pool.Free)},
	})

	return tbl.Render()
}

func newMetricsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Print state metrics in Prometheus text format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				mgr, err := a.store.Load(ctx)
				if err != nil {
					return err
				}

				if !a.cfg.Metrics.Enabled {
					return nil
				}

				collector := metrics.NewCollector(a.cfg.Metrics.Namespace, mgr,
					prometheus.Labels{stateLabel: a.cfg.State.Name})

				err = a.providers.Registry.Register(collector)
				if err != nil {
					return fmt.Errorf("register collector: %w", err)
				}

				families, err := a.providers.Registry.Gather()
				if err != nil {
					return fmt.Errorf("gather metrics: %w", err)
				}

				for _, family := range families {
					_, err = expfmt.MetricFamilyToText(a.out, family)
					if err != nil {
						return fmt.Errorf("write metrics: %w", err)
					}
				}

				return nil
			})
		},
	}
}

func newExportCommand(opts *globalOptions) *cobra.Command {
	var (
		codecName string
		outPath   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the state through another codec",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			codec, err := persist.CodecByName(codecName)
			if err != nil {
				return err
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return a.store.View(ctx, opExport, func(mgr *itvl.Manager) error {
					if outPath == "" {
						return codec.Encode(a.out, mgr)
					}

					file, createErr := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, outFilePerm)
					if createErr != nil {
						return fmt.Errorf("create export file: %w", createErr)
					}
					defer file.Close()

					return codec.Encode(file, mgr)
				})
			})
		},
	}

	cmd.Flags().StringVar(&codecName, "format", persist.CodecJSON, "Export codec: raw, lz4, json")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func newImportCommand(opts *globalOptions) *cobra.Command {
	var codecName string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the state from an exported file",
		Long: `Replace the state with the contents of FILE. Binary formats do not carry
the identifier limit, so the limit of the current state is kept for them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := persist.CodecByName(codecName)
			if err != nil {
				return err
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open import file: %w", err)
				}
				defer file.Close()

				return a.store.Update(ctx, opImport, func(mgr *itvl.Manager) error {
					return codec.Decode(file, mgr)
				})
			})
		},
	}

	cmd.Flags().StringVar(&codecName, "format", persist.CodecJSON, "Import codec: raw, lz4, json")

	return cmd
}

func newPlotCommand(opts *globalOptions) *cobra.Command {
	var (
		outPath string
		plotOpt plot.Options
	)

	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Write an HTML page charting occupancy and the largest intervals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return a.store.View(ctx, opPlot, func(mgr *itvl.Manager) error {
					if plotOpt.Title == "" {
						plotOpt.Title = a.cfg.State.Name
					}

					if outPath == "" {
						return plot.Render(a.out, mgr, plotOpt)
					}

					file, createErr := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, outFilePerm)
					if createErr != nil {
						return fmt.Errorf("create plot file: %w", createErr)
					}
					defer file.Close()

					return plot.Render(file, mgr, plotOpt)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output HTML file (default: stdout)")
	cmd.Flags().StringVar(&plotOpt.Title, "title", "", "Page title (default: state name)")
	cmd.Flags().IntVar(&plotOpt.Buckets, "buckets", plot.DefaultBuckets, "Number of occupancy slices")
	cmd.Flags().IntVar(&plotOpt.TopIntervals, "top", plot.DefaultTopIntervals, "Number of largest intervals charted")

	return cmd
}
