package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:          "floodsim",
		Short:        "Household flood adaptation agent-based model",
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			}))
			slog.SetDefault(logger)
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(archiveCmd())
	rootCmd.AddCommand(rasterCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [base-dir] [scenario-file]",
		Short: "Run or resume a single scenario",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.baseDir = args[0]
			if len(args) > 1 {
				opts.scenarioPath = args[1]
			}
			return runScenario(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "override the scenario unique name")
	cmd.Flags().BoolVar(&opts.progress, "progress", true, "show a progress bar")
	cmd.Flags().DurationVar(&opts.saveInterval, "save-interval", 5*time.Minute, "wall time between snapshots")
	cmd.Flags().BoolVar(&opts.restart, "restart", false, "ignore existing snapshots")
	return cmd
}

func sweepCmd() *cobra.Command {
	var progress bool
	var workers int

	cmd := &cobra.Command{
		Use:   "sweep [sweep-file]",
		Short: "Run a sensitivity analysis over the decision weights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), args[0], workers, progress)
		},
	}

	cmd.Flags().BoolVar(&progress, "progress", true, "show a progress bar")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "override the number of concurrent runs")
	return cmd
}

func reportCmd() *cobra.Command {
	var batch string
	var top int

	cmd := &cobra.Command{
		Use:   "report [metric-db]",
		Short: "Summarize the sweeps stored in a metric database",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runReport(os.Stdout, args[0], batch, top)
		},
	}

	cmd.Flags().StringVarP(&batch, "batch", "b", "", "only show this batch")
	cmd.Flags().IntVar(&top, "top", 0, "only show the runs with the highest adapted fraction")
	return cmd
}

func archiveCmd() *cobra.Command {
	var opts archiveOptions

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Copy finished scenarios to another directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runArchive(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.src, "src", "", "directory holding running scenarios")
	cmd.Flags().StringVar(&opts.dst, "dst", "", "archive directory")
	cmd.Flags().DurationVar(&opts.minElapsed, "min-elapsed", 10*time.Minute, "how long a scenario must have been finished")
	cmd.Flags().DurationVar(&opts.interval, "interval", time.Minute, "scan interval in watch mode")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "keep scanning until interrupted")
	cmd.MarkFlagRequired("src")
	cmd.MarkFlagRequired("dst")
	return cmd
}

func rasterCmd() *cobra.Command {
	var opts rasterOptions

	cmd := &cobra.Command{
		Use:   "raster [scenario] [output-file]",
		Short: "Generate a synthetic flood depth map",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			opts.scenario = args[0]
			opts.out = args[1]
			return runRaster(opts)
		},
	}

	cmd.Flags().IntVar(&opts.size, "size", 0, "raster rows and columns")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "terrain seed")
	return cmd
}
