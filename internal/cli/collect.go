package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/daybook-dev/daybook/internal/report"
)

var (
	collectDate string
	collectFrom string
	collectTo   string
	printReport bool
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect activity for a day or date range",
	Run:   runCollect,
}

func init() {
	collectCmd.Flags().StringVar(&collectDate, "date", "", "collect one UTC day (YYYY-MM-DD, default today)")
	collectCmd.Flags().StringVar(&collectFrom, "from", "", "range start (YYYY-MM-DD)")
	collectCmd.Flags().StringVar(&collectTo, "to", "", "range end (YYYY-MM-DD)")
	collectCmd.Flags().BoolVar(&printReport, "print", true, "print the markdown report after collecting")
}

func runCollect(cmd *cobra.Command, args []string) {
	cfg, err := setup()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	window, err := parseWindow(collectDate, collectFrom, collectTo)
	if err != nil {
		slog.Error("Invalid window", "error", err)
		os.Exit(1)
	}

	app, err := newCollector(cfg)
	if err != nil {
		slog.Error("Failed to initialize collector", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A signal abandons the batch: in-flight calls finish on their own
	// and their results are discarded.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("Received signal, abandoning batch", "signal", sig)
		cancel()
	}()

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start collector", "error", err)
		os.Exit(1)
	}

	slog.Info("Collecting activity", "from", window.Start, "to", window.End)
	result, err := app.Collect(ctx, window)
	if err != nil {
		slog.Error("Collection failed", "error", err)
		shutdown(app)
		os.Exit(1)
	}
	slog.Info("Collection finished",
		"run", result.RunID, "activities", len(result.Activities), "skipped_projects", result.SkippedProjects)

	if printReport {
		fmt.Print(report.Build(result.Activities).Markdown())
	}

	shutdown(app)
}

type stopper interface {
	Stop(ctx context.Context) error
}

func shutdown(app stopper) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}
}
