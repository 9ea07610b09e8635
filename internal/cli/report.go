package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	reportDate   string
	reportFrom   string
	reportTo     string
	reportFormat string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render previously collected activity",
	Run:   runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportDate, "date", "", "report one UTC day (YYYY-MM-DD, default today)")
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "range start (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "range end (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportFormat, "format", "markdown", "output format: markdown or json")
}

func runReport(cmd *cobra.Command, args []string) {
	cfg, err := setup()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	window, err := parseWindow(reportDate, reportFrom, reportTo)
	if err != nil {
		slog.Error("Invalid window", "error", err)
		os.Exit(1)
	}

	app, err := newCollector(cfg)
	if err != nil {
		slog.Error("Failed to initialize collector", "error", err)
		os.Exit(1)
	}
	defer shutdown(app)

	content, err := app.Report(context.Background(), window, reportFormat)
	if err != nil {
		slog.Error("Report failed", "error", err)
		os.Exit(1)
	}
	fmt.Print(content)
}
