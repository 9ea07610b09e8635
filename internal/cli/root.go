package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/daybook-dev/daybook/internal/control"
	"github.com/daybook-dev/daybook/internal/core/config"
	"github.com/daybook-dev/daybook/internal/core/domain"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "daybook",
	Short: "Daybook activity collector",
	Long:  `Daybook collects your commits, merge requests, issues and comments from GitLab and GitHub into a daily activity report.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(sourcesCmd)
}

// setup loads .env and the config file, then initializes logging.
func setup() (*config.AppConfig, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		return nil, err
	}

	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}
	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})

	return cfg, nil
}

func newCollector(cfg *config.AppConfig) (*control.Collector, error) {
	return control.NewCollector(control.Config{
		Server:   cfg.Server,
		Fetch:    cfg.Fetch,
		Sources:  cfg.Sources,
		Redis:    cfg.Redis,
		Database: cfg.Database,
	})
}

// parseWindow turns the --date / --from / --to flags into a window.
// No flags means today (UTC).
func parseWindow(date, from, to string) (domain.ReportWindow, error) {
	const layout = "2006-01-02"

	if date != "" {
		d, err := time.Parse(layout, date)
		if err != nil {
			return domain.ReportWindow{}, fmt.Errorf("invalid --date %q: %w", date, err)
		}
		return domain.DayWindow(d), nil
	}
	if from != "" || to != "" {
		if from == "" || to == "" {
			return domain.ReportWindow{}, fmt.Errorf("--from and --to must be used together")
		}
		f, err := time.Parse(layout, from)
		if err != nil {
			return domain.ReportWindow{}, fmt.Errorf("invalid --from %q: %w", from, err)
		}
		t, err := time.Parse(layout, to)
		if err != nil {
			return domain.ReportWindow{}, fmt.Errorf("invalid --to %q: %w", to, err)
		}
		return domain.RangeWindow(f, t), nil
	}
	return domain.DayWindow(time.Now()), nil
}
