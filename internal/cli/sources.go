package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Validate configured source connections",
	Run:   runSources,
}

func runSources(cmd *cobra.Command, args []string) {
	cfg, err := setup()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	app, err := newCollector(cfg)
	if err != nil {
		slog.Error("Failed to initialize collector", "error", err)
		os.Exit(1)
	}
	defer shutdown(app)

	failed := false
	for _, src := range app.Sources() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		identity, err := src.Identity(ctx)
		cancel()
		if err != nil {
			fmt.Printf("%-8s FAIL  %v\n", src.Type(), err)
			failed = true
			continue
		}
		fmt.Printf("%-8s OK    %s (%s)\n", src.Type(), identity.Username, identity.ID)
	}
	if failed {
		os.Exit(1)
	}
}
