package control

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/daybook-dev/daybook/internal/core/config"
	"github.com/daybook-dev/daybook/internal/core/domain"
	"github.com/daybook-dev/daybook/internal/fetch"
	"github.com/daybook-dev/daybook/internal/health"
	redisclient "github.com/daybook-dev/daybook/internal/infra/redis"
	"github.com/daybook-dev/daybook/internal/infra/storage/postgres"
	"github.com/daybook-dev/daybook/internal/report"
	"github.com/daybook-dev/daybook/internal/source"
	"github.com/daybook-dev/daybook/internal/source/github"
	"github.com/daybook-dev/daybook/internal/source/gitlab"
)

const (
	projectCacheTTL = 30 * time.Minute
	reportCacheTTL  = 6 * time.Hour
)

// Config holds the application configuration.
type Config struct {
	Server        config.ServerConfig
	Fetch         config.FetchConfig
	Sources       config.SourcesConfig
	Redis         redisclient.Config
	Database      postgres.Config
	MigrationsDir string
}

// Collector is the main application struct: it owns the sources, the
// fetch core and the optional storage/cache/health infrastructure.
type Collector struct {
	cfg      Config
	sources  []source.Source
	breakers *fetch.BreakerRegistry
	retryer  *fetch.Retryer
	orch     *fetch.Orchestrator

	db           *postgres.DB
	activityRepo *postgres.ActivityRepo
	runRepo      *postgres.RunRepo
	cache        *redisclient.Client
	healthServer *health.Server
	log          *slog.Logger
}

// CollectResult is the outcome of one collection run. The activity
// list is always present, possibly empty: per-project failures are
// observable through logs and metrics, never through the result shape.
type CollectResult struct {
	RunID           string
	Window          domain.ReportWindow
	Activities      []domain.Activity
	SkippedProjects int
}

// NewCollector creates a Collector with all dependencies initialized.
func NewCollector(cfg Config) (*Collector, error) {
	log := slog.Default()

	breakers := fetch.NewBreakerRegistry(cfg.Fetch.Breaker)
	retryer := fetch.NewRetryer(cfg.Fetch.Retry.Policy(), breakers, log)
	orch := fetch.NewOrchestrator(retryer, cfg.Fetch.Concurrency, log)

	var sources []source.Source
	if cfg.Sources.GitLab != nil {
		sources = append(sources, gitlab.New(*cfg.Sources.GitLab, retryer, log))
	}
	if cfg.Sources.GitHub != nil {
		sources = append(sources, github.New(*cfg.Sources.GitHub))
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}

	c := &Collector{
		cfg:      cfg,
		sources:  sources,
		breakers: breakers,
		retryer:  retryer,
		orch:     orch,
		log:      log,
	}

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		migrations := cfg.MigrationsDir
		if migrations == "" {
			migrations = "migrations"
		}
		if err := db.Migrate(migrations); err != nil {
			return nil, err
		}
		c.db = db
		c.activityRepo = postgres.NewActivityRepo(db)
		c.runRepo = postgres.NewRunRepo(db)
		log.Info("Using PostgreSQL storage")
	}

	if cfg.Redis.URL != "" {
		cache, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		c.cache = cache
		log.Info("Using Redis cache")
	}

	if cfg.Server.Enabled {
		monitor := health.NewMonitor(sources, breakers)
		c.healthServer = health.NewServer(monitor, cfg.Server.Port)
	}

	return c, nil
}

// Start launches the optional health/metrics server.
func (c *Collector) Start(ctx context.Context) error {
	if c.healthServer == nil {
		return nil
	}
	go func() {
		if err := c.healthServer.Start(); err != nil && ctx.Err() == nil {
			c.log.Error("Health server stopped", "error", err)
		}
	}()
	c.log.Info("Health server started", "port", c.cfg.Server.Port)
	return nil
}

// Stop shuts down the collector's infrastructure.
func (c *Collector) Stop(ctx context.Context) error {
	if c.healthServer != nil {
		if err := c.healthServer.Stop(ctx); err != nil {
			return err
		}
	}
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			return err
		}
	}
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Sources returns the configured sources.
func (c *Collector) Sources() []source.Source { return c.sources }

// Collect gathers every configured source's activity for the window.
//
// Identity resolution failing for a source is fatal: author filtering
// has no meaning without it. Everything below identity (project
// discovery, per-project fetches, nested parents) degrades to partial
// results instead.
func (c *Collector) Collect(ctx context.Context, window domain.ReportWindow) (*CollectResult, error) {
	runID := uuid.NewString()
	started := time.Now().UTC()

	var all []domain.Activity
	for _, src := range c.sources {
		srcType := string(src.Type())

		identity, err := fetch.RetryValue(ctx, c.retryer, srcType+".who_am_i", func(ctx context.Context) (domain.Identity, error) {
			return src.Identity(ctx)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s identity: %w", srcType, err)
		}

		projects, err := c.projects(ctx, src)
		if err != nil {
			c.log.Warn("Skipping source, project discovery failed", "source", srcType, "error", err)
			continue
		}
		c.log.Info("Collecting source", "source", srcType, "projects", len(projects),
			"user", identity.Username)

		for _, collector := range src.Collectors() {
			activities := collector.Run(ctx, c.orch, projects, window, identity)
			c.log.Debug("Collected entity kind", "operation", collector.Key, "count", len(activities))
			all = append(all, activities...)
		}
	}

	// Fan-out completion order is nondeterministic; sort for stable
	// storage and rendering.
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})

	result := &CollectResult{
		RunID:           runID,
		Window:          window,
		Activities:      all,
		SkippedProjects: c.orch.TakeSkipped(),
	}
	if err := c.persist(ctx, result, started); err != nil {
		return nil, err
	}
	return result, nil
}

// projects resolves a source's project list, preferring the redis
// cache, then discovery through the retryer.
func (c *Collector) projects(ctx context.Context, src source.Source) ([]domain.ProjectRef, error) {
	srcType := string(src.Type())

	if c.cache != nil {
		cached, found, err := c.cache.Projects(ctx, srcType)
		if err != nil {
			c.log.Warn("Project cache read failed", "source", srcType, "error", err)
		} else if found {
			return cached, nil
		}
	}

	projects, err := fetch.RetryValue(ctx, c.retryer, srcType+".fetch_projects", func(ctx context.Context) ([]domain.ProjectRef, error) {
		return src.Projects(ctx)
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.CacheProjects(ctx, srcType, projects, projectCacheTTL); err != nil {
			c.log.Warn("Project cache write failed", "source", srcType, "error", err)
		}
	}
	return projects, nil
}

func (c *Collector) persist(ctx context.Context, result *CollectResult, started time.Time) error {
	if c.db == nil {
		return nil
	}
	if err := c.activityRepo.Upsert(ctx, result.RunID, result.Activities); err != nil {
		return fmt.Errorf("failed to store activities: %w", err)
	}
	status := postgres.RunStatusCompleted
	if result.SkippedProjects > 0 {
		status = postgres.RunStatusPartial
	}
	run := postgres.Run{
		ID:              result.RunID,
		WindowStart:     result.Window.Start,
		WindowEnd:       result.Window.End,
		StartedAt:       started,
		FinishedAt:      time.Now().UTC(),
		ActivityCount:   len(result.Activities),
		SkippedProjects: result.SkippedProjects,
		Status:          status,
	}
	if err := c.runRepo.Insert(ctx, run); err != nil {
		return err
	}
	return nil
}

// Report renders the stored activity for a window. Single-day markdown
// reports are served from the redis cache when possible.
func (c *Collector) Report(ctx context.Context, window domain.ReportWindow, format string) (string, error) {
	days := window.Days()
	cacheable := c.cache != nil && len(days) == 1

	if cacheable {
		if content, found, err := c.cache.Report(ctx, days[0], format); err == nil && found {
			return content, nil
		}
	}

	if c.db == nil {
		return "", fmt.Errorf("reporting requires database storage")
	}
	activities, err := c.activityRepo.ListByWindow(ctx, window)
	if err != nil {
		return "", err
	}

	r := report.Build(activities)
	var content string
	switch format {
	case "json":
		data, err := r.JSON()
		if err != nil {
			return "", err
		}
		content = string(data)
	default:
		content = r.Markdown()
	}

	if cacheable {
		if err := c.cache.CacheReport(ctx, days[0], format, content, reportCacheTTL); err != nil {
			c.log.Warn("Report cache write failed", "day", days[0], "error", err)
		}
	}
	return content, nil
}
