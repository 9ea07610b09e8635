package fetch

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/daybook-dev/daybook/internal/core/domain"
)

// Adapter fetches one entity kind from one remote service and maps raw
// items into normalized activities. Implementations live with each
// source integration; the orchestrator never sees service specifics.
type Adapter[R any] interface {
	// OperationKey identifies the logical endpoint, stable across
	// projects (e.g. "gitlab.fetch_commits"). Scopes breaker state.
	OperationKey() string

	// AuthorScoped reports whether the remote API already restricts
	// results to the authenticated user, making local author
	// filtering redundant.
	AuthorScoped() bool

	Fetch(ctx context.Context, project domain.ProjectRef, window domain.ReportWindow) ([]R, error)
	Normalize(raw R, project domain.ProjectRef) (domain.Activity, error)
}

// SelfRetrying marks adapters that run their own per-call retries
// internally, such as nested parent -> child fetches where each level
// needs its own retry and isolation. The orchestrator does not wrap
// their Fetch in another retry.
type SelfRetrying interface {
	SelfRetrying() bool
}

// Orchestrator fans fetches out across projects, isolating per-project
// failures and merging the surviving results.
type Orchestrator struct {
	retryer *Retryer
	limit   int
	log     *slog.Logger
	skipped atomic.Int64
}

// NewOrchestrator creates an orchestrator. limit <= 0 falls back to
// DefaultConcurrency; log may be nil.
func NewOrchestrator(retryer *Retryer, limit int, log *slog.Logger) *Orchestrator {
	if limit < 1 {
		limit = DefaultConcurrency
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{retryer: retryer, limit: limit, log: log}
}

// Retryer exposes the orchestrator's retryer so nested adapters can
// apply the same retry discipline to their inner calls.
func (o *Orchestrator) Retryer() *Retryer { return o.retryer }

// TakeSkipped returns the number of per-project fetches dropped since
// the last read and resets the counter. Callers read it once per batch.
func (o *Orchestrator) TakeSkipped() int { return int(o.skipped.Swap(0)) }

// FetchAcrossProjects fetches one entity kind from every project,
// normalizes the raw items and keeps only those authored by identity.
//
// Each per-project fetch goes through the retryer (and its breaker)
// under the adapter's operation key; a project whose fetch ultimately
// fails is logged, counted and skipped without affecting its siblings.
// The returned order follows concurrent completion; callers that need
// determinism must sort by timestamp.
func FetchAcrossProjects[R any](
	ctx context.Context,
	o *Orchestrator,
	projects []domain.ProjectRef,
	window domain.ReportWindow,
	adapter Adapter[R],
	identity domain.Identity,
) []domain.Activity {
	key := adapter.OperationKey()

	selfRetrying := false
	if sr, ok := adapter.(SelfRetrying); ok {
		selfRetrying = sr.SelfRetrying()
	}

	tasks := make([]func(context.Context) ([]R, error), len(projects))
	for i, project := range projects {
		tasks[i] = func(ctx context.Context) ([]R, error) {
			if selfRetrying {
				return adapter.Fetch(ctx, project, window)
			}
			return RetryValue(ctx, o.retryer, key, func(ctx context.Context) ([]R, error) {
				return adapter.Fetch(ctx, project, window)
			})
		}
	}

	outcomes := RunLimited(ctx, tasks, o.limit)

	var merged []domain.Activity
	for i, outcome := range outcomes {
		project := projects[i]
		if outcome.Err != nil {
			projectsSkipped.WithLabelValues(key).Inc()
			o.skipped.Add(1)
			o.log.Warn("skipping project after fetch failure",
				"operation", key, "project", project.Name, "error", outcome.Err)
			continue
		}
		for _, raw := range outcome.Value {
			activity, err := adapter.Normalize(raw, project)
			if err != nil {
				o.log.Debug("dropping item that failed to normalize",
					"operation", key, "project", project.Name, "error", err)
				continue
			}
			if !adapter.AuthorScoped() && !identity.MatchesActivity(activity) {
				continue
			}
			merged = append(merged, activity)
		}
	}
	return merged
}
