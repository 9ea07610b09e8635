package fetch

import (
	"context"

	"github.com/daybook-dev/daybook/internal/core/domain"
)

// Collector is a type-erased, ready-to-run fan-out for one entity kind.
// It lets sources expose a flat list of fetches without leaking their
// raw item types.
type Collector struct {
	Key string
	Run func(ctx context.Context, o *Orchestrator, projects []domain.ProjectRef, window domain.ReportWindow, identity domain.Identity) []domain.Activity
}

// NewCollector wraps an adapter into a Collector.
func NewCollector[R any](adapter Adapter[R]) Collector {
	return Collector{
		Key: adapter.OperationKey(),
		Run: func(ctx context.Context, o *Orchestrator, projects []domain.ProjectRef, window domain.ReportWindow, identity domain.Identity) []domain.Activity {
			return FetchAcrossProjects(ctx, o, projects, window, adapter, identity)
		},
	}
}
