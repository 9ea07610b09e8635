// Package source defines the boundary between the fetch core and the
// per-service integrations. Each remote service implements Source; the
// collector drives every source through the same orchestrator.
package source

import (
	"context"

	"github.com/daybook-dev/daybook/internal/core/domain"
	"github.com/daybook-dev/daybook/internal/fetch"
)

// Source is one remote service the collector pulls activity from.
//
// Identity must be resolved before Collectors are run: author filtering
// has no meaning without it, so an identity failure is fatal for the
// source's whole batch (unlike per-project fetch failures, which are
// isolated and skipped).
type Source interface {
	// Type returns the source type identifier.
	Type() domain.SourceType

	// Identity resolves the authenticated user via the service's
	// who-am-i endpoint.
	Identity(ctx context.Context) (domain.Identity, error)

	// Projects lists the projects accessible to the authenticated
	// user, unless the deployment configures an explicit list.
	Projects(ctx context.Context) ([]domain.ProjectRef, error)

	// Collectors returns one ready-to-run fan-out per entity kind
	// (commits, merge requests, issues, comments).
	Collectors() []fetch.Collector
}
