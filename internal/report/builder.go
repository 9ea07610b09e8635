// Package report renders the day-bucketed activity set for humans and
// machines.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/daybook-dev/daybook/internal/core/domain"
	"github.com/daybook-dev/daybook/internal/fetch"
)

// Report is the day-grouped view of a collection result.
type Report struct {
	Days []DaySection `json:"days"`
}

// DaySection holds one UTC calendar day's activity, grouped by kind.
type DaySection struct {
	Date   string        `json:"date"`
	Groups []KindSection `json:"groups"`
	Total  int           `json:"total"`
}

// KindSection holds one entity kind's activities within a day.
type KindSection struct {
	Kind       domain.ActivityKind `json:"kind"`
	Activities []domain.Activity   `json:"activities"`
}

// kindOrder fixes section order in rendered output.
var kindOrder = []domain.ActivityKind{
	domain.KindCommit,
	domain.KindMergeRequest,
	domain.KindIssue,
	domain.KindComment,
}

var kindHeadings = map[domain.ActivityKind]string{
	domain.KindCommit:       "Commits",
	domain.KindMergeRequest: "Merge requests",
	domain.KindIssue:        "Issues",
	domain.KindComment:      "Comments",
}

// Build groups activities into a report, days ascending, kinds in a
// fixed order, input order preserved inside each group.
func Build(activities []domain.Activity) Report {
	buckets := fetch.GroupByDay(activities)

	var r Report
	for _, day := range fetch.SortedDays(buckets) {
		section := DaySection{Date: day, Total: len(buckets[day])}

		byKind := make(map[domain.ActivityKind][]domain.Activity)
		for _, a := range buckets[day] {
			byKind[a.Kind] = append(byKind[a.Kind], a)
		}
		for _, kind := range kindOrder {
			if items := byKind[kind]; len(items) > 0 {
				section.Groups = append(section.Groups, KindSection{Kind: kind, Activities: items})
			}
		}
		r.Days = append(r.Days, section)
	}
	return r
}

// Markdown renders the report as a markdown digest.
func (r Report) Markdown() string {
	if len(r.Days) == 0 {
		return "No activity found.\n"
	}

	var b strings.Builder
	for _, day := range r.Days {
		fmt.Fprintf(&b, "## %s (%d)\n\n", day.Date, day.Total)
		for _, group := range day.Groups {
			fmt.Fprintf(&b, "### %s\n\n", kindHeadings[group.Kind])
			for _, a := range group.Activities {
				fmt.Fprintf(&b, "- **%s** [%s/%s] %s", a.Timestamp.UTC().Format("15:04"), a.Source, a.Project, a.Title)
				if a.URL != "" {
					fmt.Fprintf(&b, " (%s)", a.URL)
				}
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// JSON renders the report as indented JSON.
func (r Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
