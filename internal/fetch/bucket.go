package fetch

import (
	"sort"

	"github.com/daybook-dev/daybook/internal/core/domain"
)

// GroupByDay buckets activities by UTC calendar day. Keys are
// "YYYY-MM-DD"; within a bucket, insertion order follows input order.
func GroupByDay(activities []domain.Activity) map[string][]domain.Activity {
	buckets := make(map[string][]domain.Activity)
	for _, a := range activities {
		day := a.Timestamp.UTC().Format("2006-01-02")
		buckets[day] = append(buckets[day], a)
	}
	return buckets
}

// SortedDays returns the bucket keys in ascending date order.
func SortedDays(buckets map[string][]domain.Activity) []string {
	days := make([]string, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Strings(days)
	return days
}
