package application

import (
	"context"
	"sort"

	"github.com/opencaretools/abctrack/internal/domain"
)

// Summary aggregates matching incidents into the report buckets. Hour and day
// buckets are computed in UTC.
func (s *TrackerService) Summary(ctx context.Context, filter domain.IncidentFilter) (domain.ReportSummary, error) {
	incidents, err := s.store.ListIncidents(ctx, filter)
	if err != nil {
		return domain.ReportSummary{}, err
	}

	summary := domain.ReportSummary{
		Total:      len(incidents),
		ByFunction: map[string]int{},
		ByDay:      []domain.DayCount{},
	}
	byDay := map[string]int{}
	for _, incident := range incidents {
		ts := incident.Timestamp.UTC()
		summary.ByHour[ts.Hour()]++
		if incident.Intensity >= 1 && incident.Intensity <= 5 {
			summary.ByIntensity[incident.Intensity-1]++
		}
		summary.ByFunction[string(incident.FunctionHypothesis)]++
		byDay[ts.Format("2006-01-02")]++
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)
	for _, day := range days {
		summary.ByDay = append(summary.ByDay, domain.DayCount{Day: day, Count: byDay[day]})
	}
	return summary, nil
}
