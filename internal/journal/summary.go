package journal

import (
	"context"
	"fmt"
	"time"
)

// EndpointSummary aggregates journal events for one endpoint.
type EndpointSummary struct {
	Endpoint  string
	Admitted  int64
	Waits     int64
	Canceled  int64
	TotalWait time.Duration
	MaxWait   time.Duration
}

const summaryQuery = `
SELECT
    endpoint,
    count(*) FILTER (WHERE kind = 'admit'),
    count(*) FILTER (WHERE kind = 'wait'),
    count(*) FILTER (WHERE kind = 'cancel'),
    CAST(coalesce(sum(wait_ms), 0) AS BIGINT),
    CAST(coalesce(max(wait_ms), 0) AS BIGINT)
FROM admissions
GROUP BY endpoint
ORDER BY endpoint`

// Summary returns per-endpoint totals ordered by endpoint.
func (j *Journal) Summary(ctx context.Context) ([]EndpointSummary, error) {
	rows, err := j.db.QueryContext(ctx, summaryQuery)
	if err != nil {
		return nil, fmt.Errorf("query journal summary: %w", err)
	}
	defer rows.Close()

	var out []EndpointSummary
	for rows.Next() {
		var s EndpointSummary
		var totalMs, maxMs int64
		if err := rows.Scan(&s.Endpoint, &s.Admitted, &s.Waits, &s.Canceled, &totalMs, &maxMs); err != nil {
			return nil, fmt.Errorf("scan journal summary: %w", err)
		}
		s.TotalWait = time.Duration(totalMs) * time.Millisecond
		s.MaxWait = time.Duration(maxMs) * time.Millisecond
		out = append(out, s)
	}
	return out, rows.Err()
}

// BindingTiers counts wait events per binding tier window.
func (j *Journal) BindingTiers(ctx context.Context) (map[time.Duration]int64, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT tier_window_ms, count(*)
FROM admissions
WHERE kind = 'wait'
GROUP BY tier_window_ms`)
	if err != nil {
		return nil, fmt.Errorf("query binding tiers: %w", err)
	}
	defer rows.Close()

	out := map[time.Duration]int64{}
	for rows.Next() {
		var windowMs, count int64
		if err := rows.Scan(&windowMs, &count); err != nil {
			return nil, fmt.Errorf("scan binding tiers: %w", err)
		}
		out[time.Duration(windowMs)*time.Millisecond] = count
	}
	return out, rows.Err()
}
