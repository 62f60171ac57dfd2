package ledger

import (
	"context"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/metrics"
)

// MonthlySummary returns income, expense and net for month over the current
// jobs and payments. Results are cached until the next mutation.
func (s *Store) MonthlySummary(ctx context.Context, month core.Month) (core.MonthlySummary, error) {
	if err := month.Validate(); err != nil {
		return core.MonthlySummary{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return core.MonthlySummary{}, core.ErrClosed
	}

	if cached, ok := s.summaries.Get(month); ok {
		metrics.SummaryCacheTotal.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.SummaryCacheTotal.WithLabelValues("miss").Inc()

	summary := core.Summarize(s.snap.Jobs, s.snap.Payments, month)
	if summary.Skipped > 0 {
		metrics.SummarySkippedTotal.Add(float64(summary.Skipped))
		s.logger.WarnContext(ctx, "Records with malformed amounts left out of summary",
			log.FieldMonth, month.String(),
			log.FieldSkipped, summary.Skipped)
	}
	s.summaries.Set(month, summary)
	return summary, nil
}
