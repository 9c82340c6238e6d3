package analytics

import (
	"context"
	"time"
)

// RunMonthly is the periodic roll-up. On the first day of a month it
// summarises the previous month for every user, records how the previous
// predictions fared, refreshes patterns, predictions and insights, then
// purges expired data. Other days it does nothing. It reports the number
// of users processed.
func (s *Service) RunMonthly(ctx context.Context) (int, error) {
	now := s.now()
	if now.Day() != 1 {
		return 0, nil
	}
	month := monthStart(now)
	s.mu.Lock()
	done := s.lastMonthly.Equal(month)
	s.mu.Unlock()
	if done {
		return 0, nil
	}

	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return 0, err
	}
	prev := month.AddDate(0, -1, 0)
	n := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := s.rollUp(ctx, id, prev); err != nil {
			s.log.Error().Err(err).Int64("user_id", id).Msg("monthly analytics")
			continue
		}
		n++
	}
	if _, err := s.Purge(ctx); err != nil {
		return n, err
	}

	s.mu.Lock()
	s.lastMonthly = month
	s.mu.Unlock()
	return n, nil
}

func (s *Service) rollUp(ctx context.Context, userID int64, prev time.Time) error {
	if _, err := s.GenerateMonthlySummary(ctx, userID, prev.Year(), int(prev.Month())); err != nil {
		return err
	}
	if _, err := s.RecordActuals(ctx, userID, prev); err != nil {
		return err
	}
	if _, err := s.GeneratePatterns(ctx, userID, DefaultWindowMonths); err != nil {
		return err
	}
	if _, err := s.GeneratePredictions(ctx, userID); err != nil {
		return err
	}
	_, err := s.GenerateInsights(ctx, userID)
	return err
}

// Purge deletes expired insights and predictions older than each user's
// retention. It returns the number of rows removed.
func (s *Service) Purge(ctx context.Context) (int64, error) {
	now := s.now()
	removed, err := s.store.DeleteExpiredInsights(ctx, now)
	if err != nil {
		return 0, err
	}
	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return removed, err
	}
	for _, id := range ids {
		cfg, err := s.config(ctx, id)
		if err != nil {
			return removed, err
		}
		n, err := s.store.DeletePredictionsBefore(ctx, id, now.AddDate(0, 0, -cfg.KeepPredictionsForDays))
		if err != nil {
			return removed, err
		}
		removed += n
	}
	if removed > 0 {
		s.log.Info().Int64("removed", removed).Msg("purged expired analytics")
	}
	return removed, nil
}
