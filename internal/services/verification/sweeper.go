package verification

import (
	"context"
	"time"
)

// SweepStats counts the work done by one sweep.
type SweepStats struct {
	Expired int
	Evicted int
}

// Sweep expires attempts pending longer than PendingTimeout and evicts
// terminal records older than Retention. Either step is skipped when its
// bound is zero.
func (s *Service) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	if s.cfg.PendingTimeout <= 0 && s.cfg.Retention <= 0 {
		return stats, nil
	}
	now := s.now()

	var expire, evict []string
	err := s.store.Range(ctx, func(attempt Attempt) bool {
		switch {
		case attempt.Status.Terminal():
			if s.cfg.Retention > 0 && now.Sub(attempt.UpdatedAt) > s.cfg.Retention {
				evict = append(evict, attempt.State)
			}
		case s.cfg.PendingTimeout > 0 && now.Sub(attempt.CreatedAt) > s.cfg.PendingTimeout:
			expire = append(expire, attempt.State)
		}
		return true
	})
	if err != nil {
		return stats, err
	}

	for _, state := range expire {
		if bridge := s.bridge(state); bridge != nil {
			bridge.Expire(ErrorMessageTimedOut)
			stats.Expired++
			continue
		}
		attempt, err := s.store.Get(ctx, state)
		if err != nil || attempt.Status.Terminal() {
			continue
		}
		if err := s.store.Put(ctx, attempt.withError(ErrorMessageTimedOut, now)); err == nil {
			stats.Expired++
		}
	}

	for _, state := range evict {
		if err := s.store.Delete(ctx, state); err != nil {
			return stats, err
		}
		s.mu.Lock()
		if bridge, ok := s.bridges[state]; ok {
			bridge.Close()
			delete(s.bridges, state)
		}
		s.mu.Unlock()
		stats.Evicted++
	}
	return stats, nil
}

// RunSweeper sweeps every SweepInterval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context) error {
	if s.cfg.PendingTimeout <= 0 && s.cfg.Retention <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Warn().Err(err).Msg("sweep verification attempts")
				continue
			}
			if stats.Expired > 0 || stats.Evicted > 0 {
				s.logger.Info().Int("expired", stats.Expired).Int("evicted", stats.Evicted).Msg("swept verification attempts")
			}
		}
	}
}
