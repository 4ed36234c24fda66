// services/scheduler.go
package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartTurnTimeoutScheduler forfeits the pending turn of every active game
// idle for longer than limit, checking once per interval. The returned
// scheduler must be shut down by the caller.
func (s *GameService) StartTurnTimeoutScheduler(limit, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	// Every interval: forfeit overdue turns
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			s.ForfeitIdleGames(context.Background(), limit)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}
	sched.Start()
	s.log.WithField("limit", limit.String()).Info("⏰ Turn timeout scheduler started.")
	return sched, nil
}

// ForfeitIdleGames runs one timeout sweep and reports how many turns it
// forfeited.
func (s *GameService) ForfeitIdleGames(ctx context.Context, limit time.Duration) int {
	ids, err := s.Store.IdleGames(ctx, s.Now().Add(-limit))
	if err != nil {
		s.log.WithError(err).Error("[Scheduler] Failed to list idle games.")
		return 0
	}

	forfeited := 0
	for _, id := range ids {
		_, ok, err := s.ForfeitTurn(ctx, id)
		if err != nil {
			s.log.WithError(err).WithField("game_id", id).Warn("[Scheduler] Failed to forfeit turn.")
			continue
		}
		if ok {
			forfeited++
		}
	}
	return forfeited
}
