package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/alumni-portal-be/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Sweeper drops state that is no longer needed, such as expired rate limit windows.
type Sweeper interface {
	Sweep()
}

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	cron     *cron.Cron
	accounts services.AccountServiceProvider
	sweepers []Sweeper
	now      func() time.Time
}

// NewScheduler creates a scheduler that purges expired password resets and
// sweeps the given sweepers on schedule, a standard cron expression or a
// descriptor such as "@every 15m".
func NewScheduler(schedule string, accounts services.AccountServiceProvider, sweepers ...Sweeper) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		accounts: accounts,
		sweepers: sweepers,
		now:      time.Now,
	}
	if _, err := s.cron.AddFunc(schedule, s.runMaintenance); err != nil {
		return nil, fmt.Errorf("invalid purge schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	log.Info().Msg("Starting background scheduler...")
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Stopped background scheduler.")
}

func (s *Scheduler) runMaintenance() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if s.accounts != nil {
		n, err := s.accounts.PurgeExpiredResets(ctx, s.now())
		if err != nil {
			log.Error().Err(err).Msg("Scheduler: Failed to purge expired password resets")
		} else if n > 0 {
			log.Info().Int("count", n).Msg("Scheduler: Purged expired password resets")
		}
	}
	for _, sw := range s.sweepers {
		sw.Sweep()
	}
}
