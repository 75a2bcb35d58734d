// Package scheduler owns the janitor cadence in-process, instead of relying
// on an external caller hitting the cron HTTP endpoints.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/gospodar-shop/order-service/internal/janitor"
)

type Specs struct {
	AutoCancel   string
	AutoTrack    string
	CartCleanup  string
	TokenCleanup string
}

type Scheduler struct {
	cron *cron.Cron
}

func New(specs Specs, j *janitor.Janitor) (*Scheduler, error) {
	c := cron.New()

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) (int, error)
	}{
		{"auto_cancel", specs.AutoCancel, j.AutoCancelStaleOrders},
		{"auto_track", specs.AutoTrack, j.AutoTrackShipments},
		{"cart_cleanup", specs.CartCleanup, j.CleanupCarts},
		{"token_cleanup", specs.TokenCleanup, j.CleanupTokens},
	}

	for _, job := range jobs {
		job := job
		if job.spec == "" {
			continue
		}
		_, err := c.AddFunc(job.spec, func() {
			count, err := job.run(context.Background())
			if err != nil {
				log.Error().Err(err).Str("job", job.name).Msg("scheduled job failed")
				return
			}
			log.Info().Str("job", job.name).Int("affected", count).Msg("scheduled job finished")
		})
		if err != nil {
			return nil, fmt.Errorf("scheduler: failed to schedule %s (%q): %w", job.name, job.spec, err)
		}
	}

	return &Scheduler{cron: c}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Msg("scheduler started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}
