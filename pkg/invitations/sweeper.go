package invitations

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tablyhq/tably/pkg/observability"
)

// Sweeper periodically transitions overdue PENDING invitations to EXPIRED.
// Expiry is lazy everywhere else (FindPending filters on expires_at), so the
// sweep only keeps listings and metrics honest.
type Sweeper struct {
	store   Store
	cron    *cron.Cron
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewSweeper creates a Sweeper running on the given cron schedule
// (e.g. "@hourly").
func NewSweeper(store Store, schedule string, logger *observability.Logger, metrics *observability.Metrics) (*Sweeper, error) {
	s := &Sweeper{
		store:   store,
		cron:    cron.New(),
		logger:  logger,
		metrics: metrics,
	}

	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running the sweep on its schedule
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("invitation sweeper started")
}

// Stop halts the schedule and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("invitation sweeper stopped")
}

func (s *Sweeper) run() {
	defer observability.RecoverPanic(s.logger, "invitation sweep")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.Sweep(ctx); err != nil {
		s.logger.WithError(err).Error("invitation sweep failed")
	}
}

// Sweep runs a single expiry pass
func (s *Sweeper) Sweep(ctx context.Context) error {
	expired, err := s.store.MarkExpired(ctx, time.Now())
	if err != nil {
		return err
	}

	if expired > 0 {
		if s.metrics != nil {
			s.metrics.InvitationsExpiredTotal.Add(float64(expired))
		}
		s.logger.WithField("expired", expired).Info("expired overdue invitations")
	}
	return nil
}
