package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// SweepTimeout bounds one sweep run.
const SweepTimeout = 30 * time.Second

// AttemptSweeper is the expiry sweep the scheduler triggers.
type AttemptSweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// Sweeper runs the attempt expiry sweep on a cron schedule. Runs never
// overlap; a tick that fires while the previous run is busy is skipped.
type Sweeper struct {
	cron     *cron.Cron
	attempts AttemptSweeper
	log      zerolog.Logger
}

// NewSweeper schedules attempts.Sweep on spec, which accepts standard
// five-field cron expressions and descriptors such as "@every 5m".
func NewSweeper(spec string, attempts AttemptSweeper, log zerolog.Logger) (*Sweeper, error) {
	s := &Sweeper{
		attempts: attempts,
		log:      log.With().Str("component", "sweeper").Logger(),
	}
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return nil, err
	}
	return s, nil
}

// Start runs the scheduler until ctx is cancelled, then waits for a
// running sweep to finish.
func (s *Sweeper) Start(ctx context.Context) {
	s.log.Info().Msg("Sweeper started")
	s.cron.Start()

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Sweeper stopped")
}

// RunOnce performs one sweep and logs the outcome.
func (s *Sweeper) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), SweepTimeout)
	defer cancel()

	n, err := s.attempts.Sweep(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Attempt sweep failed")
		return
	}
	if n > 0 {
		s.log.Info().Int64("expired", n).Msg("Attempt sweep expired overdue attempts")
	}
}
