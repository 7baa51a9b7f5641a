package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/finanze/finanze-sub000/internal/model"
	"github.com/finanze/finanze-sub000/internal/service"
)

// Scraper is the slice of the orchestrator the scheduler needs.
type Scraper interface {
	Scrape(ctx context.Context, entity *model.Entity, features []model.Feature, opts service.FetchOptions) error
	Busy(entityID string) bool
}

// Scheduler runs a single silent refresh pass per application session,
// after a settle delay following entity-list load. Failures are recorded in
// bookkeeping and never interrupt the user.
type Scheduler struct {
	scraper     Scraper
	logger      *slog.Logger
	policy      Policy
	settleDelay time.Duration

	// OnProgress, when set, is called once before the pass with (0, total)
	// and after each attempted entity.
	OnProgress func(done, total int)
}

// NewScheduler creates a scheduler for the given policy.
func NewScheduler(scraper Scraper, policy Policy, settleDelay time.Duration) *Scheduler {
	return &Scheduler{
		scraper:     scraper,
		policy:      policy,
		settleDelay: settleDelay,
		logger:      slog.Default().With("component", "refresh"),
	}
}

// Run waits out the settle delay, selects candidates from the given entity
// list, and scrapes each one silently with avoid-new-login set. Returns the
// number of attempted entities.
func (s *Scheduler) Run(ctx context.Context, entities []*model.Entity) int {
	if s.settleDelay > 0 {
		select {
		case <-ctx.Done():
			return 0
		case <-time.After(s.settleDelay):
		}
	}

	candidates := SelectCandidates(entities, s.policy, s.scraper.Busy, time.Now())
	if len(candidates) == 0 {
		s.logger.Debug("No auto-refresh candidates")
		return 0
	}

	s.logger.Info("Starting auto-refresh pass", "candidates", len(candidates))
	if s.OnProgress != nil {
		s.OnProgress(0, len(candidates))
	}

	attempted := 0
	for _, c := range candidates {
		select {
		case <-ctx.Done():
			return attempted
		default:
		}

		opts := service.FetchOptions{Silent: true, AvoidNewLogin: true}
		if err := s.scraper.Scrape(ctx, c.Entity, c.Features, opts); err != nil {
			s.logger.Debug("Silent refresh failed",
				"entity", c.Entity.ID,
				"error", err)
		}
		attempted++
		if s.OnProgress != nil {
			s.OnProgress(attempted, len(candidates))
		}
	}

	s.logger.Info("Auto-refresh pass finished", "attempted", attempted)
	return attempted
}
