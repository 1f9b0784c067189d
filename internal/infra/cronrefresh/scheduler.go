// Package cronrefresh runs registry refreshes on a cron schedule.
package cronrefresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"toolhub/internal/domain"
	"toolhub/internal/infra/telemetry"
)

// Refresher is the non-blocking refresh entry point of the pipeline.
type Refresher interface {
	TryRefresh(ctx context.Context) (domain.RefreshReport, error)
}

type Options struct {
	Logger *zap.Logger
	// Timeout bounds a scheduled run. Zero leaves it to the refresher.
	Timeout time.Duration
}

// Scheduler fires refreshes from a standard five-field cron spec or a
// descriptor such as "@every 5m".
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	logger    *zap.Logger
	timeout   time.Duration

	mu      sync.Mutex
	entry   cron.EntryID
	started bool
}

func New(refresher Refresher, opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:      cron.New(),
		refresher: refresher,
		logger:    logger.Named("cron"),
		timeout:   opts.Timeout,
	}
}

// Schedule registers spec. Only one schedule is kept; a second call replaces
// the first.
func (s *Scheduler) Schedule(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, s.Run)
	if err != nil {
		return fmt.Errorf("register refresh schedule %q: %w", spec, err)
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry = id
	s.logger.Info("refresh scheduled", zap.String("schedule", spec))
	return nil
}

// Run performs one scheduled refresh. A refresh already in flight is skipped.
func (s *Scheduler) Run() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	report, err := s.refresher.TryRefresh(ctx)
	switch {
	case errors.Is(err, domain.ErrRefreshInProgress):
		s.logger.Debug("scheduled refresh skipped; refresh in progress")
	case err != nil:
		s.logger.Warn("scheduled refresh failed", zap.Error(err))
	default:
		s.logger.Info("scheduled refresh applied",
			telemetry.GenerationField(report.Generation),
			zap.Int("tools", len(report.Tools)),
		)
	}
}

// Entries returns the number of registered schedules.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Start begins executing the schedule.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
}

// Stop halts the schedule and waits for a running refresh to finish or for
// ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
