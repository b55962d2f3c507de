// Package worker runs the periodic digest sweep.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Synergy-kakaotrack/moa-be/internal/digest"
	"github.com/Synergy-kakaotrack/moa-be/internal/model"
	"github.com/Synergy-kakaotrack/moa-be/internal/store"
)

// ErrSweepInProgress is returned when a sweep is requested while one runs.
var ErrSweepInProgress = errors.New("digest sweep already in progress")

// Refresher regenerates one digest.
type Refresher interface {
	Refresh(ctx context.Context, key model.SubjectKey, prompt string) (*digest.View, error)
}

// Settings controls target selection and pacing.
type Settings struct {
	DailyLimit        int
	Lookback          time.Duration
	Delay             time.Duration
	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	BackoffMultiplier float64
}

// DefaultSettings returns the production pacing.
func DefaultSettings() Settings {
	return Settings{
		DailyLimit:        200,
		Lookback:          7 * 24 * time.Hour,
		Delay:             200 * time.Millisecond,
		BackoffInitial:    time.Second,
		BackoffMax:        15 * time.Second,
		BackoffMultiplier: 1.8,
	}
}

// Report summarises one sweep.
type Report struct {
	Targets  int           `json:"targets"`
	Success  int           `json:"success"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Conflict int           `json:"conflict"`
	Errors   int           `json:"errors"`
	Elapsed  time.Duration `json:"elapsed"`
	Aborted  bool          `json:"aborted"`
}

// Scheduler refreshes recently active stage digests one by one, slowing down
// while the provider rate limits it.
type Scheduler struct {
	targets   store.TargetLister
	refresher Refresher
	settings  Settings
	logger    *slog.Logger
	running   atomic.Bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

// New creates a Scheduler. A nil logger uses slog.Default().
func New(targets store.TargetLister, refresher Refresher, settings Settings, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		targets:   targets,
		refresher: refresher,
		settings:  settings,
		logger:    logger,
		now:       time.Now,
		sleep:     sleep,
	}
}

// Start runs a sweep every time trigger fires. It blocks until ctx is
// cancelled or trigger is closed.
func (s *Scheduler) Start(ctx context.Context, trigger <-chan time.Time) {
	s.logger.Info("digest sweep scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("digest sweep scheduler stopped")
			return
		case _, ok := <-trigger:
			if !ok {
				s.logger.Info("digest sweep scheduler stopped")
				return
			}
			if _, err := s.Sweep(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
				s.logger.Error("digest sweep failed", "error", err)
			}
		}
	}
}

// Sweep refreshes every recent target once. Cancelling ctx stops the sweep
// between items; the item in flight always completes.
func (s *Scheduler) Sweep(ctx context.Context) (Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info("digest sweep already running, skipping")
		return Report{}, ErrSweepInProgress
	}
	defer s.running.Store(false)

	start := s.now()
	var report Report
	keys, err := s.targets.RecentStageTargets(ctx, start.Add(-s.settings.Lookback), s.settings.DailyLimit)
	if err != nil {
		return report, fmt.Errorf("list sweep targets: %w", err)
	}
	report.Targets = len(keys)
	s.logger.Info("digest sweep started", "targets", len(keys))

	backoff := NewBackoff(s.settings.BackoffInitial, s.settings.BackoffMax, s.settings.BackoffMultiplier)
	for _, key := range keys {
		if ctx.Err() != nil {
			report.Aborted = true
			break
		}

		o, err := s.refreshOne(ctx, key)
		switch {
		case err != nil:
			report.Errors++
			backoff.Reset()
			s.logger.Error("digest sweep item error", "key", key.String(), "error", err)
		case o.Status == model.RefreshSuccess:
			report.Success++
			backoff.Reset()
		case o.Status == model.RefreshSkipped:
			report.Skipped++
			backoff.Reset()
		case o.Status == model.RefreshConflict:
			report.Conflict++
			backoff.Reset()
		case o.RateLimited():
			report.Failed++
			next := backoff.OnRateLimited(o.RetryAfter)
			s.logger.Warn("digest sweep rate limited",
				"key", key.String(),
				"consecutive", backoff.Consecutive(),
				"next_backoff", next.String(),
			)
		default:
			report.Failed++
			backoff.Reset()
			s.logger.Warn("digest sweep item failed", "key", key.String(), "reason", o.Reason, "message", o.Message)
		}

		if !s.sleep(ctx, s.settings.Delay+backoff.Current()) {
			report.Aborted = true
			break
		}
	}

	report.Elapsed = s.now().Sub(start)
	s.logger.Info("digest sweep finished",
		"targets", report.Targets,
		"success", report.Success,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"conflict", report.Conflict,
		"errors", report.Errors,
		"aborted", report.Aborted,
		"elapsed", report.Elapsed.String(),
	)
	return report, nil
}

// refreshOne runs a single item on a context that outlives shutdown, so a
// started generation is not torn down halfway. Panics become errors.
func (s *Scheduler) refreshOne(ctx context.Context, key model.SubjectKey) (o model.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	v, err := s.refresher.Refresh(context.WithoutCancel(ctx), key, "")
	if err != nil {
		return o, err
	}
	if v == nil || v.Meta.Refresh == nil {
		return o, fmt.Errorf("refresh of %s returned no outcome", key)
	}
	return *v.Meta.Refresh, nil
}

// sleep waits for d or until ctx is cancelled. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
