package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Synergy-kakaotrack/moa-be/internal/digest"
	"github.com/Synergy-kakaotrack/moa-be/internal/model"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeTargets struct {
	keys     []model.SubjectKey
	err      error
	gotSince time.Time
	gotLimit int
}

func (f *fakeTargets) RecentStageTargets(_ context.Context, since time.Time, limit int) ([]model.SubjectKey, error) {
	f.gotSince, f.gotLimit = since, limit
	return f.keys, f.err
}

// scriptedRefresher answers each call with the next step.
type scriptedRefresher struct {
	mu    sync.Mutex
	steps []func(ctx context.Context) (*digest.View, error)
	calls int
}

func (r *scriptedRefresher) Refresh(ctx context.Context, _ model.SubjectKey, prompt string) (*digest.View, error) {
	r.mu.Lock()
	step := r.steps[r.calls]
	r.calls++
	r.mu.Unlock()
	return step(ctx)
}

func returns(o model.Outcome) func(context.Context) (*digest.View, error) {
	return func(context.Context) (*digest.View, error) {
		return &digest.View{Meta: digest.Meta{Refresh: &o}}, nil
	}
}

var (
	success     = model.Outcome{Status: model.RefreshSuccess}
	skipped     = model.Outcome{Status: model.RefreshSkipped, Reason: model.ReasonNotOutdated}
	rateLimited = model.Outcome{Status: model.RefreshFailed, Reason: model.ReasonRateLimited}
	providerErr = model.Outcome{Status: model.RefreshFailed, Reason: model.ReasonProviderError}
)

func stageKeys(n int) []model.SubjectKey {
	keys := make([]model.SubjectKey, n)
	for i := range keys {
		keys[i] = model.StageKey("u1", "p1", fmt.Sprintf("stage-%d", i))
	}
	return keys
}

func newTestScheduler(targets *fakeTargets, r Refresher) (*Scheduler, *[]time.Duration) {
	s := New(targets, r, DefaultSettings(), discard)
	var pauses []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) bool {
		pauses = append(pauses, d)
		return ctx.Err() == nil
	}
	return s, &pauses
}

func TestSweep_BackoffEscalatesAndResets(t *testing.T) {
	r := &scriptedRefresher{steps: []func(context.Context) (*digest.View, error){
		returns(rateLimited), returns(rateLimited), returns(success),
	}}
	s, pauses := newTestScheduler(&fakeTargets{keys: stageKeys(3)}, r)

	report, err := s.Sweep(context.Background())
	require.NoError(t, err)

	delay := DefaultSettings().Delay
	require.Len(t, *pauses, 3)
	backoffs := make([]time.Duration, 3)
	for i, p := range *pauses {
		backoffs[i] = p - delay
	}
	assert.Greater(t, backoffs[0], time.Duration(0))
	assert.Greater(t, backoffs[1], backoffs[0])
	assert.Zero(t, backoffs[2])
	assert.Equal(t, []time.Duration{time.Second, 1800 * time.Millisecond, 0}, backoffs)

	assert.Equal(t, Report{Targets: 3, Success: 1, Failed: 2, Elapsed: report.Elapsed}, report)
}

func TestSweep_OutcomeAccounting(t *testing.T) {
	hinted := rateLimited
	hinted.RetryAfter = time.Minute

	r := &scriptedRefresher{steps: []func(context.Context) (*digest.View, error){
		returns(hinted),
		returns(providerErr),
		returns(skipped),
		returns(model.Outcome{Status: model.RefreshConflict, Reason: model.ReasonInProgress}),
		func(context.Context) (*digest.View, error) { return nil, errors.New("db locked") },
		func(context.Context) (*digest.View, error) { panic("boom") },
		returns(success),
	}}
	s, pauses := newTestScheduler(&fakeTargets{keys: stageKeys(7)}, r)

	report, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, r.calls)
	assert.Equal(t, 7, report.Targets)
	assert.Equal(t, 1, report.Success)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 1, report.Conflict)
	assert.Equal(t, 2, report.Errors)
	assert.False(t, report.Aborted)

	delay := DefaultSettings().Delay
	assert.Equal(t, delay+DefaultSettings().BackoffMax, (*pauses)[0], "hint is capped at max")
	assert.Equal(t, delay, (*pauses)[1], "provider errors reset backoff")
}

func TestSweep_TargetQuery(t *testing.T) {
	targets := &fakeTargets{}
	s, _ := newTestScheduler(targets, &scriptedRefresher{})
	now := time.Date(2026, 1, 10, 4, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	report, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Targets)
	assert.Equal(t, now.Add(-7*24*time.Hour), targets.gotSince)
	assert.Equal(t, 200, targets.gotLimit)

	targets.err = errors.New("no such table")
	_, err = s.Sweep(context.Background())
	assert.Error(t, err)
}

func TestSweep_OverlappingRunIsRejected(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	r := &scriptedRefresher{steps: []func(context.Context) (*digest.View, error){
		func(context.Context) (*digest.View, error) {
			close(entered)
			<-release
			o := success
			return &digest.View{Meta: digest.Meta{Refresh: &o}}, nil
		},
	}}
	s, _ := newTestScheduler(&fakeTargets{keys: stageKeys(1)}, r)

	done := make(chan error, 1)
	go func() {
		_, err := s.Sweep(context.Background())
		done <- err
	}()
	<-entered

	_, err := s.Sweep(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)

	close(release)
	require.NoError(t, <-done)
}

func TestSweep_CancelStopsBetweenItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var itemCtxErr error
	r := &scriptedRefresher{steps: []func(context.Context) (*digest.View, error){
		func(itemCtx context.Context) (*digest.View, error) {
			cancel()
			itemCtxErr = itemCtx.Err()
			o := success
			return &digest.View{Meta: digest.Meta{Refresh: &o}}, nil
		},
		returns(success),
	}}
	s, _ := newTestScheduler(&fakeTargets{keys: stageKeys(2)}, r)

	report, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.True(t, report.Aborted)
	assert.Equal(t, 1, report.Success)
	assert.Equal(t, 1, r.calls)
	assert.NoError(t, itemCtxErr, "in-flight item keeps running after shutdown")
}

func TestBackoff(t *testing.T) {
	b := NewBackoff(time.Second, 3*time.Second, 2)

	assert.Equal(t, time.Second, b.OnRateLimited(0))
	assert.Equal(t, 2*time.Second, b.OnRateLimited(0))
	assert.Equal(t, 3*time.Second, b.OnRateLimited(0), "capped")
	assert.Equal(t, 3, b.Consecutive())
	assert.Equal(t, 500*time.Millisecond, b.OnRateLimited(500*time.Millisecond), "hint wins")

	b.Reset()
	assert.Zero(t, b.Current())
	assert.Zero(t, b.Consecutive())
}

func TestSleepInterruptible(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	assert.False(t, sleep(ctx, time.Hour))
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, sleep(context.Background(), time.Millisecond))
}

func TestStart_RunsOnTrigger(t *testing.T) {
	r := &scriptedRefresher{steps: []func(context.Context) (*digest.View, error){
		returns(success), returns(success),
	}}
	s, _ := newTestScheduler(&fakeTargets{keys: stageKeys(1)}, r)

	trigger := make(chan time.Time)
	done := make(chan struct{})
	go func() {
		s.Start(context.Background(), trigger)
		close(done)
	}()

	trigger <- time.Now()
	trigger <- time.Now()
	close(trigger)
	<-done

	assert.Equal(t, 2, r.calls)
}

func TestParseClockAndNextDaily(t *testing.T) {
	h, m, err := ParseClock("04:30")
	require.NoError(t, err)
	assert.Equal(t, 4, h)
	assert.Equal(t, 30, m)

	_, _, err = ParseClock("25:00")
	assert.Error(t, err)

	seoul := time.FixedZone("KST", 9*60*60)
	before := time.Date(2026, 1, 10, 3, 0, 0, 0, seoul)
	assert.Equal(t, time.Date(2026, 1, 10, 4, 30, 0, 0, seoul), NextDaily(before, 4, 30, seoul))

	at := time.Date(2026, 1, 10, 4, 30, 0, 0, seoul)
	assert.Equal(t, time.Date(2026, 1, 11, 4, 30, 0, 0, seoul), NextDaily(at, 4, 30, seoul))

	utcEvening := time.Date(2026, 1, 10, 20, 0, 0, 0, time.UTC) // 05:00 next day in Seoul
	assert.Equal(t, time.Date(2026, 1, 12, 4, 30, 0, 0, seoul), NextDaily(utcEvening, 4, 30, seoul))
}

func TestDaily_ClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := Daily(ctx, "04:00", time.UTC)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("trigger channel not closed after cancel")
	}

	_, err = Daily(context.Background(), "4pm", time.UTC)
	assert.Error(t, err)
}
