package refresh

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ewintr.nl/ytfeed/model"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

const DefaultMinInterval = 300 * time.Second

type Fetcher interface {
	Fetch(ctx context.Context, progress func(int)) (model.Feed, error)
}

type FeedRepository interface {
	Save(ctx context.Context, feed model.Feed) error
	Exists(ctx context.Context) (bool, error)
}

type StateRepository interface {
	LastRefresh(ctx context.Context) (time.Time, error)
	SetLastRefresh(ctx context.Context, t time.Time) error
}

// Coordinator decides when the subscription feed needs a refresh and runs
// at most one refresh at a time in the background.
type Coordinator struct {
	mu          sync.Mutex
	slot        Slot
	minInterval time.Duration
	fetcher     Fetcher
	feeds       FeedRepository
	state       StateRepository
	progress    atomic.Int32
	now         func() time.Time
	logger      *slog.Logger
}

func NewCoordinator(fetcher Fetcher, feeds FeedRepository, state StateRepository, minInterval time.Duration, logger *slog.Logger) *Coordinator {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Coordinator{
		minInterval: minInterval,
		fetcher:     fetcher,
		feeds:       feeds,
		state:       state,
		now:         time.Now,
		logger:      logger,
	}
}

// EnsureFreshness starts a refresh when none is running and the last one was
// started more than the minimum interval ago, or when there is no feed yet.
// The start time is stored before the refresh begins, whatever its outcome.
// It reports whether a refresh was started.
func (c *Coordinator) EnsureFreshness(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.slot.Active() {
		return false, nil
	}

	// the start time is stored in whole seconds
	now := c.now().Truncate(time.Second)
	due, err := c.due(ctx, now)
	if err != nil || !due {
		return false, err
	}

	if err := c.state.SetLastRefresh(ctx, now); err != nil {
		return false, fmt.Errorf("could not store refresh time: %w", err)
	}

	c.setProgress(0)
	runID := uuid.New()
	// the refresh outlives the request that triggered it
	runCtx := context.WithoutCancel(ctx)

	return c.slot.TryStart(func() { c.run(runCtx, runID) }), nil
}

func (c *Coordinator) due(ctx context.Context, now time.Time) (bool, error) {
	last, err := c.state.LastRefresh(ctx)
	if err != nil {
		return false, fmt.Errorf("could not load refresh time: %w", err)
	}

	var elapsed time.Duration
	if last.Before(now) {
		elapsed = now.Sub(last)
	}
	if elapsed > c.minInterval {
		return true, nil
	}

	exists, err := c.feeds.Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("could not check feed: %w", err)
	}

	return !exists, nil
}

// MinInterval is the time that must pass between the starts of two refreshes.
func (c *Coordinator) MinInterval() time.Duration {
	return c.minInterval
}

// Progress returns the percentage of channels processed by the current or
// last refresh.
func (c *Coordinator) Progress() int {
	return int(c.progress.Load())
}

func (c *Coordinator) IsRefreshing() bool {
	return c.slot.Active()
}

// Wait waits at most timeout for a running refresh to finish and reports
// whether none is running anymore.
func (c *Coordinator) Wait(timeout time.Duration) bool {
	return c.slot.Wait(timeout)
}

func (c *Coordinator) run(ctx context.Context, runID uuid.UUID) {
	logger := c.logger.With(slog.String("run", runID.String()))
	start := time.Now()
	logger.Info("started feed refresh")

	feed, err := c.fetcher.Fetch(ctx, c.setProgress)
	if err != nil {
		logger.Error("failed to refresh feed", slog.String("error", err.Error()))
		refreshRuns.WithLabelValues(resultFetchError).Inc()
		return
	}

	if err := c.feeds.Save(ctx, feed); err != nil {
		logger.Error("failed to save feed", slog.String("error", err.Error()))
		refreshRuns.WithLabelValues(resultStoreError).Inc()
		return
	}

	feedVideos.Set(float64(len(feed)))
	refreshRuns.WithLabelValues(resultSuccess).Inc()
	refreshDuration.Observe(time.Since(start).Seconds())
	logger.Info("refreshed feed", slog.Int("count", len(feed)), slog.String("duration", time.Since(start).String()))
}

func (c *Coordinator) setProgress(p int) {
	c.progress.Store(int32(p))
	progressGauge.Set(float64(p))
}
