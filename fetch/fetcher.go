package fetch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"ewintr.nl/ytfeed/model"
	"github.com/samber/lo"
	"golang.org/x/exp/slog"
)

const DefaultLookback = 7 * 24 * time.Hour

var ErrNoSubscriptions = errors.New("could not list subscriptions")

type SubscriptionLister interface {
	Subscriptions(ctx context.Context, pageToken string) ([]model.YoutubeChannelID, string, error)
}

type UploadLister interface {
	RecentUploads(ctx context.Context, channelID model.YoutubeChannelID, publishedAfter time.Time, pageToken string) ([]model.VideoRef, string, error)
}

// Fetcher collects the recent uploads of all subscribed channels. Failing
// pages end the pagination they are part of, but what was collected before
// is kept.
type Fetcher struct {
	subscriptions SubscriptionLister
	uploads       UploadLister
	lookback      time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

func NewFetcher(subscriptions SubscriptionLister, uploads UploadLister, lookback time.Duration, logger *slog.Logger) *Fetcher {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Fetcher{
		subscriptions: subscriptions,
		uploads:       uploads,
		lookback:      lookback,
		now:           time.Now,
		logger:        logger,
	}
}

// Fetch returns the ids of all videos published by subscribed channels since
// the cutoff, most recent first. progress is called with the percentage of
// channels done after each channel.
func (f *Fetcher) Fetch(ctx context.Context, progress func(int)) (model.Feed, error) {
	if progress == nil {
		progress = func(int) {}
	}

	channelIDs, err := f.listSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	f.logger.Info("fetched subscriptions", slog.Int("count", len(channelIDs)))

	cutoff := Cutoff(f.now(), f.lookback)
	refs := []model.VideoRef{}
	for i, channelID := range channelIDs {
		refs = append(refs, f.channelUploads(ctx, channelID, cutoff)...)
		progress((i + 1) * 100 / len(channelIDs))
	}
	if len(channelIDs) == 0 {
		progress(100)
	}

	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].PublishedAt.After(refs[j].PublishedAt)
	})

	return lo.Map(refs, func(ref model.VideoRef, _ int) model.YoutubeVideoID {
		return ref.ID
	}), nil
}

func (f *Fetcher) listSubscriptions(ctx context.Context) ([]model.YoutubeChannelID, error) {
	channelIDs := []model.YoutubeChannelID{}
	token := ""
	first := true
	for {
		ids, next, err := f.subscriptions.Subscriptions(ctx, token)
		if err != nil {
			if first {
				return nil, fmt.Errorf("%w: %v", ErrNoSubscriptions, err)
			}
			f.logger.Warn("failed to fetch subscription page", slog.String("pagetoken", token), slog.String("error", err.Error()))
			break
		}
		first = false
		if len(ids) == 0 {
			break
		}
		channelIDs = append(channelIDs, ids...)
		if next == "" {
			break
		}
		token = next
	}

	return channelIDs, nil
}

func (f *Fetcher) channelUploads(ctx context.Context, channelID model.YoutubeChannelID, cutoff time.Time) []model.VideoRef {
	refs := []model.VideoRef{}
	token := ""
	for {
		page, next, err := f.uploads.RecentUploads(ctx, channelID, cutoff, token)
		if err != nil {
			f.logger.Warn("failed to fetch upload page", slog.String("channelid", string(channelID)), slog.String("pagetoken", token), slog.String("error", err.Error()))
			break
		}
		if len(page) == 0 {
			break
		}
		refs = append(refs, page...)
		if next == "" {
			break
		}
		token = next
	}

	f.logger.Debug("fetched channel uploads", slog.String("channelid", string(channelID)), slog.Int("count", len(refs)))
	return refs
}

// Cutoff is the start of the current UTC day, minus lookback.
func Cutoff(now time.Time, lookback time.Duration) time.Time {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	return day.Add(-lookback)
}
