package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ewintr.nl/ytfeed/feed"
	"ewintr.nl/ytfeed/fetch"
	"ewintr.nl/ytfeed/model"
	"golang.org/x/exp/slog"
)

const (
	DefaultUpdateWait = 2 * time.Second
	watchURLPrefix    = "https://www.youtube.com/watch?v="
)

type Refresher interface {
	EnsureFreshness(ctx context.Context) (bool, error)
	IsRefreshing() bool
	Wait(timeout time.Duration) bool
	Progress() int
}

type FeedLoader interface {
	Load(ctx context.Context) (model.Feed, bool, error)
}

type FeedAPIConfig struct {
	UpdateWait time.Duration
	PerPage    int
}

// FeedAPI serves the subscription feed page by page. It never fails because
// a refresh failed; at worst it shows an old feed.
type FeedAPI struct {
	refresher  Refresher
	feeds      FeedLoader
	metadata   fetch.MetadataFetcher
	updateWait time.Duration
	perPage    int
	logger     *slog.Logger
}

// NewFeedAPI creates the api. metadata may be nil, the feed then lists bare
// video ids.
func NewFeedAPI(refresher Refresher, feeds FeedLoader, metadata fetch.MetadataFetcher, conf FeedAPIConfig, logger *slog.Logger) *FeedAPI {
	if conf.UpdateWait <= 0 {
		conf.UpdateWait = DefaultUpdateWait
	}
	if conf.PerPage <= 0 {
		conf.PerPage = feed.DefaultPerPage
	}
	return &FeedAPI{
		refresher:  refresher,
		feeds:      feeds,
		metadata:   metadata,
		updateWait: conf.UpdateWait,
		perPage:    conf.PerPage,
		logger:     logger,
	}
}

func (f *FeedAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	subPath, _ := ShiftPath(r.URL.Path)

	switch {
	case r.Method == http.MethodGet && subPath == "":
		f.List(w, r)
	default:
		Error(w, http.StatusNotFound, "not found", fmt.Errorf("method %s with subpath %q was not registered in the feed api", r.Method, subPath))
	}
}

type respUpdating struct {
	Progress int    `json:"progress"`
	Continue string `json:"continue"`
}

type respVideo struct {
	YoutubeID   string `json:"youtube_id"`
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Duration    string `json:"duration,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
}

type respFeed struct {
	Updating *respUpdating `json:"updating,omitempty"`
	Offset   int           `json:"offset"`
	Videos   []respVideo   `json:"videos"`
	Next     string        `json:"next,omitempty"`
	Message  string        `json:"message,omitempty"`
}

func (f *FeedAPI) List(w http.ResponseWriter, r *http.Request) {
	offset, err := intParam(r, "offset")
	if err != nil {
		f.returnErr(r.Context(), w, http.StatusBadRequest, "invalid offset", err)
		return
	}
	refresh, err := intParam(r, "refresh")
	if err != nil {
		f.returnErr(r.Context(), w, http.StatusBadRequest, "invalid refresh", err)
		return
	}

	resp := respFeed{Videos: []respVideo{}}

	if _, err := f.refresher.EnsureFreshness(r.Context()); err != nil {
		f.logger.Error("could not check feed freshness", slog.String("error", err.Error()))
	}
	// give a quick refresh the chance to finish before showing the old feed
	if f.refresher.IsRefreshing() && !f.refresher.Wait(f.updateWait) {
		resp.Updating = &respUpdating{
			Progress: f.refresher.Progress(),
			Continue: fmt.Sprintf("/feed?refresh=%d", refresh+1),
		}
	}

	ids, found, err := f.feeds.Load(r.Context())
	if err != nil {
		f.logger.Error("could not load feed", slog.String("error", err.Error()))
	}
	if !found || len(ids) == 0 {
		resp.Message = "no entries found"
		writeJSON(w, http.StatusOK, resp)
		return
	}

	page := feed.Paginate(ids, offset, f.perPage)
	resp.Offset = page.Offset
	resp.Videos = f.videos(r.Context(), page.IDs)
	if page.HasNext {
		resp.Next = fmt.Sprintf("/feed?offset=%d", page.Next)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (f *FeedAPI) videos(ctx context.Context, ids []model.YoutubeVideoID) []respVideo {
	mds := map[model.YoutubeVideoID]fetch.Metadata{}
	if f.metadata != nil && len(ids) > 0 {
		var err error
		if mds, err = f.metadata.FetchMetadata(ctx, ids); err != nil {
			f.logger.Warn("could not fetch video metadata", slog.String("error", err.Error()))
		}
	}

	videos := make([]respVideo, 0, len(ids))
	for _, id := range ids {
		md := mds[id]
		videos = append(videos, respVideo{
			YoutubeID:   string(id),
			URL:         watchURLPrefix + string(id),
			Title:       md.Title,
			Description: md.Description,
			Duration:    model.FormatDuration(md.Duration),
			PublishedAt: md.PublishedAt,
			Thumbnail:   md.Thumbnail,
		})
	}

	return videos
}

func (f *FeedAPI) returnErr(_ context.Context, w http.ResponseWriter, status int, message string, err error, details ...any) {
	f.logger.Error(message, slog.String("err", err.Error()), slog.String("details", fmt.Sprintf("%+v", details)))
	Error(w, status, message, err, details...)
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
