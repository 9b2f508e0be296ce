package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ewintr.nl/ytfeed/fetch"
	"ewintr.nl/ytfeed/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type fakeRefresher struct {
	ensureErr  error
	ensured    int
	refreshing bool
	finishes   bool
	waited     time.Duration
	progress   int
}

func (f *fakeRefresher) EnsureFreshness(context.Context) (bool, error) {
	f.ensured++
	return false, f.ensureErr
}

func (f *fakeRefresher) IsRefreshing() bool { return f.refreshing }

func (f *fakeRefresher) Wait(timeout time.Duration) bool {
	f.waited = timeout
	if f.finishes {
		f.refreshing = false
	}
	return !f.refreshing
}

func (f *fakeRefresher) Progress() int { return f.progress }

type fakeLoader struct {
	feed  model.Feed
	found bool
	err   error
}

func (f *fakeLoader) Load(context.Context) (model.Feed, bool, error) {
	return f.feed, f.found, f.err
}

type fakeMetadata struct {
	mds map[model.YoutubeVideoID]fetch.Metadata
	err error
	ids []model.YoutubeVideoID
}

func (f *fakeMetadata) FetchMetadata(_ context.Context, ids []model.YoutubeVideoID) (map[model.YoutubeVideoID]fetch.Metadata, error) {
	f.ids = ids
	return f.mds, f.err
}

func feedOf(n int) model.Feed {
	f := make(model.Feed, n)
	for i := range f {
		f[i] = model.YoutubeVideoID(fmt.Sprintf("v%d", i))
	}
	return f
}

func serve(t *testing.T, api *FeedAPI, target string) (*httptest.ResponseRecorder, respFeed) {
	t.Helper()
	srv := NewServer(api, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var resp respFeed
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func newTestAPI(refresher *fakeRefresher, loader *fakeLoader, metadata fetch.MetadataFetcher) *FeedAPI {
	return NewFeedAPI(refresher, loader, metadata, FeedAPIConfig{PerPage: 10, UpdateWait: 50 * time.Millisecond}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFeedAPIEmpty(t *testing.T) {
	for _, tc := range []struct {
		name   string
		loader *fakeLoader
	}{
		{name: "never saved", loader: &fakeLoader{}},
		{name: "saved empty", loader: &fakeLoader{feed: model.Feed{}, found: true}},
		{name: "store error", loader: &fakeLoader{err: errors.New("down")}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			refresher := &fakeRefresher{}
			rec, resp := serve(t, newTestAPI(refresher, tc.loader, nil), "/feed")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "no entries found", resp.Message)
			assert.Empty(t, resp.Videos)
			assert.Equal(t, 1, refresher.ensured)
		})
	}
}

func TestFeedAPIPaging(t *testing.T) {
	loader := &fakeLoader{feed: feedOf(25), found: true}
	api := newTestAPI(&fakeRefresher{}, loader, nil)

	rec, resp := serve(t, api, "/feed")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Len(t, resp.Videos, 10)
	assert.Equal(t, "v0", resp.Videos[0].YoutubeID)
	assert.Equal(t, "https://www.youtube.com/watch?v=v0", resp.Videos[0].URL)
	assert.Equal(t, "/feed?offset=10", resp.Next)
	assert.Zero(t, resp.Offset)
	assert.Nil(t, resp.Updating)

	_, resp = serve(t, api, "/feed?offset=20")
	assert.Equal(t, 20, resp.Offset)
	require.Len(t, resp.Videos, 5)
	assert.Equal(t, "v20", resp.Videos[0].YoutubeID)
	assert.Empty(t, resp.Next)
}

func TestFeedAPIUpdating(t *testing.T) {
	loader := &fakeLoader{feed: feedOf(3), found: true}

	t.Run("still running after wait", func(t *testing.T) {
		refresher := &fakeRefresher{refreshing: true, progress: 40}
		_, resp := serve(t, newTestAPI(refresher, loader, nil), "/feed?refresh=1")
		require.NotNil(t, resp.Updating)
		assert.Equal(t, 40, resp.Updating.Progress)
		assert.Equal(t, "/feed?refresh=2", resp.Updating.Continue)
		assert.Equal(t, 50*time.Millisecond, refresher.waited)
		assert.Len(t, resp.Videos, 3)
	})

	t.Run("finished during wait", func(t *testing.T) {
		refresher := &fakeRefresher{refreshing: true, finishes: true}
		_, resp := serve(t, newTestAPI(refresher, loader, nil), "/feed")
		assert.Nil(t, resp.Updating)
		assert.Len(t, resp.Videos, 3)
	})

	t.Run("not running", func(t *testing.T) {
		refresher := &fakeRefresher{}
		_, resp := serve(t, newTestAPI(refresher, loader, nil), "/feed")
		assert.Nil(t, resp.Updating)
		assert.Zero(t, refresher.waited)
	})
}

func TestFeedAPIFreshnessError(t *testing.T) {
	refresher := &fakeRefresher{ensureErr: errors.New("store down")}
	loader := &fakeLoader{feed: feedOf(2), found: true}

	rec, resp := serve(t, newTestAPI(refresher, loader, nil), "/feed")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Videos, 2)
}

func TestFeedAPIMetadata(t *testing.T) {
	loader := &fakeLoader{feed: model.Feed{"a", "b"}, found: true}

	t.Run("enriched", func(t *testing.T) {
		metadata := &fakeMetadata{mds: map[model.YoutubeVideoID]fetch.Metadata{
			"a": {Title: "A", Description: "about a", Duration: "PT1H2M3S", PublishedAt: "2024-03-05T10:00:00Z", Thumbnail: "https://img/a.jpg"},
		}}
		_, resp := serve(t, newTestAPI(&fakeRefresher{}, loader, metadata), "/feed")
		assert.Equal(t, []model.YoutubeVideoID{"a", "b"}, metadata.ids)
		assert.Equal(t, []respVideo{
			{YoutubeID: "a", URL: watchURLPrefix + "a", Title: "A", Description: "about a", Duration: "1:02:03", PublishedAt: "2024-03-05T10:00:00Z", Thumbnail: "https://img/a.jpg"},
			{YoutubeID: "b", URL: watchURLPrefix + "b"},
		}, resp.Videos)
	})

	t.Run("metadata failure degrades to ids", func(t *testing.T) {
		metadata := &fakeMetadata{err: errors.New("quota")}
		rec, resp := serve(t, newTestAPI(&fakeRefresher{}, loader, metadata), "/feed")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []respVideo{
			{YoutubeID: "a", URL: watchURLPrefix + "a"},
			{YoutubeID: "b", URL: watchURLPrefix + "b"},
		}, resp.Videos)
	})
}

func TestFeedAPIErrors(t *testing.T) {
	api := newTestAPI(&fakeRefresher{}, &fakeLoader{}, nil)

	rec, _ := serve(t, api, "/feed?offset=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = serve(t, api, "/feed/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer(t *testing.T) {
	api := newTestAPI(&fakeRefresher{}, &fakeLoader{}, nil)
	srv := NewServer(api, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for _, tc := range []struct {
		name   string
		path   string
		status int
	}{
		{name: "index", path: "/", status: http.StatusOK},
		{name: "unknown", path: "/nothing", status: http.StatusNotFound},
		{name: "metrics", path: "/metrics", status: http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestServerIndex(t *testing.T) {
	refresher := &fakeRefresher{refreshing: true, progress: 60}
	srv := NewServer(newTestAPI(refresher, &fakeLoader{}, nil), slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp respIndex
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, respIndex{
		Name:       "ytfeed",
		APIs:       []string{"feed", "metrics"},
		Refreshing: true,
		Progress:   60,
	}, resp)
	assert.Zero(t, refresher.ensured)
}

func TestErrorResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusTeapot, "no coffee", errors.New("only tea"), "earl grey")

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.JSONEq(t, `{"message":"no coffee","error":"only tea","details":["earl grey"]}`, rec.Body.String())
}

func TestShiftPath(t *testing.T) {
	for _, tc := range []struct {
		path    string
		expHead string
		expTail string
	}{
		{path: "/", expHead: "", expTail: "/"},
		{path: "/feed", expHead: "feed", expTail: "/"},
		{path: "/feed/", expHead: "feed", expTail: "/"},
		{path: "/feed/x/y", expHead: "feed", expTail: "/x/y"},
		{path: "feed/../metrics", expHead: "metrics", expTail: "/"},
	} {
		t.Run(tc.path, func(t *testing.T) {
			head, tail := ShiftPath(tc.path)
			assert.Equal(t, tc.expHead, head)
			assert.Equal(t, tc.expTail, tail)
		})
	}
}
