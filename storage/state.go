package storage

import (
	"context"
	"strconv"
	"time"
)

const lastRefreshKey = "last_refresh_time"

// RefreshStateStore persists when the last refresh was started.
type RefreshStateStore struct {
	kv KV
}

func NewRefreshStateStore(kv KV) *RefreshStateStore {
	return &RefreshStateStore{kv: kv}
}

// LastRefresh returns the zero time if no refresh was ever started.
func (r *RefreshStateStore) LastRefresh(ctx context.Context) (time.Time, error) {
	body, found, err := r.kv.Get(ctx, lastRefreshKey)
	if err != nil || !found {
		return time.Time{}, err
	}
	sec, err := strconv.ParseInt(string(body), 10, 64)
	if err != nil {
		return time.Time{}, &Error{Op: "load", Key: lastRefreshKey, Err: ErrCorrupt}
	}

	return time.Unix(sec, 0), nil
}

func (r *RefreshStateStore) SetLastRefresh(ctx context.Context, t time.Time) error {
	return r.kv.Put(ctx, lastRefreshKey, []byte(strconv.FormatInt(t.Unix(), 10)))
}
