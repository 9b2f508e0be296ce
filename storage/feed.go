package storage

import (
	"context"
	"encoding/json"
	"sync"

	"ewintr.nl/ytfeed/model"
)

const feedKey = "subscription_feed"

// FeedStore holds the snapshot of the subscription feed. The mutex covers a
// single read or write, so a reader never sees a list that is half replaced.
type FeedStore struct {
	mu sync.Mutex
	kv KV
}

func NewFeedStore(kv KV) *FeedStore {
	return &FeedStore{kv: kv}
}

func (f *FeedStore) Save(ctx context.Context, feed model.Feed) error {
	if feed == nil {
		feed = model.Feed{}
	}
	body, err := json.Marshal(feed)
	if err != nil {
		return &Error{Op: "save", Key: feedKey, Err: err}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.kv.Put(ctx, feedKey, body)
}

// Load returns the last saved feed. found is false if nothing was ever saved.
func (f *FeedStore) Load(ctx context.Context) (model.Feed, bool, error) {
	f.mu.Lock()
	body, found, err := f.kv.Get(ctx, feedKey)
	f.mu.Unlock()
	if err != nil || !found {
		return nil, false, err
	}

	var feed model.Feed
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, false, &Error{Op: "load", Key: feedKey, Err: ErrCorrupt}
	}

	return feed, true, nil
}

func (f *FeedStore) Exists(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.kv.Has(ctx, feedKey)
}
