package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"ewintr.nl/ytfeed/storage"
	"golang.org/x/oauth2"
)

const tokenKey = "oauth_token"

var ErrNotAuthorized = errors.New("not authorized, run the authorize command first")

type TokenStore struct {
	kv storage.KV
}

func NewTokenStore(kv storage.KV) *TokenStore {
	return &TokenStore{kv: kv}
}

func (s *TokenStore) Load(ctx context.Context) (*oauth2.Token, bool, error) {
	body, found, err := s.kv.Get(ctx, tokenKey)
	if err != nil || !found {
		return nil, false, err
	}

	tok := &oauth2.Token{}
	if err := json.Unmarshal(body, tok); err != nil {
		return nil, false, &storage.Error{Op: "load", Key: tokenKey, Err: storage.ErrCorrupt}
	}

	return tok, true, nil
}

func (s *TokenStore) Save(ctx context.Context, tok *oauth2.Token) error {
	body, err := json.Marshal(tok)
	if err != nil {
		return err
	}

	return s.kv.Put(ctx, tokenKey, body)
}

func (s *TokenStore) Delete(ctx context.Context) error {
	return s.kv.Delete(ctx, tokenKey)
}

// TokenSource hands out the stored token and refreshes it when it has
// expired. The store is consulted again whenever the cached token is no
// longer valid, so a token saved by another process is picked up.
type TokenSource struct {
	mu      sync.Mutex
	ctx     context.Context
	config  *oauth2.Config
	store   *TokenStore
	current *oauth2.Token
}

func (ts *TokenSource) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.current.Valid() {
		return ts.current, nil
	}

	tok, found, err := ts.store.Load(ts.ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotAuthorized
	}
	if tok.Valid() {
		ts.current = tok
		return tok, nil
	}

	refreshed, err := ts.config.TokenSource(ts.ctx, tok).Token()
	if err != nil {
		return nil, fmt.Errorf("could not refresh token: %w", err)
	}
	if err := ts.store.Save(ts.ctx, refreshed); err != nil {
		return nil, fmt.Errorf("could not save refreshed token: %w", err)
	}
	ts.current = refreshed

	return refreshed, nil
}
