package auth

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/exp/slog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"
)

// Authorizer gets a user's consent through the OAuth device flow, so it
// works on machines without a browser.
type Authorizer struct {
	config *oauth2.Config
	store  *TokenStore
	logger *slog.Logger
}

func NewAuthorizer(clientID, clientSecret string, store *TokenStore, logger *slog.Logger) *Authorizer {
	return &Authorizer{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{youtube.YoutubeReadonlyScope},
		},
		store:  store,
		logger: logger,
	}
}

// Authorize starts the device flow, shows the user code through prompt and
// waits until the user has given consent or the code expires.
func (a *Authorizer) Authorize(ctx context.Context, prompt func(userCode, verificationURL string)) error {
	da, err := a.config.DeviceAuth(ctx)
	if err != nil {
		return fmt.Errorf("could not start device authorization: %w", err)
	}
	prompt(da.UserCode, da.VerificationURI)

	tok, err := a.config.DeviceAccessToken(ctx, da)
	if err != nil {
		return fmt.Errorf("could not get access token: %w", err)
	}
	if err := a.store.Save(ctx, tok); err != nil {
		return fmt.Errorf("could not save token: %w", err)
	}
	a.logger.Info("authorized", slog.String("expiry", tok.Expiry.String()))

	return nil
}

func (a *Authorizer) Authorized(ctx context.Context) (bool, error) {
	_, found, err := a.store.Load(ctx)
	return found, err
}

func (a *Authorizer) Reset(ctx context.Context) error {
	return a.store.Delete(ctx)
}

func (a *Authorizer) TokenSource(ctx context.Context) *TokenSource {
	return &TokenSource{
		ctx:    ctx,
		config: a.config,
		store:  a.store,
	}
}

// Client returns an http client that authenticates every request with the
// stored token. Requests fail with ErrNotAuthorized as long as there is none.
func (a *Authorizer) Client(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, a.TokenSource(ctx))
}
