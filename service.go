package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"ewintr.nl/ytfeed/auth"
	"ewintr.nl/ytfeed/fetch"
	"ewintr.nl/ytfeed/handler"
	"ewintr.nl/ytfeed/refresh"
	"ewintr.nl/ytfeed/storage"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/slog"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

func main() {
	app := &cli.App{
		Name:  "ytfeed",
		Usage: "Keeps a feed of recent uploads of your YouTube subscriptions",
		Description: `ytfeed collects the videos your subscribed channels published in the
last week, newest first, and serves them as a paged JSON feed. The feed is
refreshed in the background, at most once per minimum interval.

Flags can be set with environment variables, e.g.:

--store => YTFEED_STORE=postgres
--port => API_PORT=8080`,
		Commands: []*cli.Command{
			serveCmd(),
			refreshCmd(),
			authorizeCmd(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the feed over http and keep it fresh",
		Flags: flags(storeFlags, authFlags, fetchFlags, serveFlags, logFlags),
		Action: func(cCtx *cli.Context) error {
			ctx := cCtx.Context
			s, err := newService(cCtx)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.checkAuthorization(ctx); err != nil {
				// the stored feed is still served
				s.logger.Warn("feed will not refresh", slog.String("error", err.Error()))
			}

			feedAPI := handler.NewFeedAPI(s.coordinator, s.feeds, s.metadata, handler.FeedAPIConfig{
				UpdateWait: cCtx.Duration("update-wait"),
				PerPage:    cCtx.Int("items-per-page"),
			}, s.logger)
			srv := &http.Server{
				Addr:    fmt.Sprintf(":%d", cCtx.Int("port")),
				Handler: handler.NewServer(feedAPI, s.logger),
			}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.logger.Error("http server stopped", slog.String("error", err.Error()))
				}
			}()
			s.logger.Info("http server started", slog.Int("port", cCtx.Int("port")))

			done := make(chan os.Signal, 1)
			signal.Notify(done, os.Interrupt)

			ticker := time.NewTicker(s.coordinator.MinInterval())
			defer ticker.Stop()
			s.ensureFreshness(ctx)
		LOOP:
			for {
				select {
				case <-ticker.C:
					s.ensureFreshness(ctx)
				case <-done:
					break LOOP
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			s.logger.Info("service stopped")

			return nil
		},
	}
}

func refreshCmd() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Refresh the feed once, if it is due, and wait for it",
		Flags: flags(storeFlags, authFlags, fetchFlags, logFlags),
		Action: func(cCtx *cli.Context) error {
			s, err := newService(cCtx)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.checkAuthorization(cCtx.Context); err != nil {
				return err
			}

			started, err := s.coordinator.EnsureFreshness(cCtx.Context)
			if err != nil {
				return err
			}
			if !started {
				s.logger.Info("feed is fresh, nothing to do")
				return nil
			}
			for !s.coordinator.Wait(5 * time.Second) {
				s.logger.Info("refreshing", slog.Int("progress", s.coordinator.Progress()))
			}

			ids, _, err := s.feeds.Load(cCtx.Context)
			if err != nil {
				return err
			}
			s.logger.Info("feed refreshed", slog.Int("count", len(ids)))

			return nil
		},
	}
}

func authorizeCmd() *cli.Command {
	return &cli.Command{
		Name:  "authorize",
		Usage: "Give ytfeed read access to your YouTube account",
		Flags: flags(storeFlags, authFlags, logFlags, []cli.Flag{
			&cli.BoolFlag{Name: "reset", Usage: "forget the stored authorization"},
		}),
		Action: func(cCtx *cli.Context) error {
			logger, err := newLogger(cCtx)
			if err != nil {
				return err
			}
			kv, c, err := newKV(cCtx)
			if err != nil {
				return err
			}
			if c != nil {
				defer c.Close()
			}
			authorizer := auth.NewAuthorizer(cCtx.String("client-id"), cCtx.String("client-secret"), auth.NewTokenStore(kv), logger)

			if cCtx.Bool("reset") {
				return authorizer.Reset(cCtx.Context)
			}

			return authorizer.Authorize(cCtx.Context, func(userCode, verificationURL string) {
				fmt.Printf("Go to %s and enter the code %s\n", verificationURL, userCode)
			})
		},
	}
}

type service struct {
	logger      *slog.Logger
	authorizer  *auth.Authorizer
	feeds       *storage.FeedStore
	coordinator *refresh.Coordinator
	metadata    fetch.MetadataFetcher
	db          closer
}

func newService(cCtx *cli.Context) (*service, error) {
	ctx := cCtx.Context
	logger, err := newLogger(cCtx)
	if err != nil {
		return nil, err
	}

	kv, c, err := newKV(cCtx)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*service, error) {
		if c != nil {
			c.Close()
		}
		return nil, err
	}
	feeds := storage.NewFeedStore(kv)

	authorizer := auth.NewAuthorizer(cCtx.String("client-id"), cCtx.String("client-secret"), auth.NewTokenStore(kv), logger)
	ytClient, err := youtube.NewService(ctx, option.WithHTTPClient(authorizer.Client(context.Background())))
	if err != nil {
		return fail(fmt.Errorf("unable to create youtube service: %w", err))
	}
	limiter := rate.NewLimiter(rate.Limit(cCtx.Float64("rate")), 1)
	yt := fetch.NewYoutube(ytClient, limiter)

	var metadata fetch.MetadataFetcher = yt
	if key := cCtx.String("api-key"); key != "" {
		keyClient, err := youtube.NewService(ctx, option.WithAPIKey(key))
		if err != nil {
			return fail(fmt.Errorf("unable to create youtube service: %w", err))
		}
		metadata = fetch.NewYoutube(keyClient, limiter)
	}

	var subscriptions fetch.SubscriptionLister
	switch cCtx.String("subscription-source") {
	case "youtube":
		subscriptions = yt
	case "miniflux":
		subscriptions = fetch.NewMiniflux(fetch.MinifluxInfo{
			Endpoint: cCtx.String("miniflux-endpoint"),
			ApiKey:   cCtx.String("miniflux-apikey"),
		})
	default:
		return fail(fmt.Errorf("unknown subscription source %q", cCtx.String("subscription-source")))
	}

	fetcher := fetch.NewFetcher(subscriptions, yt, cCtx.Duration("lookback"), logger)
	coordinator := refresh.NewCoordinator(fetcher, feeds, storage.NewRefreshStateStore(kv), cCtx.Duration("min-interval"), logger)

	return &service{
		logger:      logger,
		authorizer:  authorizer,
		feeds:       feeds,
		coordinator: coordinator,
		metadata:    metadata,
		db:          c,
	}, nil
}

// checkAuthorization fails when no token was stored, so that no refresh
// is attempted that can only end in an authorization error.
func (s *service) checkAuthorization(ctx context.Context) error {
	ok, err := s.authorizer.Authorized(ctx)
	if err != nil {
		return fmt.Errorf("could not check authorization: %w", err)
	}
	if !ok {
		return auth.ErrNotAuthorized
	}

	return nil
}

func (s *service) ensureFreshness(ctx context.Context) {
	started, err := s.coordinator.EnsureFreshness(ctx)
	if err != nil {
		s.logger.Error("could not check feed freshness", slog.String("error", err.Error()))
		return
	}
	if started {
		s.logger.Info("feed refresh started")
	}
}

func (s *service) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
