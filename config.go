package main

import (
	"fmt"
	"os"

	"ewintr.nl/ytfeed/fetch"
	"ewintr.nl/ytfeed/handler"
	"ewintr.nl/ytfeed/refresh"
	"ewintr.nl/ytfeed/storage"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/slog"
)

var (
	storeFlags = []cli.Flag{
		&cli.StringFlag{Name: "store", Value: "sqlite", Usage: "where to keep the feed: memory, sqlite or postgres", EnvVars: []string{"YTFEED_STORE"}},
		&cli.StringFlag{Name: "sqlite-path", Value: "ytfeed.db", EnvVars: []string{"SQLITE_PATH"}},
		&cli.StringFlag{Name: "postgres-host", Value: "localhost", EnvVars: []string{"POSTGRES_HOST"}},
		&cli.StringFlag{Name: "postgres-port", Value: "5432", EnvVars: []string{"POSTGRES_PORT"}},
		&cli.StringFlag{Name: "postgres-user", Value: "ytfeed", EnvVars: []string{"POSTGRES_USER"}},
		&cli.StringFlag{Name: "postgres-password", Value: "ytfeed", EnvVars: []string{"POSTGRES_PASSWORD"}},
		&cli.StringFlag{Name: "postgres-db", Value: "ytfeed", EnvVars: []string{"POSTGRES_DB"}},
	}
	authFlags = []cli.Flag{
		&cli.StringFlag{Name: "client-id", EnvVars: []string{"YOUTUBE_CLIENT_ID"}, Required: true},
		&cli.StringFlag{Name: "client-secret", EnvVars: []string{"YOUTUBE_CLIENT_SECRET"}, Required: true},
	}
	fetchFlags = []cli.Flag{
		&cli.StringFlag{Name: "api-key", Usage: "optional key for video metadata requests", EnvVars: []string{"YOUTUBE_API_KEY"}},
		&cli.Float64Flag{Name: "rate", Value: 5, Usage: "maximum api requests per second", EnvVars: []string{"YOUTUBE_RATE"}},
		&cli.StringFlag{Name: "subscription-source", Value: "youtube", Usage: "youtube or miniflux", EnvVars: []string{"SUBSCRIPTION_SOURCE"}},
		&cli.StringFlag{Name: "miniflux-endpoint", Value: "http://localhost/v1", EnvVars: []string{"MINIFLUX_ENDPOINT"}},
		&cli.StringFlag{Name: "miniflux-apikey", EnvVars: []string{"MINIFLUX_APIKEY"}},
		&cli.DurationFlag{Name: "min-interval", Value: refresh.DefaultMinInterval, EnvVars: []string{"REFRESH_MIN_INTERVAL"}},
		&cli.DurationFlag{Name: "lookback", Value: fetch.DefaultLookback, EnvVars: []string{"FEED_LOOKBACK"}},
	}
	serveFlags = []cli.Flag{
		&cli.IntFlag{Name: "port", Value: 8080, EnvVars: []string{"API_PORT"}},
		&cli.DurationFlag{Name: "update-wait", Value: handler.DefaultUpdateWait, EnvVars: []string{"UPDATE_WAIT"}},
		&cli.IntFlag{Name: "items-per-page", Value: 20, EnvVars: []string{"ITEMS_PER_PAGE"}},
	}
	logFlags = []cli.Flag{
		&cli.StringFlag{Name: "log-level", Value: "info", EnvVars: []string{"LOG_LEVEL"}},
	}
)

func flags(groups ...[]cli.Flag) []cli.Flag {
	all := []cli.Flag{}
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}

func newLogger(cCtx *cli.Context) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cCtx.String("log-level"))); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

type closer interface {
	Close() error
}

// newKV opens the configured store. The returned closer may be nil.
func newKV(cCtx *cli.Context) (storage.KV, closer, error) {
	switch cCtx.String("store") {
	case "memory":
		return storage.NewMemoryKV(), nil, nil
	case "sqlite":
		kv, err := storage.NewSQLite(cCtx.String("sqlite-path"))
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open sqlite: %w", err)
		}
		return kv, kv, nil
	case "postgres":
		kv, err := storage.NewPostgres(storage.PostgresInfo{
			Host:     cCtx.String("postgres-host"),
			Port:     cCtx.String("postgres-port"),
			User:     cCtx.String("postgres-user"),
			Password: cCtx.String("postgres-password"),
			Database: cCtx.String("postgres-db"),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("unable to connect to postgres: %w", err)
		}
		return kv, kv, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cCtx.String("store"))
	}
}
