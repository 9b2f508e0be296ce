package handler

import (
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/exp/slog"
)

type Server struct {
	apis   map[string]http.Handler
	status Refresher
	logger *slog.Logger
}

func NewServer(feedAPI *FeedAPI, logger *slog.Logger) *Server {
	return &Server{
		apis: map[string]http.Handler{
			"feed":    feedAPI,
			"metrics": promhttp.Handler(),
		},
		status: feedAPI.refresher,
		logger: logger,
	}
}

type respIndex struct {
	Name       string   `json:"name"`
	APIs       []string `json:"apis"`
	Refreshing bool     `json:"refreshing"`
	Progress   int      `json:"progress"`
}

// statusWriter remembers the status code for the request log.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestPath := r.URL.Path
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	sw.Header().Set("Content-Type", "application/json")

	head, tail := ShiftPath(r.URL.Path)
	switch api, ok := s.apis[head]; {
	case head == "":
		s.index(sw)
	case !ok:
		Error(sw, http.StatusNotFound, "Not found", fmt.Errorf("%s is not a valid path", r.URL.Path))
	default:
		r.URL.Path = tail
		api.ServeHTTP(sw, r)
	}

	s.logger.Info("request served",
		slog.String("path", requestPath),
		slog.Int("status", sw.status),
		slog.Duration("duration", time.Since(start)),
	)
}

// index tells what can be requested and whether the feed is being refreshed.
func (s *Server) index(w http.ResponseWriter) {
	apis := make([]string, 0, len(s.apis))
	for name := range s.apis {
		apis = append(apis, name)
	}
	sort.Strings(apis)

	writeJSON(w, http.StatusOK, respIndex{
		Name:       "ytfeed",
		APIs:       apis,
		Refreshing: s.status.IsRefreshing(),
		Progress:   s.status.Progress(),
	})
}

// ShiftPath splits off the first component of p, which will be cleaned of
// relative components before processing. head will never contain a slash and
// tail will always be a rooted path without trailing slash.
// See https://blog.merovius.de/posts/2017-06-18-how-not-to-use-an-http-router/
func ShiftPath(p string) (string, string) {
	p = path.Clean("/" + p)

	i := strings.Index(p[1:], "/") + 1
	if i <= 0 {
		return p[1:], "/"
	}
	return p[1:i], p[i:]
}
