// internal/server/handlers.go
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"eventfeeds/internal/feed"
	"eventfeeds/internal/rss"
)

// feedParams collects the filters of a feed request. A path segment such as
// /tag/{tag}/ takes precedence over the matching query parameter.
func feedParams(r *http.Request) feed.Params {
	q := r.URL.Query()
	p := feed.Params{
		Tag:      q.Get("tag"),
		Location: q.Get("location"),
		Username: q.Get("author"),
	}
	if v := r.PathValue("tag"); v != "" {
		p.Tag = v
	}
	if v := r.PathValue("location"); v != "" {
		p.Location = v
	}
	if v := r.PathValue("username"); v != "" {
		p.Username = v
	}
	return p
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	format, ok := rss.ParseFormat(r.PathValue("format"))
	if !ok {
		s.metrics.requests.WithLabelValues("unknown", strconv.Itoa(http.StatusNotFound)).Inc()
		http.NotFound(w, r)
		return
	}

	start := time.Now()
	params := feedParams(r)
	f, err := s.feedService.Build(r.Context(), params)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, feed.ErrNotFound) {
			status = http.StatusNotFound
			s.logger.Debug("feed filter did not resolve",
				zap.String("request_id", requestID), zap.Error(err))
		} else {
			s.logger.Error("error building feed",
				zap.String("request_id", requestID),
				zap.String("format", string(format)),
				zap.Error(err))
		}
		s.metrics.requests.WithLabelValues(string(format), strconv.Itoa(status)).Inc()
		http.Error(w, http.StatusText(status), status)
		return
	}
	f.FeedURL = s.absoluteURL(r, r.URL.RequestURI())

	var buf bytes.Buffer
	if err := rss.Write(&buf, format, f); err != nil {
		s.logger.Error("error rendering feed",
			zap.String("request_id", requestID),
			zap.String("format", string(format)),
			zap.Error(err))
		s.metrics.requests.WithLabelValues(string(format), strconv.Itoa(http.StatusInternalServerError)).Inc()
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.metrics.render.WithLabelValues(string(format)).Observe(time.Since(start).Seconds())
	s.metrics.items.WithLabelValues(string(format)).Set(float64(len(f.Items)))
	s.metrics.requests.WithLabelValues(string(format), strconv.Itoa(http.StatusOK)).Inc()

	w.Header().Set("Content-Type", format.ContentType())
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Warn("error writing feed response",
			zap.String("request_id", requestID), zap.Error(err))
	}
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	meta, err := s.feedService.Resolve(r.Context())
	if err == nil {
		var locations []feed.LocationView
		locations, err = s.feedService.Locations(r.Context(), meta)
		if err == nil {
			s.RespondWithJSON(w, r, http.StatusOK, locations)
			return
		}
	}

	s.logger.Error("error listing locations",
		zap.String("request_id", getRequestID(r.Context())), zap.Error(err))
	if !headerWritten(w) {
		s.RespondWithError(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("health check failed: DB ping error", zap.Error(err))
		http.Error(w, "DB Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// absoluteURL joins path onto the configured site URL, or onto the scheme and
// host of the request when no site URL is configured.
func (s *Server) absoluteURL(r *http.Request, path string) string {
	siteURL := s.config.SiteURL
	if siteURL == "" {
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		siteURL = scheme + "://" + r.Host
	}
	return siteURL + path
}
