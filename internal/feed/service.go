// internal/feed/service.go
package feed

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"eventfeeds/internal/database"
	"eventfeeds/internal/richtext"
)

// ErrNotFound reports a tag, location or author filter that does not resolve.
// The whole feed request fails; the filter is never silently dropped.
var ErrNotFound = errors.New("not found")

// Store is the read side of the content database the feed needs.
type Store interface {
	GetSetting(ctx context.Context, key string) (string, error)
	GetPublishedPage(ctx context.Context, slug string, now time.Time) (*database.Page, error)
	GetKeywordBySlug(ctx context.Context, slug string) (*database.Keyword, error)
	GetLocationBySlug(ctx context.Context, slug string) (*database.Location, error)
	GetUserByUsername(ctx context.Context, username string) (*database.User, error)
	ListPublishedEvents(ctx context.Context, f database.EventFilter) ([]database.Event, error)
	ListLocations(ctx context.Context) ([]database.Location, error)
}

// Config carries the site-wide values the feed falls back on.
type Config struct {
	SiteTitle   string
	SiteTagline string
	SiteURL     string
	EventSlug   string
	RSSLimit    *int // nil means unbounded
}

type Service struct {
	store    Store
	logger   *zap.Logger
	config   Config
	richtext *richtext.Pipeline
	now      func() time.Time
}

func NewService(store Store, logger *zap.Logger, config Config, pipeline *richtext.Pipeline) *Service {
	if pipeline == nil {
		pipeline = &richtext.Pipeline{}
	}
	if config.EventSlug == "" {
		config.EventSlug = "events"
	}
	return &Service{
		store:    store,
		logger:   logger,
		config:   config,
		richtext: pipeline,
		now:      time.Now,
	}
}

// siteSetting returns the editable setting for key, or fallback when the
// settings table has no non-empty value for it.
func (s *Service) siteSetting(ctx context.Context, key, fallback string) (string, error) {
	value, err := s.store.GetSetting(ctx, key)
	if errors.Is(err, database.ErrNotFound) || (err == nil && value == "") {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("error reading setting %s: %w", key, err)
	}
	return value, nil
}

// Resolve derives title, description and visibility from the events page,
// falling back to the site title and tagline when the page does not exist.
func (s *Service) Resolve(ctx context.Context) (Meta, error) {
	siteTitle, err := s.siteSetting(ctx, "site_title", s.config.SiteTitle)
	if err != nil {
		return Meta{}, err
	}

	meta := Meta{
		Title:  siteTitle,
		Link:   s.absolute(s.listPath()),
		Public: true,
	}

	page, err := s.store.GetPublishedPage(ctx, s.config.EventSlug, s.now())
	switch {
	case errors.Is(err, database.ErrNotFound):
		meta.Description, err = s.siteSetting(ctx, "site_tagline", s.config.SiteTagline)
		if err != nil {
			return Meta{}, err
		}
	case err != nil:
		return Meta{}, fmt.Errorf("error loading events page: %w", err)
	case page.LoginRequired:
		meta.Public = false
		s.logger.Debug("events page requires login, suppressing feed content",
			zap.String("slug", s.config.EventSlug))
	default:
		meta.Title = fmt.Sprintf("%s | %s", page.Title, siteTitle)
		meta.Description = richtext.StripTags(page.Description)
	}
	return meta, nil
}

// Items selects the published events matching every filter in p, capped at
// the configured limit. A private feed yields no items and performs no lookups.
func (s *Service) Items(ctx context.Context, meta Meta, p Params) ([]database.Event, error) {
	if !meta.Public {
		return []database.Event{}, nil
	}

	filter := database.EventFilter{Limit: s.config.RSSLimit, Now: s.now()}

	if p.Tag != "" {
		tag, err := s.store.GetKeywordBySlug(ctx, p.Tag)
		if err != nil {
			return nil, lookupError("tag", p.Tag, err)
		}
		filter.KeywordID = tag.ID
	}
	if p.Location != "" {
		location, err := s.store.GetLocationBySlug(ctx, p.Location)
		if err != nil {
			return nil, lookupError("location", p.Location, err)
		}
		filter.LocationID = location.ID
	}
	if p.Username != "" {
		author, err := s.store.GetUserByUsername(ctx, p.Username)
		if err != nil {
			return nil, lookupError("author", p.Username, err)
		}
		filter.UserID = author.ID
	}

	events, err := s.store.ListPublishedEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing events: %w", err)
	}
	return events, nil
}

func lookupError(kind, value string, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%w: %s %q", ErrNotFound, kind, value)
	}
	return fmt.Errorf("error resolving %s %q: %w", kind, value, err)
}

// Locations lists every event location, or none for a private feed.
func (s *Service) Locations(ctx context.Context, meta Meta) ([]LocationView, error) {
	if !meta.Public {
		return []LocationView{}, nil
	}
	locations, err := s.store.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing locations: %w", err)
	}
	views := make([]LocationView, 0, len(locations))
	for _, l := range locations {
		views = append(views, newLocationView(l))
	}
	return views, nil
}

// Build resolves the feed metadata, selects the items and maps them into a
// format-independent Feed.
func (s *Service) Build(ctx context.Context, p Params) (*Feed, error) {
	meta, err := s.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	events, err := s.Items(ctx, meta, p)
	if err != nil {
		return nil, err
	}

	f := &Feed{
		Meta:  meta,
		ID:    meta.Link,
		Items: make([]Item, 0, len(events)),
	}
	for _, ev := range events {
		item := s.item(ev)
		if item.PubDate.After(f.Updated) {
			f.Updated = item.PubDate
		}
		f.Items = append(f.Items, item)
	}
	if f.Updated.IsZero() {
		f.Updated = s.now().UTC()
	}
	return f, nil
}

func (s *Service) item(ev database.Event) Item {
	link := s.absolute(s.listPath() + url.PathEscape(ev.Slug) + "/")
	item := Item{
		Title:       ev.Title,
		Link:        link,
		GUID:        link,
		Description: s.richtext.Apply(ev.Content),
		AuthorName:  ev.User.FullName(),
		AuthorLink:  s.absolute(s.listPath() + "author/" + url.PathEscape(ev.User.Username) + "/"),
		PubDate:     ev.PublishDate,
		StartDate:   ev.Start,
	}
	if item.AuthorName == "" {
		item.AuthorName = ev.User.Username
	}
	if ev.Location != nil {
		item.Location = ev.Location.Title
	}
	return item
}

func (s *Service) listPath() string {
	return "/" + s.config.EventSlug + "/"
}

func (s *Service) absolute(path string) string {
	return s.config.SiteURL + path
}
