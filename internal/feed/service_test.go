package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"eventfeeds/internal/database"
	"eventfeeds/internal/richtext"

	_ "github.com/mattn/go-sqlite3"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(hoursFromNow int) *time.Time {
	t := testNow.Add(time.Duration(hoursFromNow) * time.Hour)
	return &t
}

func intPtr(n int) *int { return &n }

func baseFixtures() database.Fixtures {
	return database.Fixtures{
		Users: []database.FixtureUser{
			{Username: "alice", FirstName: "Alice", LastName: "Liddell"},
			{Username: "bob"},
		},
		Locations: []database.FixtureLocation{
			{Title: "Main Hall", Slug: "main-hall"},
			{Title: "Annex", Slug: "annex"},
		},
		Keywords: []database.FixtureKeyword{
			{Title: "Music", Slug: "music"},
			{Title: "Talks", Slug: "talks"},
		},
		Events: []database.FixtureEvent{
			{Title: "Concert", Slug: "concert", Content: `<p>See <a href="/events/">all</a></p>`,
				Author: "alice", Location: "main-hall", Keywords: []string{"music"},
				Start: at(48), PublishDate: at(-1)},
			{Title: "Lecture", Slug: "lecture", Content: "<p>Talk</p>",
				Author: "bob", Location: "annex", Keywords: []string{"talks"},
				Start: at(72), PublishDate: at(-2)},
			{Title: "Workshop", Slug: "workshop", Content: "<p>Hands on</p>",
				Author: "bob", Keywords: []string{"talks"}, PublishDate: at(-3)},
		},
	}
}

type testEnv struct {
	db  *database.DB
	svc *Service
}

func newTestEnv(t *testing.T, fx database.Fixtures, cfg Config) *testEnv {
	t.Helper()
	db, err := database.NewDB(":memory:", database.DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to initialize in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.InsertFixtures(context.Background(), fx); err != nil {
		t.Fatalf("Failed to insert fixtures: %v", err)
	}

	if cfg.SiteTitle == "" {
		cfg.SiteTitle = "Example Site"
	}
	if cfg.SiteTagline == "" {
		cfg.SiteTagline = "Things happen here"
	}
	if cfg.SiteURL == "" {
		cfg.SiteURL = "https://example.org"
	}
	pipeline, err := richtext.New([]string{"strip_scripts", "absolute_urls"}, cfg.SiteURL)
	if err != nil {
		t.Fatalf("Failed to build richtext pipeline: %v", err)
	}
	svc := NewService(db, zap.NewNop(), cfg, pipeline)
	svc.now = func() time.Time { return testNow }
	return &testEnv{db: db, svc: svc}
}

func TestResolveWithoutEventsPage(t *testing.T) {
	env := newTestEnv(t, baseFixtures(), Config{})

	meta, err := env.svc.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !meta.Public {
		t.Error("feed should be public without an events page")
	}
	if meta.Title != "Example Site" {
		t.Errorf("Title = %q, want site title", meta.Title)
	}
	if meta.Description != "Things happen here" {
		t.Errorf("Description = %q, want site tagline", meta.Description)
	}
	if meta.Link != "https://example.org/events/" {
		t.Errorf("Link = %q", meta.Link)
	}
}

func TestResolvePublicEventsPage(t *testing.T) {
	fx := baseFixtures()
	fx.Pages = []database.FixturePage{
		{Title: "Agenda", Slug: "events", Description: "<p>Upcoming <em>concerts</em> &amp; talks</p>"},
	}
	env := newTestEnv(t, fx, Config{})

	meta, err := env.svc.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if meta.Title != "Agenda | Example Site" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.Description != "Upcoming concerts & talks" {
		t.Errorf("Description = %q", meta.Description)
	}
}

func TestResolveIgnoresUnpublishedPage(t *testing.T) {
	fx := baseFixtures()
	fx.Pages = []database.FixturePage{
		{Title: "Agenda", Slug: "events", Status: database.StatusDraft, LoginRequired: true},
	}
	env := newTestEnv(t, fx, Config{})

	meta, err := env.svc.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !meta.Public || meta.Title != "Example Site" {
		t.Errorf("draft page should be treated as absent: %+v", meta)
	}
}

func TestResolveEditableSettingsOverride(t *testing.T) {
	fx := baseFixtures()
	fx.Settings = map[string]string{"site_title": "Edited Title", "site_tagline": "Edited tagline"}
	env := newTestEnv(t, fx, Config{})

	meta, err := env.svc.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if meta.Title != "Edited Title" || meta.Description != "Edited tagline" {
		t.Errorf("settings table not preferred: %+v", meta)
	}
}

func TestLoginRequiredSuppressesContent(t *testing.T) {
	fx := baseFixtures()
	fx.Pages = []database.FixturePage{
		{Title: "Members", Slug: "events", LoginRequired: true},
	}
	env := newTestEnv(t, fx, Config{})
	ctx := context.Background()

	meta, err := env.svc.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if meta.Public {
		t.Fatal("feed should not be public")
	}

	for _, p := range []Params{{}, {Tag: "music"}, {Tag: "does-not-exist"}, {Username: "nobody"}} {
		items, err := env.svc.Items(ctx, meta, p)
		if err != nil {
			t.Errorf("Items(%+v) error = %v", p, err)
		}
		if len(items) != 0 {
			t.Errorf("Items(%+v) returned %d items, want 0", p, len(items))
		}
	}

	locations, err := env.svc.Locations(ctx, meta)
	if err != nil {
		t.Fatalf("Locations failed: %v", err)
	}
	if len(locations) != 0 {
		t.Errorf("Locations returned %d, want 0", len(locations))
	}

	f, err := env.svc.Build(ctx, Params{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(f.Items) != 0 || f.Description != "" {
		t.Errorf("suppressed feed carries content: %+v", f)
	}
}

func TestItemsFilters(t *testing.T) {
	env := newTestEnv(t, baseFixtures(), Config{})
	ctx := context.Background()
	meta := Meta{Public: true}

	tests := []struct {
		name   string
		params Params
		want   []string
	}{
		{"no filters", Params{}, []string{"Concert", "Lecture", "Workshop"}},
		{"tag", Params{Tag: "talks"}, []string{"Lecture", "Workshop"}},
		{"location", Params{Location: "main-hall"}, []string{"Concert"}},
		{"author", Params{Username: "bob"}, []string{"Lecture", "Workshop"}},
		{"tag and author", Params{Tag: "talks", Username: "bob"}, []string{"Lecture", "Workshop"}},
		{"all three", Params{Tag: "talks", Location: "annex", Username: "bob"}, []string{"Lecture"}},
		{"disjoint", Params{Tag: "music", Username: "bob"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := env.svc.Items(ctx, meta, tt.params)
			if err != nil {
				t.Fatalf("Items failed: %v", err)
			}
			if len(events) != len(tt.want) {
				t.Fatalf("got %d items, want %d", len(events), len(tt.want))
			}
			for i, title := range tt.want {
				if events[i].Title != title {
					t.Errorf("items[%d] = %q, want %q", i, events[i].Title, title)
				}
			}
		})
	}
}

func TestItemsUnknownFilterFails(t *testing.T) {
	env := newTestEnv(t, baseFixtures(), Config{})
	ctx := context.Background()
	meta := Meta{Public: true}

	for _, p := range []Params{
		{Tag: "does-not-exist"},
		{Location: "nowhere"},
		{Username: "mallory"},
		{Tag: "music", Location: "nowhere"},
	} {
		items, err := env.svc.Items(ctx, meta, p)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Items(%+v) error = %v, want ErrNotFound", p, err)
		}
		if items != nil {
			t.Errorf("Items(%+v) returned partial results", p)
		}
	}
}

func TestItemsLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit *int
		want  []string
	}{
		{"unbounded", nil, []string{"Concert", "Lecture", "Workshop"}},
		{"two", intPtr(2), []string{"Concert", "Lecture"}},
		{"one", intPtr(1), []string{"Concert"}},
		{"larger than total", intPtr(10), []string{"Concert", "Lecture", "Workshop"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, baseFixtures(), Config{RSSLimit: tt.limit})
			events, err := env.svc.Items(context.Background(), Meta{Public: true}, Params{})
			if err != nil {
				t.Fatalf("Items failed: %v", err)
			}
			if len(events) != len(tt.want) {
				t.Fatalf("got %d items, want %d", len(events), len(tt.want))
			}
			for i, title := range tt.want {
				if events[i].Title != title {
					t.Errorf("items[%d] = %q, want %q", i, events[i].Title, title)
				}
			}
		})
	}
}

func TestLocations(t *testing.T) {
	env := newTestEnv(t, baseFixtures(), Config{})

	locations, err := env.svc.Locations(context.Background(), Meta{Public: true})
	if err != nil {
		t.Fatalf("Locations failed: %v", err)
	}
	if len(locations) != 2 || locations[0].Slug != "annex" {
		t.Errorf("unexpected locations: %+v", locations)
	}
}

func TestBuildTaggedScenario(t *testing.T) {
	env := newTestEnv(t, baseFixtures(), Config{})

	f, err := env.svc.Build(context.Background(), Params{Tag: "music"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(f.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(f.Items))
	}

	item := f.Items[0]
	checks := []struct {
		field, got, want string
	}{
		{"Title", item.Title, "Concert"},
		{"Link", item.Link, "https://example.org/events/concert/"},
		{"GUID", item.GUID, "https://example.org/events/concert/"},
		{"Description", item.Description, `<p>See <a href="https://example.org/events/">all</a></p>`},
		{"AuthorName", item.AuthorName, "Alice Liddell"},
		{"AuthorLink", item.AuthorLink, "https://example.org/events/author/alice/"},
		{"Location", item.Location, "Main Hall"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
	if !item.PubDate.Equal(*at(-1)) {
		t.Errorf("PubDate = %v, want %v", item.PubDate, *at(-1))
	}
	if !item.StartDate.Equal(*at(48)) {
		t.Errorf("StartDate = %v, want %v", item.StartDate, *at(48))
	}
	if !f.Updated.Equal(item.PubDate) {
		t.Errorf("Updated = %v, want latest item date", f.Updated)
	}
}

func TestBuildAuthorFallsBackToUsername(t *testing.T) {
	env := newTestEnv(t, baseFixtures(), Config{})

	f, err := env.svc.Build(context.Background(), Params{Username: "bob"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for _, item := range f.Items {
		if item.AuthorName != "bob" {
			t.Errorf("AuthorName = %q, want username", item.AuthorName)
		}
	}
	if f.Items[1].Location != "" {
		t.Errorf("event without location got %q", f.Items[1].Location)
	}
}

func TestBuildEmptyFeedUsesNowForUpdated(t *testing.T) {
	fx := baseFixtures()
	fx.Events = nil
	env := newTestEnv(t, fx, Config{})

	f, err := env.svc.Build(context.Background(), Params{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !f.Updated.Equal(testNow) {
		t.Errorf("Updated = %v, want %v", f.Updated, testNow)
	}
}

func TestNewServiceWithoutPipeline(t *testing.T) {
	env := newTestEnv(t, baseFixtures(), Config{})
	svc := NewService(env.db, zap.NewNop(), Config{SiteTitle: "Example Site"}, nil)
	svc.now = func() time.Time { return testNow }

	f, err := svc.Build(context.Background(), Params{Tag: "music"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(f.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(f.Items))
	}
	if want := `<p>See <a href="/events/">all</a></p>`; f.Items[0].Description != want {
		t.Errorf("Description = %q, want content unchanged %q", f.Items[0].Description, want)
	}
}
