package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleFixtures = `
settings:
  site_tagline: Everything happening downtown
users:
  - username: carol
    first_name: Carol
locations:
  - title: Park
    slug: park
keywords:
  - title: Outdoor
    slug: outdoor
pages:
  - title: Events
    slug: events
    description: "<b>All</b> events"
    login_required: true
events:
  - title: Picnic
    slug: picnic
    content: "<p>Bring food</p>"
    start: 2030-06-01T12:00:00Z
    publish_date: 2020-01-01T00:00:00Z
    author: carol
    location: park
    keywords: [outdoor]
`

func TestLoadFixtures(t *testing.T) {
	db, err := NewDB(":memory:", DefaultConfig())
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	if err := db.LoadFixtures(ctx, strings.NewReader(sampleFixtures)); err != nil {
		t.Fatalf("LoadFixtures failed: %v", err)
	}

	page, err := db.GetPublishedPage(ctx, "events", time.Now())
	if err != nil {
		t.Fatalf("GetPublishedPage failed: %v", err)
	}
	if !page.LoginRequired {
		t.Error("login_required not loaded")
	}

	events, err := db.ListPublishedEvents(ctx, EventFilter{})
	if err != nil {
		t.Fatalf("ListPublishedEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].Slug != "picnic" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if got := events[0].Start.UTC().Format("2006-01-02T15:04"); got != "2030-06-01T12:00" {
		t.Errorf("start = %s", got)
	}

	tagline, err := db.GetSetting(ctx, "site_tagline")
	if err != nil || tagline != "Everything happening downtown" {
		t.Errorf("site_tagline = %q, %v", tagline, err)
	}
}

func TestLoadFixturesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	if err := os.WriteFile(path, []byte(sampleFixtures), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	db, err := NewDB(":memory:", DefaultConfig())
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	defer db.Close()

	if err := db.LoadFixturesFile(context.Background(), path); err != nil {
		t.Fatalf("LoadFixturesFile failed: %v", err)
	}
	if err := db.LoadFixturesFile(context.Background(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFixturesUnknownReference(t *testing.T) {
	db, err := NewDB(":memory:", DefaultConfig())
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	defer db.Close()

	bad := `
users:
  - username: dave
events:
  - title: Orphan
    slug: orphan
    author: dave
    keywords: [missing]
`
	err = db.LoadFixtures(context.Background(), strings.NewReader(bad))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	// The transaction must have rolled back the user too.
	if _, err := db.GetUserByUsername(context.Background(), "dave"); err != ErrNotFound {
		t.Errorf("expected rollback, got %v", err)
	}
}
