// internal/feed/types.go
package feed

import (
	"time"

	"eventfeeds/internal/database"
)

// Params are the optional filters of a feed request.
type Params struct {
	Tag      string `json:"tag,omitempty"`
	Location string `json:"location,omitempty"`
	Username string `json:"author,omitempty"`
}

// Meta is the channel-level data resolved once per request.
type Meta struct {
	Title       string
	Description string
	Link        string
	// Public is false when the events page requires login; the feed is then
	// served without items or locations.
	Public bool
}

// Feed is a format-independent feed document.
type Feed struct {
	Meta
	ID string
	// FeedURL is the address the document is served from, used for self links.
	FeedURL string
	Updated time.Time
	Items   []Item
}

// Item is one event projected for syndication.
type Item struct {
	Title       string
	Link        string
	GUID        string
	Description string
	AuthorName  string
	AuthorLink  string
	PubDate     time.Time
	StartDate   time.Time // zero when the event has no start
	Location    string
}

// LocationView is the JSON shape of an event location.
type LocationView struct {
	Title   string `json:"title"`
	Slug    string `json:"slug"`
	Address string `json:"address,omitempty"`
}

func newLocationView(l database.Location) LocationView {
	return LocationView{Title: l.Title, Slug: l.Slug, Address: l.Address}
}
