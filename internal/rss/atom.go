package rss

import (
	"encoding/xml"
	"io"
	"time"

	"eventfeeds/internal/feed"
)

// AtomFeed is the root element of an Atom 1.0 document.
type AtomFeed struct {
	XMLName  xml.Name    `xml:"feed"`
	Xmlns    string      `xml:"xmlns,attr"`
	Title    string      `xml:"title"`
	Links    []AtomLink  `xml:"link"`
	ID       string      `xml:"id"`
	Updated  string      `xml:"updated"`
	Subtitle string      `xml:"subtitle,omitempty"`
	Entries  []AtomEntry `xml:"entry"`
}

type AtomEntry struct {
	XMLName   xml.Name    `xml:"entry"`
	Title     string      `xml:"title"`
	Links     []AtomLink  `xml:"link"`
	Published string      `xml:"published,omitempty"`
	Updated   string      `xml:"updated"`
	Author    *AtomAuthor `xml:"author,omitempty"`
	ID        string      `xml:"id"`
	Summary   *AtomText   `xml:"summary,omitempty"`
	StartDate string      `xml:"start_date,omitempty"` // RFC 3339
	Location  string      `xml:"location,omitempty"`
}

type AtomAuthor struct {
	Name string `xml:"name"`
	URI  string `xml:"uri,omitempty"`
}

type AtomText struct {
	Type string `xml:"type,attr,omitempty"`
	Body string `xml:",chardata"`
}

func rfc3339(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// WriteAtom writes an Atom 1.0 document for f. The feed description becomes
// the subtitle.
func WriteAtom(w io.Writer, f *feed.Feed) error {
	doc := AtomFeed{
		Xmlns:    AtomNS,
		Title:    f.Title,
		Links:    []AtomLink{{Href: f.Link, Rel: "alternate"}},
		ID:       f.ID,
		Updated:  rfc3339(f.Updated),
		Subtitle: f.Description,
	}
	if f.FeedURL != "" {
		doc.Links = append(doc.Links, AtomLink{Href: f.FeedURL, Rel: "self"})
	}

	for _, it := range f.Items {
		entry := AtomEntry{
			Title:     it.Title,
			Links:     []AtomLink{{Href: it.Link, Rel: "alternate"}},
			Published: rfc3339(it.PubDate),
			Updated:   rfc3339(it.PubDate),
			ID:        it.GUID,
			StartDate: rfc3339(it.StartDate),
			Location:  it.Location,
		}
		if entry.Updated == "" {
			entry.Updated = doc.Updated
		}
		if it.AuthorName != "" {
			entry.Author = &AtomAuthor{Name: it.AuthorName, URI: it.AuthorLink}
		}
		if it.Description != "" {
			entry.Summary = &AtomText{Type: "html", Body: it.Description}
		}
		doc.Entries = append(doc.Entries, entry)
	}

	return encode(w, doc)
}
