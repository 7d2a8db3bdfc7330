package rss

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/feeds"

	"eventfeeds/internal/feed"
)

const (
	// ContentNS is declared on the extended feed root. The start_date element
	// itself is emitted unprefixed, so the declaration is unused.
	ContentNS = "http://purl.org/rss/1.0/modules/content/"
	DCNS      = "http://purl.org/dc/elements/1.1/"
	AtomNS    = "http://www.w3.org/2005/Atom"
)

// RSS is the root element of an extended RSS feed.
type RSS struct {
	XMLName   xml.Name `xml:"rss"`
	Version   string   `xml:"version,attr"`
	ContentNS string   `xml:"xmlns:content,attr"`
	DCNS      string   `xml:"xmlns:dc,attr"`
	AtomNS    string   `xml:"xmlns:atom,attr"`
	Channel   Channel  `xml:"channel"`
}

// Channel represents the channel element in an RSS feed.
type Channel struct {
	XMLName       xml.Name  `xml:"channel"`
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	SelfLink      *AtomLink `xml:"atom:link,omitempty"`
	Language      string    `xml:"language,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"` // RFC1123Z
	Items         []Item    `xml:"item"`
}

// AtomLink is an atom:link in RSS channels and a link in Atom documents.
type AtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
	Type string `xml:"type,attr,omitempty"`
}

// GUID is the guid element of an RSS item.
type GUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

// Item represents an item element in an extended RSS feed.
type Item struct {
	XMLName     xml.Name `xml:"item"`
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description,omitempty"`
	Creator     string   `xml:"dc:creator,omitempty"`
	PubDate     string   `xml:"pubDate,omitempty"` // RFC1123Z
	GUID        *GUID    `xml:"guid,omitempty"`
	StartDate   string   `xml:"start_date,omitempty"` // RFC1123Z
	Location    string   `xml:"location,omitempty"`
}

// rfc2822 formats t the way RSS dates are written; zero times format as "".
func rfc2822(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC1123Z)
}

// WriteRSS writes a plain RSS 2.0 document for f.
func WriteRSS(w io.Writer, f *feed.Feed) error {
	doc := &feeds.Feed{
		Title:       f.Title,
		Link:        &feeds.Link{Href: f.Link},
		Description: f.Description,
		Id:          f.ID,
		Updated:     f.Updated,
	}
	for _, it := range f.Items {
		// gorilla/feeds has no dc:creator, so the display name lands in <author>.
		doc.Items = append(doc.Items, &feeds.Item{
			Title:       it.Title,
			Link:        &feeds.Link{Href: it.Link},
			Author:      &feeds.Author{Name: it.AuthorName},
			Description: it.Description,
			Id:          it.GUID,
			Created:     it.PubDate,
		})
	}
	if err := doc.WriteRss(w); err != nil {
		return fmt.Errorf("error writing rss: %w", err)
	}
	return nil
}

// WriteExtendedRSS writes RSS 2.0 with a start_date and location element per item.
func WriteExtendedRSS(w io.Writer, f *feed.Feed) error {
	doc := RSS{
		Version:   "2.0",
		ContentNS: ContentNS,
		DCNS:      DCNS,
		AtomNS:    AtomNS,
		Channel: Channel{
			Title:         f.Title,
			Link:          f.Link,
			Description:   f.Description,
			Language:      "en-us",
			LastBuildDate: rfc2822(f.Updated),
		},
	}
	if f.FeedURL != "" {
		doc.Channel.SelfLink = &AtomLink{Href: f.FeedURL, Rel: "self", Type: "application/rss+xml"}
	}

	for _, it := range f.Items {
		item := Item{
			Title:       it.Title,
			Link:        it.Link,
			Description: it.Description,
			Creator:     it.AuthorName,
			PubDate:     rfc2822(it.PubDate),
			StartDate:   rfc2822(it.StartDate),
			Location:    it.Location,
		}
		if it.GUID != "" {
			item.GUID = &GUID{Value: it.GUID, IsPermaLink: it.GUID == it.Link}
		}
		doc.Channel.Items = append(doc.Channel.Items, item)
	}

	return encode(w, doc)
}

func encode(w io.Writer, doc any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("error marshalling feed to XML: %w", err)
	}
	return enc.Flush()
}
