package rss

import (
	"io"

	"eventfeeds/internal/feed"
)

// Format names a feed serialization as it appears in URLs.
type Format string

const (
	FormatRSS         Format = "rss"
	FormatExtendedRSS Format = "rss-ext"
	FormatAtom        Format = "atom"
)

// Formats lists every supported format.
var Formats = []Format{FormatRSS, FormatExtendedRSS, FormatAtom}

// ParseFormat reports whether s names a supported format.
func ParseFormat(s string) (Format, bool) {
	for _, f := range Formats {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

func (f Format) ContentType() string {
	if f == FormatAtom {
		return "application/atom+xml; charset=utf-8"
	}
	return "application/rss+xml; charset=utf-8"
}

// Write renders doc in format f.
func Write(w io.Writer, f Format, doc *feed.Feed) error {
	switch f {
	case FormatExtendedRSS:
		return WriteExtendedRSS(w, doc)
	case FormatAtom:
		return WriteAtom(w, doc)
	default:
		return WriteRSS(w, doc)
	}
}
