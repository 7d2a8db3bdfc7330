// internal/database/queries.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error definitions
var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// User is an event author.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	Email     string
}

// FullName joins first and last name, trimmed. It may be empty.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Location is a venue events can take place at.
type Location struct {
	ID      int64
	Title   string
	Slug    string
	Address string
}

// Keyword is a tag that can be assigned to events.
type Keyword struct {
	ID    int64
	Title string
	Slug  string
}

// Page is a CMS page; the events listing page configures the feeds.
type Page struct {
	ID            int64
	Title         string
	Slug          string
	Description   string
	LoginRequired bool
}

// Event represents a published calendar entry with its author and location joined in.
type Event struct {
	ID          int64
	Title       string
	Slug        string
	Content     string
	Start       time.Time // zero when unset
	End         time.Time
	PublishDate time.Time
	User        User
	Location    *Location // nil when the event has no location
}

// EventFilter narrows ListPublishedEvents. Zero IDs are ignored; a nil Limit is unbounded.
type EventFilter struct {
	KeywordID  int64
	LocationID int64
	UserID     int64
	Limit      *int
	Now        time.Time
}

// GetSetting retrieves a setting value
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value sql.NullString
	err := db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?",
		key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value.String, err
}

// UpdateSetting inserts or replaces an editable setting.
func (db *DB) UpdateSetting(ctx context.Context, key, value, valueType string) error {
	if key == "" {
		return ErrInvalidInput
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO settings (key, value, type, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		type = excluded.type,
		updated_at = CURRENT_TIMESTAMP`,
		key, value, valueType,
	)
	return err
}

// GetPublishedPage returns the published page with the given slug.
func (db *DB) GetPublishedPage(ctx context.Context, slug string, now time.Time) (*Page, error) {
	var p Page
	err := db.QueryRowContext(ctx,
		`SELECT id, title, slug, description, login_required
		FROM pages
		WHERE slug = ?
		  AND status = ?
		  AND (publish_date IS NULL OR publish_date <= ?)
		  AND (expiry_date IS NULL OR expiry_date >= ?)
		ORDER BY id
		LIMIT 1`,
		slug, StatusPublished, now.UTC(), now.UTC(),
	).Scan(&p.ID, &p.Title, &p.Slug, &p.Description, &p.LoginRequired)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetKeywordBySlug looks a keyword up by slug.
func (db *DB) GetKeywordBySlug(ctx context.Context, slug string) (*Keyword, error) {
	var k Keyword
	err := db.QueryRowContext(ctx,
		"SELECT id, title, slug FROM keywords WHERE slug = ?",
		slug,
	).Scan(&k.ID, &k.Title, &k.Slug)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// GetLocationBySlug looks an event location up by slug.
func (db *DB) GetLocationBySlug(ctx context.Context, slug string) (*Location, error) {
	var l Location
	err := db.QueryRowContext(ctx,
		"SELECT id, title, slug, address FROM event_locations WHERE slug = ?",
		slug,
	).Scan(&l.ID, &l.Title, &l.Slug, &l.Address)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetUserByUsername looks a user up by username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := db.QueryRowContext(ctx,
		"SELECT id, username, first_name, last_name, email FROM users WHERE username = ?",
		username,
	).Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Email)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListLocations returns every event location ordered by title.
func (db *DB) ListLocations(ctx context.Context) ([]Location, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, title, slug, address FROM event_locations ORDER BY title, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locations := []Location{}
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.Title, &l.Slug, &l.Address); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

// ListPublishedEvents returns published events, newest publish date first,
// narrowed by every non-zero filter field.
func (db *DB) ListPublishedEvents(ctx context.Context, f EventFilter) ([]Event, error) {
	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	query := strings.Builder{}
	query.WriteString(`
        SELECT
            e.id, e.title, e.slug, e.content,
            e.start_time, e.end_time, e.publish_date,
            u.id, u.username, u.first_name, u.last_name, u.email,
            l.id, l.title, l.slug, l.address
        FROM events e
        JOIN users u ON e.user_id = u.id
        LEFT JOIN event_locations l ON e.location_id = l.id
        WHERE e.status = ?
          AND (e.publish_date IS NULL OR e.publish_date <= ?)
          AND (e.expiry_date IS NULL OR e.expiry_date >= ?)`)
	args := []any{StatusPublished, now, now}

	if f.KeywordID != 0 {
		query.WriteString(`
          AND EXISTS (SELECT 1 FROM event_keywords ek WHERE ek.event_id = e.id AND ek.keyword_id = ?)`)
		args = append(args, f.KeywordID)
	}
	if f.LocationID != 0 {
		query.WriteString(`
          AND e.location_id = ?`)
		args = append(args, f.LocationID)
	}
	if f.UserID != 0 {
		query.WriteString(`
          AND e.user_id = ?`)
		args = append(args, f.UserID)
	}

	query.WriteString(`
        ORDER BY e.publish_date DESC, e.id DESC`)
	if f.Limit != nil {
		if *f.Limit < 0 {
			return nil, fmt.Errorf("%w: negative limit %d", ErrInvalidInput, *f.Limit)
		}
		query.WriteString(`
        LIMIT ?`)
		args = append(args, *f.Limit)
	}

	rows, err := db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var start, end, published sql.NullTime
		var locID sql.NullInt64
		var locTitle, locSlug, locAddress sql.NullString
		if err := rows.Scan(
			&e.ID, &e.Title, &e.Slug, &e.Content,
			&start, &end, &published,
			&e.User.ID, &e.User.Username, &e.User.FirstName, &e.User.LastName, &e.User.Email,
			&locID, &locTitle, &locSlug, &locAddress,
		); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		if start.Valid {
			e.Start = start.Time
		}
		if end.Valid {
			e.End = end.Time
		}
		if published.Valid {
			e.PublishDate = published.Time
		}
		if locID.Valid {
			e.Location = &Location{
				ID:      locID.Int64,
				Title:   locTitle.String,
				Slug:    locSlug.String,
				Address: locAddress.String,
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
