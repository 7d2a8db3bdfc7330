package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Fixtures is a YAML snapshot of CMS content, used to seed a development
// database. The feed path itself never writes.
type Fixtures struct {
	Settings  map[string]string `yaml:"settings"`
	Users     []FixtureUser     `yaml:"users"`
	Locations []FixtureLocation `yaml:"locations"`
	Keywords  []FixtureKeyword  `yaml:"keywords"`
	Pages     []FixturePage     `yaml:"pages"`
	Events    []FixtureEvent    `yaml:"events"`
}

type FixtureUser struct {
	Username  string `yaml:"username"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Email     string `yaml:"email"`
}

type FixtureLocation struct {
	Title   string `yaml:"title"`
	Slug    string `yaml:"slug"`
	Address string `yaml:"address"`
}

type FixtureKeyword struct {
	Title string `yaml:"title"`
	Slug  string `yaml:"slug"`
}

type FixturePage struct {
	Title         string     `yaml:"title"`
	Slug          string     `yaml:"slug"`
	Description   string     `yaml:"description"`
	Status        int        `yaml:"status"`
	LoginRequired bool       `yaml:"login_required"`
	PublishDate   *time.Time `yaml:"publish_date"`
}

type FixtureEvent struct {
	Title       string     `yaml:"title"`
	Slug        string     `yaml:"slug"`
	Content     string     `yaml:"content"`
	Start       *time.Time `yaml:"start"`
	End         *time.Time `yaml:"end"`
	Status      int        `yaml:"status"`
	PublishDate *time.Time `yaml:"publish_date"`
	ExpiryDate  *time.Time `yaml:"expiry_date"`
	Author      string     `yaml:"author"`
	Location    string     `yaml:"location"`
	Keywords    []string   `yaml:"keywords"`
}

// LoadFixturesFile reads a fixtures YAML file and loads it.
func (db *DB) LoadFixturesFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening fixtures %s: %w", path, err)
	}
	defer f.Close()
	return db.LoadFixtures(ctx, f)
}

// LoadFixtures decodes YAML fixtures from r and inserts them in one transaction.
// References between records use slugs and usernames.
func (db *DB) LoadFixtures(ctx context.Context, r io.Reader) error {
	var fx Fixtures
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil && err != io.EOF {
		return fmt.Errorf("error decoding fixtures: %w", err)
	}
	return db.InsertFixtures(ctx, fx)
}

// InsertFixtures writes fx in a single transaction.
func (db *DB) InsertFixtures(ctx context.Context, fx Fixtures) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	for key, value := range fx.Settings {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO settings (key, value, type) VALUES (?, ?, 'string')",
			key, value); err != nil {
			return fmt.Errorf("error inserting setting %s: %w", key, err)
		}
	}

	users := make(map[string]int64)
	for _, u := range fx.Users {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO users (username, first_name, last_name, email) VALUES (?, ?, ?, ?)",
			u.Username, u.FirstName, u.LastName, u.Email)
		if err != nil {
			return fmt.Errorf("error inserting user %s: %w", u.Username, err)
		}
		if users[u.Username], err = res.LastInsertId(); err != nil {
			return err
		}
	}

	locations := make(map[string]int64)
	for _, l := range fx.Locations {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO event_locations (title, slug, address) VALUES (?, ?, ?)",
			l.Title, l.Slug, l.Address)
		if err != nil {
			return fmt.Errorf("error inserting location %s: %w", l.Slug, err)
		}
		if locations[l.Slug], err = res.LastInsertId(); err != nil {
			return err
		}
	}

	keywords := make(map[string]int64)
	for _, k := range fx.Keywords {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO keywords (title, slug) VALUES (?, ?)",
			k.Title, k.Slug)
		if err != nil {
			return fmt.Errorf("error inserting keyword %s: %w", k.Slug, err)
		}
		if keywords[k.Slug], err = res.LastInsertId(); err != nil {
			return err
		}
	}

	for _, p := range fx.Pages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pages (title, slug, description, status, login_required, publish_date)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.Title, p.Slug, p.Description, statusOrPublished(p.Status), p.LoginRequired,
			nullTime(p.PublishDate)); err != nil {
			return fmt.Errorf("error inserting page %s: %w", p.Slug, err)
		}
	}

	for _, e := range fx.Events {
		userID, ok := users[e.Author]
		if !ok {
			return fmt.Errorf("%w: event %s references unknown author %q", ErrInvalidInput, e.Slug, e.Author)
		}
		var locationID sql.NullInt64
		if e.Location != "" {
			id, ok := locations[e.Location]
			if !ok {
				return fmt.Errorf("%w: event %s references unknown location %q", ErrInvalidInput, e.Slug, e.Location)
			}
			locationID = sql.NullInt64{Int64: id, Valid: true}
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO events (title, slug, content, start_time, end_time, status,
			    publish_date, expiry_date, user_id, location_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.Title, e.Slug, e.Content, nullTime(e.Start), nullTime(e.End),
			statusOrPublished(e.Status), nullTime(e.PublishDate), nullTime(e.ExpiryDate),
			userID, locationID)
		if err != nil {
			return fmt.Errorf("error inserting event %s: %w", e.Slug, err)
		}
		eventID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		for _, slug := range e.Keywords {
			keywordID, ok := keywords[slug]
			if !ok {
				return fmt.Errorf("%w: event %s references unknown keyword %q", ErrInvalidInput, e.Slug, slug)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO event_keywords (event_id, keyword_id) VALUES (?, ?)",
				eventID, keywordID); err != nil {
				return fmt.Errorf("error assigning keyword %s to event %s: %w", slug, e.Slug, err)
			}
		}
	}

	return tx.Commit()
}

func statusOrPublished(status int) int {
	if status == 0 {
		return StatusPublished
	}
	return status
}

// nullTime stores times in UTC so lexical comparison in SQLite stays correct.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
