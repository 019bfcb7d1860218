// Package store caches parsed observations per fetch window in SQLite, so
// re-running the figures does not download the same window again.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/globe-observer-qa/internal/domain"
	_ "modernc.org/sqlite"
)

// ErrWindowNotCached is returned by LoadWindow for a window never saved.
var ErrWindowNotCached = errors.New("window not cached")

const schema = `
CREATE TABLE IF NOT EXISTS fetched_windows (
	window_key        TEXT PRIMARY KEY,
	protocols         TEXT NOT NULL,
	start_date        TEXT NOT NULL,
	end_date          TEXT NOT NULL,
	fetched_at        TEXT NOT NULL,
	observation_count INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS observations (
	window_key     TEXT NOT NULL,
	seq            INTEGER NOT NULL,
	id             TEXT NOT NULL,
	protocol       TEXT NOT NULL,
	source         INTEGER NOT NULL,
	data_source    TEXT NOT NULL,
	lat            REAL NOT NULL,
	lon            REAL NOT NULL,
	has_position   INTEGER NOT NULL,
	measured_at    TEXT NOT NULL,
	user_id        INTEGER NOT NULL,
	has_user_id    INTEGER NOT NULL,
	photo_urls     TEXT NOT NULL,
	cloud_types    TEXT NOT NULL,
	mosquito_genus TEXT NOT NULL,
	muc_code       TEXT NOT NULL,
	PRIMARY KEY (window_key, seq)
);
CREATE INDEX IF NOT EXISTS idx_observations_protocol ON observations (window_key, protocol);
`

// Store is a SQLite-backed observation cache.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	// One connection serialises access for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA busy_timeout=5000;"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// HasWindow reports whether w has been saved.
func (s *Store) HasWindow(ctx context.Context, w domain.Window) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM fetched_windows WHERE window_key = ? LIMIT 1`, w.Key()).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("query fetched window: %w", err)
	}
	return true, nil
}

// SaveWindow replaces the cached observations of w in a single transaction.
func (s *Store) SaveWindow(ctx context.Context, w domain.Window, obs []domain.Observation) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save window: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	key := w.Key()
	if _, err = tx.ExecContext(ctx, `DELETE FROM observations WHERE window_key = ?`, key); err != nil {
		return fmt.Errorf("clear window observations: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM fetched_windows WHERE window_key = ?`, key); err != nil {
		return fmt.Errorf("clear fetched window: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO observations
		(window_key, seq, id, protocol, source, data_source, lat, lon, has_position, measured_at,
		 user_id, has_user_id, photo_urls, cloud_types, mosquito_genus, muc_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare observation insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range obs {
		photos, err := json.Marshal(o.PhotoURLs)
		if err != nil {
			return fmt.Errorf("encode photo urls of %s: %w", o.ID, err)
		}
		clouds, err := json.Marshal(o.CloudTypes)
		if err != nil {
			return fmt.Errorf("encode cloud types of %s: %w", o.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, key, i, o.ID, string(o.Protocol), int(o.Source), o.DataSource,
			o.Geo.Lat, o.Geo.Lon, o.HasPosition, o.MeasuredAt.UTC().Format(time.RFC3339Nano),
			o.UserID, o.HasUserID, string(photos), string(clouds), o.MosquitoGenus, o.MucCode); err != nil {
			return fmt.Errorf("insert observation %s: %w", o.ID, err)
		}
	}

	protocols := make([]string, len(w.Protocols))
	for i, p := range w.Protocols {
		protocols[i] = string(p)
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO fetched_windows
		(window_key, protocols, start_date, end_date, fetched_at, observation_count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		key, strings.Join(protocols, ","), w.Start.Format(domain.DateLayout), w.End.Format(domain.DateLayout),
		domain.Now().Format(time.RFC3339), len(obs)); err != nil {
		return fmt.Errorf("insert fetched window: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save window: %w", err)
	}
	return nil
}

// LoadWindow returns the observations saved for w, in saved order.
func (s *Store) LoadWindow(ctx context.Context, w domain.Window) ([]domain.Observation, error) {
	ok, err := s.HasWindow(ctx, w)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWindowNotCached, w.Key())
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, protocol, source, data_source, lat, lon, has_position,
		measured_at, user_id, has_user_id, photo_urls, cloud_types, mosquito_genus, muc_code
		FROM observations WHERE window_key = ? ORDER BY seq`, w.Key())
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var obs []domain.Observation
	for rows.Next() {
		var (
			o              domain.Observation
			protocol       string
			source         int
			measuredAt     string
			photos, clouds string
		)
		if err := rows.Scan(&o.ID, &protocol, &source, &o.DataSource, &o.Geo.Lat, &o.Geo.Lon, &o.HasPosition,
			&measuredAt, &o.UserID, &o.HasUserID, &photos, &clouds, &o.MosquitoGenus, &o.MucCode); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.Protocol = domain.Protocol(protocol)
		o.Source = domain.Source(source)
		if o.MeasuredAt, err = time.Parse(time.RFC3339Nano, measuredAt); err != nil {
			return nil, fmt.Errorf("parse measured_at of %s: %w", o.ID, err)
		}
		o.MeasuredAt = o.MeasuredAt.UTC()
		if err := json.Unmarshal([]byte(photos), &o.PhotoURLs); err != nil {
			return nil, fmt.Errorf("decode photo urls of %s: %w", o.ID, err)
		}
		if err := json.Unmarshal([]byte(clouds), &o.CloudTypes); err != nil {
			return nil, fmt.Errorf("decode cloud types of %s: %w", o.ID, err)
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return obs, nil
}
