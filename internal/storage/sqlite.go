package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"freshshare/internal/domain"
	logx "freshshare/pkg/logx"
)

//go:embed migrations.sql
var sqliteMigrations string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer; one connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), sqliteMigrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) FindRecipientsInRadius(ctx context.Context, lat, lon, radiusKm float64, excludeID string) ([]domain.Recipient, error) {
	origin := domain.Point{Lat: lat, Lon: lon}
	minLat, maxLat, minLon, maxLon := domain.BoundingBox(origin, radiusKm)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, phone, device_token, verified, lat, lon
		   FROM recipients
		  WHERE verified = 1 AND lat IS NOT NULL AND lon IS NOT NULL
		    AND lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?
		    AND id <> ?`,
		minLat, maxLat, minLon, maxLon, excludeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cands []domain.Recipient
	for rows.Next() {
		var (
			r                   domain.Recipient
			email, phone, token sql.NullString
			verified            int
			rlat, rlon          sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.Name, &email, &phone, &token, &verified, &rlat, &rlon); err != nil {
			return nil, err
		}
		r.Email, r.Phone, r.DeviceToken = email.String, phone.String, token.String
		r.Verified = verified != 0
		if rlat.Valid && rlon.Valid {
			r.Location = &domain.Point{Lat: rlat.Float64, Lon: rlon.Float64}
		}
		cands = append(cands, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return eligible(cands, origin, radiusKm, excludeID), nil
}

func (s *sqliteStore) UpsertRecipient(ctx context.Context, r domain.Recipient) error {
	if err := validateRecipient(r); err != nil {
		return err
	}
	var lat, lon any
	if r.Location != nil {
		lat, lon = r.Location.Lat, r.Location.Lon
	}
	verified := 0
	if r.Verified {
		verified = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recipients(id, name, email, phone, device_token, verified, lat, lon, updated_at)
		 VALUES(?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, email=excluded.email, phone=excluded.phone,
		   device_token=excluded.device_token, verified=excluded.verified,
		   lat=excluded.lat, lon=excluded.lon, updated_at=excluded.updated_at`,
		r.ID, r.Name, nullStr(r.Email), nullStr(r.Phone), nullStr(r.DeviceToken), verified, lat, lon,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) AppendReport(ctx context.Context, e ReportEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	canceled := 0
	if e.Canceled {
		canceled = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports(id, event_id, publisher_id, at_ms, recipients, attempts, delivered, skipped, failed, canceled, took_ms, failures)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.EventID, nullStr(e.PublisherID), e.At.UnixMilli(), e.Recipients, e.Attempts,
		e.Delivered, e.Skipped, e.Failed, canceled, e.TookMS, nullStr(e.FailuresJSON),
	)
	return err
}

func (s *sqliteStore) PruneReports(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE at_ms < ?`, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
