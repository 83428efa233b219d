package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"freshshare/internal/domain"
	logx "freshshare/pkg/logx"
)

//go:embed postgres_migrations.sql
var postgresMigrations string

// radiusSlack widens the PostGIS spheroid search slightly so the haversine
// post-filter sees every candidate it would accept.
const radiusSlack = 1.01

type postgresStore struct {
	db  *pgxpool.Pool
	log logx.Logger
}

func openPostgres(cfg Config, log logx.Logger) (Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("storage.dsn is required for postgres driver")
	}
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresMigrations); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	log.Debug("postgres store opened", logx.Int("max_conns", int(pcfg.MaxConns)))
	return &postgresStore{db: pool, log: log}, nil
}

func (s *postgresStore) Close() error {
	s.db.Close()
	return nil
}

func (s *postgresStore) FindRecipientsInRadius(ctx context.Context, lat, lon, radiusKm float64, excludeID string) ([]domain.Recipient, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, email, phone, device_token, verified,
		        ST_Y(location::geometry), ST_X(location::geometry)
		   FROM recipients
		  WHERE verified AND location IS NOT NULL
		    AND ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		    AND id <> $4`,
		lon, lat, radiusKm*1000*radiusSlack, excludeID,
	)
	if err != nil {
		return nil, err
	}
	cands, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Recipient, error) {
		var (
			r                   domain.Recipient
			email, phone, token *string
			rlat, rlon          float64
		)
		if err := row.Scan(&r.ID, &r.Name, &email, &phone, &token, &r.Verified, &rlat, &rlon); err != nil {
			return r, err
		}
		r.Email, r.Phone, r.DeviceToken = deref(email), deref(phone), deref(token)
		r.Location = &domain.Point{Lat: rlat, Lon: rlon}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return eligible(cands, domain.Point{Lat: lat, Lon: lon}, radiusKm, excludeID), nil
}

func (s *postgresStore) UpsertRecipient(ctx context.Context, r domain.Recipient) error {
	if err := validateRecipient(r); err != nil {
		return err
	}
	var lat, lon *float64
	if r.Location != nil {
		lat, lon = &r.Location.Lat, &r.Location.Lon
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO recipients (id, name, email, phone, device_token, verified, location, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6,
		         CASE WHEN $7::float8 IS NULL THEN NULL
		              ELSE ST_SetSRID(ST_MakePoint($8::float8, $7::float8), 4326)::geography END,
		         NOW())
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone,
		   device_token = EXCLUDED.device_token, verified = EXCLUDED.verified,
		   location = EXCLUDED.location, updated_at = NOW()`,
		r.ID, r.Name, nullStr(r.Email), nullStr(r.Phone), nullStr(r.DeviceToken), r.Verified, lat, lon,
	)
	return err
}

func (s *postgresStore) AppendReport(ctx context.Context, e ReportEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO dispatch_reports (id, event_id, publisher_id, at, recipients, attempts, delivered, skipped, failed, canceled, took_ms, failures)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb)`,
		e.ID, e.EventID, nullStr(e.PublisherID), e.At, e.Recipients, e.Attempts,
		e.Delivered, e.Skipped, e.Failed, e.Canceled, e.TookMS, nullStr(e.FailuresJSON),
	)
	return err
}

func (s *postgresStore) PruneReports(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM dispatch_reports WHERE at < $1`, before)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
