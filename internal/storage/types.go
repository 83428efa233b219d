package storage

import (
	"context"
	"errors"
	"time"

	"freshshare/internal/domain"
)

var (
	ErrDisabled         = errors.New("storage disabled")
	ErrClosed           = errors.New("storage closed")
	ErrInvalidRecipient = errors.New("invalid recipient")
)

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver string
	// Path is the database or file prefix for the file and sqlite drivers.
	Path string
	// BusyTimeout is sqlite only; 0 means default.
	BusyTimeout time.Duration
	// DSN is the postgres connection string.
	DSN      string
	MaxConns int32
	Redis    RedisConfig
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// ReportEntry is the persisted, schema-stable summary of one dispatch.
type ReportEntry struct {
	ID          string    `json:"id"`
	EventID     string    `json:"event_id"`
	PublisherID string    `json:"publisher_id,omitempty"`
	At          time.Time `json:"at"`
	Recipients  int       `json:"recipients"`
	Attempts    int       `json:"attempts"`
	Delivered   int       `json:"delivered"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	Canceled    bool      `json:"canceled,omitempty"`
	TookMS      int64     `json:"took_ms"`
	// FailuresJSON is the JSON-encoded failure list.
	FailuresJSON string `json:"failures,omitempty"`
}

type RecipientStore interface {
	FindRecipientsInRadius(ctx context.Context, lat, lon, radiusKm float64, excludeID string) ([]domain.Recipient, error)
	UpsertRecipient(ctx context.Context, r domain.Recipient) error
}

type ReportStore interface {
	AppendReport(ctx context.Context, e ReportEntry) error
	// PruneReports deletes entries older than before and returns how many.
	PruneReports(ctx context.Context, before time.Time) (int, error)
}

type Store interface {
	RecipientStore
	ReportStore
	Close() error
}
