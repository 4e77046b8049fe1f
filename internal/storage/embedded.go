package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/savegress/basewatch/internal/baseline"
)

// EmbeddedStorage is a SQLite-backed SampleStore.
type EmbeddedStorage struct {
	db       *sql.DB
	dbPath   string
	location *time.Location
	logger   *zap.Logger
	mu       sync.RWMutex
}

// Option configures an EmbeddedStorage.
type Option func(*EmbeddedStorage)

// WithLogger sets the storage logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *EmbeddedStorage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLocation sets the location timestamps are returned in. Defaults to UTC.
// Bucketing is location-sensitive, so reads should use the location the
// samples were recorded in.
func WithLocation(loc *time.Location) Option {
	return func(s *EmbeddedStorage) {
		if loc != nil {
			s.location = loc
		}
	}
}

// NewEmbeddedStorage opens or creates the database file at dbPath.
func NewEmbeddedStorage(dbPath string, opts ...Option) (*EmbeddedStorage, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &EmbeddedStorage{
		db:       db,
		dbPath:   dbPath,
		location: time.UTC,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Debug("sample store opened", zap.String("path", dbPath))

	return s, nil
}

func (s *EmbeddedStorage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS samples (
		timestamp INTEGER PRIMARY KEY,
		value REAL NOT NULL,
		created_at INTEGER DEFAULT (strftime('%s', 'now'))
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *EmbeddedStorage) Path() string {
	return s.dbPath
}

// Record writes samples in a single transaction. Later samples win over
// earlier ones with the same timestamp.
func (s *EmbeddedStorage) Record(ctx context.Context, samples []baseline.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	for _, sample := range samples {
		if math.IsNaN(sample.Value) || math.IsInf(sample.Value, 0) {
			return fmt.Errorf("%w: %v at %s", ErrInvalidSample, sample.Value, sample.Timestamp.Format(time.RFC3339))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (timestamp, value) VALUES (?, ?)
		ON CONFLICT(timestamp) DO UPDATE SET value = excluded.value
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, sample := range samples {
		if _, err := stmt.ExecContext(ctx, sample.Timestamp.UnixNano(), sample.Value); err != nil {
			return fmt.Errorf("failed to insert sample at %s: %w", sample.Timestamp, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit samples: %w", err)
	}

	s.logger.Debug("samples recorded", zap.Int("samples", len(samples)))

	return nil
}

// Range returns samples between from and to inclusive.
func (s *EmbeddedStorage) Range(ctx context.Context, from, to time.Time) ([]baseline.Sample, error) {
	return s.query(ctx, `
		SELECT timestamp, value FROM samples
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp
	`, from.UnixNano(), to.UnixNano())
}

// All returns the whole series.
func (s *EmbeddedStorage) All(ctx context.Context) ([]baseline.Sample, error) {
	return s.query(ctx, "SELECT timestamp, value FROM samples ORDER BY timestamp")
}

func (s *EmbeddedStorage) query(ctx context.Context, query string, args ...any) ([]baseline.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []baseline.Sample
	for rows.Next() {
		var (
			ts    int64
			value float64
		)
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}

		samples = append(samples, baseline.Sample{Timestamp: s.timestamp(ts), Value: value})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}

	return samples, nil
}

// Meta returns the sample count and the first and last timestamps.
func (s *EmbeddedStorage) Meta(ctx context.Context) (*Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		count       int64
		first, last sql.NullInt64
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(timestamp), MAX(timestamp) FROM samples
	`).Scan(&count, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	if count == 0 {
		return nil, ErrEmpty
	}

	return &Meta{
		Samples: count,
		First:   s.timestamp(first.Int64),
		Last:    s.timestamp(last.Int64),
	}, nil
}

// Cleanup removes samples recorded before the cutoff.
func (s *EmbeddedStorage) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM samples WHERE timestamp < ?", before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete samples: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted samples: %w", err)
	}

	s.logger.Info("samples cleaned up", zap.Time("before", before), zap.Int64("removed", removed))

	return removed, nil
}

// Close closes the storage.
func (s *EmbeddedStorage) Close() error {
	return s.db.Close()
}

func (s *EmbeddedStorage) timestamp(nanos int64) time.Time {
	return time.Unix(0, nanos).In(s.location)
}

var _ SampleStore = (*EmbeddedStorage)(nil)
