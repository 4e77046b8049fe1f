// Package storage persists the raw sample history a baseline is built from.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/savegress/basewatch/internal/baseline"
)

var (
	// ErrEmpty is returned by Meta when the store holds no samples.
	ErrEmpty = errors.New("store is empty")

	// ErrInvalidSample is returned by Record for NaN or infinite values.
	ErrInvalidSample = errors.New("sample value is not a finite number")
)

// SampleStore is the interface for sample history backends. A store holds a
// single series keyed by timestamp: samples at distinct instants are all
// kept, even within one hour, but a re-recorded timestamp replaces the
// previous value. A file with two rows at the same instant therefore loads
// into the store as one sample, while the CSV commands average both into
// their cell.
type SampleStore interface {
	// Record writes samples, replacing any with the same timestamp. Nothing
	// is written when a value is not finite.
	Record(ctx context.Context, samples []baseline.Sample) error

	// Range returns samples with from <= timestamp <= to, oldest first
	Range(ctx context.Context, from, to time.Time) ([]baseline.Sample, error)

	// All returns every sample, oldest first
	All(ctx context.Context) ([]baseline.Sample, error)

	// Meta summarizes the stored series
	Meta(ctx context.Context) (*Meta, error)

	// Cleanup removes samples older than before and returns how many were removed
	Cleanup(ctx context.Context, before time.Time) (int64, error)

	// Close closes the store
	Close() error
}

// Meta describes the stored series.
type Meta struct {
	Samples int64     `json:"samples"`
	First   time.Time `json:"first"`
	Last    time.Time `json:"last"`
}
