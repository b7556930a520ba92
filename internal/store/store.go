// Package store defines the persistence contract for program records.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smartstudy-abroad/smartstudy/internal/program"
)

var (
	// ErrNotFound indicates a legitimate miss: the store answered and holds no
	// matching record.
	ErrNotFound = errors.New("program record not found")
	// ErrUnavailable indicates the store could not be reached or failed to
	// answer. It is never used for a miss.
	ErrUnavailable = errors.New("storage unavailable")
)

// Store persists program records keyed by (normalized name, degree, field).
type Store interface {
	// FindOne matches the normalized name and degree exactly and the field by
	// case-insensitive containment.
	FindOne(ctx context.Context, key program.Key) (program.Record, error)
	// FindFuzzy is FindOne with a substring match on the normalized name.
	FindFuzzy(ctx context.Context, key program.Key) (program.Record, error)
	// Upsert inserts the record or merges it into the stored one and returns
	// the stored state.
	Upsert(ctx context.Context, rec program.Record) (program.Record, error)
	FindAll(ctx context.Context) ([]program.Record, error)
	TextSearch(ctx context.Context, term string) ([]program.Record, error)
	// Delete removes one record. It is an administrative operation.
	Delete(ctx context.Context, key program.Key) (bool, error)
	Close() error
}

// Unavailable wraps a driver failure so callers can classify it with
// errors.Is(err, ErrUnavailable).
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// WithTimeout bounds a single store call. A non-positive timeout leaves the
// context untouched.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// Prepare validates a record for upsert and fills derived fields.
func Prepare(rec program.Record, now time.Time) (program.Record, error) {
	if rec.University == "" && rec.NormalizedName == "" {
		return program.Record{}, errors.New("university is required")
	}
	if rec.Degree == "" {
		return program.Record{}, errors.New("degree is required")
	}
	key := rec.Key()
	if key.Field == "" {
		return program.Record{}, errors.New("field is required")
	}
	if key.NormalizedName == "" {
		return program.Record{}, errors.New("university is required")
	}
	rec.NormalizedName = key.NormalizedName
	if rec.University == "" {
		rec.University = key.NormalizedName
	}
	if rec.DataYear == 0 {
		rec.DataYear = now.Year()
	}
	rec.UpdatedAt = now.UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
	}
	return rec, nil
}
