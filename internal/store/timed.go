package store

import (
	"context"
	"errors"
	"time"

	"github.com/smartstudy-abroad/smartstudy/internal/program"
)

type timed struct {
	next    Store
	timeout time.Duration
}

// Timed bounds every call to next with timeout. A call that runs out of time
// is reported as ErrUnavailable, like any other driver failure.
func Timed(next Store, timeout time.Duration) Store {
	if timeout <= 0 {
		return next
	}
	return &timed{next: next, timeout: timeout}
}

func (t *timed) FindOne(ctx context.Context, key program.Key) (program.Record, error) {
	ctx, cancel := WithTimeout(ctx, t.timeout)
	defer cancel()
	rec, err := t.next.FindOne(ctx, key)
	return rec, classify(ctx, "find program", err)
}

func (t *timed) FindFuzzy(ctx context.Context, key program.Key) (program.Record, error) {
	ctx, cancel := WithTimeout(ctx, t.timeout)
	defer cancel()
	rec, err := t.next.FindFuzzy(ctx, key)
	return rec, classify(ctx, "find program fuzzy", err)
}

func (t *timed) Upsert(ctx context.Context, rec program.Record) (program.Record, error) {
	ctx, cancel := WithTimeout(ctx, t.timeout)
	defer cancel()
	stored, err := t.next.Upsert(ctx, rec)
	return stored, classify(ctx, "upsert program", err)
}

func (t *timed) FindAll(ctx context.Context) ([]program.Record, error) {
	ctx, cancel := WithTimeout(ctx, t.timeout)
	defer cancel()
	records, err := t.next.FindAll(ctx)
	return records, classify(ctx, "list programs", err)
}

func (t *timed) TextSearch(ctx context.Context, term string) ([]program.Record, error) {
	ctx, cancel := WithTimeout(ctx, t.timeout)
	defer cancel()
	records, err := t.next.TextSearch(ctx, term)
	return records, classify(ctx, "search programs", err)
}

func (t *timed) Delete(ctx context.Context, key program.Key) (bool, error) {
	ctx, cancel := WithTimeout(ctx, t.timeout)
	defer cancel()
	deleted, err := t.next.Delete(ctx, key)
	return deleted, classify(ctx, "delete program", err)
}

func (t *timed) Close() error {
	return t.next.Close()
}

func classify(ctx context.Context, op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable) {
		return err
	}
	if ctx.Err() != nil {
		return Unavailable(op, err)
	}
	return err
}
