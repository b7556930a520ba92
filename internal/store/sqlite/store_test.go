package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/smartstudy-abroad/smartstudy/internal/program"
	"github.com/smartstudy-abroad/smartstudy/internal/store"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "programs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func mitCS() program.Record {
	return program.Record{
		University:         "MIT",
		Degree:             program.DegreeMaster,
		Field:              "Computer Science",
		Country:            "USA",
		TuitionFee:         "$61,990 per year",
		GPARequirement:     "3.5+",
		EnglishRequirement: "TOEFL 100",
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(" "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestOpenIsRepeatable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "programs.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	_ = first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	_ = second.Close()
}

func TestUpsertThenFindOne(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()

	stored, err := s.Upsert(ctx, mitCS())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if stored.NormalizedName != "massachusetts institute of technology" {
		t.Fatalf("normalized name = %q", stored.NormalizedName)
	}
	if stored.CreatedAt.IsZero() || stored.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not stamped: %+v", stored)
	}
	if stored.DataYear == 0 {
		t.Fatal("data year not stamped")
	}

	got, err := s.FindOne(ctx, program.NewKey("mit", program.DegreeMaster, "computer science"))
	if err != nil {
		t.Fatalf("find one: %v", err)
	}
	if got.TuitionFee != "$61,990 per year" {
		t.Fatalf("tuition = %q", got.TuitionFee)
	}
	if got.University != "MIT" || got.Field != "Computer Science" {
		t.Fatalf("display values lost: %+v", got)
	}
}

func TestFindOneFieldContains(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()

	rec := mitCS()
	rec.Field = "Electrical Engineering and Computer Science"
	if _, err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if _, err := s.FindOne(ctx, program.NewKey("MIT", program.DegreeMaster, "Computer Science")); err != nil {
		t.Fatalf("expected containment match, got %v", err)
	}

	_, err := s.FindOne(ctx, program.NewKey("MIT", program.DegreePhD, "Computer Science"))
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other degree, got %v", err)
	}
}

func TestFindOnePrefersExactField(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()

	broad := mitCS()
	broad.Field = "Computer Science and Engineering"
	broad.TuitionFee = "$1"
	if _, err := s.Upsert(ctx, broad); err != nil {
		t.Fatalf("upsert broad: %v", err)
	}
	if _, err := s.Upsert(ctx, mitCS()); err != nil {
		t.Fatalf("upsert exact: %v", err)
	}

	got, err := s.FindOne(ctx, program.NewKey("MIT", program.DegreeMaster, "computer science"))
	if err != nil {
		t.Fatalf("find one: %v", err)
	}
	if got.Field != "Computer Science" {
		t.Fatalf("expected exact field match, got %q", got.Field)
	}
}

func TestFindFuzzy(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()

	rec := program.Record{University: "University of Toronto", Degree: program.DegreeMaster, Field: "Data Science"}
	if _, err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	key := program.NewKey("Toronto", program.DegreeMaster, "data science")
	if _, err := s.FindOne(ctx, key); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected exact miss, got %v", err)
	}

	got, err := s.FindFuzzy(ctx, key)
	if err != nil {
		t.Fatalf("find fuzzy: %v", err)
	}
	if got.NormalizedName != "university of toronto" {
		t.Fatalf("unexpected fuzzy hit: %q", got.NormalizedName)
	}

	longer := program.NewKey("University of Toronto St. George", program.DegreeMaster, "data science")
	if _, err := s.FindFuzzy(ctx, longer); err != nil {
		t.Fatalf("expected reverse containment hit, got %v", err)
	}

	if _, err := s.FindFuzzy(ctx, program.Key{Degree: program.DegreeMaster, Field: "data science"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected miss for empty name, got %v", err)
	}
}

func TestUpsertMergesAndKeepsCreatedAt(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()

	first := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(48 * time.Hour)
	s.now = func() time.Time { return first }

	if _, err := s.Upsert(ctx, mitCS()); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	s.now = func() time.Time { return second }
	update := program.Record{
		University:   "mit",
		Degree:       program.DegreeMaster,
		Field:        "computer science",
		Scholarships: "Merit based",
	}
	stored, err := s.Upsert(ctx, update)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if !stored.CreatedAt.Equal(first) {
		t.Fatalf("created_at = %v, want %v", stored.CreatedAt, first)
	}
	if !stored.UpdatedAt.Equal(second) {
		t.Fatalf("updated_at = %v, want %v", stored.UpdatedAt, second)
	}
	if stored.TuitionFee != "$61,990 per year" {
		t.Fatalf("tuition erased by partial update: %q", stored.TuitionFee)
	}
	if stored.Scholarships != "Merit based" {
		t.Fatalf("scholarships not merged: %q", stored.Scholarships)
	}

	all, err := s.FindAll(ctx)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one merged record, got %d", len(all))
	}
}

func TestConcurrentUpsertsCollapse(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Upsert(ctx, mitCS()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent upsert: %v", err)
	}

	all, err := s.FindAll(ctx)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected a single record, got %d", len(all))
	}
}

func TestTextSearchAndDelete(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()

	records := []program.Record{
		mitCS(),
		{University: "University of Toronto", Degree: program.DegreeMaster, Field: "Data Science", Country: "Canada"},
		{University: "ETH Zurich", Degree: program.DegreePhD, Field: "Physics", Country: "Switzerland"},
	}
	for _, rec := range records {
		if _, err := s.Upsert(ctx, rec); err != nil {
			t.Fatalf("upsert %s: %v", rec.University, err)
		}
	}

	found, err := s.TextSearch(ctx, "CANADA")
	if err != nil {
		t.Fatalf("text search: %v", err)
	}
	if len(found) != 1 || found[0].University != "University of Toronto" {
		t.Fatalf("unexpected search result: %+v", found)
	}

	all, err := s.TextSearch(ctx, "  ")
	if err != nil {
		t.Fatalf("empty text search: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected all records for empty term, got %d", len(all))
	}

	deleted, err := s.Delete(ctx, program.NewKey("eth", program.DegreePhD, "physics"))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted {
		t.Fatal("expected no deletion for unknown key")
	}

	deleted, err = s.Delete(ctx, program.NewKey("ETH Zurich", program.DegreePhD, "physics"))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Fatal("expected deletion")
	}
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	t.Parallel()

	s, err := Open(filepath.Join(t.TempDir(), "programs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = s.Close()

	_, err = s.FindOne(context.Background(), program.NewKey("mit", program.DegreeMaster, "cs"))
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if errors.Is(err, store.ErrNotFound) {
		t.Fatal("closed store must not report a miss")
	}
}

func TestCanceledContextIsUnavailable(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.FindAll(ctx); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
