// Package postgres provides a PostgreSQL-backed program store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartstudy-abroad/smartstudy/internal/normalize"
	"github.com/smartstudy-abroad/smartstudy/internal/program"
	"github.com/smartstudy-abroad/smartstudy/internal/store"
	"github.com/smartstudy-abroad/smartstudy/internal/store/postgres/migrations"
)

const columns = `university, normalized_name, degree, field, country, tuition_fee,
	gpa_requirement, english_requirement, test_requirements, scholarships,
	deadline_spring, deadline_summer, deadline_fall, program_duration,
	data_year, created_at, updated_at`

// Store persists program records in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

// NewPostgresPool creates and verifies a pgxpool connection pool.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

// Open connects to databaseURL and applies embedded migrations.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("database url is required")
	}
	pool, err := NewPostgresPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := applyMigrations(ctx, pool, migrations.FS); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{pool: pool, now: time.Now}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS) error {
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		var applied bool
		if err := pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name,
		).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied {
			continue
		}

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(body)); err != nil {
				return fmt.Errorf("apply migration %s: %w", name, err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (name, applied_at) VALUES ($1, $2)`, name, time.Now().UTC(),
			); err != nil {
				return fmt.Errorf("record migration %s: %w", name, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ready(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return store.Unavailable("postgres", errors.New("storage is not configured"))
	}
	if err := ctx.Err(); err != nil {
		return store.Unavailable("postgres", err)
	}
	return nil
}

// FindOne returns the record with the exact normalized name and degree whose
// field contains the requested field.
func (s *Store) FindOne(ctx context.Context, key program.Key) (program.Record, error) {
	if err := s.ready(ctx); err != nil {
		return program.Record{}, err
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+columns+`
		   FROM programs
		  WHERE normalized_name = $1
		    AND degree = $2
		    AND strpos(field_key, $3) > 0
		  ORDER BY (field_key = $3) DESC, updated_at DESC
		  LIMIT 1`,
		key.NormalizedName, string(key.Degree), key.Field,
	)
	return scanOne(row, "find program")
}

// FindFuzzy matches the normalized name by substring in either direction.
func (s *Store) FindFuzzy(ctx context.Context, key program.Key) (program.Record, error) {
	if err := s.ready(ctx); err != nil {
		return program.Record{}, err
	}
	if key.NormalizedName == "" {
		return program.Record{}, store.ErrNotFound
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+columns+`
		   FROM programs
		  WHERE (strpos(normalized_name, $1) > 0 OR strpos($1, normalized_name) > 0)
		    AND degree = $2
		    AND strpos(field_key, $3) > 0
		  ORDER BY (field_key = $3) DESC, updated_at DESC
		  LIMIT 1`,
		key.NormalizedName, string(key.Degree), key.Field,
	)
	return scanOne(row, "find program fuzzy")
}

// Upsert inserts or merges a record in one statement. Empty attributes never
// overwrite stored values and created_at is kept from the first insert.
func (s *Store) Upsert(ctx context.Context, rec program.Record) (program.Record, error) {
	if err := s.ready(ctx); err != nil {
		return program.Record{}, err
	}
	rec, err := store.Prepare(rec, s.now())
	if err != nil {
		return program.Record{}, err
	}
	key := rec.Key()

	row := s.pool.QueryRow(ctx,
		`INSERT INTO programs (
		   normalized_name, degree, field_key, university, field, country,
		   tuition_fee, gpa_requirement, english_requirement, test_requirements,
		   scholarships, deadline_spring, deadline_summer, deadline_fall,
		   program_duration, data_year, created_at, updated_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		 ON CONFLICT (normalized_name, degree, field_key) DO UPDATE SET
		   university          = COALESCE(NULLIF(EXCLUDED.university, ''), programs.university),
		   field               = COALESCE(NULLIF(EXCLUDED.field, ''), programs.field),
		   country             = COALESCE(NULLIF(EXCLUDED.country, ''), programs.country),
		   tuition_fee         = COALESCE(NULLIF(EXCLUDED.tuition_fee, ''), programs.tuition_fee),
		   gpa_requirement     = COALESCE(NULLIF(EXCLUDED.gpa_requirement, ''), programs.gpa_requirement),
		   english_requirement = COALESCE(NULLIF(EXCLUDED.english_requirement, ''), programs.english_requirement),
		   test_requirements   = COALESCE(NULLIF(EXCLUDED.test_requirements, ''), programs.test_requirements),
		   scholarships        = COALESCE(NULLIF(EXCLUDED.scholarships, ''), programs.scholarships),
		   deadline_spring     = COALESCE(NULLIF(EXCLUDED.deadline_spring, ''), programs.deadline_spring),
		   deadline_summer     = COALESCE(NULLIF(EXCLUDED.deadline_summer, ''), programs.deadline_summer),
		   deadline_fall       = COALESCE(NULLIF(EXCLUDED.deadline_fall, ''), programs.deadline_fall),
		   program_duration    = COALESCE(NULLIF(EXCLUDED.program_duration, ''), programs.program_duration),
		   data_year           = EXCLUDED.data_year,
		   updated_at          = EXCLUDED.updated_at
		 RETURNING `+columns,
		key.NormalizedName,
		string(key.Degree),
		key.Field,
		strings.TrimSpace(rec.University),
		strings.TrimSpace(rec.Field),
		rec.Country,
		rec.TuitionFee,
		rec.GPARequirement,
		rec.EnglishRequirement,
		rec.TestRequirements,
		rec.Scholarships,
		rec.Deadlines.Spring,
		rec.Deadlines.Summer,
		rec.Deadlines.Fall,
		rec.ProgramDuration,
		rec.DataYear,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return scanOne(row, "upsert program")
}

// FindAll returns every stored record.
func (s *Store) FindAll(ctx context.Context) ([]program.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+columns+`
		   FROM programs
		  ORDER BY normalized_name, degree, field_key`,
	)
	if err != nil {
		return nil, store.Unavailable("list programs", err)
	}
	return scanAll(rows, "list programs")
}

// TextSearch matches the term against names, field and country.
func (s *Store) TextSearch(ctx context.Context, term string) ([]program.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	term = normalize.Text(term)
	if term == "" {
		return s.FindAll(ctx)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+columns+`
		   FROM programs
		  WHERE strpos(lower(university), $1) > 0
		     OR strpos(normalized_name, $1) > 0
		     OR strpos(field_key, $1) > 0
		     OR strpos(lower(country), $1) > 0
		  ORDER BY normalized_name, degree, field_key`,
		term,
	)
	if err != nil {
		return nil, store.Unavailable("search programs", err)
	}
	return scanAll(rows, "search programs")
}

// Delete removes the record with the exact key.
func (s *Store) Delete(ctx context.Context, key program.Key) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM programs WHERE normalized_name = $1 AND degree = $2 AND field_key = $3`,
		key.NormalizedName, string(key.Degree), key.Field,
	)
	if err != nil {
		return false, store.Unavailable("delete program", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanRecord(row pgx.Row) (program.Record, error) {
	var (
		rec    program.Record
		degree string
	)
	err := row.Scan(
		&rec.University,
		&rec.NormalizedName,
		&degree,
		&rec.Field,
		&rec.Country,
		&rec.TuitionFee,
		&rec.GPARequirement,
		&rec.EnglishRequirement,
		&rec.TestRequirements,
		&rec.Scholarships,
		&rec.Deadlines.Spring,
		&rec.Deadlines.Summer,
		&rec.Deadlines.Fall,
		&rec.ProgramDuration,
		&rec.DataYear,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return program.Record{}, err
	}
	rec.Degree = program.Degree(degree)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

func scanOne(row pgx.Row, op string) (program.Record, error) {
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return program.Record{}, store.ErrNotFound
		}
		return program.Record{}, store.Unavailable(op, err)
	}
	return rec, nil
}

func scanAll(rows pgx.Rows, op string) ([]program.Record, error) {
	defer rows.Close()

	records := make([]program.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, store.Unavailable(op, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable(op, err)
	}
	return records, nil
}
