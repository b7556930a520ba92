// Package sqlite provides a SQLite-backed program store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/smartstudy-abroad/smartstudy/internal/normalize"
	"github.com/smartstudy-abroad/smartstudy/internal/program"
	"github.com/smartstudy-abroad/smartstudy/internal/store"
	"github.com/smartstudy-abroad/smartstudy/internal/store/sqlite/migrations"

	_ "modernc.org/sqlite"
)

const columns = `university, normalized_name, degree, field, country, tuition_fee,
	gpa_requirement, english_requirement, test_requirements, scholarships,
	deadline_spring, deadline_summer, deadline_fall, program_duration,
	data_year, created_at, updated_at`

// Store persists program records in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ store.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite program store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func applyMigrations(db *sql.DB, fsys fs.FS) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		var applied int
		if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE name = ?`, name).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied > 0 {
			continue
		}

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`, name, toMillis(time.Now())); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) ready(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return store.Unavailable("sqlite", errors.New("storage is not configured"))
	}
	if err := ctx.Err(); err != nil {
		return store.Unavailable("sqlite", err)
	}
	return nil
}

// FindOne returns the record with the exact normalized name and degree whose
// field contains the requested field. An exact field match wins over a
// containment match.
func (s *Store) FindOne(ctx context.Context, key program.Key) (program.Record, error) {
	if err := s.ready(ctx); err != nil {
		return program.Record{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+columns+`
		   FROM programs
		  WHERE normalized_name = ?
		    AND degree = ?
		    AND instr(field_key, ?) > 0
		  ORDER BY (field_key = ?) DESC, updated_at DESC
		  LIMIT 1`,
		key.NormalizedName, string(key.Degree), key.Field, key.Field,
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
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+columns+`
		   FROM programs
		  WHERE (instr(normalized_name, ?) > 0 OR instr(?, normalized_name) > 0)
		    AND degree = ?
		    AND instr(field_key, ?) > 0
		  ORDER BY (field_key = ?) DESC, updated_at DESC
		  LIMIT 1`,
		key.NormalizedName, key.NormalizedName, string(key.Degree), key.Field, key.Field,
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

	row := s.sqlDB.QueryRowContext(ctx,
		`INSERT INTO programs (
		   normalized_name, degree, field_key, university, field, country,
		   tuition_fee, gpa_requirement, english_requirement, test_requirements,
		   scholarships, deadline_spring, deadline_summer, deadline_fall,
		   program_duration, data_year, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (normalized_name, degree, field_key) DO UPDATE SET
		   university          = CASE WHEN excluded.university <> '' THEN excluded.university ELSE programs.university END,
		   field               = CASE WHEN excluded.field <> '' THEN excluded.field ELSE programs.field END,
		   country             = CASE WHEN excluded.country <> '' THEN excluded.country ELSE programs.country END,
		   tuition_fee         = CASE WHEN excluded.tuition_fee <> '' THEN excluded.tuition_fee ELSE programs.tuition_fee END,
		   gpa_requirement     = CASE WHEN excluded.gpa_requirement <> '' THEN excluded.gpa_requirement ELSE programs.gpa_requirement END,
		   english_requirement = CASE WHEN excluded.english_requirement <> '' THEN excluded.english_requirement ELSE programs.english_requirement END,
		   test_requirements   = CASE WHEN excluded.test_requirements <> '' THEN excluded.test_requirements ELSE programs.test_requirements END,
		   scholarships        = CASE WHEN excluded.scholarships <> '' THEN excluded.scholarships ELSE programs.scholarships END,
		   deadline_spring     = CASE WHEN excluded.deadline_spring <> '' THEN excluded.deadline_spring ELSE programs.deadline_spring END,
		   deadline_summer     = CASE WHEN excluded.deadline_summer <> '' THEN excluded.deadline_summer ELSE programs.deadline_summer END,
		   deadline_fall       = CASE WHEN excluded.deadline_fall <> '' THEN excluded.deadline_fall ELSE programs.deadline_fall END,
		   program_duration    = CASE WHEN excluded.program_duration <> '' THEN excluded.program_duration ELSE programs.program_duration END,
		   data_year           = excluded.data_year,
		   updated_at          = excluded.updated_at
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
		toMillis(rec.CreatedAt),
		toMillis(rec.UpdatedAt),
	)
	return scanOne(row, "upsert program")
}

// FindAll returns every stored record.
func (s *Store) FindAll(ctx context.Context) ([]program.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
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
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+columns+`
		   FROM programs
		  WHERE instr(lower(university), ?) > 0
		     OR instr(normalized_name, ?) > 0
		     OR instr(field_key, ?) > 0
		     OR instr(lower(country), ?) > 0
		  ORDER BY normalized_name, degree, field_key`,
		term, term, term, term,
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
	res, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM programs WHERE normalized_name = ? AND degree = ? AND field_key = ?`,
		key.NormalizedName, string(key.Degree), key.Field,
	)
	if err != nil {
		return false, store.Unavailable("delete program", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, store.Unavailable("delete program", err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (program.Record, error) {
	var (
		rec       program.Record
		degree    string
		createdAt int64
		updatedAt int64
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
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return program.Record{}, err
	}
	rec.Degree = program.Degree(degree)
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}

func scanOne(row *sql.Row, op string) (program.Record, error) {
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return program.Record{}, store.ErrNotFound
		}
		return program.Record{}, store.Unavailable(op, err)
	}
	return rec, nil
}

func scanAll(rows *sql.Rows, op string) ([]program.Record, error) {
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
