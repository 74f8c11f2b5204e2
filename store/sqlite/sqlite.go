/*
Package sqlite provides a SQLite-backed implementation of generic.Store.

PURPOSE:
  Persists everything the engine reads between runs: ingested files with
  their rows, the alias table and the alert rule sets. The engine itself
  never sees this package; hosts take a generic.Snapshot through it.

KEY TABLES:
  source_files: One row per ingested file (name, explicit locale, headers)
  file_rows:    Data rows, cells as a JSON object, cascade-deleted with the file
  alias_rules:  Canonical name -> aliases, in insertion order
  alert_rules:  Predicates grouped by set name, in insertion order
  store_meta:   The revision counter

REVISION:
  Every write bumps store_meta.revision inside its own transaction. The
  value is mirrored in memory so Revision() never touches the database.

MIGRATIONS:
  Versioned SQL files are embedded and applied with golang-migrate on New().
  Open() skips them for the `roster migrate` command.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and a single connection so that
  ":memory:" databases are shared by every query.

USAGE:
  store, err := sqlite.New("./data/roster.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
  - migrations/: Schema
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/warp/roster-engine/generic"
	"go.uber.org/zap"
)

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements generic.Store using SQLite.
type Store struct {
	db       *sql.DB
	mu       sync.RWMutex
	revision atomic.Uint64
	log      *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger routes migration output to l.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New opens the database at dbPath and applies pending migrations.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	store, err := Open(dbPath, opts...)
	if err != nil {
		return nil, err
	}
	if err := store.MigrateUp(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Open opens the database without migrating it.
func Open(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Revision returns the number of writes so far.
func (s *Store) Revision() uint64 { return s.revision.Load() }

func (s *Store) loadRevision() error {
	var rev int64
	if err := s.db.QueryRow("SELECT revision FROM store_meta WHERE id = 1").Scan(&rev); err != nil {
		return fmt.Errorf("failed to read revision: %w", err)
	}
	s.revision.Store(uint64(rev))
	return nil
}

// write runs fn in a transaction and bumps the revision when it commits.
func (s *Store) write(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	var rev int64
	if err := tx.QueryRowContext(ctx,
		"UPDATE store_meta SET revision = revision + 1 WHERE id = 1 RETURNING revision",
	).Scan(&rev); err != nil {
		return fmt.Errorf("failed to bump revision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.revision.Store(uint64(rev))
	return nil
}

// =============================================================================
// FILE STORE
// =============================================================================

// SaveFile inserts the file, replacing any file with the same ID.
func (s *Store) SaveFile(ctx context.Context, file generic.SourceFile) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}
	headers, err := json.Marshal(file.Headers)
	if err != nil {
		return fmt.Errorf("failed to encode headers: %w", err)
	}

	return s.write(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM source_files WHERE id = ?", file.ID); err != nil {
			return fmt.Errorf("failed to replace file: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO source_files (id, name, locale, headers_json, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, file.ID, file.Name, string(file.Locale), string(headers), file.CreatedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("failed to insert file: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, "INSERT INTO file_rows (file_id, idx, cells_json) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("failed to prepare row insert: %w", err)
		}
		defer stmt.Close()
		for i, row := range file.Rows {
			cells, err := json.Marshal(row.Cells)
			if err != nil {
				return fmt.Errorf("failed to encode row %d: %w", i, err)
			}
			if _, err := stmt.ExecContext(ctx, file.ID, i, string(cells)); err != nil {
				return fmt.Errorf("failed to insert row %d: %w", i, err)
			}
		}
		return nil
	})
}

func (s *Store) GetFile(ctx context.Context, id string) (*generic.SourceFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, err := s.queryFiles(ctx, "WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, generic.ErrFileNotFound
	}
	return &files[0], nil
}

// ListFiles returns every file with its rows, oldest first.
func (s *Store) ListFiles(ctx context.Context) ([]generic.SourceFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryFiles(ctx, "")
}

func (s *Store) queryFiles(ctx context.Context, where string, args ...any) ([]generic.SourceFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, locale, headers_json, created_at
		FROM source_files `+where+`
		ORDER BY created_at ASC, id ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}

	var files []generic.SourceFile
	for rows.Next() {
		var (
			f               generic.SourceFile
			locale, headers string
			createdAt       string
		)
		if err := rows.Scan(&f.ID, &f.Name, &locale, &headers, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		f.Locale = generic.Locale(locale)
		if err := json.Unmarshal([]byte(headers), &f.Headers); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to decode headers of %s: %w", f.ID, err)
		}
		f.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		files = append(files, f)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows are read after the cursor above is closed: the pool holds one connection.
	for i := range files {
		if files[i].Rows, err = s.queryRows(ctx, files[i]); err != nil {
			return nil, err
		}
	}
	return files, nil
}

func (s *Store) queryRows(ctx context.Context, f generic.SourceFile) ([]generic.Row, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT idx, cells_json FROM file_rows WHERE file_id = ? ORDER BY idx ASC", f.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rows.Close()

	var out []generic.Row
	for rows.Next() {
		var (
			idx   int
			cells string
		)
		if err := rows.Scan(&idx, &cells); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := generic.Row{
			Ref:    generic.RowRef{FileID: f.ID, FileName: f.Name, Index: idx},
			Locale: f.Locale,
		}
		if err := json.Unmarshal([]byte(cells), &row.Cells); err != nil {
			return nil, fmt.Errorf("failed to decode row %s: %w", row.Ref, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// SetFileLocale records an explicit locale; unknown clears it.
func (s *Store) SetFileLocale(ctx context.Context, id string, locale generic.Locale) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE source_files SET locale = ? WHERE id = ?", string(locale), id)
		if err != nil {
			return fmt.Errorf("failed to update locale: %w", err)
		}
		return requireAffected(res, generic.ErrFileNotFound)
	})
}

func (s *Store) DeleteFile(ctx context.Context, id string) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM source_files WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete file: %w", err)
		}
		return requireAffected(res, generic.ErrFileNotFound)
	})
}

// =============================================================================
// ALIAS STORE
// =============================================================================

// SaveAlias inserts the rule, or replaces the aliases of the rule with the
// same canonical name while keeping its ID and position.
func (s *Store) SaveAlias(ctx context.Context, rule generic.AliasRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	return s.write(ctx, func(tx *sql.Tx) error {
		return insertAlias(ctx, tx, rule)
	})
}

func insertAlias(ctx context.Context, tx *sql.Tx, rule generic.AliasRule) error {
	aliases, err := json.Marshal(nonNil(rule.Aliases))
	if err != nil {
		return fmt.Errorf("failed to encode aliases: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO alias_rules (id, canonical, aliases_json) VALUES (?, ?, ?)
		ON CONFLICT(canonical) DO UPDATE SET aliases_json = excluded.aliases_json
	`, rule.ID, rule.Canonical, string(aliases))
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: id %s already names another canonical column", generic.ErrInvalidAlias, rule.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to save alias rule: %w", err)
	}
	return nil
}

func (s *Store) ListAliases(ctx context.Context) ([]generic.AliasRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, canonical, aliases_json FROM alias_rules ORDER BY seq ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query aliases: %w", err)
	}
	defer rows.Close()

	out := []generic.AliasRule{}
	for rows.Next() {
		var (
			r       generic.AliasRule
			aliases string
		)
		if err := rows.Scan(&r.ID, &r.Canonical, &aliases); err != nil {
			return nil, fmt.Errorf("failed to scan alias rule: %w", err)
		}
		if err := json.Unmarshal([]byte(aliases), &r.Aliases); err != nil {
			return nil, fmt.Errorf("failed to decode aliases of %s: %w", r.Canonical, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplaceAliases swaps the whole table in one transaction.
func (s *Store) ReplaceAliases(ctx context.Context, rules []generic.AliasRule) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM alias_rules"); err != nil {
			return fmt.Errorf("failed to clear aliases: %w", err)
		}
		for _, r := range rules {
			if r.ID == "" {
				r.ID = uuid.NewString()
			}
			if err := insertAlias(ctx, tx, r); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) DeleteAlias(ctx context.Context, id string) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM alias_rules WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete alias rule: %w", err)
		}
		return requireAffected(res, generic.ErrAliasNotFound)
	})
}

// =============================================================================
// RULE STORE
// =============================================================================

// SaveRule inserts the rule or updates the rule with the same ID in place.
func (s *Store) SaveRule(ctx context.Context, rule generic.AlertRule) error {
	return s.SaveRules(ctx, []generic.AlertRule{rule})
}

// SaveRules upserts every rule in one transaction; any failure rolls the
// whole batch back.
func (s *Store) SaveRules(ctx context.Context, rules []generic.AlertRule) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		for _, r := range rules {
			if err := upsertRule(ctx, tx, r); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertRule(ctx context.Context, tx *sql.Tx, rule generic.AlertRule) error {
	if err := generic.CheckRuleShape(rule); err != nil {
		return err
	}
	if rule.Set == "" {
		rule.Set = generic.DefaultRuleSet
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO alert_rules (id, set_name, column_name, operator, operand) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			set_name = excluded.set_name,
			column_name = excluded.column_name,
			operator = excluded.operator,
			operand = excluded.operand
	`, rule.ID, rule.Set, rule.Column, string(rule.Operator), rule.Operand)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

// ListRules returns rules of one set, or of every set when set is "".
func (s *Store) ListRules(ctx context.Context, set string) ([]generic.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, set_name, column_name, operator, operand FROM alert_rules"
	var args []any
	if set != "" {
		query += " WHERE set_name = ?"
		args = append(args, set)
	}
	rows, err := s.db.QueryContext(ctx, query+" ORDER BY seq ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var out []generic.AlertRule
	for rows.Next() {
		var (
			r  generic.AlertRule
			op string
		)
		if err := rows.Scan(&r.ID, &r.Set, &r.Column, &op, &r.Operand); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		r.Operator = generic.Operator(op)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM alert_rules WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete rule: %w", err)
		}
		return requireAffected(res, generic.ErrRuleNotFound)
	})
}

// =============================================================================
// RESET
// =============================================================================

// Reset clears all data. The revision keeps counting.
func (s *Store) Reset(ctx context.Context) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"file_rows", "source_files", "alias_rules", "alert_rules"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// migrateLogger adapts zap to migrate.Logger.
type migrateLogger struct {
	l *zap.Logger
}

func (m migrateLogger) Printf(format string, v ...interface{}) {
	m.l.Sugar().Infof("[migrate] "+format, v...)
}

func (m migrateLogger) Verbose() bool { return false }
