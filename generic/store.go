/*
store.go - Persistence interface for files, alias tables and alert rules

PURPOSE:
  Defines the interface between the hosts (API, CLI) and the database.
  The engine never touches a Store: hosts load an immutable snapshot through
  it and hand the snapshot to reconcile.Run.

KEY INTERFACES:
  FileStore:  Ingested source files and their rows
  AliasStore: The ordered alias table
  RuleStore:  Alert rules grouped into named sets
  Store:      All three, plus Revision for cache invalidation

ORDERING:
  Alias rules and alert rules keep insertion order. The alias table relies on
  it (last write wins on conflicting aliases); rule order is insignificant to
  evaluation but preserved for display.

REVISION:
  Every successful write bumps Revision(). Hosts cache computed reports
  keyed on (revision, today) and recompute when either changes.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for tests and the CLI

SEE ALSO:
  - types.go: SourceFile, AliasRule, AlertRule
  - reconcile/reconcile.go: Consumes the snapshot
*/
package generic

import "context"

// =============================================================================
// FILE STORE
// =============================================================================

type FileStore interface {
	SaveFile(ctx context.Context, file SourceFile) error
	GetFile(ctx context.Context, id string) (*SourceFile, error)
	// ListFiles returns files with their rows, oldest first.
	ListFiles(ctx context.Context) ([]SourceFile, error)
	SetFileLocale(ctx context.Context, id string, locale Locale) error
	DeleteFile(ctx context.Context, id string) error
}

// =============================================================================
// ALIAS STORE
// =============================================================================

type AliasStore interface {
	// SaveAlias inserts or replaces the rule with the same canonical name.
	SaveAlias(ctx context.Context, rule AliasRule) error
	ListAliases(ctx context.Context) ([]AliasRule, error)
	// ReplaceAliases swaps the whole table atomically.
	ReplaceAliases(ctx context.Context, rules []AliasRule) error
	DeleteAlias(ctx context.Context, id string) error
}

// =============================================================================
// RULE STORE
// =============================================================================

type RuleStore interface {
	SaveRule(ctx context.Context, rule AlertRule) error
	// SaveRules saves a whole batch or nothing, with a single revision bump.
	SaveRules(ctx context.Context, rules []AlertRule) error
	// ListRules returns rules of one set, or of every set when set is "".
	ListRules(ctx context.Context, set string) ([]AlertRule, error)
	DeleteRule(ctx context.Context, id string) error
}

// CheckRuleShape rejects a rule no store should hold: one without a column
// or an operator.
func CheckRuleShape(rule AlertRule) error {
	switch {
	case rule.Column == "":
		return &RuleValidationError{Rule: rule, Reason: "missing column"}
	case rule.Operator == "":
		return &RuleValidationError{Rule: rule, Reason: "missing operator"}
	}
	return nil
}

// =============================================================================
// STORE - Everything a host needs
// =============================================================================

type Store interface {
	FileStore
	AliasStore
	RuleStore

	// Revision increases on every successful write.
	Revision() uint64

	// Reset clears all data.
	Reset(ctx context.Context) error
}

// Snapshot is an immutable copy of everything the engine reads.
type Snapshot struct {
	Revision uint64
	Files    []SourceFile
	Aliases  []AliasRule
	Rules    []AlertRule
}

// LoadSnapshot reads the full engine input from a store.
func LoadSnapshot(ctx context.Context, s Store) (Snapshot, error) {
	rev := s.Revision()
	files, err := s.ListFiles(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	aliases, err := s.ListAliases(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	rules, err := s.ListRules(ctx, "")
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Revision: rev, Files: files, Aliases: aliases, Rules: rules}, nil
}
