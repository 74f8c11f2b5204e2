/*
errors.go - Centralized error types for the host layers

PURPOSE:
  The engine itself never fails: bad cells become diagnostics. Errors only
  exist where the engine meets the outside world: storage, ingestion and
  user-authored configuration. All of those share the types below.

ERROR CATEGORIES:
  1. Not found - Missing files, rules, aliases
  2. Validation - Malformed rules, aliases, locales
  3. Ingestion - Unsupported or empty files

USAGE:
  if errors.Is(err, generic.ErrFileNotFound) {
      // 404
  }

SEE ALSO:
  - store.go: Returns the not-found errors
  - factory/factory.go: Returns the validation errors
  - api/handlers.go: Maps errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrFileNotFound is returned when a referenced source file doesn't exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrRuleNotFound is returned when a referenced alert rule doesn't exist.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrAliasNotFound is returned when a referenced alias rule doesn't exist.
	ErrAliasNotFound = errors.New("alias rule not found")

	// ErrInvalidRule is returned when an alert rule cannot be evaluated.
	ErrInvalidRule = errors.New("invalid alert rule")

	// ErrInvalidAlias is returned when an alias rule is malformed.
	ErrInvalidAlias = errors.New("invalid alias rule")

	// ErrInvalidLocale is returned for locale names other than day-first/month-first.
	ErrInvalidLocale = errors.New("invalid locale")

	// ErrUnsupportedFormat is returned when ingestion cannot read a file type.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptyFile is returned when a file has no header row.
	ErrEmptyFile = errors.New("file has no header row")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RuleValidationError explains why a rule was rejected.
type RuleValidationError struct {
	Rule   AlertRule
	Reason string
}

func (e *RuleValidationError) Error() string {
	return fmt.Sprintf("invalid rule %s %s %q: %s", e.Rule.Column, e.Rule.Operator, e.Rule.Operand, e.Reason)
}

func (e *RuleValidationError) Unwrap() error {
	return ErrInvalidRule
}

// AliasConflictError reports an alias claimed by two canonical names.
// The later claim wins; the error is informational for editors.
type AliasConflictError struct {
	Alias     string
	Previous  string
	Canonical string
}

func (e *AliasConflictError) Error() string {
	return fmt.Sprintf("alias %q moved from %q to %q", e.Alias, e.Previous, e.Canonical)
}

func (e *AliasConflictError) Unwrap() error {
	return ErrInvalidAlias
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRule) ||
		errors.Is(err, ErrInvalidAlias) ||
		errors.Is(err, ErrInvalidLocale) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrEmptyFile)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFileNotFound) ||
		errors.Is(err, ErrRuleNotFound) ||
		errors.Is(err, ErrAliasNotFound)
}
