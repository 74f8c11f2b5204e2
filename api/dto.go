/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Files:
    FileDTO, FileRowsDTO, SetLocaleRequest

  Report:
    ComplianceDTO, StaffComplianceDTO, MatchesDTO, ExpiryDTO, DiagnosticsDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers and in the factory package. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/factory.go: Alias table and rule set JSON types
*/
package api

import (
	"time"

	"github.com/warp/roster-engine/compliance"
	"github.com/warp/roster-engine/dates"
	"github.com/warp/roster-engine/generic"
	"github.com/warp/roster-engine/reconcile"
	"github.com/warp/roster-engine/rules"
)

// =============================================================================
// FILES
// =============================================================================

// FileDTO describes a stored file without its rows.
type FileDTO struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Locale    generic.Locale `json:"locale,omitempty"` // explicit locale; empty means detected
	Headers   []string       `json:"headers"`
	Rows      int            `json:"rows"`
	CreatedAt string         `json:"created_at"`
}

// FileRowsDTO is a file's rows, raw or normalized.
type FileRowsDTO struct {
	FileID    string           `json:"file_id"`
	View      string           `json:"view"` // "raw" or "normalized"
	Locale    generic.Locale   `json:"locale,omitempty"`
	Detection *dates.Detection `json:"detection,omitempty"`
	Rows      []generic.Row    `json:"rows"`
}

// SetLocaleRequest sets or clears (empty string) a file's explicit locale.
type SetLocaleRequest struct {
	Locale string `json:"locale"`
}

// =============================================================================
// REPORT
// =============================================================================

// ReportMetaDTO identifies the report a response was computed from.
type ReportMetaDTO struct {
	Today      generic.Date `json:"today"`
	ComputedAt string       `json:"computed_at,omitempty"`
}

// ComplianceDTO lists every person's compliance fact, sorted by identity.
type ComplianceDTO struct {
	ReportMetaDTO
	Facts    []compliance.ComplianceFact `json:"facts"`
	NeedsRTW []string                    `json:"needs_rtw"`
}

// StaffComplianceDTO is one person's fact and diagnostic trail.
type StaffComplianceDTO struct {
	ReportMetaDTO
	Fact        compliance.ComplianceFact `json:"fact"`
	NeedsRTW    bool                      `json:"needs_rtw"`
	Diagnostics []generic.Diagnostic      `json:"diagnostics"`
}

// NeedsRTWDTO lists the people owed a return-to-work interview.
type NeedsRTWDTO struct {
	ReportMetaDTO
	Staff []string `json:"staff"`
}

// MatchesDTO holds rule matches per rule set.
type MatchesDTO struct {
	ReportMetaDTO
	Sets map[string][]rules.MatchResult `json:"sets"`
}

// ExpiryDTO holds expiry horizon buckets.
type ExpiryDTO struct {
	ReportMetaDTO
	Buckets []rules.HorizonBucket `json:"buckets"`
}

// DiagnosticsDTO is the diagnostic trail plus alias table warnings.
type DiagnosticsDTO struct {
	ReportMetaDTO
	Files          []reconcile.FileSummary `json:"files"`
	Diagnostics    []generic.Diagnostic    `json:"diagnostics"`
	AliasConflicts []string                `json:"alias_conflicts"`
}

// =============================================================================
// RULES
// =============================================================================

// RuleSetsDTO lists rule sets by name.
type RuleSetsDTO struct {
	Sets map[string][]generic.AlertRule `json:"sets"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toFileDTO(f generic.SourceFile) FileDTO {
	headers := f.Headers
	if headers == nil {
		headers = []string{}
	}
	return FileDTO{
		ID:        f.ID,
		Name:      f.Name,
		Locale:    f.Locale,
		Headers:   headers,
		Rows:      len(f.Rows),
		CreatedAt: f.CreatedAt.Format(time.RFC3339),
	}
}

func toFileDTOs(files []generic.SourceFile) []FileDTO {
	dtos := make([]FileDTO, len(files))
	for i, f := range files {
		dtos[i] = toFileDTO(f)
	}
	return dtos
}

func reportMeta(r reconcile.Report, computedAt time.Time) ReportMetaDTO {
	meta := ReportMetaDTO{Today: r.Today}
	if !computedAt.IsZero() {
		meta.ComputedAt = computedAt.Format(time.RFC3339)
	}
	return meta
}
