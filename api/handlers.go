/*
handlers.go - HTTP API handlers for the roster compliance engine

PURPOSE:
  Exposes ingestion, configuration and the reconciliation report via REST.
  Handles HTTP request/response and JSON serialization, and delegates to
  the store, the factory and the cached report.

ENDPOINTS:
  Files:
    GET    /api/files                  List files
    POST   /api/files                  Upload a CSV/XLSX (multipart "file", optional "locale")
    GET    /api/files/{id}             File metadata
    GET    /api/files/{id}/rows        Rows; ?view=normalized for canonical dates
    PUT    /api/files/{id}/locale      Set or clear the explicit locale
    DELETE /api/files/{id}             Delete a file

  Aliases:
    GET    /api/aliases                Alias table
    PUT    /api/aliases                Replace the table
    POST   /api/aliases                Upsert one canonical name
    DELETE /api/aliases/{id}           Delete one entry

  Rules:
    GET    /api/rules                  Rule sets (?set= filters)
    POST   /api/rules                  Add a rule set document
    DELETE /api/rules/{id}             Delete a rule

  Report:
    GET    /api/compliance             Every compliance fact
    GET    /api/compliance/needs-rtw   People owed an RTW interview
    GET    /api/compliance/{staff}     One person, with diagnostics
    GET    /api/matches                Rule matches per set (?set= filters)
    GET    /api/expiry                 Expiry horizon buckets
    GET    /api/diagnostics            Locale decisions, diagnostics, alias conflicts

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, unreadable files
  - 404: Resource not found
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - report.go: Cached report
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/warp/roster-engine/compliance"
	"github.com/warp/roster-engine/dates"
	"github.com/warp/roster-engine/factory"
	"github.com/warp/roster-engine/generic"
	"github.com/warp/roster-engine/ingest"
	"github.com/warp/roster-engine/reconcile"
	"github.com/warp/roster-engine/roster"
	"github.com/warp/roster-engine/rules"
	"go.uber.org/zap"
)

// maxUploadBytes caps a single upload.
const maxUploadBytes = 32 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   generic.Store
	Reports *ReportService
	Logger  *zap.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler over store.
func NewHandler(store generic.Store, reports *ReportService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Store: store, Reports: reports, Logger: logger}
}

// Health reports liveness and the store revision.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"revision": h.Store.Revision(),
		"today":    h.Reports.Today(),
	})
}

// =============================================================================
// FILE HANDLERS
// =============================================================================

// ListFiles returns all files without rows.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.Store.ListFiles(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list files", err)
		return
	}
	writeJSON(w, http.StatusOK, toFileDTOs(files))
}

// UploadFile ingests a multipart upload.
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart upload", err)
		return
	}
	part, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing form field \"file\"", err)
		return
	}
	defer part.Close()

	locale, err := generic.ParseLocale(r.FormValue("locale"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid locale", err)
		return
	}

	file, err := ingest.Read(part, header.Filename, ingest.Options{Locale: locale, Sheet: r.FormValue("sheet")})
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file", err)
		return
	}
	if err := h.Store.SaveFile(r.Context(), file); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save file", err)
		return
	}

	h.Logger.Info("file ingested",
		zap.String("id", file.ID),
		zap.String("name", file.Name),
		zap.Int("rows", len(file.Rows)),
		zap.String("locale", string(file.Locale)))
	writeJSON(w, http.StatusCreated, toFileDTO(file))
}

// GetFile returns one file's metadata.
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	file, err := h.Store.GetFile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, "Failed to get file", err)
		return
	}
	writeJSON(w, http.StatusOK, toFileDTO(*file))
}

// GetFileRows returns the rows as stored or with dates normalized under the
// file's effective locale.
func (h *Handler) GetFileRows(w http.ResponseWriter, r *http.Request) {
	file, err := h.Store.GetFile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, "Failed to get file", err)
		return
	}

	view := r.URL.Query().Get("view")
	switch view {
	case "", "raw":
		writeJSON(w, http.StatusOK, FileRowsDTO{FileID: file.ID, View: "raw", Locale: file.Locale, Rows: nonNilRows(file.Rows)})
	case "normalized":
		s := h.Reports.Settings
		rows, loc, det := dates.NormalizeFile(*file, s.Thresholds, s.DefaultLocale)
		writeJSON(w, http.StatusOK, FileRowsDTO{FileID: file.ID, View: view, Locale: loc, Detection: &det, Rows: nonNilRows(rows)})
	default:
		writeError(w, http.StatusBadRequest, "view must be raw or normalized", nil)
	}
}

// SetFileLocale overrides locale detection for a file.
func (h *Handler) SetFileLocale(w http.ResponseWriter, r *http.Request) {
	var req SetLocaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	locale, err := generic.ParseLocale(req.Locale)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid locale", err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.Store.SetFileLocale(r.Context(), id, locale); err != nil {
		writeStoreError(w, "Failed to set locale", err)
		return
	}
	file, err := h.Store.GetFile(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to get file", err)
		return
	}
	writeJSON(w, http.StatusOK, toFileDTO(*file))
}

// DeleteFile removes a file and its rows.
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteFile(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, "Failed to delete file", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ALIAS HANDLERS
// =============================================================================

// ListAliases returns the alias table.
func (h *Handler) ListAliases(w http.ResponseWriter, r *http.Request) {
	aliases, err := h.Store.ListAliases(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list aliases", err)
		return
	}
	writeJSON(w, http.StatusOK, factory.AliasTableToJSON(aliases))
}

// ReplaceAliases swaps in a whole alias table document.
func (h *Handler) ReplaceAliases(w http.ResponseWriter, r *http.Request) {
	var req factory.AliasTableJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	aliases, err := factory.FromAliasTableJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid alias table", err)
		return
	}
	if err := h.Store.ReplaceAliases(r.Context(), aliases); err != nil {
		writeStoreError(w, "Failed to replace aliases", err)
		return
	}
	h.ListAliases(w, r)
}

// SaveAlias inserts or updates the entry for one canonical name.
func (h *Handler) SaveAlias(w http.ResponseWriter, r *http.Request) {
	var req factory.AliasJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rule, err := factory.AliasFromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid alias rule", err)
		return
	}
	if err := h.Store.SaveAlias(r.Context(), rule); err != nil {
		writeStoreError(w, "Failed to save alias rule", err)
		return
	}

	aliases, err := h.Store.ListAliases(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list aliases", err)
		return
	}
	for _, a := range aliases {
		if a.Canonical == rule.Canonical {
			writeJSON(w, http.StatusOK, factory.AliasJSON{ID: a.ID, Canonical: a.Canonical, Aliases: a.Aliases})
			return
		}
	}
	writeError(w, http.StatusInternalServerError, "Saved alias rule not found", nil)
}

// DeleteAlias removes one alias table entry.
func (h *Handler) DeleteAlias(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteAlias(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, "Failed to delete alias rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RULE HANDLERS
// =============================================================================

// ListRules returns rules grouped by set.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListRules(r.Context(), r.URL.Query().Get("set"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rules", err)
		return
	}
	sets := make(map[string][]generic.AlertRule)
	for _, rule := range list {
		sets[rule.Set] = append(sets[rule.Set], rule)
	}
	writeJSON(w, http.StatusOK, RuleSetsDTO{Sets: sets})
}

// CreateRules validates a rule set document and stores each rule.
func (h *Handler) CreateRules(w http.ResponseWriter, r *http.Request) {
	var req factory.RuleSetJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	set, err := factory.FromRuleSetJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule set", err)
		return
	}
	if len(set.Rules) == 0 {
		writeError(w, http.StatusBadRequest, "Rule set has no rules", nil)
		return
	}

	// All or nothing: a failed set leaves no partial rules behind.
	if err := h.Store.SaveRules(r.Context(), set.Rules); err != nil {
		writeStoreError(w, "Failed to save rules", err)
		return
	}
	saved, err := h.Store.ListRules(r.Context(), set.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rules", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.RuleSetToJSON(set.Name, saved))
}

// DeleteRule removes one rule.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteRule(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, "Failed to delete rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

func (h *Handler) report(w http.ResponseWriter, r *http.Request) (reconcile.Report, ReportMetaDTO, bool) {
	report, err := h.Reports.Current(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute report", err)
		return reconcile.Report{}, ReportMetaDTO{}, false
	}
	return report, reportMeta(report, h.Reports.ComputedAt()), true
}

// GetCompliance lists every compliance fact.
func (h *Handler) GetCompliance(w http.ResponseWriter, r *http.Request) {
	report, meta, ok := h.report(w, r)
	if !ok {
		return
	}
	facts := make([]compliance.ComplianceFact, 0, len(report.Facts))
	for _, f := range report.Facts {
		facts = append(facts, f)
	}
	sort.Slice(facts, func(i, j int) bool { return facts[i].Staff < facts[j].Staff })

	if r.URL.Query().Get("needs_rtw") == "true" {
		filtered := facts[:0]
		for _, f := range facts {
			if f.NeedsRTW() {
				filtered = append(filtered, f)
			}
		}
		facts = filtered
	}
	writeJSON(w, http.StatusOK, ComplianceDTO{ReportMetaDTO: meta, Facts: facts, NeedsRTW: report.NeedsRTW})
}

// GetNeedsRTW lists identities owed a return-to-work interview.
func (h *Handler) GetNeedsRTW(w http.ResponseWriter, r *http.Request) {
	report, meta, ok := h.report(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, NeedsRTWDTO{ReportMetaDTO: meta, Staff: report.NeedsRTW})
}

// GetStaffCompliance returns one person. Any raw form of the identity works:
// "00123-2" resolves to 00123.
func (h *Handler) GetStaffCompliance(w http.ResponseWriter, r *http.Request) {
	staff := chi.URLParam(r, "staff")
	if roster.NormalizeIdentity(staff) == "" {
		writeError(w, http.StatusBadRequest, "Staff identity has no digits", nil)
		return
	}
	report, meta, ok := h.report(w, r)
	if !ok {
		return
	}
	fact, found := report.Fact(staff)
	if !found {
		writeError(w, http.StatusNotFound, "Staff member not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, StaffComplianceDTO{
		ReportMetaDTO: meta,
		Fact:          fact,
		NeedsRTW:      fact.NeedsRTW(),
		Diagnostics:   report.DiagnosticsFor(staff),
	})
}

// GetMatches returns rule matches per set.
func (h *Handler) GetMatches(w http.ResponseWriter, r *http.Request) {
	report, meta, ok := h.report(w, r)
	if !ok {
		return
	}
	sets := report.Matches
	if set := r.URL.Query().Get("set"); set != "" {
		matches, found := report.Matches[set]
		if !found {
			writeError(w, http.StatusNotFound, "Rule set not found", generic.ErrRuleNotFound)
			return
		}
		sets = map[string][]rules.MatchResult{set: matches}
	}
	writeJSON(w, http.StatusOK, MatchesDTO{ReportMetaDTO: meta, Sets: sets})
}

// GetExpiry returns the expiry horizon buckets.
func (h *Handler) GetExpiry(w http.ResponseWriter, r *http.Request) {
	report, meta, ok := h.report(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ExpiryDTO{ReportMetaDTO: meta, Buckets: report.Expiry})
}

// GetDiagnostics returns locale decisions, the diagnostic trail and alias
// table conflicts.
func (h *Handler) GetDiagnostics(w http.ResponseWriter, r *http.Request) {
	report, meta, ok := h.report(w, r)
	if !ok {
		return
	}
	diags := report.Diagnostics
	if reason := r.URL.Query().Get("reason"); reason != "" {
		diags = []generic.Diagnostic{}
		for _, d := range report.Diagnostics {
			if strings.EqualFold(string(d.Reason), reason) {
				diags = append(diags, d)
			}
		}
	}
	conflicts := report.AliasConflicts
	if conflicts == nil {
		conflicts = []string{}
	}
	writeJSON(w, http.StatusOK, DiagnosticsDTO{
		ReportMetaDTO:  meta,
		Files:          report.Files,
		Diagnostics:    diags,
		AliasConflicts: conflicts,
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.setScenario("")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeStoreError maps domain errors to 404/400, anything else to 500.
func writeStoreError(w http.ResponseWriter, message string, err error) {
	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func nonNilRows(rows []generic.Row) []generic.Row {
	if rows == nil {
		return []generic.Row{}
	}
	return rows
}
