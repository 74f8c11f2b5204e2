/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- File upload, listing, row views, locale override and deletion
- Alias table and rule set editing
- Report endpoints after a write
- Error mapping (400/404)
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/roster-engine/factory"
	"github.com/warp/roster-engine/generic"
	"github.com/warp/roster-engine/reconcile"
	"github.com/warp/roster-engine/store/sqlite"
)

var testToday = generic.NewDate(2025, time.June, 15)

type testServer struct {
	handler *Handler
	router  *chi.Mux
	reports *ReportService
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reports := NewReportService(store, reconcile.DefaultSettings(), nil)
	reports.Clock = generic.FixedClock{At: testToday.Time().Add(9 * time.Hour)}
	h := NewHandler(store, reports, nil)
	return &testServer{handler: h, router: NewRouter(h, RouterOptions{}), reports: reports}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(t *testing.T, name, content, locale string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	if locale != "" {
		require.NoError(t, mw.WriteField("locale", locale))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "2025-06-15", body["today"])
}

// =============================================================================
// FILES
// =============================================================================

func TestUploadFile_ListAndRows(t *testing.T) {
	// GIVEN: A rota export without an explicit locale
	s := setupTestServer(t)
	csv := "Staff No,Duty Date,Shift\n00123,13/06/2025,Day\n00123,02/06/2025,Night\n"

	// WHEN: Uploading it
	rec := s.upload(t, "rota.csv", csv, "")

	// THEN: It is stored with its headers and rows
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[FileDTO](t, rec)
	assert.Equal(t, "rota.csv", created.Name)
	assert.Equal(t, []string{"Staff No", "Duty Date", "Shift"}, created.Headers)
	assert.Equal(t, 2, created.Rows)
	assert.Empty(t, created.Locale)

	list := decode[[]FileDTO](t, s.do(t, http.MethodGet, "/api/files", nil))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	// AND: The raw view keeps the text, the normalized view carries ISO dates
	raw := decode[FileRowsDTO](t, s.do(t, http.MethodGet, "/api/files/"+created.ID+"/rows", nil))
	assert.Equal(t, "raw", raw.View)
	v, _ := raw.Rows[0].Get("Duty Date")
	assert.Equal(t, "13/06/2025", v.Text())

	norm := decode[FileRowsDTO](t, s.do(t, http.MethodGet, "/api/files/"+created.ID+"/rows?view=normalized", nil))
	assert.Equal(t, generic.LocaleDayFirst, norm.Locale)
	require.NotNil(t, norm.Detection)
	v, _ = norm.Rows[1].Get("Duty Date")
	assert.Equal(t, "2025-06-02", v.Text())

	bad := s.do(t, http.MethodGet, "/api/files/"+created.ID+"/rows?view=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestUploadFile_ExplicitLocale(t *testing.T) {
	s := setupTestServer(t)

	rec := s.upload(t, "register.csv", "Staff No,PIN Expiry\n00123,02/03/2026\n", "us")

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, generic.LocaleMonthFirst, decode[FileDTO](t, rec).Locale)
}

func TestUploadFile_Rejected(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name    string
		file    string
		content string
		locale  string
	}{
		{"unsupported extension", "notes.pdf", "x", ""},
		{"empty file", "empty.csv", "\n\n", ""},
		{"bad locale", "rota.csv", "A\n1\n", "martian"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.upload(t, tt.file, tt.content, tt.locale)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	// A request without the file field
	req := httptest.NewRequest(http.MethodPost, "/api/files", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetFileLocale_AndDelete(t *testing.T) {
	// GIVEN: An uploaded file
	s := setupTestServer(t)
	created := decode[FileDTO](t, s.upload(t, "a.csv", "Staff No,Duty Date\n1,01/02/2025\n", ""))

	// WHEN: Setting an explicit locale
	rec := s.do(t, http.MethodPut, "/api/files/"+created.ID+"/locale", SetLocaleRequest{Locale: "month-first"})

	// THEN: The file reports it
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, generic.LocaleMonthFirst, decode[FileDTO](t, rec).Locale)

	// AND: The normalized view follows it
	norm := decode[FileRowsDTO](t, s.do(t, http.MethodGet, "/api/files/"+created.ID+"/rows?view=normalized", nil))
	v, _ := norm.Rows[0].Get("Duty Date")
	assert.Equal(t, "2025-01-02", v.Text())

	// AND: Invalid locales and unknown files are rejected
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/api/files/"+created.ID+"/locale", SetLocaleRequest{Locale: "xx"}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPut, "/api/files/missing/locale", SetLocaleRequest{Locale: "uk"}).Code)

	// WHEN: Deleting it
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/files/"+created.ID, nil).Code)

	// THEN: It is gone
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/files/"+created.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/files/"+created.ID, nil).Code)
}

// =============================================================================
// ALIASES AND RULES
// =============================================================================

func TestAliases_ReplaceSaveDelete(t *testing.T) {
	s := setupTestServer(t)

	// GIVEN: The default table
	var table factory.AliasTableJSON
	require.NoError(t, json.Unmarshal([]byte(factory.DefaultAliasTableJSON()), &table))

	// WHEN: Replacing the table
	rec := s.do(t, http.MethodPut, "/api/aliases", table)

	// THEN: Every entry is stored with an ID, in order
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stored := decode[factory.AliasTableJSON](t, rec)
	require.Len(t, stored.Aliases, len(table.Aliases))
	assert.Equal(t, "Staff Number", stored.Aliases[0].Canonical)
	assert.NotEmpty(t, stored.Aliases[0].ID)

	// WHEN: Upserting one canonical name
	rec = s.do(t, http.MethodPost, "/api/aliases", factory.AliasJSON{Canonical: "Staff Number", Aliases: []string{"Badge"}})

	// THEN: The entry keeps its ID
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[factory.AliasJSON](t, rec)
	assert.Equal(t, stored.Aliases[0].ID, saved.ID)
	assert.Equal(t, []string{"Badge"}, saved.Aliases)

	// AND: Blank canonical names are rejected
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/aliases", factory.AliasJSON{Canonical: " "}).Code)

	// WHEN: Deleting it
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/aliases/"+saved.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/aliases/"+saved.ID, nil).Code)

	after := decode[factory.AliasTableJSON](t, s.do(t, http.MethodGet, "/api/aliases", nil))
	assert.Len(t, after.Aliases, len(table.Aliases)-1)
}

func TestRules_CreateListDelete(t *testing.T) {
	s := setupTestServer(t)

	// WHEN: Posting a valid rule set
	rec := s.do(t, http.MethodPost, "/api/rules", factory.RuleSetJSON{
		Name: "expiring",
		Rules: []factory.RuleJSON{
			{Column: "Valid To", Operator: "within_next_days", Operand: "30"},
			{Column: "Name", Operator: "is_not_blank"},
		},
	})

	// THEN: Both rules are stored under the set
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[factory.RuleSetJSON](t, rec)
	assert.Equal(t, "expiring", created.Name)
	require.Len(t, created.Rules, 2)

	sets := decode[RuleSetsDTO](t, s.do(t, http.MethodGet, "/api/rules", nil))
	assert.Len(t, sets.Sets["expiring"], 2)

	// AND: The report carries a (possibly empty) match list for the set
	matches := decode[MatchesDTO](t, s.do(t, http.MethodGet, "/api/matches?set=expiring", nil))
	assert.Contains(t, matches.Sets, "expiring")
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/matches?set=nope", nil).Code)

	// WHEN: Deleting a rule
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/rules/"+created.Rules[0].ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/rules/"+created.Rules[0].ID, nil).Code)
}

func TestRules_Invalid(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name string
		set  factory.RuleSetJSON
	}{
		{"unknown operator", factory.RuleSetJSON{Rules: []factory.RuleJSON{{Column: "A", Operator: "resembles"}}}},
		{"missing operand", factory.RuleSetJSON{Rules: []factory.RuleJSON{{Column: "A", Operator: "within_days"}}}},
		{"no rules", factory.RuleSetJSON{Name: "empty"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/rules", tt.set)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

// =============================================================================
// REPORT
// =============================================================================

func TestReport_FollowsWrites(t *testing.T) {
	// GIVEN: An empty store
	s := setupTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.handler.Store.ReplaceAliases(ctx, mustAliases(t)))

	empty := decode[NeedsRTWDTO](t, s.do(t, http.MethodGet, "/api/compliance/needs-rtw", nil))
	assert.Empty(t, empty.Staff)
	assert.Equal(t, testToday, empty.Today)

	// WHEN: Uploading sickness followed by a duty
	require.Equal(t, http.StatusCreated, s.upload(t, "sick.csv", "Staff No,Absence From,Absence To\n00123,01/06/2025,05/06/2025\n", "").Code)
	require.Equal(t, http.StatusCreated, s.upload(t, "rota.csv", "Staff No,Duty Date,Shift\n00123-2,07/06/2025,Day\n", "").Code)

	// THEN: The next read reflects the new revision
	needs := decode[NeedsRTWDTO](t, s.do(t, http.MethodGet, "/api/compliance/needs-rtw", nil))
	assert.Equal(t, []string{"00123"}, needs.Staff)

	all := decode[ComplianceDTO](t, s.do(t, http.MethodGet, "/api/compliance?needs_rtw=true", nil))
	require.Len(t, all.Facts, 1)
	assert.True(t, all.Facts[0].HadShiftAfterSickness)
	assert.NotEmpty(t, all.ComputedAt)

	one := decode[StaffComplianceDTO](t, s.do(t, http.MethodGet, "/api/compliance/00123-2", nil))
	assert.Equal(t, "00123", one.Fact.Staff)
	assert.True(t, one.NeedsRTW)
}

func TestStaffCompliance_Errors(t *testing.T) {
	s := setupTestServer(t)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/compliance/abc", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/compliance/99999", nil).Code)
}

func TestResetDatabase(t *testing.T) {
	s := setupTestServer(t)
	require.Equal(t, http.StatusCreated, s.upload(t, "a.csv", "A\n1\n", "").Code)

	rec := s.do(t, http.MethodPost, "/api/scenarios/reset", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]FileDTO](t, s.do(t, http.MethodGet, "/api/files", nil)))
}

func mustAliases(t *testing.T) []generic.AliasRule {
	t.Helper()
	aliases, err := factory.ParseAliasTable(factory.DefaultAliasTableJSON())
	require.NoError(t, err)
	return aliases
}
