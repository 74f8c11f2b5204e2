/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	exports for demos and tests. Every date is relative to the report's
	"today", so a scenario loaded on any day shows the same outcome.

AVAILABLE SCENARIOS:

	sickness-rtw:     Sickness log, rota and RTW log; one person owes an RTW
	registrations-us: Month-first registration export with expiring PINs
	messy-exports:    Header variants and bad cells that end up as diagnostics

HOW SCENARIOS WORK:
 1. Reset store (clear all data)
 2. Install the default alias table
 3. Build CSV exports and read them through ingest, like an upload
 4. Add rule sets via the factory presets

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "sickness-rtw"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase
  - factory/presets.go: Alias table and rule set presets
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/warp/roster-engine/dates"
	"github.com/warp/roster-engine/factory"
	"github.com/warp/roster-engine/generic"
	"github.com/warp/roster-engine/ingest"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "sickness-rtw",
		Name:        "Sickness and RTW",
		Description: "Sub-assignments worked after sickness without an RTW, a dated RTW inside the post-window, an open-ended absence",
	},
	{
		ID:          "registrations-us",
		Name:        "US Registration Export",
		Description: "Month-first registration dates with PINs expiring in 30/60/90 days and one already expired",
	},
	{
		ID:          "messy-exports",
		Name:        "Messy Exports",
		Description: "Header spelling variants, an alias conflict, impossible and reversed dates, unrecognised shift codes",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	current := h.scenario()
	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current, Description: "Currently loaded scenario"})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	loader, ok := map[string]func(context.Context, generic.Date) error{
		"sickness-rtw":     h.loadSicknessRTWScenario,
		"registrations-us": h.loadRegistrationsScenario,
		"messy-exports":    h.loadMessyExportsScenario,
	}[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID, loader); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// LoadScenarioByID resets the store, installs the default alias table and
// runs loader for the report's current date.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string, loader func(context.Context, generic.Date) error) error {
	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	h.setScenario("")

	aliases, err := factory.ParseAliasTable(factory.DefaultAliasTableJSON())
	if err != nil {
		return err
	}
	if err := h.Store.ReplaceAliases(ctx, aliases); err != nil {
		return err
	}
	if err := loader(ctx, h.Reports.Today()); err != nil {
		return err
	}

	h.setScenario(id)
	h.Logger.Info("scenario loaded")
	return nil
}

func (h *Handler) scenario() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentScenario
}

func (h *Handler) setScenario(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentScenario = id
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSicknessRTWScenario(ctx context.Context, today generic.Date) error {
	uk := func(offset int) string { return dates.Format(today.AddDays(offset), generic.LocaleDayFirst) }

	sickness := csvDoc([]string{"Staff No", "Absence From", "Absence To", "Reason"},
		[]string{"00123-1", uk(-20), uk(-10), "Flu"},
		[]string{"00456", uk(-30), uk(-25), "Back pain"},
		[]string{"00789", uk(-5), "", "Stress"},
	)
	rota := csvDoc([]string{"Assignment No", "Duty Date", "Shift"},
		[]string{"00123-2", uk(-8), "Day"},
		[]string{"00123-2", uk(-7), "REST"},
		[]string{"00123-2", uk(2), "Night"},
		[]string{"00456", uk(-22), "Long Day"},
		[]string{"00789", uk(1), "Day"},
	)
	rtw := csvDoc([]string{"Staff No", "RTW Completed", "RTW Interview Date"},
		[]string{"00456", "Yes", uk(-24)},
	)

	for _, f := range []struct{ name, body string }{
		{"sickness.csv", sickness},
		{"rota.csv", rota},
		{"rtw.csv", rtw},
	} {
		if err := h.saveCSV(ctx, f.name, f.body, generic.LocaleUnknown); err != nil {
			return err
		}
	}
	return h.saveRuleSets(ctx, factory.RecentSicknessRuleJSON(28), factory.MissingRTWRuleJSON())
}

func (h *Handler) loadRegistrationsScenario(ctx context.Context, today generic.Date) error {
	us := func(offset int) string { return dates.Format(today.AddDays(offset), generic.LocaleMonthFirst) }

	register := csvDoc([]string{"Staff Number", "Full Name", "PIN Expiry"},
		[]string{"00123", "Ann Example", us(10)},
		[]string{"00456", "Bo Example", us(45)},
		[]string{"00789", "Cy Example", us(-3)},
		[]string{"01011", "", us(5)},
		[]string{"01213", "Di Example", us(200)},
	)
	if err := h.saveCSV(ctx, "registrations.csv", register, generic.LocaleMonthFirst); err != nil {
		return err
	}
	return h.saveRuleSets(ctx, factory.RegistrationExpiryRuleJSON(30))
}

func (h *Handler) loadMessyExportsScenario(ctx context.Context, today generic.Date) error {
	uk := func(offset int) string { return dates.Format(today.AddDays(offset), generic.LocaleDayFirst) }

	// "Staff #" moves to Employee Number: the editor sees a conflict warning.
	if err := h.Store.SaveAlias(ctx, generic.AliasRule{Canonical: "Employee Number", Aliases: []string{"Emp No", "Emp #", "Employee ID", "Payroll Number", "Staff #"}}); err != nil {
		return err
	}

	sickness := csvDoc([]string{"Staff #", "Sick From", "Sick To"},
		[]string{"00321", "31/02/2025", uk(-3)},
		[]string{"", uk(-10), uk(-9)},
		[]string{"00321", uk(-1), uk(-4)},
	)
	rota := csvDoc([]string{"Emp No", "Roster Date", "Shift Code"},
		[]string{"00321", uk(0), "Training"},
		[]string{"00321", uk(-2), "OFF"},
	)
	if err := h.saveCSV(ctx, "sickness-export.csv", sickness, generic.LocaleUnknown); err != nil {
		return err
	}
	return h.saveCSV(ctx, "rota-export.csv", rota, generic.LocaleUnknown)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) saveCSV(ctx context.Context, name, body string, locale generic.Locale) error {
	file, err := ingest.ReadCSV(strings.NewReader(body), name, ingest.Options{Locale: locale})
	if err != nil {
		return err
	}
	return h.Store.SaveFile(ctx, file)
}

func (h *Handler) saveRuleSets(ctx context.Context, docs ...string) error {
	for _, doc := range docs {
		set, err := factory.ParseRuleSet(doc)
		if err != nil {
			return err
		}
		if err := h.Store.SaveRules(ctx, set.Rules); err != nil {
			return err
		}
	}
	return nil
}

func csvDoc(header []string, rows ...[]string) string {
	var b strings.Builder
	b.WriteString(strings.Join(header, ","))
	b.WriteByte('\n')
	for _, row := range rows {
		b.WriteString(strings.Join(row, ","))
		b.WriteByte('\n')
	}
	return b.String()
}
