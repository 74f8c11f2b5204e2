// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/warp/roster-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	files    map[string]generic.SourceFile
	aliases  []generic.AliasRule
	rules    []generic.AlertRule
	revision atomic.Uint64
}

func NewMemory() *Memory {
	return &Memory{files: make(map[string]generic.SourceFile)}
}

func (m *Memory) Revision() uint64 { return m.revision.Load() }

func (m *Memory) bump() { m.revision.Add(1) }

// =============================================================================
// FILES
// =============================================================================

func (m *Memory) SaveFile(_ context.Context, file generic.SourceFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	m.files[file.ID] = cloneFile(file)
	m.bump()
	return nil
}

func (m *Memory) GetFile(_ context.Context, id string) (*generic.SourceFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[id]
	if !ok {
		return nil, generic.ErrFileNotFound
	}
	out := cloneFile(f)
	return &out, nil
}

func (m *Memory) ListFiles(_ context.Context) ([]generic.SourceFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]generic.SourceFile, 0, len(m.files))
	for _, f := range m.files {
		out = append(out, cloneFile(f))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) SetFileLocale(_ context.Context, id string, locale generic.Locale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return generic.ErrFileNotFound
	}
	f.Locale = locale
	for i := range f.Rows {
		f.Rows[i].Locale = locale
	}
	m.files[id] = f
	m.bump()
	return nil
}

func (m *Memory) DeleteFile(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[id]; !ok {
		return generic.ErrFileNotFound
	}
	delete(m.files, id)
	m.bump()
	return nil
}

// cloneFile copies rows so callers can never mutate stored state.
func cloneFile(f generic.SourceFile) generic.SourceFile {
	out := f
	out.Headers = append([]string(nil), f.Headers...)
	out.Rows = make([]generic.Row, len(f.Rows))
	for i, r := range f.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// =============================================================================
// ALIASES
// =============================================================================

func (m *Memory) SaveAlias(_ context.Context, rule generic.AliasRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.aliases {
		if existing.Canonical == rule.Canonical {
			rule.ID = existing.ID
			m.aliases[i] = cloneAlias(rule)
			m.bump()
			return nil
		}
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	m.aliases = append(m.aliases, cloneAlias(rule))
	m.bump()
	return nil
}

func (m *Memory) ListAliases(_ context.Context) ([]generic.AliasRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]generic.AliasRule, len(m.aliases))
	for i, a := range m.aliases {
		out[i] = cloneAlias(a)
	}
	return out, nil
}

func (m *Memory) ReplaceAliases(_ context.Context, rules []generic.AliasRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aliases = m.aliases[:0]
	for _, r := range rules {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		m.aliases = append(m.aliases, cloneAlias(r))
	}
	m.bump()
	return nil
}

func (m *Memory) DeleteAlias(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.aliases {
		if a.ID == id {
			m.aliases = append(m.aliases[:i], m.aliases[i+1:]...)
			m.bump()
			return nil
		}
	}
	return generic.ErrAliasNotFound
}

func cloneAlias(a generic.AliasRule) generic.AliasRule {
	a.Aliases = append([]string(nil), a.Aliases...)
	return a
}

// =============================================================================
// RULES
// =============================================================================

func (m *Memory) SaveRule(ctx context.Context, rule generic.AlertRule) error {
	return m.SaveRules(ctx, []generic.AlertRule{rule})
}

// SaveRules checks every rule before touching the list.
func (m *Memory) SaveRules(_ context.Context, rules []generic.AlertRule) error {
	for _, rule := range rules {
		if err := generic.CheckRuleShape(rule); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rule := range rules {
		m.putRule(rule)
	}
	m.bump()
	return nil
}

func (m *Memory) putRule(rule generic.AlertRule) {
	if rule.Set == "" {
		rule.Set = generic.DefaultRuleSet
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	for i, existing := range m.rules {
		if existing.ID == rule.ID {
			m.rules[i] = rule
			return
		}
	}
	m.rules = append(m.rules, rule)
}

func (m *Memory) ListRules(_ context.Context, set string) ([]generic.AlertRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []generic.AlertRule
	for _, r := range m.rules {
		if set == "" || r.Set == set {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) DeleteRule(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rules {
		if r.ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			m.bump()
			return nil
		}
	}
	return generic.ErrRuleNotFound
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = make(map[string]generic.SourceFile)
	m.aliases = nil
	m.rules = nil
	m.bump()
	return nil
}
