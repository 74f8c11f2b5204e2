/*
Package factory provides JSON to Go conversion for alias tables and rule sets.

PURPOSE:
  Alias tables and alert rule sets are edited by people, stored as JSON and
  uploaded through the API or the CLI. The factory turns those documents into
  validated generic.AliasRule and generic.AlertRule values.

JSON SCHEMA:
  Rule set:
  {
    "name": "registration-expiry",
    "rules": [
      {"column": "Valid To", "operator": "within_next_days", "operand": "30"},
      {"column": "Name", "operator": "is_not_blank"}
    ]
  }

  Alias table:
  {
    "aliases": [
      {"canonical": "Staff Number", "aliases": ["Staff No", "Emp #"]}
    ]
  }

  Either document may also be a bare JSON array of its entries.

USAGE:
  set, err := factory.ParseRuleSet(factory.RegistrationExpiryRuleJSON(30))
  aliases, err := factory.ParseAliasTable(factory.DefaultAliasTableJSON())

SEE ALSO:
  - presets.go: Built-in alias table and rule sets
  - rules/evaluate.go: Rule validation and evaluation
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/warp/roster-engine/generic"
	"github.com/warp/roster-engine/rules"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleSetJSON is the JSON representation of a named rule list.
type RuleSetJSON struct {
	Name  string     `json:"name"`
	Rules []RuleJSON `json:"rules"`
}

// RuleJSON is one alert rule.
type RuleJSON struct {
	ID       string `json:"id,omitempty"`
	Column   string `json:"column"`
	Operator string `json:"operator"`
	Operand  string `json:"operand,omitempty"`
}

// AliasTableJSON is the JSON representation of an alias table.
type AliasTableJSON struct {
	Aliases []AliasJSON `json:"aliases"`
}

// AliasJSON is one canonical name and its spellings.
type AliasJSON struct {
	ID        string   `json:"id,omitempty"`
	Canonical string   `json:"canonical"`
	Aliases   []string `json:"aliases"`
}

// RuleSet is a parsed, validated rule list.
type RuleSet struct {
	Name  string
	Rules []generic.AlertRule
}

// =============================================================================
// RULE SETS
// =============================================================================

// ParseRuleSet parses and validates a rule set document. Rules take the
// set's name; an unnamed set is the default set.
func ParseRuleSet(jsonStr string) (RuleSet, error) {
	var rj RuleSetJSON
	if isArray(jsonStr) {
		if err := json.Unmarshal([]byte(jsonStr), &rj.Rules); err != nil {
			return RuleSet{}, fmt.Errorf("failed to parse rule set JSON: %w: %v", generic.ErrInvalidRule, err)
		}
	} else if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return RuleSet{}, fmt.Errorf("failed to parse rule set JSON: %w: %v", generic.ErrInvalidRule, err)
	}
	return FromRuleSetJSON(rj)
}

// FromRuleSetJSON converts and validates a decoded rule set.
func FromRuleSetJSON(rj RuleSetJSON) (RuleSet, error) {
	name := strings.TrimSpace(rj.Name)
	if name == "" {
		name = generic.DefaultRuleSet
	}
	set := RuleSet{Name: name, Rules: make([]generic.AlertRule, 0, len(rj.Rules))}
	for i, r := range rj.Rules {
		rule := generic.AlertRule{
			ID:       r.ID,
			Set:      name,
			Column:   strings.TrimSpace(r.Column),
			Operator: generic.Operator(strings.ToLower(strings.TrimSpace(r.Operator))),
			Operand:  r.Operand,
		}
		if err := rules.Validate(rule); err != nil {
			return RuleSet{}, fmt.Errorf("rule %d: %w", i, err)
		}
		set.Rules = append(set.Rules, rule)
	}
	return set, nil
}

// RuleSetToJSON converts rules of one set back to their JSON form.
func RuleSetToJSON(name string, list []generic.AlertRule) RuleSetJSON {
	out := RuleSetJSON{Name: name, Rules: make([]RuleJSON, 0, len(list))}
	for _, r := range list {
		out.Rules = append(out.Rules, RuleJSON{ID: r.ID, Column: r.Column, Operator: string(r.Operator), Operand: r.Operand})
	}
	return out
}

// =============================================================================
// ALIAS TABLES
// =============================================================================

// ParseAliasTable parses an alias table. Entries without a canonical name
// are rejected; duplicate canonical entries are kept and merge at lookup.
func ParseAliasTable(jsonStr string) ([]generic.AliasRule, error) {
	var tj AliasTableJSON
	if isArray(jsonStr) {
		if err := json.Unmarshal([]byte(jsonStr), &tj.Aliases); err != nil {
			return nil, fmt.Errorf("failed to parse alias table JSON: %w: %v", generic.ErrInvalidAlias, err)
		}
	} else if err := json.Unmarshal([]byte(jsonStr), &tj); err != nil {
		return nil, fmt.Errorf("failed to parse alias table JSON: %w: %v", generic.ErrInvalidAlias, err)
	}
	return FromAliasTableJSON(tj)
}

// FromAliasTableJSON converts and validates a decoded alias table.
func FromAliasTableJSON(tj AliasTableJSON) ([]generic.AliasRule, error) {
	out := make([]generic.AliasRule, 0, len(tj.Aliases))
	for i, a := range tj.Aliases {
		rule, err := AliasFromJSON(a)
		if err != nil {
			return nil, fmt.Errorf("alias %d: %w", i, err)
		}
		out = append(out, rule)
	}
	return out, nil
}

// AliasFromJSON converts a single entry, trimming and deduplicating aliases.
func AliasFromJSON(a AliasJSON) (generic.AliasRule, error) {
	canonical := strings.TrimSpace(a.Canonical)
	if canonical == "" {
		return generic.AliasRule{}, fmt.Errorf("%w: canonical name is required", generic.ErrInvalidAlias)
	}
	rule := generic.AliasRule{ID: a.ID, Canonical: canonical, Aliases: []string{}}
	seen := map[string]bool{canonical: true}
	for _, alias := range a.Aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" || seen[alias] {
			continue
		}
		seen[alias] = true
		rule.Aliases = append(rule.Aliases, alias)
	}
	return rule, nil
}

// AliasTableToJSON converts alias rules back to their JSON form.
func AliasTableToJSON(list []generic.AliasRule) AliasTableJSON {
	out := AliasTableJSON{Aliases: make([]AliasJSON, 0, len(list))}
	for _, a := range list {
		out.Aliases = append(out.Aliases, AliasJSON{ID: a.ID, Canonical: a.Canonical, Aliases: a.Aliases})
	}
	return out
}

func isArray(jsonStr string) bool {
	return bytes.HasPrefix(bytes.TrimSpace([]byte(jsonStr)), []byte("["))
}
