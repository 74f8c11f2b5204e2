package factory

import (
	"encoding/json"
	"strconv"
)

// DefaultAliasTableJSON returns the alias table shipped with a new install.
// It covers the header spellings seen in common HR and rostering exports.
func DefaultAliasTableJSON() string {
	tj := map[string]interface{}{
		"aliases": []map[string]interface{}{
			{"canonical": "Staff Number", "aliases": []string{"Staff No", "Staff #", "Staff ID", "Person Number"}},
			{"canonical": "Employee Number", "aliases": []string{"Emp No", "Emp #", "Employee ID", "Payroll Number"}},
			{"canonical": "Assignment Number", "aliases": []string{"Assignment No", "Assignment #", "Assign No"}},
			{"canonical": "Name", "aliases": []string{"Full Name", "Employee Name", "Staff Name"}},
			{"canonical": "Shift Date", "aliases": []string{"Duty Date", "Roster Date", "Date"}},
			{"canonical": "Shift Type", "aliases": []string{"Duty", "Shift", "Shift Code"}},
			{"canonical": "Sickness Start", "aliases": []string{"Absence Start", "Absence From", "Sick From", "Start Date"}},
			{"canonical": "Sickness End", "aliases": []string{"Absence End", "Absence To", "Sick To", "End Date"}},
			{"canonical": "Sickness Reason", "aliases": []string{"Absence Reason", "Reason"}},
			{"canonical": "RTW", "aliases": []string{"RTW Completed", "Return To Work", "RTW Interview"}},
			{"canonical": "RTW Date", "aliases": []string{"RTW Interview Date", "Return To Work Date"}},
			{"canonical": "Valid To", "aliases": []string{"Registration Expiry", "Expiry Date", "Renewal Date", "PIN Expiry"}},
		},
	}
	b, _ := json.MarshalIndent(tj, "", "  ")
	return string(b)
}

// RegistrationExpiryRuleJSON returns a rule set flagging professional
// registrations that expire within the next days days.
func RegistrationExpiryRuleJSON(days int) string {
	rj := map[string]interface{}{
		"name": "registration-expiry",
		"rules": []map[string]interface{}{
			{"column": "Name", "operator": "is_not_blank"},
			{"column": "Valid To", "operator": "within_next_days", "operand": strconv.Itoa(days)},
		},
	}
	b, _ := json.MarshalIndent(rj, "", "  ")
	return string(b)
}

// RecentSicknessRuleJSON returns a rule set matching sickness absences that
// ended within the last days days.
func RecentSicknessRuleJSON(days int) string {
	rj := map[string]interface{}{
		"name": "recent-sickness",
		"rules": []map[string]interface{}{
			{"column": "Sickness End", "operator": "within_days", "operand": strconv.Itoa(days)},
		},
	}
	b, _ := json.MarshalIndent(rj, "", "  ")
	return string(b)
}

// MissingRTWRuleJSON returns a rule set matching rows whose RTW cell is blank.
func MissingRTWRuleJSON() string {
	rj := map[string]interface{}{
		"name": "missing-rtw",
		"rules": []map[string]interface{}{
			{"column": "Sickness End", "operator": "is_not_blank"},
			{"column": "RTW", "operator": "is_blank"},
		},
	}
	b, _ := json.MarshalIndent(rj, "", "  ")
	return string(b)
}
