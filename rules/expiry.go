package rules

import (
	"sort"
	"strings"

	"github.com/warp/roster-engine/columns"
	"github.com/warp/roster-engine/dates"
	"github.com/warp/roster-engine/generic"
	"github.com/warp/roster-engine/roster"
)

const (
	DefaultNameField   = "Name"
	DefaultExpiryField = "Valid To"
)

// DefaultHorizons are the registration expiry buckets, in days.
var DefaultHorizons = []int{30, 60, 90}

// ExpiryScanner lists registrations expiring within a horizon.
type ExpiryScanner struct {
	Table         *columns.Table
	Identity      roster.IdentityResolver
	NameField     string
	ExpiryField   string
	Today         generic.Date
	DefaultLocale generic.Locale
}

// ExpiryEntry is one registration record. DaysUntil is negative once expired.
type ExpiryEntry struct {
	Identity  string         `json:"identity"`
	Name      string         `json:"name"`
	ValidTo   generic.Date   `json:"valid_to"`
	DaysUntil int            `json:"days_until"`
	Expired   bool           `json:"expired"`
	Source    generic.RowRef `json:"source"`
}

// HorizonBucket groups entries whose smallest enclosing horizon is Days.
type HorizonBucket struct {
	Days    int           `json:"days"`
	Entries []ExpiryEntry `json:"entries"`
}

// Scan returns every entry with DaysUntil <= horizonDays, sorted by
// DaysUntil then identity. Rows lacking a name or a parseable expiry date
// are skipped.
func (s ExpiryScanner) Scan(rows []generic.Row, horizonDays int) []ExpiryEntry {
	nameField, expiryField := s.NameField, s.ExpiryField
	if nameField == "" {
		nameField = DefaultNameField
	}
	if expiryField == "" {
		expiryField = DefaultExpiryField
	}

	out := []ExpiryEntry{}
	for _, row := range rows {
		nameVal, ok := s.Table.Resolve(row, nameField)
		if !ok || nameVal.IsNull() || strings.TrimSpace(nameVal.Text()) == "" {
			continue
		}
		expVal, ok := s.Table.Resolve(row, expiryField)
		if !ok {
			continue
		}
		loc := row.Locale
		if loc == generic.LocaleUnknown {
			loc = s.DefaultLocale
		}
		validTo, ok := dates.ParseValue(expVal, loc)
		if !ok {
			continue
		}
		days := generic.DaysBetween(s.Today, validTo)
		if days > horizonDays {
			continue
		}
		out = append(out, ExpiryEntry{
			Identity:  s.Identity.Extract(row),
			Name:      strings.TrimSpace(nameVal.Text()),
			ValidTo:   validTo,
			DaysUntil: days,
			Expired:   days < 0,
			Source:    row.Ref,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysUntil != out[j].DaysUntil {
			return out[i].DaysUntil < out[j].DaysUntil
		}
		return out[i].Identity < out[j].Identity
	})
	return out
}

// ScanHorizons scans once up to the largest horizon and places each entry
// in the smallest horizon that contains it. Buckets come back in ascending
// order and are present even when empty.
func (s ExpiryScanner) ScanHorizons(rows []generic.Row, horizons []int) []HorizonBucket {
	if len(horizons) == 0 {
		horizons = DefaultHorizons
	}
	hs := append([]int(nil), horizons...)
	sort.Ints(hs)

	buckets := make([]HorizonBucket, len(hs))
	for i, h := range hs {
		buckets[i] = HorizonBucket{Days: h, Entries: []ExpiryEntry{}}
	}
	for _, entry := range s.Scan(rows, hs[len(hs)-1]) {
		for i, h := range hs {
			if entry.DaysUntil <= h {
				buckets[i].Entries = append(buckets[i].Entries, entry)
				break
			}
		}
	}
	return buckets
}
