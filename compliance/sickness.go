package compliance

import (
	"sort"
	"strings"
)

// MergeSickness folds raw ranges into episodes. Ranges are sorted by start
// and a range joins the running episode when it starts no later than the
// day after the episode ends (and, with mergeOnReason, has the same reason
// ignoring case). Ends only ever extend. The input is not modified.
func MergeSickness(raw []SicknessRange, mergeOnReason bool) []SicknessRange {
	if len(raw) == 0 {
		return nil
	}
	sorted := make([]SicknessRange, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var out []SicknessRange
	running := cloneRange(sorted[0])
	for _, next := range sorted[1:] {
		if running.Period().Adjoins(next.Start) && (!mergeOnReason || sameReason(running.Reason, next.Reason)) {
			running = absorb(running, next)
			continue
		}
		out = append(out, running)
		running = cloneRange(next)
	}
	return append(out, running)
}

func absorb(running, next SicknessRange) SicknessRange {
	switch {
	case next.End.After(running.End):
		running.End = next.End
		running.OpenEnded = next.OpenEnded
	case next.End.Equal(running.End):
		running.OpenEnded = running.OpenEnded || next.OpenEnded
	}
	if running.Reason == "" {
		running.Reason = next.Reason
	}
	running.Count += partCount(next)
	running.Sources = append(running.Sources, next.Sources...)
	return running
}

func cloneRange(r SicknessRange) SicknessRange {
	r.Count = partCount(r)
	r.Sources = append(r.Sources[:0:0], r.Sources...)
	return r
}

func partCount(r SicknessRange) int {
	if r.Count < 1 {
		return 1
	}
	return r.Count
}

func sameReason(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
