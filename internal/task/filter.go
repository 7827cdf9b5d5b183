package task

import (
	"sort"
	"strings"
)

// InsuranceFilter is the tri-state insurance-claim constraint.
type InsuranceFilter int

const (
	InsuranceAny      InsuranceFilter = iota // unconstrained
	InsuranceRequired                        // claim must be present
	InsuranceAbsent                          // claim must be empty
)

// FilterSpec selects which tasks appear in a view. Zero value matches all.
type FilterSpec struct {
	Status      Status // empty or StatusAll matches every status
	Search      string // case-insensitive substring of title or description
	Dealership  string // case-insensitive substring of dealership
	Insurance   InsuranceFilter
	MinPriority int // 0 = unfiltered; absent priority counts as 0
}

// StatusAll matches every task status in a FilterSpec.
const StatusAll Status = "all"

// SortKey selects the view comparator.
type SortKey string

const (
	SortByPriority SortKey = "priority" // descending, absent = 0 (default)
	SortByDate     SortKey = "date"     // descending by updatedAt
	SortByStatus   SortKey = "status"   // ascending lexicographic
)

// Apply filters and sorts tasks into a view list. It is pure: the input
// slice is never mutated and applying the same filter twice is idempotent.
// The sort is stable, so equal keys keep their relative order.
func Apply(tasks []Task, filter FilterSpec, key SortKey) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if filter.matches(t) {
			out = append(out, t)
		}
	}

	switch key {
	case SortByDate:
		sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	case SortByStatus:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].AIPriority > out[j].AIPriority })
	}
	return out
}

func (f FilterSpec) matches(t Task) bool {
	if f.Status != "" && f.Status != StatusAll && t.Status != f.Status {
		return false
	}
	if f.Search != "" && !containsFold(t.Title, f.Search) && !containsFold(t.Description, f.Search) {
		return false
	}
	if f.Dealership != "" && !containsFold(t.Dealership, f.Dealership) {
		return false
	}
	switch f.Insurance {
	case InsuranceRequired:
		if t.InsuranceClaim == "" {
			return false
		}
	case InsuranceAbsent:
		if t.InsuranceClaim != "" {
			return false
		}
	}
	return t.AIPriority >= f.MinPriority
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
