package task

import (
	"testing"
	"time"
)

func viewTasks() []Task {
	base := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	return []Task{
		{ID: "1", Title: "Replace brake pads", Description: "Front axle", Status: StatusPending,
			Dealership: "Main St Motors", InsuranceClaim: "A123", AIPriority: 8, UpdatedAt: base.Add(3 * time.Hour)},
		{ID: "2", Title: "Oil change", Description: "5W-30 synthetic", Status: StatusCompleted,
			Dealership: "Hilltop Auto", AIPriority: 2, UpdatedAt: base.Add(1 * time.Hour)},
		{ID: "3", Title: "Windshield crack", Description: "File claim with insurer", Status: StatusInProgress,
			InsuranceClaim: "B999", AIPriority: 8, UpdatedAt: base.Add(2 * time.Hour)},
		{ID: "4", Title: "Detail interior", Description: "", Status: StatusPending,
			UpdatedAt: base},
	}
}

func ids(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func assertIDs(t *testing.T, got []Task, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("expected %v, got %v", want, g)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, g)
		}
	}
}

func TestApply_StatusFilter(t *testing.T) {
	got := Apply(viewTasks(), FilterSpec{Status: StatusPending}, SortByPriority)
	assertIDs(t, got, "1", "4")

	all := Apply(viewTasks(), FilterSpec{Status: StatusAll}, SortByPriority)
	if len(all) != 4 {
		t.Errorf(`expected "all" to match everything, got %d`, len(all))
	}
}

func TestApply_SearchMatchesTitleOrDescription(t *testing.T) {
	got := Apply(viewTasks(), FilterSpec{Search: "BRAKE"}, SortByPriority)
	assertIDs(t, got, "1")

	got = Apply(viewTasks(), FilterSpec{Search: "claim"}, SortByPriority)
	assertIDs(t, got, "3")
}

func TestApply_DealershipSubstring(t *testing.T) {
	got := Apply(viewTasks(), FilterSpec{Dealership: "main st"}, SortByPriority)
	assertIDs(t, got, "1")
}

func TestApply_InsuranceTriState(t *testing.T) {
	req := Apply(viewTasks(), FilterSpec{Insurance: InsuranceRequired}, SortByPriority)
	assertIDs(t, req, "1", "3")

	absent := Apply(viewTasks(), FilterSpec{Insurance: InsuranceAbsent}, SortByPriority)
	assertIDs(t, absent, "2", "4")
}

func TestApply_MinPriority(t *testing.T) {
	got := Apply(viewTasks(), FilterSpec{MinPriority: 5}, SortByPriority)
	assertIDs(t, got, "1", "3")

	// Absent priority counts as 0 and passes an unfiltered threshold.
	got = Apply(viewTasks(), FilterSpec{MinPriority: 0}, SortByPriority)
	if len(got) != 4 {
		t.Errorf("minPriority 0 should be unfiltered, got %d tasks", len(got))
	}
}

func TestApply_SortPriorityStable(t *testing.T) {
	got := Apply(viewTasks(), FilterSpec{}, SortByPriority)
	// 1 and 3 tie at 8; 1 comes first because it did in the input.
	assertIDs(t, got, "1", "3", "2", "4")
}

func TestApply_SortByDate(t *testing.T) {
	got := Apply(viewTasks(), FilterSpec{}, SortByDate)
	assertIDs(t, got, "1", "3", "2", "4")
}

func TestApply_SortByStatus(t *testing.T) {
	got := Apply(viewTasks(), FilterSpec{}, SortByStatus)
	// completed < in-progress < pending, lexicographically.
	if got[0].Status != StatusCompleted {
		t.Errorf("expected completed first, got %s", got[0].Status)
	}
	if got[len(got)-1].Status != StatusPending {
		t.Errorf("expected pending last, got %s", got[len(got)-1].Status)
	}
}

func TestApply_Idempotent(t *testing.T) {
	spec := FilterSpec{Status: StatusAll, MinPriority: 1}
	once := Apply(viewTasks(), spec, SortByPriority)
	twice := Apply(once, spec, SortByPriority)
	assertIDs(t, twice, ids(once)...)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	in := viewTasks()
	Apply(in, FilterSpec{}, SortByPriority)
	if in[0].ID != "1" || in[3].ID != "4" {
		t.Error("input order changed")
	}
}

func TestClampPriority(t *testing.T) {
	cases := []struct{ in, want int }{
		{15, 10}, {10, 10}, {1, 1}, {0, 1}, {-3, 1}, {7, 7},
	}
	for _, c := range cases {
		if got := ClampPriority(c.in); got != c.want {
			t.Errorf("ClampPriority(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
