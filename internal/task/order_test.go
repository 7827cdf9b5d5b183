package task

import "testing"

func orderedTasks() []Task {
	return []Task{
		{ID: "a", Title: "A", Order: 1},
		{ID: "b", Title: "B", Order: 2},
		{ID: "c", Title: "C", Order: 3},
		{ID: "d", Title: "D", Order: 4},
	}
}

func findTask(t *testing.T, tasks []Task, id string) Task {
	t.Helper()
	for _, task := range tasks {
		if task.ID == id {
			return task
		}
	}
	t.Fatalf("task %s not found", id)
	return Task{}
}

func TestReorder_MovedTaskTakesTarget(t *testing.T) {
	got := Reorder(orderedTasks(), "d", 2)

	if findTask(t, got, "d").Order != 2 {
		t.Errorf("moved task: expected order 2, got %d", findTask(t, got, "d").Order)
	}
	// Everything previously at order >= 2 shifts up by one.
	if findTask(t, got, "b").Order != 3 {
		t.Errorf("b: expected order 3, got %d", findTask(t, got, "b").Order)
	}
	if findTask(t, got, "c").Order != 4 {
		t.Errorf("c: expected order 4, got %d", findTask(t, got, "c").Order)
	}
	if findTask(t, got, "a").Order != 1 {
		t.Errorf("a: expected order 1 unchanged, got %d", findTask(t, got, "a").Order)
	}
}

func TestReorder_ResultSortedAscending(t *testing.T) {
	got := Reorder(orderedTasks(), "c", 1)
	for i := 1; i < len(got); i++ {
		if got[i-1].Order > got[i].Order {
			t.Fatalf("not sorted at %d: %d > %d", i, got[i-1].Order, got[i].Order)
		}
	}
	if got[0].ID != "c" {
		t.Errorf("expected c first after moving to order 1, got %s", got[0].ID)
	}
}

func TestReorder_DoesNotMutateInput(t *testing.T) {
	in := orderedTasks()
	Reorder(in, "d", 1)
	if in[0].Order != 1 || in[3].Order != 4 {
		t.Error("input slice was mutated")
	}
}

// Duplicate order values (tasks created in the same instant, or imported
// data) are tolerated, never repaired: reorder performs no compacting
// renumber, and the stable sort keeps ties in their prior relative position.
func TestReorder_DuplicateOrdersTolerated(t *testing.T) {
	in := []Task{
		{ID: "a", Order: 1},
		{ID: "b", Order: 5},
		{ID: "c", Order: 5}, // collides with b
		{ID: "d", Order: 9},
	}

	got := Reorder(in, "d", 2)

	// Both tied tasks shift together and stay tied, b before c.
	if findTask(t, got, "b").Order != 6 || findTask(t, got, "c").Order != 6 {
		t.Errorf("tied tasks should both shift to 6, got b=%d c=%d",
			findTask(t, got, "b").Order, findTask(t, got, "c").Order)
	}
	bi, ci := -1, -1
	for i, tk := range got {
		switch tk.ID {
		case "b":
			bi = i
		case "c":
			ci = i
		}
	}
	if bi > ci {
		t.Error("stable sort should keep b before c on equal order")
	}

	// Repeating the same reorder yields the same view sequence.
	again := Reorder(got, "d", 2)
	for i := range got {
		if got[i].ID != again[i].ID {
			t.Fatalf("repeat reorder changed view at %d: %s vs %s", i, got[i].ID, again[i].ID)
		}
	}
}
