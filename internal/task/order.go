package task

import "sort"

// Reorder applies a drag-reorder: the moving task takes targetOrder and
// every other task at or above that position is shifted up by one, then the
// list is re-sorted ascending by order.
//
// The moved task's vacated slot is not compacted and duplicate order values
// (from tasks created in the same instant) are never repaired. That
// permissive behavior is kept on purpose: the sort is stable, so ties keep
// their prior relative position and the view stays deterministic across
// repeated drags.
func Reorder(tasks []Task, movingID string, targetOrder int64) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		if t.ID == movingID {
			t.Order = targetOrder
		} else if t.Order >= targetOrder {
			t.Order++
		}
		out[i] = t
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}
