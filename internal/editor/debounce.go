// Package editor batches rapid field edits into debounced store writes so
// every keystroke updates the screen but not the database.
package editor

import (
	"sync"
	"time"

	"github.com/carahq/cara/internal/task"
)

// DefaultQuiet is the trailing-edge debounce window.
const DefaultQuiet = 1000 * time.Millisecond

// SaveStatus reports where a field's persistence currently stands.
type SaveStatus int

const (
	StatusIdle SaveStatus = iota
	StatusSaving
	StatusSaved
	StatusError
)

// String renders the status for display in the editor footer.
func (s SaveStatus) String() string {
	switch s {
	case StatusSaving:
		return "saving"
	case StatusSaved:
		return "saved"
	case StatusError:
		return "error"
	default:
		return ""
	}
}

// Writer is the persistence contract the debouncer flushes to.
type Writer interface {
	Update(id string, p task.Patch) error
}

// Options configures a DebouncedWriter.
type Options struct {
	Writer Writer
	Quiet  time.Duration // debounce window (default DefaultQuiet)

	// Apply runs synchronously on every edit, before any persistence,
	// so the caller can update its local view immediately.
	Apply func(taskID, field string, p task.Patch)
	// OnStatus observes per-field save transitions. err is non-nil only
	// for StatusError.
	OnStatus func(taskID, field string, status SaveStatus, err error)
}

type fieldKey struct {
	taskID string
	field  string
}

type pendingEdit struct {
	timer *time.Timer
	gen   uint64
	patch task.Patch
}

// DebouncedWriter coalesces edits per task field: each new edit to the same
// field restarts that field's quiet window and replaces its pending patch.
// Different fields of the same task debounce independently. Writes are
// serialized per field, at most one in flight per key, so a superseded
// write can never land after, and overwrite, a later value.
type DebouncedWriter struct {
	writer   Writer
	quiet    time.Duration
	apply    func(string, string, task.Patch)
	onStatus func(string, string, SaveStatus, error)

	mu       sync.Mutex
	gen      uint64
	pending  map[fieldKey]*pendingEdit
	inflight map[fieldKey]bool
	parked   map[fieldKey]task.Patch
	failed   map[fieldKey]task.Patch
}

// New creates a debounced writer.
func New(opts Options) *DebouncedWriter {
	quiet := opts.Quiet
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	apply := opts.Apply
	if apply == nil {
		apply = func(string, string, task.Patch) {}
	}
	onStatus := opts.OnStatus
	if onStatus == nil {
		onStatus = func(string, string, SaveStatus, error) {}
	}
	return &DebouncedWriter{
		writer:   opts.Writer,
		quiet:    quiet,
		apply:    apply,
		onStatus: onStatus,
		pending:  make(map[fieldKey]*pendingEdit),
		inflight: make(map[fieldKey]bool),
		parked:   make(map[fieldKey]task.Patch),
		failed:   make(map[fieldKey]task.Patch),
	}
}

// Write records an edit to one field. The local view is updated immediately
// via Apply; the store write happens after the field has been quiet for the
// debounce window, carrying only the latest patch.
func (w *DebouncedWriter) Write(taskID, field string, patch task.Patch) {
	w.apply(taskID, field, patch)

	key := fieldKey{taskID: taskID, field: field}

	w.mu.Lock()
	w.gen++
	gen := w.gen
	if prev, ok := w.pending[key]; ok {
		prev.timer.Stop()
	}
	delete(w.failed, key)
	edit := &pendingEdit{gen: gen, patch: patch}
	edit.timer = time.AfterFunc(w.quiet, func() { w.flush(key, gen) })
	w.pending[key] = edit
	w.mu.Unlock()

	w.onStatus(taskID, field, StatusSaving, nil)
}

// Retry re-attempts the last failed write for a field immediately, without
// waiting out a quiet window. It is a no-op if the field has no failed write.
func (w *DebouncedWriter) Retry(taskID, field string) {
	key := fieldKey{taskID: taskID, field: field}

	w.mu.Lock()
	patch, ok := w.failed[key]
	if ok {
		delete(w.failed, key)
	}
	w.mu.Unlock()

	if !ok {
		return
	}
	w.onStatus(taskID, field, StatusSaving, nil)
	w.persist(key, patch)
}

// Flush writes out every pending edit immediately. Call it before shutdown
// so trailing edits are not lost.
func (w *DebouncedWriter) Flush() {
	w.mu.Lock()
	edits := make(map[fieldKey]task.Patch, len(w.pending))
	for key, edit := range w.pending {
		edit.timer.Stop()
		edits[key] = edit.patch
		delete(w.pending, key)
	}
	w.mu.Unlock()

	for key, patch := range edits {
		w.persist(key, patch)
	}
}

// flush runs when a field's quiet window elapses. A newer edit to the same
// field supersedes this one; the generation check makes the stale timer a
// no-op even if it already fired.
func (w *DebouncedWriter) flush(key fieldKey, gen uint64) {
	w.mu.Lock()
	edit, ok := w.pending[key]
	if !ok || edit.gen != gen {
		w.mu.Unlock()
		return
	}
	delete(w.pending, key)
	patch := edit.patch
	w.mu.Unlock()

	w.persist(key, patch)
}

// persist writes one patch, serialized per key. While a write is in flight,
// the flush of a newer edit parks its patch instead of starting a second
// write; when the in-flight write returns, the parked (newest) patch is sent
// next. Last-scheduled-wins therefore holds even if the transport would
// reorder concurrent writes.
func (w *DebouncedWriter) persist(key fieldKey, patch task.Patch) {
	w.mu.Lock()
	if w.inflight[key] {
		w.parked[key] = patch
		w.mu.Unlock()
		return
	}
	w.inflight[key] = true
	w.mu.Unlock()

	for {
		err := w.writer.Update(key.taskID, patch)

		w.mu.Lock()
		if next, ok := w.parked[key]; ok {
			// The value just written is already superseded; send the
			// newest one before reporting any status.
			delete(w.parked, key)
			patch = next
			w.mu.Unlock()
			continue
		}
		if err != nil {
			w.failed[key] = patch
		}
		delete(w.inflight, key)
		w.mu.Unlock()

		if err != nil {
			w.onStatus(key.taskID, key.field, StatusError, err)
			return
		}
		w.onStatus(key.taskID, key.field, StatusSaved, nil)
		return
	}
}
