// Package sync keeps the local task collection consistent with the remote
// store over a live subscription and back-fills missing AI priorities.
package sync

import (
	"context"
	"fmt"
	gosync "sync"

	"github.com/carahq/cara/internal/assist"
	"github.com/carahq/cara/internal/task"
)

// Source is the remote collection contract the reconciler consumes:
// owner-scoped live snapshots plus field-level writes.
type Source interface {
	Subscribe(ownerID string, onSnapshot func([]task.Task), onError func(error)) (cancel func())
	Update(id string, p task.Patch) error
}

// Estimator rates tasks during back-fill.
type Estimator interface {
	EstimateTask(ctx context.Context, t task.Task) (assist.Estimate, error)
}

// State tracks where the reconciler is in its subscription lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateSubscribed
	StateReceiving
	StateError
	StateUnsubscribed // terminal
)

// Options configures a Reconciler.
type Options struct {
	Source      Source
	Estimator   Estimator // nil disables back-fill
	MaxBackfill int       // concurrent estimations (default 4)

	// OnChange receives each newly published collection, sorted descending
	// by priority. Snapshots are delivered serially, never interleaved.
	OnChange func([]task.Task)
	// OnError receives subscription failures for observability. The local
	// collection is published empty first.
	OnError func(error)
}

// Reconciler owns the live subscription for one owner and publishes the
// reconciled local collection.
type Reconciler struct {
	source   Source
	est      Estimator
	onChange func([]task.Task)
	onError  func(error)

	ctx       context.Context
	ctxCancel context.CancelFunc

	mu       gosync.Mutex
	state    State
	tasks    []task.Task
	cancel   func()
	inflight map[string]bool

	stopOnce gosync.Once
	sem      chan struct{}
	wg       gosync.WaitGroup
}

// New creates a reconciler. Call Start to subscribe.
func New(opts Options) *Reconciler {
	maxBackfill := opts.MaxBackfill
	if maxBackfill < 1 {
		maxBackfill = 4
	}
	onChange := opts.OnChange
	if onChange == nil {
		onChange = func([]task.Task) {}
	}
	onError := opts.OnError
	if onError == nil {
		onError = func(error) {}
	}

	ctx, ctxCancel := context.WithCancel(context.Background())
	return &Reconciler{
		source:    opts.Source,
		est:       opts.Estimator,
		onChange:  onChange,
		onError:   onError,
		ctx:       ctx,
		ctxCancel: ctxCancel,
		inflight:  make(map[string]bool),
		sem:       make(chan struct{}, maxBackfill),
	}
}

// Start subscribes to the owner's collection. It may be called once.
func (r *Reconciler) Start(ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateDisconnected {
		return fmt.Errorf("reconciler: already started (state %d)", r.state)
	}
	r.cancel = r.source.Subscribe(ownerID, r.handleSnapshot, r.handleError)
	r.state = StateSubscribed
	return nil
}

// Stop tears down the subscription. Safe to call multiple times; no
// snapshot is published after it returns.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		cancel := r.cancel
		r.state = StateUnsubscribed
		r.mu.Unlock()

		r.ctxCancel()
		if cancel != nil {
			cancel()
		}
		r.wg.Wait()
	})
}

// State returns the current lifecycle state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Tasks returns a copy of the last published collection.
func (r *Reconciler) Tasks() []task.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]task.Task, len(r.tasks))
	copy(out, r.tasks)
	return out
}

// View applies a filter and sort to the current collection.
func (r *Reconciler) View(filter task.FilterSpec, key task.SortKey) []task.Task {
	return task.Apply(r.Tasks(), filter, key)
}

// handleSnapshot fully replaces local state with the snapshot, publishes it
// sorted descending by priority, and kicks off back-fill for tasks that have
// no priority yet. Handlers run serially in delivery order.
func (r *Reconciler) handleSnapshot(tasks []task.Task) {
	sorted := task.Apply(tasks, task.FilterSpec{}, task.SortByPriority)

	r.mu.Lock()
	if r.state == StateUnsubscribed {
		r.mu.Unlock()
		return
	}
	r.state = StateReceiving
	r.tasks = sorted

	var missing []task.Task
	if r.est != nil {
		for _, t := range sorted {
			if !t.HasPriority() && !r.inflight[t.ID] {
				r.inflight[t.ID] = true
				missing = append(missing, t)
			}
		}
	}
	r.mu.Unlock()

	r.onChange(sorted)

	for _, t := range missing {
		r.wg.Add(1)
		go r.backfill(t)
	}
}

// handleError publishes an empty collection and surfaces the error. The
// subscription itself is not retried here; reconnect policy belongs to the
// transport.
func (r *Reconciler) handleError(err error) {
	r.mu.Lock()
	if r.state == StateUnsubscribed {
		r.mu.Unlock()
		return
	}
	r.state = StateError
	r.tasks = nil
	r.mu.Unlock()

	r.onChange([]task.Task{})
	r.onError(err)
}

// backfill estimates one task's priority and writes it back to the store.
// The write triggers another snapshot; re-estimating a task that gained a
// priority in the meantime is an accepted benign race. A failed estimation
// leaves the task unrated so a later snapshot can retry it. The inflight
// entry lives only for the duration of the attempt; once the write has
// landed, the next snapshot's priority check is what prevents repeats.
func (r *Reconciler) backfill(t task.Task) {
	defer r.wg.Done()
	defer r.clearInflight(t.ID)

	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-r.ctx.Done():
		return
	}

	est, err := r.est.EstimateTask(r.ctx, t)
	if err != nil {
		return
	}

	patch := task.Patch{AIPriority: &est.Priority}
	if est.Suggestion != "" {
		patch.AISuggestion = &est.Suggestion
	}
	_ = r.source.Update(t.ID, patch)
}

func (r *Reconciler) clearInflight(id string) {
	r.mu.Lock()
	delete(r.inflight, id)
	r.mu.Unlock()
}
