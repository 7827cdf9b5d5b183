package editor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/carahq/cara/internal/task"
)

// fakeWriter records every persisted patch.
type fakeWriter struct {
	mu      sync.Mutex
	patches []task.Patch
	ids     []string
	err     error
}

func (f *fakeWriter) Update(id string, p task.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.ids = append(f.ids, id)
	f.patches = append(f.patches, p)
	return nil
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.patches)
}

func (f *fakeWriter) last() (string, task.Patch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.patches)
	return f.ids[n-1], f.patches[n-1]
}

func (f *fakeWriter) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type statusEvent struct {
	taskID string
	field  string
	status SaveStatus
	err    error
}

func collectStatus(ch chan statusEvent) func(string, string, SaveStatus, error) {
	return func(taskID, field string, status SaveStatus, err error) {
		ch <- statusEvent{taskID: taskID, field: field, status: status, err: err}
	}
}

func waitStatus(t *testing.T, ch <-chan statusEvent, want SaveStatus) statusEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.status == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %v", want)
		}
	}
}

func strp(s string) *string { return &s }

func TestWrite_CoalescesRapidEditsIntoLastPatch(t *testing.T) {
	fw := &fakeWriter{}
	statuses := make(chan statusEvent, 64)
	w := New(Options{Writer: fw, Quiet: 50 * time.Millisecond, OnStatus: collectStatus(statuses)})

	w.Write("t1", "title", task.Patch{Title: strp("B")})
	w.Write("t1", "title", task.Patch{Title: strp("Br")})
	w.Write("t1", "title", task.Patch{Title: strp("Brakes")})

	waitStatus(t, statuses, StatusSaved)
	if got := fw.count(); got != 1 {
		t.Fatalf("expected a single coalesced write, got %d", got)
	}
	id, p := fw.last()
	if id != "t1" || p.Title == nil || *p.Title != "Brakes" {
		t.Errorf("expected latest patch to win, got id=%s patch=%+v", id, p)
	}
}

func TestWrite_EditDuringQuietWindowRestartsIt(t *testing.T) {
	fw := &fakeWriter{}
	statuses := make(chan statusEvent, 64)
	w := New(Options{Writer: fw, Quiet: 80 * time.Millisecond, OnStatus: collectStatus(statuses)})

	w.Write("t1", "title", task.Patch{Title: strp("a")})
	time.Sleep(50 * time.Millisecond)
	w.Write("t1", "title", task.Patch{Title: strp("ab")})
	time.Sleep(50 * time.Millisecond)

	// 100ms elapsed but the window restarted at 50ms; nothing flushed yet.
	if got := fw.count(); got != 0 {
		t.Fatalf("write flushed before quiet window elapsed: %d", got)
	}

	waitStatus(t, statuses, StatusSaved)
	if got := fw.count(); got != 1 {
		t.Errorf("expected one write after quiet, got %d", got)
	}
}

func TestWrite_FieldsDebounceIndependently(t *testing.T) {
	fw := &fakeWriter{}
	statuses := make(chan statusEvent, 64)
	w := New(Options{Writer: fw, Quiet: 30 * time.Millisecond, OnStatus: collectStatus(statuses)})

	w.Write("t1", "title", task.Patch{Title: strp("new title")})
	w.Write("t1", "description", task.Patch{Description: strp("new desc")})

	waitStatus(t, statuses, StatusSaved)
	waitStatus(t, statuses, StatusSaved)
	if got := fw.count(); got != 2 {
		t.Errorf("expected one write per field, got %d", got)
	}
}

func TestWrite_AppliesLocallyBeforePersisting(t *testing.T) {
	fw := &fakeWriter{}
	var applied []string
	var mu sync.Mutex
	w := New(Options{
		Writer: fw,
		Quiet:  time.Hour, // never flushes during the test
		Apply: func(taskID, field string, p task.Patch) {
			mu.Lock()
			applied = append(applied, field)
			mu.Unlock()
		},
	})

	w.Write("t1", "title", task.Patch{Title: strp("x")})

	mu.Lock()
	defer mu.Unlock()
	if len(applied) != 1 || applied[0] != "title" {
		t.Errorf("expected immediate local apply, got %v", applied)
	}
	if fw.count() != 0 {
		t.Error("store write should still be pending")
	}
}

func TestWrite_ReportsSavingThenSaved(t *testing.T) {
	fw := &fakeWriter{}
	statuses := make(chan statusEvent, 64)
	w := New(Options{Writer: fw, Quiet: 20 * time.Millisecond, OnStatus: collectStatus(statuses)})

	w.Write("t1", "title", task.Patch{Title: strp("x")})

	first := <-statuses
	if first.status != StatusSaving {
		t.Errorf("expected saving first, got %v", first.status)
	}
	ev := waitStatus(t, statuses, StatusSaved)
	if ev.taskID != "t1" || ev.field != "title" {
		t.Errorf("unexpected saved event: %+v", ev)
	}
}

func TestWrite_FailedWriteReportsErrorAndRetryRecovers(t *testing.T) {
	fw := &fakeWriter{}
	fw.fail(errors.New("disk full"))
	statuses := make(chan statusEvent, 64)
	w := New(Options{Writer: fw, Quiet: 20 * time.Millisecond, OnStatus: collectStatus(statuses)})

	w.Write("t1", "title", task.Patch{Title: strp("x")})

	ev := waitStatus(t, statuses, StatusError)
	if ev.err == nil {
		t.Error("error status must carry the write error")
	}

	fw.fail(nil)
	w.Retry("t1", "title")

	waitStatus(t, statuses, StatusSaved)
	if got := fw.count(); got != 1 {
		t.Errorf("expected the retried write to land once, got %d", got)
	}
	_, p := fw.last()
	if p.Title == nil || *p.Title != "x" {
		t.Errorf("retry must resend the failed patch, got %+v", p)
	}
}

// gateWriter blocks each Update until released, recording landing order.
type gateWriter struct {
	mu      sync.Mutex
	landed  []string
	entered chan string
	release chan struct{}
}

func (g *gateWriter) Update(id string, p task.Patch) error {
	g.entered <- *p.Title
	<-g.release
	g.mu.Lock()
	g.landed = append(g.landed, *p.Title)
	g.mu.Unlock()
	return nil
}

func TestWrite_SupersededWriteNeverLandsAfterNewerValue(t *testing.T) {
	g := &gateWriter{entered: make(chan string), release: make(chan struct{})}
	statuses := make(chan statusEvent, 64)
	w := New(Options{Writer: g, Quiet: 20 * time.Millisecond, OnStatus: collectStatus(statuses)})

	w.Write("t1", "title", task.Patch{Title: strp("stale")})
	if got := <-g.entered; got != "stale" {
		t.Fatalf("first write should carry the first value, got %q", got)
	}

	// Edit again while the first write is still in flight. Its flush must
	// wait behind the in-flight write rather than start a second one.
	w.Write("t1", "title", task.Patch{Title: strp("fresh")})
	select {
	case v := <-g.entered:
		t.Fatalf("second write started while first was in flight: %q", v)
	case <-time.After(100 * time.Millisecond):
	}

	g.release <- struct{}{} // let the stale write finish

	if got := <-g.entered; got != "fresh" {
		t.Fatalf("expected the newest value to be written next, got %q", got)
	}
	g.release <- struct{}{}

	waitStatus(t, statuses, StatusSaved)
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.landed) != 2 || g.landed[len(g.landed)-1] != "fresh" {
		t.Fatalf("latest value must land last, got %v", g.landed)
	}
}

func TestRetry_NoopWithoutFailure(t *testing.T) {
	fw := &fakeWriter{}
	w := New(Options{Writer: fw, Quiet: time.Hour})

	w.Retry("t1", "title")
	if fw.count() != 0 {
		t.Error("retry without a failed write must do nothing")
	}
}

func TestFlush_WritesAllPendingImmediately(t *testing.T) {
	fw := &fakeWriter{}
	w := New(Options{Writer: fw, Quiet: time.Hour})

	w.Write("t1", "title", task.Patch{Title: strp("a")})
	w.Write("t2", "description", task.Patch{Description: strp("b")})

	w.Flush()
	if got := fw.count(); got != 2 {
		t.Errorf("expected both pending edits flushed, got %d", got)
	}

	w.Flush() // nothing left
	if got := fw.count(); got != 2 {
		t.Errorf("second flush must be a no-op, got %d writes", got)
	}
}

func TestSaveStatus_String(t *testing.T) {
	if StatusSaving.String() != "saving" || StatusSaved.String() != "saved" || StatusError.String() != "error" {
		t.Error("unexpected status rendering")
	}
	if StatusIdle.String() != "" {
		t.Error("idle should render empty")
	}
}
