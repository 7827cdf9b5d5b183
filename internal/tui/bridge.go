package tui

import (
	"github.com/carahq/cara/internal/editor"
	"github.com/carahq/cara/internal/task"
)

// NewChannels allocates the event channels the engine callbacks feed.
func NewChannels() (chan []task.Task, chan saveEvent, chan error) {
	return make(chan []task.Task, 16), make(chan saveEvent, 64), make(chan error, 4)
}

// Snapshot adapts the reconciler's publish callback to the bridge channel.
// The send never blocks: if the UI has stopped draining (quit in progress),
// the oldest queued snapshot is dropped to make room. Every snapshot is a
// full replacement, so only the newest one matters.
func Snapshot(snapshots chan []task.Task) func([]task.Task) {
	return func(ts []task.Task) {
		for {
			select {
			case snapshots <- ts:
				return
			default:
			}
			select {
			case <-snapshots:
			default:
			}
		}
	}
}

// SaveEvent adapts the debounced writer's status callback to the bridge
// channel, dropping the oldest queued event under backpressure.
func SaveEvent(saves chan saveEvent) func(string, string, editor.SaveStatus, error) {
	return func(taskID, field string, status editor.SaveStatus, err error) {
		ev := saveEvent{taskID: taskID, field: field, status: status, err: err}
		for {
			select {
			case saves <- ev:
				return
			default:
			}
			select {
			case <-saves:
			default:
			}
		}
	}
}

// SyncErr adapts the reconciler's error callback to the bridge channel.
// Errors beyond a full buffer are dropped rather than blocking the notifier.
func SyncErr(errs chan error) func(error) {
	return func(err error) {
		select {
		case errs <- err:
		default:
		}
	}
}
