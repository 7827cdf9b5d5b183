// Package store persists the task collection in SQLite and plays the role
// of the remote multi-writer store: field-level updates, server-assigned
// timestamps, and owner-scoped live snapshot subscriptions.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/carahq/cara/internal/task"
)

// ErrNotFound is returned when a task id does not exist.
var ErrNotFound = errors.New("task not found")

// Store provides access to the Cara database.
type Store struct {
	db *sql.DB

	mu   sync.Mutex
	subs map[int64]*subscriber
	next int64

	notify chan string
	quit   chan struct{}
	done   chan struct{}
}

type subscriber struct {
	owner      string
	onSnapshot func([]task.Task)
	onError    func(error)

	mu     sync.Mutex
	closed bool
}

// New opens (or creates) the SQLite database at the given path and starts
// the snapshot notifier.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	// One connection serializes transactions at the pool level; SQLite
	// allows a single writer anyway, and this keeps read-modify-write
	// transactions from ever seeing a stale snapshot.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:     db,
		subs:   make(map[int64]*subscriber),
		notify: make(chan string, 64),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	go s.notifyLoop()
	return s, nil
}

// Close stops snapshot delivery and closes the database connection.
func (s *Store) Close() error {
	close(s.quit)
	<-s.done
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id              TEXT PRIMARY KEY,
		title           TEXT NOT NULL,
		description     TEXT DEFAULT '',
		status          TEXT NOT NULL DEFAULT 'pending',
		assigned_to     TEXT NOT NULL,
		sort_order      INTEGER NOT NULL DEFAULT 0,
		dealership      TEXT DEFAULT '',
		insurance_claim TEXT DEFAULT '',
		deadline        DATETIME,
		ai_priority     INTEGER DEFAULT 0,
		ai_suggestion   TEXT DEFAULT '',
		reminder_sent   INTEGER NOT NULL DEFAULT 0,
		recurrence      TEXT,
		created_at      DATETIME NOT NULL,
		updated_at      DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(assigned_to);

	CREATE TABLE IF NOT EXISTS events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id     TEXT NOT NULL,
		event_type  TEXT NOT NULL,
		content     TEXT DEFAULT '',
		timestamp   DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Create inserts a new task, assigning its id and server timestamps.
// A zero manual order defaults to the current unix milliseconds, so newly
// created tasks land at the end of the manual sort.
func (s *Store) Create(t task.Task) (*task.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return nil, fmt.Errorf("create task: title is required")
	}
	if t.AssignedTo == "" {
		return nil, fmt.Errorf("create task: owner is required")
	}

	now := time.Now().UTC()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = task.StatusPending
	}
	if t.Order == 0 {
		t.Order = now.UnixMilli()
	}

	recurrence, err := marshalRecurrence(t.Recurrence)
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(
		`INSERT INTO tasks (id, title, description, status, assigned_to, sort_order,
		   dealership, insurance_claim, deadline, ai_priority, ai_suggestion,
		   reminder_sent, recurrence, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, string(t.Status), t.AssignedTo, t.Order,
		t.Dealership, t.InsuranceClaim, nullTime(t.Deadline), t.AIPriority, t.AISuggestion,
		boolInt(t.ReminderSent), recurrence, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	s.addEvent(t.ID, "created", "Task created: "+t.Title)
	s.notifyOwner(t.AssignedTo)
	return &t, nil
}

// taskColumns is the standard column list for task queries.
const taskColumns = `id, title, description, status, assigned_to, sort_order,
	dealership, insurance_claim, deadline, ai_priority, ai_suggestion,
	reminder_sent, recurrence, created_at, updated_at`

// Get returns a single task by id.
func (s *Store) Get(id string) (*task.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// ListByOwner returns every task assigned to the owner, ascending by
// manual order.
func (s *Store) ListByOwner(ownerID string) ([]task.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskColumns+` FROM tasks WHERE assigned_to = ? ORDER BY sort_order, created_at`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// Update applies a field-level patch. Unset patch fields are untouched;
// updated_at is refreshed server-side and never moves backwards; a latched
// reminder flag is never reset to false. The read and the write run in one
// transaction so a concurrent patch cannot slip between them.
func (s *Store) Update(id string, p task.Patch) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	cur, err := scanTask(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return fmt.Errorf("update task: title cannot be empty")
		}
		add("title", *p.Title)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.Status != nil {
		add("status", string(*p.Status))
	}
	if p.Order != nil {
		add("sort_order", *p.Order)
	}
	if p.Dealership != nil {
		add("dealership", *p.Dealership)
	}
	if p.Insurance != nil {
		add("insurance_claim", *p.Insurance)
	}
	if p.Deadline != nil {
		add("deadline", *p.Deadline)
	}
	if p.AIPriority != nil {
		add("ai_priority", task.ClampPriority(*p.AIPriority))
	}
	if p.AISuggestion != nil {
		add("ai_suggestion", *p.AISuggestion)
	}
	if p.ReminderSent != nil {
		// The latch lives in SQL: once set, reminder_sent never drops
		// back to 0, whatever order concurrent patches commit in.
		sets = append(sets, "reminder_sent = MAX(reminder_sent, ?)")
		args = append(args, boolInt(*p.ReminderSent))
	}
	if p.Recurrence != nil {
		recurrence, err := marshalRecurrence(p.Recurrence)
		if err != nil {
			return err
		}
		add("recurrence", recurrence)
	}

	if len(sets) == 0 {
		return nil
	}

	now := time.Now().UTC()
	if now.Before(cur.UpdatedAt) {
		now = cur.UpdatedAt
	}
	add("updated_at", now)
	args = append(args, id)

	if _, err := tx.Exec(`UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	if p.Status != nil {
		s.addEvent(id, "status_changed", "Status changed to "+string(*p.Status))
	}
	s.notifyOwner(cur.AssignedTo)
	return nil
}

// Delete removes a task permanently. Deletion is terminal; there is no
// soft delete.
func (s *Store) Delete(id string) error {
	cur, err := s.Get(id)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	s.notifyOwner(cur.AssignedTo)
	return nil
}

// Reorder applies a drag-reorder to the owner's collection and persists the
// shifted order values in one transaction.
func (s *Store) Reorder(ownerID, movingID string, targetOrder int64) error {
	tasks, err := s.ListByOwner(ownerID)
	if err != nil {
		return err
	}

	moved := task.Reorder(tasks, movingID, targetOrder)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("reorder: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, t := range moved {
		if _, err := tx.Exec(
			`UPDATE tasks SET sort_order = ?, updated_at = ? WHERE id = ? AND sort_order != ?`,
			t.Order, now, t.ID, t.Order,
		); err != nil {
			return fmt.Errorf("reorder update: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reorder commit: %w", err)
	}

	s.addEvent(movingID, "reordered", fmt.Sprintf("Moved to position %d", targetOrder))
	s.notifyOwner(ownerID)
	return nil
}

// Subscribe registers a live snapshot listener scoped to the owner. The
// current collection is delivered as the first snapshot, then one snapshot
// per committed mutation, in order. The returned cancel is idempotent, safe
// to call concurrently, and guarantees no delivery after it returns.
func (s *Store) Subscribe(ownerID string, onSnapshot func([]task.Task), onError func(error)) func() {
	sub := &subscriber{owner: ownerID, onSnapshot: onSnapshot, onError: onError}

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = sub
	s.mu.Unlock()

	s.notifyOwner(ownerID)

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()

		// Block until any in-flight delivery finishes, then latch closed.
		sub.mu.Lock()
		sub.closed = true
		sub.mu.Unlock()
	}
}

// notifyOwner queues a snapshot broadcast for the owner's subscribers.
func (s *Store) notifyOwner(ownerID string) {
	select {
	case s.notify <- ownerID:
	case <-s.quit:
	}
}

// notifyLoop delivers snapshots serially, so no two snapshot applications
// interleave and subscribers observe mutations in commit order.
func (s *Store) notifyLoop() {
	defer close(s.done)

	for {
		var ownerID string
		select {
		case ownerID = <-s.notify:
		case <-s.quit:
			return
		}
		s.deliver(ownerID)
	}
}

func (s *Store) deliver(ownerID string) {
	s.mu.Lock()
	var targets []*subscriber
	for _, sub := range s.subs {
		if sub.owner == ownerID {
			targets = append(targets, sub)
		}
	}
	s.mu.Unlock()

	if len(targets) == 0 {
		return
	}

	tasks, err := s.ListByOwner(ownerID)
	for _, sub := range targets {
		sub.mu.Lock()
		if !sub.closed {
			if err != nil {
				sub.onError(err)
			} else {
				sub.onSnapshot(tasks)
			}
		}
		sub.mu.Unlock()
	}
}

// Events returns the recorded history for a task, oldest first.
func (s *Store) Events(taskID string) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT id, task_id, event_type, content, timestamp FROM events WHERE task_id = ? ORDER BY id`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Type, &e.Content, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Event records something that happened to a task.
type Event struct {
	ID        int64     `json:"id"`
	TaskID    string    `json:"task_id"`
	Type      string    `json:"event_type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Store) addEvent(taskID, eventType, content string) {
	now := time.Now().UTC()
	s.db.Exec(
		`INSERT INTO events (task_id, event_type, content, timestamp) VALUES (?, ?, ?, ?)`,
		taskID, eventType, content, now,
	)
}

func scanTask(scan func(...any) error) (*task.Task, error) {
	var t task.Task
	var status string
	var deadline sql.NullTime
	var reminder int
	var recurrence sql.NullString

	err := scan(
		&t.ID, &t.Title, &t.Description, &status, &t.AssignedTo, &t.Order,
		&t.Dealership, &t.InsuranceClaim, &deadline, &t.AIPriority, &t.AISuggestion,
		&reminder, &recurrence, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}

	t.Status = task.Status(status)
	t.ReminderSent = reminder != 0
	if deadline.Valid {
		d := deadline.Time
		t.Deadline = &d
	}
	if recurrence.Valid && recurrence.String != "" {
		var rule task.RecurrenceRule
		if err := json.Unmarshal([]byte(recurrence.String), &rule); err != nil {
			return nil, fmt.Errorf("decode recurrence: %w", err)
		}
		t.Recurrence = &rule
	}
	return &t, nil
}

func marshalRecurrence(r *task.RecurrenceRule) (any, error) {
	if r == nil {
		return nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode recurrence: %w", err)
	}
	return string(data), nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
