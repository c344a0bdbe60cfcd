// Package notify queues the transient toast notifications of one browser.
package notify

import (
	"sync"
	"time"
)

// Level is the severity of a toast. It decides how long the toast stays up.
type Level int

const (
	Success Level = iota
	Info
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return "info"
}

// Duration is the auto-dismiss delay of the level.
func (l Level) Duration() time.Duration {
	switch l {
	case Warning:
		return 4 * time.Second
	case Error:
		return 5 * time.Second
	default:
		return 3 * time.Second
	}
}

// Action is a button shown inside a toast, submitted as a form.
type Action struct {
	LabelCode string
	Method    string
	Path      string
}

// Toast is one notification.
type Toast struct {
	ID      uint64
	Level   Level
	Message string
	Action  *Action
	Created time.Time
}

// DurationMillis is the auto-dismiss delay used by the template.
func (t Toast) DurationMillis() int64 {
	return t.Level.Duration().Milliseconds()
}

// Expired reports whether the toast would already be dismissed at now.
func (t Toast) Expired(now time.Time) bool {
	return now.Sub(t.Created) >= t.Level.Duration()
}

// Queue holds pending toasts, oldest first. The oldest are dropped beyond
// max entries.
type Queue struct {
	mu    sync.Mutex
	items []Toast
	next  uint64
	max   int
	now   func() time.Time
}

// NewQueue returns an empty queue. max below 1 means 8.
func NewQueue(max int) *Queue {
	if max < 1 {
		max = 8
	}
	return &Queue{max: max, now: time.Now}
}

// Push appends a toast and returns it.
func (q *Queue) Push(level Level, message string) Toast {
	return q.PushAction(level, message, nil)
}

// PushAction appends a toast carrying an action button.
func (q *Queue) PushAction(level Level, message string, action *Action) Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.next++
	t := Toast{ID: q.next, Level: level, Message: message, Action: action, Created: q.now()}
	q.items = append(q.items, t)
	if len(q.items) > q.max {
		q.items = q.items[len(q.items)-q.max:]
	}
	return t
}

func (q *Queue) Success(msg string) Toast { return q.Push(Success, msg) }
func (q *Queue) Info(msg string) Toast    { return q.Push(Info, msg) }
func (q *Queue) Warn(msg string) Toast    { return q.Push(Warning, msg) }
func (q *Queue) Error(msg string) Toast   { return q.Push(Error, msg) }

// Drain removes and returns the toasts that are still visible. Toasts whose
// display time has elapsed are discarded unseen.
func (q *Queue) Drain() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	var out []Toast
	for _, t := range q.items {
		if !t.Expired(now) {
			out = append(out, t)
		}
	}
	q.items = nil
	return out
}

// Pending returns a copy of the queue without consuming it.
func (q *Queue) Pending() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Toast, len(q.items))
	copy(out, q.items)
	return out
}
