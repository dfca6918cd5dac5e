// Package alarm schedules expiry reminders for todos and delivers them to subscribers.
package alarm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tomlord1122/todolist/internal/domain"
)

const notifyTimeout = 5 * time.Second

// Reminder is emitted when a todo reaches its expiry.
type Reminder struct {
	TodoID   uuid.UUID       `json:"todoId"`
	UserID   uuid.UUID       `json:"userId"`
	Name     string          `json:"name"`
	Priority domain.Priority `json:"priority"`
	ExpiryAt int64           `json:"expiryAt"`
	Body     string          `json:"body"`
}

func NewReminder(t domain.Todo) Reminder {
	r := Reminder{
		TodoID:   t.ID,
		UserID:   t.UserID,
		Name:     t.Name,
		Priority: t.Priority,
		Body:     fmt.Sprintf("%s (%s)", t.Name, t.Priority),
	}
	if t.ExpiryAt != nil {
		r.ExpiryAt = t.ExpiryAt.UnixMilli()
	}
	return r
}

// Notifier delivers a fired reminder.
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

type entry struct {
	timer  *time.Timer
	owner  uuid.UUID
	expiry time.Time
}

// Scheduler keeps at most one pending timer per todo id.
type Scheduler struct {
	mu       sync.Mutex
	timers   map[uuid.UUID]*entry
	stopped  bool
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewScheduler(notifier Notifier, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		timers:   make(map[uuid.UUID]*entry),
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Eligible reports whether t should have a pending alarm at now.
func Eligible(t domain.Todo, now time.Time) bool {
	return t.AlarmEnabled && !t.IsDone && t.ExpiryAt != nil && t.ExpiryAt.After(now)
}

// Schedule arms a timer for t. It does nothing if t is not eligible or already has a timer.
func (s *Scheduler) Schedule(t domain.Todo) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleLocked(t)
}

func (s *Scheduler) scheduleLocked(t domain.Todo) bool {
	if s.stopped {
		return false
	}
	if _, exists := s.timers[t.ID]; exists {
		return false
	}
	now := s.now()
	if !Eligible(t, now) {
		return false
	}

	e := &entry{owner: t.UserID, expiry: *t.ExpiryAt}
	reminder := NewReminder(t)
	e.timer = time.AfterFunc(t.ExpiryAt.Sub(now), func() { s.fire(t.ID, e, reminder) })
	s.timers[t.ID] = e

	s.logger.Debug("alarm scheduled", "todo_id", t.ID, "in", Countdown(now, *t.ExpiryAt))
	return true
}

// Reschedule replaces any pending timer for t after an edit.
func (s *Scheduler) Reschedule(t domain.Todo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(t.ID)
	s.scheduleLocked(t)
}

func (s *Scheduler) Cancel(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(id)
}

// CancelOwner drops every pending timer that belongs to userID.
func (s *Scheduler) CancelOwner(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.timers {
		if e.owner == userID {
			s.cancelLocked(id)
		}
	}
}

func (s *Scheduler) cancelLocked(id uuid.UUID) {
	if e, ok := s.timers[id]; ok {
		e.timer.Stop()
		delete(s.timers, id)
	}
}

// Sync schedules every eligible todo that has no timer yet and returns how many were added.
func (s *Scheduler) Sync(todos []domain.Todo) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range todos {
		if s.scheduleLocked(t) {
			n++
		}
	}
	return n
}

// Stop cancels all timers. Later calls to Schedule are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id := range s.timers {
		s.cancelLocked(id)
	}
}

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) fire(id uuid.UUID, e *entry, r Reminder) {
	s.mu.Lock()
	// A cancel or reschedule may have raced with the timer.
	if cur, ok := s.timers[id]; !ok || cur != e {
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := s.notifier.Notify(ctx, r); err != nil {
		s.logger.Error("alarm delivery failed", "todo_id", id, "user_id", r.UserID, "error", err)
	}
}
