package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxNameLength is the longest todo name accepted, counted in characters.
const MaxNameLength = 200

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// ParsePriority accepts the canonical names case-insensitively.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, true
	case "medium":
		return PriorityMedium, true
	case "high":
		return PriorityHigh, true
	}
	return "", false
}

// Rank orders priorities so that High > Medium > Low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Todo is a task owned by exactly one user. ExpiryAt is stored in UTC; nil means no deadline.
// Bool columns carry no gorm default tag: gorm omits zero values of defaulted fields on insert.
type Todo struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Name         string     `gorm:"size:200;not null"`
	IsDone       bool       `gorm:"not null"`
	ExpiryAt     *time.Time `gorm:"index:idx_todos_user_expiry,priority:2"`
	Priority     Priority   `gorm:"type:varchar(10);not null"`
	AlarmEnabled bool       `gorm:"not null"`
	UserID       uuid.UUID  `gorm:"type:uuid;not null;index;index:idx_todos_user_expiry,priority:1"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (t *Todo) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Expired reports whether the deadline has passed at now. Todos without a deadline never expire.
func (t *Todo) Expired(now time.Time) bool {
	return t.ExpiryAt != nil && !t.ExpiryAt.After(now)
}

// CompareTodos is the list order: expiry ascending with missing expiries last,
// then priority descending, then creation time, then id.
func CompareTodos(a, b Todo) int {
	switch {
	case a.ExpiryAt != nil && b.ExpiryAt == nil:
		return -1
	case a.ExpiryAt == nil && b.ExpiryAt != nil:
		return 1
	case a.ExpiryAt != nil && b.ExpiryAt != nil:
		if c := a.ExpiryAt.Compare(*b.ExpiryAt); c != 0 {
			return c
		}
	}
	if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
		if ra > rb {
			return -1
		}
		return 1
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}

// TodoPatch holds the fields of a partial update. Nil fields are left untouched;
// ClearExpiry removes the deadline and wins over ExpiryAt.
type TodoPatch struct {
	Name         *string
	IsDone       *bool
	ExpiryAt     *time.Time
	ClearExpiry  bool
	Priority     *Priority
	AlarmEnabled *bool
}

// Empty reports whether the patch changes nothing.
func (p TodoPatch) Empty() bool {
	return p.Name == nil && p.IsDone == nil && p.ExpiryAt == nil && !p.ClearExpiry &&
		p.Priority == nil && p.AlarmEnabled == nil
}

// Apply writes the patch onto t.
func (p TodoPatch) Apply(t *Todo) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.IsDone != nil {
		t.IsDone = *p.IsDone
	}
	if p.ClearExpiry {
		t.ExpiryAt = nil
	} else if p.ExpiryAt != nil {
		exp := p.ExpiryAt.UTC()
		t.ExpiryAt = &exp
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.AlarmEnabled != nil {
		t.AlarmEnabled = *p.AlarmEnabled
	}
}

// Columns returns the patch as a column map for the ORM.
func (p TodoPatch) Columns() map[string]any {
	cols := make(map[string]any)
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.IsDone != nil {
		cols["is_done"] = *p.IsDone
	}
	if p.ClearExpiry {
		cols["expiry_at"] = nil
	} else if p.ExpiryAt != nil {
		cols["expiry_at"] = p.ExpiryAt.UTC()
	}
	if p.Priority != nil {
		cols["priority"] = *p.Priority
	}
	if p.AlarmEnabled != nil {
		cols["alarm_enabled"] = *p.AlarmEnabled
	}
	return cols
}
