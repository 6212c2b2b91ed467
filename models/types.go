// ABOUTME: Data models for canonical CRM records
// ABOUTME: Defines Deal, Task, FileMeta, Snapshot, and StageTransition
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Record kinds.
const (
	KindDeals = "deals"
	KindTasks = "tasks"
)

// Placeholder labels used when a value cannot be resolved.
const (
	UnknownLabel = "Неизвестно"
	DashLabel    = "—"
)

// Deal is a canonical sales opportunity. Fields that are not part of the
// canonical schema are kept verbatim in Extra.
type Deal struct {
	DealID      string  `json:"dealId,omitempty"`
	Title       string  `json:"title"`
	Responsible string  `json:"responsible"`
	Stage       string  `json:"stage"`
	CreatedAt   *string `json:"createdAt"`
	ModifiedAt  *string `json:"modifiedAt"`
	Department  string  `json:"department"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Company     string  `json:"company"`
	Contact     string  `json:"contact"`
	Comments    string  `json:"comments"`

	Extra map[string]any `json:"-"`
}

// Key returns the entity id used for merging and diffing.
func (d Deal) Key() string { return d.DealID }

// Task is a canonical unit of work.
type Task struct {
	ID          string  `json:"id,omitempty"`
	Title       string  `json:"title"`
	Creator     string  `json:"creator"`
	Assignee    string  `json:"assignee"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	CreatedAt   *string `json:"createdAt"`
	ClosedAt    *string `json:"closedAt"`
	Description string  `json:"description"`

	Extra map[string]any `json:"-"`
}

// Key returns the entity id used for merging and diffing.
func (t Task) Key() string { return t.ID }

// Keyed is implemented by every record that can be merged or diffed by id.
type Keyed interface {
	Key() string
}

// FileMeta is indexing metadata derived from a batch of deals.
type FileMeta struct {
	Year        int `json:"year"`
	Month       int `json:"month"`
	WeekOfMonth int `json:"weekOfMonth"`
	WeekOfYear  int `json:"weekOfYear"`
}

// Snapshot is an immutable capture of a deals/tasks pair tagged with a week.
type Snapshot struct {
	ID         uuid.UUID         `json:"id"`
	CreatedAt  time.Time         `json:"createdAt"`
	WeekStart  string            `json:"weekStart"`
	WeekEnd    string            `json:"weekEnd"`
	DealsCount int               `json:"dealsCount"`
	TasksCount int               `json:"tasksCount"`
	DealsData  []Deal            `json:"dealsData"`
	TasksData  []Task            `json:"tasksData"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// SnapshotSummary is the listing view of a snapshot without its payload.
type SnapshotSummary struct {
	ID         uuid.UUID `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	WeekStart  string    `json:"weekStart"`
	WeekEnd    string    `json:"weekEnd"`
	DealsCount int       `json:"dealsCount"`
	TasksCount int       `json:"tasksCount"`
}

// Summary strips the payload from a snapshot.
func (s *Snapshot) Summary() SnapshotSummary {
	return SnapshotSummary{
		ID:         s.ID,
		CreatedAt:  s.CreatedAt,
		WeekStart:  s.WeekStart,
		WeekEnd:    s.WeekEnd,
		DealsCount: s.DealsCount,
		TasksCount: s.TasksCount,
	}
}

// StageTransition is a detected stage change of one deal between two snapshots.
type StageTransition struct {
	DealID             string `json:"dealId"`
	OldStage           string `json:"oldStage"`
	NewStage           string `json:"newStage"`
	CurrentResponsible string `json:"currentResponsible"`
	CurrentDepartment  string `json:"currentDepartment"`
}

// MarshalJSON flattens Extra next to the canonical fields.
func (d Deal) MarshalJSON() ([]byte, error) {
	type plain Deal
	return marshalOpen(plain(d), d.Extra, dealFields)
}

// UnmarshalJSON splits canonical fields from extra ones.
func (d *Deal) UnmarshalJSON(data []byte) error {
	type plain Deal
	var p plain
	extra, err := unmarshalOpen(data, &p, dealFields)
	if err != nil {
		return err
	}
	*d = Deal(p)
	d.Extra = extra
	return nil
}

// MarshalJSON flattens Extra next to the canonical fields.
func (t Task) MarshalJSON() ([]byte, error) {
	type plain Task
	return marshalOpen(plain(t), t.Extra, taskFields)
}

// UnmarshalJSON splits canonical fields from extra ones.
func (t *Task) UnmarshalJSON(data []byte) error {
	type plain Task
	var p plain
	extra, err := unmarshalOpen(data, &p, taskFields)
	if err != nil {
		return err
	}
	*t = Task(p)
	t.Extra = extra
	return nil
}

var _ json.Marshaler = Deal{}
var _ json.Marshaler = Task{}
