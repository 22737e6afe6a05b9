// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package reminder implements a durable reminder store and a background
// scheduler that periodically scans it for overdue reminders.
package reminder

import (
	"context"
	"time"
)

// Status is the lifecycle state of a Reminder.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Reminder is a single scheduled notification. Notified becomes true at
// most once per lifetime: the scheduler's overdue scan never re-notifies a
// reminder it has already reported.
type Reminder struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	ReminderTime time.Time `json:"reminderTime"`
	Status       Status    `json:"status"`
	Notified     bool      `json:"notified"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Overdue reports whether r is pending, not yet notified, and its
// reminderTime has passed as of now.
func (r Reminder) Overdue(now time.Time) bool {
	return r.Status == StatusPending && !r.Notified && !r.ReminderTime.After(now)
}

// Store is the durability contract for reminders. Implementations must
// tolerate concurrent reads and writes from tool handlers and the
// scheduler's background loop.
type Store interface {
	Add(ctx context.Context, r Reminder) error
	Get(ctx context.Context, id string) (Reminder, error)
	List(ctx context.Context) ([]Reminder, error)
	Update(ctx context.Context, r Reminder) error
	Delete(ctx context.Context, id string) error

	// GetOverdue returns every pending, unnotified reminder whose
	// reminderTime has passed as of now.
	GetOverdue(ctx context.Context, now time.Time) ([]Reminder, error)

	// MarkNotified sets notified=true for the given reminder ids.
	MarkNotified(ctx context.Context, ids []string) error
}

// ErrNotFound is returned when a reminder id has no matching record.
type ErrNotFound struct {
	ID string
}

func (e *ErrNotFound) Error() string {
	return "reminder: not found: " + e.ID
}
