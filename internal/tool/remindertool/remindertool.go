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

// Package remindertool exposes the reminder store (internal/reminder) as
// agent tools.
package remindertool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentcore/core/internal/reminder"
	"github.com/agentcore/core/internal/tool"
)

// Tools bundles the reminder store and optional scheduler a given agent
// instance shares across its reminder_* tools.
type Tools struct {
	store     reminder.Store
	scheduler *reminder.Scheduler
}

// New builds Tools. scheduler may be nil if no background scan is running;
// reminder_get_summary then reports the overdue set computed on demand.
func New(store reminder.Store, scheduler *reminder.Scheduler) *Tools {
	return &Tools{store: store, scheduler: scheduler}
}

// Register adds every reminder_* tool to registry.
func (t *Tools) Register(registry *tool.Registry) error {
	for _, tl := range []tool.Tool{
		t.add(),
		t.list(),
		t.complete(),
		t.delete(),
		t.getSummary(),
	} {
		if err := registry.Register(tl); err != nil {
			return err
		}
	}
	return nil
}

type addArgs struct {
	Title        string `json:"title" jsonschema:"required,description=Short reminder title"`
	Description  string `json:"description,omitempty" jsonschema:"description=Optional longer description"`
	ReminderTime string `json:"reminder_time" jsonschema:"required,description=RFC3339 timestamp the reminder is due"`
}

func (t *Tools) add() tool.Tool {
	return tool.NewDeclarative("reminder_add", "Creates a new reminder due at a given time.", func(ctx context.Context, args addArgs) (string, error) {
		when, err := time.Parse(time.RFC3339, args.ReminderTime)
		if err != nil {
			return tool.ErrorResult("invalid reminder_time: " + err.Error()), nil
		}
		r := reminder.Reminder{
			Title:        args.Title,
			Description:  args.Description,
			ReminderTime: when,
			Status:       reminder.StatusPending,
		}
		if err := t.store.Add(ctx, r); err != nil {
			return tool.ErrorResult(err.Error()), nil
		}
		return fmt.Sprintf("reminder %q created for %s", args.Title, when.Format(time.RFC3339)), nil
	})
}

type listArgs struct {
	Status string `json:"status,omitempty" jsonschema:"description=Filter by status: pending, completed, or cancelled"`
}

func (t *Tools) list() tool.Tool {
	return tool.NewDeclarative("reminder_list", "Lists reminders, optionally filtered by status.", func(ctx context.Context, args listArgs) (string, error) {
		reminders, err := t.store.List(ctx)
		if err != nil {
			return tool.ErrorResult(err.Error()), nil
		}
		var b strings.Builder
		for _, r := range reminders {
			if args.Status != "" && string(r.Status) != args.Status {
				continue
			}
			fmt.Fprintf(&b, "- [%s] %s due %s (id=%s)\n", r.Status, r.Title, r.ReminderTime.Format(time.RFC3339), r.ID)
		}
		if b.Len() == 0 {
			return "no reminders found", nil
		}
		return b.String(), nil
	})
}

type idArgs struct {
	ID string `json:"id" jsonschema:"required,description=Reminder id"`
}

func (t *Tools) complete() tool.Tool {
	return tool.NewDeclarative("reminder_complete", "Marks a reminder as completed.", func(ctx context.Context, args idArgs) (string, error) {
		r, err := t.store.Get(ctx, args.ID)
		if err != nil {
			return tool.ErrorResult(err.Error()), nil
		}
		r.Status = reminder.StatusCompleted
		if err := t.store.Update(ctx, r); err != nil {
			return tool.ErrorResult(err.Error()), nil
		}
		return fmt.Sprintf("reminder %q marked completed", r.Title), nil
	})
}

func (t *Tools) delete() tool.Tool {
	return tool.NewDeclarative("reminder_delete", "Deletes a reminder.", func(ctx context.Context, args idArgs) (string, error) {
		if err := t.store.Delete(ctx, args.ID); err != nil {
			return tool.ErrorResult(err.Error()), nil
		}
		return "reminder deleted", nil
	})
}

type summaryArgs struct{}

func (t *Tools) getSummary() tool.Tool {
	return tool.NewDeclarative("reminder_get_summary", "Reports currently overdue reminders.", func(ctx context.Context, _ summaryArgs) (string, error) {
		if t.scheduler != nil {
			if summary := t.scheduler.CurrentSummary(); summary != "" {
				return summary, nil
			}
		}
		overdue, err := t.store.GetOverdue(ctx, time.Now())
		if err != nil {
			return tool.ErrorResult(err.Error()), nil
		}
		if len(overdue) == 0 {
			return "no overdue reminders", nil
		}
		var b strings.Builder
		for _, r := range overdue {
			fmt.Fprintf(&b, "- %s due %s (id=%s)\n", r.Title, r.ReminderTime.Format(time.RFC3339), r.ID)
		}
		return b.String(), nil
	})
}
