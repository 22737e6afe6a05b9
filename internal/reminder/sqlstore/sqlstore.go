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

// Package sqlstore implements reminder.Store against database/sql, sharing
// the dialect-selected placeholder convention conversation/sqlrepo uses so
// both can share one connection pool when a deployment enables SQL-backed
// conversations and reminders together.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/agentcore/core/internal/reminder"
)

const createRemindersTableSQL = `
CREATE TABLE IF NOT EXISTS reminders (
    id VARCHAR(255) PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    description TEXT,
    reminder_time TIMESTAMP NOT NULL,
    status VARCHAR(32) NOT NULL,
    notified BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// Store is a database/sql-backed reminder.Store.
type Store struct {
	db      *sql.DB
	dialect string
}

// New opens a Store against db, validating dialect and creating the
// reminders table if absent.
func New(db *sql.DB, dialect string) (*Store, error) {
	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("sqlstore: unsupported dialect %q", dialect)
	}
	s := &Store{db: db, dialect: dialect}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, part := range strings.Split(createRemindersTableSQL, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, part); err != nil {
			return fmt.Errorf("sqlstore: ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Store) ph(n int) string {
	if s.dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *Store) Add(ctx context.Context, r reminder.Reminder) error {
	if r.Status == "" {
		r.Status = reminder.StatusPending
	}
	now := time.Now()
	query := fmt.Sprintf(
		"INSERT INTO reminders (id, title, description, reminder_time, status, notified, created_at, updated_at) VALUES (%s, %s, %s, %s, %s, %s, %s, %s)",
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8))
	_, err := s.db.ExecContext(ctx, query, r.ID, r.Title, r.Description, r.ReminderTime, string(r.Status), r.Notified, now, now)
	if err != nil {
		return fmt.Errorf("sqlstore: add: %w", err)
	}
	return nil
}

func (s *Store) scanRow(row *sql.Row) (reminder.Reminder, error) {
	var r reminder.Reminder
	var status string
	var description sql.NullString
	if err := row.Scan(&r.ID, &r.Title, &description, &r.ReminderTime, &status, &r.Notified, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return reminder.Reminder{}, &reminder.ErrNotFound{}
		}
		return reminder.Reminder{}, fmt.Errorf("sqlstore: scan: %w", err)
	}
	r.Description = description.String
	r.Status = reminder.Status(status)
	return r, nil
}

func (s *Store) Get(ctx context.Context, id string) (reminder.Reminder, error) {
	query := fmt.Sprintf("SELECT id, title, description, reminder_time, status, notified, created_at, updated_at FROM reminders WHERE id = %s", s.ph(1))
	r, err := s.scanRow(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if nf, ok := err.(*reminder.ErrNotFound); ok {
			nf.ID = id
		}
		return reminder.Reminder{}, err
	}
	return r, nil
}

func (s *Store) List(ctx context.Context) ([]reminder.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, title, description, reminder_time, status, notified, created_at, updated_at FROM reminders ORDER BY reminder_time ASC")
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list: %w", err)
	}
	defer rows.Close()

	var reminders []reminder.Reminder
	for rows.Next() {
		var r reminder.Reminder
		var status string
		var description sql.NullString
		if err := rows.Scan(&r.ID, &r.Title, &description, &r.ReminderTime, &status, &r.Notified, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlstore: scan: %w", err)
		}
		r.Description = description.String
		r.Status = reminder.Status(status)
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

func (s *Store) Update(ctx context.Context, r reminder.Reminder) error {
	query := fmt.Sprintf(
		"UPDATE reminders SET title = %s, description = %s, reminder_time = %s, status = %s, notified = %s, updated_at = %s WHERE id = %s",
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7))
	result, err := s.db.ExecContext(ctx, query, r.Title, r.Description, r.ReminderTime, string(r.Status), r.Notified, time.Now(), r.ID)
	if err != nil {
		return fmt.Errorf("sqlstore: update: %w", err)
	}
	return requireAffected(result, r.ID)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM reminders WHERE id = %s", s.ph(1))
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("sqlstore: delete: %w", err)
	}
	return requireAffected(result, id)
}

func (s *Store) GetOverdue(ctx context.Context, now time.Time) ([]reminder.Reminder, error) {
	query := fmt.Sprintf(
		"SELECT id, title, description, reminder_time, status, notified, created_at, updated_at FROM reminders WHERE status = %s AND notified = %s AND reminder_time <= %s",
		s.ph(1), s.ph(2), s.ph(3))
	rows, err := s.db.QueryContext(ctx, query, string(reminder.StatusPending), false, now)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get overdue: %w", err)
	}
	defer rows.Close()

	var reminders []reminder.Reminder
	for rows.Next() {
		var r reminder.Reminder
		var status string
		var description sql.NullString
		if err := rows.Scan(&r.ID, &r.Title, &description, &r.ReminderTime, &status, &r.Notified, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlstore: scan: %w", err)
		}
		r.Description = description.String
		r.Status = reminder.Status(status)
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

func (s *Store) MarkNotified(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		query := fmt.Sprintf("UPDATE reminders SET notified = %s, updated_at = %s WHERE id = %s", s.ph(1), s.ph(2), s.ph(3))
		if _, err := s.db.ExecContext(ctx, query, true, time.Now(), id); err != nil {
			return fmt.Errorf("sqlstore: mark notified: %w", err)
		}
	}
	return nil
}

func requireAffected(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: rows affected: %w", err)
	}
	if n == 0 {
		return &reminder.ErrNotFound{ID: id}
	}
	return nil
}

var _ reminder.Store = (*Store)(nil)
