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

package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileStore is a JSON-file-backed Store. Every mutation serializes through
// mu and persists the full reminder set by writing to a temp file in the
// same directory and renaming over the target, so a reader never observes
// a partially-written file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore opens (or creates) a JSON reminder store at path.
func NewFileStore(path string) (*FileStore, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("reminder: resolve path: %w", err)
	}
	s := &FileStore{path: abs}
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		if err := s.writeAll(nil); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *FileStore) readAll() ([]Reminder, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reminder: read store: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var reminders []Reminder
	if err := json.Unmarshal(data, &reminders); err != nil {
		return nil, fmt.Errorf("reminder: decode store: %w", err)
	}
	return reminders, nil
}

func (s *FileStore) writeAll(reminders []Reminder) error {
	data, err := json.MarshalIndent(reminders, "", "  ")
	if err != nil {
		return fmt.Errorf("reminder: encode store: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".reminders-*.tmp")
	if err != nil {
		return fmt.Errorf("reminder: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("reminder: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("reminder: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("reminder: rename temp file: %w", err)
	}
	return nil
}

func (s *FileStore) Add(ctx context.Context, r Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders, err := s.readAll()
	if err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = StatusPending
	}
	reminders = append(reminders, r)
	return s.writeAll(reminders)
}

func (s *FileStore) Get(ctx context.Context, id string) (Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders, err := s.readAll()
	if err != nil {
		return Reminder{}, err
	}
	for _, r := range reminders {
		if r.ID == id {
			return r, nil
		}
	}
	return Reminder{}, &ErrNotFound{ID: id}
}

func (s *FileStore) List(ctx context.Context) ([]Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

func (s *FileStore) Update(ctx context.Context, r Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders, err := s.readAll()
	if err != nil {
		return err
	}
	for i, existing := range reminders {
		if existing.ID == r.ID {
			r.CreatedAt = existing.CreatedAt
			r.UpdatedAt = time.Now()
			reminders[i] = r
			return s.writeAll(reminders)
		}
	}
	return &ErrNotFound{ID: r.ID}
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders, err := s.readAll()
	if err != nil {
		return err
	}
	for i, r := range reminders {
		if r.ID == id {
			reminders = append(reminders[:i], reminders[i+1:]...)
			return s.writeAll(reminders)
		}
	}
	return &ErrNotFound{ID: id}
}

func (s *FileStore) GetOverdue(ctx context.Context, now time.Time) ([]Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders, err := s.readAll()
	if err != nil {
		return nil, err
	}
	var overdue []Reminder
	for _, r := range reminders {
		if r.Overdue(now) {
			overdue = append(overdue, r)
		}
	}
	return overdue, nil
}

func (s *FileStore) MarkNotified(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders, err := s.readAll()
	if err != nil {
		return err
	}
	marked := make(map[string]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}
	now := time.Now()
	for i, r := range reminders {
		if marked[r.ID] {
			reminders[i].Notified = true
			reminders[i].UpdatedAt = now
		}
	}
	return s.writeAll(reminders)
}

var _ Store = (*FileStore)(nil)
