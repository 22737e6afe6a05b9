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
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const defaultCheckInterval = 5 * time.Minute

// Scheduler periodically scans a Store for overdue reminders and logs a
// summary at WARNING level. Exactly one scan loop runs per Scheduler
// instance; a second Start is a no-op.
type Scheduler struct {
	store         Store
	checkInterval time.Duration

	mu       sync.Mutex
	running  int32
	stopChan chan struct{}
	doneChan chan struct{}

	summaryMu      sync.RWMutex
	currentSummary string
}

// NewScheduler builds a Scheduler with the spec default check interval of
// 5 minutes, used when interval is 0.
func NewScheduler(store Store, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Scheduler{store: store, checkInterval: interval}
}

// Start begins the background scan loop. A second call while already
// running is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if atomic.LoadInt32(&s.running) == 1 {
		return
	}

	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	atomic.StoreInt32(&s.running, 1)
	go s.loop()
}

// Stop cancels the scan loop and waits for it to exit. A second call while
// already stopped is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if atomic.LoadInt32(&s.running) == 0 {
		return
	}

	atomic.StoreInt32(&s.running, 0)
	close(s.stopChan)
	<-s.doneChan
}

// CurrentSummary returns the most recent overdue-scan summary text, or ""
// if no scan has produced one yet.
func (s *Scheduler) CurrentSummary() string {
	s.summaryMu.RLock()
	defer s.summaryMu.RUnlock()
	return s.currentSummary
}

func (s *Scheduler) loop() {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.scan()
		case <-s.stopChan:
			return
		}
	}
}

func (s *Scheduler) scan() {
	ctx := context.Background()
	overdue, err := s.store.GetOverdue(ctx, time.Now())
	if err != nil {
		slog.Error("reminder scan failed", "error", err)
		return
	}
	if len(overdue) == 0 {
		return
	}

	summary := formatOverdueSummary(overdue)
	slog.Warn("overdue reminders", "count", len(overdue), "summary", summary)

	s.summaryMu.Lock()
	s.currentSummary = summary
	s.summaryMu.Unlock()

	ids := make([]string, len(overdue))
	for i, r := range overdue {
		ids[i] = r.ID
	}
	if err := s.store.MarkNotified(ctx, ids); err != nil {
		slog.Error("reminder mark notified failed", "error", err)
	}
}

func formatOverdueSummary(reminders []Reminder) string {
	var b strings.Builder
	for _, r := range reminders {
		fmt.Fprintf(&b, "- %s (due %s) %s [%s]\n", r.Title, r.ReminderTime.Format(time.RFC3339), r.Description, r.ID)
	}
	return b.String()
}
