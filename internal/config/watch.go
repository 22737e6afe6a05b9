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

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 100 * time.Millisecond

// Watch watches path's containing directory for writes to path and sends a
// freshly loaded, defaulted, validated Config on the returned channel. The
// channel is closed when ctx is cancelled or the watcher's event stream
// ends; if the watcher cannot be started, Watch returns an error and no
// channel.
// Load errors from a change that leaves the file momentarily invalid (a
// half-written save) are swallowed; the next write retries.
func Watch(ctx context.Context, path string) (<-chan *Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("config: watch directory: %w", err)
	}

	ch := make(chan *Config, 1)
	go watchLoop(ctx, watcher, absPath, ch)
	return ch, nil
}

func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string, ch chan<- *Config) {
	defer close(ch)
	defer watcher.Close()

	name := filepath.Base(path)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				cfg, err := Load(path)
				if err != nil {
					return
				}
				select {
				case ch <- cfg:
				default:
				}
			})
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}
