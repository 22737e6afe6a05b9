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

package main

import (
	"fmt"

	"github.com/agentcore/core/internal/config"
)

// ValidateCmd loads and validates a configuration file without starting
// the server.
type ValidateCmd struct {
	Config string `short:"c" required:"" help:"Path to config file." type:"path"`
}

func (c *ValidateCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	fmt.Printf("config %s is valid\n", c.Config)
	fmt.Printf("  llm provider:     %s\n", cfg.LLM.Provider)
	fmt.Printf("  storage selector: %s\n", cfg.Storage.Selector)
	fmt.Printf("  reminder store:   %s (%s)\n", cfg.Reminder.StorePath, cfg.Reminder.Selector)
	return nil
}
