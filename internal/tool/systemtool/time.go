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

// Package systemtool holds small process-environment tools that need no
// external dependency - currently just the clock.
package systemtool

import (
	"context"
	"time"

	"github.com/agentcore/core/internal/tool"
)

type currentTimeArgs struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"description=IANA timezone name (e.g. Europe/Moscow); defaults to UTC"`
}

// NewCurrentTime builds the get_current_time tool, which reports wall-clock
// time in RFC3339 form so the model can reason about "now" without
// hallucinating a date.
func NewCurrentTime() tool.Tool {
	return tool.NewDeclarative("get_current_time", "Returns the current date and time.", func(ctx context.Context, args currentTimeArgs) (string, error) {
		loc := time.UTC
		if args.Timezone != "" {
			l, err := time.LoadLocation(args.Timezone)
			if err != nil {
				return tool.ErrorResult("unknown timezone: " + args.Timezone), nil
			}
			loc = l
		}
		return time.Now().In(loc).Format(time.RFC3339), nil
	})
}
