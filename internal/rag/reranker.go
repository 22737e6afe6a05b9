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

package rag

import "sort"

// Relevance thresholds a caller may apply when filtering search results.
const (
	ThresholdStrict   = 0.5
	ThresholdModerate = 0.3
	ThresholdRelaxed  = 0.1
	ThresholdNone     = 0.0
)

// Reranker is a post-search filtering layer. The current implementation
// only stable-sorts after filtering; the contract leaves room for a future
// learned reranker to replace the sort step without touching callers.
type Reranker struct{}

func NewReranker() *Reranker { return &Reranker{} }

// ProcessResults filters results by minRelevance (when non-nil), then, if
// enableRerank is set, stable-sorts by score descending. query is accepted
// for interface symmetry with a future semantic reranker even though this
// implementation doesn't use it.
func (r *Reranker) ProcessResults(query string, results []Result, minRelevance *float64, enableRerank bool) []Result {
	filtered := make([]Result, 0, len(results))
	for _, res := range results {
		if minRelevance != nil && res.Score < *minRelevance {
			continue
		}
		filtered = append(filtered, res)
	}

	if enableRerank {
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].Score > filtered[j].Score
		})
	}
	return filtered
}
