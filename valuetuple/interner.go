//  Copyright (c) 2023 Uber Technologies, Inc.
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

package valuetuple

import "sync"

// Interner deduplicates structurally identical tuples so that repeated samples share storage.
// It is safe for concurrent use.
type Interner struct {
	mu    sync.Mutex
	table map[string]ValueTuple
	hits  int
}

// NewInterner returns an empty interner.
func NewInterner() *Interner {
	return &Interner{table: make(map[string]ValueTuple)}
}

// Intern returns the canonical tuple equal to vt, registering vt if none exists yet.
func (in *Interner) Intern(vt ValueTuple) ValueTuple {
	key := vt.Key()
	in.mu.Lock()
	defer in.mu.Unlock()
	if canonical, ok := in.table[key]; ok {
		in.hits++
		return canonical
	}
	in.table[key] = vt
	return vt
}

// Stats returns the number of distinct tuples held and the number of lookups that were
// satisfied by an existing tuple.
func (in *Interner) Stats() (size, hits int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.table), in.hits
}
