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

package config

// This file hosts non-user-configurable parameters --- these are for development and testing purposes only.

// DefaultWorkers is the number of concurrent point families when the configuration does not say.
const DefaultWorkers = 4

// DefaultOneOfLimit is the number of distinct values a OneOf invariant keeps before it is
// falsified. Larger values keep more OneOf candidates alive at the cost of memory per slice.
const DefaultOneOfLimit = 3

// SampleQueueSize is the buffer size of the channel feeding each worker. A small buffer keeps
// the reader close to the slowest worker.
const SampleQueueSize = 64

// ValueSetLimit is the number of distinct values a ValueSet tracks exactly. Beyond it only the
// aggregate statistics are kept.
const ValueSetLimit = 1 << 10

// ResultFormatVersion is written at the head of every encoded result map and checked on decode.
const ResultFormatVersion = 1
