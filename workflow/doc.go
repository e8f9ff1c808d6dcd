// Copyright 2025 Poiesic Systems
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


// Package workflow drives submissions through the ingestion stages as a
// persisted per-task state machine: fetch, normalize, embed, write.
//
// The engine checkpoints before every stage so a restart resumes each
// in-flight task from its last completed stage, retries transient stage
// failures with capped exponential backoff, enforces per-attempt stage
// deadlines, and honors cancellation between stages. Task lifecycle is
// recorded in the ledger and only moves forward.
package workflow
