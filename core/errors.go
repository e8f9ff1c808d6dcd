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


package core

import (
	"errors"
	"fmt"
)

// Error taxonomy for the ingestion pipeline. The orchestrator classifies
// stage errors against these sentinels to decide whether an attempt is
// worth retrying.
var (
	// ErrValidation indicates a malformed submission. Never retried:
	// resubmission with the same bad input fails identically.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidPayload indicates an undecodable inline payload or a
	// malformed reference. Never retried.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrTransientFetch indicates a network, timeout or
	// unavailable-object failure during content resolution. Retryable.
	ErrTransientFetch = errors.New("transient fetch error")

	// ErrStoreWrite indicates a downstream store rejected or timed out
	// a write. Retryable; the whole multi-store write is repeated.
	ErrStoreWrite = errors.New("store write failed")

	// ErrNotFound indicates a referenced blob or task does not exist.
	// Non-retryable for blob lookups.
	ErrNotFound = errors.New("not found")

	// ErrCancelled indicates the task was cancelled between stages.
	ErrCancelled = errors.New("task cancelled")
)

// IsRetryable reports whether an error may succeed on a later attempt.
// Validation failures and missing references never do.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientFetch) || errors.Is(err, ErrStoreWrite)
}

// StoreWriteError carries enough context about a failed sub-store write
// for the caller to decide retry: which store and which key.
type StoreWriteError struct {
	Store string
	Key   string
	Err   error
}

// NewStoreWriteError wraps a store failure with its store name and key.
func NewStoreWriteError(store, key string, err error) *StoreWriteError {
	return &StoreWriteError{Store: store, Key: key, Err: err}
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("%s write failed for key %q: %v", e.Store, e.Key, e.Err)
}

// Is matches the ErrStoreWrite sentinel so errors.Is classification works.
func (e *StoreWriteError) Is(target error) bool {
	return target == ErrStoreWrite
}

func (e *StoreWriteError) Unwrap() error {
	return e.Err
}
