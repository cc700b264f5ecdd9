/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package store defines the Repository abstraction every configuration
// and state object in the scheduler is persisted through, plus an
// in-memory implementation (used by the CLI when no database URL is given and by
// tests) and a caching decorator. The durable implementation lives in
// pkg/store/postgres.
package store

import "context"

// ErrNotFound is returned by Get when no record exists for the given
// key. Callers compare with errors.Is, not direct equality, since
// postgres implementations wrap it with query context.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "store: record not found" }

// Repository is the minimal persistence contract every stored object
// in the scheduler implements against: periods, schedules, global
// config, resource state, the cross-account registry, and maintenance
// windows. Both the in-memory and Postgres implementations satisfy it
// with identical semantics, so the executor and CLI never branch on
// which backend is live.
type Repository[T any] interface {
	Get(ctx context.Context, key string) (T, error)
	List(ctx context.Context) ([]T, error)
	Put(ctx context.Context, key string, value T) error
	Delete(ctx context.Context, key string) error
}
