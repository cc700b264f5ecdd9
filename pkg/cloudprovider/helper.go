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

package cloudprovider

import (
	"context"

	"github.com/avast/retry-go"
)

// BatchCall is a cloud API call over a batch of inputs that, on
// failure, cannot identify which element caused it; only that the
// call as a whole did not succeed (e.g. a single DeleteTags request
// covering 20 resource ARNs).
type BatchCall[T any] func(ctx context.Context, batch []T) error

// BisectRetry implements a batch-write retry strategy: a failed
// batch call is retried on each half, recursively, until either the
// half succeeds or a single-item call fails (identifying the bad
// item). Failing single items are collected and returned rather than
// aborting the rest of the batch. Call count is O(n + k log n) for k
// failing items out of n.
func BisectRetry[T any](ctx context.Context, items []T, call BatchCall[T]) []error {
	if len(items) == 0 {
		return nil
	}
	err := call(ctx, items)
	if err == nil {
		return nil
	}
	if len(items) == 1 {
		return []error{err}
	}
	mid := len(items) / 2
	var errs []error
	errs = append(errs, BisectRetry(ctx, items[:mid], call)...)
	errs = append(errs, BisectRetry(ctx, items[mid:], call)...)
	return errs
}

// WithTransientRetry wraps a single adapter call with bounded backoff
// for the ThrottlingOrTransient error class: a
// capacity-unavailable or terminal error is returned immediately since
// retrying either would either never succeed or belongs to the
// ICE-retry path instead, not this call-level retry.
func WithTransientRetry(ctx context.Context, attempts uint, call func() error) error {
	return retry.Do(
		call,
		retry.Attempts(attempts),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return ClassOf(err) == ErrorClassTransient }),
	)
}
