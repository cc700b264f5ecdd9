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

package store

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// listKey is the sentinel under which Cached memoizes List results;
// any Put or Delete invalidates it so a stale listing is never served.
const listKey = "\x00__list__"

// Cached decorates a Repository[T] with a read-through, write-through
// go-cache layer. It exists because the orchestrator re-reads the same
// global config and period/schedule definitions on every target in a
// pass (dozens of times within a single scheduling interval), and
// there is no reason to round-trip to Postgres for data that changes
// on the order of minutes, not seconds.
type Cached[T any] struct {
	next Repository[T]
	c    *cache.Cache
}

func NewCached[T any](next Repository[T], ttl time.Duration) *Cached[T] {
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &Cached[T]{
		next: next,
		c:    cache.New(ttl, ttl*2),
	}
}

func (c *Cached[T]) Get(ctx context.Context, key string) (T, error) {
	if v, ok := c.c.Get(key); ok {
		return v.(T), nil
	}
	v, err := c.next.Get(ctx, key)
	if err != nil {
		var zero T
		return zero, err
	}
	c.c.SetDefault(key, v)
	return v, nil
}

func (c *Cached[T]) List(ctx context.Context) ([]T, error) {
	if v, ok := c.c.Get(listKey); ok {
		return v.([]T), nil
	}
	v, err := c.next.List(ctx)
	if err != nil {
		return nil, err
	}
	c.c.SetDefault(listKey, v)
	return v, nil
}

func (c *Cached[T]) Put(ctx context.Context, key string, value T) error {
	if err := c.next.Put(ctx, key, value); err != nil {
		return err
	}
	c.c.Delete(key)
	c.c.Delete(listKey)
	return nil
}

func (c *Cached[T]) Delete(ctx context.Context, key string) error {
	if err := c.next.Delete(ctx, key); err != nil {
		return err
	}
	c.c.Delete(key)
	c.c.Delete(listKey)
	return nil
}
