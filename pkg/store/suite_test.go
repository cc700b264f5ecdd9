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

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/instancefleet/scheduler/pkg/store"
)

func TestStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Store")
}

type record struct {
	Name  string
	Value int
}

var _ = Describe("Memory", func() {
	It("round-trips puts and gets", func() {
		m := store.NewMemory[record]()
		Expect(m.Put(context.Background(), "a", record{Name: "a", Value: 1})).To(Succeed())
		got, err := m.Get(context.Background(), "a")
		Expect(err).ToNot(HaveOccurred())
		Expect(got.Value).To(Equal(1))
	})

	It("returns ErrNotFound for a missing key", func() {
		m := store.NewMemory[record]()
		_, err := m.Get(context.Background(), "missing")
		Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
	})

	It("lists in key order", func() {
		m := store.NewMemory[record]()
		Expect(m.Put(context.Background(), "b", record{Name: "b"})).To(Succeed())
		Expect(m.Put(context.Background(), "a", record{Name: "a"})).To(Succeed())
		Expect(m.Put(context.Background(), "c", record{Name: "c"})).To(Succeed())
		all, err := m.List(context.Background())
		Expect(err).ToNot(HaveOccurred())
		Expect(all).To(HaveLen(3))
		Expect(all[0].Name).To(Equal("a"))
		Expect(all[2].Name).To(Equal("c"))
	})

	It("deletes without erroring on a missing key", func() {
		m := store.NewMemory[record]()
		Expect(m.Delete(context.Background(), "missing")).To(Succeed())
	})
})

// countingRepo counts reads against the wrapped repository so the
// tests can observe whether Cached actually served from cache.
type countingRepo struct {
	next  store.Repository[record]
	gets  int
	lists int
}

func (c *countingRepo) Get(ctx context.Context, key string) (record, error) {
	c.gets++
	return c.next.Get(ctx, key)
}

func (c *countingRepo) List(ctx context.Context) ([]record, error) {
	c.lists++
	return c.next.List(ctx)
}

func (c *countingRepo) Put(ctx context.Context, key string, value record) error {
	return c.next.Put(ctx, key, value)
}

func (c *countingRepo) Delete(ctx context.Context, key string) error {
	return c.next.Delete(ctx, key)
}

var _ = Describe("Cached", func() {
	It("serves repeated reads from cache after the first miss", func() {
		inner := &countingRepo{next: store.NewMemory[record]()}
		Expect(inner.Put(context.Background(), "a", record{Name: "a"})).To(Succeed())
		c := store.NewCached[record](inner, time.Minute)

		for i := 0; i < 3; i++ {
			_, err := c.Get(context.Background(), "a")
			Expect(err).ToNot(HaveOccurred())
		}
		Expect(inner.gets).To(Equal(1))
	})

	It("invalidates the cached entry and listing on write", func() {
		inner := &countingRepo{next: store.NewMemory[record]()}
		Expect(inner.Put(context.Background(), "a", record{Name: "a", Value: 1})).To(Succeed())
		c := store.NewCached[record](inner, time.Minute)

		_, err := c.List(context.Background())
		Expect(err).ToNot(HaveOccurred())
		_, err = c.List(context.Background())
		Expect(err).ToNot(HaveOccurred())
		Expect(inner.lists).To(Equal(1))

		Expect(c.Put(context.Background(), "a", record{Name: "a", Value: 2})).To(Succeed())
		got, err := c.Get(context.Background(), "a")
		Expect(err).ToNot(HaveOccurred())
		Expect(got.Value).To(Equal(2))

		all, err := c.List(context.Background())
		Expect(err).ToNot(HaveOccurred())
		Expect(all).To(HaveLen(1))
		Expect(inner.lists).To(Equal(2))
	})

	It("does not cache a miss", func() {
		inner := &countingRepo{next: store.NewMemory[record]()}
		c := store.NewCached[record](inner, time.Minute)
		_, err := c.Get(context.Background(), "missing")
		Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
		_, err = c.Get(context.Background(), "missing")
		Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
		Expect(inner.gets).To(Equal(2))
	})
})
