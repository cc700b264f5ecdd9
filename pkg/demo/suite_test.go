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

package demo_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/demo"
	"github.com/instancefleet/scheduler/pkg/store"
)

func TestDemo(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Demo")
}

var _ = Describe("Seed", func() {
	It("writes every demo period and schedule, and every schedule references a seeded period", func() {
		ctx := context.Background()
		periods := store.NewMemory[v1beta1.Period]()
		schedules := store.NewMemory[v1beta1.Schedule]()

		Expect(demo.Seed(ctx, periods, schedules)).To(Succeed())

		storedPeriods, err := periods.List(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(storedPeriods).To(HaveLen(len(demo.Periods)))

		storedSchedules, err := schedules.List(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(storedSchedules).To(HaveLen(len(demo.Schedules)))

		names := map[string]bool{}
		for _, p := range storedPeriods {
			names[p.Name] = true
			Expect(p.ConfiguredInStack).To(BeTrue())
		}
		for _, s := range storedSchedules {
			Expect(s.ConfiguredInStack).To(BeTrue())
			for _, sp := range s.Periods {
				Expect(names).To(HaveKey(sp.PeriodName))
			}
			Expect(s.Validate(func(name string) bool { return names[name] })).To(Succeed())
		}
	})

	It("is idempotent across repeated seeding", func() {
		ctx := context.Background()
		periods := store.NewMemory[v1beta1.Period]()
		schedules := store.NewMemory[v1beta1.Schedule]()

		Expect(demo.Seed(ctx, periods, schedules)).To(Succeed())
		Expect(demo.Seed(ctx, periods, schedules)).To(Succeed())

		storedSchedules, err := schedules.List(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(storedSchedules).To(HaveLen(len(demo.Schedules)))
	})
})
