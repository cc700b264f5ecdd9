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

package metrics_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/metrics"
	"github.com/instancefleet/scheduler/pkg/registry"
	"github.com/instancefleet/scheduler/pkg/store"
)

func TestMetrics(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Metrics")
}

func mustTOD(s string) *v1beta1.TimeOfDay {
	t, err := v1beta1.ParseTimeOfDay(s)
	Expect(err).ToNot(HaveOccurred())
	return &t
}

var _ = Describe("HeartbeatReporter", func() {
	It("rolls up schedules, periods, and registered resources into one deployment shape", func() {
		ctx := context.Background()
		schedules := store.NewMemory[v1beta1.Schedule]()
		periods := store.NewMemory[v1beta1.Period]()
		reg := registry.New(store.NewMemory[v1beta1.RegisteredInstance]())

		Expect(periods.Put(ctx, "open-ended", v1beta1.Period{Name: "open-ended", BeginTime: mustTOD("08:00")})).To(Succeed())

		s1 := v1beta1.NewSchedule("biz-hours", "UTC")
		s1.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "open-ended"}}
		s1.Enforced = true
		s1.ConfiguredInStack = true
		Expect(schedules.Put(ctx, "biz-hours", s1)).To(Succeed())

		s2 := v1beta1.NewSchedule("always-on", "UTC")
		s2.OverrideStatus = v1beta1.OverrideRunning
		Expect(schedules.Put(ctx, "always-on", s2)).To(Succeed())

		Expect(reg.Upsert(ctx, v1beta1.RegisteredInstance{
			Account: "111111111111", Region: "us-east-1", Service: v1beta1.ServiceEC2, ResourceID: "i-1", Schedule: "biz-hours",
		})).To(Succeed())
		Expect(reg.Upsert(ctx, v1beta1.RegisteredInstance{
			Account: "111111111111", Region: "us-east-1", Service: v1beta1.ServiceEC2, ResourceID: "i-2", Schedule: "biz-hours",
		})).To(Succeed())
		Expect(reg.Upsert(ctx, v1beta1.RegisteredInstance{
			Account: "222222222222", Region: "us-west-2", Service: v1beta1.ServiceRDSInstance, ResourceID: "db-1", Schedule: "always-on",
		})).To(Succeed())

		reporter := &metrics.HeartbeatReporter{Schedules: schedules, Periods: periods, Registry: reg}
		shape, err := reporter.Report(ctx)
		Expect(err).ToNot(HaveOccurred())

		Expect(shape.NumResources).To(Equal(3))
		Expect(shape.NumTargets).To(Equal(2))
		Expect(shape.NumAccounts).To(Equal(2))
		Expect(shape.NumSchedules).To(Equal(2))
		Expect(shape.NumCFNSchedules).To(Equal(1))
		Expect(shape.NumOneSidedSchedules).To(Equal(1))
		Expect(shape.Enforced).To(Equal(1))
		Expect(shape.Override).To(Equal(1))
		Expect(shape.Services).To(ConsistOf("ec2", "rds"))
	})

	It("tolerates a schedule referencing a period that no longer exists", func() {
		ctx := context.Background()
		schedules := store.NewMemory[v1beta1.Schedule]()
		periods := store.NewMemory[v1beta1.Period]()
		s := v1beta1.NewSchedule("broken", "UTC")
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "missing"}}
		Expect(schedules.Put(ctx, "broken", s)).To(Succeed())

		reg := registry.New(store.NewMemory[v1beta1.RegisteredInstance]())
		reporter := &metrics.HeartbeatReporter{Schedules: schedules, Periods: periods, Registry: reg}
		shape, err := reporter.Report(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(shape.NumSchedules).To(Equal(1))
		Expect(shape.NumOneSidedSchedules).To(Equal(0))
	})
})
