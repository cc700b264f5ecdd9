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

package executor_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/cloudprovider"
	"github.com/instancefleet/scheduler/pkg/cloudprovider/fake"
	"github.com/instancefleet/scheduler/pkg/events"
	"github.com/instancefleet/scheduler/pkg/executor"
	"github.com/instancefleet/scheduler/pkg/registry"
	"github.com/instancefleet/scheduler/pkg/state"
	"github.com/instancefleet/scheduler/pkg/store"
)

func TestExecutor(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Executor")
}

func mustTOD(s string) *v1beta1.TimeOfDay {
	t, err := v1beta1.ParseTimeOfDay(s)
	Expect(err).ToNot(HaveOccurred())
	return &t
}

type collectingBus struct{ events []events.Event }

func (b *collectingBus) Record(es ...events.Event) { b.events = append(b.events, es...) }

func baseDeps() (executor.Dependencies, *fake.Provider, *collectingBus) {
	cfgRepo := store.NewMemory[v1beta1.GlobalConfig]()
	cfg := v1beta1.GlobalConfig{
		ScheduledServices:         []v1beta1.Service{v1beta1.ServiceEC2},
		Regions:                   []string{"us-east-1"},
		DefaultTimezone:           "UTC",
		TagKey:                    "Schedule",
		SchedulingIntervalMinutes: 5,
	}
	Expect(cfgRepo.Put(context.Background(), "config#scheduler", cfg)).To(Succeed())

	periodRepo := store.NewMemory[v1beta1.Period]()
	scheduleRepo := store.NewMemory[v1beta1.Schedule]()
	provider := fake.NewProvider(v1beta1.ServiceEC2)
	bus := &collectingBus{}

	deps := executor.Dependencies{
		GlobalConfig: cfgRepo,
		Periods:      periodRepo,
		Schedules:    scheduleRepo,
		State:        state.NewMemory(store.NewMemory[v1beta1.ResourceStateRecord]()),
		Registry:     registry.New(store.NewMemory[v1beta1.RegisteredInstance]()),
		Provider:     provider,
		LocalBus:     bus,
		GlobalBus:    &collectingBus{},
	}
	return deps, provider, bus
}

var _ = Describe("Execute", func() {
	It("rejects a request whose current_dt is a zero value", func() {
		deps, _, _ := baseDeps()
		_, err := executor.Execute(context.Background(), deps, executor.SchedulingRequest{
			Account: "111111111111", Region: "us-east-1", Service: v1beta1.ServiceEC2,
		})
		Expect(err).To(HaveOccurred())
	})

	It("starts a stopped instance inside its Running window and records a start event", func() {
		deps, provider, bus := baseDeps()
		Expect(deps.Periods.Put(context.Background(), "work", v1beta1.Period{
			Name: "work", BeginTime: mustTOD("08:00"), EndTime: mustTOD("18:00"),
		})).To(Succeed())
		s := v1beta1.NewSchedule("biz-hours", "UTC")
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "work"}}
		Expect(deps.Schedules.Put(context.Background(), "biz-hours", s)).To(Succeed())

		provider.Seed(cloudprovider.AbstractInstance{
			ID: "i-1", ScheduleName: "biz-hours", CurrentState: cloudprovider.StateStopped, IsStopped: true,
		})

		result, err := executor.Execute(context.Background(), deps, executor.SchedulingRequest{
			Account: "111111111111", Region: "us-east-1", Service: v1beta1.ServiceEC2,
			CurrentDT: time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC),
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Results).To(HaveLen(1))
		Expect(result.Results[0].ActionTaken).To(BeTrue())
		Expect(provider.Get("i-1").IsRunning).To(BeTrue())
		Expect(bus.events).To(HaveLen(1))
		Expect(bus.events[0].Reason).To(Equal("InstanceStarted"))

		rec, err := deps.State.Get(context.Background(), v1beta1.ResourceKey{
			Service: v1beta1.ServiceEC2, Account: "111111111111", Region: "us-east-1", ResourceID: "i-1",
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(rec.StoredState).To(Equal(v1beta1.StateRunning))
	})

	It("captures a start failure as a SchedulingResult without aborting the pass", func() {
		deps, provider, bus := baseDeps()
		Expect(deps.Periods.Put(context.Background(), "work", v1beta1.Period{
			Name: "work", BeginTime: mustTOD("08:00"), EndTime: mustTOD("18:00"),
		})).To(Succeed())
		s := v1beta1.NewSchedule("biz-hours", "UTC")
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "work"}}
		Expect(deps.Schedules.Put(context.Background(), "biz-hours", s)).To(Succeed())

		provider.Seed(cloudprovider.AbstractInstance{
			ID: "i-1", ScheduleName: "biz-hours", CurrentState: cloudprovider.StateStopped, IsStopped: true,
		})
		provider.StartErr["i-1"] = cloudprovider.NewTerminalError(errBoom)

		result, err := executor.Execute(context.Background(), deps, executor.SchedulingRequest{
			Account: "111111111111", Region: "us-east-1", Service: v1beta1.ServiceEC2,
			CurrentDT: time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC),
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Results).To(HaveLen(1))
		Expect(result.Results[0].ErrorCode).To(Equal(executor.ErrorStartFailed))
		Expect(bus.events[0].Reason).To(Equal("SchedulingActionFailed"))

		rec, err := deps.State.Get(context.Background(), v1beta1.ResourceKey{
			Service: v1beta1.ServiceEC2, Account: "111111111111", Region: "us-east-1", ResourceID: "i-1",
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(rec.StoredState).To(Equal(v1beta1.StateStartFailed))
	})

	It("does nothing and emits no event for an untagged instance", func() {
		deps, provider, bus := baseDeps()
		provider.Seed(cloudprovider.AbstractInstance{ID: "i-2", CurrentState: cloudprovider.StateStopped, IsStopped: true})

		result, err := executor.Execute(context.Background(), deps, executor.SchedulingRequest{
			Account: "111111111111", Region: "us-east-1", Service: v1beta1.ServiceEC2,
			CurrentDT: time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC),
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Results).To(HaveLen(1))
		Expect(result.Results[0].ActionTaken).To(BeFalse())
		Expect(bus.events).To(BeEmpty())
	})
})

var _ = Describe("RenderTagTemplate", func() {
	It("substitutes timestamp and scheduler placeholders", func() {
		t := time.Date(2024, 6, 10, 9, 5, 0, 0, time.UTC)
		tags := executor.RenderTagTemplate("ScheduleMessage=Started by {scheduler} on {year}-{month}-{day} at {hour}:{minute} {timezone}", "fleet-scheduler", t)
		Expect(tags).To(HaveKeyWithValue("ScheduleMessage", "Started by fleet-scheduler on 2024-06-10 at 09:05 UTC"))
	})

	It("renders multiple pairs and skips malformed ones", func() {
		t := time.Date(2024, 6, 10, 9, 5, 0, 0, time.UTC)
		tags := executor.RenderTagTemplate("StartedAt={hour}:{minute},malformed,Owner=ops", "s", t)
		Expect(tags).To(HaveLen(2))
		Expect(tags).To(HaveKeyWithValue("StartedAt", "09:05"))
		Expect(tags).To(HaveKeyWithValue("Owner", "ops"))
	})

	It("returns nothing for an empty template", func() {
		Expect(executor.RenderTagTemplate("", "s", time.Now())).To(BeEmpty())
	})
})

type boomErr struct{}

func (boomErr) Error() string { return "boom" }

var errBoom = boomErr{}
