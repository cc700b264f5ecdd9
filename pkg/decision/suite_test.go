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

package decision_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/cloudprovider"
	"github.com/instancefleet/scheduler/pkg/decision"
	"github.com/instancefleet/scheduler/pkg/scheduling"
)

func TestDecision(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Decision")
}

func mustTOD(s string) *v1beta1.TimeOfDay {
	t, err := v1beta1.ParseTimeOfDay(s)
	Expect(err).ToNot(HaveOccurred())
	return &t
}

func baseCtx(schedule v1beta1.Schedule, periods ...v1beta1.Period) scheduling.Context {
	pm := make(map[string]v1beta1.Period, len(periods))
	for _, p := range periods {
		pm[p.Name] = p
	}
	return scheduling.Context{
		CurrentTime:               time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC),
		TagKey:                    "Schedule",
		Schedules:                 map[string]v1beta1.Schedule{schedule.Name: schedule},
		Periods:                   pm,
		SchedulingIntervalMinutes: 5,
	}
}

var _ = Describe("Decide", func() {
	It("does nothing for an untagged or unknown schedule", func() {
		ctx := baseCtx(v1beta1.NewSchedule("biz-hours", "UTC"))
		out, err := decision.Decide(decision.Input{
			Instance:     cloudprovider.AbstractInstance{ID: "i-1", IsStopped: true},
			ScheduleName: "does-not-exist",
			Ctx:          ctx,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Action).To(Equal(decision.DoNothing))
		Expect(out.Reason).To(Equal(decision.ReasonUntaggedOrUnknown))
	})

	It("starts a stopped instance inside its Running window", func() {
		p := v1beta1.Period{Name: "work", BeginTime: mustTOD("08:00"), EndTime: mustTOD("18:00")}
		s := v1beta1.NewSchedule("biz-hours", "UTC")
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "work"}}
		out, err := decision.Decide(decision.Input{
			Instance:     cloudprovider.AbstractInstance{ID: "i-1", IsStopped: true, CurrentState: cloudprovider.StateStopped},
			ScheduleName: s.Name,
			Ctx:          baseCtx(s, p),
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Action).To(Equal(decision.Start))
		Expect(out.NewStoredState.StoredState).To(Equal(v1beta1.StateRunning))
	})

	It("stops a running instance outside its Running window", func() {
		p := v1beta1.Period{Name: "work", BeginTime: mustTOD("08:00"), EndTime: mustTOD("09:00")}
		s := v1beta1.NewSchedule("biz-hours", "UTC")
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "work"}}
		out, err := decision.Decide(decision.Input{
			Instance:     cloudprovider.AbstractInstance{ID: "i-1", IsRunning: true, CurrentState: cloudprovider.StateRunning},
			ScheduleName: s.Name,
			Ctx:          baseCtx(s, p),
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Action).To(Equal(decision.Stop))
	})

	It("sets RetainRunning on a manual start during a stopped window and leaves it running through a later Stopped evaluation", func() {
		p := v1beta1.Period{Name: "work", BeginTime: mustTOD("08:00"), EndTime: mustTOD("09:00")}
		s := v1beta1.NewSchedule("biz-hours", "UTC")
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "work"}}
		s.RetainRunning = true

		out, err := decision.Decide(decision.Input{
			Instance:     cloudprovider.AbstractInstance{ID: "i-1", IsRunning: true},
			StoredState:  v1beta1.ResourceStateRecord{StoredState: v1beta1.StateStopped},
			ScheduleName: s.Name,
			Ctx:          baseCtx(s, p),
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Action).To(Equal(decision.DoNothing))
		Expect(out.Reason).To(Equal(decision.ReasonManualStart))
		Expect(out.NewStoredState.StoredState).To(Equal(v1beta1.StateRetainRunning))

		// Outside the period (Stopped), the sticky holds and issues no stop.
		ctx2 := baseCtx(s, p)
		ctx2.CurrentTime = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
		out2, err := decision.Decide(decision.Input{
			Instance:     cloudprovider.AbstractInstance{ID: "i-1", IsRunning: true},
			StoredState:  out.NewStoredState,
			ScheduleName: s.Name,
			Ctx:          ctx2,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(out2.Action).To(Equal(decision.DoNothing))
		Expect(out2.Reason).To(Equal(decision.ReasonRetainRunning))
	})

	It("repairs drift for an enforced schedule when both stored and observed are stopped", func() {
		p := v1beta1.Period{Name: "work", BeginTime: mustTOD("08:00"), EndTime: mustTOD("18:00")}
		s := v1beta1.NewSchedule("biz-hours", "UTC")
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "work"}}
		s.Enforced = true

		out, err := decision.Decide(decision.Input{
			Instance:     cloudprovider.AbstractInstance{ID: "i-1", IsStopped: true},
			StoredState:  v1beta1.ResourceStateRecord{StoredState: v1beta1.StateStopped},
			ScheduleName: s.Name,
			Ctx:          baseCtx(s, p),
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Action).To(Equal(decision.Start))
		Expect(out.Reason).To(Equal(decision.ReasonEnforcedStart))
	})

	It("does not stop an enforced one-sided-start period before begin", func() {
		p := v1beta1.Period{Name: "morning-on", BeginTime: mustTOD("08:00")}
		s := v1beta1.NewSchedule("morning", "UTC")
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "morning-on"}}
		s.Enforced = true

		ctx := baseCtx(s, p)
		ctx.CurrentTime = time.Date(2024, 6, 10, 5, 0, 0, 0, time.UTC)
		out, err := decision.Decide(decision.Input{
			Instance:     cloudprovider.AbstractInstance{ID: "i-1", IsRunning: true},
			StoredState:  v1beta1.ResourceStateRecord{StoredState: v1beta1.StateRunning},
			ScheduleName: s.Name,
			Ctx:          ctx,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Action).To(Equal(decision.DoNothing))
	})

	It("requires a stop before resizing a running resizable instance", func() {
		size := "m5.large"
		p := v1beta1.Period{Name: "work", BeginTime: mustTOD("08:00"), EndTime: mustTOD("18:00")}
		s := v1beta1.NewSchedule("biz-hours", "UTC")
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "work", InstanceSize: &size}}

		out, err := decision.Decide(decision.Input{
			Instance: cloudprovider.AbstractInstance{
				ID: "i-1", IsRunning: true, IsResizable: true, InstanceType: "m5.small",
			},
			ScheduleName: s.Name,
			Ctx:          baseCtx(s, p),
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Action).To(Equal(decision.Stop))
		Expect(out.Reason).To(Equal(decision.ReasonResizeRequiresStop))
		Expect(out.ResizeTo).To(Equal(size))
		Expect(out.NewStoredState.ResizeTarget).To(HaveValue(Equal(size)))
	})

	It("resizes then starts a stopped resizable instance in the same pass", func() {
		size := "m5.large"
		p := v1beta1.Period{Name: "work", BeginTime: mustTOD("08:00"), EndTime: mustTOD("18:00")}
		s := v1beta1.NewSchedule("biz-hours", "UTC")
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "work", InstanceSize: &size}}

		out, err := decision.Decide(decision.Input{
			Instance: cloudprovider.AbstractInstance{
				ID: "i-1", IsStopped: true, IsResizable: true, InstanceType: "m5.small",
			},
			StoredState:  v1beta1.ResourceStateRecord{ResizeTarget: &size},
			ScheduleName: s.Name,
			Ctx:          baseCtx(s, p),
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Action).To(Equal(decision.Resize))
		Expect(out.ResizeTo).To(Equal(size))
		Expect(out.NewStoredState.ResizeTarget).To(BeNil())
	})

	It("does not stop one minute before a back-to-back Running period begins", func() {
		morning := v1beta1.Period{Name: "morning", BeginTime: mustTOD("08:00"), EndTime: mustTOD("12:00")}
		afternoon := v1beta1.Period{Name: "afternoon", BeginTime: mustTOD("12:01"), EndTime: mustTOD("18:00")}
		s := v1beta1.NewSchedule("biz-hours", "UTC")
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "morning"}, {PeriodName: "afternoon"}}

		ctx := baseCtx(s, morning, afternoon)
		ctx.CurrentTime = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
		out, err := decision.Decide(decision.Input{
			Instance:     cloudprovider.AbstractInstance{ID: "i-1", IsRunning: true, CurrentState: cloudprovider.StateRunning},
			ScheduleName: s.Name,
			Ctx:          ctx,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Action).To(Equal(decision.DoNothing))
		Expect(out.Reason).To(Equal(decision.ReasonAdjacentPeriod))
		Expect(out.NewStoredState.StoredState).To(Equal(v1beta1.StateRunning))
	})

	It("leaves a first-sighted running instance alone when stop_new_instances is off", func() {
		p := v1beta1.Period{Name: "work", BeginTime: mustTOD("08:00"), EndTime: mustTOD("09:00")}
		s := v1beta1.NewSchedule("biz-hours", "UTC")
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "work"}}
		s.StopNewInstances = false

		out, err := decision.Decide(decision.Input{
			Instance:     cloudprovider.AbstractInstance{ID: "i-1", IsRunning: true},
			StoredState:  v1beta1.ResourceStateRecord{StoredState: v1beta1.StateUnknown},
			ScheduleName: s.Name,
			Ctx:          baseCtx(s, p),
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Action).To(Equal(decision.DoNothing))
		Expect(out.Reason).To(Equal(decision.ReasonNewInstance))
		Expect(out.NewStoredState.StoredState).To(Equal(v1beta1.StateRunning))

		// Once a state record exists, the exemption no longer applies.
		out2, err := decision.Decide(decision.Input{
			Instance:     cloudprovider.AbstractInstance{ID: "i-1", IsRunning: true},
			StoredState:  out.NewStoredState,
			ScheduleName: s.Name,
			Ctx:          baseCtx(s, p),
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(out2.Action).To(Equal(decision.Stop))
	})

	It("emits DoNothing on a second pass with identical inputs and no external change", func() {
		p := v1beta1.Period{Name: "work", BeginTime: mustTOD("08:00"), EndTime: mustTOD("18:00")}
		s := v1beta1.NewSchedule("biz-hours", "UTC")
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "work"}}

		// First pass starts the instance; the adapter brings it running.
		first, err := decision.Decide(decision.Input{
			Instance:     cloudprovider.AbstractInstance{ID: "i-1", IsStopped: true},
			ScheduleName: s.Name,
			Ctx:          baseCtx(s, p),
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(first.Action).To(Equal(decision.Start))

		second, err := decision.Decide(decision.Input{
			Instance:     cloudprovider.AbstractInstance{ID: "i-1", IsRunning: true},
			StoredState:  first.NewStoredState,
			ScheduleName: s.Name,
			Ctx:          baseCtx(s, p),
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(second.Action).To(Equal(decision.DoNothing))
	})

	It("takes override_status unconditionally regardless of periods", func() {
		s := v1beta1.NewSchedule("forced-on", "UTC")
		s.OverrideStatus = v1beta1.OverrideRunning
		out, err := decision.Decide(decision.Input{
			Instance:     cloudprovider.AbstractInstance{ID: "i-1", IsStopped: true},
			ScheduleName: s.Name,
			Ctx:          baseCtx(s),
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Action).To(Equal(decision.Start))
		Expect(out.Reason).To(Equal(decision.ReasonOverride))
	})
})
