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

package schedule_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/schedule"
)

func TestSchedule(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Schedule")
}

func mustTOD(s string) *v1beta1.TimeOfDay {
	t, err := v1beta1.ParseTimeOfDay(s)
	Expect(err).ToNot(HaveOccurred())
	return &t
}

var _ = Describe("CalculateUsage", func() {
	It("projects one Running interval per day for a simple business-hours period", func() {
		periods := map[string]v1beta1.Period{
			"work": {Name: "work", BeginTime: mustTOD("08:00"), EndTime: mustTOD("18:00")},
		}
		s := v1beta1.NewSchedule("biz-hours", "UTC")
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "work"}}

		start := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
		usage, err := schedule.CalculateUsage(s, periods, start, end)
		Expect(err).ToNot(HaveOccurred())
		Expect(usage.Days).To(HaveLen(1))

		day := usage.Days[0]
		Expect(day.Date).To(Equal("2024-06-10"))
		Expect(day.RunningPeriods).To(HaveKey("work"))
		ri := day.RunningPeriods["work"]
		Expect(ri.BillingSeconds).To(Equal(10 * 3600))
		Expect(ri.BillingHours).To(Equal(10))
	})

	It("nudges the stop instant forward a minute when two periods are back-to-back", func() {
		periods := map[string]v1beta1.Period{
			"morning":   {Name: "morning", BeginTime: mustTOD("08:00"), EndTime: mustTOD("12:00")},
			"afternoon": {Name: "afternoon", BeginTime: mustTOD("12:01"), EndTime: mustTOD("18:00")},
		}
		s := v1beta1.NewSchedule("biz-hours", "UTC")
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "morning"}, {PeriodName: "afternoon"}}

		start := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
		usage, err := schedule.CalculateUsage(s, periods, start, start)
		Expect(err).ToNot(HaveOccurred())
		day := usage.Days[0]

		morning := day.RunningPeriods["morning"]
		Expect(morning.End).To(Equal(time.Date(2024, 6, 10, 12, 1, 0, 0, time.UTC)))
	})

	It("produces a zero-usage day when the schedule never runs", func() {
		periods := map[string]v1beta1.Period{
			"work": {Name: "work", BeginTime: mustTOD("08:00"), EndTime: mustTOD("18:00")},
		}
		s := v1beta1.NewSchedule("weekend-only", "UTC")
		s.OverrideStatus = v1beta1.OverrideStopped

		start := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
		usage, err := schedule.CalculateUsage(s, periods, start, start)
		Expect(err).ToNot(HaveOccurred())
		day := usage.Days[0]
		Expect(day.RunningPeriods).To(BeEmpty())
		Expect(day.BillingSeconds).To(Equal(0))
	})

	It("spans multiple days", func() {
		periods := map[string]v1beta1.Period{
			"work": {Name: "work", BeginTime: mustTOD("08:00"), EndTime: mustTOD("18:00")},
		}
		s := v1beta1.NewSchedule("biz-hours", "UTC")
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "work"}}

		start := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
		usage, err := schedule.CalculateUsage(s, periods, start, end)
		Expect(err).ToNot(HaveOccurred())
		Expect(usage.Days).To(HaveLen(3))
	})

	It("rejects an end date preceding start", func() {
		s := v1beta1.NewSchedule("biz-hours", "UTC")
		s.OverrideStatus = v1beta1.OverrideStopped
		_, err := schedule.CalculateUsage(s, nil,
			time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC))
		Expect(err).To(HaveOccurred())
	})
})
