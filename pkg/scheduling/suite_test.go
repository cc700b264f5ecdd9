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

package scheduling_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/scheduling"
)

func TestScheduling(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Scheduling")
}

func mustTOD(s string) *v1beta1.TimeOfDay {
	t, err := v1beta1.ParseTimeOfDay(s)
	Expect(err).ToNot(HaveOccurred())
	return &t
}

func period(name, begin, end string) v1beta1.Period {
	return v1beta1.Period{Name: name, BeginTime: mustTOD(begin), EndTime: mustTOD(end)}
}

var _ = Describe("Period evaluator", func() {
	It("abstains outside its recurrence window", func() {
		p := v1beta1.Period{Name: "weekend-only", Weekdays: []string{"sat,sun"}, BeginTime: mustTOD("09:00"), EndTime: mustTOD("17:00")}
		monday := time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)
		state, err := scheduling.EvaluatePeriod(p, scheduling.InZone(monday, time.UTC))
		Expect(err).ToNot(HaveOccurred())
		Expect(state).To(Equal(scheduling.Any))
	})

	It("is Running all day with no begin/end", func() {
		p := v1beta1.Period{Name: "always", Weekdays: []string{"mon"}}
		monday := time.Date(2024, 6, 10, 3, 0, 0, 0, time.UTC)
		state, err := scheduling.EvaluatePeriod(p, scheduling.InZone(monday, time.UTC))
		Expect(err).ToNot(HaveOccurred())
		Expect(state).To(Equal(scheduling.Running))
	})

	It("treats a one-sided begin period as Any before begin", func() {
		p := v1beta1.Period{Name: "morning-start", BeginTime: mustTOD("05:00")}
		before := time.Date(2024, 6, 10, 4, 0, 0, 0, time.UTC)
		after := time.Date(2024, 6, 10, 6, 0, 0, 0, time.UTC)
		s1, _ := scheduling.EvaluatePeriod(p, scheduling.InZone(before, time.UTC))
		s2, _ := scheduling.EvaluatePeriod(p, scheduling.InZone(after, time.UTC))
		Expect(s1).To(Equal(scheduling.Any))
		Expect(s2).To(Equal(scheduling.Running))
	})

	It("treats a one-sided end period as Stopped after end, Any before", func() {
		p := v1beta1.Period{Name: "evening-stop", EndTime: mustTOD("18:00")}
		before := time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)
		after := time.Date(2024, 6, 10, 19, 0, 0, 0, time.UTC)
		s1, _ := scheduling.EvaluatePeriod(p, scheduling.InZone(before, time.UTC))
		s2, _ := scheduling.EvaluatePeriod(p, scheduling.InZone(after, time.UTC))
		Expect(s1).To(Equal(scheduling.Any))
		Expect(s2).To(Equal(scheduling.Stopped))
	})
})

var _ = Describe("Schedule evaluator", func() {
	periods := map[string]v1beta1.Period{
		"morning": period("morning", "05:00", "10:00"),
		"evening": period("evening", "10:01", "15:00"),
	}

	schedule := v1beta1.Schedule{
		Name:     "s1",
		Timezone: "UTC",
		Periods: []v1beta1.ScheduledPeriod{
			{PeriodName: "morning"},
			{PeriodName: "evening"},
		},
	}

	It("does not report Stop at the boundary between adjacent periods", func() {
		t := time.Date(2024, 6, 10, 10, 0, 30, 0, time.UTC)
		res, err := scheduling.EvaluateSchedule(schedule, periods, t)
		Expect(err).ToNot(HaveOccurred())
		// Naive per-minute read says Stopped (gap between 10:00 and 10:01)...
		Expect(res.State).To(Equal(scheduling.Stopped))
		// ...but the adjacency check must say the instance crosses into Running.
		adjacent, err := scheduling.HasAdjacentRunningTransition(schedule, periods, t)
		Expect(err).ToNot(HaveOccurred())
		Expect(adjacent).To(BeTrue())
	})

	It("holds adjacency across midnight", func() {
		crossMidnight := map[string]v1beta1.Period{
			"late":  period("late", "05:00", "23:59"),
			"early": period("early", "00:00", "03:00"),
		}
		s := v1beta1.Schedule{
			Name:     "cross-midnight",
			Timezone: "UTC",
			Periods: []v1beta1.ScheduledPeriod{
				{PeriodName: "late"},
				{PeriodName: "early"},
			},
		}
		t := time.Date(2024, 6, 10, 23, 59, 30, 0, time.UTC)
		res, err := scheduling.EvaluateSchedule(s, crossMidnight, t)
		Expect(err).ToNot(HaveOccurred())
		Expect(res.State).To(Equal(scheduling.Stopped))
		adjacent, err := scheduling.HasAdjacentRunningTransition(s, crossMidnight, t)
		Expect(err).ToNot(HaveOccurred())
		Expect(adjacent).To(BeTrue())
	})

	It("evaluates nth-weekday recurrences in the schedule's own timezone, not UTC", func() {
		sydneyPeriods := map[string]v1beta1.Period{
			"second-third-sunday": {Name: "second-third-sunday", Weekdays: []string{"sun#2,sun#3"}},
		}
		s := v1beta1.Schedule{
			Name:     "sydney",
			Timezone: "Australia/Sydney",
			Periods:  []v1beta1.ScheduledPeriod{{PeriodName: "second-third-sunday"}},
		}
		// 2023-08-13T00:00:00+10:00 is Sunday in Sydney but still Saturday in UTC.
		t := time.Date(2023, 8, 12, 14, 0, 0, 0, time.UTC) // = 2023-08-13 00:00 +10:00
		res, err := scheduling.EvaluateSchedule(s, sydneyPeriods, t)
		Expect(err).ToNot(HaveOccurred())
		Expect(res.State).To(Equal(scheduling.Running))
	})

	It("short-circuits on override_status, ignoring periods", func() {
		s := schedule
		s.OverrideStatus = v1beta1.OverrideRunning
		t := time.Date(2024, 6, 10, 23, 0, 0, 0, time.UTC)
		res, err := scheduling.EvaluateSchedule(s, periods, t)
		Expect(err).ToNot(HaveOccurred())
		Expect(res.State).To(Equal(scheduling.Running))
	})

	It("folds to Stopped between two-sided periods outside their windows", func() {
		t := time.Date(2024, 6, 10, 3, 0, 0, 0, time.UTC)
		res, err := scheduling.EvaluateSchedule(schedule, periods, t)
		Expect(err).ToNot(HaveOccurred())
		Expect(res.State).To(Equal(scheduling.Stopped))
	})

	It("folds to Any when no period has an opinion", func() {
		oneSided := map[string]v1beta1.Period{
			"morning-on": {Name: "morning-on", BeginTime: mustTOD("08:00")},
		}
		s := v1beta1.Schedule{
			Name:     "one-sided",
			Timezone: "UTC",
			Periods:  []v1beta1.ScheduledPeriod{{PeriodName: "morning-on"}},
		}
		t := time.Date(2024, 6, 10, 3, 0, 0, 0, time.UTC)
		res, err := scheduling.EvaluateSchedule(s, oneSided, t)
		Expect(err).ToNot(HaveOccurred())
		Expect(res.State).To(Equal(scheduling.Any))
	})
})
