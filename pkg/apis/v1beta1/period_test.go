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

package v1beta1_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
)

func TestAPIs(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "APIs")
}

func mustTime(s string) *v1beta1.TimeOfDay {
	t, err := v1beta1.ParseTimeOfDay(s)
	Expect(err).ToNot(HaveOccurred())
	return &t
}

var _ = Describe("Period", func() {
	It("rejects a period with no constraints at all", func() {
		p := v1beta1.Period{Name: "empty"}
		Expect(p.Validate()).To(HaveOccurred())
	})

	It("accepts a one-sided begin-only period", func() {
		p := v1beta1.Period{Name: "morning", BeginTime: mustTime("05:00")}
		Expect(p.Validate()).ToNot(HaveOccurred())
	})

	It("rejects begin >= end", func() {
		p := v1beta1.Period{Name: "bad", BeginTime: mustTime("10:00"), EndTime: mustTime("09:00")}
		Expect(p.Validate()).To(HaveOccurred())
	})

	It("accepts a period defined purely by recurrence", func() {
		p := v1beta1.Period{Name: "weekdays", Weekdays: []string{"mon-fri"}}
		Expect(p.Validate()).ToNot(HaveOccurred())
	})
})

var _ = Describe("Schedule", func() {
	It("requires exactly one of override_status or periods", func() {
		s := v1beta1.NewSchedule("both", "UTC")
		s.OverrideStatus = v1beta1.OverrideRunning
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "p1"}}
		Expect(s.Validate(func(string) bool { return true })).To(HaveOccurred())

		s2 := v1beta1.NewSchedule("neither", "UTC")
		Expect(s2.Validate(func(string) bool { return true })).To(HaveOccurred())
	})

	It("rejects an unresolvable timezone", func() {
		s := v1beta1.NewSchedule("bad-tz", "Not/AZone")
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "p1"}}
		Expect(s.Validate(func(string) bool { return true })).To(HaveOccurred())
	})

	It("rejects a reference to an unknown period", func() {
		s := v1beta1.NewSchedule("missing-period", "UTC")
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "ghost"}}
		Expect(s.Validate(func(string) bool { return false })).To(HaveOccurred())
	})
})
