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

package admin_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/instancefleet/scheduler/pkg/admin"
	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/store"
)

func TestAdmin(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Admin")
}

func newAdmin() admin.Admin {
	return admin.Admin{
		Periods:   store.NewMemory[v1beta1.Period](),
		Schedules: store.NewMemory[v1beta1.Schedule](),
	}
}

func mustTOD(s string) *v1beta1.TimeOfDay {
	t, err := v1beta1.ParseTimeOfDay(s)
	Expect(err).ToNot(HaveOccurred())
	return &t
}

var _ = Describe("Periods", func() {
	It("creates, describes, updates, and deletes a period", func() {
		ctx := context.Background()
		a := newAdmin()
		p := v1beta1.Period{Name: "work", BeginTime: mustTOD("08:00"), EndTime: mustTOD("18:00")}

		created, err := a.CreatePeriod(ctx, p)
		Expect(err).ToNot(HaveOccurred())
		Expect(created.Name).To(Equal("work"))

		got, err := a.DescribePeriod(ctx, "work")
		Expect(err).ToNot(HaveOccurred())
		Expect(got.BeginTime.String()).To(Equal("08:00"))

		p.EndTime = mustTOD("17:00")
		updated, err := a.UpdatePeriod(ctx, p)
		Expect(err).ToNot(HaveOccurred())
		Expect(updated.EndTime.String()).To(Equal("17:00"))

		Expect(a.DeletePeriod(ctx, "work")).To(Succeed())
		_, err = a.DescribePeriod(ctx, "work")
		Expect(errors.Is(err, admin.ErrPeriodNotExists)).To(BeTrue())
	})

	It("rejects a duplicate create and an update of a missing period", func() {
		ctx := context.Background()
		a := newAdmin()
		p := v1beta1.Period{Name: "work", BeginTime: mustTOD("08:00")}

		_, err := a.CreatePeriod(ctx, p)
		Expect(err).ToNot(HaveOccurred())
		_, err = a.CreatePeriod(ctx, p)
		Expect(errors.Is(err, admin.ErrPeriodExists)).To(BeTrue())

		_, err = a.UpdatePeriod(ctx, v1beta1.Period{Name: "ghost", BeginTime: mustTOD("08:00")})
		Expect(errors.Is(err, admin.ErrPeriodNotExists)).To(BeTrue())
	})

	It("rejects an invalid definition on create", func() {
		ctx := context.Background()
		a := newAdmin()
		_, err := a.CreatePeriod(ctx, v1beta1.Period{Name: "empty"})
		Expect(err).To(HaveOccurred())
	})

	It("refuses to delete a period still referenced by a schedule", func() {
		ctx := context.Background()
		a := newAdmin()
		_, err := a.CreatePeriod(ctx, v1beta1.Period{Name: "work", BeginTime: mustTOD("08:00")})
		Expect(err).ToNot(HaveOccurred())

		s := v1beta1.NewSchedule("biz-hours", "UTC")
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "work"}}
		_, err = a.CreateSchedule(ctx, s)
		Expect(err).ToNot(HaveOccurred())

		err = a.DeletePeriod(ctx, "work")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("biz-hours"))
	})
})

var _ = Describe("Schedules", func() {
	It("rejects a schedule referencing an unknown period", func() {
		ctx := context.Background()
		a := newAdmin()
		s := v1beta1.NewSchedule("biz-hours", "UTC")
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "ghost"}}
		_, err := a.CreateSchedule(ctx, s)
		Expect(err).To(HaveOccurred())
	})

	It("creates, lists, and deletes a schedule", func() {
		ctx := context.Background()
		a := newAdmin()
		_, err := a.CreatePeriod(ctx, v1beta1.Period{Name: "work", BeginTime: mustTOD("08:00")})
		Expect(err).ToNot(HaveOccurred())

		s := v1beta1.NewSchedule("biz-hours", "UTC")
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "work"}}
		_, err = a.CreateSchedule(ctx, s)
		Expect(err).ToNot(HaveOccurred())

		all, err := a.DescribeSchedules(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(all).To(HaveLen(1))

		Expect(a.DeleteSchedule(ctx, "biz-hours")).To(Succeed())
		_, err = a.DescribeSchedule(ctx, "biz-hours")
		Expect(errors.Is(err, admin.ErrScheduleNotExists)).To(BeTrue())
	})
})
