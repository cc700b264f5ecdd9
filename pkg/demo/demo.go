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

// Package demo seeds a handful of representative periods and
// schedules into a fresh deployment, so an operator exploring the CLI
// for the first time has real rows to list and clone instead of an
// empty store.
package demo

import (
	"context"
	"fmt"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/store"
)

func strptr(s string) *string { return &s }

func tod(s string) *v1beta1.TimeOfDay {
	t, err := v1beta1.ParseTimeOfDay(s)
	if err != nil {
		panic(err) // demo data is a fixed constant table, never operator input
	}
	return &t
}

// Periods is the seed set of demo periods.
var Periods = []v1beta1.Period{
	{Name: "working-days", Description: "Working days", Weekdays: []string{"mon-fri"}},
	{Name: "weekends", Description: "Days in the weekend", Weekdays: []string{"sat-sun"}},
	{Name: "office-hours", Description: "Office hours", Weekdays: []string{"mon-fri"}, BeginTime: tod("09:00"), EndTime: tod("17:00")},
	{Name: "first-monday-in-quarter", Description: "Every first Monday of each quarter", Weekdays: []string{"mon#1"}, Months: []string{"jan/3"}},
}

// Schedules is the seed set of demo schedules, each referencing only
// periods present in Periods.
var Schedules = []v1beta1.Schedule{
	func() v1beta1.Schedule {
		s := v1beta1.NewSchedule("seattle-office-hours", "America/Los_Angeles")
		s.Description = "Office hours in Seattle (Pacific)"
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "office-hours"}}
		return s
	}(),
	func() v1beta1.Schedule {
		s := v1beta1.NewSchedule("uk-office-hours", "Europe/London")
		s.Description = "Office hours in the UK"
		s.Periods = []v1beta1.ScheduledPeriod{{PeriodName: "office-hours"}}
		return s
	}(),
	func() v1beta1.Schedule {
		s := v1beta1.NewSchedule("stopped", "UTC")
		s.Description = "Instances stopped"
		s.OverrideStatus = v1beta1.OverrideStopped
		return s
	}(),
	func() v1beta1.Schedule {
		s := v1beta1.NewSchedule("running", "UTC")
		s.Description = "Instances running"
		s.OverrideStatus = v1beta1.OverrideRunning
		return s
	}(),
	func() v1beta1.Schedule {
		s := v1beta1.NewSchedule("scale-up-down", "UTC")
		s.Description = "Vertical scaling on weekdays, based on UTC time"
		s.Periods = []v1beta1.ScheduledPeriod{
			{PeriodName: "weekends", InstanceSize: strptr("t2.nano")},
			{PeriodName: "working-days", InstanceSize: strptr("t2.micro")},
		}
		return s
	}(),
}

// Seed writes every demo period and schedule into the given stores,
// marking each ConfiguredInStack so the CLI's describe commands can
// tell operator-authored rows apart from the bundled samples. Put is
// idempotent per key, so Seed may be called more than once (e.g. on a
// CloudFormation stack update) without duplicating rows.
func Seed(ctx context.Context, periods store.Repository[v1beta1.Period], schedules store.Repository[v1beta1.Schedule]) error {
	for _, p := range Periods {
		p.ConfiguredInStack = true
		if err := periods.Put(ctx, p.Name, p); err != nil {
			return fmt.Errorf("demo: seed period %q: %w", p.Name, err)
		}
	}
	for _, s := range Schedules {
		s.ConfiguredInStack = true
		if err := schedules.Put(ctx, s.Name, s); err != nil {
			return fmt.Errorf("demo: seed schedule %q: %w", s.Name, err)
		}
	}
	return nil
}
