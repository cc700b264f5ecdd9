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

// Package admin implements the CLI request envelope's action set
//: create/update/delete/describe for periods and schedules,
// plus describe-schedule-usage. It is the business logic behind
// cmd/schedulerctl, kept separate from cobra's flag parsing so the
// same operations are reachable from a future REST front-end without
// dragging a CLI framework dependency along.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/schedule"
	"github.com/instancefleet/scheduler/pkg/store"
)

// Admin bundles the repositories every CLI action reads or writes.
// Both schedulerctl's in-memory mode (no --database-url) and its Postgres mode
// construct one of these the same way, differing only in which
// store.Repository implementation backs each field.
type Admin struct {
	Periods   store.Repository[v1beta1.Period]
	Schedules store.Repository[v1beta1.Schedule]
}

func periodKey(name string) string   { return name }
func scheduleKey(name string) string { return name }

func (a *Admin) periodExists(ctx context.Context) func(name string) bool {
	return func(name string) bool {
		_, err := a.Periods.Get(ctx, periodKey(name))
		return err == nil
	}
}

// The Exists/NotExists error pair keeps the "name already exists" /
// "no such <period|schedule>" wording stable, since operators script
// against these messages.
var (
	ErrPeriodExists      = errors.New("period already exists")
	ErrPeriodNotExists   = errors.New("no such period")
	ErrScheduleExists    = errors.New("schedule already exists")
	ErrScheduleNotExists = errors.New("no such schedule")
)

// CreatePeriod implements the create-period action: rejects a
// duplicate name, validates the definition, then writes it.
func (a *Admin) CreatePeriod(ctx context.Context, p v1beta1.Period) (v1beta1.Period, error) {
	if _, err := a.Periods.Get(ctx, periodKey(p.Name)); err == nil {
		return v1beta1.Period{}, fmt.Errorf("create-period %q: %w", p.Name, ErrPeriodExists)
	}
	if err := p.Validate(); err != nil {
		return v1beta1.Period{}, err
	}
	if err := a.Periods.Put(ctx, periodKey(p.Name), p); err != nil {
		return v1beta1.Period{}, fmt.Errorf("create-period %q: %w", p.Name, err)
	}
	return p, nil
}

// UpdatePeriod implements update-period: the named period must already
// exist; the new definition entirely replaces the old one (the CLI's
// update is a full replace, not a field-level patch).
func (a *Admin) UpdatePeriod(ctx context.Context, p v1beta1.Period) (v1beta1.Period, error) {
	if _, err := a.Periods.Get(ctx, periodKey(p.Name)); err != nil {
		return v1beta1.Period{}, fmt.Errorf("update-period %q: %w", p.Name, ErrPeriodNotExists)
	}
	if err := p.Validate(); err != nil {
		return v1beta1.Period{}, err
	}
	if err := a.Periods.Put(ctx, periodKey(p.Name), p); err != nil {
		return v1beta1.Period{}, fmt.Errorf("update-period %q: %w", p.Name, err)
	}
	return p, nil
}

// DeletePeriod implements delete-period. Deleting an unknown period is
// always an error, not a silent no-op: a typo'd name in a delete is
// far more likely to be an operator mistake than an intentional
// idempotent retry.
func (a *Admin) DeletePeriod(ctx context.Context, name string) error {
	if _, err := a.Periods.Get(ctx, periodKey(name)); err != nil {
		return fmt.Errorf("delete-period %q: %w", name, ErrPeriodNotExists)
	}
	for _, referencer := range a.schedulesReferencing(ctx, name) {
		return fmt.Errorf("delete-period %q: still referenced by schedule %q", name, referencer)
	}
	if err := a.Periods.Delete(ctx, periodKey(name)); err != nil {
		return fmt.Errorf("delete-period %q: %w", name, err)
	}
	return nil
}

func (a *Admin) schedulesReferencing(ctx context.Context, periodName string) []string {
	schedules, err := a.Schedules.List(ctx)
	if err != nil {
		return nil
	}
	var out []string
	for _, s := range schedules {
		for _, sp := range s.Periods {
			if sp.PeriodName == periodName {
				out = append(out, s.Name)
				break
			}
		}
	}
	return out
}

// DescribePeriod implements describe-periods when a name parameter is
// given.
func (a *Admin) DescribePeriod(ctx context.Context, name string) (v1beta1.Period, error) {
	p, err := a.Periods.Get(ctx, periodKey(name))
	if err != nil {
		return v1beta1.Period{}, fmt.Errorf("describe-periods %q: %w", name, ErrPeriodNotExists)
	}
	return p, nil
}

// DescribePeriods implements describe-periods with no name parameter.
func (a *Admin) DescribePeriods(ctx context.Context) ([]v1beta1.Period, error) {
	return a.Periods.List(ctx)
}

// CreateSchedule implements create-schedule.
func (a *Admin) CreateSchedule(ctx context.Context, s v1beta1.Schedule) (v1beta1.Schedule, error) {
	if _, err := a.Schedules.Get(ctx, scheduleKey(s.Name)); err == nil {
		return v1beta1.Schedule{}, fmt.Errorf("create-schedule %q: %w", s.Name, ErrScheduleExists)
	}
	if err := s.Validate(a.periodExists(ctx)); err != nil {
		return v1beta1.Schedule{}, err
	}
	if err := a.Schedules.Put(ctx, scheduleKey(s.Name), s); err != nil {
		return v1beta1.Schedule{}, fmt.Errorf("create-schedule %q: %w", s.Name, err)
	}
	return s, nil
}

// UpdateSchedule implements update-schedule: full replace, same as
// UpdatePeriod.
func (a *Admin) UpdateSchedule(ctx context.Context, s v1beta1.Schedule) (v1beta1.Schedule, error) {
	if _, err := a.Schedules.Get(ctx, scheduleKey(s.Name)); err != nil {
		return v1beta1.Schedule{}, fmt.Errorf("update-schedule %q: %w", s.Name, ErrScheduleNotExists)
	}
	if err := s.Validate(a.periodExists(ctx)); err != nil {
		return v1beta1.Schedule{}, err
	}
	if err := a.Schedules.Put(ctx, scheduleKey(s.Name), s); err != nil {
		return v1beta1.Schedule{}, fmt.Errorf("update-schedule %q: %w", s.Name, err)
	}
	return s, nil
}

// DeleteSchedule implements delete-schedule, unconditionally (unlike
// periods, nothing in this model references a schedule by name from
// another definition; resources reference it by tag value, which the
// core never validates against the schedule store at delete time).
func (a *Admin) DeleteSchedule(ctx context.Context, name string) error {
	if _, err := a.Schedules.Get(ctx, scheduleKey(name)); err != nil {
		return fmt.Errorf("delete-schedule %q: %w", name, ErrScheduleNotExists)
	}
	if err := a.Schedules.Delete(ctx, scheduleKey(name)); err != nil {
		return fmt.Errorf("delete-schedule %q: %w", name, err)
	}
	return nil
}

// DescribeSchedule implements describe-schedules with a name
// parameter (get_schedule).
func (a *Admin) DescribeSchedule(ctx context.Context, name string) (v1beta1.Schedule, error) {
	s, err := a.Schedules.Get(ctx, scheduleKey(name))
	if err != nil {
		return v1beta1.Schedule{}, fmt.Errorf("describe-schedules %q: %w", name, ErrScheduleNotExists)
	}
	return s, nil
}

// DescribeSchedules implements describe-schedules with no name
// (list_schedules).
func (a *Admin) DescribeSchedules(ctx context.Context) ([]v1beta1.Schedule, error) {
	return a.Schedules.List(ctx)
}

// DescribeScheduleUsage implements the describe-schedule-usage action
//: project the Running/Stopped timeline a schedule
// would produce over [start, end] without touching any real resource.
func (a *Admin) DescribeScheduleUsage(ctx context.Context, name string, start, end time.Time) (schedule.Usage, error) {
	s, err := a.Schedules.Get(ctx, scheduleKey(name))
	if err != nil {
		return schedule.Usage{}, fmt.Errorf("describe-schedule-usage %q: %w", name, ErrScheduleNotExists)
	}
	periodList, err := a.Periods.List(ctx)
	if err != nil {
		return schedule.Usage{}, fmt.Errorf("describe-schedule-usage %q: list periods: %w", name, err)
	}
	periods := make(map[string]v1beta1.Period, len(periodList))
	for _, p := range periodList {
		periods[p.Name] = p
	}
	return schedule.CalculateUsage(s, periods, start, end)
}
