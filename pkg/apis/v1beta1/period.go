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

package v1beta1

import (
	"fmt"

	"github.com/instancefleet/scheduler/pkg/cron"
)

// Period is a named recurrence plus an optional begin/end time,
// specifying when a resource carrying a schedule that references this
// period should be running.
type Period struct {
	Name              string     `json:"name" validate:"required"`
	Description       string     `json:"description,omitempty"`
	BeginTime         *TimeOfDay `json:"begintime,omitempty"`
	EndTime           *TimeOfDay `json:"endtime,omitempty"`
	Weekdays          []string   `json:"weekdays,omitempty"`
	Monthdays         []string   `json:"monthdays,omitempty"`
	Months            []string   `json:"months,omitempty"`
	ConfiguredInStack bool       `json:"configured_in_stack,omitempty"`
}

// Recurrence parses and validates the period's recurrence fields. It
// is computed on demand rather than cached on the struct so that a
// Period loaded from storage is always re-validated against the
// current cron dialect.
func (p Period) Recurrence() (cron.RecurrenceExpression, error) {
	weekdays, err := cron.ParseAndValidate(cron.FieldWeekdays, p.Weekdays)
	if err != nil {
		return cron.RecurrenceExpression{}, fmt.Errorf("period %q weekdays: %w", p.Name, err)
	}
	monthdays, err := cron.ParseAndValidate(cron.FieldMonthdays, p.Monthdays)
	if err != nil {
		return cron.RecurrenceExpression{}, fmt.Errorf("period %q monthdays: %w", p.Name, err)
	}
	months, err := cron.ParseAndValidate(cron.FieldMonths, p.Months)
	if err != nil {
		return cron.RecurrenceExpression{}, fmt.Errorf("period %q months: %w", p.Name, err)
	}
	return cron.NewRecurrenceExpression(months, monthdays, weekdays), nil
}

// Validate enforces the structural invariants of a period: it must
// carry at least one non-default constraint, and if both begin and
// end times are set, begin must precede end. One-sided periods (only
// begin or only end set) are legal and have distinct semantics; see
// Evaluate in pkg/scheduling.
func (p Period) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("period name is required")
	}
	if p.BeginTime != nil && p.EndTime != nil && !p.BeginTime.Before(*p.EndTime) {
		return fmt.Errorf("period %q: begintime must be before endtime", p.Name)
	}
	rec, err := p.Recurrence()
	if err != nil {
		return err
	}
	if p.BeginTime == nil && p.EndTime == nil &&
		rec.Months.IsDefaultAll() && rec.Monthdays.IsDefaultAll() && rec.Weekdays.IsDefaultAll() {
		return fmt.Errorf("period %q: at least one of begintime, endtime, weekdays, monthdays, months must be set", p.Name)
	}
	return nil
}
