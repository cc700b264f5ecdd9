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
	"time"
)

// OverrideStatus forces a schedule to a fixed desired state,
// short-circuiting period evaluation entirely.
type OverrideStatus string

const (
	OverrideNone    OverrideStatus = "none"
	OverrideRunning OverrideStatus = "running"
	OverrideStopped OverrideStatus = "stopped"
)

// ScheduledPeriod references a period by name and optionally pins the
// instance size to use while that period is active. Size only applies
// to resource families that support resize.
type ScheduledPeriod struct {
	PeriodName   string  `json:"period_name" validate:"required"`
	InstanceSize *string `json:"instance_size,omitempty"`
}

// Schedule is a named composition of periods with a timezone and
// policy flags.
type Schedule struct {
	Name                  string            `json:"name" validate:"required"`
	Timezone              string            `json:"timezone" validate:"required"`
	Periods               []ScheduledPeriod `json:"periods,omitempty"`
	OverrideStatus        OverrideStatus    `json:"override_status,omitempty"`
	StopNewInstances      bool              `json:"stop_new_instances"`
	Enforced              bool              `json:"enforced,omitempty"`
	Hibernate             bool              `json:"hibernate,omitempty"`
	RetainRunning         bool              `json:"retain_running,omitempty"`
	UseMaintenanceWindow  bool              `json:"use_maintenance_window,omitempty"`
	SSMMaintenanceWindows []string          `json:"ssm_maintenance_window,omitempty"`
	Description           string            `json:"description,omitempty"`
	ConfiguredInStack     bool              `json:"configured_in_stack,omitempty"`
}

// NewSchedule returns a Schedule with its documented defaults:
// stop_new_instances defaults true, all other flags default false.
func NewSchedule(name, timezone string) Schedule {
	return Schedule{
		Name:             name,
		Timezone:         timezone,
		OverrideStatus:   OverrideNone,
		StopNewInstances: true,
	}
}

// Location resolves the schedule's IANA timezone.
func (s Schedule) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule %q: invalid timezone %q: %w", s.Name, s.Timezone, err)
	}
	return loc, nil
}

// Validate enforces the schedule's structural invariants: exactly one
// of override_status or a non-empty period list, a resolvable
// timezone, and (when a lookup function is supplied) that every
// referenced period name actually exists.
func (s Schedule) Validate(periodExists func(name string) bool) error {
	if s.Name == "" {
		return fmt.Errorf("schedule name is required")
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	hasOverride := s.OverrideStatus != "" && s.OverrideStatus != OverrideNone
	hasPeriods := len(s.Periods) > 0
	if hasOverride == hasPeriods {
		return fmt.Errorf("schedule %q: exactly one of override_status or periods must be set", s.Name)
	}
	if periodExists != nil {
		for _, sp := range s.Periods {
			if !periodExists(sp.PeriodName) {
				return fmt.Errorf("schedule %q: references unknown period %q", s.Name, sp.PeriodName)
			}
		}
	}
	return nil
}
