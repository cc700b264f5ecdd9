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

package scheduling

import (
	"time"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
)

// TimeInZone wraps a timestamp already converted into a schedule's
// timezone, so evaluators never have to re-derive time-of-day from a
// raw UTC time.Time and a Location on every call site.
type TimeInZone struct {
	time.Time
}

func InZone(t time.Time, loc *time.Location) TimeInZone {
	return TimeInZone{Time: t.In(loc)}
}

func (t TimeInZone) TimeOfDay() v1beta1.TimeOfDay {
	return v1beta1.TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// Context carries the state an executor pass needs threaded through
// every decision: the current time (both raw and per-schedule-zone
// conversions are derived from it), the tag key resources are scanned
// by, the full set of named schedules and periods, and the scheduling
// interval the worker budget is derived from.
type Context struct {
	CurrentTime               time.Time
	DispatchTime              time.Time
	TagKey                    string
	Schedules                 map[string]v1beta1.Schedule
	Periods                   map[string]v1beta1.Period
	SchedulingIntervalMinutes int
}
