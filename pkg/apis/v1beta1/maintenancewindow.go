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

import "time"

// MaintenanceWindowEarlyStart is the fixed 10-minute early-start
// buffer a maintenance window's synthesized period uses, so a resource
// is already running when the window opens. Deliberately a constant,
// not configuration.
const MaintenanceWindowEarlyStart = 10 * time.Minute

// MaintenanceWindow is an externally defined platform maintenance
// window the scheduler treats as a transient Running period for any
// instance whose schedule references it by name.
type MaintenanceWindow struct {
	Account           string    `json:"account"`
	Region            string    `json:"region"`
	WindowID          string    `json:"window_id"`
	WindowName        string    `json:"window_name"`
	ScheduleTimezone  string    `json:"schedule_timezone,omitempty"`
	NextExecutionTime time.Time `json:"next_execution_time"`
	DurationHours     float64   `json:"duration_hours"`
}

// Key identifies a maintenance window entry in storage:
// (account-region, name-id).
func (m MaintenanceWindow) Key() (string, string) {
	return m.Account + ":" + m.Region, m.WindowName + ":" + m.WindowID
}

// IsRunningAt reports whether the window is active at t: it starts
// MaintenanceWindowEarlyStart before NextExecutionTime and lasts
// DurationHours.
func (m MaintenanceWindow) IsRunningAt(t time.Time) bool {
	start := m.NextExecutionTime.Add(-MaintenanceWindowEarlyStart)
	end := m.NextExecutionTime.Add(time.Duration(m.DurationHours * float64(time.Hour)))
	return !t.Before(start) && t.Before(end)
}
