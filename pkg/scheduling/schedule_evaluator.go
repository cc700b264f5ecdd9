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
	"fmt"
	"time"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
)

// adjacencyProbe is how far past the initial timestamp the adjacency
// check re-evaluates before concluding a resource has
// genuinely reached the end of its last Running period.
const adjacencyProbe = time.Minute

// Result is the outcome of folding every period of a schedule
// together at a single point in time.
type Result struct {
	State            DesiredState
	InstanceSize     *string
	ActivePeriodName *string
}

// EvaluateSchedule resolves a schedule's desired state at t. extraPeriods
// lets callers (the maintenance-window integration) append ephemeral
// periods for this evaluation only, without persisting them onto the
// schedule.
func EvaluateSchedule(s v1beta1.Schedule, periods map[string]v1beta1.Period, t time.Time, extraPeriods ...v1beta1.Period) (Result, error) {
	if s.OverrideStatus == v1beta1.OverrideRunning {
		return Result{State: Running}, nil
	}
	if s.OverrideStatus == v1beta1.OverrideStopped {
		return Result{State: Stopped}, nil
	}

	loc, err := s.Location()
	if err != nil {
		return Result{}, err
	}
	tz := InZone(t, loc)

	return foldPeriods(s, periods, tz, extraPeriods)
}

func foldPeriods(s v1beta1.Schedule, periods map[string]v1beta1.Period, tz TimeInZone, extraPeriods []v1beta1.Period) (Result, error) {
	var sawStopped bool
	for _, sp := range s.Periods {
		p, ok := periods[sp.PeriodName]
		if !ok {
			return Result{}, fmt.Errorf("schedule %q references unknown period %q", s.Name, sp.PeriodName)
		}
		state, err := EvaluatePeriod(p, tz)
		if err != nil {
			return Result{}, err
		}
		switch state {
		case Running:
			name := sp.PeriodName
			return Result{State: Running, InstanceSize: sp.InstanceSize, ActivePeriodName: &name}, nil
		case Stopped:
			sawStopped = true
		}
	}
	for i := range extraPeriods {
		state, err := EvaluatePeriod(extraPeriods[i], tz)
		if err != nil {
			return Result{}, err
		}
		if state == Running {
			name := extraPeriods[i].Name
			return Result{State: Running, ActivePeriodName: &name}, nil
		}
	}
	if sawStopped {
		return Result{State: Stopped}, nil
	}
	return Result{State: Any}, nil
}

// HasAdjacentRunningTransition implements the adjacency check: called
// when a naive per-minute comparison says a running
// resource just became Stopped, it re-evaluates a minute later (at t
// plus adjacencyProbe) and reports true if the schedule says Running
// again by then, meaning the resource crossed directly from one
// period into an adjacent one and must not actually be stopped. This
// also covers cross-midnight adjacency, since the probe crosses the
// day boundary the same way any other minute does.
func HasAdjacentRunningTransition(s v1beta1.Schedule, periods map[string]v1beta1.Period, t time.Time, extraPeriods ...v1beta1.Period) (bool, error) {
	probe, err := EvaluateSchedule(s, periods, t.Add(adjacencyProbe), extraPeriods...)
	if err != nil {
		return false, err
	}
	return probe.State == Running, nil
}
