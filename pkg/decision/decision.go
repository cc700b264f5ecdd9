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

// Package decision implements the per-resource decision engine: the
// pure function from an observed instance, its stored state, and a
// schedule definition to a single SchedulingDecision. It takes no
// dependency on storage or cloud adapters, so the ten-step algorithm
// can be exercised directly against table-driven scenarios.
package decision

import (
	"fmt"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/cloudprovider"
	"github.com/instancefleet/scheduler/pkg/scheduling"
)

// Action is the operation a decision asks the executor to perform.
type Action int

const (
	DoNothing Action = iota
	Start
	Stop
	Hibernate
	Resize
)

func (a Action) String() string {
	switch a {
	case Start:
		return "Start"
	case Stop:
		return "Stop"
	case Hibernate:
		return "Hibernate"
	case Resize:
		return "Resize"
	default:
		return "DoNothing"
	}
}

// Reason codes, one per branch of the algorithm, kept
// stable so events and logs can be grepped across releases.
const (
	ReasonUntaggedOrUnknown  = "untagged-or-unknown"
	ReasonOverride           = "override"
	ReasonManualStart        = "manual-start"
	ReasonRetainRunning      = "retain-running"
	ReasonResizeRequiresStop = "resize-requires-stop"
	ReasonResize             = "resize"
	ReasonStart              = "start"
	ReasonEnforcedStart      = "enforced-start"
	ReasonStop               = "stop"
	ReasonNewInstance        = "new-instance"
	ReasonNoOpinion          = "no-opinion"
	ReasonAdjacentPeriod     = "adjacent-period"
)

// Decision is the output of Decide: the action to take, why, and the
// ResourceStateRecord the executor should persist after applying it.
type Decision struct {
	Action         Action
	Reason         string
	Hibernate      bool
	ResizeTo       string
	NewStoredState v1beta1.ResourceStateRecord
}

// Input bundles everything Decide needs for one resource: the
// observed instance, the stored state record, the tag value naming
// its schedule, and the evaluation context (schedule definitions,
// periods, current time).
type Input struct {
	Instance      cloudprovider.AbstractInstance
	StoredState   v1beta1.ResourceStateRecord
	ScheduleName  string
	Ctx           scheduling.Context
	ExtraPeriods  []v1beta1.Period
}

// Decide implements the ten-step decision algorithm, in order.
func Decide(in Input) (Decision, error) {
	now := in.Ctx.CurrentTime

	// Step 1: resolve schedule by tag.
	schedule, ok := in.Ctx.Schedules[in.ScheduleName]
	if in.ScheduleName == "" || !ok {
		return Decision{
			Action: DoNothing,
			Reason: ReasonUntaggedOrUnknown,
			NewStoredState: in.StoredState,
		}, nil
	}

	// Steps 2-3: evaluate the schedule (override_status short-circuits
	// inside EvaluateSchedule itself).
	result, err := scheduling.EvaluateSchedule(schedule, in.Ctx.Periods, now, in.ExtraPeriods...)
	if err != nil {
		return Decision{}, fmt.Errorf("decide %s: %w", in.Instance.ID, err)
	}
	desired := result.State
	overridden := schedule.OverrideStatus == v1beta1.OverrideRunning || schedule.OverrideStatus == v1beta1.OverrideStopped

	// Step 4: manual-start detection while scheduled stopped.
	if in.StoredState.StoredState == v1beta1.StateStopped && in.Instance.IsRunning && schedule.RetainRunning {
		next := in.StoredState
		next.StoredState = v1beta1.StateRetainRunning
		next.LastActionTime = now
		return Decision{Action: DoNothing, Reason: ReasonManualStart, NewStoredState: next}, nil
	}

	// Step 5: RetainRunning sticky holds until the next Start transition.
	if in.StoredState.StoredState == v1beta1.StateRetainRunning && desired == scheduling.Stopped {
		return Decision{Action: DoNothing, Reason: ReasonRetainRunning, NewStoredState: in.StoredState}, nil
	}

	// Step 6: resize handling, only for resizable families.
	if result.InstanceSize != nil && in.Instance.IsResizable && *result.InstanceSize != in.Instance.InstanceType {
		size := *result.InstanceSize
		if in.Instance.IsRunning {
			next := in.StoredState
			next.StoredState = v1beta1.StateStopped
			next.ResizeTarget = &size
			next.LastActionTime = now
			return Decision{Action: Stop, Reason: ReasonResizeRequiresStop, ResizeTo: size, NewStoredState: next}, nil
		}
		next := in.StoredState
		next.StoredState = v1beta1.StateRunning
		next.ResizeTarget = nil
		next.LastActionTime = now
		return Decision{Action: Resize, Reason: ReasonResize, ResizeTo: size, NewStoredState: next}, nil
	}

	// Step 7: start if desired and currently stopped. Enforced drift
	// repair (both stored and observed already say stopped, under an
	// enforced schedule) is a strict subset of that condition, so it is
	// checked first to give it its own reason code.
	if desired == scheduling.Running && schedule.Enforced && in.StoredState.StoredState == v1beta1.StateStopped && in.Instance.IsStopped {
		next := in.StoredState
		next.StoredState = v1beta1.StateRunning
		next.LastActionTime = now
		return Decision{Action: Start, Reason: ReasonEnforcedStart, Hibernate: schedule.Hibernate, NewStoredState: next}, nil
	}
	if desired == scheduling.Running && in.Instance.IsStopped {
		next := in.StoredState
		next.StoredState = v1beta1.StateRunning
		next.LastActionTime = now
		r := ReasonStart
		if overridden {
			r = ReasonOverride
		}
		return Decision{Action: Start, Reason: r, Hibernate: schedule.Hibernate, NewStoredState: next}, nil
	}

	// Step 8: stop if desired and currently running. A resource seen
	// for the very first time is exempt when the schedule opts out of
	// stop_new_instances: it keeps running until its first genuine
	// period transition, and only its state record is written.
	if desired == scheduling.Stopped && in.Instance.IsRunning && !schedule.StopNewInstances &&
		in.StoredState.StoredState == v1beta1.StateUnknown && !overridden {
		next := in.StoredState
		next.StoredState = v1beta1.StateRunning
		next.LastActionTime = now
		return Decision{Action: DoNothing, Reason: ReasonNewInstance, NewStoredState: next}, nil
	}

	// A schedule whose next period starts running again within the
	// adjacency probe window is treated as a no-op instead of a Stop,
	// so a resource is never cycled off for a single minute between
	// two back-to-back running periods.
	if desired == scheduling.Stopped && in.Instance.IsRunning {
		if !overridden {
			adjacent, err := scheduling.HasAdjacentRunningTransition(schedule, in.Ctx.Periods, now, in.ExtraPeriods...)
			if err != nil {
				return Decision{}, fmt.Errorf("decide %s: %w", in.Instance.ID, err)
			}
			if adjacent {
				next := in.StoredState
				next.StoredState = v1beta1.StateRunning
				return Decision{Action: DoNothing, Reason: ReasonAdjacentPeriod, NewStoredState: next}, nil
			}
		}
		next := in.StoredState
		next.StoredState = v1beta1.StateStopped
		next.LastActionTime = now
		r := ReasonStop
		if overridden {
			r = ReasonOverride
		}
		return Decision{Action: Stop, Reason: r, Hibernate: schedule.Hibernate, NewStoredState: next}, nil
	}

	// Step 9: Any with a lingering RetainRunning sticky does nothing and
	// keeps the sticky. It is cleared once the schedule wants the
	// resource Running again (step 7 or step 10 then record Running).
	if desired == scheduling.Any && in.StoredState.StoredState == v1beta1.StateRetainRunning {
		return Decision{Action: DoNothing, Reason: ReasonRetainRunning, NewStoredState: in.StoredState}, nil
	}

	// Step 10: settle stored_state to the desired opinion, or leave it
	// alone when the schedule has none.
	next := in.StoredState
	if desired == scheduling.Running {
		next.StoredState = v1beta1.StateRunning
	} else if desired == scheduling.Stopped {
		next.StoredState = v1beta1.StateStopped
	}
	return Decision{Action: DoNothing, Reason: ReasonNoOpinion, NewStoredState: next}, nil
}
