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

// Package scheduling holds the period and schedule evaluators: pure
// functions from a period/schedule definition plus a point in time to
// a desired state. They take no dependency on storage, cloud
// adapters, or the decision engine, so they're trivial to test and to
// call from both the executor and the CLI's schedule-usage preview.
package scheduling

import (
	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
)

// DesiredState is the outcome of evaluating a single period (or, once
// folded, a whole schedule) at a point in time.
type DesiredState int

const (
	// Any is the identity element: the period has no opinion at this
	// timestamp, letting multi-period schedules compose cleanly.
	Any DesiredState = iota
	Running
	Stopped
)

// EvaluatePeriod implements: whether a period wants the
// resource Running, Stopped, or has no opinion (Any) at t.
func EvaluatePeriod(p v1beta1.Period, t TimeInZone) (DesiredState, error) {
	rec, err := p.Recurrence()
	if err != nil {
		return Any, err
	}
	if !rec.Contains(t.Time) {
		return Any, nil
	}
	tod := t.TimeOfDay()
	switch {
	case p.BeginTime != nil && p.EndTime != nil:
		if !tod.Before(*p.BeginTime) && tod.Before(*p.EndTime) {
			return Running, nil
		}
		return Stopped, nil
	case p.BeginTime != nil:
		if !tod.Before(*p.BeginTime) {
			return Running, nil
		}
		return Any, nil
	case p.EndTime != nil:
		if !tod.Before(*p.EndTime) {
			return Stopped, nil
		}
		return Any, nil
	default:
		return Running, nil
	}
}
