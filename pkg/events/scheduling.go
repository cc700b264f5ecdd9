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

package events

import "fmt"

// Started, Stopped, Resized, and Failed mirror a disruption
// controller's own event builders (Launching, Terminating,
// Unconsolidatable): one function per action, each returning a single
// Event ready to hand to a Bus.

func Started(instanceID, scheduleName, reason string) Event {
	return Event{
		InvolvedObject: instanceID,
		Type:           TypeNormal,
		Reason:         "InstanceStarted",
		Message:        fmt.Sprintf("Started via schedule %s (%s)", scheduleName, reason),
		DedupeValues:   []string{instanceID, reason},
	}
}

func Stopped(instanceID, scheduleName, reason string) Event {
	return Event{
		InvolvedObject: instanceID,
		Type:           TypeNormal,
		Reason:         "InstanceStopped",
		Message:        fmt.Sprintf("Stopped via schedule %s (%s)", scheduleName, reason),
		DedupeValues:   []string{instanceID, reason},
	}
}

func Resized(instanceID, scheduleName, targetSize string) Event {
	return Event{
		InvolvedObject: instanceID,
		Type:           TypeNormal,
		Reason:         "InstanceResized",
		Message:        fmt.Sprintf("Resized to %s via schedule %s", targetSize, scheduleName),
		DedupeValues:   []string{instanceID, targetSize},
	}
}

func Failed(instanceID, errorCode, message string) Event {
	return Event{
		InvolvedObject: instanceID,
		Type:           TypeWarning,
		Reason:         "SchedulingActionFailed",
		Message:        fmt.Sprintf("%s: %s", errorCode, message),
		DedupeValues:   []string{instanceID, errorCode},
	}
}
