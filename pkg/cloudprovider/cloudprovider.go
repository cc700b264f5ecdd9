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

// Package cloudprovider defines the contract every resource-family
// adapter (EC2 instances, RDS instances, RDS clusters, auto-scaling
// groups) implements, and the AbstractInstance shape the decision
// engine reasons about regardless of which family produced it.
package cloudprovider

import (
	"context"
	"errors"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
)

// InstanceState mirrors the coarse lifecycle states every resource
// family can report, independent of each cloud API's own vocabulary.
type InstanceState string

const (
	StateRunning  InstanceState = "running"
	StateStopped  InstanceState = "stopped"
	StatePending  InstanceState = "pending"
	StateStopping InstanceState = "stopping"
	StateUnknown  InstanceState = "unknown"
)

// AbstractInstance is the family-agnostic view of a tagged resource
// that the decision engine consumes. Every adapter's
// DescribeManagedInstances returns these regardless of whether the
// underlying resource is a VM, a DB instance, or an ASG.
type AbstractInstance struct {
	ID                 string
	Name               string
	ScheduleName       string
	CurrentState       InstanceState
	InstanceType       string
	Tags               map[string]string
	MaintenanceWindows []string
	IsRunning          bool
	IsStopped          bool
	IsResizable        bool
}

// StartOptions carries the hints Start may need: a hibernate hint
// carried over from the last Stop, and an ordered list of alternate
// instance types to try when the preferred size hits insufficient
// capacity. The executor sets only Hibernate, and none of the bundled
// adapters reads PreferredSizes; alternate sizes from the
// PreferredInstanceTypes tag reach the ICE-retry handler in
// pkg/iceretry through its queue message instead.
type StartOptions struct {
	Hibernate      bool
	PreferredSizes []string
}

// StopOptions carries policy flags the adapter needs at stop time.
type StopOptions struct {
	Hibernate bool
}

// Result is what every mutating adapter call returns: either success,
// or an error classified into the taxonomy the executor maps to a
// SchedulingResult.ErrorCode.
type Result struct {
	Instance AbstractInstance
	Err      error
}

// Provider is the contract every resource-family adapter implements.
// A Provider is constructed already scoped to one (account, region)
// target by a Factory, so its methods never re-thread account/region
// through every call the way the underlying cloud APIs would.
type Provider interface {
	// Service identifies which family this adapter drives, used for
	// tag parsing (e.g. min-desired-max for ASG) and metrics labels.
	Service() v1beta1.Service

	// DescribeManagedInstances lists every resource tagged with the
	// scheduler's tag key in this provider's (account, region),
	// optionally narrowed to scheduleNames (used by the ASG
	// event-driven dispatch path). The bundled adapters list tagged
	// resources with a single describe call and do not split it into
	// batches.
	DescribeManagedInstances(ctx context.Context, scheduleNames []string) ([]AbstractInstance, error)

	Start(ctx context.Context, instance AbstractInstance, opts StartOptions) error
	Stop(ctx context.Context, instance AbstractInstance, opts StopOptions) error
	Resize(ctx context.Context, instance AbstractInstance, targetSize string) error
}

// Factory builds a Provider scoped to one (account, region) target.
// cmd/scheduler registers one Factory per v1beta1.Service.
type Factory func(account, region string) Provider

// ErrorClass is the taxonomy the executor maps onto SchedulingResult.ErrorCode.
type ErrorClass string

const (
	ErrorClassCapacityUnavailable ErrorClass = "insufficient-capacity"
	ErrorClassTransient           ErrorClass = "transient"
	ErrorClassTerminal            ErrorClass = "terminal"
)

// AdapterError wraps a cloud-call failure with the class the executor
// branch on, so adapters never need to duplicate each other's
// string-matching against provider-specific error codes at the call
// site; they do it once, here, at the adapter boundary.
type AdapterError struct {
	Class ErrorClass
	Err   error
}

func (e *AdapterError) Error() string { return e.Err.Error() }
func (e *AdapterError) Unwrap() error { return e.Err }

func NewCapacityUnavailableError(err error) *AdapterError {
	return &AdapterError{Class: ErrorClassCapacityUnavailable, Err: err}
}

func NewTransientError(err error) *AdapterError {
	return &AdapterError{Class: ErrorClassTransient, Err: err}
}

func NewTerminalError(err error) *AdapterError {
	return &AdapterError{Class: ErrorClassTerminal, Err: err}
}

// ClassOf extracts the ErrorClass from err, defaulting to terminal for
// errors that never passed through an AdapterError constructor.
func ClassOf(err error) ErrorClass {
	if err == nil {
		return ""
	}
	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		return adapterErr.Class
	}
	return ErrorClassTerminal
}

// describeBatchLimit is the per-call filter cap for describe calls
// (at most 50 ARNs/IDs per call) that Chunk splits by.
const describeBatchLimit = 50

// Chunk splits ids into groups of at most describeBatchLimit. None of
// the bundled family adapters calls it; each lists its tagged
// resources in one describe call.
func Chunk(ids []string) [][]string {
	if len(ids) == 0 {
		return nil
	}
	var out [][]string
	for i := 0; i < len(ids); i += describeBatchLimit {
		end := i + describeBatchLimit
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[i:end])
	}
	return out
}
