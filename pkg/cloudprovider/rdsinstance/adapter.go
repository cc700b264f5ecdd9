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

// Package rdsinstance adapts standalone managed database instances
// (not cluster members) to the cloudprovider contract, including this
// family's optional stop-time snapshot policy.
package rdsinstance

import (
	"context"
	"fmt"
	"strings"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/cloudprovider"
)

type RawInstance struct {
	ID          string
	Name        string
	State       string
	StorageType string
	Tags        map[string]string
	// ClusterMember is true when this instance belongs to a DB
	// cluster; those are never scheduled individually regardless of
	// tag, so DescribeManagedInstances filters them out.
	ClusterMember bool
}

type API interface {
	DescribeTagged(ctx context.Context, tagKey string, ids []string) ([]RawInstance, error)
	StartInstance(ctx context.Context, id string) error
	StopInstance(ctx context.Context, id string) error
	CreateSnapshot(ctx context.Context, instanceID, snapshotID string) error
}

// Adapter is a cloudprovider.Provider for one (account, region)
// target, built by Factory.
type Adapter struct {
	api             API
	tagKey          string
	stackName       string
	createSnapshots bool
}

// Factory returns a cloudprovider.Factory that builds an Adapter per
// target. stackName is used to derive snapshot identifiers
// ({stack}-stopped-{instance_id}).
func Factory(tagKey, stackName string, createSnapshots bool, newAPI func(account, region string) API) cloudprovider.Factory {
	return func(account, region string) cloudprovider.Provider {
		return &Adapter{
			api:             newAPI(account, region),
			tagKey:          tagKey,
			stackName:       stackName,
			createSnapshots: createSnapshots,
		}
	}
}

func (a *Adapter) Service() v1beta1.Service { return v1beta1.ServiceRDSInstance }

func (a *Adapter) DescribeManagedInstances(ctx context.Context, scheduleNames []string) ([]cloudprovider.AbstractInstance, error) {
	raw, err := a.api.DescribeTagged(ctx, a.tagKey, nil)
	if err != nil {
		return nil, cloudprovider.NewTransientError(fmt.Errorf("rdsinstance: describe tagged: %w", err))
	}
	allow := toSet(scheduleNames)
	out := make([]cloudprovider.AbstractInstance, 0, len(raw))
	for _, r := range raw {
		if r.ClusterMember {
			continue
		}
		schedule := r.Tags[a.tagKey]
		if len(allow) > 0 && !allow[schedule] {
			continue
		}
		out = append(out, toAbstract(r, schedule))
	}
	return out, nil
}

// startAttempts bounds the transient-error retry loop around the underlying start call.
const startAttempts = 3

func (a *Adapter) Start(ctx context.Context, instance cloudprovider.AbstractInstance, opts cloudprovider.StartOptions) error {
	return cloudprovider.WithTransientRetry(ctx, startAttempts, func() error {
		err := a.api.StartInstance(ctx, instance.ID)
		if err == nil {
			return nil
		}
		if isInsufficientCapacity(err) {
			return cloudprovider.NewCapacityUnavailableError(err)
		}
		if isThrottling(err) {
			return cloudprovider.NewTransientError(err)
		}
		return cloudprovider.NewTerminalError(fmt.Errorf("rdsinstance: start %s: %w", instance.ID, err))
	})
}

func (a *Adapter) Stop(ctx context.Context, instance cloudprovider.AbstractInstance, opts cloudprovider.StopOptions) error {
	if a.createSnapshots {
		snapshotID := fmt.Sprintf("%s-stopped-%s", a.stackName, instance.ID)
		if err := a.api.CreateSnapshot(ctx, instance.ID, snapshotID); err != nil {
			return cloudprovider.NewTerminalError(fmt.Errorf("rdsinstance: snapshot before stop %s: %w", instance.ID, err))
		}
	}
	if err := a.api.StopInstance(ctx, instance.ID); err != nil {
		return cloudprovider.NewTerminalError(fmt.Errorf("rdsinstance: stop %s: %w", instance.ID, err))
	}
	return nil
}

// Resize is not supported for managed DB instances in this core; the
// decision engine only issues Resize against resizable families.
func (a *Adapter) Resize(ctx context.Context, instance cloudprovider.AbstractInstance, targetSize string) error {
	return cloudprovider.NewTerminalError(fmt.Errorf("rdsinstance: resize not supported for %s", instance.ID))
}

func toAbstract(r RawInstance, schedule string) cloudprovider.AbstractInstance {
	running := r.State == "available"
	stopped := r.State == "stopped"
	state := cloudprovider.StateUnknown
	switch r.State {
	case "available":
		state = cloudprovider.StateRunning
	case "stopped":
		state = cloudprovider.StateStopped
	case "starting":
		state = cloudprovider.StatePending
	case "stopping":
		state = cloudprovider.StateStopping
	}
	return cloudprovider.AbstractInstance{
		ID:           r.ID,
		Name:         r.Name,
		ScheduleName: schedule,
		CurrentState: state,
		Tags:         r.Tags,
		IsRunning:    running,
		IsStopped:    stopped,
		IsResizable:  false,
	}
}

func toSet(ss []string) map[string]bool {
	if len(ss) == 0 {
		return nil
	}
	out := make(map[string]bool, len(ss))
	for _, s := range ss {
		out[s] = true
	}
	return out
}

func isInsufficientCapacity(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "insufficientdbinstancecapacity")
}

func isThrottling(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "throttl") || strings.Contains(msg, "timeout")
}
