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

// Package rdscluster adapts managed database clusters to the
// cloudprovider contract. A cluster is scheduled only when it is
// itself tagged and cluster scheduling is enabled fleet-wide; its
// member instances are never scheduled individually.
package rdscluster

import (
	"context"
	"fmt"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/cloudprovider"
)

type RawCluster struct {
	ID    string
	Name  string
	State string
	Tags  map[string]string
}

type API interface {
	DescribeTagged(ctx context.Context, tagKey string, ids []string) ([]RawCluster, error)
	StartCluster(ctx context.Context, id string) error
	StopCluster(ctx context.Context, id string) error
}

// Adapter is a cloudprovider.Provider for one (account, region)
// target, built by Factory. It returns no instances at all when
// clusterSchedulingEnabled is false, matching the fleet-wide
// schedule_clusters flag.
type Adapter struct {
	api                      API
	tagKey                   string
	clusterSchedulingEnabled bool
}

func Factory(tagKey string, clusterSchedulingEnabled bool, newAPI func(account, region string) API) cloudprovider.Factory {
	return func(account, region string) cloudprovider.Provider {
		return &Adapter{api: newAPI(account, region), tagKey: tagKey, clusterSchedulingEnabled: clusterSchedulingEnabled}
	}
}

func (a *Adapter) Service() v1beta1.Service { return v1beta1.ServiceRDSCluster }

func (a *Adapter) DescribeManagedInstances(ctx context.Context, scheduleNames []string) ([]cloudprovider.AbstractInstance, error) {
	if !a.clusterSchedulingEnabled {
		return nil, nil
	}
	raw, err := a.api.DescribeTagged(ctx, a.tagKey, nil)
	if err != nil {
		return nil, cloudprovider.NewTransientError(fmt.Errorf("rdscluster: describe tagged: %w", err))
	}
	allow := toSet(scheduleNames)
	out := make([]cloudprovider.AbstractInstance, 0, len(raw))
	for _, r := range raw {
		schedule := r.Tags[a.tagKey]
		if schedule == "" {
			continue
		}
		if len(allow) > 0 && !allow[schedule] {
			continue
		}
		out = append(out, toAbstract(r, schedule))
	}
	return out, nil
}

func (a *Adapter) Start(ctx context.Context, instance cloudprovider.AbstractInstance, _ cloudprovider.StartOptions) error {
	if err := a.api.StartCluster(ctx, instance.ID); err != nil {
		return cloudprovider.NewTerminalError(fmt.Errorf("rdscluster: start %s: %w", instance.ID, err))
	}
	return nil
}

func (a *Adapter) Stop(ctx context.Context, instance cloudprovider.AbstractInstance, _ cloudprovider.StopOptions) error {
	if err := a.api.StopCluster(ctx, instance.ID); err != nil {
		return cloudprovider.NewTerminalError(fmt.Errorf("rdscluster: stop %s: %w", instance.ID, err))
	}
	return nil
}

func (a *Adapter) Resize(_ context.Context, instance cloudprovider.AbstractInstance, _ string) error {
	return cloudprovider.NewTerminalError(fmt.Errorf("rdscluster: resize not supported for %s", instance.ID))
}

func toAbstract(r RawCluster, schedule string) cloudprovider.AbstractInstance {
	running := r.State == "available"
	stopped := r.State == "stopped"
	state := cloudprovider.StateUnknown
	switch r.State {
	case "available":
		state = cloudprovider.StateRunning
	case "stopped":
		state = cloudprovider.StateStopped
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
