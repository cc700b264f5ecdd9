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

// Package ec2 adapts virtual-machine instances to the cloudprovider
// contract. It depends only on a narrow API interface rather than a
// concrete SDK client, the same seam a controller draws between itself
// and the cloud calls it drives, so tests and the fake provider
// substitute a stub without reaching for network mocks.
package ec2

import (
	"context"
	"fmt"
	"strings"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/cloudprovider"
)

const preferredInstanceTypesTag = "PreferredInstanceTypes"

// RawInstance is the shape the underlying EC2-like API returns, before
// translation to cloudprovider.AbstractInstance.
type RawInstance struct {
	ID           string
	Name         string
	State        string
	InstanceType string
	Tags         map[string]string
}

// API is the minimal surface the adapter depends on, already scoped to
// one (account, region) by however the caller constructed it.
type API interface {
	DescribeTagged(ctx context.Context, tagKey string, ids []string) ([]RawInstance, error)
	StartInstances(ctx context.Context, ids []string) error
	StopInstances(ctx context.Context, ids []string, hibernate bool) error
	ModifyInstanceType(ctx context.Context, id, instanceType string) error
}

// Adapter is a cloudprovider.Provider for one (account, region)
// target, built by Factory.
type Adapter struct {
	api    API
	tagKey string
}

// Factory returns a cloudprovider.Factory that builds an Adapter per
// target by calling newAPI(account, region).
func Factory(tagKey string, newAPI func(account, region string) API) cloudprovider.Factory {
	return func(account, region string) cloudprovider.Provider {
		return &Adapter{api: newAPI(account, region), tagKey: tagKey}
	}
}

func (a *Adapter) Service() v1beta1.Service { return v1beta1.ServiceEC2 }

func (a *Adapter) DescribeManagedInstances(ctx context.Context, scheduleNames []string) ([]cloudprovider.AbstractInstance, error) {
	raw, err := a.api.DescribeTagged(ctx, a.tagKey, nil)
	if err != nil {
		return nil, cloudprovider.NewTransientError(fmt.Errorf("ec2: describe tagged: %w", err))
	}
	out := make([]cloudprovider.AbstractInstance, 0, len(raw))
	allow := toSet(scheduleNames)
	for _, r := range raw {
		schedule := r.Tags[a.tagKey]
		if len(allow) > 0 && !allow[schedule] {
			continue
		}
		out = append(out, toAbstract(r, schedule))
	}
	return out, nil
}

// startAttempts bounds the transient-error retry loop wrapping the underlying start call; a
// capacity-unavailable error short-circuits the retry immediately
// since retrying the same size would never succeed.
const startAttempts = 3

func (a *Adapter) Start(ctx context.Context, instance cloudprovider.AbstractInstance, opts cloudprovider.StartOptions) error {
	classified := func() error {
		err := a.api.StartInstances(ctx, []string{instance.ID})
		if err == nil {
			return nil
		}
		if isInsufficientCapacity(err) {
			return cloudprovider.NewCapacityUnavailableError(err)
		}
		if isThrottling(err) {
			return cloudprovider.NewTransientError(err)
		}
		return cloudprovider.NewTerminalError(fmt.Errorf("ec2: start %s: %w", instance.ID, err))
	}
	if err := cloudprovider.WithTransientRetry(ctx, startAttempts, classified); err != nil {
		return err
	}
	return nil
}

func (a *Adapter) Stop(ctx context.Context, instance cloudprovider.AbstractInstance, opts cloudprovider.StopOptions) error {
	classified := func() error {
		err := a.api.StopInstances(ctx, []string{instance.ID}, opts.Hibernate)
		if err == nil {
			return nil
		}
		if isThrottling(err) {
			return cloudprovider.NewTransientError(err)
		}
		return cloudprovider.NewTerminalError(fmt.Errorf("ec2: stop %s: %w", instance.ID, err))
	}
	return cloudprovider.WithTransientRetry(ctx, startAttempts, classified)
}

// Resize changes the instance type; here this is only called
// while the instance is stopped (the decision engine never issues
// Resize against a running VM; it issues Stop with resize_target set
// and relies on the next pass to see observed=Stopped).
func (a *Adapter) Resize(ctx context.Context, instance cloudprovider.AbstractInstance, targetSize string) error {
	if err := a.api.ModifyInstanceType(ctx, instance.ID, targetSize); err != nil {
		return cloudprovider.NewTerminalError(fmt.Errorf("ec2: resize %s: %w", instance.ID, err))
	}
	return nil
}

// PreferredSizes extracts the comma-separated PreferredInstanceTypes
// tag. The executor does not call it: it parses the same tag with its
// own preferredSizes and passes the result to the ICE-retry queue, not
// to StartOptions.
func PreferredSizes(instance cloudprovider.AbstractInstance) []string {
	v, ok := instance.Tags[preferredInstanceTypesTag]
	if !ok || v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func toAbstract(r RawInstance, schedule string) cloudprovider.AbstractInstance {
	running := r.State == "running"
	stopped := r.State == "stopped"
	state := cloudprovider.StateUnknown
	switch r.State {
	case "running":
		state = cloudprovider.StateRunning
	case "stopped":
		state = cloudprovider.StateStopped
	case "pending":
		state = cloudprovider.StatePending
	case "stopping":
		state = cloudprovider.StateStopping
	}
	return cloudprovider.AbstractInstance{
		ID:           r.ID,
		Name:         r.Name,
		ScheduleName: schedule,
		CurrentState: state,
		InstanceType: r.InstanceType,
		Tags:         r.Tags,
		IsRunning:    running,
		IsStopped:    stopped,
		IsResizable:  true,
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
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "insufficientinstancecapacity") || strings.Contains(msg, "insufficient capacity")
}

func isThrottling(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "throttl") || strings.Contains(msg, "requestlimitexceeded") || strings.Contains(msg, "timeout")
}
