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

// Package asg adapts auto-scaling groups to the cloudprovider
// contract. An ASG has no "stopped" state of its own:
// scheduling is simulated by rewriting min/desired/max to 0 on stop
// and restoring a remembered triple on start, persisted as a tag on
// the group itself so the remembered values survive scheduler
// restarts without needing resource-state memory.
package asg

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/cloudprovider"
)

// rememberedSizeTag stores the "min:desired:max" triple to restore on
// start. legacyRememberedSizeTag is the format migrated on first
// sight: a single desired-capacity integer with no min/max.
const (
	rememberedSizeTag       = "scheduler:mdm"
	legacyRememberedSizeTag = "scheduler:desired"
)

type RawGroup struct {
	Name    string
	Min     int
	Desired int
	Max     int
	Tags    map[string]string
}

type API interface {
	DescribeTagged(ctx context.Context, tagKey string, names []string) ([]RawGroup, error)
	UpdateSizes(ctx context.Context, name string, min, desired, max int) error
	PutTag(ctx context.Context, name, key, value string) error
}

type Adapter struct {
	api    API
	tagKey string
}

func Factory(tagKey string, newAPI func(account, region string) API) cloudprovider.Factory {
	return func(account, region string) cloudprovider.Provider {
		return &Adapter{api: newAPI(account, region), tagKey: tagKey}
	}
}

func (a *Adapter) Service() v1beta1.Service { return v1beta1.ServiceASG }

func (a *Adapter) DescribeManagedInstances(ctx context.Context, scheduleNames []string) ([]cloudprovider.AbstractInstance, error) {
	raw, err := a.api.DescribeTagged(ctx, a.tagKey, nil)
	if err != nil {
		return nil, cloudprovider.NewTransientError(fmt.Errorf("asg: describe tagged: %w", err))
	}
	allow := toSet(scheduleNames)
	out := make([]cloudprovider.AbstractInstance, 0, len(raw))
	for _, g := range raw {
		schedule := g.Tags[a.tagKey]
		if len(allow) > 0 && !allow[schedule] {
			continue
		}
		out = append(out, toAbstract(g, schedule))
	}
	return out, nil
}

// Start restores the remembered min/desired/max triple, migrating a
// legacy single-value tag to the mdm format idempotently if that's all
// that's present.
func (a *Adapter) Start(ctx context.Context, instance cloudprovider.AbstractInstance, _ cloudprovider.StartOptions) error {
	min, desired, max, err := rememberedSizes(instance.Tags)
	if err != nil {
		return cloudprovider.NewTerminalError(fmt.Errorf("asg: start %s: %w", instance.Name, err))
	}
	if err := a.api.UpdateSizes(ctx, instance.Name, min, desired, max); err != nil {
		return cloudprovider.NewTerminalError(fmt.Errorf("asg: start %s: %w", instance.Name, err))
	}
	if err := a.api.PutTag(ctx, instance.Name, rememberedSizeTag, formatSizes(min, desired, max)); err != nil {
		return cloudprovider.NewTerminalError(fmt.Errorf("asg: migrate remembered sizes %s: %w", instance.Name, err))
	}
	return nil
}

// Stop persists the group's current min/desired/max under
// rememberedSizeTag, then scales the group to zero.
func (a *Adapter) Stop(ctx context.Context, instance cloudprovider.AbstractInstance, _ cloudprovider.StopOptions) error {
	current := formatSizes(currentMin(instance), currentDesired(instance), currentMax(instance))
	if err := a.api.PutTag(ctx, instance.Name, rememberedSizeTag, current); err != nil {
		return cloudprovider.NewTerminalError(fmt.Errorf("asg: remember sizes %s: %w", instance.Name, err))
	}
	if err := a.api.UpdateSizes(ctx, instance.Name, 0, 0, 0); err != nil {
		return cloudprovider.NewTerminalError(fmt.Errorf("asg: stop %s: %w", instance.Name, err))
	}
	return nil
}

func (a *Adapter) Resize(_ context.Context, instance cloudprovider.AbstractInstance, _ string) error {
	return cloudprovider.NewTerminalError(fmt.Errorf("asg: resize not supported for %s", instance.Name))
}

// rememberedSizes reads the mdm tag, falling back to migrating the
// legacy single-value desired-capacity tag (min=max=desired) when mdm
// is absent. The migration is idempotent: Start always re-writes the
// mdm tag via PutTag regardless of which format it read from.
func rememberedSizes(tags map[string]string) (min, desired, max int, err error) {
	if v, ok := tags[rememberedSizeTag]; ok {
		return parseSizes(v)
	}
	if v, ok := tags[legacyRememberedSizeTag]; ok {
		d, parseErr := strconv.Atoi(strings.TrimSpace(v))
		if parseErr != nil {
			return 0, 0, 0, fmt.Errorf("parse legacy remembered size %q: %w", v, parseErr)
		}
		return d, d, d, nil
	}
	return 0, 0, 0, fmt.Errorf("no remembered min/desired/max for this group; it was never stopped by the scheduler")
}

func parseSizes(v string) (min, desired, max int, err error) {
	parts := strings.Split(v, ":")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("malformed remembered size %q", v)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		n, convErr := strconv.Atoi(strings.TrimSpace(p))
		if convErr != nil {
			return 0, 0, 0, fmt.Errorf("malformed remembered size %q: %w", v, convErr)
		}
		vals[i] = n
	}
	return vals[0], vals[1], vals[2], nil
}

func formatSizes(min, desired, max int) string {
	return fmt.Sprintf("%d:%d:%d", min, desired, max)
}

func toAbstract(g RawGroup, schedule string) cloudprovider.AbstractInstance {
	running := g.Desired > 0
	stopped := g.Desired == 0 && g.Min == 0 && g.Max == 0
	state := cloudprovider.StateStopped
	if running {
		state = cloudprovider.StateRunning
	}
	return cloudprovider.AbstractInstance{
		ID:           g.Name,
		Name:         g.Name,
		ScheduleName: schedule,
		CurrentState: state,
		Tags:         withCurrentSizes(g),
		IsRunning:    running,
		IsStopped:    stopped,
		IsResizable:  false,
	}
}

// withCurrentSizes stashes the group's current min/desired/max into
// the AbstractInstance's Tags map under the reserved keys
// scheduler:current-min, scheduler:current-desired and
// scheduler:current-max so Stop can read them back without a second
// describe call.
func withCurrentSizes(g RawGroup) map[string]string {
	out := make(map[string]string, len(g.Tags)+3)
	for k, v := range g.Tags {
		out[k] = v
	}
	out["scheduler:current-min"] = strconv.Itoa(g.Min)
	out["scheduler:current-desired"] = strconv.Itoa(g.Desired)
	out["scheduler:current-max"] = strconv.Itoa(g.Max)
	return out
}

func currentMin(i cloudprovider.AbstractInstance) int {
	return atoiOr0(i.Tags["scheduler:current-min"])
}

func currentDesired(i cloudprovider.AbstractInstance) int {
	return atoiOr0(i.Tags["scheduler:current-desired"])
}

func currentMax(i cloudprovider.AbstractInstance) int {
	return atoiOr0(i.Tags["scheduler:current-max"])
}

func atoiOr0(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
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
