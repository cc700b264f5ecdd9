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

// Package registry is the fleet-wide resource registry: every cloud
// resource the core has ever seen carrying a schedule tag, keyed for
// range scans per (account, region, service) the way the executor's
// enumeration step and the ASG event-driven dispatch path need. Built
// on the same Repository[T] abstraction as every other definition
// store, not a bespoke index, favoring composition over generic stores
// instead of a hand-rolled query layer.
package registry

import (
	"context"
	"sort"
	"strings"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/store"
)

// Registry wraps a Repository[RegisteredInstance], composing the
// storage key from the (account, sort key) composite since
// Repository[T] only models a single string key per row.
type Registry struct {
	repo store.Repository[v1beta1.RegisteredInstance]
}

func New(repo store.Repository[v1beta1.RegisteredInstance]) *Registry {
	return &Registry{repo: repo}
}

func key(account string, sortKey string) string {
	return account + "#" + sortKey
}

// Upsert registers or refreshes one instance sighting.
func (r *Registry) Upsert(ctx context.Context, instance v1beta1.RegisteredInstance) error {
	return r.repo.Put(ctx, key(instance.Account, instance.SortKey()), instance)
}

// FindBySchedulingTarget returns every registered instance for
// (account, region, service), ordered by sort key; the grouping the
// orchestrator and executor need to build a SchedulingTarget batch.
func (r *Registry) FindBySchedulingTarget(ctx context.Context, account, region string, service v1beta1.Service) ([]v1beta1.RegisteredInstance, error) {
	all, err := r.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	prefix := "resource#" + region + "#" + string(service) + "#"
	var out []v1beta1.RegisteredInstance
	for _, inst := range all {
		if inst.Account != account {
			continue
		}
		if !strings.HasPrefix(inst.SortKey(), prefix) {
			continue
		}
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortKey() < out[j].SortKey() })
	return out, nil
}

// List returns every registered resource across every account, region,
// and service; the full-fleet view the heartbeat reporter rolls up
// into an aggregate deployment shape.
func (r *Registry) List(ctx context.Context) ([]v1beta1.RegisteredInstance, error) {
	return r.repo.List(ctx)
}

// Delete removes a resource the core will no longer track. The core
// itself never calls this; it is exposed for a separate GC
// collaborator that prunes stale sightings.
func (r *Registry) Delete(ctx context.Context, instance v1beta1.RegisteredInstance) error {
	return r.repo.Delete(ctx, key(instance.Account, instance.SortKey()))
}
