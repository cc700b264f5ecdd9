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

// Package orchestrator drives the periodic-timer fan-out across every
// (account, region, service) scheduling target. It resolves the
// account list (including parameter-store indirections), computes the
// cross product against regions and enabled services, and dispatches
// one executor.Execute call per target under an operator-controlled
// concurrency cap.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/executor"
	"github.com/instancefleet/scheduler/pkg/logging"
	"github.com/instancefleet/scheduler/pkg/store"
)

// ParamResolver resolves a RemoteAccount indirection to a literal account id. Implementations wrap
// whatever parameter store the deployment uses; the core depends only
// on this seam.
type ParamResolver interface {
	ResolveAccountID(ctx context.Context, paramName string) (string, error)
}

// Target is one (account, region, service) unit the orchestrator
// dispatches a SchedulingRequest for.
type Target struct {
	Account string
	Region  string
	Service v1beta1.Service
}

// DepsFactory builds the executor Dependencies for one target,
// scoping the cloud provider (and any target-specific pieces) to
// (account, region, service) while the definition stores, resource
// registry, and event buses are typically shared across every target
// in a single-binary deployment.
type DepsFactory func(ctx context.Context, target Target) (executor.Dependencies, error)

// Orchestrator drives one scheduling pass across the whole fleet.
type Orchestrator struct {
	GlobalConfig  store.Repository[v1beta1.GlobalConfig]
	ParamResolver ParamResolver
	HubAccountID  string
	MaxConcurrent int
	BuildDeps     DepsFactory
}

func globalConfigKey() string {
	return v1beta1.ConfigKey.Type + "#" + v1beta1.ConfigKey.Name
}

// ResolveAccounts collects the literal account ids from
// GlobalConfig.RemoteAccounts, resolving any {param:...}
// indirection, then deduplicating against the hub account when
// ScheduleHubAccount is set (the hub account is scheduled once,
// whether or not it also appears in RemoteAccounts).
func (o *Orchestrator) ResolveAccounts(ctx context.Context, cfg v1beta1.GlobalConfig) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}

	if cfg.ScheduleHubAccount {
		add(o.HubAccountID)
	}
	if cfg.EnableCrossAccount {
		for _, ra := range cfg.RemoteAccounts {
			id := ra.AccountID
			if ra.IsIndirection() {
				if o.ParamResolver == nil {
					return nil, fmt.Errorf("orchestrator: remote account %q requires a param resolver", ra.ParamName)
				}
				resolved, err := o.ParamResolver.ResolveAccountID(ctx, ra.ParamName)
				if err != nil {
					return nil, fmt.Errorf("orchestrator: resolve remote account %q: %w", ra.ParamName, err)
				}
				id = resolved
			}
			add(id)
		}
	}
	if len(out) == 0 {
		add(o.HubAccountID)
	}
	return out, nil
}

// services returns the enabled service families from cfg, honoring
// the cluster-scheduling opt-in.
func services(cfg v1beta1.GlobalConfig) []v1beta1.Service {
	out := make([]v1beta1.Service, 0, len(cfg.ScheduledServices))
	for _, s := range cfg.ScheduledServices {
		if s == v1beta1.ServiceRDSCluster && !cfg.ScheduleClusters {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Targets computes the (accounts × regions × services) cross product
// the orchestrator dispatches against.
func (o *Orchestrator) Targets(ctx context.Context, cfg v1beta1.GlobalConfig) ([]Target, error) {
	accounts, err := o.ResolveAccounts(ctx, cfg)
	if err != nil {
		return nil, err
	}
	var targets []Target
	for _, account := range accounts {
		for _, region := range cfg.Regions {
			for _, svc := range services(cfg) {
				targets = append(targets, Target{Account: account, Region: region, Service: svc})
			}
		}
	}
	return targets, nil
}

// RunPass loads GlobalConfig, computes the target cross product, and
// dispatches one SchedulingRequest per target with MaxConcurrent
// bounding how many run at once. Per-target failures (enumeration,
// role assumption, executor errors) are logged and excluded from the
// returned results, never aborting the rest of the pass; GlobalConfig
// load failure is fatal for the whole pass.
func (o *Orchestrator) RunPass(ctx context.Context, now time.Time) ([]executor.PassResult, error) {
	cfg, err := o.GlobalConfig.Get(ctx, globalConfigKey())
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load global config: %w", err)
	}

	targets, err := o.Targets(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: compute targets: %w", err)
	}

	return o.dispatch(ctx, targets, now, nil), nil
}

// AffectedScheduleNames expands a definition-change event into the
// schedule names an event-driven dispatch should be narrowed to: the
// changed schedules themselves, plus every schedule referencing a
// changed period.
func AffectedScheduleNames(schedules []v1beta1.Schedule, changedSchedules, changedPeriods []string) []string {
	affected := make(map[string]bool, len(changedSchedules))
	for _, name := range changedSchedules {
		affected[name] = true
	}
	periodSet := make(map[string]bool, len(changedPeriods))
	for _, name := range changedPeriods {
		periodSet[name] = true
	}
	for _, s := range schedules {
		for _, sp := range s.Periods {
			if periodSet[sp.PeriodName] {
				affected[s.Name] = true
				break
			}
		}
	}
	out := make([]string, 0, len(affected))
	for name := range affected {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// DispatchForEvent serves the ASG event-driven path, narrowing
// enumeration to the schedules named by a definition change (the
// changed schedules plus any schedule whose periods changed) for just
// the affected targets, instead of a full fleet pass.
func (o *Orchestrator) DispatchForEvent(ctx context.Context, targets []Target, now time.Time, scheduleNames []string) []executor.PassResult {
	return o.dispatch(ctx, targets, now, scheduleNames)
}

func (o *Orchestrator) dispatch(ctx context.Context, targets []Target, now time.Time, scheduleNames []string) []executor.PassResult {
	// A fresh correlation id per pass ties every target's log lines
	// together across the concurrent fan-out.
	passID := uuid.New().String()
	log := logging.FromContext(ctx).With("pass_id", passID)
	ctx = logging.IntoContext(ctx, log)
	limit := o.MaxConcurrent
	if limit <= 0 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)

	var mu sync.Mutex
	var results []executor.PassResult

	for _, target := range targets {
		target := target
		g.Go(func() error {
			deps, err := o.BuildDeps(ctx, target)
			if err != nil {
				log.Errorw("failed to build dependencies for target, skipping", "account", target.Account, "region", target.Region, "service", target.Service, "error", err)
				return nil
			}
			result, err := executor.Execute(ctx, deps, executor.SchedulingRequest{
				Account: target.Account, Region: target.Region, Service: target.Service,
				CurrentDT: now, DispatchTime: now, ScheduleNames: scheduleNames,
			})
			if err != nil {
				log.Errorw("scheduling pass failed for target", "account", target.Account, "region", target.Region, "service", target.Service, "error", err)
				return nil
			}
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	// Every goroutine above swallows its own error into a log line so a
	// single target's failure never cancels the others; Wait's error is always nil here, by
	// construction, not because nothing can fail.
	_ = g.Wait()
	return results
}
