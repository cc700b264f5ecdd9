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

package metrics

import (
	"context"
	"fmt"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/logging"
	"github.com/instancefleet/scheduler/pkg/registry"
	"github.com/instancefleet/scheduler/pkg/store"
)

// DeploymentShape summarizes one heartbeat cycle: an anonymous,
// aggregate snapshot of how a deployment is actually configured and
// how much of the fleet it's managing, logged for operators without
// exposing any individual resource identity.
type DeploymentShape struct {
	Services                []string
	Regions                 []string
	NumResources            int
	NumTargets              int
	NumAccounts             int
	NumSchedules            int
	NumCFNSchedules         int
	NumOneSidedSchedules    int
	StopNewInstances        int
	Enforced                int
	RetainRunning           int
	Hibernate               int
	Override                int
	UseSSMMaintenanceWindow int
	NonDefaultTimezone      int
}

// HeartbeatReporter periodically rolls up the fleet's schedules,
// periods, and registered resources into a DeploymentShape, the same
// shape the hub's deployment-description metric captures, and
// publishes it to both the structured log and the Prometheus gauges
// dashboards scrape.
type HeartbeatReporter struct {
	Schedules store.Repository[v1beta1.Schedule]
	Periods   store.Repository[v1beta1.Period]
	Registry  *registry.Registry
}

// Report computes one DeploymentShape snapshot, records it to
// ManagedResourcesGauge per service, and logs the full shape at info
// level. It never returns a partial shape on error: a failure to list
// any one store aborts the whole report, since a gauge update from an
// incomplete fleet view would mislead more than a skipped cycle.
func (h *HeartbeatReporter) Report(ctx context.Context) (DeploymentShape, error) {
	schedules, err := h.Schedules.List(ctx)
	if err != nil {
		return DeploymentShape{}, fmt.Errorf("heartbeat: list schedules: %w", err)
	}
	periods, err := h.Periods.List(ctx)
	if err != nil {
		return DeploymentShape{}, fmt.Errorf("heartbeat: list periods: %w", err)
	}
	periodByName := make(map[string]v1beta1.Period, len(periods))
	for _, p := range periods {
		periodByName[p.Name] = p
	}

	shape := DeploymentShape{NumSchedules: len(schedules)}
	for _, s := range schedules {
		if s.StopNewInstances {
			shape.StopNewInstances++
		}
		if s.Enforced {
			shape.Enforced++
		}
		if s.RetainRunning {
			shape.RetainRunning++
		}
		if s.Hibernate {
			shape.Hibernate++
		}
		if s.OverrideStatus != "" && s.OverrideStatus != v1beta1.OverrideNone {
			shape.Override++
		}
		if len(s.SSMMaintenanceWindows) > 0 {
			shape.UseSSMMaintenanceWindow++
		}
		if s.ConfiguredInStack {
			shape.NumCFNSchedules++
		}

		oneSided := false
		for _, sp := range s.Periods {
			p, ok := periodByName[sp.PeriodName]
			if !ok {
				continue
			}
			if (p.BeginTime != nil) != (p.EndTime != nil) {
				oneSided = true
				break
			}
		}
		if oneSided {
			shape.NumOneSidedSchedules++
		}
	}

	resources, err := h.Registry.List(ctx)
	if err != nil {
		return DeploymentShape{}, fmt.Errorf("heartbeat: list registered resources: %w", err)
	}

	accounts := map[string]bool{}
	regions := map[string]bool{}
	perTarget := map[string]int{}
	perService := map[v1beta1.Service]int{}
	for _, r := range resources {
		accounts[r.Account] = true
		regions[r.Region] = true
		perService[r.Service]++
		perTarget[r.Account+"#"+r.Region+"#"+string(r.Service)]++
		shape.NumResources++
	}
	shape.NumTargets = len(perTarget)
	shape.NumAccounts = len(accounts)
	for region := range regions {
		shape.Regions = append(shape.Regions, region)
	}
	for service := range perService {
		shape.Services = append(shape.Services, string(service))
		ManagedResourcesGauge.WithLabelValues(string(service)).Set(float64(perService[service]))
	}

	logging.FromContext(ctx).Infow("heartbeat",
		"num_resources", shape.NumResources,
		"num_targets", shape.NumTargets,
		"num_accounts", shape.NumAccounts,
		"num_schedules", shape.NumSchedules,
		"num_cfn_schedules", shape.NumCFNSchedules,
		"num_one_sided_schedules", shape.NumOneSidedSchedules,
		"services", shape.Services,
		"regions", shape.Regions,
	)
	return shape, nil
}
