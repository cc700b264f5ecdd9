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

// Package executor is the scheduling-request executor that ties
// together definitions, resource-state memory, the cloud adapter, the
// decision engine, maintenance windows, and the ICE-retry queue into
// one pass over a single (account, region, service) target.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/cloudprovider"
	"github.com/instancefleet/scheduler/pkg/config"
	"github.com/instancefleet/scheduler/pkg/decision"
	"github.com/instancefleet/scheduler/pkg/events"
	"github.com/instancefleet/scheduler/pkg/iceretry"
	"github.com/instancefleet/scheduler/pkg/logging"
	"github.com/instancefleet/scheduler/pkg/maintenancewindow"
	"github.com/instancefleet/scheduler/pkg/metrics"
	"github.com/instancefleet/scheduler/pkg/registry"
	"github.com/instancefleet/scheduler/pkg/scheduling"
	"github.com/instancefleet/scheduler/pkg/state"
	"github.com/instancefleet/scheduler/pkg/store"
	"github.com/instancefleet/scheduler/pkg/utils/pretty"
)

// discoveryMonitor throttles the per-target "discovered managed
// instances" log line to passes where the tagged set actually changed,
// so steady-state fleets don't repeat the same discovery line every
// interval.
var discoveryMonitor = pretty.NewChangeMonitor()

// eventBatchSize and tagBatchSize cap how many events or tag writes
// go out in a single downstream call.
const (
	eventBatchSize = 10
	tagBatchSize   = 20
)

// workerBudgetMargin is subtracted from the scheduling interval to
// derive the per-target worker budget: a target that
// overruns its interval should be cut off with enough headroom left
// for the executor to still persist state and emit events for
// whatever it already decided.
const workerBudgetMargin = 10 * time.Second

// SchedulingRequest is one (account, region, service) unit of work.
// ScheduleNames optionally narrows enumeration to the given schedules,
// used by the ASG event-driven dispatch path.
type SchedulingRequest struct {
	Account       string
	Region        string
	Service       v1beta1.Service
	CurrentDT     time.Time
	DispatchTime  time.Time
	ScheduleNames []string
}

// ErrorCode classifies a per-instance failure applying a decision,
// mirrored onto the resource's stored state.
type ErrorCode string

const (
	ErrorStartFailed         ErrorCode = "START_FAILED"
	ErrorStopFailed          ErrorCode = "STOP_FAILED"
	ErrorConfigurationFailed ErrorCode = "CONFIGURATION_FAILED"
	ErrorUnknown             ErrorCode = "UNKNOWN_ERROR"
)

// SchedulingResult is the outcome of applying one instance's decision.
type SchedulingResult struct {
	Instance            cloudprovider.AbstractInstance
	RequestedAction     decision.Action
	ActionTaken         bool
	ErrorCode           ErrorCode
	ErrorMessage        string
	UpdatedRegistryInfo map[string]string
}

// PassResult is everything Execute produced for one target, returned
// to the orchestrator for logging/aggregation.
type PassResult struct {
	Target  SchedulingRequest
	Results []SchedulingResult
}

// TagWrite is one resource's informational tags (managed-by,
// last-action, error), written in batches of tagBatchSize.
type TagWrite struct {
	InstanceID string
	Tags       map[string]string
}

// Tagger is the narrow seam the executor depends on for writing
// informational tags back onto a resource. A family adapter that
// wants tag round-trips (e.g. the ASG min/desired/max migration)
// implements it alongside cloudprovider.Provider.
type Tagger interface {
	WriteTags(ctx context.Context, batch []TagWrite) error
}

// Dependencies bundles everything Execute needs for one target,
// already scoped to the request's (account, region) by the
// orchestrator the same way a cloudprovider.Factory scopes a
// Provider.
type Dependencies struct {
	GlobalConfig       store.Repository[v1beta1.GlobalConfig]
	Periods            store.Repository[v1beta1.Period]
	Schedules          store.Repository[v1beta1.Schedule]
	State              *state.Memory
	Registry           *registry.Registry
	Provider           cloudprovider.Provider
	LocalBus           events.Bus
	GlobalBus          events.Bus
	Tagger             Tagger
	ICEQueue           *iceretry.Queue
	MaintenanceWindows *maintenancewindow.Manager
}

func globalConfigKey() string {
	return v1beta1.ConfigKey.Type + "#" + v1beta1.ConfigKey.Name
}

// Execute runs one pass over req's target: load definitions, enumerate
// managed instances, evaluate each against its schedule, decide, act,
// and record state/events/tags. Assuming the cross-account role and
// obtaining regional clients is the orchestrator's responsibility; by
// the time Execute is called, deps.Provider is already scoped to
// (account, region).
func Execute(ctx context.Context, deps Dependencies, req SchedulingRequest) (PassResult, error) {
	if req.CurrentDT.IsZero() {
		return PassResult{}, fmt.Errorf("executor: current_dt must be timezone-aware, got a zero time")
	}
	log := logging.FromContext(ctx).With("account", req.Account, "region", req.Region, "service", req.Service)
	started := time.Now()
	defer func() {
		metrics.TargetDurationSeconds.WithLabelValues(string(req.Service)).Observe(time.Since(started).Seconds())
	}()

	// Step 2: load GlobalConfig, period and schedule definitions.
	cfg, err := deps.GlobalConfig.Get(ctx, globalConfigKey())
	if err != nil {
		return PassResult{}, fmt.Errorf("executor: load global config: %w", err)
	}

	budgetCtx := ctx
	if cfg.SchedulingIntervalMinutes > 0 {
		budget := time.Duration(cfg.SchedulingIntervalMinutes)*time.Minute - workerBudgetMargin
		if budget > 0 {
			var cancel context.CancelFunc
			budgetCtx, cancel = context.WithTimeout(ctx, budget)
			defer cancel()
		}
	}

	periodList, err := deps.Periods.List(budgetCtx)
	if err != nil {
		return PassResult{}, fmt.Errorf("executor: list periods: %w", err)
	}
	periods := make(map[string]v1beta1.Period, len(periodList))
	for _, p := range periodList {
		periods[p.Name] = p
	}

	scheduleList, err := deps.Schedules.List(budgetCtx)
	if err != nil {
		return PassResult{}, fmt.Errorf("executor: list schedules: %w", err)
	}
	schedules := make(map[string]v1beta1.Schedule, len(scheduleList))
	for _, s := range scheduleList {
		schedules[s.Name] = s
	}

	// Step 3: build the evaluation context.
	schedCtx := scheduling.Context{
		CurrentTime:               req.CurrentDT,
		DispatchTime:              req.DispatchTime,
		TagKey:                    cfg.TagKey,
		Schedules:                 schedules,
		Periods:                   periods,
		SchedulingIntervalMinutes: cfg.SchedulingIntervalMinutes,
	}

	// Step 5: enumerate managed instances, optionally narrowed.
	instances, err := deps.Provider.DescribeManagedInstances(budgetCtx, req.ScheduleNames)
	if err != nil {
		return PassResult{}, fmt.Errorf("executor: enumerate %s/%s/%s: %w", req.Account, req.Region, req.Service, err)
	}
	metrics.ManagedResourcesGauge.WithLabelValues(string(req.Service)).Set(float64(len(instances)))

	ids := make([]string, 0, len(instances))
	for _, i := range instances {
		ids = append(ids, i.ID)
	}
	if discoveryMonitor.HasChanged(fmt.Sprintf("%s/%s/%s", req.Account, req.Region, req.Service), ids) {
		log.Infow("discovered managed instances", "count", len(instances), "instances", ids)
	}

	// Step 6: refresh maintenance windows, if enabled.
	var windows []v1beta1.MaintenanceWindow
	if cfg.EnableMaintenanceWindows && deps.MaintenanceWindows != nil {
		windows, err = deps.MaintenanceWindows.Sync(budgetCtx, req.Account, req.Region)
		if err != nil {
			log.Warnw("maintenance window sync failed, proceeding without ephemeral periods this pass", "error", err)
			windows = nil
		}
	}

	pass := PassResult{Target: req}
	var passEvents []events.Event
	var tagWrites []TagWrite

	for _, instance := range instances {
		schedule, ok := schedules[instance.ScheduleName]

		key := v1beta1.ResourceKey{Service: deps.Provider.Service(), Account: req.Account, Region: req.Region, ResourceID: instance.ID}
		stored, err := deps.State.Get(budgetCtx, key)
		if err != nil {
			log.Errorw("failed to load resource state, skipping instance this pass", "instance", instance.ID, "error", err)
			continue
		}

		var extraPeriods []v1beta1.Period
		if ok && schedule.UseMaintenanceWindow && len(windows) > 0 {
			referenced := append(append([]string{}, schedule.SSMMaintenanceWindows...), instance.MaintenanceWindows...)
			loc, locErr := schedule.Location()
			if locErr == nil {
				for _, w := range maintenancewindow.ActiveWindowsFor(windows, referenced, req.CurrentDT) {
					extraPeriods = append(extraPeriods, maintenancewindow.ToEphemeralPeriods(w, loc)...)
				}
			}
		}

		// Step 7: compute the decision.
		dec, err := decision.Decide(decision.Input{
			Instance:     instance,
			StoredState:  stored,
			ScheduleName: instance.ScheduleName,
			Ctx:          schedCtx,
			ExtraPeriods: extraPeriods,
		})
		if err != nil {
			log.Errorw("decision engine failed, skipping instance this pass", "instance", instance.ID, "error", err)
			continue
		}

		// Step 8: apply the decision.
		result := applyDecision(budgetCtx, deps, req.Account, req.Region, instance, dec)
		pass.Results = append(pass.Results, result)

		newState := dec.NewStoredState
		if ok {
			newState = state.ClearStaleRetainRunning(newState, schedule.RetainRunning)
		}
		if result.ErrorCode != "" {
			newState.StoredState = errorStoredState(result.ErrorCode)
		}
		// Persistence runs on the parent ctx, not budgetCtx: a target
		// that exhausts its budget mid-pass must still record the
		// state of whatever it already decided.
		if err := deps.State.Put(ctx, key, newState); err != nil {
			log.Errorw("failed to persist resource state", "instance", instance.ID, "error", err)
		}

		if e, tag := resultArtifacts(ctx, req, instance, dec, result); e != nil {
			passEvents = append(passEvents, *e)
			tagWrites = append(tagWrites, tag)
		}

		metrics.SchedulingActionsTotal.WithLabelValues(string(req.Service), dec.Action.String()).Inc()
		if result.ErrorCode != "" {
			metrics.SchedulingErrorsTotal.WithLabelValues(string(req.Service), string(result.ErrorCode)).Inc()
		}

		if err := deps.Registry.Upsert(ctx, v1beta1.RegisteredInstance{
			Account: req.Account, Region: req.Region, Service: req.Service,
			ResourceID: instance.ID, Schedule: instance.ScheduleName, DisplayName: instance.Name,
		}); err != nil {
			log.Warnw("failed to upsert registry entry", "instance", instance.ID, "error", err)
		}
	}

	// Step 10: emit events and tags in batches, and enqueue ICE retries
	// for capacity-unavailable starts that carry preferred sizes.
	for _, batch := range events.Batches(passEvents, eventBatchSize) {
		deps.LocalBus.Record(batch...)
		deps.GlobalBus.Record(batch...)
	}
	if deps.Tagger != nil {
		var tagErrs error
		for _, batch := range chunk(tagWrites, tagBatchSize) {
			// A batch call that fails without naming the bad resource
			// is bisected down to the single offending write, so one
			// bad ARN doesn't cost the other nineteen their tags.
			for _, err := range cloudprovider.BisectRetry(ctx, batch, func(ctx context.Context, b []TagWrite) error {
				return deps.Tagger.WriteTags(ctx, b)
			}) {
				tagErrs = multierr.Append(tagErrs, err)
			}
		}
		if tagErrs != nil {
			log.Warnw("some informational tag writes failed", "error", tagErrs)
		}
	}

	return pass, nil
}

func errorStoredState(code ErrorCode) v1beta1.StoredState {
	switch code {
	case ErrorStartFailed:
		return v1beta1.StateStartFailed
	case ErrorStopFailed:
		return v1beta1.StateStopFailed
	default:
		return v1beta1.StateConfigurationFailed
	}
}

// applyDecision invokes the adapter for dec.Action, classifying any
// failure into a SchedulingResult rather than aborting the pass.
func applyDecision(ctx context.Context, deps Dependencies, account, region string, instance cloudprovider.AbstractInstance, dec decision.Decision) SchedulingResult {
	result := SchedulingResult{Instance: instance, RequestedAction: dec.Action}

	switch dec.Action {
	case decision.DoNothing:
		return result

	case decision.Start:
		opts := cloudprovider.StartOptions{Hibernate: dec.Hibernate}
		err := deps.Provider.Start(ctx, instance, opts)
		if err == nil {
			result.ActionTaken = true
			return result
		}
		if cloudprovider.ClassOf(err) == cloudprovider.ErrorClassCapacityUnavailable {
			sizes := preferredSizes(instance)
			if len(sizes) > 0 && deps.ICEQueue != nil {
				msg := iceretry.Message{
					Account: account, Region: region,
					Service: deps.Provider.Service(), InstanceID: instance.ID, PreferredSizes: sizes,
				}
				if qerr := deps.ICEQueue.Enqueue(ctx, msg); qerr != nil {
					logging.FromContext(ctx).Warnw("failed to enqueue ice-retry message", "instance", instance.ID, "error", qerr)
				}
			}
		}
		result.ErrorCode = ErrorStartFailed
		result.ErrorMessage = err.Error()
		return result

	case decision.Stop, decision.Hibernate:
		// A resize-requires-stop decision (dec.ResizeTo set) stops here;
		// the resize itself completes on a later pass once observed=Stopped.
		if err := deps.Provider.Stop(ctx, instance, cloudprovider.StopOptions{Hibernate: dec.Hibernate || dec.Action == decision.Hibernate}); err != nil {
			result.ErrorCode = ErrorStopFailed
			result.ErrorMessage = err.Error()
			return result
		}
		result.ActionTaken = true
		return result

	case decision.Resize:
		if err := deps.Provider.Resize(ctx, instance, dec.ResizeTo); err != nil {
			result.ErrorCode = ErrorConfigurationFailed
			result.ErrorMessage = err.Error()
			return result
		}
		if err := deps.Provider.Start(ctx, instance, cloudprovider.StartOptions{Hibernate: dec.Hibernate}); err != nil {
			result.ErrorCode = ErrorStartFailed
			result.ErrorMessage = err.Error()
			return result
		}
		result.ActionTaken = true
		return result

	default:
		result.ErrorCode = ErrorUnknown
		result.ErrorMessage = "unrecognized action"
		return result
	}
}

// tagValueLimit is the maximum length written into any single
// informational tag value.
const tagValueLimit = 256

func truncateTagValue(v string) string {
	if len(v) <= tagValueLimit {
		return v
	}
	return v[:tagValueLimit]
}

// resultArtifacts builds the event and tag write for a result, or nil
// if the action produced nothing worth reporting (DoNothing with no
// error). Successful starts and stops additionally carry the
// operator's start/stop tag templates, rendered against the pass
// timestamp.
func resultArtifacts(ctx context.Context, req SchedulingRequest, instance cloudprovider.AbstractInstance, dec decision.Decision, result SchedulingResult) (*events.Event, TagWrite) {
	settings := config.FromContext(ctx)
	tag := TagWrite{InstanceID: instance.ID, Tags: map[string]string{
		"InstanceScheduler:ManagedBy":  truncateTagValue(string(req.Service)),
		"InstanceScheduler:LastAction": truncateTagValue(dec.Action.String()),
	}}
	if result.ErrorCode != "" {
		tag.Tags["InstanceScheduler:Error"] = truncateTagValue(string(result.ErrorCode))
		tag.Tags["InstanceScheduler:ErrorMessage"] = truncateTagValue(result.ErrorMessage)
		e := events.Failed(instance.ID, string(result.ErrorCode), result.ErrorMessage)
		return &e, tag
	}
	switch dec.Action {
	case decision.Start:
		for k, v := range RenderTagTemplate(settings.StartTags, settings.StackName, req.CurrentDT) {
			tag.Tags[k] = v
		}
		e := events.Started(instance.ID, instance.ScheduleName, dec.Reason)
		return &e, tag
	case decision.Stop:
		for k, v := range RenderTagTemplate(settings.StopTags, settings.StackName, req.CurrentDT) {
			tag.Tags[k] = v
		}
		e := events.Stopped(instance.ID, instance.ScheduleName, dec.Reason)
		return &e, tag
	case decision.Resize:
		e := events.Resized(instance.ID, instance.ScheduleName, dec.ResizeTo)
		return &e, tag
	default:
		return nil, tag
	}
}

// preferredSizes reads the same PreferredInstanceTypes tag convention
// ec2.PreferredSizes and the ICE-retry handler use,
// duplicated narrowly here so the executor does not take a dependency
// on one specific family adapter package.
func preferredSizes(instance cloudprovider.AbstractInstance) []string {
	v, ok := instance.Tags["PreferredInstanceTypes"]
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

// chunk splits items into groups of at most size, the same shape
// events.Batches and cloudprovider.Chunk use for their own batch
// limits.
func chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	var out [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}
