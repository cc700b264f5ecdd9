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

// Command scheduler is the orchestrator daemon: it loads Settings,
// wires the definition stores, the cloud provider factories, and the
// ICE-retry consumer, then drives a fixed-interval pass over the whole
// fleet with robfig/cron/v3 until terminated. MaxConcurrentTargets is
// the operator-controlled concurrency cap on that pass.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/cloudprovider"
	"github.com/instancefleet/scheduler/pkg/cloudprovider/fake"
	"github.com/instancefleet/scheduler/pkg/config"
	"github.com/instancefleet/scheduler/pkg/events"
	"github.com/instancefleet/scheduler/pkg/executor"
	"github.com/instancefleet/scheduler/pkg/iceretry"
	"github.com/instancefleet/scheduler/pkg/logging"
	"github.com/instancefleet/scheduler/pkg/metrics"
	"github.com/instancefleet/scheduler/pkg/orchestrator"
	"github.com/instancefleet/scheduler/pkg/registry"
	"github.com/instancefleet/scheduler/pkg/state"
	"github.com/instancefleet/scheduler/pkg/store"
	"github.com/instancefleet/scheduler/pkg/store/postgres"
)

// passBudgetMargin keeps a pass's context deadline inside the tick
// interval, so even a budget-exhausted pass has returned before the
// next tick would be skipped on its account.
const passBudgetMargin = 10 * time.Second

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	settings, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.NewProduction(settings.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.IntoContext(ctx, logger)
	ctx = config.ToContext(ctx, settings)

	metrics.MustRegister()
	go serveMetrics(ctx, logger)

	repos, hubAccountID, closeStores, err := openRepositories(ctx, settings)
	if err != nil {
		logger.Errorw("failed to open repositories", "error", err)
		return err
	}
	defer closeStores()

	if _, err := repos.GlobalConfig.Get(ctx, globalConfigKey()); errors.Is(err, store.ErrNotFound) {
		logger.Warnw("no global config row found; the orchestrator has nothing to schedule until one is created",
			"hint", "schedulerctl is not the owner of this row; it is written by the stack-setup collaborator (pkg/stackresource)")
	}

	reg := registry.New(repos.Registry)
	sharedLocalBus := events.NewRecorder(func(e events.Event) { logger.Infow("event", "object", e.InvolvedObject, "reason", e.Reason, "message", e.Message) })
	sharedGlobalBus := events.NewRecorder(func(e events.Event) { logger.Debugw("global-event", "object", e.InvolvedObject, "reason", e.Reason) })

	rawProviders := fakeProviderSet()
	callLimiter := cloudprovider.NewCallLimiter(settings.CloudAPIRateLimit, settings.CloudAPIBurst)
	providers := make(map[v1beta1.Service]cloudprovider.Provider, len(rawProviders))
	for svc, provider := range rawProviders {
		// Wrapping here, not inside fakeProviderSet, keeps the raw
		// *fake.Provider reachable below for the ICE-retry attempter,
		// which needs the fake's own Get/Seed surface rather than the
		// narrower cloudprovider.Provider contract.
		providers[svc] = cloudprovider.RateLimitedProvider{Provider: provider, Limiter: callLimiter}
	}

	iceQueue := iceretry.NewQueue(repos.ICERetryBacklog, 256)
	if err := iceQueue.Recover(ctx); err != nil {
		logger.Warnw("failed to recover persisted ice-retry backlog", "error", err)
	}
	// The ICE-retry handler re-attempts starts against the same EC2
	// provider instance the executor uses, so a retry that succeeds is
	// visible to the next scheduling pass's DescribeManagedInstances.
	iceHandler := iceretry.NewHandler(iceQueue, fakeAttempter{provider: rawProviders[v1beta1.ServiceEC2].(*fake.Provider)}, settings.ICERetryMaxAttempts, sharedGlobalBus)
	go func() {
		if err := iceHandler.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Warnw("ice-retry handler stopped", "error", err)
		}
	}()

	heartbeat := &metrics.HeartbeatReporter{Schedules: repos.Schedules, Periods: repos.Periods, Registry: reg}
	go runHeartbeat(ctx, heartbeat, 5*time.Minute)

	buildDeps := func(_ context.Context, target orchestrator.Target) (executor.Dependencies, error) {
		provider, ok := providers[target.Service]
		if !ok {
			return executor.Dependencies{}, fmt.Errorf("cmd/scheduler: no provider wired for service %q", target.Service)
		}
		return executor.Dependencies{
			GlobalConfig:       repos.GlobalConfig,
			Periods:            repos.Periods,
			Schedules:          repos.Schedules,
			State:              state.NewMemory(repos.ResourceState),
			Registry:           reg,
			Provider:           provider,
			LocalBus:           sharedLocalBus,
			GlobalBus:          sharedGlobalBus,
			ICEQueue:           iceQueue,
			MaintenanceWindows: nil,
		}, nil
	}

	orch := &orchestrator.Orchestrator{
		GlobalConfig:  repos.GlobalConfig,
		ParamResolver: identityParamResolver{},
		HubAccountID:  hubAccountID,
		MaxConcurrent: settings.MaxConcurrentTargets,
		BuildDeps:     buildDeps,
	}

	// SkipIfStillRunning keeps at most one pass in flight: robfig/cron
	// starts each tick's job in its own goroutine, so without the
	// chain a pass running close to a full interval would overlap the
	// next tick's pass over the same targets.
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.PrintfLogger(zap.NewStdLog(logger.Desugar()))),
	))
	spec := "@every " + (time.Duration(settings.SchedulingIntervalMinutes) * time.Minute).String()
	_, err = c.AddFunc(spec, func() {
		passCtx, cancel := context.WithTimeout(ctx, time.Duration(settings.SchedulingIntervalMinutes)*time.Minute-passBudgetMargin)
		defer cancel()
		results, err := orch.RunPass(passCtx, time.Now().UTC())
		if err != nil {
			logger.Errorw("scheduling pass failed", "error", err)
			return
		}
		logger.Infow("scheduling pass complete", "targets", len(results))
	})
	if err != nil {
		return err
	}
	logger.Infow("scheduler starting", "interval_minutes", settings.SchedulingIntervalMinutes, "max_concurrent_targets", settings.MaxConcurrentTargets)
	c.Start()
	defer c.Stop()

	<-ctx.Done()
	logger.Infow("scheduler shutting down")
	return nil
}

func globalConfigKey() string {
	return v1beta1.ConfigKey.Type + "#" + v1beta1.ConfigKey.Name
}

// openRepositories builds the definition/state/registry repositories
// against Postgres when DatabaseURL is set, or an in-memory store
// otherwise (a single process's own transient fleet view, useful for
// demos). The hub account id is read from the SCHEDULER_HUB_ACCOUNT_ID
// environment variable directly since it identifies the process's own
// cloud account, not a piece of schedule/period policy Settings models.
func openRepositories(ctx context.Context, settings config.Settings) (postgres.Repositories, string, func(), error) {
	hubAccountID := os.Getenv("SCHEDULER_HUB_ACCOUNT_ID")
	if hubAccountID == "" {
		hubAccountID = "local"
	}
	if settings.DatabaseURL == "" {
		return postgres.Repositories{
			Periods:            store.NewMemory[v1beta1.Period](),
			Schedules:          store.NewMemory[v1beta1.Schedule](),
			GlobalConfig:       store.NewMemory[v1beta1.GlobalConfig](),
			ResourceState:      store.NewMemory[v1beta1.ResourceStateRecord](),
			Registry:           store.NewMemory[v1beta1.RegisteredInstance](),
			MaintenanceWindows: store.NewMemory[v1beta1.MaintenanceWindow](),
			ICERetryBacklog:    store.NewMemory[iceretry.Message](),
		}, hubAccountID, func() {}, nil
	}

	if err := postgres.ApplyMigrations(ctx, settings.DatabaseURL); err != nil {
		return postgres.Repositories{}, "", nil, err
	}
	s, err := postgres.NewStore(ctx, postgres.Config{DSN: settings.DatabaseURL})
	if err != nil {
		return postgres.Repositories{}, "", nil, err
	}
	repos := postgres.NewRepositories(s)
	cached := postgres.Repositories{
		Periods:            store.NewCached(repos.Periods, settings.StoreCacheTTL),
		Schedules:          store.NewCached(repos.Schedules, settings.StoreCacheTTL),
		GlobalConfig:       store.NewCached(repos.GlobalConfig, settings.StoreCacheTTL),
		ResourceState:      repos.ResourceState,
		Registry:           repos.Registry,
		MaintenanceWindows: repos.MaintenanceWindows,
		ICERetryBacklog:    repos.ICERetryBacklog,
	}
	return cached, hubAccountID, s.Close, nil
}

// fakeProviderSet returns an empty provider per service family, the
// deliberate seam real deployments replace with ec2.Factory,
// rdsinstance.Factory, rdscluster.Factory, and asg.Factory wired
// against concrete cloud API clients; constructing those clients is
// outside this module's scope.
func fakeProviderSet() map[v1beta1.Service]cloudprovider.Provider {
	return map[v1beta1.Service]cloudprovider.Provider{
		v1beta1.ServiceEC2:         fake.NewProvider(v1beta1.ServiceEC2),
		v1beta1.ServiceRDSInstance: fake.NewProvider(v1beta1.ServiceRDSInstance),
		v1beta1.ServiceRDSCluster:  fake.NewProvider(v1beta1.ServiceRDSCluster),
		v1beta1.ServiceASG:         fake.NewProvider(v1beta1.ServiceASG),
	}
}

// identityParamResolver resolves a RemoteAccount {param:...} indirection
// to its own name, the seam real deployments replace with a client for
// whatever parameter store holds organization account ids.
type identityParamResolver struct{}

func (identityParamResolver) ResolveAccountID(_ context.Context, paramName string) (string, error) {
	return paramName, nil
}

func serveMetrics(ctx context.Context, logger interface {
	Errorw(string, ...any)
}) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":9090", Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Errorw("metrics server stopped", "error", err)
	}
}

func runHeartbeat(ctx context.Context, reporter *metrics.HeartbeatReporter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := reporter.Report(ctx); err != nil {
				logging.FromContext(ctx).Warnw("heartbeat report failed", "error", err)
			}
		}
	}
}
