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

// Package metrics defines the Prometheus series the scheduler exports
// and the heartbeat reporter that turns a pass summary into the
// operational-health metrics operators watch.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const Namespace = "instance_scheduler"

var (
	// SchedulingActionsTotal counts every scheduling decision acted on,
	// labeled by service family and the action taken (Start/Stop/Hibernate/Resize/DoNothing).
	SchedulingActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "decisions",
			Name:      "actions_total",
			Help:      "Number of scheduling actions taken, labeled by service and action.",
		},
		[]string{"service", "action"},
	)

	// SchedulingErrorsTotal counts failures applying a decision to the
	// cloud provider, labeled by service and the error taxonomy class.
	SchedulingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "decisions",
			Name:      "errors_total",
			Help:      "Number of scheduling actions that failed, labeled by service and error class.",
		},
		[]string{"service", "class"},
	)

	// TargetDurationSeconds observes how long a single (account, region,
	// service) target took to enumerate, decide, and execute.
	TargetDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "orchestrator",
			Name:      "target_duration_seconds",
			Help:      "Time to process one (account, region, service) scheduling target.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	// ICERetryQueueDepth reports the current size of the insufficient-
	// capacity retry backlog.
	ICERetryQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "iceretry",
			Name:      "queue_depth",
			Help:      "Number of resources currently queued for insufficient-capacity retry.",
		},
	)

	// ManagedResourcesGauge reports how many resources are currently
	// under schedule control, labeled by service.
	ManagedResourcesGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "orchestrator",
			Name:      "managed_resources",
			Help:      "Number of resources currently under schedule control, labeled by service.",
		},
		[]string{"service"},
	)
)

// MustRegister registers every series above against the default
// Prometheus registry. Called once from cmd/scheduler at startup.
func MustRegister() {
	prometheus.MustRegister(
		SchedulingActionsTotal,
		SchedulingErrorsTotal,
		TargetDurationSeconds,
		ICERetryQueueDepth,
		ManagedResourcesGauge,
	)
}
