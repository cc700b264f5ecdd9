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

package v1beta1

import "time"

// StoredState is the per-resource memory the engine keeps across
// scheduling intervals. It is distinct from the cloud's authoritative
// state, which is observed fresh on every pass via the service
// adapter.
type StoredState string

const (
	StateRunning             StoredState = "running"
	StateStopped             StoredState = "stopped"
	StateRetainRunning       StoredState = "retain-running"
	StateStartFailed         StoredState = "start-failed"
	StateStopFailed          StoredState = "stop-failed"
	StateConfigurationFailed StoredState = "configuration-failed"
	StateUnknown             StoredState = "unknown"
)

// ResourceStateRecord is keyed by (service, account, region,
// resource_id). It is created on first sighting, updated after every
// scheduling pass, and never deleted by the core.
type ResourceStateRecord struct {
	StoredState    StoredState `json:"stored_state"`
	LastSeenSize   *string     `json:"last_seen_size,omitempty"`
	ResizeTarget   *string     `json:"resize_target,omitempty"`
	LastActionTime time.Time   `json:"last_action_time"`
}

// ResourceKey identifies one resource's state record.
type ResourceKey struct {
	Service    Service
	Account    string
	Region     string
	ResourceID string
}

// TargetKey identifies the (service, account, region) partition that
// resource-state memory and the registry are scanned by.
type TargetKey struct {
	Service Service
	Account string
	Region  string
}
