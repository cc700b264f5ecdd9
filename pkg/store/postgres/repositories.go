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

package postgres

import (
	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/iceretry"
	"github.com/instancefleet/scheduler/pkg/store"
)

// Repositories bundles every entity repository the scheduler persists,
// all backed by the same *Store's pool.
type Repositories struct {
	Periods            store.Repository[v1beta1.Period]
	Schedules          store.Repository[v1beta1.Schedule]
	GlobalConfig       store.Repository[v1beta1.GlobalConfig]
	ResourceState      store.Repository[v1beta1.ResourceStateRecord]
	Registry           store.Repository[v1beta1.RegisteredInstance]
	MaintenanceWindows store.Repository[v1beta1.MaintenanceWindow]
	ICERetryBacklog    store.Repository[iceretry.Message]
}

// NewRepositories wires one Table[T] per entity against s's pool.
func NewRepositories(s *Store) Repositories {
	db := s.Pool()
	return Repositories{
		Periods:            NewTable[v1beta1.Period](db, "periods"),
		Schedules:          NewTable[v1beta1.Schedule](db, "schedules"),
		GlobalConfig:       NewTable[v1beta1.GlobalConfig](db, "global_config"),
		ResourceState:      NewTable[v1beta1.ResourceStateRecord](db, "resource_state"),
		Registry:           NewTable[v1beta1.RegisteredInstance](db, "registry"),
		MaintenanceWindows: NewTable[v1beta1.MaintenanceWindow](db, "maintenance_windows"),
		ICERetryBacklog:    NewTable[iceretry.Message](db, "ice_retry_backlog"),
	}
}
