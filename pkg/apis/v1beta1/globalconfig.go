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

// Service identifies one of the resource families a target can be
// scheduled against.
type Service string

const (
	ServiceEC2         Service = "ec2"
	ServiceRDSInstance Service = "rds"
	ServiceRDSCluster  Service = "rds-cluster"
	ServiceASG         Service = "asg"
)

// RemoteAccount is either a literal account id or an indirection to be
// resolved through an external parameter store at orchestration time.
type RemoteAccount struct {
	AccountID string `json:"account_id,omitempty"`
	ParamName string `json:"param_name,omitempty"`
}

// IsIndirection reports whether this entry must be resolved through
// the parameter store before use.
func (r RemoteAccount) IsIndirection() bool {
	return r.ParamName != ""
}

// GlobalConfig is the single fleet-wide configuration row.
// It is owned by the operator via the CLI/stack collaborator and is
// read-only to the scheduling core.
type GlobalConfig struct {
	ScheduledServices         []Service       `json:"scheduled_services" validate:"required,min=1"`
	Regions                   []string        `json:"regions" validate:"required,min=1"`
	DefaultTimezone           string          `json:"default_timezone" validate:"required"`
	TagKey                    string          `json:"tag_key" validate:"required"`
	RemoteAccounts            []RemoteAccount `json:"remote_accounts,omitempty"`
	Partition                 string          `json:"partition,omitempty"`
	RoleName                  string          `json:"role_name,omitempty"`
	ScheduleHubAccount        bool            `json:"schedule_hub_account,omitempty"`
	EnableCrossAccount        bool            `json:"enable_cross_account,omitempty"`
	EnableMaintenanceWindows  bool            `json:"enable_maintenance_windows,omitempty"`
	CreateRDSSnapshots        bool            `json:"create_rds_snapshots,omitempty"`
	ScheduleClusters          bool            `json:"schedule_clusters,omitempty"`
	SchedulingIntervalMinutes int             `json:"scheduling_interval_minutes" validate:"required,min=1"`
}

// ConfigKey is the fixed composite key for the single GlobalConfig row
//: ("config", "scheduler"). Always overwritten on put.
var ConfigKey = struct{ Type, Name string }{Type: "config", Name: "scheduler"}
