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

import "fmt"

// RegisteredInstance is an entry in the fleet-wide resource registry:
// every cloud resource the core has ever seen carrying a schedule tag,
// indexed for range scans per (account, region, service).
type RegisteredInstance struct {
	Account      string            `json:"account"`
	Region       string            `json:"region"`
	Service      Service           `json:"service"`
	ResourceID   string            `json:"resource_id"`
	ARN          string            `json:"arn"`
	Schedule     string            `json:"schedule"`
	DisplayName  string            `json:"display_name,omitempty"`
	RuntimeInfo  map[string]string `json:"runtime_info,omitempty"`
	RegistryInfo map[string]string `json:"registry_info,omitempty"`
}

// SortKey returns the registry's range-scan sort key:
// "resource#{region}#{service}#{id}".
func (r RegisteredInstance) SortKey() string {
	return fmt.Sprintf("resource#%s#%s#%s", r.Region, r.Service, r.ResourceID)
}
