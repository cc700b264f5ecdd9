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

package stackresource

import (
	"context"
	"fmt"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/demo"
	"github.com/instancefleet/scheduler/pkg/store"
)

func globalConfigKey() string {
	return v1beta1.ConfigKey.Type + "#" + v1beta1.ConfigKey.Name
}

// ServiceSetupHandler provisions the fleet-wide GlobalConfig row and
// optional demo data the first time a deployment stands up, and
// reconciles the remote-account list on every subsequent update.
type ServiceSetupHandler struct {
	GlobalConfig store.Repository[v1beta1.GlobalConfig]
	Periods      store.Repository[v1beta1.Period]
	Schedules    store.Repository[v1beta1.Schedule]

	// Defaults seeds every field of GlobalConfig not overridden by
	// resource properties (scheduled services, regions, tag key, and
	// so on come from the deployment's own stack parameters).
	Defaults func() v1beta1.GlobalConfig

	SeedDemoData bool
}

// Create handles the stack-setup resource's Create path: write the
// initial GlobalConfig row (remote accounts taken from the resource
// properties), then optionally seed demo periods and schedules.
func (h *ServiceSetupHandler) Create(ctx context.Context, req Request) (map[string]any, error) {
	cfg := h.Defaults()
	remote, err := parseRemoteAccounts(req.ResourceProperties)
	if err != nil {
		return nil, err
	}
	cfg.RemoteAccounts = remote

	if err := h.GlobalConfig.Put(ctx, globalConfigKey(), cfg); err != nil {
		return nil, fmt.Errorf("stackresource: write global config: %w", err)
	}
	if h.SeedDemoData {
		if err := demo.Seed(ctx, h.Periods, h.Schedules); err != nil {
			return nil, fmt.Errorf("stackresource: seed demo data: %w", err)
		}
	}
	return nil, nil
}

// Update overwrites the remote-account list from the new resource
// properties, leaving every other GlobalConfig field (managed by the
// deployment's own stack parameters, not this resource) untouched.
func (h *ServiceSetupHandler) Update(ctx context.Context, req Request) (map[string]any, error) {
	cfg, err := h.GlobalConfig.Get(ctx, globalConfigKey())
	if err != nil {
		return nil, fmt.Errorf("stackresource: load global config: %w", err)
	}
	remote, err := parseRemoteAccounts(req.ResourceProperties)
	if err != nil {
		return nil, err
	}
	cfg.RemoteAccounts = remote
	if err := h.GlobalConfig.Put(ctx, globalConfigKey(), cfg); err != nil {
		return nil, fmt.Errorf("stackresource: update global config: %w", err)
	}
	return nil, nil
}

// Delete takes no action: GlobalConfig and demo data outlive the
// custom resource that created them, since tearing down the stack
// resource must never destroy schedule definitions operators have
// since edited.
func (h *ServiceSetupHandler) Delete(_ context.Context, _ Request) (map[string]any, error) {
	return nil, nil
}

func parseRemoteAccounts(props map[string]any) ([]v1beta1.RemoteAccount, error) {
	raw, ok := props["remote_account_ids"]
	if !ok {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("stackresource: remote_account_ids must be a list")
	}
	out := make([]v1beta1.RemoteAccount, 0, len(list))
	for _, v := range list {
		id, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("stackresource: remote_account_ids entries must be strings")
		}
		out = append(out, v1beta1.RemoteAccount{AccountID: id})
	}
	return out, nil
}
