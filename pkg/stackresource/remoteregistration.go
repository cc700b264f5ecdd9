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
)

// HubRegistrar is the seam a spoke account's custom resource calls
// into to notify the hub account of its own lifecycle; ordinarily a
// cross-account call into the hub's own registration endpoint.
type HubRegistrar interface {
	Register(ctx context.Context, accountID string) error
	Deregister(ctx context.Context, accountID string) error
}

// RemoteRegistrationHandler runs inside a spoke account and tells the
// hub account to start or stop including it in cross-account
// scheduling passes, mirroring the hub/spoke handshake a deployment
// with cross-account scheduling enabled performs on spoke stack
// create/delete.
type RemoteRegistrationHandler struct {
	Registrar HubRegistrar
	AccountID string
}

func (h *RemoteRegistrationHandler) Create(ctx context.Context, _ Request) (map[string]any, error) {
	if err := h.Registrar.Register(ctx, h.AccountID); err != nil {
		return nil, fmt.Errorf("stackresource: register account %s with hub: %w", h.AccountID, err)
	}
	return nil, nil
}

func (h *RemoteRegistrationHandler) Update(_ context.Context, _ Request) (map[string]any, error) {
	return nil, nil
}

func (h *RemoteRegistrationHandler) Delete(ctx context.Context, _ Request) (map[string]any, error) {
	if err := h.Registrar.Deregister(ctx, h.AccountID); err != nil {
		return nil, fmt.Errorf("stackresource: deregister account %s from hub: %w", h.AccountID, err)
	}
	return nil, nil
}
