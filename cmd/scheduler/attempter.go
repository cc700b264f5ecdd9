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

package main

import (
	"context"

	"github.com/instancefleet/scheduler/pkg/cloudprovider"
	"github.com/instancefleet/scheduler/pkg/cloudprovider/fake"
)

// fakeAttempter bridges iceretry.Handler's narrow Attempter seam to a
// fake.Provider, the way a real deployment would instead bridge it to
// a family adapter's own EC2/RDS client. account and region are part
// of the Attempter contract but unused here since fake.Provider keeps
// a single flat instance map regardless of account or region.
type fakeAttempter struct {
	provider *fake.Provider
}

func (a fakeAttempter) Start(ctx context.Context, _, _, instanceID, size string) error {
	instance := a.provider.Get(instanceID)
	instance.ID = instanceID
	// Resize first so the next pass's describe observes the size the
	// retry actually started at.
	if err := a.provider.Resize(ctx, instance, size); err != nil {
		return err
	}
	return a.provider.Start(ctx, instance, cloudprovider.StartOptions{PreferredSizes: []string{size}})
}

func (a fakeAttempter) Observe(_ context.Context, _, _, instanceID string) (bool, string, error) {
	instance := a.provider.Get(instanceID)
	return instance.IsRunning, instance.InstanceType, nil
}
