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

// Package fake is an in-memory cloudprovider.Provider test double: a
// simple map of instances mutated by Start/Stop/Resize, with hooks to
// inject capacity and terminal errors for exercising the decision
// engine and executor without any real cloud dependency.
package fake

import (
	"context"
	"sync"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/cloudprovider"
)

// Provider is a mutable, in-memory cloudprovider.Provider.
type Provider struct {
	mu        sync.Mutex
	service   v1beta1.Service
	instances map[string]cloudprovider.AbstractInstance

	// StartErr, if set, is returned by every Start call for the named
	// instance instead of mutating state.
	StartErr map[string]error
	StopErr  map[string]error
}

func NewProvider(service v1beta1.Service) *Provider {
	return &Provider{
		service:   service,
		instances: make(map[string]cloudprovider.AbstractInstance),
		StartErr:  make(map[string]error),
		StopErr:   make(map[string]error),
	}
}

func (p *Provider) Service() v1beta1.Service { return p.service }

// Seed inserts or replaces an instance, the way a test arranges fixture state.
func (p *Provider) Seed(instance cloudprovider.AbstractInstance) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.instances[instance.ID] = instance
}

func (p *Provider) Get(id string) cloudprovider.AbstractInstance {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.instances[id]
}

func (p *Provider) DescribeManagedInstances(_ context.Context, scheduleNames []string) ([]cloudprovider.AbstractInstance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	allow := make(map[string]bool, len(scheduleNames))
	for _, s := range scheduleNames {
		allow[s] = true
	}
	out := make([]cloudprovider.AbstractInstance, 0, len(p.instances))
	for _, i := range p.instances {
		if len(allow) > 0 && !allow[i.ScheduleName] {
			continue
		}
		out = append(out, i)
	}
	return out, nil
}

func (p *Provider) Start(_ context.Context, instance cloudprovider.AbstractInstance, _ cloudprovider.StartOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.StartErr[instance.ID]; ok && err != nil {
		return err
	}
	i := p.instances[instance.ID]
	i.CurrentState = cloudprovider.StateRunning
	i.IsRunning = true
	i.IsStopped = false
	p.instances[instance.ID] = i
	return nil
}

func (p *Provider) Stop(_ context.Context, instance cloudprovider.AbstractInstance, _ cloudprovider.StopOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.StopErr[instance.ID]; ok && err != nil {
		return err
	}
	i := p.instances[instance.ID]
	i.CurrentState = cloudprovider.StateStopped
	i.IsRunning = false
	i.IsStopped = true
	p.instances[instance.ID] = i
	return nil
}

func (p *Provider) Resize(_ context.Context, instance cloudprovider.AbstractInstance, targetSize string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.instances[instance.ID]
	i.InstanceType = targetSize
	p.instances[instance.ID] = i
	return nil
}
