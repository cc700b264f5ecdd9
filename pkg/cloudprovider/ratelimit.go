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

package cloudprovider

import (
	"context"

	"golang.org/x/time/rate"
)

// NewCallLimiter builds a token-bucket limiter bounding how fast the
// orchestrator's fan-out may issue mutating cloud-API calls, the same
// primitive used to pace requeues against a single resource's launch
// and termination calls. ratePerSecond <= 0 means unlimited.
func NewCallLimiter(ratePerSecond float64, burst int) *rate.Limiter {
	if ratePerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(ratePerSecond), burst)
}

// RateLimitedProvider decorates a Provider, gating every mutating call
// through a shared limiter so a single scheduling pass's fan-out across
// many targets cannot exceed the underlying cloud API's own rate limit,
// regardless of how many targets run concurrently under Orchestrator's
// MaxConcurrent.
type RateLimitedProvider struct {
	Provider
	Limiter *rate.Limiter
}

func (p RateLimitedProvider) Start(ctx context.Context, instance AbstractInstance, opts StartOptions) error {
	if err := p.Limiter.Wait(ctx); err != nil {
		return err
	}
	return p.Provider.Start(ctx, instance, opts)
}

func (p RateLimitedProvider) Stop(ctx context.Context, instance AbstractInstance, opts StopOptions) error {
	if err := p.Limiter.Wait(ctx); err != nil {
		return err
	}
	return p.Provider.Stop(ctx, instance, opts)
}

func (p RateLimitedProvider) Resize(ctx context.Context, instance AbstractInstance, targetSize string) error {
	if err := p.Limiter.Wait(ctx); err != nil {
		return err
	}
	return p.Provider.Resize(ctx, instance, targetSize)
}
