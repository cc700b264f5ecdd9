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

// Package state is the scheduler's memory of what it last did to a
// resource: the decision engine cannot tell a resource that was
// started by the scheduler apart from one started by a human unless it
// remembers its own last action, and it cannot tell whether "stopped"
// is normal schedule behavior or a failed stop attempt without
// recording outcomes too.
package state

import (
	"context"
	"errors"
	"fmt"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/store"
)

// Memory loads and saves ResourceStateRecords keyed by ResourceKey.
type Memory struct {
	repo store.Repository[v1beta1.ResourceStateRecord]
}

func NewMemory(repo store.Repository[v1beta1.ResourceStateRecord]) *Memory {
	return &Memory{repo: repo}
}

func keyString(k v1beta1.ResourceKey) string {
	return fmt.Sprintf("%s#%s#%s#%s", k.Service, k.Account, k.Region, k.ResourceID)
}

// Get returns the stored record for key, or the unknown-state zero
// value (not an error) if the scheduler has never recorded anything
// for it; a resource the scheduler has never touched is exactly as
// valid an input to the decision engine as one it has.
func (m *Memory) Get(ctx context.Context, key v1beta1.ResourceKey) (v1beta1.ResourceStateRecord, error) {
	rec, err := m.repo.Get(ctx, keyString(key))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return v1beta1.ResourceStateRecord{StoredState: v1beta1.StateUnknown}, nil
		}
		return v1beta1.ResourceStateRecord{}, err
	}
	return rec, nil
}

func (m *Memory) Put(ctx context.Context, key v1beta1.ResourceKey, rec v1beta1.ResourceStateRecord) error {
	return m.repo.Put(ctx, keyString(key), rec)
}

// ClearStaleRetainRunning downgrades a lingering retain-running mark
// to stopped when the schedule no longer carries the retain_running
// flag, so an operator turning the flag off doesn't leave resources
// permanently pinned by marks recorded under the old policy. Setting
// the mark in the first place is the decision engine's job (it alone
// can tell a manual start from a scheduled one); this only cleans up
// after a policy change.
func ClearStaleRetainRunning(rec v1beta1.ResourceStateRecord, retainRunning bool) v1beta1.ResourceStateRecord {
	if !retainRunning && rec.StoredState == v1beta1.StateRetainRunning {
		rec.StoredState = v1beta1.StateStopped
	}
	return rec
}
