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

// Package maintenancewindow implements: fetching the managed
// platform's maintenance windows, reconciling them against the
// persisted set, and synthesizing the ephemeral Running-only period
// that keeps a resource up across an active window.
package maintenancewindow

import (
	"context"
	"fmt"
	"time"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/logging"
	"github.com/instancefleet/scheduler/pkg/store"
)

// Fetcher retrieves the platform's current maintenance-window list for
// one (account, region). Implementations wrap whatever managed-service
// API exposes this (e.g. an SSM-maintenance-window-equivalent); the
// core only depends on this narrow seam.
type Fetcher interface {
	FetchWindows(ctx context.Context, account, region string) ([]v1beta1.MaintenanceWindow, error)
}

// Manager owns the persisted maintenance-window cache and the
// fetch-diff-upsert cycle that keeps it current.
type Manager struct {
	fetcher Fetcher
	repo    store.Repository[v1beta1.MaintenanceWindow]
}

func NewManager(fetcher Fetcher, repo store.Repository[v1beta1.MaintenanceWindow]) *Manager {
	return &Manager{fetcher: fetcher, repo: repo}
}

func storageKey(account, region, name, id string) string {
	return account + ":" + region + "#" + name + ":" + id
}

// Sync fetches the current window list for (account, region), upserts
// new/changed entries, and deletes entries that have vanished from the
// platform's list but remain in storage. It returns the freshly
// fetched list so the caller (the executor) can attach active
// windows to instances in the same pass without a second read.
func (m *Manager) Sync(ctx context.Context, account, region string) ([]v1beta1.MaintenanceWindow, error) {
	current, err := m.fetcher.FetchWindows(ctx, account, region)
	if err != nil {
		return nil, fmt.Errorf("maintenancewindow: fetch %s/%s: %w", account, region, err)
	}

	existing, err := m.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("maintenancewindow: list persisted: %w", err)
	}
	seen := make(map[string]bool, len(current))
	for _, w := range current {
		_, id := w.Key()
		key := storageKey(w.Account, w.Region, w.WindowName, w.WindowID)
		seen[key] = true
		if err := m.repo.Put(ctx, key, w); err != nil {
			return nil, fmt.Errorf("maintenancewindow: upsert %s: %w", id, err)
		}
	}
	for _, w := range existing {
		if w.Account != account || w.Region != region {
			continue
		}
		key := storageKey(w.Account, w.Region, w.WindowName, w.WindowID)
		if seen[key] {
			continue
		}
		if err := m.repo.Delete(ctx, key); err != nil {
			return nil, fmt.Errorf("maintenancewindow: delete vanished %s: %w", key, err)
		}
		logging.FromContext(ctx).Infow("maintenance window no longer reported by platform, removed from cache",
			"account", account, "region", region, "window", w.WindowName)
	}
	return current, nil
}

// ActiveWindowsFor filters windows to those referenced by name in any
// of referencedNames (a schedule's SSMMaintenanceWindows) and currently
// running at t.
func ActiveWindowsFor(windows []v1beta1.MaintenanceWindow, referencedNames []string, t time.Time) []v1beta1.MaintenanceWindow {
	if len(referencedNames) == 0 {
		return nil
	}
	allow := make(map[string]bool, len(referencedNames))
	for _, n := range referencedNames {
		allow[n] = true
	}
	var out []v1beta1.MaintenanceWindow
	for _, w := range windows {
		if allow[w.WindowName] && w.IsRunningAt(t) {
			out = append(out, w)
		}
	}
	return out
}

// ToEphemeralPeriods converts an active maintenance window into one or
// two synthetic periods expressing
// [NextExecutionTime-10min, NextExecutionTime+DurationHours) as
// Running in loc (the owning schedule's timezone), appended to the
// schedule's period list for this evaluation only; never persisted.
// A window that spans a local midnight boundary is modeled as two
// one-sided periods (a start-only period covering the rest of its
// first day, an end-only period covering the start of its second day)
// since the period evaluator (pkg/scheduling) only reasons about a
// single time-of-day range per period.
func ToEphemeralPeriods(w v1beta1.MaintenanceWindow, loc *time.Location) []v1beta1.Period {
	start := w.NextExecutionTime.Add(-v1beta1.MaintenanceWindowEarlyStart).In(loc)
	end := w.NextExecutionTime.Add(time.Duration(w.DurationHours * float64(time.Hour))).In(loc)
	name := "maintenance-window:" + w.WindowName + ":" + w.WindowID

	if sameDay(start, end) {
		begin := v1beta1.TimeOfDay{Hour: start.Hour(), Minute: start.Minute()}
		stop := v1beta1.TimeOfDay{Hour: end.Hour(), Minute: end.Minute()}
		return []v1beta1.Period{{
			Name:      name,
			BeginTime: &begin,
			EndTime:   &stop,
			Weekdays:  []string{"*"},
			Monthdays: []string{monthdayToken(start)},
			Months:    []string{monthToken(start)},
		}}
	}

	begin := v1beta1.TimeOfDay{Hour: start.Hour(), Minute: start.Minute()}
	stop := v1beta1.TimeOfDay{Hour: end.Hour(), Minute: end.Minute()}
	return []v1beta1.Period{
		{
			Name:      name + ":start",
			BeginTime: &begin,
			Weekdays:  []string{"*"},
			Monthdays: []string{monthdayToken(start)},
			Months:    []string{monthToken(start)},
		},
		{
			Name:      name + ":end",
			EndTime:   &stop,
			Weekdays:  []string{"*"},
			Monthdays: []string{monthdayToken(end)},
			Months:    []string{monthToken(end)},
		},
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func monthdayToken(t time.Time) string { return fmt.Sprintf("%d", t.Day()) }
func monthToken(t time.Time) string    { return fmt.Sprintf("%d", int(t.Month())) }
