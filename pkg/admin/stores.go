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

package admin

import (
	"context"
	"fmt"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/store"
	"github.com/instancefleet/scheduler/pkg/store/postgres"
)

// Stores is the subset of Repositories an Admin needs, plus the
// GlobalConfig repository, which is opened alongside them; no
// schedulerctl command reads or writes it.
type Stores struct {
	Admin        Admin
	GlobalConfig store.Repository[v1beta1.GlobalConfig]
	Repositories *postgres.Repositories // nil for the in-memory store
	Store        *postgres.Store        // nil for the in-memory store
}

// OpenStores builds the repositories schedulerctl operates on: an
// in-memory store when dsn is empty (the CLI run without --database-url, useful
// for a quick demo or CI without a database), or a migrated Postgres
// store otherwise.
func OpenStores(ctx context.Context, dsn string) (*Stores, error) {
	if dsn == "" {
		periods := store.NewMemory[v1beta1.Period]()
		schedules := store.NewMemory[v1beta1.Schedule]()
		cfg := store.NewMemory[v1beta1.GlobalConfig]()
		return &Stores{
			Admin:        Admin{Periods: periods, Schedules: schedules},
			GlobalConfig: cfg,
		}, nil
	}

	if err := postgres.ApplyMigrations(ctx, dsn); err != nil {
		return nil, fmt.Errorf("admin: apply migrations: %w", err)
	}
	s, err := postgres.NewStore(ctx, postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("admin: open postgres store: %w", err)
	}
	repos := postgres.NewRepositories(s)
	return &Stores{
		Admin:        Admin{Periods: repos.Periods, Schedules: repos.Schedules},
		GlobalConfig: repos.GlobalConfig,
		Repositories: &repos,
		Store:        s,
	}, nil
}

// Close releases the underlying Postgres pool, a no-op for the in-memory store.
func (s *Stores) Close() {
	if s.Store != nil {
		s.Store.Close()
	}
}
