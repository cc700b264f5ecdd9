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

package postgres

import (
	"context"
	"fmt"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/logging"
)

// TxWriter accumulates resource-state and registry writes produced
// while executing a single scheduling decision and commits them
// together, so a crash mid-target never leaves the stored state
// pointing at one resource while the registry disagrees about another.
// The executor does not use it; it writes resource state and registry
// entries through separate repository calls.
type TxWriter struct {
	store *Store
	state []pendingState
	reg   []pendingRegistration
}

type pendingState struct {
	key   v1beta1.ResourceKey
	value v1beta1.ResourceStateRecord
}

type pendingRegistration struct {
	key   string
	value v1beta1.RegisteredInstance
}

func NewTxWriter(s *Store) *TxWriter {
	return &TxWriter{store: s}
}

func (w *TxWriter) PutResourceState(key v1beta1.ResourceKey, value v1beta1.ResourceStateRecord) {
	w.state = append(w.state, pendingState{key: key, value: value})
}

func (w *TxWriter) PutRegistration(value v1beta1.RegisteredInstance) {
	w.reg = append(w.reg, pendingRegistration{key: value.Account + "#" + value.SortKey(), value: value})
}

// Commit opens a single pgx.Tx, applies every accumulated write
// through Table[T] instances scoped to that tx, and commits. On any
// error the transaction is rolled back and nothing is persisted.
func (w *TxWriter) Commit(ctx context.Context) (err error) {
	if len(w.state) == 0 && len(w.reg) == 0 {
		return nil
	}
	tx, err := w.store.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				logging.FromContext(ctx).Warnw("tx rollback failed", "error", rbErr)
			}
		}
	}()

	stateTable := NewTable[v1beta1.ResourceStateRecord](tx, "resource_state")
	for _, p := range w.state {
		if err = stateTable.Put(ctx, resourceStateKey(p.key), p.value); err != nil {
			return err
		}
	}
	regTable := NewTable[v1beta1.RegisteredInstance](tx, "registry")
	for _, p := range w.reg {
		if err = regTable.Put(ctx, p.key, p.value); err != nil {
			return err
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

func resourceStateKey(k v1beta1.ResourceKey) string {
	return fmt.Sprintf("%s#%s#%s#%s", k.Service, k.Account, k.Region, k.ResourceID)
}
