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
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/instancefleet/scheduler/pkg/store"
)

// Table is a generic store.Repository[T] backed by a single
// "key TEXT PRIMARY KEY, value JSONB, updated_at TIMESTAMPTZ" table.
// Every scheduler entity (periods, schedules, global config, resource
// state, registry entries, maintenance windows) persists through one
// instantiation of Table rather than a bespoke hand-written repository
// per entity, since they share identical access patterns: look up by
// key, list everything, upsert, delete.
type Table[T any] struct {
	db   DB
	name string
}

func NewTable[T any](db DB, name string) *Table[T] {
	return &Table[T]{db: db, name: name}
}

func (t *Table[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T
	sql, args, err := squirrel.Select("value").
		From(t.name).
		Where(squirrel.Eq{"key": key}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return zero, fmt.Errorf("postgres: build get query: %w", err)
	}
	var raw []byte
	if err := t.db.QueryRow(ctx, sql, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, store.ErrNotFound
		}
		return zero, fmt.Errorf("postgres: get %s/%s: %w", t.name, key, err)
	}
	var value T
	if err := fromJSONB(raw, &value); err != nil {
		return zero, err
	}
	return value, nil
}

func (t *Table[T]) List(ctx context.Context) ([]T, error) {
	sql, args, err := squirrel.Select("value").
		From(t.name).
		OrderBy("key ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build list query: %w", err)
	}
	rows, err := t.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list %s: %w", t.name, err)
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("postgres: scan %s row: %w", t.name, err)
		}
		var value T
		if err := fromJSONB(raw, &value); err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate %s: %w", t.name, err)
	}
	return out, nil
}

func (t *Table[T]) Put(ctx context.Context, key string, value T) error {
	raw, err := toJSONB(value)
	if err != nil {
		return err
	}
	sql, args, err := squirrel.Insert(t.name).
		Columns("key", "value", "updated_at").
		Values(key, raw, squirrel.Expr("now()")).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build put query: %w", err)
	}
	if _, err := t.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("postgres: put %s/%s: %w", t.name, key, err)
	}
	return nil
}

func (t *Table[T]) Delete(ctx context.Context, key string) error {
	sql, args, err := squirrel.Delete(t.name).
		Where(squirrel.Eq{"key": key}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build delete query: %w", err)
	}
	if _, err := t.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("postgres: delete %s/%s: %w", t.name, key, err)
	}
	return nil
}
