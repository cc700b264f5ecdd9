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

// Package config loads and validates the scheduler's Settings: defaults
// merged with environment variables via koanf, then checked with
// go-playground/validator. Settings are carried through context.Context
// the same way pkg/logging carries the logger, so cmd/scheduler builds
// it once and every downstream package pulls it from ctx instead of
// threading a struct pointer through every constructor.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Settings is the scheduler's runtime configuration, sourced from
// defaults overlaid with SCHEDULER_-prefixed environment variables.
type Settings struct {
	// LogLevel is a zap level string (debug, info, warn, error).
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// SchedulingIntervalMinutes is how often the orchestrator runs a
	// full pass over every (account, region, service) target.
	SchedulingIntervalMinutes int `koanf:"scheduling_interval_minutes" validate:"required,min=1"`

	// MaxConcurrentTargets bounds the orchestrator's errgroup fan-out
	// ; it is distinct from the executor's per-target worker
	// budget, which is time-based rather than count-based.
	MaxConcurrentTargets int `koanf:"max_concurrent_targets" validate:"required,min=1"`

	// DefaultTimezone is used when a schedule specifies none.
	DefaultTimezone string `koanf:"default_timezone" validate:"required"`

	// TagKey is the resource tag scheduled resources are discovered by.
	TagKey string `koanf:"tag_key" validate:"required"`

	// DatabaseURL is the Postgres DSN for the durable store. Empty
	// means schedulerctl falls back to the in-memory store.
	DatabaseURL string `koanf:"database_url"`

	// StartTags and StopTags are operator-authored tag templates
	// ("key=value" pairs, comma-separated) written onto a resource
	// after a successful start or stop. Values may reference {year},
	// {month}, {day}, {hour}, {minute}, {scheduler}, and {timezone}.
	StartTags string `koanf:"start_tags"`
	StopTags  string `koanf:"stop_tags"`

	// StackName identifies this deployment; it names the scheduler in
	// tag-template substitutions and prefixes stop-time DB snapshots.
	StackName string `koanf:"stack_name" validate:"required"`

	// StoreCacheTTL bounds how long the Cached repository decorator
	// may serve a stale read before re-hitting the durable store.
	StoreCacheTTL time.Duration `koanf:"store_cache_ttl"`

	// EnableMaintenanceWindows turns on the maintenance-window
	// integration; disabled by default since it requires a
	// separate maintenance-window data source to be configured.
	EnableMaintenanceWindows bool `koanf:"enable_maintenance_windows"`

	// ICERetryMaxAttempts bounds the insufficient-capacity retry
	// queue's consumer attempts per size before a resource is marked
	// start-failed.
	ICERetryMaxAttempts int `koanf:"ice_retry_max_attempts" validate:"min=0"`

	// CloudAPIRateLimit caps mutating cloud-API calls per second across
	// the whole fan-out pass, shared by every concurrent target so
	// MaxConcurrentTargets can be raised without tripping the
	// underlying API's own throttling. Zero means unlimited.
	CloudAPIRateLimit float64 `koanf:"cloud_api_rate_limit" validate:"min=0"`

	// CloudAPIBurst is the token-bucket burst size paired with
	// CloudAPIRateLimit.
	CloudAPIBurst int `koanf:"cloud_api_burst" validate:"min=0"`
}

func defaults() Settings {
	return Settings{
		LogLevel:                  "info",
		SchedulingIntervalMinutes: 5,
		MaxConcurrentTargets:      10,
		DefaultTimezone:           "UTC",
		TagKey:                    "Schedule",
		StackName:                 "instance-scheduler",
		StoreCacheTTL:             30 * time.Second,
		ICERetryMaxAttempts:       5,
		CloudAPIRateLimit:         20,
		CloudAPIBurst:             20,
	}
}

// Load builds Settings from defaults overlaid with SCHEDULER_-prefixed
// environment variables (SCHEDULER_LOG_LEVEL, SCHEDULER_DATABASE_URL,
// ...), then validates the result.
func Load() (Settings, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return Settings{}, fmt.Errorf("config: load defaults: %w", err)
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: "SCHEDULER_",
		TransformFunc: func(key, value string) (string, any) {
			return normalizeEnvKey(strings.TrimPrefix(key, "SCHEDULER_")), value
		},
	}), nil); err != nil {
		return Settings{}, fmt.Errorf("config: load environment: %w", err)
	}

	var settings Settings
	if err := k.Unmarshal("", &settings); err != nil {
		return Settings{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := validator.New().Struct(settings); err != nil {
		return Settings{}, fmt.Errorf("config: validate: %w", err)
	}
	return settings, nil
}

func normalizeEnvKey(key string) string {
	out := make([]byte, 0, len(key))
	for _, r := range key {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, byte(r-'A'+'a'))
		case r == '_':
			out = append(out, '_')
		default:
			out = append(out, byte(r))
		}
	}
	return string(out)
}

type settingsKey struct{}

func ToContext(ctx context.Context, s Settings) context.Context {
	return context.WithValue(ctx, settingsKey{}, s)
}

// FromContext returns the Settings carried by ctx, or defaults if none
// were attached (unit tests that never call ToContext still get sane
// worker budgets instead of zero values).
func FromContext(ctx context.Context) Settings {
	if s, ok := ctx.Value(settingsKey{}).(Settings); ok {
		return s
	}
	return defaults()
}
