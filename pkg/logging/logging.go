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

// Package logging carries a *zap.SugaredLogger through context.Context,
// the way knative.dev/pkg/logging does it for a controller-runtime
// reconciler. Every package downstream pulls its logger with
// FromContext rather than taking one as a constructor argument, so a
// single root logger built in cmd/scheduler configures every request
// fan-out and background worker without threading it through.
package logging

import (
	"context"

	"go.uber.org/zap"
)

type loggerKey struct{}

var fallback = zap.NewNop().Sugar()

// IntoContext returns a new context carrying logger.
func IntoContext(ctx context.Context, logger *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext extracts the *zap.SugaredLogger previously attached with
// IntoContext. It never returns nil: callers that run outside of a
// configured request (unit tests, one-off CLI invocations) get a
// no-op logger instead of needing a nil check at every call site.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.SugaredLogger); ok && logger != nil {
		return logger
	}
	return fallback
}

// NewProduction builds the root logger cmd/scheduler configures at
// startup: JSON encoding, ISO8601
// timestamps, level pulled from the given Settings-derived string.
func NewProduction(level string) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
