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

// Package events carries per-action scheduling events to a local and a
// global bus, deduplicated the way a disruption controller's event
// recorder suppresses noisy repeats: a patrickmn/go-cache keyed by the
// event's dedupe values, default timeout overridable per event.
package events

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// EventType mirrors the coarse classification Kubernetes events use,
// kept here so a Bus implementation backed by a real event sink (or a
// k8s Recorder, for an operator that also runs in-cluster) can map
// onto it directly.
type EventType string

const (
	TypeNormal  EventType = "Normal"
	TypeWarning EventType = "Warning"
)

// defaultDedupeTimeout is how long an identical event (same
// InvolvedObject/Reason/DedupeValues) is suppressed before it's
// allowed to fire again.
const defaultDedupeTimeout = 5 * time.Minute

// Event is one scheduling-action notification: a Start, Stop, Resize,
// or failure for one resource.
type Event struct {
	InvolvedObject string
	Type           EventType
	Reason         string
	Message        string
	DedupeValues   []string
	DedupeTimeout  time.Duration
}

func (e Event) dedupeKey() string {
	key := e.InvolvedObject + "#" + e.Reason
	for _, v := range e.DedupeValues {
		key += "#" + v
	}
	return key
}

// Bus is a sink events are pushed to. The executor holds two: a
// local bus scoped to the current account/region and a global bus
// aggregating across the fleet.
type Bus interface {
	Record(events ...Event)
}

// Recorder is a Bus that suppresses duplicate events, similar to how a
// disruption controller suppresses repeat "Unconsolidatable" spam, and
// forwards the rest to an underlying sink function.
type Recorder struct {
	dedupe *cache.Cache
	sink   func(Event)
}

// NewRecorder builds a Recorder that calls sink for every event that
// survives deduplication.
func NewRecorder(sink func(Event)) *Recorder {
	return &Recorder{
		dedupe: cache.New(defaultDedupeTimeout, defaultDedupeTimeout/2),
		sink:   sink,
	}
}

func (r *Recorder) Record(events ...Event) {
	for _, e := range events {
		timeout := e.DedupeTimeout
		if timeout == 0 {
			timeout = defaultDedupeTimeout
		}
		key := e.dedupeKey()
		if _, found := r.dedupe.Get(key); found {
			continue
		}
		r.dedupe.Set(key, struct{}{}, timeout)
		r.sink(e)
	}
}

// Batches splits events into groups of at most size ("batches of 10"
// downstream) so a bus backed by a rate limited API is never handed
// more than it can take in one call.
func Batches(events []Event, size int) [][]Event {
	if len(events) == 0 {
		return nil
	}
	var out [][]Event
	for i := 0; i < len(events); i += size {
		end := i + size
		if end > len(events) {
			end = len(events)
		}
		out = append(out, events[i:end])
	}
	return out
}
