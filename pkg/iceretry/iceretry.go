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

// Package iceretry implements: when a start fails with an
// insufficient-capacity error and the instance carries operator-
// supplied alternate sizes, a retry message is enqueued and a separate
// consumer re-attempts the start at each alternate size in turn. The
// queue is a Go channel for in-process fan-out backed by a persisted
// backlog (store.Repository[Message]) so a process restart does not
// silently lose an in-flight retry the way a bare channel would; an
// SQS-backed queue gets that durability for free from SQS; a pure
// in-memory channel in a single Go binary would not, so this is a
// deliberate addition.
package iceretry

import (
	"context"
	"fmt"

	"github.com/avast/retry-go"

	v1beta1 "github.com/instancefleet/scheduler/pkg/apis/v1beta1"
	"github.com/instancefleet/scheduler/pkg/cloudprovider"
	"github.com/instancefleet/scheduler/pkg/events"
	"github.com/instancefleet/scheduler/pkg/logging"
	"github.com/instancefleet/scheduler/pkg/metrics"
	"github.com/instancefleet/scheduler/pkg/store"
)

// Message is the retry-queue payload: enough to
// re-attempt a start against alternate sizes without re-deriving the
// instance's tags from a fresh describe call.
type Message struct {
	Account        string          `json:"account"`
	Region         string          `json:"region"`
	Service        v1beta1.Service `json:"service"`
	InstanceID     string          `json:"instance_id"`
	PreferredSizes []string        `json:"preferred_sizes"`
}

func messageKey(m Message) string {
	return fmt.Sprintf("%s#%s#%s#%s", m.Service, m.Account, m.Region, m.InstanceID)
}

// Queue is the multi-producer/single-consumer backlog of ICE retries,
// one per worker instance. Enqueue is called from the
// executor when an adapter's Start returns a capacity-unavailable
// error; the consumer is driven by Handler.Run.
type Queue struct {
	repo store.Repository[Message]
	ch   chan Message
}

// NewQueue builds a Queue backed by repo, with an in-process channel
// buffer of the given size for fast delivery to a co-located consumer.
func NewQueue(repo store.Repository[Message], buffer int) *Queue {
	if buffer <= 0 {
		buffer = 64
	}
	return &Queue{repo: repo, ch: make(chan Message, buffer)}
}

// Enqueue persists m and offers it to the in-process channel. A full
// channel does not block or drop the message: it is still durable in
// repo and will be picked up by Recover on the next consumer restart.
func (q *Queue) Enqueue(ctx context.Context, m Message) error {
	if err := q.repo.Put(ctx, messageKey(m), m); err != nil {
		return fmt.Errorf("iceretry: persist message for %s: %w", m.InstanceID, err)
	}
	select {
	case q.ch <- m:
	default:
		logging.FromContext(ctx).Warnw("ice-retry channel full, message persisted for later recovery", "instance", m.InstanceID)
	}
	metrics.ICERetryQueueDepth.Inc()
	return nil
}

// Recover re-offers every persisted message to the channel, for a
// consumer that starts after a restart and would otherwise never see
// messages that were enqueued but not yet delivered.
func (q *Queue) Recover(ctx context.Context) error {
	pending, err := q.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("iceretry: recover: %w", err)
	}
	for _, m := range pending {
		select {
		case q.ch <- m:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// ack removes a message from the durable backlog once it has been
// resolved (success, exhausted retries, or terminal failure);
// idempotent, since a duplicate delivery that finds nothing to delete
// is not an error.
func (q *Queue) ack(ctx context.Context, m Message) {
	if err := q.repo.Delete(ctx, messageKey(m)); err != nil {
		logging.FromContext(ctx).Warnw("failed to ack ice-retry message", "instance", m.InstanceID, "error", err)
	}
	metrics.ICERetryQueueDepth.Dec()
}

// Attempter is the narrow seam the Handler depends on: a start call
// scoped to a cloud family, and a running/size check used to quit
// silently when the instance is already at a preferred size.
type Attempter interface {
	Start(ctx context.Context, account, region, instanceID, size string) error
	Observe(ctx context.Context, account, region, instanceID string) (running bool, currentSize string, err error)
}

// Handler consumes Queue messages and re-attempts starts at each
// preferred size in order, using avast/retry-go for the bounded
// re-attempt loop within a single size.
type Handler struct {
	queue       *Queue
	attempter   Attempter
	maxAttempts uint
	bus         events.Bus
}

func NewHandler(queue *Queue, attempter Attempter, maxAttempts int, bus events.Bus) *Handler {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Handler{queue: queue, attempter: attempter, maxAttempts: uint(maxAttempts), bus: bus}
}

// Run drains the queue's channel until ctx is cancelled, processing
// one message at a time (ordering within a single instance's retries
// matters; across instances it does not, so a deployment wanting more
// throughput runs multiple Handlers sharing one Queue).
func (h *Handler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-h.queue.ch:
			h.process(ctx, m)
		}
	}
}

func (h *Handler) process(ctx context.Context, m Message) {
	log := logging.FromContext(ctx).With("instance", m.InstanceID, "account", m.Account, "region", m.Region)

	if running, size, err := h.attempter.Observe(ctx, m.Account, m.Region, m.InstanceID); err == nil && running && containsSize(m.PreferredSizes, size) {
		log.Infow("instance already running at a preferred size, ice-retry is a no-op", "size", size)
		h.queue.ack(ctx, m)
		return
	}

	for _, size := range m.PreferredSizes {
		size := size
		// retry.Do absorbs transient (throttling/timeout) failures with
		// backoff, but never retries a capacity-unavailable error at the
		// same size; that error means "try the next size", not "try
		// this size again".
		err := retry.Do(
			func() error { return h.attempter.Start(ctx, m.Account, m.Region, m.InstanceID, size) },
			retry.Attempts(h.maxAttempts),
			retry.Context(ctx),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(err error) bool {
				return cloudprovider.ClassOf(err) == cloudprovider.ErrorClassTransient
			}),
		)
		if err == nil {
			log.Infow("ice-retry succeeded", "size", size)
			h.bus.Record(events.Started(m.InstanceID, "", "ice-retry:"+size))
			h.queue.ack(ctx, m)
			return
		}
		if cloudprovider.ClassOf(err) == cloudprovider.ErrorClassCapacityUnavailable {
			log.Infow("ice-retry size still unavailable, trying next preferred size", "size", size)
			continue
		}
		log.Warnw("ice-retry failed with a non-capacity error, giving up", "size", size, "error", err)
		h.bus.Record(events.Failed(m.InstanceID, "START_FAILED", err.Error()))
		h.queue.ack(ctx, m)
		return
	}
	log.Warnw("ice-retry exhausted every preferred size")
	h.bus.Record(events.Failed(m.InstanceID, "START_FAILED", "insufficient capacity at every preferred size"))
	h.queue.ack(ctx, m)
}

func containsSize(sizes []string, size string) bool {
	for _, s := range sizes {
		if s == size {
			return true
		}
	}
	return false
}
