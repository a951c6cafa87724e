// Package sync merges notifications created by other sessions into the local repository.
package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/hoteldesk/notification-engine/broadcast"
	"github.com/hoteldesk/notification-engine/common"
	"github.com/hoteldesk/notification-engine/model"
	"github.com/hoteldesk/notification-engine/notifications"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultInterval is the polling interval used when none is given.
const DefaultInterval = 3 * time.Second

var log = common.Log.WithField("context", "sync")

var tracer = otel.Tracer("github.com/hoteldesk/notification-engine/sync")

// Status describes the state of the polling loop.
type Status struct {
	Running    bool
	Checkpoint int64
	LastTick   time.Time
	Merged     int
	LastError  error
}

// Engine polls a broadcast channel and merges new notifications into a repository.
type Engine struct {
	repo    *notifications.Repository
	channel broadcast.Channel
	now     func() time.Time

	mu     gosync.Mutex
	status Status
}

// New returns a sync engine. If now is nil, time.Now is used.
func New(repo *notifications.Repository, channel broadcast.Channel, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{repo: repo, channel: channel, now: now}
}

// Poll returns the broadcast notifications created after checkpoint that aren't already in
// the local repository, oldest first. The channel discards stale records as a side effect.
func (e *Engine) Poll(ctx context.Context, checkpoint int64) ([]model.Notification, error) {
	ns, _, err := e.poll(ctx, checkpoint)
	return ns, err
}

// poll also returns the newest creation time seen on the channel.
func (e *Engine) poll(ctx context.Context, checkpoint int64) ([]model.Notification, int64, error) {
	records, err := e.channel.Fetch(ctx, checkpoint)
	if err != nil {
		return nil, checkpoint, err
	}

	existing := e.repo.IDs(ctx)
	latest := checkpoint
	result := make([]model.Notification, 0, len(records))
	for _, record := range records {
		if record.CreatedAt > latest {
			latest = record.CreatedAt
		}
		if record.CreatedAt <= checkpoint || existing[record.Notification.ID] {
			continue
		}
		existing[record.Notification.ID] = true
		result = append(result, record.Notification)
	}

	return result, latest, nil
}

// Merge adds the notifications whose IDs aren't in the repository yet and returns them.
func (e *Engine) Merge(ctx context.Context, incoming []model.Notification) ([]model.Notification, error) {
	if len(incoming) == 0 {
		return nil, nil
	}
	return e.repo.Merge(ctx, incoming)
}

// Tick runs a single poll and merge cycle starting from checkpoint. It returns the merged
// notifications and the new checkpoint.
func (e *Engine) Tick(ctx context.Context, checkpoint int64) ([]model.Notification, int64, error) {
	ctx, span := tracer.Start(ctx, "sync tick", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	incoming, latest, err := e.poll(ctx, checkpoint)
	if err != nil {
		span.RecordError(err)
		e.record(checkpoint, 0, err)
		return nil, checkpoint, err
	}

	merged, err := e.Merge(ctx, incoming)
	if err != nil {
		// Leave the checkpoint alone so the records are retried on the next tick.
		span.RecordError(err)
		e.record(checkpoint, 0, err)
		return nil, checkpoint, err
	}

	span.SetAttributes(
		attribute.Int("sync.fetched", len(incoming)),
		attribute.Int("sync.merged", len(merged)),
	)
	e.record(latest, len(merged), nil)
	return merged, latest, nil
}

// record updates the status after a tick.
func (e *Engine) record(checkpoint int64, merged int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.status.Checkpoint = checkpoint
	e.status.LastTick = e.now()
	e.status.Merged += merged
	e.status.LastError = err
}

// Status returns a copy of the current status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Start polls every interval until the returned function is called. The checkpoint starts at
// the current time, so only notifications created after Start are merged. onMerge, if not nil,
// is called from the polling goroutine with each non-empty batch of merged notifications.
// The returned function stops the loop and waits for it to exit.
func (e *Engine) Start(ctx context.Context, interval time.Duration, onMerge func([]model.Notification)) func() {
	if interval <= 0 {
		interval = DefaultInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	checkpoint := common.EpochMillis(e.now())
	e.mu.Lock()
	e.status.Running = true
	e.status.Checkpoint = checkpoint
	e.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			e.mu.Lock()
			e.status.Running = false
			e.mu.Unlock()
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				merged, next, err := e.Tick(ctx, checkpoint)
				if err != nil {
					log.WithError(err).Warn("unable to sync notifications")
					continue
				}
				checkpoint = next
				if len(merged) > 0 {
					log.Debugf("merged %d notifications from other sessions", len(merged))
					if onMerge != nil {
						onMerge(merged)
					}
				}
			}
		}
	}()

	var once gosync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
