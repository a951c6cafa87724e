// Package dispatch turns candidate notifications into persisted notifications and fans them
// out to the delivery channels.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hoteldesk/notification-engine/broadcast"
	"github.com/hoteldesk/notification-engine/common"
	"github.com/hoteldesk/notification-engine/model"
	"github.com/hoteldesk/notification-engine/notifications"
	"github.com/hoteldesk/notification-engine/settings"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var log = common.Log.WithField("context", "dispatch")

var tracer = otel.Tracer("github.com/hoteldesk/notification-engine/dispatch")

// Dispatcher gates, materializes, persists and delivers notifications.
type Dispatcher struct {
	settings   *settings.Store
	repo       *notifications.Repository
	classifier *notifications.Classifier
	channel    broadcast.Channel
	sinks      Sinks
	now        func() time.Time
}

// New returns a new dispatcher. If now is nil, time.Now is used.
func New(
	settingsStore *settings.Store,
	repo *notifications.Repository,
	channel broadcast.Channel,
	sinks Sinks,
	now func() time.Time,
) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		settings:   settingsStore,
		repo:       repo,
		classifier: notifications.NewClassifier(repo, now),
		channel:    channel,
		sinks:      sinks.withDefaults(),
		now:        now,
	}
}

// NewID generates a notification ID: the creation time in epoch milliseconds followed by a
// random suffix.
func NewID(createdAt time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%d-%s", common.EpochMillis(createdAt), suffix)
}

// materialize builds the notification for a candidate. The priority configured for the kind
// wins over the candidate's own.
func (d *Dispatcher) materialize(candidate *model.Candidate, s *model.Settings) model.Notification {
	createdAt := d.now()

	category := candidate.Category
	if category == "" {
		category = candidate.Kind.DefaultCategory()
	}

	priority := candidate.Priority
	if override, ok := s.PriorityOverride(candidate.Kind); ok {
		priority = override
	} else if priority == "" {
		priority = candidate.Kind.DefaultPriority()
	}

	return model.Notification{
		ID:             NewID(createdAt),
		Kind:           candidate.Kind,
		Category:       category,
		Priority:       priority,
		Title:          candidate.Title,
		Message:        candidate.Message,
		Unread:         true,
		BookingID:      candidate.BookingID,
		RoomID:         candidate.RoomID,
		GuestID:        candidate.GuestID,
		RequestID:      candidate.RequestID,
		ActionRequired: candidate.ActionRequired,
		ActionURL:      candidate.ActionURL,
		CreatedAt:      common.EpochMillis(createdAt),
		ExpiresAt:      candidate.ExpiresAt,
		Metadata:       candidate.Metadata,
	}
}

// Dispatch persists and delivers a candidate. It returns nil when notifications of the
// candidate's kind are disabled, when an equivalent notification is still active, or when
// the notification couldn't be saved. Delivery failures don't affect the result.
func (d *Dispatcher) Dispatch(ctx context.Context, candidate model.Candidate) *model.Notification {
	ctx, span := tracer.Start(ctx, "dispatch", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("notification.kind", string(candidate.Kind)),
		attribute.String("notification.correlating_id", candidate.CorrelatingID()),
	)

	logger := log.WithField("kind", candidate.Kind)

	// Check the settings.
	s := d.settings.Get(ctx)
	if !s.Enabled || !s.KindEnabled(candidate.Kind) {
		logger.Debug("notifications of this kind are disabled")
		span.SetAttributes(attribute.String("notification.outcome", "disabled"))
		return nil
	}

	// Suppress duplicates.
	if existing := d.classifier.FindEquivalent(ctx, candidate); existing != nil {
		logger.WithField("existing", existing.ID).Debug("equivalent notification is still active")
		span.SetAttributes(attribute.String("notification.outcome", "duplicate"))
		return nil
	}

	// Save the notification.
	n := d.materialize(&candidate, &s)
	if err := d.repo.Insert(ctx, n); err != nil {
		logger.WithError(err).Error("unable to save notification")
		span.RecordError(err)
		span.SetAttributes(attribute.String("notification.outcome", "failed"))
		return nil
	}
	span.SetAttributes(
		attribute.String("notification.id", n.ID),
		attribute.String("notification.outcome", "created"),
	)

	d.fanOut(ctx, &s, n)

	return &n
}

// fanOut delivers a saved notification to every enabled channel. Each channel is attempted
// regardless of what happened to the others.
func (d *Dispatcher) fanOut(ctx context.Context, s *model.Settings, n model.Notification) {
	logger := log.WithField("id", n.ID)

	if s.SoundEnabled {
		deliver(logger, "sound", func() error {
			return d.sinks.Sound.Play(ctx, SoundProfileFor(&n))
		})
	}

	if s.DesktopEnabled {
		deliver(logger, "desktop", func() error {
			if !d.sinks.Permission.Granted() {
				return nil
			}
			return d.sinks.Desktop.Show(ctx, DesktopAlertFor(&n))
		})
	}

	if s.EmailEnabled && (n.Priority == model.PriorityHigh || n.Priority == model.PriorityUrgent) {
		deliver(logger, "email", func() error {
			return d.sinks.Email.Send(ctx, n)
		})
	}

	// Other sessions only learn about the notification through the broadcast.
	deliver(logger, "broadcast", func() error {
		return d.channel.Publish(ctx, model.NewBroadcastRecord(n))
	})
}

// deliver runs a single delivery, logging errors and panics instead of propagating them.
func deliver(logger *logrus.Entry, channel string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithError(errors.Errorf("panic: %v", r)).Errorf("%s delivery failed", channel)
		}
	}()

	if err := fn(); err != nil {
		logger.WithError(err).Warnf("%s delivery failed", channel)
	}
}
