// Package service wires the notification engine together behind a single facade for the host
// application.
package service

import (
	"context"
	"time"

	"github.com/hoteldesk/notification-engine/broadcast"
	"github.com/hoteldesk/notification-engine/common"
	"github.com/hoteldesk/notification-engine/dispatch"
	"github.com/hoteldesk/notification-engine/kvstore"
	"github.com/hoteldesk/notification-engine/model"
	"github.com/hoteldesk/notification-engine/notifications"
	"github.com/hoteldesk/notification-engine/rules"
	"github.com/hoteldesk/notification-engine/settings"
	"github.com/hoteldesk/notification-engine/sync"
)

var log = common.Log.WithField("context", "service")

// Options holds the optional parts of a NotificationService.
type Options struct {
	// Channel carries broadcasts between sessions. Defaults to a StorageChannel on the same store.
	Channel broadcast.Channel

	// Source provides booking snapshots to the rules. Defaults to a StoreSource on the same store.
	Source rules.Source

	// TotalRooms is the room count used by the default source when there's no rooms document.
	TotalRooms int

	Sinks dispatch.Sinks
	Now   func() time.Time
}

// NotificationService is the entry point used by the host application.
type NotificationService struct {
	settings   *settings.Store
	repo       *notifications.Repository
	dispatcher *dispatch.Dispatcher
	sync       *sync.Engine
	rules      *rules.Engine
	source     rules.Source
	now        func() time.Time
}

// New builds a notification service on top of kv.
func New(kv kvstore.Store, opts Options) *NotificationService {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	channel := opts.Channel
	if channel == nil {
		channel = broadcast.NewStorageChannel(kv, now, broadcast.DefaultRetention)
	}
	source := opts.Source
	if source == nil {
		source = rules.NewStoreSource(kv, opts.TotalRooms)
	}

	settingsStore := settings.New(kv)
	repo := notifications.NewRepository(kv, now)
	dispatcher := dispatch.New(settingsStore, repo, channel, opts.Sinks, now)

	return &NotificationService{
		settings:   settingsStore,
		repo:       repo,
		dispatcher: dispatcher,
		sync:       sync.New(repo, channel, now),
		rules:      rules.NewEngine(dispatcher),
		source:     source,
		now:        now,
	}
}

// ListActive returns the unexpired notifications, newest first.
func (s *NotificationService) ListActive(ctx context.Context) []model.Notification {
	return s.repo.ListActive(ctx)
}

// List returns the unexpired notifications that match filter, newest first.
func (s *NotificationService) List(ctx context.Context, filter notifications.Filter) []model.Notification {
	return s.repo.List(ctx, filter)
}

// CountUnread returns the number of unread notifications.
func (s *NotificationService) CountUnread(ctx context.Context) int {
	return s.repo.CountUnread(ctx)
}

// MarkRead marks a notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id string) {
	if err := s.repo.MarkRead(ctx, id); err != nil {
		log.WithError(err).WithField("id", id).Warn("unable to mark notification as read")
	}
}

// MarkAllRead marks every notification as read.
func (s *NotificationService) MarkAllRead(ctx context.Context) {
	if err := s.repo.MarkAllRead(ctx); err != nil {
		log.WithError(err).Warn("unable to mark notifications as read")
	}
}

// Remove deletes a notification.
func (s *NotificationService) Remove(ctx context.Context, id string) {
	if err := s.repo.Remove(ctx, id); err != nil {
		log.WithError(err).WithField("id", id).Warn("unable to remove notification")
	}
}

// Settings returns the current notification settings.
func (s *NotificationService) Settings(ctx context.Context) model.Settings {
	return s.settings.Get(ctx)
}

// SaveSettings replaces the notification settings.
func (s *NotificationService) SaveSettings(ctx context.Context, settings model.Settings) error {
	return s.settings.Save(ctx, settings)
}

// UpdateSettings applies patch to the current settings and saves the result.
func (s *NotificationService) UpdateSettings(ctx context.Context, patch func(*model.Settings)) (model.Settings, error) {
	current := s.settings.Get(ctx)
	patch(&current)
	return current, s.settings.Save(ctx, current)
}

// Subscribe registers fn to be called whenever the notification list changes. The returned
// function cancels the subscription.
func (s *NotificationService) Subscribe(fn func()) func() {
	return s.repo.Subscribe(fn)
}

// Dispatch delivers a candidate notification. See dispatch.Dispatcher.
func (s *NotificationService) Dispatch(ctx context.Context, candidate model.Candidate) *model.Notification {
	return s.dispatcher.Dispatch(ctx, candidate)
}

// StartSync starts merging notifications from other sessions every interval. The returned
// function stops syncing and must be called when the session ends.
func (s *NotificationService) StartSync(ctx context.Context, interval time.Duration, onMerge func([]model.Notification)) func() {
	return s.sync.Start(ctx, interval, onMerge)
}

// SyncStatus returns the state of the sync loop.
func (s *NotificationService) SyncStatus() sync.Status {
	return s.sync.Status()
}

// RunAllRules runs every rule against the current booking snapshot and returns the
// notifications that were created. Snapshot failures are logged and produce nothing.
func (s *NotificationService) RunAllRules(ctx context.Context) []model.Notification {
	created, err := s.rules.Run(ctx, s.source, s.now())
	if err != nil {
		log.WithError(err).Error("unable to run notification rules")
		return nil
	}
	return created
}
