package dispatch

import (
	"context"
	"time"

	"github.com/hoteldesk/notification-engine/model"
)

// DesktopAutoDismiss is how long a non-urgent desktop alert stays on screen.
const DesktopAutoDismiss = 5 * time.Second

// SoundProfile names the audible cue played for a notification.
type SoundProfile string

// Sound profiles.
const (
	SoundStandard SoundProfile = "standard"
	SoundUrgent   SoundProfile = "urgent"
)

// SoundProfileFor selects the cue for a notification.
func SoundProfileFor(n *model.Notification) SoundProfile {
	if n.Priority == model.PriorityUrgent || n.Kind == model.KindGuestRequest {
		return SoundUrgent
	}
	return SoundStandard
}

// SoundPlayer plays audible cues.
type SoundPlayer interface {
	Play(ctx context.Context, profile SoundProfile) error
}

// DesktopAlert describes a native desktop or system alert.
type DesktopAlert struct {
	Title              string
	Body               string
	Tag                string
	ActionURL          string
	RequireInteraction bool

	// AutoDismiss is zero when the alert stays up until the user dismisses it.
	AutoDismiss time.Duration
}

// DesktopAlertFor builds the desktop alert for a notification. Urgent alerts persist until
// they're dismissed.
func DesktopAlertFor(n *model.Notification) DesktopAlert {
	alert := DesktopAlert{
		Title:     n.Title,
		Body:      n.Message,
		Tag:       n.ID,
		ActionURL: n.ActionURL,
	}
	if n.Priority == model.PriorityUrgent {
		alert.RequireInteraction = true
	} else {
		alert.AutoDismiss = DesktopAutoDismiss
	}
	return alert
}

// DesktopAlerter shows desktop alerts.
type DesktopAlerter interface {
	Show(ctx context.Context, alert DesktopAlert) error
}

// PermissionChecker reports whether the host currently allows desktop alerts. It must not
// prompt the user.
type PermissionChecker interface {
	Granted() bool
}

// EmailSender sends an email about a notification.
type EmailSender interface {
	Send(ctx context.Context, n model.Notification) error
}

// Sinks holds the delivery capabilities available to a dispatcher. Nil members are replaced
// with implementations that only log.
type Sinks struct {
	Sound      SoundPlayer
	Desktop    DesktopAlerter
	Permission PermissionChecker
	Email      EmailSender
}

// withDefaults fills in the missing sinks.
func (s Sinks) withDefaults() Sinks {
	if s.Sound == nil {
		s.Sound = LogSoundPlayer{}
	}
	if s.Desktop == nil {
		s.Desktop = LogDesktopAlerter{}
	}
	if s.Permission == nil {
		s.Permission = NeverGranted{}
	}
	if s.Email == nil {
		s.Email = LogEmailSender{}
	}
	return s
}

// LogSoundPlayer logs the cue instead of playing it, for hosts without audio.
type LogSoundPlayer struct{}

// Play logs the sound profile.
func (LogSoundPlayer) Play(_ context.Context, profile SoundProfile) error {
	log.WithField("profile", profile).Debug("sound cue")
	return nil
}

// LogDesktopAlerter logs alerts instead of showing them.
type LogDesktopAlerter struct{}

// Show logs the alert.
func (LogDesktopAlerter) Show(_ context.Context, alert DesktopAlert) error {
	log.WithField("tag", alert.Tag).Debugf("desktop alert: %s", alert.Title)
	return nil
}

// LogEmailSender logs the notifications it would have emailed.
type LogEmailSender struct{}

// Send logs the notification.
func (LogEmailSender) Send(_ context.Context, n model.Notification) error {
	log.WithField("id", n.ID).Debugf("email: %s", n.Title)
	return nil
}

// AlwaysGranted is a PermissionChecker that always allows desktop alerts.
type AlwaysGranted struct{}

// Granted returns true.
func (AlwaysGranted) Granted() bool { return true }

// NeverGranted is a PermissionChecker for hosts that can't show desktop alerts.
type NeverGranted struct{}

// Granted returns false.
func (NeverGranted) Granted() bool { return false }
