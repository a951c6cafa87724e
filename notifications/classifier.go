package notifications

import (
	"context"
	"time"

	"github.com/hoteldesk/notification-engine/common"
	"github.com/hoteldesk/notification-engine/model"
)

// Classifier finds active notifications equivalent to a candidate.
type Classifier struct {
	repo *Repository
	now  func() time.Time
}

// NewClassifier returns a classifier that consults repo. If now is nil, time.Now is used.
func NewClassifier(repo *Repository, now func() time.Time) *Classifier {
	if now == nil {
		now = time.Now
	}
	return &Classifier{repo: repo, now: now}
}

// FindEquivalent returns the active notification equivalent to candidate, or nil if there
// isn't one. A notification is equivalent if it has the same kind and the same correlating ID
// taken from the same field, so a room ID never matches a booking ID. Kinds
// that are singletons per day match on kind and calendar day when there's no correlating ID.
// Only unexpired notifications are considered, so an expired reminder never suppresses a new one.
func (c *Classifier) FindEquivalent(ctx context.Context, candidate model.Candidate) *model.Notification {
	correlation := candidate.Correlation()
	if correlation.ID == "" && !candidate.Kind.DayScoped() {
		return nil
	}

	now := c.now()
	for _, n := range c.repo.ListActive(ctx) {
		if n.Kind != candidate.Kind {
			continue
		}

		if correlation.ID != "" {
			if n.Correlation() == correlation {
				found := n
				return &found
			}
			continue
		}

		if n.CorrelatingID() == "" && common.SameDay(common.FromEpochMillis(n.CreatedAt), now) {
			found := n
			return &found
		}
	}

	return nil
}
