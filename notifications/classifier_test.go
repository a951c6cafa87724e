package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/hoteldesk/notification-engine/common"
	"github.com/hoteldesk/notification-engine/kvstore"
	"github.com/hoteldesk/notification-engine/model"
	"github.com/stretchr/testify/assert"
)

func TestFindEquivalentByCorrelatingID(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	clock := newTestClock()
	repo := NewRepository(kvstore.NewMemory(), clock.Now)
	classifier := NewClassifier(repo, clock.Now)

	existing := testNotification("n1", clock.t)
	existing.Kind = model.KindCheckinReminder
	existing.BookingID = "B1"
	assert.NoError(repo.Insert(ctx, existing))

	found := classifier.FindEquivalent(ctx, model.Candidate{Kind: model.KindCheckinReminder, BookingID: "B1"})
	if assert.NotNil(found) {
		assert.Equal("n1", found.ID)
	}

	// A different booking or a different kind is not equivalent.
	assert.Nil(classifier.FindEquivalent(ctx, model.Candidate{Kind: model.KindCheckinReminder, BookingID: "B2"}))
	assert.Nil(classifier.FindEquivalent(ctx, model.Candidate{Kind: model.KindCheckoutReminder, BookingID: "B1"}))
}

func TestFindEquivalentIgnoresExpired(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	clock := newTestClock()
	repo := NewRepository(kvstore.NewMemory(), clock.Now)
	classifier := NewClassifier(repo, clock.Now)

	expiresAt := common.EpochMillis(clock.t.Add(12 * time.Hour))
	existing := testNotification("n1", clock.t)
	existing.Kind = model.KindCheckinReminder
	existing.BookingID = "B1"
	existing.ExpiresAt = &expiresAt
	assert.NoError(repo.Insert(ctx, existing))

	candidate := model.Candidate{Kind: model.KindCheckinReminder, BookingID: "B1"}
	assert.NotNil(classifier.FindEquivalent(ctx, candidate))

	clock.t = clock.t.Add(13 * time.Hour)
	assert.Nil(classifier.FindEquivalent(ctx, candidate))
}

func TestFindEquivalentDayScoped(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	clock := newTestClock()
	repo := NewRepository(kvstore.NewMemory(), clock.Now)
	classifier := NewClassifier(repo, clock.Now)

	existing := testNotification("n1", clock.t)
	existing.Kind = model.KindLowOccupancy
	assert.NoError(repo.Insert(ctx, existing))

	candidate := model.Candidate{Kind: model.KindLowOccupancy}
	clock.t = clock.t.Add(10 * time.Hour)
	assert.NotNil(classifier.FindEquivalent(ctx, candidate), "same day should match")

	clock.t = clock.t.Add(24 * time.Hour)
	assert.Nil(classifier.FindEquivalent(ctx, candidate), "next day should not match")
}

func TestFindEquivalentWithoutCorrelatingID(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	repo := NewRepository(kvstore.NewMemory(), clock.Now)
	classifier := NewClassifier(repo, clock.Now)

	existing := testNotification("n1", clock.t)
	existing.Kind = model.KindSystemAlert
	assert.NoError(t, repo.Insert(ctx, existing))

	// Kinds that aren't day scoped are never deduplicated without a correlating ID.
	assert.Nil(t, classifier.FindEquivalent(ctx, model.Candidate{Kind: model.KindSystemAlert}))
}

func TestFindEquivalentComparesCorrelationField(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	clock := newTestClock()
	repo := NewRepository(kvstore.NewMemory(), clock.Now)
	classifier := NewClassifier(repo, clock.Now)

	existing := testNotification("n1", clock.t)
	existing.Kind = model.KindRoomMaintenance
	existing.RoomID = "X"
	assert.NoError(repo.Insert(ctx, existing))

	// The same value in a different ID field refers to a different entity.
	assert.Nil(classifier.FindEquivalent(ctx, model.Candidate{Kind: model.KindRoomMaintenance, BookingID: "X"}))
	assert.NotNil(classifier.FindEquivalent(ctx, model.Candidate{Kind: model.KindRoomMaintenance, RoomID: "X"}))
}
