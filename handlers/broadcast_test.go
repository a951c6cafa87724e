package handlers

import (
	"encoding/json"
	"testing"

	"github.com/hoteldesk/notification-engine/model"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
)

// FakeRoutingKey is the routing key that will be used for all AMQP deliveries in this test.
const FakeRoutingKey = "events.notification.broadcast"

// recordCollector stores the records passed to the handler for later inspection.
type recordCollector struct {
	records []model.BroadcastRecord
}

func (c *recordCollector) receive(record model.BroadcastRecord) {
	c.records = append(c.records, record)
}

// getBroadcastRecord returns a map that can be used as the body of a broadcast delivery.
func getBroadcastRecord() map[string]interface{} {
	return map[string]interface{}{
		"createdAt": 1736067600000,
		"notification": map[string]interface{}{
			"id":        "1736067600000-1a2b3c4d",
			"kind":      "payment_overdue",
			"category":  "payments",
			"priority":  "urgent",
			"title":     "Payment overdue",
			"message":   "Booking BK-0042 has an outstanding balance of 300.00",
			"unread":    true,
			"bookingId": "B42",
			"createdAt": 1736067600000,
			"metadata": map[string]interface{}{
				"overdueDays": 4,
				"amount":      300,
			},
		},
	}
}

func newDelivery(t *testing.T, body interface{}) amqp.Delivery {
	requestBody, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("unable to marshal the broadcast record: %s", err.Error())
	}
	return amqp.Delivery{Body: requestBody, RoutingKey: FakeRoutingKey}
}

func TestBroadcast(t *testing.T) {
	assert := assert.New(t)

	collector := &recordCollector{}
	handler := NewBroadcast(collector.receive)

	err := handler.HandleMessage(FakeRoutingKey, newDelivery(t, getBroadcastRecord()))
	if err != nil {
		t.Fatalf("unexpected error returned by broadcast handler: %s", err.Error())
	}

	// Verify that the record was received and spot-check a couple of fields.
	if !assert.Len(collector.records, 1, "no record was received") {
		return
	}
	record := collector.records[0]
	assert.Equal(int64(1736067600000), record.CreatedAt)
	assert.Equal("1736067600000-1a2b3c4d", record.Notification.ID)
	assert.Equal(model.KindPaymentOverdue, record.Notification.Kind)
	assert.Equal("B42", record.Notification.CorrelatingID())
}

func TestBroadcastFallsBackToNotificationTime(t *testing.T) {
	assert := assert.New(t)

	body := getBroadcastRecord()
	delete(body, "createdAt")

	collector := &recordCollector{}
	err := NewBroadcast(collector.receive).HandleMessage(FakeRoutingKey, newDelivery(t, body))
	assert.NoError(err)
	if assert.Len(collector.records, 1) {
		assert.Equal(int64(1736067600000), collector.records[0].CreatedAt)
	}
}

func TestBroadcastMalformedBody(t *testing.T) {
	assert := assert.New(t)

	collector := &recordCollector{}
	handler := NewBroadcast(collector.receive)

	err := handler.HandleMessage(FakeRoutingKey, amqp.Delivery{Body: []byte("{not json"), RoutingKey: FakeRoutingKey})
	assert.Error(err)
	assert.IsType(UnrecoverableError{}, err)
	assert.Empty(collector.records)
}

func TestBroadcastMissingID(t *testing.T) {
	assert := assert.New(t)

	body := getBroadcastRecord()
	delete(body["notification"].(map[string]interface{}), "id")

	collector := &recordCollector{}
	err := NewBroadcast(collector.receive).HandleMessage(FakeRoutingKey, newDelivery(t, body))
	assert.IsType(UnrecoverableError{}, err)
	assert.Empty(collector.records)
}

func TestInitMessageHandlers(t *testing.T) {
	handlerFor := InitMessageHandlers(FakeRoutingKey, func(model.BroadcastRecord) {})
	_, ok := handlerFor[FakeRoutingKey]
	assert.True(t, ok, "no handler registered for the broadcast routing key")
}
