package handlers

import (
	"encoding/json"

	"github.com/hoteldesk/notification-engine/model"
	"github.com/streadway/amqp"
)

// Broadcast is a message handler for broadcast records published by other sessions.
type Broadcast struct {
	receive func(model.BroadcastRecord)
}

// NewBroadcast returns a new broadcast record handler that passes each valid record to receive.
func NewBroadcast(receive func(model.BroadcastRecord)) *Broadcast {
	return &Broadcast{receive: receive}
}

// HandleMessage handles a single AMQP delivery. Malformed records are unrecoverable; retrying
// them can't succeed.
func (h *Broadcast) HandleMessage(routingKey string, delivery amqp.Delivery) error {

	// Parse the message body.
	var record model.BroadcastRecord
	err := json.Unmarshal(delivery.Body, &record)
	if err != nil {
		return NewUnrecoverableError("unable to parse broadcast record: %s", err.Error())
	}

	// Validate the record.
	if record.Notification.ID == "" {
		return NewUnrecoverableError("broadcast record on %s has no notification ID", routingKey)
	}
	if record.CreatedAt <= 0 {
		record.CreatedAt = record.Notification.CreatedAt
	}
	if record.CreatedAt <= 0 {
		return NewUnrecoverableError("broadcast record %s has no creation time", record.Notification.ID)
	}

	h.receive(record)
	return nil
}
