package handlers

import (
	"github.com/hoteldesk/notification-engine/model"
	"github.com/streadway/amqp"
)

// MessageHandler describes the interface used to handle AMQP messages.
type MessageHandler interface {
	HandleMessage(routingKey string, delivery amqp.Delivery) error
}

// InitMessageHandlers returns a map from routing key to message handler.
func InitMessageHandlers(broadcastRoutingKey string, receive func(model.BroadcastRecord)) map[string]MessageHandler {
	return map[string]MessageHandler{
		broadcastRoutingKey: NewBroadcast(receive),
	}
}
