package handlerset

import (
	"context"

	"github.com/hoteldesk/notification-engine/common"
	"github.com/hoteldesk/notification-engine/handlers"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

var log = common.Log.WithField("context", "handlerset")

// Acknowledger settles a delivery. amqp.Delivery satisfies it.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
	Reject(requeue bool) error
}

// HandlerSet represents a set of AMQP message handlers consuming from a queue that is exclusive
// to this process, so that every session receives every message.
type HandlerSet struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	queue      string
	handlerFor map[string]handlers.MessageHandler
}

// New creates a new handler set, declaring the exchange and binding an exclusive queue to it
// for each routing key in handlerFor.
func New(amqpSettings *common.AMQPSettings, handlerFor map[string]handlers.MessageHandler) (*HandlerSet, error) {
	wrapMsg := "unable to create the message handler set"

	// Connect to the broker.
	conn, err := amqp.Dial(amqpSettings.URI)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Declare the exchange.
	err = channel.ExchangeDeclare(amqpSettings.ExchangeName, amqpSettings.ExchangeType, true, false, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Declare a server-named queue that goes away when we disconnect.
	queue, err := channel.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Bind the queue for each routing key we handle.
	for key := range handlerFor {
		if err := channel.QueueBind(queue.Name, key, amqpSettings.ExchangeName, false, nil); err != nil {
			conn.Close()
			return nil, errors.Wrap(err, wrapMsg)
		}
	}

	// Build and return the handler set.
	handlerSet := HandlerSet{
		conn:       conn,
		channel:    channel,
		queue:      queue.Name,
		handlerFor: handlerFor,
	}
	return &handlerSet, nil
}

// Listen consumes deliveries until the context is cancelled or the delivery channel closes.
func (hs *HandlerSet) Listen(ctx context.Context) error {
	deliveries, err := hs.channel.Consume(hs.queue, "", false, true, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "unable to start consuming messages")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("the delivery channel was closed")
			}
			Dispatch(hs.handlerFor, delivery.RoutingKey, delivery, &delivery)
		}
	}
}

// Dispatch passes a delivery to the handler registered for its routing key and settles it:
// successful deliveries are acknowledged, recoverable failures are requeued and everything
// else is discarded.
func Dispatch(handlerFor map[string]handlers.MessageHandler, routingKey string, delivery amqp.Delivery, ack Acknowledger) {
	logger := log.WithField("routing-key", routingKey)

	handler, ok := handlerFor[routingKey]
	if !ok {
		logger.Warn("no handler for routing key; discarding message")
		settle(logger, ack.Reject(false))
		return
	}

	err := handler.HandleMessage(routingKey, delivery)
	switch {
	case err == nil:
		settle(logger, ack.Ack(false))
	case handlers.IsRecoverable(err):
		logger.WithError(err).Warn("recoverable error; requeueing message")
		settle(logger, ack.Nack(false, true))
	default:
		logger.WithError(err).Error("unrecoverable error; discarding message")
		settle(logger, ack.Reject(false))
	}
}

func settle(logger *logrus.Entry, err error) {
	if err != nil {
		logger.Error(errors.Wrap(err, "unable to settle the delivery"))
	}
}

// Close closes a message handler set.
func (hs *HandlerSet) Close() {
	if err := hs.channel.Close(); err != nil {
		log.WithError(err).Warn("unable to close the AMQP channel")
	}
	if err := hs.conn.Close(); err != nil {
		log.WithError(err).Warn("unable to close the AMQP connection")
	}
}
