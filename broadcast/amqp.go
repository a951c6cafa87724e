package broadcast

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/hoteldesk/notification-engine/common"
	"github.com/hoteldesk/notification-engine/handlers"
	"github.com/hoteldesk/notification-engine/handlerset"
	"github.com/hoteldesk/notification-engine/model"
	"github.com/pkg/errors"
)

// DefaultRoutingKey is the routing key used for broadcast records on the AMQP exchange.
const DefaultRoutingKey = "events.notification.broadcast"

// Publisher publishes a message body with a routing key. *messaging.Client satisfies it.
type Publisher interface {
	Publish(key string, body []byte) error
}

// AMQPChannel carries broadcast records over an AMQP exchange. Deliveries received by this
// session are buffered until they're fetched or fall out of the retention window.
type AMQPChannel struct {
	publisher  Publisher
	routingKey string
	now        func() time.Time
	retention  time.Duration

	mu     sync.Mutex
	buffer []model.BroadcastRecord

	closers []func()
}

// NewAMQPChannel returns a channel that publishes through publisher. Received records must be
// passed to Receive.
func NewAMQPChannel(publisher Publisher, routingKey string, now func() time.Time, retention time.Duration) *AMQPChannel {
	if routingKey == "" {
		routingKey = DefaultRoutingKey
	}
	if now == nil {
		now = time.Now
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &AMQPChannel{
		publisher:  publisher,
		routingKey: routingKey,
		now:        now,
		retention:  retention,
	}
}

// ConnectAMQP returns a channel that publishes through publisher and starts consuming
// broadcast records on a queue exclusive to this session. The publisher must already be set
// up for the exchange named in settings; the caller keeps ownership of it.
func ConnectAMQP(
	ctx context.Context,
	settings *common.AMQPSettings,
	publisher Publisher,
	routingKey string,
	retention time.Duration,
) (*AMQPChannel, error) {
	wrapMsg := "unable to connect the AMQP broadcast channel"

	channel := NewAMQPChannel(publisher, routingKey, nil, retention)

	// Set up the consumer.
	handlerFor := handlers.InitMessageHandlers(channel.routingKey, channel.Receive)
	hs, err := handlerset.New(settings, handlerFor)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	listenCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := hs.Listen(listenCtx); err != nil {
			log.WithError(err).Error("the broadcast consumer stopped")
		}
	}()

	channel.closers = []func(){
		func() {
			cancel()
			<-done
			hs.Close()
		},
	}

	return channel, nil
}

// Close stops consuming. The publisher is left open.
func (c *AMQPChannel) Close() {
	for _, closer := range c.closers {
		closer()
	}
	c.closers = nil
}

// Publish sends the record to the exchange.
func (c *AMQPChannel) Publish(_ context.Context, record model.BroadcastRecord) error {
	wrapMsg := "unable to publish the broadcast record"

	body, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	if err := c.publisher.Publish(c.routingKey, body); err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	return nil
}

// Receive buffers a record delivered by the broker.
func (c *AMQPChannel) Receive(record model.BroadcastRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffer = append(c.buffer, record)
}

// Fetch returns the buffered records newer than since, oldest first, after dropping records
// that have left the retention window.
func (c *AMQPChannel) Fetch(_ context.Context, since int64) ([]model.BroadcastRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	kept := c.buffer[:0]
	records := make([]model.BroadcastRecord, 0)
	for _, record := range c.buffer {
		if stale(record.CreatedAt, now, c.retention) {
			continue
		}
		kept = append(kept, record)
		if record.CreatedAt > since {
			records = append(records, record)
		}
	}
	c.buffer = kept

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt < records[j].CreatedAt
	})
	return records, nil
}
