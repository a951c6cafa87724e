package dispatch

import (
	"context"
	"encoding/json"

	"github.com/hoteldesk/notification-engine/broadcast"
	"github.com/hoteldesk/notification-engine/common"
	"github.com/hoteldesk/notification-engine/model"
	"github.com/pkg/errors"
)

// DefaultEmailRoutingKey is the routing key used for email requests.
const DefaultEmailRoutingKey = "email.requests"

// emailTemplate is the name of the template the mailer renders notifications with.
const emailTemplate = "hotel_notification"

// EmailRequest is the message published for the mailer.
type EmailRequest struct {
	ToAddress      string                 `json:"to"`
	Subject        string                 `json:"subject"`
	TemplateName   string                 `json:"template"`
	TemplateValues map[string]interface{} `json:"values"`
}

// AMQPEmailSender publishes email requests to the AMQP exchange.
type AMQPEmailSender struct {
	publisher  broadcast.Publisher
	routingKey string
	to         string
}

// NewAMQPEmailSender returns an email sender that addresses every request to the staff
// address to.
func NewAMQPEmailSender(publisher broadcast.Publisher, routingKey, to string) (*AMQPEmailSender, error) {
	if err := common.ValidateEmailAddress(to); err != nil {
		return nil, errors.Wrapf(err, "invalid notification email address: %s", to)
	}
	if routingKey == "" {
		routingKey = DefaultEmailRoutingKey
	}
	return &AMQPEmailSender{publisher: publisher, routingKey: routingKey, to: to}, nil
}

// newEmailRequest builds the email request for a notification.
func newEmailRequest(to string, n *model.Notification) *EmailRequest {
	values := map[string]interface{}{
		"id":       n.ID,
		"kind":     n.Kind,
		"priority": n.Priority,
		"message":  n.Message,
	}
	if n.ActionURL != "" {
		values["actionUrl"] = n.ActionURL
	}
	for k, v := range n.Metadata {
		values[k] = v
	}

	return &EmailRequest{
		ToAddress:      to,
		Subject:        n.Title,
		TemplateName:   emailTemplate,
		TemplateValues: values,
	}
}

// Send publishes an email request for the notification.
func (s *AMQPEmailSender) Send(_ context.Context, n model.Notification) error {
	wrapMsg := "unable to send the email request"

	body, err := json.Marshal(newEmailRequest(s.to, &n))
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	if err := s.publisher.Publish(s.routingKey, body); err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	return nil
}
