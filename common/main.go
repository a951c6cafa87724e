package common

import (
	"github.com/mcnijman/go-emailaddress"
	"github.com/sirupsen/logrus"
)

// Log is the base logger for the service.
var Log = logrus.WithFields(logrus.Fields{"service": "notification-engine"})

// AMQPSettings represents the settings that we require in order to connect to the AMQP exchange.
type AMQPSettings struct {
	URI          string
	ExchangeName string
	ExchangeType string
}

// ValidateEmailAddress returns an error if the format of an email address is invalid.
func ValidateEmailAddress(emailAddress string) error {
	_, err := emailaddress.Parse(emailAddress)
	return err
}
