// Package line holds the LINE Messaging API webhook envelope and a small
// client for the reply and profile endpoints.
package line

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	EventMessage  = "message"
	EventFollow   = "follow"
	EventUnfollow = "unfollow"
	EventPostback = "postback"

	MessageText = "text"

	SourceUser  = "user"
	SourceGroup = "group"
	SourceRoom  = "room"
)

var ErrInvalidPayload = errors.New("invalid webhook payload")

// Webhook is the request body LINE posts to the webhook URL.
type Webhook struct {
	Destination string  `json:"destination" validate:"required"`
	Events      []Event `json:"events" validate:"required,dive"`
}

type Event struct {
	Type            string           `json:"type" validate:"required"`
	Mode            string           `json:"mode,omitempty"`
	Timestamp       int64            `json:"timestamp" validate:"gt=0"`
	Source          *Source          `json:"source" validate:"required"`
	WebhookEventID  string           `json:"webhookEventId,omitempty"`
	DeliveryContext *DeliveryContext `json:"deliveryContext,omitempty"`
	ReplyToken      string           `json:"replyToken,omitempty"`
	Message         *Message         `json:"message,omitempty" validate:"required_if=Type message"`
}

type Source struct {
	Type    string `json:"type" validate:"required"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

type Message struct {
	ID   string `json:"id" validate:"required"`
	Type string `json:"type" validate:"required"`
	Text string `json:"text,omitempty"`
}

type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

// IsText reports whether e is a text message event.
func (e *Event) IsText() bool {
	return e.Type == EventMessage && e.Message != nil && e.Message.Type == MessageText
}

// UserID returns the sender's user id, empty when the source has none.
func (e *Event) UserID() string {
	if e.Source == nil {
		return ""
	}
	return e.Source.UserID
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parse decodes and validates a webhook body. Every failure wraps
// ErrInvalidPayload.
func Parse(body []byte) (*Webhook, error) {
	var w Webhook
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := validate.Struct(&w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &w, nil
}
