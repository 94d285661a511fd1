// Package chat holds the chat message passed between the Twitch client,
// the dispatch queue and the agent forwarder.
package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var ErrInvalidMessage = errors.New("invalid chat message")

var validate = validator.New()

// Message is an immutable chat line from a single viewer.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username" validate:"required"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage builds a Message stamped with at. The username must not be empty.
func NewMessage(username, body string, at time.Time) (Message, error) {
	m := Message{
		ID:        uuid.New(),
		Username:  username,
		Message:   body,
		Timestamp: at,
	}
	if err := validate.Struct(m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return m, nil
}

// WithBody returns a copy of m carrying a different body.
func (m Message) WithBody(body string) Message {
	m.Message = body
	return m
}

func (m Message) String() string {
	return m.Username + ": " + m.Message
}
