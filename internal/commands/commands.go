// Package commands decodes inbound chat actions from the command queue and routes them to the
// message engine.
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Action string

const (
	ActionNewMessage     Action = "new_message"
	ActionEditMessage    Action = "edit_message"
	ActionDeleteMessage  Action = "delete_message"
	ActionTogglePin      Action = "toggle_pin"
	ActionToggleReaction Action = "toggle_reaction"
	ActionMessagesSeen   Action = "messages_seen"
)

var ErrUnknownAction = errors.New("unknown command action")

// ActionFromRoutingKey returns the routing key segment after the last dot.
func ActionFromRoutingKey(routingKey string) Action {
	if i := strings.LastIndexByte(routingKey, '.'); i >= 0 {
		return Action(routingKey[i+1:])
	}
	return Action(routingKey)
}

// Command is one of the concrete command structs below.
type Command interface {
	Action() Action
	token() string
}

// Actor carries the caller's bearer token, resolved to a user before dispatch.
type Actor struct {
	Token string
}

func (a Actor) token() string { return a.Token }

type NewMessage struct {
	Actor
	RoomID    int64
	Content   *string
	ReplyToID *int64
}

type EditMessage struct {
	Actor
	MessageID int64
	Content   string
}

type DeleteMessage struct {
	Actor
	MessageID int64
}

type TogglePin struct {
	Actor
	MessageID int64
}

type ToggleReaction struct {
	Actor
	MessageID int64
	Emoji     string
}

type MarkSeen struct {
	Actor
	RoomID        int64
	LastMessageID int64
}

func (NewMessage) Action() Action     { return ActionNewMessage }
func (EditMessage) Action() Action    { return ActionEditMessage }
func (DeleteMessage) Action() Action  { return ActionDeleteMessage }
func (TogglePin) Action() Action      { return ActionTogglePin }
func (ToggleReaction) Action() Action { return ActionToggleReaction }
func (MarkSeen) Action() Action       { return ActionMessagesSeen }

// body is the wire shape shared by every action.
type body struct {
	UserToken     string  `json:"user_token"`
	RoomID        int64   `json:"room_id"`
	MessageID     int64   `json:"message_id"`
	Content       *string `json:"content"`
	RepliedToID   *int64  `json:"replied_to_id"`
	Emoji         string  `json:"emoji"`
	LastMessageID int64   `json:"last_message_id"`
}

// Decode builds the command named by the routing key from a JSON body.
func Decode(routingKey string, payload []byte) (Command, error) {
	action := ActionFromRoutingKey(routingKey)
	switch action {
	case ActionNewMessage, ActionEditMessage, ActionDeleteMessage, ActionTogglePin, ActionToggleReaction, ActionMessagesSeen:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	var b body
	if err := json.Unmarshal(payload, &b); err != nil {
		return nil, fmt.Errorf("decode %s: %w", action, err)
	}
	actor := Actor{Token: b.UserToken}

	switch action {
	case ActionNewMessage:
		return NewMessage{Actor: actor, RoomID: b.RoomID, Content: b.Content, ReplyToID: b.RepliedToID}, nil
	case ActionEditMessage:
		var content string
		if b.Content != nil {
			content = *b.Content
		}
		return EditMessage{Actor: actor, MessageID: b.MessageID, Content: content}, nil
	case ActionDeleteMessage:
		return DeleteMessage{Actor: actor, MessageID: b.MessageID}, nil
	case ActionTogglePin:
		return TogglePin{Actor: actor, MessageID: b.MessageID}, nil
	case ActionToggleReaction:
		return ToggleReaction{Actor: actor, MessageID: b.MessageID, Emoji: b.Emoji}, nil
	default:
		return MarkSeen{Actor: actor, RoomID: b.RoomID, LastMessageID: b.LastMessageID}, nil
	}
}
