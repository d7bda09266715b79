package models

import "time"

type EventType string

const (
	EventChat                  EventType = "CHAT"
	EventEdit                  EventType = "EDIT"
	EventDelete                EventType = "DELETE"
	EventReactionUpdate        EventType = "REACTION_UPDATE"
	EventMessageUpdated        EventType = "MESSAGE_UPDATED"
	EventUserJoined            EventType = "USER_JOINED"
	EventFriendRequestReceived EventType = "FRIEND_REQUEST_RECEIVED"
	EventFriendRequestAccepted EventType = "FRIEND_REQUEST_ACCEPTED"
	EventFriendRemoved         EventType = "FRIEND_REMOVED"
	EventPinUpdate             EventType = "PIN_UPDATE"
	EventMessagesSeen          EventType = "MESSAGES_SEEN"
	EventDMChannelCreated      EventType = "DM_CHANNEL_CREATED"
	EventRoomUpdated           EventType = "ROOM_UPDATED"
	EventRoomDeleted           EventType = "ROOM_DELETED"
	EventUserKicked            EventType = "USER_KICKED"
)

// ChatEvent is the payload published to room and user topics. Consumers dispatch on Type.
type ChatEvent struct {
	Type                  EventType     `json:"type"`
	ID                    int64         `json:"id,omitempty"`
	RoomID                int64         `json:"room_id,omitempty"`
	Content               string        `json:"content,omitempty"`
	SenderUsername        string        `json:"sender_username,omitempty"`
	SenderProfilePicture  string        `json:"sender_profile_picture,omitempty"`
	RepliedTo             *ReplySummary `json:"replied_to,omitempty"`
	Timestamp             *time.Time    `json:"timestamp,omitempty"`
	Edited                bool          `json:"edited"`
	UpdatedMessage        *MessageView  `json:"updated_message,omitempty"`
	UserActionParticipant *UserSummary  `json:"user_action_participant,omitempty"`
	Room                  *RoomView     `json:"room,omitempty"`
	LastMessageID         int64         `json:"last_message_id,omitempty"`
}

// NotificationJob is queued for an offline recipient of a message.
type NotificationJob struct {
	RecipientUsername string `json:"recipient_username"`
	SenderUsername    string `json:"sender_username"`
	MessageContent    string `json:"message_content"`
	RoomID            int64  `json:"room_id"`
	PushToken         string `json:"fcm_token"`
}
