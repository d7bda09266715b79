package models

import "time"

// MaxContentLength is the largest message body accepted, counted in code points.
const MaxContentLength = 2000

// Message represents a chat message.
type Message struct {
	ID                     int64     `db:"id" json:"id"`
	RoomID                 int64     `db:"room_id" json:"room_id"`
	SenderID               int64     `db:"sender_id" json:"sender_id"`
	Content                string    `db:"content" json:"content"`
	ReplyToID              *int64    `db:"reply_to_id" json:"reply_to_id,omitempty"`
	Edited                 bool      `db:"edited" json:"edited"`
	Pinned                 bool      `db:"is_pinned" json:"is_pinned"`
	LinkPreviewURL         *string   `db:"link_preview_url" json:"link_preview_url,omitempty"`
	LinkPreviewTitle       *string   `db:"link_preview_title" json:"link_preview_title,omitempty"`
	LinkPreviewDescription *string   `db:"link_preview_description" json:"link_preview_description,omitempty"`
	LinkPreviewImage       *string   `db:"link_preview_image" json:"link_preview_image,omitempty"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
}

// Reaction is a single emoji left by a user on a message.
type Reaction struct {
	ID        int64     `db:"id" json:"id"`
	MessageID int64     `db:"message_id" json:"message_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Emoji     string    `db:"emoji" json:"emoji"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ReadReceipt records that a user has seen a message.
type ReadReceipt struct {
	ID        int64     `db:"id" json:"id"`
	MessageID int64     `db:"message_id" json:"message_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ReadAt    time.Time `db:"read_at" json:"read_at"`
}

// LinkPreview holds the unfurled metadata of the first link in a message.
type LinkPreview struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// ReactionView is a reaction as shown to clients.
type ReactionView struct {
	Emoji    string `json:"emoji"`
	Username string `json:"username"`
}

// ReplySummary describes the message a reply points to.
type ReplySummary struct {
	ID             int64  `json:"id"`
	Content        string `json:"content"`
	SenderUsername string `json:"sender_username"`
}

// MessageView is the full message sent to clients.
type MessageView struct {
	ID                     int64          `json:"id"`
	RoomID                 int64          `json:"room_id"`
	Content                string         `json:"content"`
	SenderUsername         string         `json:"sender_username"`
	SenderProfilePicture   string         `json:"sender_profile_picture,omitempty"`
	Reactions              []ReactionView `json:"reactions"`
	RepliedTo              *ReplySummary  `json:"replied_to,omitempty"`
	Edited                 bool           `json:"edited"`
	Pinned                 bool           `json:"is_pinned"`
	LinkPreviewURL         *string        `json:"link_preview_url,omitempty"`
	LinkPreviewTitle       *string        `json:"link_preview_title,omitempty"`
	LinkPreviewDescription *string        `json:"link_preview_description,omitempty"`
	LinkPreviewImage       *string        `json:"link_preview_image,omitempty"`
	SeenBy                 []string       `json:"seen_by"`
	Timestamp              time.Time      `json:"timestamp"`
}
