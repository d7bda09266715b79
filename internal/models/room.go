package models

import "time"

// ChatRoom is either a group room with an owner or a private room between exactly two users.
type ChatRoom struct {
	ID         int64     `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	InviteCode string    `db:"invite_code" json:"invite_code"`
	OwnerID    *int64    `db:"owner_id" json:"owner_id,omitempty"`
	IsPrivate  bool      `db:"is_private" json:"is_private"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// IsOwner reports whether the user owns the room. Private rooms have no owner.
func (r ChatRoom) IsOwner(userID int64) bool {
	return r.OwnerID != nil && *r.OwnerID == userID
}

// RoomView is the full room sent to clients, participants resolved.
type RoomView struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	InviteCode   string        `json:"invite_code"`
	Owner        *UserSummary  `json:"owner,omitempty"`
	Participants []UserSummary `json:"participants"`
	CreatedAt    time.Time     `json:"created_at"`
	IsPrivate    bool          `json:"is_private"`
}

// HiddenRoom marks a private room as hidden from one participant's DM list.
type HiddenRoom struct {
	UserID    int64     `db:"user_id" json:"user_id"`
	RoomID    int64     `db:"room_id" json:"room_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DMKey is the canonical key of the unordered user pair owning a private room.
func DMKey(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}
