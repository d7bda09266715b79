package models

import "time"

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "PENDING"
	FriendshipAccepted FriendshipStatus = "ACCEPTED"
)

// Friendship is a directed request between two users. Only one row may exist per unordered pair.
type Friendship struct {
	ID          int64            `db:"id" json:"id"`
	RequesterID int64            `db:"requester_id" json:"requester_id"`
	AddresseeID int64            `db:"addressee_id" json:"addressee_id"`
	Status      FriendshipStatus `db:"status" json:"status"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// Other returns the participant of the friendship that is not userID.
func (f Friendship) Other(userID int64) int64 {
	if f.RequesterID == userID {
		return f.AddresseeID
	}
	return f.RequesterID
}

type RequestDirection string

const (
	DirectionIncoming RequestDirection = "INCOMING"
	DirectionOutgoing RequestDirection = "OUTGOING"
)

// PendingRequest is a pending friendship seen from one side.
type PendingRequest struct {
	User      UserSummary      `json:"user"`
	Direction RequestDirection `json:"direction"`
}
