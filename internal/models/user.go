package models

import "time"

// User is an account that can join rooms and exchange messages.
type User struct {
	ID             int64     `db:"id" json:"id"`
	PublicID       string    `db:"public_id" json:"public_id"`
	Username       string    `db:"username" json:"username"`
	ProfilePicture string    `db:"profile_picture" json:"profile_picture,omitempty"`
	PushToken      string    `db:"push_token" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// UserSummary is the public view of a user embedded in events and responses.
type UserSummary struct {
	ID             int64     `json:"id"`
	PublicID       string    `json:"public_id"`
	Username       string    `json:"username"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Summary strips private fields from the user.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:             u.ID,
		PublicID:       u.PublicID,
		Username:       u.Username,
		ProfilePicture: u.ProfilePicture,
		CreatedAt:      u.CreatedAt,
	}
}
