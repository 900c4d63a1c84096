package model

import "time"

// PushToken is a device token registered by a user for fallback push
// delivery when no realtime channel is connected.
type PushToken struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	Token     string    `db:"token" json:"token"`
	Platform  string    `db:"platform" json:"platform"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type UpsertPushTokenParams struct {
	UserID   string
	Token    string
	Platform string
}
