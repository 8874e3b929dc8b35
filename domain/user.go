// Package domain contains core concepts of the direct-messaging system.
// Users, dialogs and uploaded files are owned by the store; the core
// treats them as read-mostly entities.
package domain

import "time"

// User is an authenticated account. PK doubles as the name of the
// user's inbound pub/sub group: every live session of this user
// subscribes to the group named by PK.
type User struct {
	PK           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// GroupName returns the pub/sub group all sessions of this user join.
func (u User) GroupName() string {
	return u.PK
}
