// Package models defines server-side data models persisted in the database.
package models

import "time"

// Conversation is a two-party messaging context. A pair of participants
// owns at most one conversation regardless of who created it; the
// storage layer enforces uniqueness on the unordered pair.
type Conversation struct {
	ID        int64
	User1ID   int64
	User2ID   int64
	CreatedAt time.Time
}

// HasMember reports whether userID participates in the conversation.
func (c *Conversation) HasMember(userID int64) bool {
	return c.User1ID == userID || c.User2ID == userID
}
