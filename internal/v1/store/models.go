// Package store is the relational adapter backing the Control Session's
// persistence and authorization lookups: users, friendships, groups, and
// message history.
package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account is the persisted user record. PasswordHash is never serialized
// to clients.
type Account struct {
	ID           uuid.UUID `gorm:"type:text;primaryKey"`
	Avatar       string
	Name         string
	Username     string `gorm:"uniqueIndex"`
	Email        string `gorm:"uniqueIndex"`
	PasswordHash string `json:"-"`
	CreatedAt    time.Time
}

// TableName pins the table name independent of struct renames.
func (Account) TableName() string { return "users" }

// Group is a named collection of users with a subset promoted to admin.
type Group struct {
	ID          uuid.UUID `gorm:"type:text;primaryKey"`
	Name        string
	Description string
	CreatedBy   uuid.UUID `gorm:"type:text"`
	CreatedAt   time.Time
	Members     []GroupMember `gorm:"foreignKey:GroupID"`
	Admins      []GroupAdmin  `gorm:"foreignKey:GroupID"`
}

func (Group) TableName() string { return "groups" }

// GroupMember is the membership join row, replacing a Postgres UUID[]
// column with a table the SQLite driver can express cleanly.
type GroupMember struct {
	GroupID uuid.UUID `gorm:"type:text;primaryKey"`
	UserID  uuid.UUID `gorm:"type:text;primaryKey"`
}

func (GroupMember) TableName() string { return "group_members" }

// GroupAdmin is the admin-promotion join row.
type GroupAdmin struct {
	GroupID uuid.UUID `gorm:"type:text;primaryKey"`
	UserID  uuid.UUID `gorm:"type:text;primaryKey"`
}

func (GroupAdmin) TableName() string { return "group_admins" }

// MessageRecord is the persisted shape of a Direct or Group Message.
type MessageRecord struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	FromID    uuid.UUID `gorm:"type:text;index"`
	ToID      uuid.UUID `gorm:"type:text;index"`
	Data      string    // json-encoded payload
	Class     string    // lowercase tag: "direct" | "group"
	CreatedAt time.Time `gorm:"index"`
}

func (MessageRecord) TableName() string { return "messages" }

// VoiceChat is a persisted record of a voice room's existence, kept for
// the same historical-listing purpose as the chats table below.
type VoiceChat struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	CreatedBy uuid.UUID `gorm:"type:text"`
	CreatedAt time.Time
}

func (VoiceChat) TableName() string { return "voicechats" }

// Chat pairs two users into a direct-conversation record, used to list a
// user's conversation set without re-deriving it from message rows.
type Chat struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	UserAID   uuid.UUID `gorm:"type:text;index"`
	UserBID   uuid.UUID `gorm:"type:text;index"`
	CreatedAt time.Time
}

func (Chat) TableName() string { return "chats" }

// Friend is a symmetric friendship row, normalized so User1 < User2 by
// string comparison of the UUIDs. The check is enforced in application
// code (normalizePair, called by AddFriend) rather than a database CHECK constraint, since
// the SQLite driver does not reliably push those down.
type Friend struct {
	User1ID   uuid.UUID `gorm:"type:text;primaryKey"`
	User2ID   uuid.UUID `gorm:"type:text;primaryKey"`
	CreatedAt time.Time
}

func (Friend) TableName() string { return "friends" }

// FriendRequest is a directed pending-friendship row.
type FriendRequest struct {
	FromID    uuid.UUID `gorm:"type:text;primaryKey"`
	ToID      uuid.UUID `gorm:"type:text;primaryKey"`
	CreatedAt time.Time
}

func (FriendRequest) TableName() string { return "friend_requests" }

// AutoMigrate creates or updates every table this store needs.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Account{},
		&Group{},
		&GroupMember{},
		&GroupAdmin{},
		&MessageRecord{},
		&VoiceChat{},
		&Chat{},
		&Friend{},
		&FriendRequest{},
	)
}
