package models

import (
	"fmt"
	"time"
)

type ChatType string

const (
	ChatDirect ChatType = "direct"
	ChatTeam   ChatType = "team"
)

func (t ChatType) Valid() bool {
	return t == ChatDirect || t == ChatTeam
}

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageFile, MessageSystem:
		return true
	}
	return false
}

// Chat is a direct or team conversation thread
type Chat struct {
	ID       uint     `gorm:"primaryKey" json:"id"`
	ChatType ChatType `gorm:"not null;index" json:"chat_type"`
	TeamID   *uint    `gorm:"index" json:"team_id,omitempty"`

	// ThreadKey is unique per direct participant pair or per team.
	ThreadKey string `gorm:"uniqueIndex;not null" json:"-"`

	LastMessageAt time.Time `gorm:"index" json:"last_message_at"`
	IsActive      bool      `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Relations
	Participants []ChatParticipant `gorm:"foreignKey:ChatID" json:"-"`
}

// ChatParticipant keeps the ordered participant set of a chat
type ChatParticipant struct {
	ChatID   uint      `gorm:"primaryKey;autoIncrement:false" json:"chat_id"`
	UserID   uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	Position int       `gorm:"not null;default:0" json:"position"`
	JoinedAt time.Time `json:"joined_at"`
}

// Message is one entry in a chat. IsRead only moves from false to true.
type Message struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	ChatID      uint        `gorm:"not null;index" json:"chat_id"`
	SenderID    uint        `gorm:"not null;index" json:"sender_id"`
	Content     string      `gorm:"type:text;not null" json:"content"`
	MessageType MessageType `gorm:"not null;default:'text'" json:"message_type"`
	IsRead      bool        `gorm:"default:false;index" json:"is_read"`
	Timestamp   time.Time   `gorm:"not null" json:"timestamp"`
}

// DirectThreadKey returns the thread key for the unordered pair {a, b}.
func DirectThreadKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("direct:%d:%d", a, b)
}

// TeamThreadKey returns the thread key of a team chat.
func TeamThreadKey(teamID uint) string {
	return fmt.Sprintf("team:%d", teamID)
}
