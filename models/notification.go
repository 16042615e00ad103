package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type NotificationType string

const (
	NotifConnectionRequest  NotificationType = "connection_request"
	NotifConnectionAccepted NotificationType = "connection_accepted"
	NotifTeamInvite         NotificationType = "team_invite"
	NotifMessage            NotificationType = "message"
	NotifTaskAssigned       NotificationType = "task_assigned"
	NotifTeamJoinRequest    NotificationType = "team_join_request"
	NotifTeamJoinAccepted   NotificationType = "team_join_accepted"
	NotifTeamJoinDeclined   NotificationType = "team_join_declined"
)

// Payload is the typed data carried by a notification. The set of
// implementations is closed: one per NotificationType.
type Payload interface {
	Type() NotificationType
}

type ConnectionRequestPayload struct{}

type ConnectionAcceptedPayload struct{}

// TeamRef identifies the team a notification is about
type TeamRef struct {
	TeamID   uint   `json:"teamId"`
	TeamName string `json:"teamName"`
}

type TeamInvitePayload struct{ TeamRef }

type TeamJoinRequestPayload struct{ TeamRef }

type TeamJoinAcceptedPayload struct{ TeamRef }

type TeamJoinDeclinedPayload struct{ TeamRef }

type MessagePayload struct {
	ChatID uint `json:"chatId"`
}

type TaskAssignedPayload struct {
	TeamID    uint   `json:"teamId"`
	TaskTitle string `json:"taskTitle"`
}

func (ConnectionRequestPayload) Type() NotificationType  { return NotifConnectionRequest }
func (ConnectionAcceptedPayload) Type() NotificationType { return NotifConnectionAccepted }
func (TeamInvitePayload) Type() NotificationType         { return NotifTeamInvite }
func (TeamJoinRequestPayload) Type() NotificationType    { return NotifTeamJoinRequest }
func (TeamJoinAcceptedPayload) Type() NotificationType   { return NotifTeamJoinAccepted }
func (TeamJoinDeclinedPayload) Type() NotificationType   { return NotifTeamJoinDeclined }
func (MessagePayload) Type() NotificationType            { return NotifMessage }
func (TaskAssignedPayload) Type() NotificationType       { return NotifTaskAssigned }

// Notification is a typed message addressed to one recipient. Only the
// recipient resolves it; IsAccepted stays nil until a terminal accept/reject.
type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RecipientID uint             `gorm:"not null;index" json:"recipient_id"`
	SenderID    uint             `gorm:"not null;index" json:"sender_id"`
	Type        NotificationType `gorm:"not null;index" json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Data        string           `gorm:"type:text" json:"-"`
	IsRead      bool             `gorm:"default:false;index" json:"is_read"`
	IsAccepted  *bool            `json:"is_accepted"`

	// PendingKey is set while a connection or join request is unresolved; the
	// unique index rejects a second pending request for the same pair.
	PendingKey *string `gorm:"uniqueIndex" json:"-"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PendingConnectionKey is the uniqueness key of an unresolved connection request.
func PendingConnectionKey(senderID, recipientID uint) string {
	return fmt.Sprintf("%s:%d:%d", NotifConnectionRequest, senderID, recipientID)
}

// PendingJoinKey is the uniqueness key of an unresolved request by userID to
// join teamID.
func PendingJoinKey(teamID, userID uint) string {
	return fmt.Sprintf("%s%d", PendingJoinKeyPrefix(teamID), userID)
}

// PendingJoinKeyPrefix is shared by every pending join request for teamID
func PendingJoinKeyPrefix(teamID uint) string {
	return fmt.Sprintf("%s:%d:", NotifTeamJoinRequest, teamID)
}

// SetPayload stores p and sets the notification type accordingly
func (n *Notification) SetPayload(p Payload) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", p.Type(), err)
	}
	n.Type = p.Type()
	n.Data = string(raw)
	return nil
}

// Payload decodes the stored data into the variant matching n.Type
func (n *Notification) Payload() (Payload, error) {
	switch n.Type {
	case NotifConnectionRequest:
		return decodePayload[ConnectionRequestPayload](n.Data)
	case NotifConnectionAccepted:
		return decodePayload[ConnectionAcceptedPayload](n.Data)
	case NotifTeamInvite:
		return decodePayload[TeamInvitePayload](n.Data)
	case NotifTeamJoinRequest:
		return decodePayload[TeamJoinRequestPayload](n.Data)
	case NotifTeamJoinAccepted:
		return decodePayload[TeamJoinAcceptedPayload](n.Data)
	case NotifTeamJoinDeclined:
		return decodePayload[TeamJoinDeclinedPayload](n.Data)
	case NotifMessage:
		return decodePayload[MessagePayload](n.Data)
	case NotifTaskAssigned:
		return decodePayload[TaskAssignedPayload](n.Data)
	}
	return nil, fmt.Errorf("unknown notification type %q", n.Type)
}

func decodePayload[T Payload](data string) (Payload, error) {
	var p T
	if data == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", p.Type(), err)
	}
	return p, nil
}

// MarshalJSON renders the payload inline as "data".
func (n Notification) MarshalJSON() ([]byte, error) {
	type alias Notification
	data := json.RawMessage(n.Data)
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	return json.Marshal(struct {
		alias
		Data json.RawMessage `json:"data"`
	}{alias(n), data})
}
