package services

import (
	"context"
	"errors"
	"fmt"

	"foundermatch/apperr"
	"foundermatch/models"
	"foundermatch/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Notification list limits
const (
	DefaultNotificationLimit = 50
	MaxNotificationLimit     = 200
)

// Action is a recipient-side operation on a notification
type Action string

const (
	ActionMarkRead         Action = "mark_read"
	ActionAcceptConnection Action = "accept_connection"
	ActionRejectConnection Action = "reject_connection"
	ActionApproveJoin      Action = "approve_join"
	ActionDeclineJoin      Action = "decline_join"
)

// NewNotification describes a notification to create. Title and Message are
// rendered from the payload when empty.
type NewNotification struct {
	RecipientID uint
	SenderID    uint
	Payload     models.Payload
	Title       string
	Message     string
}

// ListOptions filters ListNotifications
type ListOptions struct {
	UnreadOnly bool
	Limit      int
}

// ActionResult is the resolved notification plus any follow-up it produced
type ActionResult struct {
	Notification *models.Notification `json:"notification"`
	FollowUp     *models.Notification `json:"follow_up,omitempty"`
}

type NotificationService struct {
	db     *gorm.DB
	notify *notifier
}

func NewNotificationService(db *gorm.DB, notify *notifier) *NotificationService {
	return &NotificationService{db: db, notify: notify}
}

// Create stores a notification and enqueues its email copy
func (s *NotificationService) Create(ctx context.Context, in NewNotification) (*models.Notification, error) {
	if in.Payload == nil {
		return nil, apperr.InvalidInput("Notification payload is required")
	}
	if in.Payload.Type() == models.NotifConnectionRequest {
		if in.SenderID == in.RecipientID {
			return nil, apperr.InvalidInput("Cannot send a connection request to yourself")
		}
	}

	var notification *models.Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.Payload.Type() == models.NotifConnectionRequest {
			connected, err := areConnected(tx, in.SenderID, in.RecipientID)
			if err != nil {
				return err
			}
			if connected {
				return apperr.Conflict("Already connected")
			}
			if err := checkConnectionLimit(tx, in.SenderID); err != nil {
				return err
			}
		}
		var err error
		notification, err = createNotificationTx(tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notify.deliver(ctx, notification)
	return notification, nil
}

// RequestConnection sends a connection_request from sender to recipient
func (s *NotificationService) RequestConnection(ctx context.Context, senderID, recipientID uint) (*models.Notification, error) {
	return s.Create(ctx, NewNotification{
		RecipientID: recipientID,
		SenderID:    senderID,
		Payload:     models.ConnectionRequestPayload{},
	})
}

// List returns userID's notifications, newest first
func (s *NotificationService) List(ctx context.Context, userID uint, opts ListOptions) ([]models.Notification, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	if limit > MaxNotificationLimit {
		limit = MaxNotificationLimit
	}

	query := s.db.WithContext(ctx).Where("recipient_id = ?", userID)
	if opts.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var notifications []models.Notification
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&notifications).Error; err != nil {
		return nil, upstream("list notifications", err)
	}
	return notifications, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, upstream("count notifications", err)
	}
	return count, nil
}

// MarkAllRead marks every unread notification of userID read and returns
// how many changed
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, upstream("mark notifications read", res.Error)
	}
	return res.RowsAffected, nil
}

// ApplyAction performs action on notification id on behalf of actorID.
// Only the recipient may act; accept/reject and approve/decline are
// terminal and resolve at most once.
func (s *NotificationService) ApplyAction(ctx context.Context, id, actorID uint, action Action) (*ActionResult, error) {
	db := s.db.WithContext(ctx)

	var notification models.Notification
	if err := db.First(&notification, id).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Notification not found")
		}
		return nil, upstream("load notification", err)
	}
	if notification.RecipientID != actorID {
		return nil, apperr.Forbidden("Only the recipient can act on this notification")
	}

	result := &ActionResult{}
	var err error
	switch action {
	case ActionMarkRead:
		err = db.Model(&models.Notification{}).
			Where("id = ? AND is_read = ?", notification.ID, false).
			Update("is_read", true).Error
		if err != nil {
			err = upstream("mark notification read", err)
		}

	case ActionAcceptConnection, ActionRejectConnection:
		if notification.Type != models.NotifConnectionRequest {
			return nil, apperr.InvalidInput(fmt.Sprintf("%s is only valid on connection requests", action))
		}
		accepted := action == ActionAcceptConnection
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := resolveTx(tx, notification.ID, accepted); err != nil {
				return err
			}
			if !accepted {
				return nil
			}
			connected, err := areConnected(tx, notification.RecipientID, notification.SenderID)
			if err != nil {
				return err
			}
			if !connected {
				for _, id := range []uint{notification.RecipientID, notification.SenderID} {
					if err := checkConnectionLimit(tx, id); err != nil {
						return err
					}
				}
			}
			if err := connectTx(tx, notification.RecipientID, notification.SenderID); err != nil {
				return err
			}
			followUp, err := createNotificationTx(tx, NewNotification{
				RecipientID: notification.SenderID,
				SenderID:    notification.RecipientID,
				Payload:     models.ConnectionAcceptedPayload{},
			})
			result.FollowUp = followUp
			return err
		})

	case ActionApproveJoin, ActionDeclineJoin:
		if notification.Type != models.NotifTeamJoinRequest {
			return nil, apperr.InvalidInput(fmt.Sprintf("%s is only valid on team join requests", action))
		}
		payload, perr := notification.Payload()
		if perr != nil {
			return nil, upstream("decode notification payload", perr)
		}
		request, ok := payload.(models.TeamJoinRequestPayload)
		if !ok {
			return nil, upstream("decode notification payload", errors.New("unexpected payload variant"))
		}
		approve := action == ActionApproveJoin
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := resolveTx(tx, notification.ID, approve); err != nil {
				return err
			}
			var followUp *models.Notification
			var err error
			if approve {
				followUp, err = approveJoinTx(tx, request.TeamID, actorID, notification.SenderID)
			} else {
				followUp, err = declineJoinTx(tx, request.TeamID, actorID, notification.SenderID)
			}
			result.FollowUp = followUp
			return err
		})

	default:
		return nil, apperr.InvalidInput(fmt.Sprintf("unknown action %q", action))
	}
	if err != nil {
		return nil, err
	}

	var fresh models.Notification
	if err := db.First(&fresh, notification.ID).Error; err != nil {
		return nil, upstream("reload notification", err)
	}
	result.Notification = &fresh

	if result.FollowUp != nil {
		utils.LogEvent("notification_resolved", map[string]interface{}{
			"notification_id": notification.ID,
			"action":          string(action),
			"follow_up_id":    result.FollowUp.ID,
		})
		s.notify.deliver(ctx, result.FollowUp)
	}
	return result, nil
}

// resolveTx moves an unresolved notification to its terminal state and frees
// its pending key. A notification that is already resolved is a Conflict.
func resolveTx(tx *gorm.DB, id uint, accepted bool) error {
	res := tx.Model(&models.Notification{}).
		Where("id = ? AND is_accepted IS NULL", id).
		Updates(map[string]interface{}{
			"is_accepted": accepted,
			"is_read":     true,
			"pending_key": nil,
		})
	if res.Error != nil {
		return upstream("resolve notification", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("Notification already resolved")
	}
	return nil
}

func createNotificationTx(tx *gorm.DB, in NewNotification) (*models.Notification, error) {
	if in.Payload == nil {
		return nil, apperr.InvalidInput("Notification payload is required")
	}
	if in.RecipientID == 0 {
		return nil, apperr.InvalidInput("Notification recipient is required")
	}
	if _, err := loadUser(tx, in.RecipientID); err != nil {
		return nil, err
	}

	senderName := "Someone"
	if in.SenderID != 0 {
		sender, err := loadUser(tx, in.SenderID)
		if err != nil {
			return nil, err
		}
		if sender.Name != "" {
			senderName = sender.Name
		}
	}

	notification := &models.Notification{
		RecipientID: in.RecipientID,
		SenderID:    in.SenderID,
		Title:       in.Title,
		Message:     in.Message,
	}
	if err := notification.SetPayload(in.Payload); err != nil {
		return nil, upstream("encode notification payload", err)
	}
	title, message := renderNotification(in.Payload, senderName)
	if notification.Title == "" {
		notification.Title = title
	}
	if notification.Message == "" {
		notification.Message = message
	}

	var duplicate string
	switch v := in.Payload.(type) {
	case models.ConnectionRequestPayload:
		notification.PendingKey = utils.Pointer(models.PendingConnectionKey(in.SenderID, in.RecipientID))
		duplicate = "A connection request is already pending"
	case models.TeamJoinRequestPayload:
		notification.PendingKey = utils.Pointer(models.PendingJoinKey(v.TeamID, in.SenderID))
		duplicate = "A join request is already pending"
	default:
		if err := tx.Create(notification).Error; err != nil {
			return nil, upstream("create notification", err)
		}
		return notification, nil
	}

	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(notification)
	if res.Error != nil {
		return nil, upstream("create notification", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Conflict(duplicate)
	}
	return notification, nil
}

func renderNotification(p models.Payload, senderName string) (title, message string) {
	switch v := p.(type) {
	case models.ConnectionRequestPayload:
		return "New connection request", fmt.Sprintf("%s wants to connect with you", senderName)
	case models.ConnectionAcceptedPayload:
		return "Connection accepted", fmt.Sprintf("%s accepted your connection request", senderName)
	case models.TeamInvitePayload:
		return "Team invitation", fmt.Sprintf("%s invited you to join %s", senderName, v.TeamName)
	case models.TeamJoinRequestPayload:
		return "Join request", fmt.Sprintf("%s wants to join %s", senderName, v.TeamName)
	case models.TeamJoinAcceptedPayload:
		return "Join request accepted", fmt.Sprintf("You are now a member of %s", v.TeamName)
	case models.TeamJoinDeclinedPayload:
		return "Join request declined", fmt.Sprintf("Your request to join %s was declined", v.TeamName)
	case models.MessagePayload:
		return "New message", fmt.Sprintf("%s sent you a message", senderName)
	case models.TaskAssignedPayload:
		return "Task assigned", fmt.Sprintf("%s assigned you %q", senderName, v.TaskTitle)
	}
	return "Notification", ""
}
