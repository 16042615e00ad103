// Package services holds the domain workflows: the connection graph, chats,
// notifications, team membership, user profiles and subscriptions. Every
// invariant is enforced by the store (unique keys, conditional updates and
// transactions); nothing here takes an in-process lock.
package services

import (
	"context"
	"errors"

	"foundermatch/apperr"
	"foundermatch/models"
	"foundermatch/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// EmailQueue accepts best-effort outbound email. Enqueue must not block.
type EmailQueue interface {
	Enqueue(email utils.OutboundEmail) bool
}

// Services bundles every domain service around one store handle
type Services struct {
	Users         *UserService
	Connections   *ConnectionService
	Chats         *ChatService
	Notifications *NotificationService
	Teams         *TeamService
	Payments      *PaymentService
}

// New wires the services. emails and gateway may be nil.
func New(db *gorm.DB, emails EmailQueue, gateway PaymentGateway) *Services {
	notify := &notifier{db: db, emails: emails, log: logrus.WithField("component", "notifier")}
	return &Services{
		Users:         NewUserService(db),
		Connections:   NewConnectionService(db),
		Chats:         NewChatService(db, notify),
		Notifications: NewNotificationService(db, notify),
		Teams:         NewTeamService(db, notify),
		Payments:      NewPaymentService(db, gateway),
	}
}

// notifier sends the email copy of committed notifications. Failures are
// logged and never reach the caller.
type notifier struct {
	db     *gorm.DB
	emails EmailQueue
	log    *logrus.Entry
}

func (n *notifier) deliver(ctx context.Context, notifications ...*models.Notification) {
	if n == nil || n.emails == nil {
		return
	}
	for _, notification := range notifications {
		if notification == nil {
			continue
		}
		var recipient models.User
		if err := n.db.WithContext(ctx).Select("id", "email", "name").First(&recipient, notification.RecipientID).Error; err != nil {
			utils.LogError("notification_email_lookup", err, map[string]interface{}{
				"notification_id": notification.ID,
				"recipient_id":    notification.RecipientID,
			})
			continue
		}
		email, err := utils.RenderNotificationEmail(recipient.Email, recipient.Name, notification.Title, notification.Message)
		if err != nil {
			utils.LogError("notification_email_render", err, map[string]interface{}{
				"notification_id": notification.ID,
			})
			continue
		}
		if !n.emails.Enqueue(email) {
			n.log.WithField("notification_id", notification.ID).Warn("Email queue full, dropping notification email")
		}
	}
}

func upstream(message string, err error) error {
	return apperr.Upstream(message, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// dedupeIDs returns ids without zeros or repeats, keeping first occurrence order
func dedupeIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func loadUser(tx *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	if err := tx.First(&user, id).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, upstream("load user", err)
	}
	return &user, nil
}

// requireUsers fails with NotFound unless every id resolves to a user
func requireUsers(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	var count int64
	if err := tx.Model(&models.User{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return upstream("count users", err)
	}
	if count != int64(len(ids)) {
		return apperr.NotFound("User not found")
	}
	return nil
}

func publicProfiles(tx *gorm.DB, ids []uint) (map[uint]models.PublicProfile, error) {
	profiles := make(map[uint]models.PublicProfile, len(ids))
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return profiles, nil
	}
	var users []models.User
	if err := tx.Select("id", "name", "avatar_url").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, upstream("load profiles", err)
	}
	for i := range users {
		profiles[users[i].ID] = users[i].Public()
	}
	return profiles, nil
}
