package services

import (
	"context"
	"strings"
	"time"

	"foundermatch/apperr"
	"foundermatch/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatRequest asks for the direct or team chat between the caller and
// ParticipantIDs
type ChatRequest struct {
	ParticipantIDs []uint          `json:"participant_ids"`
	ChatType       models.ChatType `json:"chat_type" validate:"required,oneof=direct team"`
	TeamID         *uint           `json:"team_id"`
}

// ChatFilter narrows ListChats
type ChatFilter struct {
	ChatType        models.ChatType
	IncludeInactive bool
}

// MessageView is a message joined with its sender's public profile
type MessageView struct {
	models.Message
	Sender models.PublicProfile `json:"sender"`
}

// ChatSummary is one entry of a user's chat list
type ChatSummary struct {
	models.Chat
	Participants []models.PublicProfile `json:"participants"`
	LastMessage  *MessageView           `json:"last_message,omitempty"`
	UnreadCount  int64                  `json:"unread_count"`
}

type ChatService struct {
	db     *gorm.DB
	notify *notifier
}

func NewChatService(db *gorm.DB, notify *notifier) *ChatService {
	return &ChatService{db: db, notify: notify}
}

// ResolveOrCreateChat returns the chat for the requested participant set,
// creating it on first use. Concurrent callers for the same set receive the
// same chat. created reports whether this call inserted it.
func (s *ChatService) ResolveOrCreateChat(ctx context.Context, callerID uint, req ChatRequest) (chat *models.Chat, created bool, err error) {
	db := s.db.WithContext(ctx)

	var (
		key          string
		participants []uint
	)
	switch req.ChatType {
	case models.ChatDirect:
		if req.TeamID != nil {
			return nil, false, apperr.InvalidInput("Direct chats cannot reference a team")
		}
		participants = dedupeIDs(append([]uint{callerID}, req.ParticipantIDs...))
		if len(participants) != 2 {
			return nil, false, apperr.InvalidInput("A direct chat needs exactly two participants")
		}
		if err := requireUsers(db, participants); err != nil {
			return nil, false, err
		}
		key = models.DirectThreadKey(participants[0], participants[1])

	case models.ChatTeam:
		if req.TeamID == nil {
			return nil, false, apperr.InvalidInput("Team chats require a team id")
		}
		team, err := loadTeam(db, *req.TeamID)
		if err != nil {
			return nil, false, err
		}
		if !team.OnRoster(callerID) {
			return nil, false, apperr.Forbidden("Only team members can open the team chat")
		}
		for _, id := range req.ParticipantIDs {
			if !team.OnRoster(id) {
				return nil, false, apperr.InvalidInput("Team chat participants must be on the team")
			}
		}
		participants = team.Roster()
		key = models.TeamThreadKey(team.ID)

	default:
		return nil, false, apperr.InvalidInput("chat_type must be direct or team")
	}

	existing, err := findChatByKey(db, key)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if missing := missingParticipants(existing, participants); len(missing) > 0 {
			if err := addParticipantsTx(db, existing.ID, missing); err != nil {
				return nil, false, err
			}
		}
		return existing, false, nil
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		fresh := models.Chat{
			ChatType:      req.ChatType,
			TeamID:        req.TeamID,
			ThreadKey:     key,
			LastMessageAt: time.Now(),
			IsActive:      true,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit(clause.Associations).Create(&fresh)
		if res.Error != nil {
			return upstream("create chat", res.Error)
		}
		if res.RowsAffected == 0 {
			// another caller won the insert
			return nil
		}
		created = true
		return addParticipantsTx(tx, fresh.ID, participants)
	})
	if err != nil {
		return nil, false, err
	}

	chat, err = findChatByKey(db, key)
	if err != nil {
		return nil, false, err
	}
	if chat == nil {
		return nil, false, upstream("resolve chat", gorm.ErrRecordNotFound)
	}
	return chat, created, nil
}

// PostMessage appends a message to chatID, bumps the chat's activity and
// notifies the other participants. A participant holding an unread message
// notification for the chat is not notified again.
func (s *ChatService) PostMessage(ctx context.Context, chatID, senderID uint, content string, messageType models.MessageType) (*MessageView, error) {
	db := s.db.WithContext(ctx)

	chat, err := loadChat(db, chatID)
	if err != nil {
		return nil, err
	}
	ok, err := isParticipant(db, chatID, senderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Forbidden("Not a participant of this chat")
	}
	if !chat.IsActive {
		return nil, apperr.Forbidden("This chat is no longer active")
	}

	if strings.TrimSpace(content) == "" {
		return nil, apperr.InvalidInput("Message content cannot be empty")
	}
	if messageType == "" {
		messageType = models.MessageText
	}
	if !messageType.Valid() {
		return nil, apperr.InvalidInput("Unknown message type: " + string(messageType))
	}

	message := models.Message{
		ChatID:      chatID,
		SenderID:    senderID,
		Content:     content,
		MessageType: messageType,
		Timestamp:   time.Now(),
	}
	var notifications []*models.Notification
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&message).Error; err != nil {
			return upstream("create message", err)
		}
		if err := tx.Model(&models.Chat{}).Where("id = ?", chatID).Update("last_message_at", message.Timestamp).Error; err != nil {
			return upstream("touch chat", err)
		}
		var err error
		notifications, err = notifyMessageTx(tx, chatID, senderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notify.deliver(ctx, notifications...)

	profiles, err := publicProfiles(db, []uint{senderID})
	if err != nil {
		return nil, err
	}
	return &MessageView{Message: message, Sender: profiles[senderID]}, nil
}

// ListMessages returns the chat history oldest first and marks the messages
// other participants sent as read by viewerID. Only messages in the returned
// snapshot are marked.
func (s *ChatService) ListMessages(ctx context.Context, chatID, viewerID uint) ([]MessageView, error) {
	db := s.db.WithContext(ctx)

	if _, err := loadChat(db, chatID); err != nil {
		return nil, err
	}
	ok, err := isParticipant(db, chatID, viewerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Forbidden("Not a participant of this chat")
	}

	var messages []models.Message
	if err := db.Where("chat_id = ?", chatID).Order("timestamp ASC, id ASC").Find(&messages).Error; err != nil {
		return nil, upstream("list messages", err)
	}

	var unread []uint
	senders := make([]uint, 0, len(messages))
	for _, m := range messages {
		senders = append(senders, m.SenderID)
		if !m.IsRead && m.SenderID != viewerID {
			unread = append(unread, m.ID)
		}
	}
	if len(unread) > 0 {
		err := db.Model(&models.Message{}).
			Where("id IN ? AND is_read = ?", unread, false).
			Update("is_read", true).Error
		if err != nil {
			return nil, upstream("mark messages read", err)
		}
		for i := range messages {
			if messages[i].SenderID != viewerID {
				messages[i].IsRead = true
			}
		}
	}
	data, err := messageData(chatID)
	if err != nil {
		return nil, err
	}
	err = db.Model(&models.Notification{}).
		Where("recipient_id = ? AND type = ? AND data = ? AND is_read = ?", viewerID, models.NotifMessage, data, false).
		Update("is_read", true).Error
	if err != nil {
		return nil, upstream("mark message notifications read", err)
	}

	profiles, err := publicProfiles(db, senders)
	if err != nil {
		return nil, err
	}
	views := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, MessageView{Message: m, Sender: profiles[m.SenderID]})
	}
	return views, nil
}

// ListChats returns the chats userID participates in, most recent activity
// first
func (s *ChatService) ListChats(ctx context.Context, userID uint, filter ChatFilter) ([]ChatSummary, error) {
	db := s.db.WithContext(ctx)

	query := db.Model(&models.Chat{}).
		Joins("JOIN chat_participants ON chat_participants.chat_id = chats.id").
		Where("chat_participants.user_id = ?", userID).
		Preload("Participants", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC")
		})
	if filter.ChatType != "" {
		query = query.Where("chats.chat_type = ?", filter.ChatType)
	}
	if !filter.IncludeInactive {
		query = query.Where("chats.is_active = ?", true)
	}

	var chats []models.Chat
	if err := query.Order("chats.last_message_at DESC, chats.id DESC").Find(&chats).Error; err != nil {
		return nil, upstream("list chats", err)
	}

	var userIDs []uint
	lastMessages := make(map[uint]*models.Message, len(chats))
	unreadCounts := make(map[uint]int64, len(chats))
	for _, chat := range chats {
		for _, p := range chat.Participants {
			userIDs = append(userIDs, p.UserID)
		}

		var last []models.Message
		if err := db.Where("chat_id = ?", chat.ID).Order("timestamp DESC, id DESC").Limit(1).Find(&last).Error; err != nil {
			return nil, upstream("load last message", err)
		}
		if len(last) == 1 {
			lastMessages[chat.ID] = &last[0]
			userIDs = append(userIDs, last[0].SenderID)
		}

		var unread int64
		err := db.Model(&models.Message{}).
			Where("chat_id = ? AND sender_id <> ? AND is_read = ?", chat.ID, userID, false).
			Count(&unread).Error
		if err != nil {
			return nil, upstream("count unread messages", err)
		}
		unreadCounts[chat.ID] = unread
	}

	profiles, err := publicProfiles(db, userIDs)
	if err != nil {
		return nil, err
	}

	summaries := make([]ChatSummary, 0, len(chats))
	for _, chat := range chats {
		summary := ChatSummary{Chat: chat, UnreadCount: unreadCounts[chat.ID]}
		for _, p := range chat.Participants {
			if profile, ok := profiles[p.UserID]; ok {
				summary.Participants = append(summary.Participants, profile)
			}
		}
		if last := lastMessages[chat.ID]; last != nil {
			summary.LastMessage = &MessageView{Message: *last, Sender: profiles[last.SenderID]}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// notifyMessageTx creates a message notification for every participant of
// chatID except senderID that has no unread one for the chat yet
func notifyMessageTx(tx *gorm.DB, chatID, senderID uint) ([]*models.Notification, error) {
	var recipients []uint
	err := tx.Model(&models.ChatParticipant{}).
		Where("chat_id = ? AND user_id <> ?", chatID, senderID).
		Order("position ASC").
		Pluck("user_id", &recipients).Error
	if err != nil {
		return nil, upstream("load participants", err)
	}
	data, err := messageData(chatID)
	if err != nil {
		return nil, err
	}

	var created []*models.Notification
	for _, recipientID := range recipients {
		var pending int64
		err := tx.Model(&models.Notification{}).
			Where("recipient_id = ? AND type = ? AND data = ? AND is_read = ?", recipientID, models.NotifMessage, data, false).
			Count(&pending).Error
		if err != nil {
			return nil, upstream("check message notification", err)
		}
		if pending > 0 {
			continue
		}
		notification, err := createNotificationTx(tx, NewNotification{
			RecipientID: recipientID,
			SenderID:    senderID,
			Payload:     models.MessagePayload{ChatID: chatID},
		})
		if err != nil {
			return nil, err
		}
		created = append(created, notification)
	}
	return created, nil
}

// messageData is the stored payload of a message notification for chatID
func messageData(chatID uint) (string, error) {
	var n models.Notification
	if err := n.SetPayload(models.MessagePayload{ChatID: chatID}); err != nil {
		return "", upstream("encode notification payload", err)
	}
	return n.Data, nil
}

func loadChat(tx *gorm.DB, chatID uint) (*models.Chat, error) {
	var chat models.Chat
	if err := tx.First(&chat, chatID).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Chat not found")
		}
		return nil, upstream("load chat", err)
	}
	return &chat, nil
}

// findChatByKey returns nil when no chat has key
func findChatByKey(tx *gorm.DB, key string) (*models.Chat, error) {
	var chat models.Chat
	err := tx.Preload("Participants", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("thread_key = ?", key).First(&chat).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, upstream("load chat", err)
	}
	return &chat, nil
}

func isParticipant(tx *gorm.DB, chatID, userID uint) (bool, error) {
	var count int64
	err := tx.Model(&models.ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	if err != nil {
		return false, upstream("check participant", err)
	}
	return count > 0, nil
}

func missingParticipants(chat *models.Chat, userIDs []uint) []uint {
	present := make(map[uint]bool, len(chat.Participants))
	for _, p := range chat.Participants {
		present[p.UserID] = true
	}
	var missing []uint
	for _, id := range userIDs {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

// addParticipantsTx appends any of userIDs not yet in the chat, after the
// current last position
func addParticipantsTx(tx *gorm.DB, chatID uint, userIDs []uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	var next int
	err := tx.Model(&models.ChatParticipant{}).
		Select("COALESCE(MAX(position) + 1, 0)").
		Where("chat_id = ?", chatID).
		Scan(&next).Error
	if err != nil {
		return upstream("load participants", err)
	}

	now := time.Now()
	rows := make([]models.ChatParticipant, 0, len(userIDs))
	for i, id := range userIDs {
		rows = append(rows, models.ChatParticipant{ChatID: chatID, UserID: id, Position: next + i, JoinedAt: now})
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return upstream("add participants", err)
	}
	return nil
}
