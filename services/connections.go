package services

import (
	"context"
	"time"

	"foundermatch/apperr"
	"foundermatch/models"
	"foundermatch/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConnectionService maintains the symmetric connection graph. Both directed
// edges of a pair are always written and removed in one transaction.
type ConnectionService struct {
	db *gorm.DB
}

func NewConnectionService(db *gorm.DB) *ConnectionService {
	return &ConnectionService{db: db}
}

// Connect inserts both edges of {a, b}. Connecting an existing pair is a no-op.
func (s *ConnectionService) Connect(ctx context.Context, a, b uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUsers(tx, dedupeIDs([]uint{a, b})); err != nil {
			return err
		}
		return connectTx(tx, a, b)
	})
}

// Disconnect removes both edges of {a, b}
func (s *ConnectionService) Disconnect(ctx context.Context, a, b uint) error {
	if a == b {
		return apperr.InvalidInput("Cannot disconnect from yourself")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("(user_id = ? AND connected_user_id = ?) OR (user_id = ? AND connected_user_id = ?)", a, b, b, a).
			Delete(&models.Connection{})
		if res.Error != nil {
			return upstream("delete connection", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("Connection not found")
		}
		return nil
	})
}

// AreConnected reports whether a and b are connected
func (s *ConnectionService) AreConnected(ctx context.Context, a, b uint) (bool, error) {
	return areConnected(s.db.WithContext(ctx), a, b)
}

// ListConnections returns the public profiles of userID's connections
func (s *ConnectionService) ListConnections(ctx context.Context, userID uint) ([]models.PublicProfile, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Select("users.id", "users.name", "users.avatar_url").
		Joins("JOIN connections ON connections.connected_user_id = users.id").
		Where("connections.user_id = ?", userID).
		Order("connections.created_at DESC, users.id ASC").
		Find(&users).Error
	if err != nil {
		return nil, upstream("list connections", err)
	}

	profiles := make([]models.PublicProfile, 0, len(users))
	for i := range users {
		profiles = append(profiles, users[i].Public())
	}
	return profiles, nil
}

// Reconcile inserts the missing mirror of every one-directional edge and
// returns how many edges it repaired.
func (s *ConnectionService) Reconcile(ctx context.Context) (int, error) {
	var orphans []models.Connection
	err := s.db.WithContext(ctx).Raw(`
		SELECT c.user_id, c.connected_user_id, c.created_at
		FROM connections c
		LEFT JOIN connections m
			ON m.user_id = c.connected_user_id AND m.connected_user_id = c.user_id
		WHERE m.user_id IS NULL`).
		Scan(&orphans).Error
	if err != nil {
		return 0, upstream("find asymmetric connections", err)
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	mirrors := make([]models.Connection, 0, len(orphans))
	for _, edge := range orphans {
		mirrors = append(mirrors, models.Connection{
			UserID:          edge.ConnectedUserID,
			ConnectedUserID: edge.UserID,
			CreatedAt:       edge.CreatedAt,
		})
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&mirrors)
	if res.Error != nil {
		return 0, upstream("repair connections", res.Error)
	}

	utils.LogEvent("connections_reconciled", map[string]interface{}{
		"repaired": res.RowsAffected,
	})
	return int(res.RowsAffected), nil
}

func connectTx(tx *gorm.DB, a, b uint) error {
	if a == b {
		return apperr.InvalidInput("Cannot connect a user to themselves")
	}
	now := time.Now()
	edges := []models.Connection{
		{UserID: a, ConnectedUserID: b, CreatedAt: now},
		{UserID: b, ConnectedUserID: a, CreatedAt: now},
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edges).Error; err != nil {
		return upstream("create connection", err)
	}
	return nil
}

func areConnected(tx *gorm.DB, a, b uint) (bool, error) {
	var count int64
	err := tx.Model(&models.Connection{}).
		Where("user_id = ? AND connected_user_id = ?", a, b).
		Count(&count).Error
	if err != nil {
		return false, upstream("check connection", err)
	}
	return count > 0, nil
}
