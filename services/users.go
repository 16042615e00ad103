package services

import (
	"context"
	"strings"

	"foundermatch/apperr"
	"foundermatch/models"
	"foundermatch/utils"

	"github.com/badoux/checkmail"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Identity is what the identity provider asserts about a signed-in user
type Identity struct {
	ProviderID string
	Email      string
	Name       string
	AvatarURL  string
}

// ProfileUpdate holds the user-editable profile fields; nil means unchanged
type ProfileUpdate struct {
	Name      *string   `json:"name" validate:"omitempty,min=1,max=120"`
	AvatarURL *string   `json:"avatar_url" validate:"omitempty,url"`
	Bio       *string   `json:"bio" validate:"omitempty,max=2000"`
	Skills    *[]string `json:"skills"`
	Timezone  *string   `json:"timezone" validate:"omitempty,max=64"`
	Email     *string   `json:"email"`
}

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// SignInFromIdentity returns the user for identity, creating it on first
// sign-in. Empty name and avatar are filled from the provider.
func (s *UserService) SignInFromIdentity(ctx context.Context, identity Identity) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" {
		return nil, apperr.InvalidInput("Identity provider did not return an email")
	}
	db := s.db.WithContext(ctx)

	if identity.ProviderID != "" {
		var linked models.User
		err := db.Where("google_id = ?", identity.ProviderID).First(&linked).Error
		switch {
		case err == nil:
			if !linked.IsActive {
				return nil, apperr.Forbidden("Account is disabled")
			}
			return &linked, nil
		case !isNotFound(err):
			return nil, upstream("load user", err)
		}
	}

	user := models.User{
		Email:     email,
		Name:      identity.Name,
		AvatarURL: identity.AvatarURL,
		IsActive:  true,
	}
	if identity.ProviderID != "" {
		user.GoogleID = utils.Pointer(identity.ProviderID)
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&user)
	if res.Error != nil {
		return nil, upstream("create user", res.Error)
	}
	if res.RowsAffected == 1 {
		utils.LogEvent("user_registered", map[string]interface{}{
			"user_id": user.ID,
		})
		return &user, nil
	}

	var existing models.User
	if err := db.Where("email = ?", email).First(&existing).Error; err != nil {
		return nil, upstream("load user", err)
	}
	if !existing.IsActive {
		return nil, apperr.Forbidden("Account is disabled")
	}

	changes := map[string]interface{}{}
	if existing.Name == "" && identity.Name != "" {
		changes["name"] = identity.Name
	}
	if existing.AvatarURL == "" && identity.AvatarURL != "" {
		changes["avatar_url"] = identity.AvatarURL
	}
	if existing.GoogleID == nil && identity.ProviderID != "" {
		changes["google_id"] = identity.ProviderID
	}
	if len(changes) > 0 {
		if err := db.Model(&existing).Updates(changes).Error; err != nil {
			return nil, upstream("refresh user", err)
		}
	}
	return &existing, nil
}

func (s *UserService) GetProfile(ctx context.Context, id uint) (*models.User, error) {
	return loadUser(s.db.WithContext(ctx), id)
}

// GetPublicProfiles returns the public profiles of ids, keyed by id. Unknown
// ids are absent from the result.
func (s *UserService) GetPublicProfiles(ctx context.Context, ids []uint) (map[uint]models.PublicProfile, error) {
	return publicProfiles(s.db.WithContext(ctx), ids)
}

// UpdateProfile applies update to user id. A new email must be well formed
// and not used by another account.
func (s *UserService) UpdateProfile(ctx context.Context, id uint, update ProfileUpdate) (*models.User, error) {
	db := s.db.WithContext(ctx)
	user, err := loadUser(db, id)
	if err != nil {
		return nil, err
	}

	var columns []string
	if update.Name != nil {
		user.Name = strings.TrimSpace(*update.Name)
		columns = append(columns, "name")
	}
	if update.AvatarURL != nil {
		user.AvatarURL = *update.AvatarURL
		columns = append(columns, "avatar_url")
	}
	if update.Bio != nil {
		user.Bio = *update.Bio
		columns = append(columns, "bio")
	}
	if update.Skills != nil {
		user.Skills = *update.Skills
		columns = append(columns, "skills")
	}
	if update.Timezone != nil {
		user.Timezone = *update.Timezone
		columns = append(columns, "timezone")
	}
	if update.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*update.Email))
		if err := checkmail.ValidateFormat(email); err != nil {
			return nil, apperr.InvalidInput("Invalid email format")
		}
		if email != user.Email {
			var taken int64
			if err := db.Model(&models.User{}).Where("email = ? AND id <> ?", email, id).Count(&taken).Error; err != nil {
				return nil, upstream("check email", err)
			}
			if taken > 0 {
				return nil, apperr.Conflict("Email is already in use")
			}
			user.Email = email
			columns = append(columns, "email")
		}
	}
	if len(columns) == 0 {
		return user, nil
	}

	if err := db.Model(user).Select(columns).Updates(user).Error; err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return nil, apperr.Conflict("Email is already in use")
		}
		return nil, upstream("update profile", err)
	}
	return user, nil
}

// DeleteAccount removes the user and everything that only makes sense with
// them present: connection edges, notifications sent or received, chat
// participations, memberships and founded teams. Direct chats they were in
// and chats of their teams are deactivated; authored messages remain.
func (s *UserService) DeleteAccount(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := loadUser(tx, id)
		if err != nil {
			return err
		}

		if err := tx.Where("user_id = ? OR connected_user_id = ?", id, id).Delete(&models.Connection{}).Error; err != nil {
			return upstream("delete connections", err)
		}
		if err := tx.Where("recipient_id = ? OR sender_id = ?", id, id).Delete(&models.Notification{}).Error; err != nil {
			return upstream("delete notifications", err)
		}

		var founded []uint
		if err := tx.Model(&models.Team{}).Where("founder_id = ?", id).Pluck("id", &founded).Error; err != nil {
			return upstream("load founded teams", err)
		}
		if err := deleteTeamsTx(tx, founded); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.TeamMember{}).Error; err != nil {
			return upstream("delete memberships", err)
		}

		participations := tx.Model(&models.ChatParticipant{}).Select("chat_id").Where("user_id = ?", id)
		err = tx.Model(&models.Chat{}).
			Where("chat_type = ? AND id IN (?)", models.ChatDirect, participations).
			Update("is_active", false).Error
		if err != nil {
			return upstream("deactivate direct chats", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.ChatParticipant{}).Error; err != nil {
			return upstream("delete chat participations", err)
		}

		if err := tx.Unscoped().Delete(user).Error; err != nil {
			return upstream("delete user", err)
		}

		utils.LogEvent("account_deleted", map[string]interface{}{
			"user_id":       id,
			"founded_teams": len(founded),
		})
		return nil
	})
}
