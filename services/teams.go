package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"foundermatch/apperr"
	"foundermatch/models"
	"foundermatch/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TeamInput holds the fields of a new team
type TeamInput struct {
	Name        string   `json:"name" validate:"required,min=2,max=120"`
	Description string   `json:"description" validate:"max=2000"`
	OpenRoles   []string `json:"open_roles"`
	Stage       string   `json:"stage" validate:"omitempty,oneof=idea prototype mvp growth fundraised"`
	Industry    string   `json:"industry" validate:"max=80"`
	IsPublic    *bool    `json:"is_public"`
}

// TeamUpdate holds the founder-editable fields; nil means unchanged
type TeamUpdate struct {
	Name        *string   `json:"name" validate:"omitempty,min=2,max=120"`
	Description *string   `json:"description" validate:"omitempty,max=2000"`
	OpenRoles   *[]string `json:"open_roles"`
	Stage       *string   `json:"stage" validate:"omitempty,oneof=idea prototype mvp growth fundraised"`
	Industry    *string   `json:"industry" validate:"omitempty,max=80"`
	IsPublic    *bool     `json:"is_public"`
}

// TeamFilter narrows ListTeams
type TeamFilter struct {
	Industry string
	Stage    string
}

// InviteFailure records why one invite could not be sent
type InviteFailure struct {
	UserID uint   `json:"user_id"`
	Reason string `json:"reason"`
}

// TeamService runs team CRUD and the join/approve/decline workflow
type TeamService struct {
	db     *gorm.DB
	notify *notifier
}

func NewTeamService(db *gorm.DB, notify *notifier) *TeamService {
	return &TeamService{db: db, notify: notify}
}

// CreateTeam creates a team founded by founderID
func (s *TeamService) CreateTeam(ctx context.Context, founderID uint, in TeamInput) (*models.Team, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.InvalidInput("Team name is required")
	}

	team := models.Team{
		FounderID:   founderID,
		Name:        name,
		Description: in.Description,
		OpenRoles:   in.OpenRoles,
		Stage:       in.Stage,
		Industry:    in.Industry,
		IsPublic:    true,
	}
	if team.Stage == "" {
		team.Stage = models.StageIdea
	}
	if in.IsPublic != nil {
		team.IsPublic = *in.IsPublic
	}

	db := s.db.WithContext(ctx)
	if _, err := loadUser(db, founderID); err != nil {
		return nil, err
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := checkTeamLimit(tx, founderID); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&team).Error; err != nil {
			return err
		}
		// a zero bool is replaced by the column default on insert
		if in.IsPublic != nil && !*in.IsPublic {
			return tx.Model(&team).Update("is_public", false).Error
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) != "" {
			return nil, err
		}
		return nil, upstream("create team", err)
	}
	team.IsPublic = in.IsPublic == nil || *in.IsPublic

	utils.LogEvent("team_created", map[string]interface{}{
		"team_id":    team.ID,
		"founder_id": founderID,
	})
	return &team, nil
}

// GetTeam returns a team with its members. Private teams are only visible
// to their roster.
func (s *TeamService) GetTeam(ctx context.Context, teamID, viewerID uint) (*models.Team, error) {
	team, err := loadTeam(s.db.WithContext(ctx), teamID)
	if err != nil {
		return nil, err
	}
	if !team.IsPublic && !team.OnRoster(viewerID) {
		return nil, apperr.NotFound("Team not found")
	}
	return team, nil
}

// ListTeams returns public teams plus every team viewerID founded or joined
func (s *TeamService) ListTeams(ctx context.Context, viewerID uint, filter TeamFilter) ([]models.Team, error) {
	db := s.db.WithContext(ctx)
	memberOf := db.Model(&models.TeamMember{}).Select("team_id").Where("user_id = ?", viewerID)

	query := db.Preload("Members", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("joined_at ASC")
	}).Where("is_public = ? OR founder_id = ? OR id IN (?)", true, viewerID, memberOf)
	if filter.Industry != "" {
		query = query.Where("industry = ?", filter.Industry)
	}
	if filter.Stage != "" {
		query = query.Where("stage = ?", filter.Stage)
	}

	var teams []models.Team
	if err := query.Order("created_at DESC").Find(&teams).Error; err != nil {
		return nil, upstream("list teams", err)
	}
	return teams, nil
}

// UpdateTeam applies update; founder only
func (s *TeamService) UpdateTeam(ctx context.Context, teamID, actorID uint, update TeamUpdate) (*models.Team, error) {
	db := s.db.WithContext(ctx)
	team, err := loadTeam(db, teamID)
	if err != nil {
		return nil, err
	}
	if team.FounderID != actorID {
		return nil, apperr.Forbidden("Only the founder can update the team")
	}

	var columns []string
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apperr.InvalidInput("Team name cannot be empty")
		}
		team.Name = name
		columns = append(columns, "name")
	}
	if update.Description != nil {
		team.Description = *update.Description
		columns = append(columns, "description")
	}
	if update.OpenRoles != nil {
		team.OpenRoles = *update.OpenRoles
		columns = append(columns, "open_roles")
	}
	if update.Stage != nil {
		team.Stage = *update.Stage
		columns = append(columns, "stage")
	}
	if update.Industry != nil {
		team.Industry = *update.Industry
		columns = append(columns, "industry")
	}
	if update.IsPublic != nil {
		team.IsPublic = *update.IsPublic
		columns = append(columns, "is_public")
	}
	if len(columns) == 0 {
		return team, nil
	}

	if err := db.Model(team).Select(columns).Omit(clause.Associations).Updates(team).Error; err != nil {
		return nil, upstream("update team", err)
	}
	return loadTeam(db, teamID)
}

// DeleteTeam removes the team and its memberships and deactivates its chat;
// founder only
func (s *TeamService) DeleteTeam(ctx context.Context, teamID, actorID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		team, err := loadTeam(tx, teamID)
		if err != nil {
			return err
		}
		if team.FounderID != actorID {
			return apperr.Forbidden("Only the founder can delete the team")
		}
		return deleteTeamsTx(tx, []uint{team.ID})
	})
}

// RequestJoin asks the founder of teamID to admit requesterID
func (s *TeamService) RequestJoin(ctx context.Context, teamID, requesterID uint) (*models.Notification, error) {
	var notification *models.Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		team, err := loadTeam(tx, teamID)
		if err != nil {
			return err
		}
		if !team.IsPublic && !team.OnRoster(requesterID) {
			invited, err := hasTeamInvite(tx, team.ID, requesterID)
			if err != nil {
				return err
			}
			if !invited {
				return apperr.NotFound("Team not found")
			}
		}
		if team.FounderID == requesterID {
			return apperr.Conflict("The founder is already on the team")
		}
		if team.HasMember(requesterID) {
			return apperr.Conflict("Already a member of this team")
		}
		notification, err = createNotificationTx(tx, NewNotification{
			RecipientID: team.FounderID,
			SenderID:    requesterID,
			Payload:     models.TeamJoinRequestPayload{TeamRef: models.TeamRef{TeamID: team.ID, TeamName: team.Name}},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notify.deliver(ctx, notification)
	return notification, nil
}

// ApproveJoin admits targetID to teamID. Repeated approvals keep a single
// membership but each emits its own team_join_accepted.
func (s *TeamService) ApproveJoin(ctx context.Context, teamID, actorID, targetID uint) (*models.Notification, error) {
	var notification *models.Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		notification, err = approveJoinTx(tx, teamID, actorID, targetID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notify.deliver(ctx, notification)
	return notification, nil
}

// DeclineJoin emits team_join_declined to targetID without touching membership
func (s *TeamService) DeclineJoin(ctx context.Context, teamID, actorID, targetID uint) (*models.Notification, error) {
	var notification *models.Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		notification, err = declineJoinTx(tx, teamID, actorID, targetID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notify.deliver(ctx, notification)
	return notification, nil
}

// InviteMembers sends a team_invite to each user. Each invite commits on its
// own; when only some fail the result is a PartialFailure naming them.
func (s *TeamService) InviteMembers(ctx context.Context, teamID, actorID uint, userIDs []uint) ([]*models.Notification, error) {
	userIDs = dedupeIDs(userIDs)
	if len(userIDs) == 0 {
		return nil, apperr.InvalidInput("At least one user id is required")
	}

	db := s.db.WithContext(ctx)
	team, err := loadTeam(db, teamID)
	if err != nil {
		return nil, err
	}
	if team.FounderID != actorID {
		return nil, apperr.Forbidden("Only the founder can invite members")
	}

	var sent []*models.Notification
	var failures []InviteFailure
	var firstErr error
	for _, userID := range userIDs {
		var notification *models.Notification
		err := db.Transaction(func(tx *gorm.DB) error {
			if team.OnRoster(userID) {
				return apperr.Conflict(fmt.Sprintf("User %d is already on the team", userID))
			}
			var err error
			notification, err = createNotificationTx(tx, NewNotification{
				RecipientID: userID,
				SenderID:    actorID,
				Payload:     models.TeamInvitePayload{TeamRef: models.TeamRef{TeamID: team.ID, TeamName: team.Name}},
			})
			return err
		})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failures = append(failures, InviteFailure{UserID: userID, Reason: err.Error()})
			continue
		}
		sent = append(sent, notification)
	}

	s.notify.deliver(ctx, sent...)

	if len(sent) == 0 {
		return nil, firstErr
	}
	if len(failures) > 0 {
		return sent, apperr.Partial("Some invites could not be sent", failures, firstErr)
	}
	return sent, nil
}

func loadTeam(tx *gorm.DB, teamID uint) (*models.Team, error) {
	var team models.Team
	err := tx.Preload("Members", func(db *gorm.DB) *gorm.DB {
		return db.Order("joined_at ASC")
	}).First(&team, teamID).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Team not found")
		}
		return nil, upstream("load team", err)
	}
	return &team, nil
}

func approveJoinTx(tx *gorm.DB, teamID, actorID, targetID uint) (*models.Notification, error) {
	team, err := loadTeam(tx, teamID)
	if err != nil {
		return nil, err
	}
	if team.FounderID != actorID {
		return nil, apperr.Forbidden("Only the founder can approve join requests")
	}
	if targetID == team.FounderID {
		return nil, apperr.InvalidInput("The founder cannot join their own team")
	}
	if _, err := loadUser(tx, targetID); err != nil {
		return nil, err
	}
	if err := resolvePendingJoinTx(tx, team.ID, targetID, true); err != nil {
		return nil, err
	}

	now := time.Now()
	member := models.TeamMember{
		TeamID:      team.ID,
		UserID:      targetID,
		Role:        "member",
		Permissions: []string{"read"},
		JoinedAt:    now,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
		return nil, upstream("add team member", err)
	}

	var chat models.Chat
	err = tx.Where("thread_key = ?", models.TeamThreadKey(team.ID)).First(&chat).Error
	switch {
	case err == nil:
		if err := addParticipantsTx(tx, chat.ID, []uint{targetID}); err != nil {
			return nil, err
		}
	case !isNotFound(err):
		return nil, upstream("load team chat", err)
	}

	return createNotificationTx(tx, NewNotification{
		RecipientID: targetID,
		SenderID:    team.FounderID,
		Payload:     models.TeamJoinAcceptedPayload{TeamRef: models.TeamRef{TeamID: team.ID, TeamName: team.Name}},
	})
}

func declineJoinTx(tx *gorm.DB, teamID, actorID, targetID uint) (*models.Notification, error) {
	team, err := loadTeam(tx, teamID)
	if err != nil {
		return nil, err
	}
	if team.FounderID != actorID {
		return nil, apperr.Forbidden("Only the founder can decline join requests")
	}
	if err := resolvePendingJoinTx(tx, team.ID, targetID, false); err != nil {
		return nil, err
	}
	return createNotificationTx(tx, NewNotification{
		RecipientID: targetID,
		SenderID:    team.FounderID,
		Payload:     models.TeamJoinDeclinedPayload{TeamRef: models.TeamRef{TeamID: team.ID, TeamName: team.Name}},
	})
}

// deleteTeamsTx soft-deletes teams, declines their open join requests, drops
// their memberships and deactivates their chats
func deleteTeamsTx(tx *gorm.DB, teamIDs []uint) error {
	if len(teamIDs) == 0 {
		return nil
	}
	for _, id := range teamIDs {
		err := tx.Model(&models.Notification{}).
			Where("pending_key LIKE ? AND is_accepted IS NULL", models.PendingJoinKeyPrefix(id)+"%").
			Updates(map[string]interface{}{"is_accepted": false, "is_read": true, "pending_key": nil}).Error
		if err != nil {
			return upstream("close join requests", err)
		}
	}
	if err := tx.Where("team_id IN ?", teamIDs).Delete(&models.TeamMember{}).Error; err != nil {
		return upstream("delete team members", err)
	}
	if err := tx.Model(&models.Chat{}).Where("team_id IN ?", teamIDs).Update("is_active", false).Error; err != nil {
		return upstream("deactivate team chat", err)
	}
	if err := tx.Where("id IN ?", teamIDs).Delete(&models.Team{}).Error; err != nil {
		return upstream("delete team", err)
	}
	return nil
}

// resolvePendingJoinTx closes targetID's unresolved join request for teamID,
// if there is one, so the request and the founder's decision stay in step
func resolvePendingJoinTx(tx *gorm.DB, teamID, targetID uint, accepted bool) error {
	err := tx.Model(&models.Notification{}).
		Where("pending_key = ? AND is_accepted IS NULL", models.PendingJoinKey(teamID, targetID)).
		Updates(map[string]interface{}{
			"is_accepted": accepted,
			"is_read":     true,
			"pending_key": nil,
		}).Error
	if err != nil {
		return upstream("resolve join request", err)
	}
	return nil
}

// hasTeamInvite reports whether userID was invited to teamID
func hasTeamInvite(tx *gorm.DB, teamID, userID uint) (bool, error) {
	var count int64
	err := tx.Model(&models.Notification{}).
		Where("recipient_id = ? AND type = ? AND data LIKE ?", userID, models.NotifTeamInvite, fmt.Sprintf(`{"teamId":%d,%%`, teamID)).
		Count(&count).Error
	if err != nil {
		return false, upstream("check team invite", err)
	}
	return count > 0, nil
}
