package services

import (
	"fmt"

	"foundermatch/apperr"
	"foundermatch/models"

	"gorm.io/gorm"
)

// planFor returns the plan matching the user's subscription tier, or nil
// when no plan carries that tier. A nil plan imposes no limits.
func planFor(tx *gorm.DB, userID uint) (*models.Plan, error) {
	user, err := loadUser(tx, userID)
	if err != nil {
		return nil, err
	}
	tier := user.SubscriptionTier
	if tier == "" {
		tier = models.TierFree
	}

	var plans []models.Plan
	if err := tx.Where("tier = ?", tier).Order("id ASC").Limit(1).Find(&plans).Error; err != nil {
		return nil, upstream("load plan", err)
	}
	if len(plans) == 0 {
		return nil, nil
	}
	return &plans[0], nil
}

// checkTeamLimit fails with Conflict once founderID founds MaxTeams teams
func checkTeamLimit(tx *gorm.DB, founderID uint) error {
	plan, err := planFor(tx, founderID)
	if err != nil || plan == nil || plan.MaxTeams <= 0 {
		return err
	}
	var count int64
	if err := tx.Model(&models.Team{}).Where("founder_id = ?", founderID).Count(&count).Error; err != nil {
		return upstream("count teams", err)
	}
	if count >= int64(plan.MaxTeams) {
		return apperr.Conflict(fmt.Sprintf("The %s plan allows %d team(s); upgrade to create more", plan.Name, plan.MaxTeams))
	}
	return nil
}

// checkConnectionLimit fails with Conflict when userID already holds
// MaxConnections connections
func checkConnectionLimit(tx *gorm.DB, userID uint) error {
	plan, err := planFor(tx, userID)
	if err != nil || plan == nil || plan.MaxConnections <= 0 {
		return err
	}
	var count int64
	if err := tx.Model(&models.Connection{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return upstream("count connections", err)
	}
	if count >= int64(plan.MaxConnections) {
		return apperr.Conflict(fmt.Sprintf("The %s plan allows %d connections", plan.Name, plan.MaxConnections))
	}
	return nil
}
