package models

import (
	"time"

	"gorm.io/gorm"
)

// Team stages
const (
	StageIdea       = "idea"
	StagePrototype  = "prototype"
	StageMVP        = "mvp"
	StageGrowth     = "growth"
	StageFundraised = "fundraised"
)

// Team represents a startup team. The founder is privileged and is not
// stored in Members.
type Team struct {
	gorm.Model
	FounderID   uint     `gorm:"not null;index" json:"founder_id"`
	Name        string   `gorm:"not null" json:"name"`
	Description string   `json:"description"`
	OpenRoles   []string `gorm:"serializer:json;type:text" json:"open_roles"`
	Stage       string   `gorm:"default:'idea'" json:"stage"`
	Industry    string   `gorm:"index" json:"industry"`
	IsPublic    bool     `gorm:"default:true" json:"is_public"`

	// Relations
	Members []TeamMember `gorm:"foreignKey:TeamID" json:"members"`
}

// TeamMember represents a team member and their role
type TeamMember struct {
	TeamID      uint      `gorm:"primaryKey;autoIncrement:false" json:"team_id"`
	UserID      uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	Role        string    `gorm:"default:'member'" json:"role"` // member, admin
	Permissions []string  `gorm:"serializer:json;type:text" json:"permissions"`
	JoinedAt    time.Time `json:"joined_at"`
}

// HasMember reports whether userID is in the member list
func (t *Team) HasMember(userID uint) bool {
	for _, m := range t.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// OnRoster reports whether userID is the founder or a member
func (t *Team) OnRoster(userID uint) bool {
	return t.FounderID == userID || t.HasMember(userID)
}

// Roster returns the founder followed by members in join order
func (t *Team) Roster() []uint {
	ids := []uint{t.FounderID}
	for _, m := range t.Members {
		if m.UserID != t.FounderID {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}
