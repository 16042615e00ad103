package models

import (
	"time"

	"gorm.io/gorm"
)

// Subscription tiers
const (
	TierFree  = "free"
	TierPro   = "pro"
	TierScale = "scale"
)

// User represents a founder or collaborator account
type User struct {
	gorm.Model

	// Identity provider fields
	Email     string  `gorm:"uniqueIndex;not null" json:"email"`
	GoogleID  *string `gorm:"uniqueIndex" json:"-"`
	Name      string  `json:"name"`
	AvatarURL string  `json:"avatar_url"`

	// Profile information
	Bio      string   `json:"bio"`
	Skills   []string `gorm:"serializer:json;type:text" json:"skills"`
	Timezone string   `gorm:"default:'UTC'" json:"timezone"`

	// Account status
	IsActive bool `gorm:"default:true" json:"is_active"`

	// Subscription
	SubscriptionTier string  `gorm:"default:'free'" json:"subscription_tier"`
	StripeCustomerID *string `gorm:"index" json:"-"`
}

// PublicProfile is the subset of a user other members may see.
type PublicProfile struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// Public returns the user's public profile
func (u *User) Public() PublicProfile {
	return PublicProfile{ID: u.ID, Name: u.Name, AvatarURL: u.AvatarURL}
}

// Connection is one directed edge of the symmetric connection graph.
// Every row (a, b) must have a mirror row (b, a).
type Connection struct {
	UserID          uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	ConnectedUserID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"connected_user_id"`
	CreatedAt       time.Time `json:"created_at"`
}
