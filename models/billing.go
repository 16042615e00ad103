package models

import (
	"time"

	"gorm.io/gorm"
)

// Payment order statuses
const (
	OrderPending   = "pending"
	OrderSucceeded = "succeeded"
	OrderFailed    = "failed"
)

// Plan represents a subscription tier that can be purchased
type Plan struct {
	gorm.Model
	Name        string `gorm:"not null;uniqueIndex" json:"name"` // free, pro, scale
	Description string `json:"description"`
	Tier        string `gorm:"not null" json:"tier"`
	Price       int64  `gorm:"not null" json:"price"` // in cents
	Currency    string `gorm:"default:'usd'" json:"currency"`

	// Features
	MaxTeams        int  `json:"max_teams"`       // 0 means unlimited
	MaxConnections  int  `json:"max_connections"` // 0 means unlimited
	PriorityListing bool `gorm:"default:false" json:"priority_listing"`

	// For display purposes
	DisplayPrice string `gorm:"-" json:"display_price"`
	IsPopular    bool   `gorm:"default:false" json:"is_popular"`

	BillingInterval string `json:"billing_interval" gorm:"default:'monthly'"` // monthly, yearly
}

// PaymentOrder records one checkout attempt against the payment gateway
type PaymentOrder struct {
	gorm.Model
	OrderID string `gorm:"not null;uniqueIndex" json:"order_id"`
	UserID  uint   `gorm:"not null;index" json:"user_id"`
	PlanID  uint   `gorm:"not null" json:"plan_id"`

	// Financial information
	Amount   int64  `json:"amount"` // in cents
	Currency string `gorm:"default:'usd'" json:"currency"`
	Status   string `gorm:"default:'pending';index" json:"status"` // pending, succeeded, failed

	// Gateway references
	GatewayRef    string     `gorm:"index" json:"gateway_ref"`
	TransactionID string     `json:"transaction_id,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`

	// Relations
	Plan Plan `json:"plan"`
}
