package services

import (
	"context"
	"fmt"
	"time"

	"foundermatch/apperr"
	"foundermatch/models"
	"foundermatch/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentGateway is the external checkout provider
type PaymentGateway interface {
	CreateOrder(ctx context.Context, orderID string, amount int64, customerEmail string) (*utils.GatewayOrder, error)
	VerifyCallback(payload []byte, signature string) (*utils.CallbackResult, error)
}

// PaymentService sells subscription plans through a PaymentGateway
type PaymentService struct {
	db      *gorm.DB
	gateway PaymentGateway
}

func NewPaymentService(db *gorm.DB, gateway PaymentGateway) *PaymentService {
	return &PaymentService{db: db, gateway: gateway}
}

// ListPlans returns every plan, cheapest first
func (s *PaymentService) ListPlans(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	if err := s.db.WithContext(ctx).Order("price ASC").Find(&plans).Error; err != nil {
		return nil, upstream("list plans", err)
	}
	for i := range plans {
		plans[i].DisplayPrice = fmt.Sprintf("$%d.%02d", plans[i].Price/100, plans[i].Price%100)
	}
	return plans, nil
}

// CreateOrder opens a checkout for planName and records it as pending
func (s *PaymentService) CreateOrder(ctx context.Context, userID uint, planName string) (*utils.GatewayOrder, error) {
	if s.gateway == nil {
		return nil, upstream("create order", fmt.Errorf("payment gateway not configured"))
	}
	db := s.db.WithContext(ctx)

	user, err := loadUser(db, userID)
	if err != nil {
		return nil, err
	}
	var plan models.Plan
	if err := db.Where("name = ?", planName).First(&plan).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Plan not found")
		}
		return nil, upstream("load plan", err)
	}
	if plan.Price <= 0 {
		return nil, apperr.InvalidInput("The free plan cannot be purchased")
	}

	orderID := uuid.NewString()
	checkout, err := s.gateway.CreateOrder(ctx, orderID, plan.Price, user.Email)
	if err != nil {
		return nil, upstream("Payment gateway unavailable", err)
	}

	order := models.PaymentOrder{
		OrderID:    orderID,
		UserID:     user.ID,
		PlanID:     plan.ID,
		Amount:     plan.Price,
		Currency:   plan.Currency,
		Status:     models.OrderPending,
		GatewayRef: checkout.GatewayRef,
	}
	if err := db.Omit("Plan").Create(&order).Error; err != nil {
		return nil, upstream("create order", err)
	}

	utils.LogEvent("payment_order_created", map[string]interface{}{
		"order_id": orderID,
		"user_id":  user.ID,
		"plan":     plan.Name,
	})
	return checkout, nil
}

// HandleCallback applies a gateway callback. Replays of a succeeded callback
// leave the order and tier unchanged. Callbacks without an outcome return a
// nil order.
func (s *PaymentService) HandleCallback(ctx context.Context, payload []byte, signature string) (*models.PaymentOrder, error) {
	if s.gateway == nil {
		return nil, upstream("handle callback", fmt.Errorf("payment gateway not configured"))
	}
	result, err := s.gateway.VerifyCallback(payload, signature)
	if err != nil {
		return nil, upstream("verify callback", err)
	}
	if !result.Valid {
		return nil, apperr.InvalidInput("Invalid callback signature")
	}
	if result.Status == "" {
		return nil, nil
	}

	db := s.db.WithContext(ctx)
	var order models.PaymentOrder
	if err := db.Preload("Plan").Where("order_id = ?", result.OrderID).First(&order).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Order not found")
		}
		return nil, upstream("load order", err)
	}

	switch result.Status {
	case utils.PaymentSucceeded:
		err = db.Transaction(func(tx *gorm.DB) error {
			now := time.Now()
			res := tx.Model(&models.PaymentOrder{}).
				Where("id = ? AND status <> ?", order.ID, models.OrderSucceeded).
				Updates(map[string]interface{}{
					"status":         models.OrderSucceeded,
					"transaction_id": result.TransactionID,
					"failure_reason": "",
					"paid_at":        now,
				})
			if res.Error != nil {
				return upstream("mark order paid", res.Error)
			}
			if res.RowsAffected == 0 {
				return nil
			}
			if err := tx.Model(&models.User{}).Where("id = ?", order.UserID).Update("subscription_tier", order.Plan.Tier).Error; err != nil {
				return upstream("update subscription", err)
			}
			utils.LogEvent("subscription_upgraded", map[string]interface{}{
				"order_id": order.OrderID,
				"user_id":  order.UserID,
				"tier":     order.Plan.Tier,
			})
			return nil
		})

	case utils.PaymentFailed:
		err = db.Model(&models.PaymentOrder{}).
			Where("id = ? AND status = ?", order.ID, models.OrderPending).
			Updates(map[string]interface{}{
				"status":         models.OrderFailed,
				"failure_reason": result.FailureReason,
			}).Error
		if err != nil {
			err = upstream("mark order failed", err)
		}

	default:
		return nil, apperr.InvalidInput("Unknown payment status: " + result.Status)
	}
	if err != nil {
		return nil, err
	}

	var fresh models.PaymentOrder
	if err := db.Preload("Plan").First(&fresh, order.ID).Error; err != nil {
		return nil, upstream("reload order", err)
	}
	return &fresh, nil
}
