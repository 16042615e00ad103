package services

import (
	"context"
	"errors"
	"testing"

	"foundermatch/apperr"
	"foundermatch/models"
	"foundermatch/utils"
)

type fakeGateway struct {
	createErr error
	orders    []string
	callback  utils.CallbackResult
}

func (g *fakeGateway) CreateOrder(ctx context.Context, orderID string, amount int64, customerEmail string) (*utils.GatewayOrder, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.orders = append(g.orders, orderID)
	return &utils.GatewayOrder{
		OrderID:      orderID,
		GatewayRef:   "pi_" + orderID,
		ClientSecret: "secret_" + orderID,
		Amount:       amount,
		Currency:     "usd",
	}, nil
}

func (g *fakeGateway) VerifyCallback(payload []byte, signature string) (*utils.CallbackResult, error) {
	if signature != "valid" {
		return &utils.CallbackResult{Valid: false}, nil
	}
	result := g.callback
	result.Valid = true
	return &result, nil
}

func TestListPlans(t *testing.T) {
	db := newTestDB(t)
	svc := NewPaymentService(db, &fakeGateway{})

	plans, err := svc.ListPlans(context.Background())
	if err != nil {
		t.Fatalf("ListPlans failed: %v", err)
	}
	if len(plans) != 3 || plans[0].Name != "free" || plans[1].DisplayPrice != "$15.00" {
		t.Errorf("unexpected plans: %+v", plans)
	}
}

func TestCreateOrder(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{}
	svc := NewPaymentService(db, gateway)
	ctx := context.Background()
	ann := createUser(t, db, "ann")

	checkout, err := svc.CreateOrder(ctx, ann.ID, "pro")
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if checkout.Amount != 1500 || checkout.ClientSecret == "" {
		t.Errorf("unexpected checkout: %+v", checkout)
	}

	var order models.PaymentOrder
	if err := db.Where("order_id = ?", checkout.OrderID).First(&order).Error; err != nil {
		t.Fatalf("expected order persisted: %v", err)
	}
	if order.Status != models.OrderPending || order.UserID != ann.ID || order.GatewayRef != checkout.GatewayRef {
		t.Errorf("unexpected order: %+v", order)
	}

	_, err = svc.CreateOrder(ctx, ann.ID, "free")
	expectKind(t, err, apperr.KindInvalidInput)
	_, err = svc.CreateOrder(ctx, ann.ID, "platinum")
	expectKind(t, err, apperr.KindNotFound)

	gateway.createErr = errors.New("stripe down")
	_, err = svc.CreateOrder(ctx, ann.ID, "pro")
	expectKind(t, err, apperr.KindUpstream)
}

func TestHandleCallbackUpgradesOnce(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{}
	svc := NewPaymentService(db, gateway)
	ctx := context.Background()
	ann := createUser(t, db, "ann")

	checkout, err := svc.CreateOrder(ctx, ann.ID, "scale")
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	_, err = svc.HandleCallback(ctx, []byte(`{}`), "forged")
	expectKind(t, err, apperr.KindInvalidInput)

	gateway.callback = utils.CallbackResult{Status: utils.PaymentSucceeded, OrderID: checkout.OrderID, TransactionID: "ch_1"}
	order, err := svc.HandleCallback(ctx, []byte(`{}`), "valid")
	if err != nil {
		t.Fatalf("HandleCallback failed: %v", err)
	}
	if order.Status != models.OrderSucceeded || order.TransactionID != "ch_1" || order.PaidAt == nil {
		t.Errorf("unexpected order: %+v", order)
	}
	firstPaid := *order.PaidAt

	var user models.User
	db.First(&user, ann.ID)
	if user.SubscriptionTier != models.TierScale {
		t.Errorf("expected tier scale, got %s", user.SubscriptionTier)
	}

	// replay is a no-op
	gateway.callback.TransactionID = "ch_2"
	order, err = svc.HandleCallback(ctx, []byte(`{}`), "valid")
	if err != nil {
		t.Fatalf("replayed HandleCallback failed: %v", err)
	}
	if order.TransactionID != "ch_1" || !order.PaidAt.Equal(firstPaid) {
		t.Errorf("expected replay to leave order unchanged, got %+v", order)
	}

	// a late failure does not undo a paid order
	gateway.callback = utils.CallbackResult{Status: utils.PaymentFailed, OrderID: checkout.OrderID, FailureReason: "card declined"}
	order, _ = svc.HandleCallback(ctx, []byte(`{}`), "valid")
	if order.Status != models.OrderSucceeded {
		t.Errorf("expected paid order to stay succeeded, got %s", order.Status)
	}
}

func TestHandleCallbackFailure(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{}
	svc := NewPaymentService(db, gateway)
	ctx := context.Background()
	ann := createUser(t, db, "ann")
	checkout, _ := svc.CreateOrder(ctx, ann.ID, "pro")

	gateway.callback = utils.CallbackResult{Status: utils.PaymentFailed, OrderID: checkout.OrderID, FailureReason: "card declined"}
	order, err := svc.HandleCallback(ctx, []byte(`{}`), "valid")
	if err != nil {
		t.Fatalf("HandleCallback failed: %v", err)
	}
	if order.Status != models.OrderFailed || order.FailureReason != "card declined" {
		t.Errorf("unexpected order: %+v", order)
	}

	var user models.User
	db.First(&user, ann.ID)
	if user.SubscriptionTier != models.TierFree {
		t.Errorf("expected tier unchanged, got %s", user.SubscriptionTier)
	}

	gateway.callback = utils.CallbackResult{}
	order, err = svc.HandleCallback(ctx, []byte(`{}`), "valid")
	if err != nil || order != nil {
		t.Errorf("expected event without outcome to be ignored, got %+v (%v)", order, err)
	}

	gateway.callback = utils.CallbackResult{Status: utils.PaymentSucceeded, OrderID: "missing"}
	_, err = svc.HandleCallback(ctx, []byte(`{}`), "valid")
	expectKind(t, err, apperr.KindNotFound)
}
