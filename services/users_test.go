package services

import (
	"context"
	"testing"

	"foundermatch/apperr"
	"foundermatch/models"
	"foundermatch/utils"
)

func TestSignInFromIdentity(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()

	first, err := svc.SignInFromIdentity(ctx, Identity{ProviderID: "g-1", Email: "Ann@Example.com", Name: "Ann"})
	if err != nil {
		t.Fatalf("SignInFromIdentity failed: %v", err)
	}
	if first.Email != "ann@example.com" || first.SubscriptionTier != models.TierFree {
		t.Errorf("unexpected new user: %+v", first)
	}

	again, err := svc.SignInFromIdentity(ctx, Identity{ProviderID: "g-1", Email: "ann@example.com"})
	if err != nil {
		t.Fatalf("second SignInFromIdentity failed: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("expected same user, got %d and %d", first.ID, again.ID)
	}

	var users int64
	db.Model(&models.User{}).Count(&users)
	if users != 1 {
		t.Errorf("expected 1 user, got %d", users)
	}

	_, err = svc.SignInFromIdentity(ctx, Identity{ProviderID: "g-2"})
	expectKind(t, err, apperr.KindInvalidInput)
}

func TestSignInFillsEmptyProfileFields(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()
	existing := models.User{Email: "bea@example.com", IsActive: true}
	db.Create(&existing)

	user, err := svc.SignInFromIdentity(ctx, Identity{ProviderID: "g-9", Email: "bea@example.com", Name: "Bea", AvatarURL: "https://img/bea.png"})
	if err != nil {
		t.Fatalf("SignInFromIdentity failed: %v", err)
	}
	if user.ID != existing.ID {
		t.Fatalf("expected existing user %d, got %d", existing.ID, user.ID)
	}

	var stored models.User
	db.First(&stored, existing.ID)
	if stored.Name != "Bea" || stored.AvatarURL != "https://img/bea.png" || stored.GoogleID == nil {
		t.Errorf("expected provider fields filled, got %+v", stored)
	}

	db.Model(&stored).Update("is_active", false)
	_, err = svc.SignInFromIdentity(ctx, Identity{ProviderID: "g-9", Email: "bea@example.com"})
	expectKind(t, err, apperr.KindForbidden)
}

func TestUpdateProfile(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()
	ann := createUser(t, db, "ann")
	createUser(t, db, "bea")

	skills := []string{"go", "sales"}
	updated, err := svc.UpdateProfile(ctx, ann.ID, ProfileUpdate{
		Bio:    utils.Pointer("Building things"),
		Skills: &skills,
		Email:  utils.Pointer("ANN.NEW@example.com"),
	})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if updated.Bio != "Building things" || len(updated.Skills) != 2 || updated.Email != "ann.new@example.com" {
		t.Errorf("unexpected profile: %+v", updated)
	}

	var stored models.User
	db.First(&stored, ann.ID)
	if len(stored.Skills) != 2 || stored.Skills[0] != "go" {
		t.Errorf("expected skills persisted, got %v", stored.Skills)
	}

	_, err = svc.UpdateProfile(ctx, ann.ID, ProfileUpdate{Email: utils.Pointer("not-an-email")})
	expectKind(t, err, apperr.KindInvalidInput)

	_, err = svc.UpdateProfile(ctx, ann.ID, ProfileUpdate{Email: utils.Pointer("bea@example.com")})
	expectKind(t, err, apperr.KindConflict)

	_, err = svc.UpdateProfile(ctx, 999, ProfileUpdate{Bio: utils.Pointer("x")})
	expectKind(t, err, apperr.KindNotFound)
}

func TestGetPublicProfiles(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	ann := createUser(t, db, "ann")

	profiles, err := svc.GetPublicProfiles(context.Background(), []uint{ann.ID, 999})
	if err != nil {
		t.Fatalf("GetPublicProfiles failed: %v", err)
	}
	if len(profiles) != 1 || profiles[ann.ID].Name != "ann" {
		t.Errorf("unexpected profiles: %+v", profiles)
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	db := newTestDB(t)
	svc := New(db, nil, nil)
	ctx := context.Background()
	ann := createUser(t, db, "ann")
	bea := createUser(t, db, "bea")
	cal := createUser(t, db, "cal")

	svc.Connections.Connect(ctx, ann.ID, bea.ID)
	svc.Notifications.RequestConnection(ctx, ann.ID, cal.ID)
	direct := newDirectChat(t, svc.Chats, ann.ID, bea.ID)
	if _, err := svc.Chats.PostMessage(ctx, direct.ID, ann.ID, "bye", models.MessageText); err != nil {
		t.Fatalf("PostMessage failed: %v", err)
	}

	founded := newTeam(t, svc, ann.ID, "Ann's team")
	foundedChat, _, _ := svc.Chats.ResolveOrCreateChat(ctx, ann.ID, ChatRequest{ChatType: models.ChatTeam, TeamID: &founded.ID})
	joined := newTeam(t, svc, bea.ID, "Bea's team")
	svc.Teams.ApproveJoin(ctx, joined.ID, bea.ID, ann.ID)

	if err := svc.Users.DeleteAccount(ctx, ann.ID); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}

	var count int64
	db.Unscoped().Model(&models.User{}).Where("id = ?", ann.ID).Count(&count)
	if count != 0 {
		t.Error("expected user hard-deleted")
	}
	db.Model(&models.Connection{}).Where("user_id = ? OR connected_user_id = ?", ann.ID, ann.ID).Count(&count)
	if count != 0 {
		t.Errorf("expected no edges, got %d", count)
	}
	if profiles, _ := svc.Connections.ListConnections(ctx, bea.ID); len(profiles) != 0 {
		t.Errorf("expected bea to have no connections, got %+v", profiles)
	}
	db.Model(&models.Notification{}).Where("recipient_id = ? OR sender_id = ?", ann.ID, ann.ID).Count(&count)
	if count != 0 {
		t.Errorf("expected no notifications, got %d", count)
	}
	db.Model(&models.ChatParticipant{}).Where("user_id = ?", ann.ID).Count(&count)
	if count != 0 {
		t.Errorf("expected no participations, got %d", count)
	}
	db.Model(&models.TeamMember{}).Where("user_id = ?", ann.ID).Count(&count)
	if count != 0 {
		t.Errorf("expected no memberships, got %d", count)
	}
	db.Model(&models.Message{}).Where("sender_id = ?", ann.ID).Count(&count)
	if count != 1 {
		t.Errorf("expected authored message kept, got %d", count)
	}

	var chat models.Chat
	db.First(&chat, direct.ID)
	if chat.IsActive {
		t.Error("expected direct chat deactivated")
	}
	db.First(&chat, foundedChat.ID)
	if chat.IsActive {
		t.Error("expected founded team chat deactivated")
	}
	_, err := svc.Teams.GetTeam(ctx, founded.ID, bea.ID)
	expectKind(t, err, apperr.KindNotFound)
	if _, err := svc.Teams.GetTeam(ctx, joined.ID, bea.ID); err != nil {
		t.Errorf("expected other team to survive, got %v", err)
	}

	expectKind(t, svc.Users.DeleteAccount(ctx, ann.ID), apperr.KindNotFound)
}
