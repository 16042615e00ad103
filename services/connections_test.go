package services

import (
	"context"
	"sync"
	"testing"

	"foundermatch/apperr"
	"foundermatch/models"
)

func TestConnectIsSymmetricAndIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewConnectionService(db)
	ctx := context.Background()
	ann := createUser(t, db, "ann")
	bea := createUser(t, db, "bea")

	for i := 0; i < 2; i++ {
		if err := svc.Connect(ctx, ann.ID, bea.ID); err != nil {
			t.Fatalf("Connect #%d failed: %v", i+1, err)
		}
	}
	if err := svc.Connect(ctx, bea.ID, ann.ID); err != nil {
		t.Fatalf("reverse Connect failed: %v", err)
	}

	var edges int64
	db.Model(&models.Connection{}).Count(&edges)
	if edges != 2 {
		t.Errorf("expected exactly 2 edges, got %d", edges)
	}

	for _, pair := range [][2]uint{{ann.ID, bea.ID}, {bea.ID, ann.ID}} {
		ok, err := svc.AreConnected(ctx, pair[0], pair[1])
		if err != nil || !ok {
			t.Errorf("expected %d connected to %d (err=%v)", pair[0], pair[1], err)
		}
	}
}

func TestConnectRejectsSelfAndUnknownUsers(t *testing.T) {
	db := newTestDB(t)
	svc := NewConnectionService(db)
	ann := createUser(t, db, "ann")

	expectKind(t, svc.Connect(context.Background(), ann.ID, ann.ID), apperr.KindInvalidInput)
	expectKind(t, svc.Connect(context.Background(), ann.ID, 999), apperr.KindNotFound)
}

func TestConcurrentConnectStaysSymmetric(t *testing.T) {
	db := newTestDB(t)
	svc := NewConnectionService(db)
	ann := createUser(t, db, "ann")
	bea := createUser(t, db, "bea")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := ann.ID, bea.ID
			if i%2 == 1 {
				a, b = b, a
			}
			errs <- svc.Connect(context.Background(), a, b)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
	}

	var edges int64
	db.Model(&models.Connection{}).Count(&edges)
	if edges != 2 {
		t.Errorf("expected 2 edges after concurrent connects, got %d", edges)
	}
}

func TestDisconnectRemovesBothEdges(t *testing.T) {
	db := newTestDB(t)
	svc := NewConnectionService(db)
	ctx := context.Background()
	ann := createUser(t, db, "ann")
	bea := createUser(t, db, "bea")

	if err := svc.Connect(ctx, ann.ID, bea.ID); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := svc.Disconnect(ctx, bea.ID, ann.ID); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	var edges int64
	db.Model(&models.Connection{}).Count(&edges)
	if edges != 0 {
		t.Errorf("expected no edges, got %d", edges)
	}
	expectKind(t, svc.Disconnect(ctx, ann.ID, bea.ID), apperr.KindNotFound)
}

func TestListConnections(t *testing.T) {
	db := newTestDB(t)
	svc := NewConnectionService(db)
	ctx := context.Background()
	ann := createUser(t, db, "ann")
	bea := createUser(t, db, "bea")
	cal := createUser(t, db, "cal")

	svc.Connect(ctx, ann.ID, bea.ID)
	svc.Connect(ctx, cal.ID, ann.ID)

	profiles, err := svc.ListConnections(ctx, ann.ID)
	if err != nil {
		t.Fatalf("ListConnections failed: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 connections, got %d", len(profiles))
	}

	profiles, _ = svc.ListConnections(ctx, bea.ID)
	if len(profiles) != 1 || profiles[0].ID != ann.ID || profiles[0].Name != "ann" {
		t.Errorf("expected bea connected to ann, got %+v", profiles)
	}
}

func TestReconcileRepairsMissingMirror(t *testing.T) {
	db := newTestDB(t)
	svc := NewConnectionService(db)
	ann := createUser(t, db, "ann")
	bea := createUser(t, db, "bea")

	if err := db.Create(&models.Connection{UserID: ann.ID, ConnectedUserID: bea.ID}).Error; err != nil {
		t.Fatalf("Failed to seed edge: %v", err)
	}

	repaired, err := svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if repaired != 1 {
		t.Errorf("expected 1 repaired edge, got %d", repaired)
	}
	if ok, _ := svc.AreConnected(context.Background(), bea.ID, ann.ID); !ok {
		t.Error("expected mirror edge after reconcile")
	}

	repaired, err = svc.Reconcile(context.Background())
	if err != nil || repaired != 0 {
		t.Errorf("expected nothing to repair, got %d (%v)", repaired, err)
	}
}
