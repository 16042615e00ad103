package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"foundermatch/utils"

	"github.com/sirupsen/logrus"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (m *fakeMailer) Send(email utils.OutboundEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, email.To)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(logger)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestEmailWorkerEnqueueNeverBlocks(t *testing.T) {
	worker := NewEmailWorker(&fakeMailer{}, 2, testLogger())

	for i := 0; i < 2; i++ {
		if !worker.Enqueue(utils.OutboundEmail{To: "a@example.com"}) {
			t.Fatalf("expected enqueue #%d to succeed", i+1)
		}
	}
	if worker.Enqueue(utils.OutboundEmail{To: "b@example.com"}) {
		t.Error("expected enqueue on a full queue to return false")
	}
	if worker.Pending() != 2 {
		t.Errorf("expected 2 pending, got %d", worker.Pending())
	}
}

func TestEmailWorkerDrainsQueue(t *testing.T) {
	mailer := &fakeMailer{}
	worker := NewEmailWorker(mailer, 10, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	for _, to := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		worker.Enqueue(utils.OutboundEmail{To: to, Subject: "hi"})
	}
	waitFor(t, func() bool { return mailer.count() == 3 })

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestEmailWorkerSurvivesSendFailure(t *testing.T) {
	mailer := &fakeMailer{fail: true}
	worker := NewEmailWorker(mailer, 10, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Start(ctx)

	worker.Enqueue(utils.OutboundEmail{To: "a@example.com"})
	waitFor(t, func() bool { return worker.Pending() == 0 })

	mailer.mu.Lock()
	mailer.fail = false
	mailer.mu.Unlock()
	worker.Enqueue(utils.OutboundEmail{To: "b@example.com"})
	waitFor(t, func() bool { return mailer.count() == 1 })
}

type fakeReconciler struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *fakeReconciler) Reconcile(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return 0, r.err
	}
	return 2, nil
}

func TestReconcileWorker(t *testing.T) {
	reconciler := &fakeReconciler{}
	worker := NewReconcileWorker(reconciler, 10*time.Millisecond, testLogger())

	if repaired := worker.RunOnce(context.Background()); repaired != 2 {
		t.Errorf("expected 2 repaired, got %d", repaired)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go worker.Start(ctx)
	waitFor(t, func() bool {
		reconciler.mu.Lock()
		defer reconciler.mu.Unlock()
		return reconciler.calls >= 3
	})
	cancel()

	reconciler.mu.Lock()
	reconciler.err = errors.New("db down")
	reconciler.mu.Unlock()
	if repaired := worker.RunOnce(context.Background()); repaired != 0 {
		t.Errorf("expected 0 on failure, got %d", repaired)
	}
}
