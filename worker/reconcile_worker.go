package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Reconciler repairs one-directional connection edges
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// ReconcileWorker periodically restores connection graph symmetry
type ReconcileWorker struct {
	Connections Reconciler
	Interval    time.Duration
	Logger      *logrus.Entry
}

func NewReconcileWorker(connections Reconciler, interval time.Duration, logger *logrus.Entry) *ReconcileWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &ReconcileWorker{
		Connections: connections,
		Interval:    interval,
		Logger:      logger,
	}
}

func (rw *ReconcileWorker) Start(ctx context.Context) {
	rw.Logger.WithField("interval", rw.Interval.String()).Info("Reconcile worker started")

	ticker := time.NewTicker(rw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rw.Logger.Info("Reconcile worker shutting down...")
			return
		case <-ticker.C:
			rw.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single reconciliation pass
func (rw *ReconcileWorker) RunOnce(ctx context.Context) int {
	repaired, err := rw.Connections.Reconcile(ctx)
	if err != nil {
		rw.Logger.WithError(err).Error("Connection reconciliation failed")
		return 0
	}
	if repaired > 0 {
		rw.Logger.WithField("repaired", repaired).Warn("Repaired asymmetric connections")
	}
	return repaired
}
