package worker

import (
	"context"

	"foundermatch/utils"

	"github.com/sirupsen/logrus"
)

// EmailWorker drains a bounded queue of outbound email through a Mailer
type EmailWorker struct {
	Mailer utils.Mailer
	Logger *logrus.Entry
	queue  chan utils.OutboundEmail
}

func NewEmailWorker(mailer utils.Mailer, size int, logger *logrus.Entry) *EmailWorker {
	if size <= 0 {
		size = 1
	}
	return &EmailWorker{
		Mailer: mailer,
		Logger: logger,
		queue:  make(chan utils.OutboundEmail, size),
	}
}

// Enqueue adds email to the queue without blocking. It returns false when the
// queue is full.
func (ew *EmailWorker) Enqueue(email utils.OutboundEmail) bool {
	select {
	case ew.queue <- email:
		return true
	default:
		return false
	}
}

// Pending returns the number of queued emails
func (ew *EmailWorker) Pending() int {
	return len(ew.queue)
}

// Start sends queued email until ctx is cancelled. Emails still queued at
// shutdown are dropped.
func (ew *EmailWorker) Start(ctx context.Context) {
	ew.Logger.Info("Email worker started")

	for {
		select {
		case <-ctx.Done():
			ew.Logger.WithField("dropped", len(ew.queue)).Info("Email worker shutting down...")
			return
		case email := <-ew.queue:
			ew.send(email)
		}
	}
}

func (ew *EmailWorker) send(email utils.OutboundEmail) {
	if err := ew.Mailer.Send(email); err != nil {
		utils.LogError("email_send_failed", err, map[string]interface{}{
			"to":      email.To,
			"subject": email.Subject,
		})
		return
	}
	ew.Logger.WithField("to", email.To).Debug("Email sent")
}
