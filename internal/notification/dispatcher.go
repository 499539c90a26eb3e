package notification

import (
	"context"
	"errors"

	"inboxpilot-backend/internal/classification/domain"
	"inboxpilot-backend/internal/classification/usecase"

	"github.com/sirupsen/logrus"
)

// NotificationHandler is the part of the pipeline that consumes pushes.
type NotificationHandler interface {
	HandleNotification(ctx context.Context, emailAddress string, historyID uint64) (*domain.PassReport, error)
}

// Dispatcher hands decoded notifications to the pipeline. Both the Pub/Sub
// subscriber and the HTTP push endpoint go through it.
type Dispatcher struct {
	handler NotificationHandler
}

func NewDispatcher(handler NotificationHandler) *Dispatcher {
	return &Dispatcher{handler: handler}
}

// Dispatch returns an error when the notification should be delivered again.
// A failed pass leaves the stored cursor untouched, so redelivery replays the
// same history. Pushes for unknown accounts are dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, n *GmailNotification) error {
	log := logrus.WithFields(logrus.Fields{
		"email":      n.EmailAddress,
		"history_id": n.HistoryID,
	})
	log.Info("[PubSub] Received notification")

	report, err := d.handler.HandleNotification(ctx, n.EmailAddress, n.HistoryID)
	switch {
	case err == nil:
	case errors.Is(err, usecase.ErrAccountNotFound):
		log.Warn("[PubSub] No account for notification")
		return nil
	case errors.Is(err, usecase.ErrPersistence):
		log.WithError(err).Error("[PubSub] Pass not committed, requesting redelivery")
		return err
	default:
		log.WithError(err).Error("[PubSub] Failed to handle notification, requesting redelivery")
		return err
	}

	if report != nil {
		log.WithFields(logrus.Fields{
			"results": len(report.Results),
			"cursor":  report.CursorAfter,
		}).Infof("[PubSub] Notification handled %s", report.Note)
	}
	return nil
}

// DispatchRaw decodes a Pub/Sub message body and dispatches it. Malformed
// payloads are dropped.
func (d *Dispatcher) DispatchRaw(ctx context.Context, data []byte) error {
	n, err := DecodeNotification(data)
	if err != nil {
		logrus.Warnf("[PubSub] Dropping message: %v", err)
		return nil
	}
	return d.Dispatch(ctx, n)
}
