package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrNoPushTopic is returned by Watch when no Pub/Sub topic is configured.
var ErrNoPushTopic = errors.New("push topic is not configured")

// Watch arms push notifications. The ledger starts over and the history
// cursor is set to what the provider reports.
func (u *classificationUsecase) Watch(ctx context.Context, accountID string) (uint64, error) {
	if u.pushTopic == "" {
		return 0, ErrNoPushTopic
	}

	unlock := u.locks.Lock(accountID)
	defer unlock()

	acc, err := u.loadAccount(accountID)
	if err != nil {
		return 0, err
	}
	sess, err := u.open(ctx, acc)
	if err != nil {
		return 0, err
	}
	defer closeSession(sess)

	historyID, err := sess.Watch(ctx, u.pushTopic)
	if err != nil {
		return 0, fmt.Errorf("failed to watch mailbox: %w", err)
	}

	next := acc.Clone()
	next.Ledger.Reset()
	next.LastHistoryID = historyID
	next.Watching = true
	if err := u.save(next, nil, u.now()); err != nil {
		return 0, err
	}
	if !acc.Watching {
		u.metrics.WatchChanged(1)
	}
	logrus.Infof("[Watch] %s: watching with history id %d", acc.Email, historyID)
	return historyID, nil
}

// StopWatch disarms push notifications.
func (u *classificationUsecase) StopWatch(ctx context.Context, accountID string) error {
	unlock := u.locks.Lock(accountID)
	defer unlock()

	acc, err := u.loadAccount(accountID)
	if err != nil {
		return err
	}
	sess, err := u.open(ctx, acc)
	if err != nil {
		return err
	}
	defer closeSession(sess)

	if err := sess.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop watch: %w", err)
	}

	next := acc.Clone()
	next.Watching = false
	if err := u.save(next, nil, u.now()); err != nil {
		return err
	}
	if acc.Watching {
		u.metrics.WatchChanged(-1)
	}
	logrus.Infof("[Watch] %s: watch stopped", acc.Email)
	return nil
}
