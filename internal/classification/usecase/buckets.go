package usecase

import (
	"context"

	"inboxpilot-backend/internal/classification/domain"

	"github.com/sirupsen/logrus"
)

const labelUnread = "UNREAD"

func (u *classificationUsecase) GetBuckets(accountID string) (*domain.Buckets, error) {
	acc, err := u.loadAccount(accountID)
	if err != nil {
		return nil, err
	}
	b := acc.Buckets.Clone()
	return &b, nil
}

// ReadAll empties one bucket and marks its messages read on the provider.
// Provider errors are logged; the bucket is cleared regardless.
func (u *classificationUsecase) ReadAll(ctx context.Context, accountID string, kind domain.BucketKind) (int, error) {
	unlock := u.locks.Lock(accountID)
	defer unlock()

	acc, err := u.loadAccount(accountID)
	if err != nil {
		return 0, err
	}
	next := acc.Clone()
	entries := next.Buckets.Get(kind)
	if err := next.Buckets.Clear(kind); err != nil {
		return 0, err
	}

	if len(entries) > 0 {
		if sess, err := u.open(ctx, acc); err != nil {
			logrus.Warnf("[ReadAll] %s: cannot mark messages read: %v", acc.Email, err)
		} else {
			for _, e := range entries {
				if err := sess.ModifyLabels(ctx, e.EmailID, nil, []string{labelUnread}); err != nil {
					logrus.Warnf("[ReadAll] failed to mark %s read: %v", e.EmailID, err)
				}
			}
			closeSession(sess)
		}
	}

	if err := u.save(next, nil, u.now()); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// QuickRemove drops one entry from a bucket. For drafts the provider draft
// is deleted too, using providerDraftID or the id stored on the entry.
func (u *classificationUsecase) QuickRemove(ctx context.Context, accountID string, kind domain.BucketKind, emailID, providerDraftID string) error {
	unlock := u.locks.Lock(accountID)
	defer unlock()

	acc, err := u.loadAccount(accountID)
	if err != nil {
		return err
	}

	next := acc.Clone()
	removed, err := next.Buckets.Remove(kind, emailID)
	if err != nil {
		return err
	}

	if kind == domain.BucketDrafts {
		draftID := providerDraftID
		if draftID == "" && len(removed) > 0 {
			draftID = removed[0].ProviderDraftID
		}
		if draftID != "" {
			if sess, err := u.open(ctx, acc); err != nil {
				logrus.Warnf("[QuickRemove] %s: cannot delete draft %s: %v", acc.Email, draftID, err)
			} else {
				if err := sess.DeleteDraft(ctx, draftID); err != nil {
					logrus.Warnf("[QuickRemove] failed to delete draft %s: %v", draftID, err)
				}
				closeSession(sess)
			}
		}
	}

	return u.save(next, nil, u.now())
}

// SweepPromotions removes expired promotions outside of a sync pass.
func (u *classificationUsecase) SweepPromotions(ctx context.Context, accountID string) (int, error) {
	unlock := u.locks.Lock(accountID)
	defer unlock()

	acc, err := u.loadAccount(accountID)
	if err != nil {
		return 0, err
	}

	started := u.now()
	next := acc.Clone()
	removed := sweepBuckets(&next.Buckets, started)
	report := &domain.PassReport{
		AccountID:       acc.ID,
		Trigger:         domain.TriggerSweep,
		PromotionsSwept: removed,
		CursorBefore:    acc.LastHistoryID,
		CursorAfter:     acc.LastHistoryID,
	}
	if err := u.save(next, report, started); err != nil {
		return 0, err
	}
	u.metrics.Swept(removed)
	logrus.Infof("[Sweep] %s: removed %d promotions, %d left", acc.Email, removed, len(next.Buckets.Promotions))
	return removed, nil
}

func (u *classificationUsecase) ListSyncRuns(accountID string, limit int) ([]*domain.SyncRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return u.accounts.ListSyncRuns(accountID, limit)
}
