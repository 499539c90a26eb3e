package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	accountdomain "inboxpilot-backend/internal/account/domain"
	"inboxpilot-backend/internal/classification/domain"
	"inboxpilot-backend/internal/mailbox"
	"inboxpilot-backend/internal/metrics"
	"inboxpilot-backend/pkg/ai"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	// LatestBatchSize is how many inbox messages a manual pull looks at.
	LatestBatchSize = 10

	classificationMaxTokens   = 500
	classificationTemperature = 0.7
	styleMaxTokens            = 500
	styleTemperature          = 0.7
	styleSampleSize           = 100
)

// Dependencies are the collaborators of the pipeline. Drafts, Index and
// Metrics are optional.
type Dependencies struct {
	Accounts  AccountStore
	Mail      mailbox.Opener
	LLM       ai.CompletionClient
	Drafts    DraftNotifier
	Index     EntryIndexer
	Metrics   *metrics.Metrics
	PushTopic string
	Now       func() time.Time
}

// classificationUsecase implements ClassificationUsecase interface
type classificationUsecase struct {
	accounts  AccountStore
	mail      mailbox.Opener
	llm       ai.CompletionClient
	drafts    DraftNotifier
	index     EntryIndexer
	metrics   *metrics.Metrics
	pushTopic string
	now       func() time.Time
	locks     *accountLocks
}

// NewClassificationUsecase creates a new instance of classificationUsecase
func NewClassificationUsecase(deps Dependencies) ClassificationUsecase {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &classificationUsecase{
		accounts:  deps.Accounts,
		mail:      deps.Mail,
		llm:       deps.LLM,
		drafts:    deps.Drafts,
		index:     deps.Index,
		metrics:   deps.Metrics,
		pushTopic: deps.PushTopic,
		now:       now,
		locks:     newAccountLocks(),
	}
}

// pass is the working state of one sync pass. Nothing in it is visible to
// other callers until commit succeeds.
type pass struct {
	startedAt time.Time
	provider  mailbox.Provider
	next      *accountdomain.Account
	report    *domain.PassReport
	// draftThreads holds the threads that already have a provider draft.
	// It is loaded on first use and updated as drafts are created.
	draftThreads map[string]bool
	created      []domain.Entry
	stored       []domain.Entry
}

func (u *classificationUsecase) ProcessLatest(ctx context.Context, accountID string) (*domain.PassReport, error) {
	return u.processLatest(ctx, accountID, domain.TriggerManual)
}

func (u *classificationUsecase) PollLatest(ctx context.Context, accountID string) (*domain.PassReport, error) {
	return u.processLatest(ctx, accountID, domain.TriggerPoll)
}

func (u *classificationUsecase) processLatest(ctx context.Context, accountID string, trigger domain.Trigger) (*domain.PassReport, error) {
	unlock := u.locks.Lock(accountID)
	defer unlock()

	acc, err := u.loadAccount(accountID)
	if err != nil {
		return nil, err
	}

	sess, err := u.open(ctx, acc)
	if err != nil {
		return nil, err
	}
	defer closeSession(sess)

	refs, err := sess.ListRecent(ctx, mailbox.FolderInbox, LatestBatchSize)
	if err != nil {
		u.metrics.PassFailed(string(trigger))
		return nil, fmt.Errorf("failed to list inbox: %w", err)
	}

	p, err := u.runPass(ctx, acc, sess, refs, trigger)
	if err != nil {
		return nil, err
	}
	if err := u.commit(ctx, p); err != nil {
		return nil, err
	}
	return p.report, nil
}

// HandleNotification processes messages added since the stored history
// cursor and moves the cursor to historyID.
func (u *classificationUsecase) HandleNotification(ctx context.Context, emailAddress string, historyID uint64) (*domain.PassReport, error) {
	found, err := u.accounts.FindByEmail(emailAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if found == nil {
		u.metrics.Notification("unknown_account")
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, emailAddress)
	}

	unlock := u.locks.Lock(found.ID)
	defer unlock()

	// Reload under the lock; a concurrent pass may have moved the cursor.
	acc, err := u.loadAccount(found.ID)
	if err != nil {
		return nil, err
	}

	report := &domain.PassReport{
		AccountID:    acc.ID,
		Trigger:      domain.TriggerPush,
		Results:      []domain.MessageResult{},
		CursorBefore: acc.LastHistoryID,
	}

	if acc.LastHistoryID == 0 {
		next := acc.Clone()
		next.LastHistoryID = historyID
		report.CursorAfter = historyID
		report.Note = "initial history set"
		if err := u.save(next, report, u.now()); err != nil {
			return nil, err
		}
		u.metrics.Notification("initialized")
		logrus.Infof("[Notification] %s: initial history id set to %d", acc.Email, historyID)
		return report, nil
	}

	if historyID <= acc.LastHistoryID {
		report.CursorAfter = acc.LastHistoryID
		report.Note = "stale notification"
		u.metrics.Notification("stale")
		logrus.Infof("[Notification] %s: history id %d is not newer than %d, skipping", acc.Email, historyID, acc.LastHistoryID)
		return report, nil
	}

	sess, err := u.open(ctx, acc)
	if err != nil {
		return nil, err
	}
	defer closeSession(sess)

	refs, err := sess.GetHistorySince(ctx, acc.LastHistoryID)
	if errors.Is(err, mailbox.ErrNotFound) {
		// The provider no longer has history that old; start over from here.
		next := acc.Clone()
		next.LastHistoryID = historyID
		report.CursorAfter = historyID
		report.Note = "history expired, cursor reset"
		if err := u.save(next, report, u.now()); err != nil {
			return nil, err
		}
		u.metrics.Notification("cursor_reset")
		logrus.Warnf("[Notification] %s: history %d expired, cursor reset to %d", acc.Email, acc.LastHistoryID, historyID)
		return report, nil
	}
	if err != nil {
		u.metrics.PassFailed(string(domain.TriggerPush))
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	p, err := u.runPass(ctx, acc, sess, refs, domain.TriggerPush)
	if err != nil {
		return nil, err
	}
	p.next.LastHistoryID = historyID
	p.report.CursorAfter = historyID
	if err := u.commit(ctx, p); err != nil {
		return nil, err
	}
	u.metrics.Notification("processed")
	return p.report, nil
}

// runPass handles refs in order against a copy of acc. Provider side
// effects (drafts, labels) happen here; account state is only staged.
func (u *classificationUsecase) runPass(ctx context.Context, acc *accountdomain.Account, provider mailbox.Provider, refs []mailbox.MessageRef, trigger domain.Trigger) (*pass, error) {
	p := &pass{
		startedAt: u.now(),
		provider:  provider,
		next:      acc.Clone(),
		report: &domain.PassReport{
			AccountID:    acc.ID,
			Trigger:      trigger,
			Results:      []domain.MessageResult{},
			CursorBefore: acc.LastHistoryID,
			CursorAfter:  acc.LastHistoryID,
		},
	}

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			u.metrics.PassFailed(string(trigger))
			return nil, fmt.Errorf("sync pass interrupted: %w", err)
		}
		if ref.ID == "" || p.next.Ledger.IsMessageProcessed(ref.ID) {
			continue
		}

		res := u.processMessage(ctx, p, ref)
		p.report.Results = append(p.report.Results, res)
		u.metrics.Message(string(res.Outcome))
		switch res.Outcome {
		case domain.OutcomeClassified:
			p.report.Classified++
		case domain.OutcomeFailed:
			p.report.Failed++
			logrus.Warnf("[Sync] %s: message %s failed (%s): %s", acc.Email, res.MessageID, res.ErrorKind, res.Error)
		}
	}
	return p, nil
}

func (u *classificationUsecase) processMessage(ctx context.Context, p *pass, ref mailbox.MessageRef) domain.MessageResult {
	res := domain.MessageResult{MessageID: ref.ID, ThreadID: ref.ThreadID}
	ledger := &p.next.Ledger

	msg, err := p.provider.GetMessage(ctx, ref.ID)
	if errors.Is(err, mailbox.ErrNotFound) {
		ledger.RecordMessage(ref.ID)
		res.Outcome = domain.OutcomeNotFound
		return res
	}
	if err != nil {
		return failed(res, domain.ErrorKindProvider, err)
	}
	if msg.ThreadID == "" {
		msg.ThreadID = ref.ThreadID
	}
	res.ThreadID = msg.ThreadID

	threadProcessed := ledger.IsThreadProcessed(msg.ThreadID)
	if threadProcessed {
		ledger.RecordMessage(msg.ID)
		res.Outcome = domain.OutcomeThreadSkipped
		return res
	}

	prompt := BuildClassificationPrompt(p.next.StyleProfile, msg, mailbox.PlainText(msg))
	started := time.Now()
	output, err := u.llm.Complete(ctx, prompt, classificationMaxTokens, classificationTemperature)
	u.metrics.Completion(time.Since(started).Seconds())
	if err != nil {
		return failed(res, domain.ErrorKindCompletion, err)
	}

	rec, err := ExtractRecord(output, msg.ID)
	if errors.Is(err, domain.ErrIDMismatch) {
		// The answer is about some other mail; do not retry this one, but
		// leave the thread open for its next message.
		ledger.RecordMessage(msg.ID)
		return failed(res, domain.ErrorKindIDMismatch, err)
	}
	if err != nil {
		return failed(res, domain.ErrorKindMalformedOutput, err)
	}
	res.Category = rec.Category

	draftExists := false
	if rec.Category == domain.CategoryDraft {
		draftExists, err = p.hasDraft(ctx, msg.ThreadID)
		if err != nil {
			return failed(res, domain.ErrorKindDraft, err)
		}
	}

	decision := Route(RouteInput{
		Record:          rec,
		Message:         msg,
		ThreadProcessed: threadProcessed,
		DraftExists:     draftExists,
		Now:             u.now(),
	})

	if !decision.Known {
		logrus.Infof("[Sync] message %s classified as unrecognized category %q", msg.ID, rec.Category)
		ledger.RecordMessage(msg.ID)
		ledger.RecordThread(msg.ThreadID)
		p.next.ProcessedEmails++
		res.Outcome = domain.OutcomeUnrouted
		return res
	}

	if decision.Draft != nil {
		draft, err := p.provider.CreateDraft(ctx, *decision.Draft)
		if err != nil {
			return failed(res, domain.ErrorKindDraft, err)
		}
		decision.Entry.ProviderDraftID = draft.ID
		p.draftThreads[msg.ThreadID] = true
		p.report.DraftsCreated++
		p.created = append(p.created, *decision.Entry)
		res.DraftID = draft.ID
		u.metrics.Draft()
	}
	res.DraftSuppressed = decision.DraftSuppressed

	if decision.Label != "" {
		res.Label = decision.Label
		if err := p.provider.ModifyLabels(ctx, msg.ID, []string{decision.Label}, nil); err != nil {
			logrus.Warnf("[Sync] failed to apply label %q to %s: %v", decision.Label, msg.ID, err)
		}
	}

	if decision.Entry != nil {
		if err := p.next.Buckets.Append(decision.Bucket, *decision.Entry); err != nil {
			return failed(res, domain.ErrorKindProvider, err)
		}
		p.stored = append(p.stored, *decision.Entry)
	}

	ledger.RecordMessage(msg.ID)
	ledger.RecordThread(msg.ThreadID)
	p.next.ProcessedEmails++
	res.Outcome = domain.OutcomeClassified
	u.metrics.Classified(string(rec.Category))
	return res
}

func (p *pass) hasDraft(ctx context.Context, threadID string) (bool, error) {
	if p.draftThreads == nil {
		drafts, err := p.provider.ListDrafts(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to list drafts: %w", err)
		}
		p.draftThreads = make(map[string]bool, len(drafts))
		for _, d := range drafts {
			if d.ThreadID != "" {
				p.draftThreads[d.ThreadID] = true
			}
		}
	}
	return p.draftThreads[threadID], nil
}

func failed(res domain.MessageResult, kind string, err error) domain.MessageResult {
	res.Outcome = domain.OutcomeFailed
	res.ErrorKind = kind
	res.Error = err.Error()
	return res
}

// commit sweeps promotions, saves the whole staged account at once and then
// runs the post-commit hooks.
func (u *classificationUsecase) commit(ctx context.Context, p *pass) error {
	now := u.now()
	swept := sweepBuckets(&p.next.Buckets, now)
	p.report.PromotionsSwept = swept

	if err := u.save(p.next, p.report, p.startedAt); err != nil {
		return err
	}

	u.metrics.Swept(swept)
	u.metrics.PassCommitted(string(p.report.Trigger), now.Sub(p.startedAt).Seconds())
	logrus.Infof("[Sync] %s pass for %s: %d classified, %d failed, %d drafts",
		p.report.Trigger, p.next.Email, p.report.Classified, p.report.Failed, p.report.DraftsCreated)

	if u.drafts != nil && len(p.created) > 0 {
		u.drafts.QueueDrafts(p.next.ID, p.created)
	}
	if u.index != nil && len(p.stored) > 0 {
		if err := u.index.IndexEntries(ctx, p.next.ID, p.stored); err != nil {
			logrus.Warnf("[Sync] failed to index %d entries for %s: %v", len(p.stored), p.next.Email, err)
		}
	}
	return nil
}

// save persists next together with a sync run built from report.
func (u *classificationUsecase) save(next *accountdomain.Account, report *domain.PassReport, startedAt time.Time) error {
	var run *domain.SyncRun
	if report != nil {
		run = domain.NewSyncRun(report, startedAt, u.now())
	}
	if err := u.accounts.SaveState(next, run); err != nil {
		if report != nil {
			u.metrics.PassFailed(string(report.Trigger))
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (u *classificationUsecase) loadAccount(accountID string) (*accountdomain.Account, error) {
	acc, err := u.accounts.FindByID(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	return acc, nil
}

func (u *classificationUsecase) open(ctx context.Context, acc *accountdomain.Account) (mailbox.Session, error) {
	accountID := acc.ID
	onRefresh := func(tok *oauth2.Token) error {
		return u.accounts.UpdateTokens(accountID, tok.AccessToken, tok.RefreshToken, tok.Expiry)
	}
	sess, err := u.mail.Open(ctx, acc.Credentials(onRefresh))
	if err != nil {
		return nil, fmt.Errorf("failed to open mailbox: %w", err)
	}
	return sess, nil
}

func closeSession(sess mailbox.Session) {
	if err := sess.Close(); err != nil {
		logrus.Warnf("[Mailbox] close failed: %v", err)
	}
}
