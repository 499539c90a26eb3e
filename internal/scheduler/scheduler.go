package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	accountdomain "inboxpilot-backend/internal/account/domain"
	"inboxpilot-backend/internal/classification/domain"
	"inboxpilot-backend/pkg/config"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// AccountLister lists the accounts to poll.
type AccountLister interface {
	ListAll() ([]*accountdomain.Account, error)
}

// Poller runs one scheduled pass for an account.
type Poller interface {
	PollLatest(ctx context.Context, accountID string) (*domain.PassReport, error)
}

// RoundResult summarizes one scheduled round over all accounts.
type RoundResult struct {
	Accounts int
	Failed   int
	Drafts   int
	Swept    int
}

// Scheduler polls every account's inbox on a cron schedule.
type Scheduler struct {
	cron        *cron.Cron
	entryID     cron.EntryID
	config      config.SchedulerConfig
	accounts    AccountLister
	poller      Poller
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	isRunning   bool
	lastResult  RoundResult
	mu          sync.RWMutex
	roundMu     sync.Mutex
	concurrency int
}

func New(cfg config.SchedulerConfig, accounts AccountLister, poller Poller) *Scheduler {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Scheduler{
		config:      cfg,
		accounts:    accounts,
		poller:      poller,
		concurrency: concurrency,
	}
}

// Start registers the poll job. It can be called again after Stop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if s.config.IntervalMinutes <= 0 {
		return fmt.Errorf("invalid poll interval: %d minutes", s.config.IntervalMinutes)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = cron.New(cron.WithSeconds())

	schedule := fmt.Sprintf("0 */%d * * * *", s.config.IntervalMinutes)
	entryID, err := s.cron.AddFunc(schedule, s.tick)
	if err != nil {
		s.cancel()
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("[Scheduler] Started with interval: %d minutes", s.config.IntervalMinutes)
	return nil
}

// Stop cancels a running round and waits for it to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	cancel, c := s.cancel, s.cron
	s.isRunning = false
	s.mu.Unlock()

	// The running round records its result under s.mu, so wait unlocked.
	cancel()
	stopCtx := c.Stop()

	select {
	case <-stopCtx.Done():
		logrus.Info("[Scheduler] Stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("[Scheduler] Stop timeout, forcing shutdown")
	}
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns the next scheduled round, or zero when stopped.
func (s *Scheduler) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

func (s *Scheduler) LastResult() RoundResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastResult
}

// Wait blocks until an in-flight round returns.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) tick() {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()

	s.wg.Add(1)
	defer s.wg.Done()

	if _, err := s.RunOnce(ctx); err != nil {
		logrus.Errorf("[Scheduler] Round failed: %v", err)
	}
}

// RunOnce polls every account with bounded concurrency. Rounds never
// overlap; a round that starts while another is running waits for it.
// A failing account does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) (RoundResult, error) {
	s.roundMu.Lock()
	defer s.roundMu.Unlock()

	accounts, err := s.accounts.ListAll()
	if err != nil {
		return RoundResult{}, fmt.Errorf("failed to list accounts: %w", err)
	}

	var (
		resMu  sync.Mutex
		result = RoundResult{Accounts: len(accounts)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, acc := range accounts {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			report, err := s.poller.PollLatest(gctx, acc.ID)

			resMu.Lock()
			defer resMu.Unlock()
			if err != nil {
				result.Failed++
				logrus.WithField("account", acc.Email).Warnf("[Scheduler] Poll failed: %v", err)
				return nil
			}
			result.Drafts += report.DraftsCreated
			result.Swept += report.PromotionsSwept
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	s.lastResult = result
	s.mu.Unlock()

	logrus.Infof("[Scheduler] Round done: %d accounts, %d failed, %d drafts, %d promotions swept",
		result.Accounts, result.Failed, result.Drafts, result.Swept)
	return result, ctx.Err()
}
