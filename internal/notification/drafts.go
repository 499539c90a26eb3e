package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"inboxpilot-backend/internal/classification/domain"
	"inboxpilot-backend/internal/metrics"
	"inboxpilot-backend/pkg/fcm"

	"github.com/sirupsen/logrus"
)

const (
	draftQueueSize     = 500
	defaultDraftWorker = 3
	pushTimeout        = 15 * time.Second
)

// DeviceTokens is the token store the pusher reads and prunes.
type DeviceTokens interface {
	ActiveTokens(accountID string) ([]string, error)
	Prune(tokens []string) error
}

// DraftJob announces the drafts one pass created for an account.
type DraftJob struct {
	AccountID string
	Entries   []domain.Entry
}

// DraftPusher sends a push notification to the account's devices when a
// pass created reply drafts.
type DraftPusher struct {
	sender      fcm.Sender
	tokens      DeviceTokens
	metrics     *metrics.Metrics
	jobQueue    chan DraftJob
	workerWg    sync.WaitGroup
	workerCount int
	started     bool
	stopped     bool
	mu          sync.Mutex
}

func NewDraftPusher(sender fcm.Sender, tokens DeviceTokens, m *metrics.Metrics, workerCount int) *DraftPusher {
	if workerCount <= 0 {
		workerCount = defaultDraftWorker
	}
	return &DraftPusher{
		sender:      sender,
		tokens:      tokens,
		metrics:     m,
		jobQueue:    make(chan DraftJob, draftQueueSize),
		workerCount: workerCount,
	}
}

func (p *DraftPusher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.stopped {
		return
	}
	for i := 0; i < p.workerCount; i++ {
		p.workerWg.Add(1)
		go p.worker(i)
	}
	p.started = true
	logrus.Infof("[FCM] Started %d draft notification workers", p.workerCount)
}

// Stop drains the queue and waits for the workers.
func (p *DraftPusher) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobQueue)
	p.mu.Unlock()

	p.workerWg.Wait()
	logrus.Info("[FCM] Draft notification workers stopped")
}

// QueueDrafts enqueues without blocking. Jobs are dropped when the queue is
// full or the pusher is stopped.
func (p *DraftPusher) QueueDrafts(accountID string, entries []domain.Entry) {
	if len(entries) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}

	select {
	case p.jobQueue <- DraftJob{AccountID: accountID, Entries: entries}:
		p.metrics.SetDraftQueue(len(p.jobQueue))
	default:
		logrus.Warnf("[FCM] Draft notification queue full, dropping %d drafts for %s", len(entries), accountID)
	}
}

func (p *DraftPusher) worker(id int) {
	defer p.workerWg.Done()

	for job := range p.jobQueue {
		p.metrics.SetDraftQueue(len(p.jobQueue))
		p.process(job)
	}
	logrus.Debugf("[FCM] Worker %d stopped", id)
}

func (p *DraftPusher) process(job DraftJob) {
	tokens, err := p.tokens.ActiveTokens(job.AccountID)
	if err != nil {
		logrus.Errorf("[FCM] Error getting tokens for %s: %v", job.AccountID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	invalid, err := p.sender.SendToDevices(ctx, tokens, DraftNotification(job.Entries))
	if err != nil {
		logrus.Errorf("[FCM] Error sending draft notification to %s: %v", job.AccountID, err)
		return
	}
	if len(invalid) > 0 {
		logrus.Infof("[FCM] Pruning %d invalid tokens", len(invalid))
		if err := p.tokens.Prune(invalid); err != nil {
			logrus.Errorf("[FCM] Failed to prune tokens: %v", err)
		}
	}
}

// DraftNotification builds the push message for a batch of new drafts.
func DraftNotification(entries []domain.Entry) fcm.NotificationData {
	first := entries[0]
	title := "Reply draft ready"
	if len(entries) > 1 {
		title = fmt.Sprintf("%d reply drafts ready", len(entries))
	}

	body := first.Subject
	if name := first.Sender.Name; name != "" {
		body = name + ": " + body
	}
	if runes := []rune(body); len(runes) > 100 {
		body = string(runes[:97]) + "..."
	}

	return fcm.NotificationData{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":         "draft_created",
			"emailId":      first.EmailID,
			"gmailDraftId": first.ProviderDraftID,
			"count":        fmt.Sprintf("%d", len(entries)),
		},
		ClickAction: "/drafts",
	}
}
