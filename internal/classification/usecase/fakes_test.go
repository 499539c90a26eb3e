package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	accountdomain "inboxpilot-backend/internal/account/domain"
	"inboxpilot-backend/internal/classification/domain"
	"inboxpilot-backend/internal/mailbox"
)

var errStale = errors.New("stale account version")

// fakeStore keeps one committed copy per account, like a database row.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]*accountdomain.Account
	runs     []*domain.SyncRun
	saveErr  error
	saves    int
}

func newFakeStore(accs ...*accountdomain.Account) *fakeStore {
	s := &fakeStore{accounts: make(map[string]*accountdomain.Account)}
	for _, a := range accs {
		s.accounts[a.ID] = a.Clone()
	}
	return s
}

func (s *fakeStore) FindByID(id string) (*accountdomain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		return a.Clone(), nil
	}
	return nil, nil
}

func (s *fakeStore) FindByEmail(email string) (*accountdomain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == email {
			return a.Clone(), nil
		}
	}
	return nil, nil
}

func (s *fakeStore) SaveState(acc *accountdomain.Account, run *domain.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	cur, ok := s.accounts[acc.ID]
	if !ok {
		return fmt.Errorf("account %s missing", acc.ID)
	}
	if cur.Version != acc.Version {
		return errStale
	}
	next := acc.Clone()
	next.Version++
	s.accounts[acc.ID] = next
	s.saves++
	if run != nil {
		s.runs = append(s.runs, run)
	}
	return nil
}

func (s *fakeStore) UpdateTokens(accountID, accessToken, refreshToken string, expiry time.Time) error {
	return nil
}

func (s *fakeStore) ListSyncRuns(accountID string, limit int) ([]*domain.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.SyncRun
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.runs[i].AccountID == accountID {
			out = append(out, s.runs[i])
		}
	}
	return out, nil
}

func (s *fakeStore) get(id string) *accountdomain.Account {
	a, _ := s.FindByID(id)
	return a
}

// fakeSession is an in-memory mailbox.
type fakeSession struct {
	mu         sync.Mutex
	inbox      []mailbox.MessageRef
	messages   map[string]*mailbox.Message
	getErr     map[string]error
	drafts     []mailbox.DraftRef
	created    []mailbox.DraftRequest
	deleted    []string
	labels     map[string][]string
	removed    map[string][]string
	labelErr   error
	draftErr   error
	history    []mailbox.MessageRef
	historyErr error
	watchID    uint64
	watchErr   error
	stopped    bool
	sent       []string
	listDrafts int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		messages: make(map[string]*mailbox.Message),
		getErr:   make(map[string]error),
		labels:   make(map[string][]string),
		removed:  make(map[string][]string),
	}
}

// add puts a message in the inbox, newest first like the Gmail API.
func (f *fakeSession) add(id, threadID, subject string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[id] = &mailbox.Message{
		ID:        id,
		ThreadID:  threadID,
		MessageID: "<" + id + "@example.com>",
		Subject:   subject,
		From:      "Sender <sender@example.com>",
		Body:      "Body of " + id,
	}
	f.inbox = append([]mailbox.MessageRef{{ID: id, ThreadID: threadID}}, f.inbox...)
}

func (f *fakeSession) ListRecent(ctx context.Context, folder string, max int) ([]mailbox.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	refs := f.inbox
	if len(refs) > max {
		refs = refs[:max]
	}
	return append([]mailbox.MessageRef(nil), refs...), nil
}

func (f *fakeSession) GetMessage(ctx context.Context, id string) (*mailbox.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	m, ok := f.messages[id]
	if !ok {
		return nil, mailbox.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeSession) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.labelErr != nil {
		return f.labelErr
	}
	f.labels[id] = append(f.labels[id], add...)
	f.removed[id] = append(f.removed[id], remove...)
	return nil
}

func (f *fakeSession) ListDrafts(ctx context.Context) ([]mailbox.DraftRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listDrafts++
	return append([]mailbox.DraftRef(nil), f.drafts...), nil
}

func (f *fakeSession) CreateDraft(ctx context.Context, req mailbox.DraftRequest) (*mailbox.DraftRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.draftErr != nil {
		return nil, f.draftErr
	}
	ref := mailbox.DraftRef{ID: fmt.Sprintf("d%d", len(f.created)+1), ThreadID: req.ThreadID}
	f.created = append(f.created, req)
	f.drafts = append(f.drafts, ref)
	return &ref, nil
}

func (f *fakeSession) GetHistorySince(ctx context.Context, cursor uint64) ([]mailbox.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return append([]mailbox.MessageRef(nil), f.history...), nil
}

func (f *fakeSession) DeleteDraft(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeSession) Send(ctx context.Context, msg mailbox.OutgoingMessage) error { return nil }

func (f *fakeSession) Watch(ctx context.Context, topic string) (uint64, error) {
	return f.watchID, f.watchErr
}

func (f *fakeSession) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeSession) SentSnippets(ctx context.Context, max int) ([]string, error) {
	return f.sent, nil
}

func (f *fakeSession) Close() error { return nil }

type fakeOpener struct {
	sess  *fakeSession
	opens int
}

func (o *fakeOpener) Open(ctx context.Context, creds mailbox.Credentials) (mailbox.Session, error) {
	o.opens++
	return o.sess, nil
}

var promptIDRe = regexp.MustCompile(`(?m)^Email ID: (\S+)$`)

// fakeLLM answers classification prompts from a per-message script.
type fakeLLM struct {
	mu      sync.Mutex
	answers map[string]string
	errs    map[string]error
	calls   []string
	prompts []string
	other   string
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{answers: make(map[string]string), errs: make(map[string]error)}
}

func (l *fakeLLM) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prompts = append(l.prompts, prompt)
	m := promptIDRe.FindStringSubmatch(prompt)
	if m == nil {
		l.calls = append(l.calls, "")
		return l.other, nil
	}
	id := m[1]
	l.calls = append(l.calls, id)
	if err := l.errs[id]; err != nil {
		return "", err
	}
	if a, ok := l.answers[id]; ok {
		return a, nil
	}
	return classify(id, domain.CategoryNone), nil
}

func (l *fakeLLM) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

func classify(id string, c domain.Category) string {
	return fmt.Sprintf("```json\n{\"emailId\":%q,\"category\":%q,\"sender\":{\"name\":\"Sender\",\"type\":\"person\"},\"content\":{\"summary\":\"about %s\",\"draftContent\":\"Reply to %s\",\"expiration\":\"12/31/2099\"}}\n```", id, c, id, id)
}

type fakeDrafts struct {
	mu      sync.Mutex
	queued  []domain.Entry
	account string
}

func (d *fakeDrafts) QueueDrafts(accountID string, entries []domain.Entry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.account = accountID
	d.queued = append(d.queued, entries...)
}

type fakeIndex struct {
	indexed []domain.Entry
	hits    []IndexHit
	err     error
}

func (i *fakeIndex) IndexEntries(ctx context.Context, accountID string, entries []domain.Entry) error {
	i.indexed = append(i.indexed, entries...)
	return nil
}

func (i *fakeIndex) Query(ctx context.Context, accountID, query string, limit int) ([]IndexHit, error) {
	return i.hits, i.err
}
