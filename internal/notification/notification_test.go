package notification

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"inboxpilot-backend/internal/classification/domain"
	"inboxpilot-backend/internal/classification/usecase"
	"inboxpilot-backend/pkg/fcm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeHandler struct {
	mu    sync.Mutex
	calls []GmailNotification
	err   error
}

func (h *fakeHandler) HandleNotification(_ context.Context, email string, historyID uint64) (*domain.PassReport, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, GmailNotification{EmailAddress: email, HistoryID: historyID})
	if h.err != nil {
		return nil, h.err
	}
	return &domain.PassReport{CursorAfter: historyID}, nil
}

func TestDecodeNotification(t *testing.T) {
	n, err := DecodeNotification([]byte(`{"emailAddress":"a@example.com","historyId":12345}`))
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", n.EmailAddress)
	assert.Equal(t, uint64(12345), n.HistoryID)

	n, err = DecodeNotification([]byte(`{"emailAddress":"a@example.com","historyId":"777"}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(777), n.HistoryID)

	_, err = DecodeNotification([]byte(`{"emailAddress":"a@example.com"}`))
	assert.ErrorIs(t, err, ErrBadNotification)

	_, err = DecodeNotification([]byte(`not json`))
	assert.ErrorIs(t, err, ErrBadNotification)
}

func TestDecodePushEnvelope(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte(`{"emailAddress":"b@example.com","historyId":42}`))
	body := fmt.Sprintf(`{"message":{"data":%q,"messageId":"1"},"subscription":"projects/p/subscriptions/s"}`, data)

	n, err := DecodePushEnvelope([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", n.EmailAddress)
	assert.Equal(t, uint64(42), n.HistoryID)

	_, err = DecodePushEnvelope([]byte(`{"message":{"data":"%%%"}}`))
	assert.ErrorIs(t, err, ErrBadNotification)
}

func TestDispatcher_RedeliversFailedPasses(t *testing.T) {
	ctx := context.Background()
	n := &GmailNotification{EmailAddress: "a@example.com", HistoryID: 5}

	h := &fakeHandler{}
	require.NoError(t, NewDispatcher(h).Dispatch(ctx, n))
	assert.Len(t, h.calls, 1)

	h.err = fmt.Errorf("%w: boom", usecase.ErrPersistence)
	assert.ErrorIs(t, NewDispatcher(h).Dispatch(ctx, n), usecase.ErrPersistence)

	h.err = fmt.Errorf("%w: a@example.com", usecase.ErrAccountNotFound)
	assert.NoError(t, NewDispatcher(h).Dispatch(ctx, n))

	providerErr := errors.New("provider unavailable")
	h.err = fmt.Errorf("failed to read history: %w", providerErr)
	assert.ErrorIs(t, NewDispatcher(h).Dispatch(ctx, n), providerErr)
	assert.Len(t, h.calls, 4)
}

func TestDispatcher_DropsMalformedPayload(t *testing.T) {
	h := &fakeHandler{}
	assert.NoError(t, NewDispatcher(h).DispatchRaw(context.Background(), []byte(`{}`)))
	assert.Empty(t, h.calls)
}

type fakeTokens struct {
	mu      sync.Mutex
	tokens  map[string][]string
	deleted []string
}

func (f *fakeTokens) ActiveTokens(accountID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens[accountID]...), nil
}

func (f *fakeTokens) Prune(tokens []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, tokens...)
	return nil
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []fcm.NotificationData
	invalid []string
}

func (s *fakeSender) SendToDevices(_ context.Context, tokens []string, n fcm.NotificationData) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return s.invalid, nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// The pubsub and firebase clients pull in opencensus, whose view worker is
// started from a package init and runs for the life of the test binary.
var leakOptions = []goleak.Option{
	goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
}

func TestDraftPusher_SendsAndPrunes(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions...)

	tokens := &fakeTokens{tokens: map[string][]string{"acc-1": {"tok-a", "tok-b"}}}
	sender := &fakeSender{invalid: []string{"tok-b"}}
	p := NewDraftPusher(sender, tokens, nil, 2)
	p.Start()

	p.QueueDrafts("acc-1", []domain.Entry{{EmailID: "m1", Subject: "Lunch?", Sender: domain.Sender{Name: "Ann"}, ProviderDraftID: "d1"}})
	p.QueueDrafts("acc-2", []domain.Entry{{EmailID: "m2"}})
	p.QueueDrafts("acc-1", nil)

	assert.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 10*time.Millisecond)
	p.Stop()

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Reply draft ready", sender.sent[0].Title)
	assert.Equal(t, "Ann: Lunch?", sender.sent[0].Body)
	assert.Equal(t, "d1", sender.sent[0].Data["gmailDraftId"])
	assert.Equal(t, []string{"tok-b"}, tokens.deleted)

	// Queueing after Stop must not panic.
	p.QueueDrafts("acc-1", []domain.Entry{{EmailID: "m3"}})
}

func TestDraftNotification_Batch(t *testing.T) {
	n := DraftNotification([]domain.Entry{{EmailID: "a", Subject: "One"}, {EmailID: "b"}})
	assert.Equal(t, "2 reply drafts ready", n.Title)
	assert.Equal(t, "One", n.Body)
	assert.Equal(t, "2", n.Data["count"])
	assert.Equal(t, "/drafts", n.ClickAction)
}
