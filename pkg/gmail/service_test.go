package gmail

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"inboxpilot-backend/internal/mailbox"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

func newTestSession(t *testing.T, handler http.HandlerFunc) *Session {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	api, err := gmail.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return NewSession(api, nil, "me@gmail.com")
}

func encode(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestConvertMessagePrefersNestedHTML(t *testing.T) {
	msg := &gmail.Message{
		Id:           "m1",
		ThreadId:     "t1",
		InternalDate: 1700000000000,
		Payload: &gmail.MessagePart{
			MimeType: "multipart/mixed",
			Headers: []*gmail.MessagePartHeader{
				{Name: "subject", Value: "Invoice"},
				{Name: "From", Value: "Shop <billing@shop.example>"},
				{Name: "Message-ID", Value: "<abc@shop.example>"},
			},
			Parts: []*gmail.MessagePart{{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("plain")}},
					{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<b>html</b>")}},
				},
			}},
		},
	}

	got := convertMessage(msg)
	assert.Equal(t, "Invoice", got.Subject)
	assert.Equal(t, "Shop <billing@shop.example>", got.From)
	assert.Equal(t, "<abc@shop.example>", got.MessageID)
	assert.Equal(t, "<b>html</b>", got.Body)
	assert.True(t, got.IsHTML)
	assert.Equal(t, int64(1700000000000), got.ReceivedAt.UnixMilli())
}

func TestConvertMessageFallsBackToSnippet(t *testing.T) {
	got := convertMessage(&gmail.Message{Id: "m1", Snippet: "short preview"})
	assert.Equal(t, "short preview", got.Body)
	assert.False(t, got.IsHTML)
}

func TestDecodeBodyAcceptsUnpadded(t *testing.T) {
	out, err := decodeBody(base64.RawURLEncoding.EncodeToString([]byte("hi!")))
	require.NoError(t, err)
	assert.Equal(t, "hi!", out)
}

func TestListRecent(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/v1/users/me/messages", r.URL.Path)
		assert.Equal(t, "INBOX", r.URL.Query().Get("labelIds"))
		assert.Equal(t, "10", r.URL.Query().Get("maxResults"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"m2","threadId":"t2"},{"id":"m1","threadId":"t1"}]}`))
	})

	refs, err := s.ListRecent(context.Background(), "INBOX", 10)
	require.NoError(t, err)
	assert.Equal(t, []mailbox.MessageRef{{ID: "m2", ThreadID: "t2"}, {ID: "m1", ThreadID: "t1"}}, refs)
}

func TestGetMessageNotFound(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found."}}`))
	})

	_, err := s.GetMessage(context.Background(), "gone")
	assert.ErrorIs(t, err, mailbox.ErrNotFound)
}

func TestGetHistorySinceSkipsDraftsAndDuplicates(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/v1/users/me/history", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("startHistoryId"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"history":[
			{"messagesAdded":[{"message":{"id":"m1","threadId":"t1","labelIds":["INBOX"]}}]},
			{"messagesAdded":[{"message":{"id":"d1","threadId":"t1","labelIds":["DRAFT"]}},
			                  {"message":{"id":"m1","threadId":"t1","labelIds":["INBOX"]}},
			                  {"message":{"id":"m2","threadId":"t2","labelIds":["INBOX","UNREAD"]}}]}
		],"historyId":"120"}`))
	})

	refs, err := s.GetHistorySince(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, []mailbox.MessageRef{{ID: "m1", ThreadID: "t1"}, {ID: "m2", ThreadID: "t2"}}, refs)
}
