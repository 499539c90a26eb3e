// Package gmail implements the mailbox provider on top of the Gmail API.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	classdomain "inboxpilot-backend/internal/classification/domain"
	"inboxpilot-backend/internal/mailbox"
	"inboxpilot-backend/pkg/googleauth"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const user = "me"

// Opener opens Gmail API sessions. All sessions share one circuit breaker.
type Opener struct {
	auth *googleauth.Service
	cb   *gobreaker.CircuitBreaker
}

func NewOpener(auth *googleauth.Service) *Opener {
	settings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		// Client errors say nothing about the health of the API.
		IsSuccessful: func(err error) bool {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) {
				return apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logrus.Warnf("[Gmail] circuit breaker %s: %s -> %s", name, from, to)
		},
	}
	return &Opener{auth: auth, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (o *Opener) Open(ctx context.Context, creds mailbox.Credentials) (mailbox.Session, error) {
	var onRefresh googleauth.TokenUpdateFunc
	if creds.OnTokenRefresh != nil {
		onRefresh = func(t *oauth2.Token) error { return creds.OnTokenRefresh(t) }
	}
	client := o.auth.HTTPClient(ctx, creds.AccessToken, creds.RefreshToken, onRefresh)
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return NewSession(srv, o.cb, creds.Email), nil
}

// Session is a mailbox.Session bound to one Gmail account.
type Session struct {
	srv   *gmail.Service
	cb    *gobreaker.CircuitBreaker
	email string

	labelsMu sync.Mutex
	labelIDs map[string]string // label name -> id, loaded lazily
}

// NewSession wraps an authorized Gmail service. cb may be nil.
func NewSession(srv *gmail.Service, cb *gobreaker.CircuitBreaker, email string) *Session {
	return &Session{srv: srv, cb: cb, email: email}
}

// call runs fn through the circuit breaker and maps 404 to
// mailbox.ErrNotFound.
func (s *Session) call(op string, fn func() error) error {
	var err error
	if s.cb != nil {
		_, err = s.cb.Execute(func() (interface{}, error) { return nil, fn() })
	} else {
		err = fn()
	}
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %s", mailbox.ErrNotFound, op)
	}
	return fmt.Errorf("unable to %s: %w", op, err)
}

func (s *Session) ListRecent(ctx context.Context, folder string, max int) ([]mailbox.MessageRef, error) {
	var resp *gmail.ListMessagesResponse
	err := s.call("list messages", func() error {
		var err error
		resp, err = s.srv.Users.Messages.List(user).LabelIds(folder).MaxResults(int64(max)).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	refs := make([]mailbox.MessageRef, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		refs = append(refs, mailbox.MessageRef{ID: m.Id, ThreadID: m.ThreadId})
	}
	return refs, nil
}

func (s *Session) GetMessage(ctx context.Context, id string) (*mailbox.Message, error) {
	var msg *gmail.Message
	err := s.call("get message", func() error {
		var err error
		msg, err = s.srv.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return convertMessage(msg), nil
}

func (s *Session) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	addIDs, err := s.resolveLabels(ctx, add, true)
	if err != nil {
		return err
	}
	removeIDs, err := s.resolveLabels(ctx, remove, false)
	if err != nil {
		return err
	}
	if len(addIDs) == 0 && len(removeIDs) == 0 {
		return nil
	}
	req := &gmail.ModifyMessageRequest{AddLabelIds: addIDs, RemoveLabelIds: removeIDs}
	return s.call("modify message labels", func() error {
		_, err := s.srv.Users.Messages.Modify(user, id, req).Context(ctx).Do()
		return err
	})
}

// resolveLabels maps label names to ids. System labels (INBOX, UNREAD, ...)
// are their own ids. Missing user labels are created when create is set and
// dropped otherwise.
func (s *Session) resolveLabels(ctx context.Context, names []string, create bool) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	s.labelsMu.Lock()
	defer s.labelsMu.Unlock()

	if s.labelIDs == nil {
		var resp *gmail.ListLabelsResponse
		err := s.call("list labels", func() error {
			var err error
			resp, err = s.srv.Users.Labels.List(user).Context(ctx).Do()
			return err
		})
		if err != nil {
			return nil, err
		}
		s.labelIDs = make(map[string]string, len(resp.Labels))
		for _, l := range resp.Labels {
			s.labelIDs[l.Name] = l.Id
		}
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		if id, ok := s.labelIDs[name]; ok {
			ids = append(ids, id)
			continue
		}
		if isSystemLabel(name) {
			ids = append(ids, name)
			continue
		}
		if !create {
			continue
		}
		color := classdomain.ColorForLabel(name)
		label := &gmail.Label{
			Name:                  name,
			LabelListVisibility:   "labelShow",
			MessageListVisibility: "show",
			Color: &gmail.LabelColor{
				BackgroundColor: color.Background,
				TextColor:       color.Text,
			},
		}
		var created *gmail.Label
		err := s.call("create label", func() error {
			var err error
			created, err = s.srv.Users.Labels.Create(user, label).Context(ctx).Do()
			return err
		})
		if err != nil {
			return nil, err
		}
		logrus.Infof("[Gmail] created label %q for %s", name, s.email)
		s.labelIDs[name] = created.Id
		ids = append(ids, created.Id)
	}
	return ids, nil
}

func isSystemLabel(name string) bool {
	return name != "" && name == strings.ToUpper(name) && !strings.Contains(name, " ")
}

func (s *Session) ListDrafts(ctx context.Context) ([]mailbox.DraftRef, error) {
	var refs []mailbox.DraftRef
	err := s.call("list drafts", func() error {
		return s.srv.Users.Drafts.List(user).Context(ctx).Pages(ctx, func(resp *gmail.ListDraftsResponse) error {
			for _, d := range resp.Drafts {
				ref := mailbox.DraftRef{ID: d.Id}
				if d.Message != nil {
					ref.ThreadID = d.Message.ThreadId
				}
				refs = append(refs, ref)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (s *Session) CreateDraft(ctx context.Context, req mailbox.DraftRequest) (*mailbox.DraftRef, error) {
	raw, err := mailbox.ComposeDraft(s.email, req)
	if err != nil {
		return nil, err
	}
	draft := &gmail.Draft{
		Message: &gmail.Message{
			Raw:      base64.URLEncoding.EncodeToString(raw),
			ThreadId: req.ThreadID,
		},
	}
	var created *gmail.Draft
	err = s.call("create draft", func() error {
		var err error
		created, err = s.srv.Users.Drafts.Create(user, draft).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	ref := &mailbox.DraftRef{ID: created.Id, ThreadID: req.ThreadID}
	if created.Message != nil && created.Message.ThreadId != "" {
		ref.ThreadID = created.Message.ThreadId
	}
	return ref, nil
}

// GetHistorySince returns messages added to INBOX after cursor, oldest
// first. Drafts and sent mail are skipped.
func (s *Session) GetHistorySince(ctx context.Context, cursor uint64) ([]mailbox.MessageRef, error) {
	var refs []mailbox.MessageRef
	seen := make(map[string]bool)
	err := s.call("list history", func() error {
		call := s.srv.Users.History.List(user).
			StartHistoryId(cursor).
			HistoryTypes("messageAdded").
			LabelId(mailbox.FolderInbox).
			Context(ctx)
		return call.Pages(ctx, func(resp *gmail.ListHistoryResponse) error {
			for _, h := range resp.History {
				for _, added := range h.MessagesAdded {
					m := added.Message
					if m == nil || seen[m.Id] || hasLabel(m.LabelIds, "DRAFT") || hasLabel(m.LabelIds, "SENT") {
						continue
					}
					seen[m.Id] = true
					refs = append(refs, mailbox.MessageRef{ID: m.Id, ThreadID: m.ThreadId})
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (s *Session) DeleteDraft(ctx context.Context, id string) error {
	return s.call("delete draft", func() error {
		return s.srv.Users.Drafts.Delete(user, id).Context(ctx).Do()
	})
}

func (s *Session) Send(ctx context.Context, out mailbox.OutgoingMessage) error {
	raw, err := mailbox.ComposeMessage(s.email, out)
	if err != nil {
		return err
	}
	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	return s.call("send message", func() error {
		_, err := s.srv.Users.Messages.Send(user, msg).Context(ctx).Do()
		return err
	})
}

// Watch replaces any existing watch with one on INBOX and returns the
// mailbox history id at the time of the call.
func (s *Session) Watch(ctx context.Context, topic string) (uint64, error) {
	// Only one push client is allowed per user; a missing watch is fine.
	if err := s.srv.Users.Stop(user).Context(ctx).Do(); err != nil {
		logrus.Debugf("[Gmail] stop before watch for %s: %v", s.email, err)
	}

	req := &gmail.WatchRequest{
		TopicName: topic,
		LabelIds:  []string{mailbox.FolderInbox},
	}
	var resp *gmail.WatchResponse
	err := s.call("watch mailbox", func() error {
		var err error
		resp, err = s.srv.Users.Watch(user, req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return 0, err
	}
	logrus.Infof("[Gmail] watch started for %s on %s, expiration %d, historyId %d", s.email, topic, resp.Expiration, resp.HistoryId)
	return resp.HistoryId, nil
}

func (s *Session) Stop(ctx context.Context) error {
	return s.call("stop mailbox watch", func() error {
		return s.srv.Users.Stop(user).Context(ctx).Do()
	})
}

// SentSnippets returns the snippets of up to max messages sent in the last
// five years.
func (s *Session) SentSnippets(ctx context.Context, max int) ([]string, error) {
	after := time.Now().AddDate(-5, 0, 0).Format("2006/01/02")
	var resp *gmail.ListMessagesResponse
	err := s.call("list sent messages", func() error {
		var err error
		resp, err = s.srv.Users.Messages.List(user).
			LabelIds(mailbox.FolderSent).
			Q("after:" + after).
			MaxResults(int64(max)).
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	snippets := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		var full *gmail.Message
		err := s.call("get sent message", func() error {
			var err error
			full, err = s.srv.Users.Messages.Get(user, m.Id).Format("minimal").Context(ctx).Do()
			return err
		})
		if err != nil {
			if errors.Is(err, mailbox.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if full.Snippet != "" {
			snippets = append(snippets, full.Snippet)
		}
	}
	return snippets, nil
}

func (s *Session) Close() error { return nil }

func convertMessage(msg *gmail.Message) *mailbox.Message {
	out := &mailbox.Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
	}
	if msg.InternalDate > 0 {
		out.ReceivedAt = time.UnixMilli(msg.InternalDate)
	}
	if msg.Payload == nil {
		out.Body = msg.Snippet
		return out
	}
	out.Subject = getHeader(msg.Payload.Headers, "Subject")
	out.From = getHeader(msg.Payload.Headers, "From")
	out.MessageID = getHeader(msg.Payload.Headers, "Message-ID")
	out.Body, out.IsHTML = getEmailBody(msg.Payload)
	if out.Body == "" {
		out.Body = msg.Snippet
	}
	return out
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

// getEmailBody prefers the HTML part and falls back to plain text.
func getEmailBody(payload *gmail.MessagePart) (string, bool) {
	if payload.Body != nil && payload.Body.Data != "" {
		if data, err := decodeBody(payload.Body.Data); err == nil {
			return data, payload.MimeType == "text/html"
		}
	}

	var htmlBody, plainBody string
	var findBody func(parts []*gmail.MessagePart)
	findBody = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.Body != nil && part.Body.Data != "" {
				switch part.MimeType {
				case "text/html":
					if data, err := decodeBody(part.Body.Data); err == nil {
						htmlBody = data
					}
				case "text/plain":
					if data, err := decodeBody(part.Body.Data); err == nil {
						plainBody = data
					}
				}
			}
			if len(part.Parts) > 0 {
				findBody(part.Parts)
			}
		}
	}
	findBody(payload.Parts)

	if htmlBody != "" {
		return htmlBody, true
	}
	return plainBody, false
}

func decodeBody(data string) (string, error) {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(data)
	}
	return string(b), err
}

func hasLabel(labels []string, labelID string) bool {
	for _, label := range labels {
		if label == labelID {
			return true
		}
	}
	return false
}
