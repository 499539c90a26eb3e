// Package imapmail implements the mailbox provider for Gmail accounts
// connected with an app password over IMAP and SMTP.
package imapmail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"inboxpilot-backend/internal/mailbox"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/sirupsen/logrus"
)

const (
	DefaultIMAPAddress = "imap.gmail.com:993"
	DefaultSMTPAddress = "smtp.gmail.com:465"

	folderDrafts = "[Gmail]/Drafts"
	folderSent   = "[Gmail]/Sent Mail"

	snippetLength = 200
)

type Config struct {
	IMAPAddress string
	SMTPAddress string
}

type Opener struct {
	cfg Config
}

func NewOpener(cfg Config) *Opener {
	if cfg.IMAPAddress == "" {
		cfg.IMAPAddress = DefaultIMAPAddress
	}
	if cfg.SMTPAddress == "" {
		cfg.SMTPAddress = DefaultSMTPAddress
	}
	return &Opener{cfg: cfg}
}

// Open logs in and selects INBOX.
func (o *Opener) Open(ctx context.Context, creds mailbox.Credentials) (mailbox.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	password := strings.ReplaceAll(creds.AppPassword, " ", "")
	if creds.Email == "" || password == "" {
		return nil, errors.New("imap: email and app password are required")
	}

	host, _, _ := net.SplitHostPort(o.cfg.IMAPAddress)
	c, err := client.DialTLS(o.cfg.IMAPAddress, &tls.Config{ServerName: host})
	if err != nil {
		return nil, fmt.Errorf("imap: dial failed: %w", err)
	}
	if err := c.Login(creds.Email, password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap: login failed: %w", err)
	}

	s := &Session{
		c:        c,
		email:    creds.Email,
		password: password,
		smtpAddr: o.cfg.SMTPAddress,
	}
	if err := s.selectFolder(mailbox.FolderInbox); err != nil {
		_ = c.Logout()
		return nil, err
	}
	return s, nil
}

// Session is one logged-in IMAP connection. Message ids are INBOX UIDs and
// thread ids are Gmail X-GM-THRID values.
type Session struct {
	mu       sync.Mutex
	c        *client.Client
	email    string
	password string
	smtpAddr string
	selected string
}

func (s *Session) selectFolder(name string) error {
	if s.selected == name {
		return nil
	}
	if _, err := s.c.Select(name, false); err != nil {
		return fmt.Errorf("imap: select %s: %w", name, err)
	}
	s.selected = name
	return nil
}

func folderName(folder string) string {
	switch folder {
	case mailbox.FolderSent:
		return folderSent
	case "", mailbox.FolderInbox:
		return mailbox.FolderInbox
	default:
		return folder
	}
}

type fetched struct {
	uid      uint32
	threadID string
	raw      []byte
}

func (s *Session) fetch(seqSet *imap.SeqSet, byUID, withBody bool) ([]fetched, error) {
	items := []imap.FetchItem{imap.FetchUid, fetchThreadID}
	section := &imap.BodySectionName{Peek: true}
	if withBody {
		items = append(items, section.FetchItem())
	}

	ch := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		if byUID {
			done <- s.c.UidFetch(seqSet, items, ch)
		} else {
			done <- s.c.Fetch(seqSet, items, ch)
		}
	}()

	var out []fetched
	for msg := range ch {
		f := fetched{uid: msg.Uid, threadID: parseIDValue(msg.Items[fetchThreadID])}
		if withBody {
			if lit := msg.GetBody(section); lit != nil {
				raw, err := io.ReadAll(lit)
				if err == nil {
					f.raw = raw
				}
			}
		}
		out = append(out, f)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap: fetch failed: %w", err)
	}
	return out, nil
}

// latest fetches the last n messages of the selected folder, newest first.
func (s *Session) latest(folder string, n int, withBody bool) ([]fetched, error) {
	if err := s.selectFolder(folder); err != nil {
		return nil, err
	}
	status := s.c.Mailbox()
	if status == nil || status.Messages == 0 || n <= 0 {
		return nil, nil
	}
	from := uint32(1)
	if status.Messages > uint32(n) {
		from = status.Messages - uint32(n) + 1
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, status.Messages)

	msgs, err := s.fetch(seqSet, false, withBody)
	if err != nil {
		return nil, err
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].uid > msgs[j].uid })
	return msgs, nil
}

func (s *Session) ListRecent(ctx context.Context, folder string, max int) ([]mailbox.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.latest(folderName(folder), max, false)
	if err != nil {
		return nil, err
	}
	refs := make([]mailbox.MessageRef, 0, len(msgs))
	for _, m := range msgs {
		refs = append(refs, mailbox.MessageRef{ID: formatUID(m.uid), ThreadID: m.threadID})
	}
	return refs, nil
}

func (s *Session) GetMessage(ctx context.Context, id string) (*mailbox.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	uid, err := parseUID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mailbox.ErrNotFound, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.selectFolder(mailbox.FolderInbox); err != nil {
		return nil, err
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)
	msgs, err := s.fetch(seqSet, true, true)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 || msgs[0].raw == nil {
		return nil, fmt.Errorf("%w: message %s", mailbox.ErrNotFound, id)
	}

	msg, err := mailbox.ParseRaw(msgs[0].raw)
	if err != nil {
		return nil, err
	}
	msg.ID = id
	msg.ThreadID = msgs[0].threadID
	return msg, nil
}

// ModifyLabels maps UNREAD to the \Seen flag and everything else to Gmail
// labels.
func (s *Session) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	uid, err := parseUID(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.selectFolder(mailbox.FolderInbox); err != nil {
		return err
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	addLabels, markUnread := splitUnread(add)
	removeLabels, markRead := splitUnread(remove)

	if markRead || markUnread {
		var op imap.FlagsOp = imap.AddFlags
		if markUnread {
			op = imap.RemoveFlags
		}
		item := imap.FormatFlagsOp(op, true)
		if err := s.c.UidStore(seqSet, item, []interface{}{imap.SeenFlag}, nil); err != nil {
			return fmt.Errorf("imap: store flags: %w", err)
		}
	}
	if len(addLabels) > 0 {
		if _, err := s.c.Execute(&storeLabels{SeqSet: seqSet, Add: true, Labels: addLabels}, nil); err != nil {
			return fmt.Errorf("imap: add labels: %w", err)
		}
	}
	if len(removeLabels) > 0 {
		if _, err := s.c.Execute(&storeLabels{SeqSet: seqSet, Labels: removeLabels}, nil); err != nil {
			return fmt.Errorf("imap: remove labels: %w", err)
		}
	}
	return nil
}

func splitUnread(labels []string) ([]string, bool) {
	var out []string
	unread := false
	for _, l := range labels {
		if l == "UNREAD" {
			unread = true
			continue
		}
		out = append(out, l)
	}
	return out, unread
}

func (s *Session) ListDrafts(ctx context.Context) ([]mailbox.DraftRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.selectFolder(folderDrafts); err != nil {
		return nil, err
	}
	status := s.c.Mailbox()
	if status == nil || status.Messages == 0 {
		return nil, nil
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(1, status.Messages)
	msgs, err := s.fetch(seqSet, false, false)
	if err != nil {
		return nil, err
	}
	refs := make([]mailbox.DraftRef, 0, len(msgs))
	for _, m := range msgs {
		refs = append(refs, mailbox.DraftRef{ID: formatUID(m.uid), ThreadID: m.threadID})
	}
	return refs, nil
}

// CreateDraft appends the reply to the drafts folder. Gmail threads it via
// In-Reply-To; the returned id is the newest UID in the drafts folder.
func (s *Session) CreateDraft(ctx context.Context, req mailbox.DraftRequest) (*mailbox.DraftRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := mailbox.ComposeDraft(s.email, req)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.c.Append(folderDrafts, []string{imap.DraftFlag}, time.Now(), bytes.NewBuffer(raw)); err != nil {
		return nil, fmt.Errorf("imap: append draft: %w", err)
	}

	ref := &mailbox.DraftRef{ThreadID: req.ThreadID}
	// Force a fresh SELECT so the appended message is visible.
	s.selected = ""
	msgs, err := s.latest(folderDrafts, 1, false)
	if err != nil {
		logrus.Warnf("[IMAP] draft created for %s but its uid is unknown: %v", s.email, err)
		return ref, nil
	}
	if len(msgs) > 0 {
		ref.ID = formatUID(msgs[0].uid)
	}
	return ref, nil
}

// GetHistorySince treats the cursor as the last seen INBOX UID.
func (s *Session) GetHistorySince(ctx context.Context, cursor uint64) ([]mailbox.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.selectFolder(mailbox.FolderInbox); err != nil {
		return nil, err
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(uint32(cursor)+1, 0)
	msgs, err := s.fetch(seqSet, true, false)
	if err != nil {
		return nil, err
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].uid < msgs[j].uid })

	var refs []mailbox.MessageRef
	for _, m := range msgs {
		// "n:*" always matches the last message, even below n.
		if uint64(m.uid) <= cursor {
			continue
		}
		refs = append(refs, mailbox.MessageRef{ID: formatUID(m.uid), ThreadID: m.threadID})
	}
	return refs, nil
}

func (s *Session) DeleteDraft(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	uid, err := parseUID(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.selectFolder(folderDrafts); err != nil {
		return err
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := s.c.UidStore(seqSet, item, []interface{}{imap.DeletedFlag}, nil); err != nil {
		return fmt.Errorf("imap: flag draft deleted: %w", err)
	}
	if err := s.c.Expunge(nil); err != nil {
		return fmt.Errorf("imap: expunge drafts: %w", err)
	}
	return nil
}

// Send delivers through SMTP with implicit TLS.
func (s *Session) Send(ctx context.Context, out mailbox.OutgoingMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	recipients := mailbox.Recipients(out)
	if len(recipients) == 0 {
		return errors.New("smtp: at least one recipient is required")
	}
	raw, err := mailbox.ComposeMessage(s.email, out)
	if err != nil {
		return err
	}

	host, _, _ := net.SplitHostPort(s.smtpAddr)
	conn, err := tls.Dial("tcp", s.smtpAddr, &tls.Config{ServerName: host})
	if err != nil {
		return fmt.Errorf("smtp: TLS dial failed: %w", err)
	}
	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Auth(sasl.NewPlainClient("", s.email, s.password)); err != nil {
		return fmt.Errorf("smtp: auth failed: %w", err)
	}
	if err := c.Mail(s.email, nil); err != nil {
		return fmt.Errorf("smtp: MAIL FROM failed: %w", err)
	}
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("smtp: RCPT TO %q failed: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp: DATA failed: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("smtp: writing message failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp: finalizing message failed: %w", err)
	}
	return c.Quit()
}

func (s *Session) Watch(ctx context.Context, topic string) (uint64, error) {
	return 0, mailbox.ErrPushUnsupported
}

func (s *Session) Stop(ctx context.Context) error { return nil }

func (s *Session) SentSnippets(ctx context.Context, max int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.latest(folderSent, max, true)
	if err != nil {
		return nil, err
	}
	snippets := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.raw == nil {
			continue
		}
		parsed, err := mailbox.ParseRaw(m.raw)
		if err != nil {
			continue
		}
		text := mailbox.PlainText(parsed)
		if r := []rune(text); len(r) > snippetLength {
			text = string(r[:snippetLength])
		}
		if text != "" {
			snippets = append(snippets, text)
		}
	}
	return snippets, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.Logout()
}
