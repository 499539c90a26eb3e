// Package mailbox defines the mail provider contract used by the sync
// pipeline. Concrete providers live in pkg/gmail (Gmail API) and pkg/imap
// (Gmail over IMAP with an app password).
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

var (
	// ErrNotFound is returned when a message, draft or history cursor no
	// longer exists on the provider side.
	ErrNotFound = errors.New("mailbox: not found")
	// ErrPushUnsupported is returned by Watch on providers without push.
	ErrPushUnsupported = errors.New("mailbox: push notifications not supported")
)

// Folder names understood by ListRecent.
const (
	FolderInbox = "INBOX"
	FolderSent  = "SENT"
)

// Account kinds.
const (
	KindGoogle = "google"
	KindIMAP   = "imap"
)

// MessageRef identifies a message without its content.
type MessageRef struct {
	ID       string
	ThreadID string
}

// Message is a read-only view of one mail.
type Message struct {
	ID         string
	ThreadID   string
	MessageID  string // RFC 5322 Message-ID header, used for replies
	Subject    string
	From       string
	Body       string
	IsHTML     bool
	ReceivedAt time.Time
}

// DraftRef identifies a draft and the thread it belongs to.
type DraftRef struct {
	ID       string
	ThreadID string
}

// DraftRequest describes a reply draft to create.
type DraftRequest struct {
	To        string
	Cc        []string
	Subject   string
	Body      string
	ThreadID  string
	InReplyTo string
}

// OutgoingMessage is a mail to send right away.
type OutgoingMessage struct {
	To      []string
	Cc      []string
	Subject string
	Body    string
}

// Provider is the set of operations the sync pipeline needs.
type Provider interface {
	ListRecent(ctx context.Context, folder string, max int) ([]MessageRef, error)
	GetMessage(ctx context.Context, id string) (*Message, error)
	ModifyLabels(ctx context.Context, id string, add, remove []string) error
	ListDrafts(ctx context.Context) ([]DraftRef, error)
	CreateDraft(ctx context.Context, req DraftRequest) (*DraftRef, error)
	GetHistorySince(ctx context.Context, cursor uint64) ([]MessageRef, error)
}

// Session is an open connection to one account's mailbox.
type Session interface {
	Provider
	DeleteDraft(ctx context.Context, id string) error
	Send(ctx context.Context, msg OutgoingMessage) error
	// Watch arms push notifications and returns the current history cursor.
	Watch(ctx context.Context, topic string) (uint64, error)
	Stop(ctx context.Context) error
	// SentSnippets returns short excerpts of recently sent mail.
	SentSnippets(ctx context.Context, max int) ([]string, error)
	Close() error
}

// Credentials carry what a provider needs to open a session.
type Credentials struct {
	Kind         string
	Email        string
	AccessToken  string
	RefreshToken string
	AppPassword  string
	// OnTokenRefresh is called when the OAuth token source hands out a new
	// access token.
	OnTokenRefresh func(*oauth2.Token) error
}

// Opener opens sessions for one kind of account.
type Opener interface {
	Open(ctx context.Context, creds Credentials) (Session, error)
}

// Openers dispatches on Credentials.Kind.
type Openers map[string]Opener

func (o Openers) Open(ctx context.Context, creds Credentials) (Session, error) {
	opener, ok := o[creds.Kind]
	if !ok || opener == nil {
		return nil, fmt.Errorf("mailbox: no provider for account kind %q", creds.Kind)
	}
	return opener.Open(ctx, creds)
}
