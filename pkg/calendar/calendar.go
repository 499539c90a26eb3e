// Package calendar creates, updates and deletes events in the primary Google
// Calendar of an account.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"inboxpilot-backend/internal/mailbox"
	"inboxpilot-backend/pkg/googleauth"

	"golang.org/x/oauth2"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const primary = "primary"

// ErrUnsupported is returned for accounts that did not grant calendar
// access.
var ErrUnsupported = errors.New("calendar: account has no calendar access")

// Event is the subset of a calendar event the backend edits.
type Event struct {
	ID          string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Attendees   []string
	HTMLLink    string
}

// Client edits one account's calendar.
type Client interface {
	CreateEvent(ctx context.Context, ev Event) (*Event, error)
	UpdateEvent(ctx context.Context, ev Event) (*Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// Opener builds a Client for an account.
type Opener interface {
	Open(ctx context.Context, creds mailbox.Credentials) (Client, error)
}

type googleOpener struct {
	auth *googleauth.Service
}

func NewOpener(auth *googleauth.Service) Opener {
	return &googleOpener{auth: auth}
}

func (o *googleOpener) Open(ctx context.Context, creds mailbox.Credentials) (Client, error) {
	if creds.Kind != mailbox.KindGoogle {
		return nil, ErrUnsupported
	}
	var onRefresh googleauth.TokenUpdateFunc
	if creds.OnTokenRefresh != nil {
		onRefresh = func(t *oauth2.Token) error { return creds.OnTokenRefresh(t) }
	}
	httpClient := o.auth.HTTPClient(ctx, creds.AccessToken, creds.RefreshToken, onRefresh)
	srv, err := calendarapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}
	return &googleClient{srv: srv}, nil
}

type googleClient struct {
	srv *calendarapi.Service
}

func (c *googleClient) CreateEvent(ctx context.Context, ev Event) (*Event, error) {
	created, err := c.srv.Events.Insert(primary, toAPI(ev)).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return nil, wrap("create event", err)
	}
	return fromAPI(created), nil
}

// UpdateEvent patches only the fields that are set.
func (c *googleClient) UpdateEvent(ctx context.Context, ev Event) (*Event, error) {
	if ev.ID == "" {
		return nil, errors.New("calendar: event id is required")
	}
	updated, err := c.srv.Events.Patch(primary, ev.ID, toAPI(ev)).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return nil, wrap("update event", err)
	}
	return fromAPI(updated), nil
}

func (c *googleClient) DeleteEvent(ctx context.Context, id string) error {
	if err := c.srv.Events.Delete(primary, id).SendUpdates("all").Context(ctx).Do(); err != nil {
		return wrap("delete event", err)
	}
	return nil
}

func wrap(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return fmt.Errorf("%w: %s", mailbox.ErrNotFound, op)
	}
	return fmt.Errorf("unable to %s: %w", op, err)
}

func toAPI(ev Event) *calendarapi.Event {
	out := &calendarapi.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
	}
	if !ev.Start.IsZero() {
		out.Start = &calendarapi.EventDateTime{DateTime: ev.Start.UTC().Format(time.RFC3339), TimeZone: "UTC"}
	}
	if !ev.End.IsZero() {
		out.End = &calendarapi.EventDateTime{DateTime: ev.End.UTC().Format(time.RFC3339), TimeZone: "UTC"}
	}
	for _, a := range ev.Attendees {
		out.Attendees = append(out.Attendees, &calendarapi.EventAttendee{Email: a})
	}
	return out
}

func fromAPI(ev *calendarapi.Event) *Event {
	out := &Event{
		ID:          ev.Id,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		HTMLLink:    ev.HtmlLink,
	}
	if ev.Start != nil {
		out.Start, _ = time.Parse(time.RFC3339, ev.Start.DateTime)
	}
	if ev.End != nil {
		out.End, _ = time.Parse(time.RFC3339, ev.End.DateTime)
	}
	for _, a := range ev.Attendees {
		out.Attendees = append(out.Attendees, a.Email)
	}
	return out
}
