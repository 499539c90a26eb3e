package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	accountdomain "inboxpilot-backend/internal/account/domain"
	"inboxpilot-backend/internal/mailbox"
	"inboxpilot-backend/pkg/ai"
	"inboxpilot-backend/pkg/calendar"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	extractionMaxTokens   = 1000
	extractionTemperature = 0
	chatMaxTokens         = 1000
	chatTemperature       = 0.7
	retryMaxTokens        = 1500
	retryTemperature      = 0
)

// commandUsecase implements CommandUsecase interface
type commandUsecase struct {
	accounts AccountStore
	llm      ai.CompletionClient
	mail     mailbox.Opener
	calendar calendar.Opener
	now      func() time.Time
}

// NewCommandUsecase creates a new instance of commandUsecase. cal may be nil
// when calendar access is not configured.
func NewCommandUsecase(accounts AccountStore, llm ai.CompletionClient, mail mailbox.Opener, cal calendar.Opener, now func() time.Time) CommandUsecase {
	if now == nil {
		now = time.Now
	}
	return &commandUsecase{
		accounts: accounts,
		llm:      llm,
		mail:     mail,
		calendar: cal,
		now:      now,
	}
}

func (u *commandUsecase) Chat(ctx context.Context, accountID, prompt string) (*Reply, error) {
	acc, err := u.accounts.FindByID(accountID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrAccountNotFound
	}

	extraction, err := u.llm.Complete(ctx, fill(extractionTemplate, prompt), extractionMaxTokens, extractionTemperature)
	if err != nil {
		logrus.Warnf("[Command] Extraction failed, answering as chat: %v", err)
		extraction = "NONE"
	}
	extraction = stripFence(strings.TrimSpace(extraction))

	if strings.EqualFold(extraction, "NONE") {
		return u.chat(ctx, chatSystem, prompt)
	}
	if strings.Count(extraction, "{") != strings.Count(extraction, "}") {
		logrus.Warn("[Command] Truncated instruction, answering as chat")
		return u.chat(ctx, "", prompt)
	}

	ins, err := parseInstruction(extraction)
	if errors.Is(err, errNoInstruction) {
		return &Reply{Response: "Missing function or parameters in extracted details."}, nil
	}
	if err != nil {
		logrus.Warnf("[Command] Could not parse instruction: %v", err)
		if looksLikeEmail(prompt) {
			if reply, ok := u.retryEmail(ctx, acc, prompt); ok {
				return reply, nil
			}
		}
		return u.chat(ctx, emailChatSystem, prompt)
	}

	return u.execute(ctx, acc, ins), nil
}

// retryEmail asks again with an email-only prompt. ok is false when the
// second answer is not usable either.
func (u *commandUsecase) retryEmail(ctx context.Context, acc *accountdomain.Account, prompt string) (*Reply, bool) {
	text, err := u.llm.Complete(ctx, fill(emailRetryTemplate, prompt), retryMaxTokens, retryTemperature)
	if err != nil {
		logrus.Warnf("[Command] Email retry failed: %v", err)
		return nil, false
	}
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, false
	}
	ins, err := parseInstruction(text[start : end+1])
	if err != nil {
		logrus.Warnf("[Command] Email retry returned unusable JSON: %v", err)
		return nil, false
	}
	return u.email(ctx, acc, ins), true
}

func (u *commandUsecase) chat(ctx context.Context, system, prompt string) (*Reply, error) {
	answer, err := u.llm.Complete(ctx, withSystem(system, prompt), chatMaxTokens, chatTemperature)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	return &Reply{Response: strings.TrimSpace(answer)}, nil
}

func (u *commandUsecase) execute(ctx context.Context, acc *accountdomain.Account, ins *Instruction) *Reply {
	log := logrus.WithFields(logrus.Fields{"account": acc.ID, "function": ins.Function})
	log.Info("[Command] Executing instruction")

	switch ins.Function {
	case FuncSendEmail, FuncDraftEmail:
		return u.email(ctx, acc, ins)
	case FuncCreateEvent:
		return u.createEvent(ctx, acc, ins)
	case FuncUpdateEvent:
		return u.updateEvent(ctx, acc, ins)
	case FuncDeleteEvent:
		return u.deleteEvent(ctx, acc, ins)
	default:
		log.Warn("[Command] Unknown function")
		return &Reply{Response: fmt.Sprintf("Unsupported function: %s", ins.Function)}
	}
}

func (u *commandUsecase) email(ctx context.Context, acc *accountdomain.Account, ins *Instruction) *Reply {
	if ins.Function != FuncSendEmail && ins.Function != FuncDraftEmail {
		return &Reply{Response: fmt.Sprintf("Unsupported function: %s", ins.Function)}
	}
	for _, key := range []string{"to", "subject", "body"} {
		if !ins.has(key) {
			return &Reply{Response: "Missing required email parameters. Required parameters: to, subject, body."}
		}
	}
	to, subject, body := ins.param("to"), ins.param("subject"), ins.param("body")
	cc := splitList(ins.param("cc"))

	sess, err := u.mail.Open(ctx, acc.Credentials(u.onRefresh(acc.ID)))
	if err != nil {
		return &Reply{Response: fmt.Sprintf("Error processing email request: %v", err)}
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logrus.Warnf("[Command] close failed: %v", err)
		}
	}()

	if ins.Function == FuncSendEmail {
		err := sess.Send(ctx, mailbox.OutgoingMessage{To: splitList(to), Cc: cc, Subject: subject, Body: body})
		if err != nil {
			logrus.Errorf("[Command] Send failed: %v", err)
			return &Reply{Response: fmt.Sprintf("Error processing email request: %v", err)}
		}
		return &Reply{Response: fmt.Sprintf("Email sent successfully to %s.", to), Action: FuncSendEmail}
	}

	draft, err := sess.CreateDraft(ctx, mailbox.DraftRequest{To: to, Cc: cc, Subject: subject, Body: body})
	if err != nil {
		logrus.Errorf("[Command] Draft failed: %v", err)
		return &Reply{Response: fmt.Sprintf("Error processing email request: %v", err)}
	}
	return &Reply{
		Response: fmt.Sprintf("Draft email created successfully to %s. Draft ID: %s", to, draft.ID),
		Action:   FuncDraftEmail,
		ID:       draft.ID,
	}
}

func (u *commandUsecase) openCalendar(ctx context.Context, acc *accountdomain.Account) (calendar.Client, error) {
	if u.calendar == nil {
		return nil, calendar.ErrUnsupported
	}
	return u.calendar.Open(ctx, acc.Credentials(u.onRefresh(acc.ID)))
}

func (u *commandUsecase) createEvent(ctx context.Context, acc *accountdomain.Account, ins *Instruction) *Reply {
	summary, startRaw := ins.param("summary"), ins.param("start_time")
	if summary == "" || startRaw == "" {
		return &Reply{Response: "Missing required calendar event parameters for creating an event (summary, start_time, end_time)."}
	}

	now := u.now().UTC()
	start, err := parseDateTime(startRaw, now)
	if err != nil {
		return &Reply{Response: fmt.Sprintf("Error creating event: invalid start_time: %v", err)}
	}
	if start.Before(now) {
		return &Reply{Response: "Error creating event: the event start time is in the past. Please specify a future time."}
	}
	end := start.Add(time.Hour)
	if endRaw := ins.param("end_time"); endRaw != "" {
		if end, err = parseDateTime(endRaw, now); err != nil {
			return &Reply{Response: fmt.Sprintf("Error creating event: invalid end_time: %v", err)}
		}
	}

	client, err := u.openCalendar(ctx, acc)
	if err != nil {
		return &Reply{Response: fmt.Sprintf("Error creating event: %v", err)}
	}
	ev, err := client.CreateEvent(ctx, calendar.Event{
		Summary:     summary,
		Description: ins.param("description"),
		Location:    ins.param("location"),
		Start:       start,
		End:         end,
		Attendees:   validAttendees(ins.param("attendees")),
	})
	if err != nil {
		logrus.Errorf("[Command] Create event failed: %v", err)
		return &Reply{Response: fmt.Sprintf("Error creating event: %v", err)}
	}
	return &Reply{Response: fmt.Sprintf("Event created successfully with ID: %s", ev.ID), Action: FuncCreateEvent, ID: ev.ID}
}

func (u *commandUsecase) updateEvent(ctx context.Context, acc *accountdomain.Account, ins *Instruction) *Reply {
	id := ins.param("event_id")
	if id == "" {
		return &Reply{Response: "Missing event_id for updating the event."}
	}

	now := u.now().UTC()
	ev := calendar.Event{ID: id}
	if v := ins.optional("summary"); v != nil {
		ev.Summary = *v
	}
	if v := ins.optional("description"); v != nil {
		ev.Description = *v
	}
	if v := ins.optional("location"); v != nil {
		ev.Location = *v
	}
	if v := ins.optional("start_time"); v != nil && *v != "" {
		t, err := parseDateTime(*v, now)
		if err != nil {
			return &Reply{Response: fmt.Sprintf("Error updating event: invalid start_time: %v", err)}
		}
		ev.Start = t
	}
	if v := ins.optional("end_time"); v != nil && *v != "" {
		t, err := parseDateTime(*v, now)
		if err != nil {
			return &Reply{Response: fmt.Sprintf("Error updating event: invalid end_time: %v", err)}
		}
		ev.End = t
	}
	if v := ins.optional("attendees"); v != nil {
		ev.Attendees = validAttendees(*v)
	}

	client, err := u.openCalendar(ctx, acc)
	if err != nil {
		return &Reply{Response: fmt.Sprintf("Error updating event: %v", err)}
	}
	updated, err := client.UpdateEvent(ctx, ev)
	if err != nil {
		logrus.Errorf("[Command] Update event failed: %v", err)
		return &Reply{Response: fmt.Sprintf("Error updating event: %v", err)}
	}
	return &Reply{Response: fmt.Sprintf("Event updated successfully with ID: %s", updated.ID), Action: FuncUpdateEvent, ID: updated.ID}
}

func (u *commandUsecase) deleteEvent(ctx context.Context, acc *accountdomain.Account, ins *Instruction) *Reply {
	id := ins.param("event_id")
	if id == "" {
		return &Reply{Response: "Missing event_id for deleting the event."}
	}
	client, err := u.openCalendar(ctx, acc)
	if err != nil {
		return &Reply{Response: fmt.Sprintf("Error deleting event: %v", err)}
	}
	if err := client.DeleteEvent(ctx, id); err != nil {
		logrus.Errorf("[Command] Delete event failed: %v", err)
		return &Reply{Response: fmt.Sprintf("Error deleting event: %v", err)}
	}
	return &Reply{Response: "Event deleted successfully.", Action: FuncDeleteEvent, ID: id}
}

func (u *commandUsecase) onRefresh(accountID string) func(*oauth2.Token) error {
	return func(tok *oauth2.Token) error {
		return u.accounts.UpdateTokens(accountID, tok.AccessToken, tok.RefreshToken, tok.Expiry)
	}
}

// stripFence removes a surrounding markdown code fence.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
