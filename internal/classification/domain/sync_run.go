package domain

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Trigger says what started a sync pass.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerPush   Trigger = "push"
	TriggerPoll   Trigger = "poll"
	TriggerSweep  Trigger = "sweep"
)

// Outcome is what happened to one message during a pass.
type Outcome string

const (
	OutcomeClassified    Outcome = "classified"
	OutcomeUnrouted      Outcome = "unrouted"
	OutcomeThreadSkipped Outcome = "thread_processed"
	OutcomeNotFound      Outcome = "not_found"
	OutcomeFailed        Outcome = "failed"
)

// Error kinds reported per message.
const (
	ErrorKindProvider        = "provider"
	ErrorKindCompletion      = "completion"
	ErrorKindMalformedOutput = "malformed_output"
	ErrorKindIDMismatch      = "id_mismatch"
	ErrorKindDraft           = "draft"
)

// MessageResult is one line of a pass report.
type MessageResult struct {
	MessageID       string   `json:"emailId"`
	ThreadID        string   `json:"threadId,omitempty"`
	Outcome         Outcome  `json:"outcome"`
	Category        Category `json:"category,omitempty"`
	Label           string   `json:"label,omitempty"`
	DraftID         string   `json:"draftId,omitempty"`
	DraftSuppressed bool     `json:"draftSuppressed,omitempty"`
	ErrorKind       string   `json:"errorKind,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// PassReport is returned by every committed pass.
type PassReport struct {
	AccountID       string          `json:"accountId"`
	Trigger         Trigger         `json:"trigger"`
	Results         []MessageResult `json:"results"`
	Classified      int             `json:"classified"`
	Failed          int             `json:"failed"`
	DraftsCreated   int             `json:"draftsCreated"`
	PromotionsSwept int             `json:"promotionsSwept"`
	CursorBefore    uint64          `json:"cursorBefore,omitempty"`
	CursorAfter     uint64          `json:"cursorAfter,omitempty"`
	Note            string          `json:"note,omitempty"`
}

// Errors returns the per-message error lines of the report.
func (r *PassReport) Errors() []string {
	var out []string
	for _, res := range r.Results {
		if res.Error != "" {
			out = append(out, res.MessageID+": "+res.Error)
		}
	}
	return out
}

// StringArray is a custom type to handle JSON array in GORM
type StringArray []string

// Value implements driver.Valuer
func (a StringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (a *StringArray) Scan(value interface{}) error {
	data, ok := columnBytes(value)
	if !ok || len(data) == 0 {
		*a = []string{}
		return nil
	}
	return json.Unmarshal(data, a)
}

// SyncRun is the stored summary of a committed pass.
type SyncRun struct {
	ID              string      `json:"id" gorm:"primaryKey"`
	AccountID       string      `json:"account_id" gorm:"index;not null"`
	Trigger         Trigger     `json:"trigger" gorm:"not null"`
	Classified      int         `json:"classified"`
	Failed          int         `json:"failed"`
	DraftsCreated   int         `json:"drafts_created"`
	PromotionsSwept int         `json:"promotions_swept"`
	CursorBefore    uint64      `json:"cursor_before"`
	CursorAfter     uint64      `json:"cursor_after"`
	Errors          StringArray `json:"errors,omitempty" gorm:"type:text"`
	StartedAt       time.Time   `json:"started_at"`
	FinishedAt      time.Time   `json:"finished_at"`
	CreatedAt       time.Time   `json:"created_at"`
}

// NewSyncRun summarizes a report for storage. The id is assigned by the
// repository.
func NewSyncRun(r *PassReport, startedAt, finishedAt time.Time) *SyncRun {
	return &SyncRun{
		AccountID:       r.AccountID,
		Trigger:         r.Trigger,
		Classified:      r.Classified,
		Failed:          r.Failed,
		DraftsCreated:   r.DraftsCreated,
		PromotionsSwept: r.PromotionsSwept,
		CursorBefore:    r.CursorBefore,
		CursorAfter:     r.CursorAfter,
		Errors:          StringArray(r.Errors()),
		StartedAt:       startedAt,
		FinishedAt:      finishedAt,
	}
}
