package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Record is the structured output the model returns for one message.
type Record struct {
	EmailID  string   `json:"emailId"`
	Category Category `json:"category"`
	Sender   Sender   `json:"sender"`
	Content  Content  `json:"content"`
}

// Sender describes who sent the message as judged by the model.
type Sender struct {
	Name string `json:"name"`
	Type Text   `json:"type,omitempty"`
}

// Content holds the category specific fields. Only the fields relevant to
// the record's category are expected to be set.
type Content struct {
	// Draft
	ReplySubject Text `json:"replySubject,omitempty"`
	DraftContent Text `json:"draftContent,omitempty"`

	// Promotion
	Title      Text `json:"title,omitempty"`
	Details    Text `json:"details,omitempty"`
	Expiration Text `json:"expiration,omitempty"`

	// Action Required
	ActionPoints Text `json:"actionPoints,omitempty"`

	// Receipts
	OrderNumber Text `json:"orderNumber,omitempty"`
	TotalAmount Text `json:"totalAmount,omitempty"`

	// Meeting Update
	MeetingSubject  Text `json:"meetingSubject,omitempty"`
	OldDateTime     Text `json:"oldDateTime,omitempty"`
	OldLocation     Text `json:"oldLocation,omitempty"`
	NewDateTime     Text `json:"newDateTime,omitempty"`
	NewLocation     Text `json:"newLocation,omitempty"`
	AdditionalNotes Text `json:"additionalNotes,omitempty"`

	Summary Text `json:"summary,omitempty"`
}

// UnmarshalJSON accepts both emailId and email_id, and normalizes the
// category spelling.
func (r *Record) UnmarshalJSON(data []byte) error {
	var aux struct {
		EmailID    *Text   `json:"emailId"`
		EmailIDAlt *Text   `json:"email_id"`
		Category   Text    `json:"category"`
		Sender     *Sender `json:"sender"`
		Content    Content `json:"content"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	switch {
	case aux.EmailID != nil:
		r.EmailID = strings.TrimSpace(string(*aux.EmailID))
	case aux.EmailIDAlt != nil:
		r.EmailID = strings.TrimSpace(string(*aux.EmailIDAlt))
	}
	r.Category, _ = ParseCategory(string(aux.Category))
	if aux.Sender != nil {
		r.Sender = *aux.Sender
	}
	r.Content = aux.Content
	return nil
}

// UnmarshalJSON lets a sender be given as a bare string.
func (s *Sender) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return err
		}
		s.Name = name
		return nil
	}

	type plain Sender
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*s = Sender(p)
	return nil
}

// Text is a string field that tolerates the shapes models tend to produce:
// numbers, booleans, lists (joined with newlines) and nested objects.
type Text string

func (t Text) String() string { return string(t) }

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	case '[':
		var items []Text
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if item != "" {
				parts = append(parts, string(item))
			}
		}
		*t = Text(strings.Join(parts, "\n"))
	case '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*t = Text(buf.String())
	default:
		if f, err := strconv.ParseFloat(string(data), 64); err == nil {
			*t = Text(strconv.FormatFloat(f, 'f', -1, 64))
			return nil
		}
		*t = Text(string(data))
	}
	return nil
}
