package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	FuncSendEmail   = "send_email"
	FuncDraftEmail  = "draft_email"
	FuncCreateEvent = "create_event"
	FuncUpdateEvent = "update_event"
	FuncDeleteEvent = "delete_event"
)

var attendeePattern = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)

var errNoInstruction = errors.New("missing function or parameters in extracted details")

// Instruction is the action the model extracted from a request.
type Instruction struct {
	Function   string                     `json:"function"`
	Parameters map[string]json.RawMessage `json:"parameters"`
}

func parseInstruction(text string) (*Instruction, error) {
	var ins Instruction
	if err := json.Unmarshal([]byte(text), &ins); err != nil {
		return nil, err
	}
	if ins.Function == "" || ins.Parameters == nil {
		return nil, errNoInstruction
	}
	return &ins, nil
}

func (i *Instruction) has(key string) bool {
	_, ok := i.Parameters[key]
	return ok
}

// param returns a parameter as a string. Lists are joined with commas and
// null reads as empty.
func (i *Instruction) param(key string) string {
	raw, ok := i.Parameters[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, ",")
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}

// optional returns nil when the key is absent so updates leave the field
// alone.
func (i *Instruction) optional(key string) *string {
	if !i.has(key) {
		return nil
	}
	v := i.param(key)
	return &v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// validAttendees drops entries that do not look like an address.
func validAttendees(s string) []string {
	var out []string
	for _, a := range splitList(s) {
		if attendeePattern.MatchString(a) {
			out = append(out, a)
		}
	}
	return out
}

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 3:04pm",
	"2006-01-02 3:04 pm",
	"2006-01-02 3pm",
	"2006-01-02 3 pm",
	"2006-01-02 3:04PM",
	"2006-01-02 3PM",
	"2006-01-02",
}

// parseDateTime reads an event time. "tomorrow" is replaced by the next
// day's date and times without a zone are taken as UTC.
func parseDateTime(value string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(value)
	if strings.Contains(strings.ToLower(s), "tomorrow") {
		tomorrow := now.AddDate(0, 0, 1).Format("2006-01-02")
		s = strings.ReplaceAll(strings.ToLower(s), "tomorrow", tomorrow)
		s = strings.ReplaceAll(s, " at ", " ")
		s = strings.Replace(s, tomorrow+"t", tomorrow+"T", 1)
		if strings.HasSuffix(s, "z") {
			s = strings.TrimSuffix(s, "z") + "Z"
		}
		s = strings.Join(strings.Fields(s), " ")
	}
	candidates := []string{s}
	// "3pm 2025-04-13" once tomorrow has been substituted.
	if fields := strings.Fields(s); len(fields) == 2 {
		candidates = append(candidates, fields[1]+" "+fields[0])
	}
	for _, c := range candidates {
		for _, layout := range dateTimeLayouts {
			if t, err := time.ParseInLocation(layout, c, time.UTC); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("invalid date/time format: %q", value)
}
