package domain

import (
	"database/sql/driver"
	"encoding/json"
)

// LedgerCap bounds each list of the ledger. Older ids fall off the front.
const LedgerCap = 10

// Ledger remembers the most recently handled message and thread ids so a
// pass does not act on the same mail twice.
type Ledger struct {
	MessageIDs []string `json:"processed_message_ids"`
	ThreadIDs  []string `json:"processed_thread_ids"`
}

func (l *Ledger) IsMessageProcessed(id string) bool {
	return contains(l.MessageIDs, id)
}

func (l *Ledger) IsThreadProcessed(id string) bool {
	return id != "" && contains(l.ThreadIDs, id)
}

// RecordMessage appends id unless it is already present.
func (l *Ledger) RecordMessage(id string) {
	l.MessageIDs = appendBounded(l.MessageIDs, id)
}

// RecordThread appends id unless it is already present.
func (l *Ledger) RecordThread(id string) {
	if id == "" {
		return
	}
	l.ThreadIDs = appendBounded(l.ThreadIDs, id)
}

// Reset forgets everything, used when push notifications are re-armed.
func (l *Ledger) Reset() {
	l.MessageIDs = []string{}
	l.ThreadIDs = []string{}
}

func (l Ledger) Clone() Ledger {
	return Ledger{
		MessageIDs: append([]string(nil), l.MessageIDs...),
		ThreadIDs:  append([]string(nil), l.ThreadIDs...),
	}
}

// Value implements driver.Valuer
func (l Ledger) Value() (driver.Value, error) {
	out := l
	if out.MessageIDs == nil {
		out.MessageIDs = []string{}
	}
	if out.ThreadIDs == nil {
		out.ThreadIDs = []string{}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (l *Ledger) Scan(value interface{}) error {
	*l = Ledger{}
	data, ok := columnBytes(value)
	if !ok || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, l)
}

func appendBounded(list []string, id string) []string {
	if contains(list, id) {
		return list
	}
	list = append(list, id)
	if over := len(list) - LedgerCap; over > 0 {
		list = append([]string(nil), list[over:]...)
	}
	return list
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
