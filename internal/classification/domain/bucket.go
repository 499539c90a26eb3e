package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// BucketKind names one per-account category bucket.
type BucketKind string

const (
	BucketDrafts         BucketKind = "drafts"
	BucketPromotions     BucketKind = "promotions"
	BucketInformation    BucketKind = "information"
	BucketActionRequired BucketKind = "action_required"
	BucketReceipts       BucketKind = "receipts"
	BucketMeetingUpdates BucketKind = "meeting_updates"
	BucketOthers         BucketKind = "others"
)

var ErrUnknownBucket = errors.New("unknown bucket type")

// ParseBucketKind accepts the short names used by the read-all and
// quick-remove endpoints as well as the bucket names themselves.
func ParseBucketKind(s string) (BucketKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "draft", "drafts":
		return BucketDrafts, nil
	case "promotion", "promotions":
		return BucketPromotions, nil
	case "info", "information":
		return BucketInformation, nil
	case "action_required", "action required":
		return BucketActionRequired, nil
	case "receipt", "receipts":
		return BucketReceipts, nil
	case "meeting_update", "meeting_updates":
		return BucketMeetingUpdates, nil
	case "other", "others":
		return BucketOthers, nil
	}
	return "", ErrUnknownBucket
}

// Entry is one classified message kept in a bucket. Entries are appended by
// a sync pass and only ever removed, never edited.
type Entry struct {
	EmailID         string    `json:"emailId"`
	ThreadID        string    `json:"threadId,omitempty"`
	Subject         string    `json:"subject,omitempty"`
	Category        Category  `json:"category"`
	Sender          Sender    `json:"sender"`
	Content         Content   `json:"content"`
	Draft           string    `json:"draft,omitempty"`
	ProviderDraftID string    `json:"gmailDraftId,omitempty"`
	ClassifiedAt    time.Time `json:"classifiedAt"`
}

// Buckets is the full set of category buckets for an account, persisted as a
// single JSON column.
type Buckets struct {
	Drafts         []Entry `json:"drafts"`
	Promotions     []Entry `json:"promotions"`
	Information    []Entry `json:"information"`
	ActionRequired []Entry `json:"action_required"`
	Receipts       []Entry `json:"receipts"`
	MeetingUpdates []Entry `json:"meeting_updates"`
	Others         []Entry `json:"others"`
}

func (b *Buckets) slot(kind BucketKind) *[]Entry {
	switch kind {
	case BucketDrafts:
		return &b.Drafts
	case BucketPromotions:
		return &b.Promotions
	case BucketInformation:
		return &b.Information
	case BucketActionRequired:
		return &b.ActionRequired
	case BucketReceipts:
		return &b.Receipts
	case BucketMeetingUpdates:
		return &b.MeetingUpdates
	case BucketOthers:
		return &b.Others
	}
	return nil
}

// Get returns the entries of one bucket.
func (b *Buckets) Get(kind BucketKind) []Entry {
	if s := b.slot(kind); s != nil {
		return *s
	}
	return nil
}

// Append adds an entry to the end of a bucket.
func (b *Buckets) Append(kind BucketKind, e Entry) error {
	s := b.slot(kind)
	if s == nil {
		return ErrUnknownBucket
	}
	*s = append(*s, e)
	return nil
}

// Replace swaps the whole content of a bucket.
func (b *Buckets) Replace(kind BucketKind, entries []Entry) error {
	s := b.slot(kind)
	if s == nil {
		return ErrUnknownBucket
	}
	*s = entries
	return nil
}

// Clear empties one bucket.
func (b *Buckets) Clear(kind BucketKind) error {
	return b.Replace(kind, []Entry{})
}

// Remove drops every entry with the given email id and returns the removed
// entries.
func (b *Buckets) Remove(kind BucketKind, emailID string) ([]Entry, error) {
	s := b.slot(kind)
	if s == nil {
		return nil, ErrUnknownBucket
	}
	kept := make([]Entry, 0, len(*s))
	var removed []Entry
	for _, e := range *s {
		if e.EmailID == emailID {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}
	*s = kept
	return removed, nil
}

// All returns every entry grouped by bucket, in bucket order.
func (b *Buckets) All() map[BucketKind][]Entry {
	return map[BucketKind][]Entry{
		BucketDrafts:         b.Drafts,
		BucketPromotions:     b.Promotions,
		BucketInformation:    b.Information,
		BucketActionRequired: b.ActionRequired,
		BucketReceipts:       b.Receipts,
		BucketMeetingUpdates: b.MeetingUpdates,
		BucketOthers:         b.Others,
	}
}

// Len is the total number of entries across buckets.
func (b *Buckets) Len() int {
	n := 0
	for _, entries := range b.All() {
		n += len(entries)
	}
	return n
}

// Clone returns a deep copy so a pass can work on it without touching the
// loaded state.
func (b Buckets) Clone() Buckets {
	cp := func(in []Entry) []Entry {
		if in == nil {
			return nil
		}
		out := make([]Entry, len(in))
		copy(out, in)
		return out
	}
	return Buckets{
		Drafts:         cp(b.Drafts),
		Promotions:     cp(b.Promotions),
		Information:    cp(b.Information),
		ActionRequired: cp(b.ActionRequired),
		Receipts:       cp(b.Receipts),
		MeetingUpdates: cp(b.MeetingUpdates),
		Others:         cp(b.Others),
	}
}

// Value implements driver.Valuer
func (b Buckets) Value() (driver.Value, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (b *Buckets) Scan(value interface{}) error {
	*b = Buckets{}
	data, ok := columnBytes(value)
	if !ok || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, b)
}

func columnBytes(value interface{}) ([]byte, bool) {
	switch v := value.(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	}
	return nil, false
}
