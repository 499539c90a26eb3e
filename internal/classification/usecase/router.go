package usecase

import (
	"strings"
	"time"

	"inboxpilot-backend/internal/classification/domain"
	"inboxpilot-backend/internal/mailbox"
)

type route struct {
	bucket domain.BucketKind
	label  string
}

var routes = map[domain.Category]route{
	domain.CategoryDraft:          {domain.BucketDrafts, domain.LabelToRespond},
	domain.CategoryPromotion:      {domain.BucketPromotions, domain.LabelPromotion},
	domain.CategoryInformation:    {domain.BucketInformation, domain.LabelInformation},
	domain.CategoryActionRequired: {domain.BucketActionRequired, domain.LabelActionRequired},
	domain.CategoryReceipts:       {domain.BucketReceipts, domain.LabelReceipts},
	domain.CategoryMeetingUpdate:  {domain.BucketMeetingUpdates, domain.LabelMeetingUpdate},
	domain.CategoryNone:           {domain.BucketOthers, domain.LabelOther},
}

// RouteInput is everything the router looks at.
type RouteInput struct {
	Record          *domain.Record
	Message         *mailbox.Message
	ThreadProcessed bool
	DraftExists     bool
	Now             time.Time
}

// Decision is the declarative outcome of routing one record. The sync
// driver applies it; the router itself has no side effects.
type Decision struct {
	Category domain.Category
	Known    bool
	// Bucket is empty when nothing should be stored.
	Bucket domain.BucketKind
	Entry  *domain.Entry
	// Label is empty when no provider label should be applied.
	Label string
	// Draft is set when a reply draft must be created before storing Entry.
	Draft           *mailbox.DraftRequest
	DraftSuppressed bool
}

// Route maps a record to its bucket, label and optional reply draft.
func Route(in RouteInput) Decision {
	rec := in.Record
	d := Decision{Category: rec.Category}

	r, ok := routes[rec.Category]
	if !ok {
		return d
	}
	d.Known = true
	d.Label = r.label

	entry := &domain.Entry{
		EmailID:      rec.EmailID,
		ThreadID:     in.Message.ThreadID,
		Subject:      in.Message.Subject,
		Category:     rec.Category,
		Sender:       rec.Sender,
		Content:      rec.Content,
		ClassifiedAt: in.Now,
	}

	if rec.Category != domain.CategoryDraft {
		d.Bucket = r.bucket
		d.Entry = entry
		return d
	}

	entry.Draft = rec.Content.DraftContent.String()
	d.Bucket = r.bucket
	d.Entry = entry

	// The entry is still stored and labelled; only the provider draft is skipped.
	if in.ThreadProcessed || in.DraftExists {
		d.DraftSuppressed = true
		return d
	}

	d.Draft = &mailbox.DraftRequest{
		To:        in.Message.From,
		Subject:   ReplySubject(in.Message.Subject),
		Body:      entry.Draft,
		ThreadID:  in.Message.ThreadID,
		InReplyTo: in.Message.MessageID,
	}
	return d
}

// ReplySubject prefixes "Re: " unless the subject already starts with it.
func ReplySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(subject)), "re:") {
		return subject
	}
	return "Re: " + subject
}
