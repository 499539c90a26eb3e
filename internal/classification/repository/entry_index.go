package repository

import (
	"context"
	"strings"

	"inboxpilot-backend/internal/classification/domain"
	"inboxpilot-backend/internal/classification/usecase"
	"inboxpilot-backend/pkg/chroma"
)

// VectorStore is the part of the Chroma client the index uses.
type VectorStore interface {
	Upsert(ctx context.Context, docs []chroma.Document) error
	Query(ctx context.Context, accountID, query string, limit int) ([]chroma.Hit, error)
}

type entryIndex struct {
	store VectorStore
}

// NewEntryIndex indexes classified entries in a vector store.
func NewEntryIndex(store VectorStore) usecase.EntryIndexer {
	return &entryIndex{store: store}
}

func (i *entryIndex) IndexEntries(ctx context.Context, accountID string, entries []domain.Entry) error {
	docs := make([]chroma.Document, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, chroma.Document{
			AccountID: accountID,
			EmailID:   e.EmailID,
			Category:  string(e.Category),
			Subject:   e.Subject,
			Text:      entryText(e),
		})
	}
	return i.store.Upsert(ctx, docs)
}

func (i *entryIndex) Query(ctx context.Context, accountID, query string, limit int) ([]usecase.IndexHit, error) {
	hits, err := i.store.Query(ctx, accountID, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]usecase.IndexHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, usecase.IndexHit{EmailID: h.EmailID, Distance: h.Distance})
	}
	return out, nil
}

// entryText is what gets embedded: subject, sender and every content field.
func entryText(e domain.Entry) string {
	c := e.Content
	parts := []string{
		"Subject: " + e.Subject,
		"From: " + e.Sender.Name,
	}
	for _, f := range []domain.Text{
		c.Title, c.Details, c.Summary, c.ActionPoints, c.OrderNumber, c.TotalAmount,
		c.MeetingSubject, c.NewDateTime, c.NewLocation, c.AdditionalNotes, c.DraftContent,
	} {
		if s := f.String(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}
