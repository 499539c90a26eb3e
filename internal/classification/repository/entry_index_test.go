package repository

import (
	"context"
	"errors"
	"testing"

	"inboxpilot-backend/internal/classification/domain"
	"inboxpilot-backend/pkg/chroma"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVectorStore struct {
	docs     []chroma.Document
	hits     []chroma.Hit
	err      error
	lastUser string
}

func (f *fakeVectorStore) Upsert(ctx context.Context, docs []chroma.Document) error {
	f.docs = append(f.docs, docs...)
	return f.err
}

func (f *fakeVectorStore) Query(ctx context.Context, accountID, query string, limit int) ([]chroma.Hit, error) {
	f.lastUser = accountID
	return f.hits, f.err
}

func TestIndexEntriesBuildsDocuments(t *testing.T) {
	store := &fakeVectorStore{}
	idx := NewEntryIndex(store)

	err := idx.IndexEntries(context.Background(), "acc-1", []domain.Entry{{
		EmailID:  "m1",
		Subject:  "Your order",
		Category: domain.CategoryReceipts,
		Sender:   domain.Sender{Name: "Shop"},
		Content:  domain.Content{OrderNumber: "A-7", TotalAmount: "$20"},
	}})
	require.NoError(t, err)
	require.Len(t, store.docs, 1)

	doc := store.docs[0]
	assert.Equal(t, "acc-1", doc.AccountID)
	assert.Equal(t, "m1", doc.EmailID)
	assert.Equal(t, "Receipts", doc.Category)
	assert.Contains(t, doc.Text, "Subject: Your order")
	assert.Contains(t, doc.Text, "From: Shop")
	assert.Contains(t, doc.Text, "A-7")
	assert.Contains(t, doc.Text, "$20")
}

func TestQueryMapsHits(t *testing.T) {
	store := &fakeVectorStore{hits: []chroma.Hit{{EmailID: "m1", Distance: 0.25}}}
	idx := NewEntryIndex(store)

	hits, err := idx.Query(context.Background(), "acc-1", "order", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "m1", hits[0].EmailID)
	assert.InDelta(t, 0.25, hits[0].Distance, 1e-9)
	assert.Equal(t, "acc-1", store.lastUser)

	store.err = errors.New("unavailable")
	_, err = idx.Query(context.Background(), "acc-1", "order", 5)
	assert.Error(t, err)
}
