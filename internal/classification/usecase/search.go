package usecase

import (
	"context"
	"sort"
	"strings"

	"inboxpilot-backend/internal/classification/domain"
	"inboxpilot-backend/pkg/fuzzy"

	"github.com/sirupsen/logrus"
)

const defaultSearchLimit = 20

type bucketEntry struct {
	bucket domain.BucketKind
	entry  domain.Entry
}

// Search looks through an account's buckets. The semantic index is asked
// first; fuzzy matching over subject, sender and content is the fallback.
func (u *classificationUsecase) Search(ctx context.Context, accountID, query string, limit int) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []SearchHit{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	acc, err := u.loadAccount(accountID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]bucketEntry)
	var all []bucketEntry
	for kind, entries := range acc.Buckets.All() {
		for _, e := range entries {
			be := bucketEntry{bucket: kind, entry: e}
			byID[e.EmailID] = be
			all = append(all, be)
		}
	}

	if u.index != nil {
		hits, err := u.index.Query(ctx, accountID, query, limit)
		if err != nil {
			logrus.Warnf("[Search] semantic search failed, using fuzzy search: %v", err)
		} else {
			var out []SearchHit
			for _, h := range hits {
				be, ok := byID[h.EmailID]
				if !ok {
					continue // removed from the buckets since it was indexed
				}
				out = append(out, SearchHit{Bucket: be.bucket, Entry: be.entry, Score: 1 - h.Distance, Source: "semantic"})
			}
			if len(out) > 0 {
				return out, nil
			}
		}
	}

	return fuzzySearch(all, query, limit), nil
}

func fuzzySearch(all []bucketEntry, query string, limit int) []SearchHit {
	out := []SearchHit{}
	for _, be := range all {
		e := be.entry
		c := e.Content
		score := fuzzy.Score(query,
			fuzzy.Field{Text: e.Subject, Weight: 100},
			fuzzy.Field{Text: e.Sender.Name, Weight: 80},
			fuzzy.Field{Text: c.Title.String() + " " + c.MeetingSubject.String(), Weight: 60},
			fuzzy.Field{Text: c.Summary.String() + " " + c.Details.String() + " " + c.ActionPoints.String(), Weight: 30},
		)
		if score > 0 {
			out = append(out, SearchHit{Bucket: be.bucket, Entry: e, Score: score, Source: "fuzzy"})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Entry.EmailID < out[j].Entry.EmailID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
