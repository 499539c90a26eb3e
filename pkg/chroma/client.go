package chroma

import (
	"context"
	"fmt"
	"strings"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
	"github.com/sirupsen/logrus"
)

const (
	collectionName = "classified_entries"
	embeddingModel = "text-embedding-004"
	maxTextLength  = 10000
)

// Document is one text to index for an account.
type Document struct {
	AccountID string
	EmailID   string
	Category  string
	Subject   string
	Text      string
}

// Hit is one query match.
type Hit struct {
	EmailID  string
	Distance float64
}

type ChromaClient struct {
	client     chroma.Client
	collection chroma.Collection
}

// NewChromaClient connects to a Chroma server and prepares the collection,
// embedding with Gemini.
func NewChromaClient(ctx context.Context, baseURL, geminiAPIKey string) (*ChromaClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("chroma base URL is required")
	}
	if geminiAPIKey == "" {
		return nil, fmt.Errorf("a Gemini API key is required for embeddings")
	}

	embedFunc, err := gemini.NewGeminiEmbeddingFunction(
		gemini.WithAPIKey(geminiAPIKey),
		gemini.WithDefaultModel(embeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini embedding function: %w", err)
	}

	client, err := chroma.NewHTTPClient(chroma.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create Chroma client: %w", err)
	}

	collection, err := client.GetOrCreateCollection(
		ctx,
		collectionName,
		chroma.WithEmbeddingFunctionCreate(embedFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	logrus.Infof("[Chroma] Initialized client with collection: %s", collectionName)
	return &ChromaClient{client: client, collection: collection}, nil
}

func documentID(accountID, emailID string) chroma.DocumentID {
	return chroma.DocumentID(accountID + "/" + emailID)
}

// Upsert indexes docs, replacing earlier versions with the same email id.
func (c *ChromaClient) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	ids := make([]chroma.DocumentID, 0, len(docs))
	metas := make([]chroma.DocumentMetadata, 0, len(docs))
	texts := make([]string, 0, len(docs))
	for _, d := range docs {
		meta, err := chroma.NewDocumentMetadataFromMap(map[string]interface{}{
			"user_id":  d.AccountID,
			"email_id": d.EmailID,
			"category": d.Category,
			"subject":  d.Subject,
		})
		if err != nil {
			return fmt.Errorf("failed to create metadata: %w", err)
		}
		text := d.Text
		if len(text) > maxTextLength {
			text = text[:maxTextLength]
		}
		ids = append(ids, documentID(d.AccountID, d.EmailID))
		metas = append(metas, meta)
		texts = append(texts, text)
	}

	err := c.collection.Upsert(
		ctx,
		chroma.WithIDs(ids...),
		chroma.WithMetadatas(metas...),
		chroma.WithTexts(texts...),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert embeddings: %w", err)
	}
	return nil
}

// Query returns the closest documents of one account.
func (c *ChromaClient) Query(ctx context.Context, accountID, query string, limit int) ([]Hit, error) {
	results, err := c.collection.Query(
		ctx,
		chroma.WithQueryTexts(query),
		chroma.WithNResults(limit),
		chroma.WithWhereQuery(chroma.EqString("user_id", accountID)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	if results == nil || results.CountGroups() == 0 {
		return []Hit{}, nil
	}

	idGroups := results.GetIDGroups()
	distanceGroups := results.GetDistancesGroups()
	if len(idGroups) == 0 {
		return []Hit{}, nil
	}

	prefix := accountID + "/"
	hits := make([]Hit, 0, len(idGroups[0]))
	for i, id := range idGroups[0] {
		h := Hit{EmailID: strings.TrimPrefix(string(id), prefix)}
		if len(distanceGroups) > 0 && i < len(distanceGroups[0]) {
			h.Distance = float64(distanceGroups[0][i])
		}
		hits = append(hits, h)
	}
	return hits, nil
}
