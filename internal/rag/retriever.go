package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/labkit/internal/llm"
	"github.com/ppiankov/labkit/internal/logging"
	"github.com/ppiankov/labkit/internal/model"
	"github.com/ppiankov/labkit/internal/vectorstore"
)

// DefaultTopK is how many documents a search returns by default
const DefaultTopK = 3

// ErrEmptyQuery is returned for blank questions
var ErrEmptyQuery = errors.New("empty query")

// Retriever finds the documents closest to a query
type Retriever struct {
	store          vectorstore.Store
	embedder       llm.Client
	collection     string
	embeddingModel string
	log            logging.Logger
}

// NewRetriever creates a retriever over collection
func NewRetriever(store vectorstore.Store, embedder llm.Client, collection, embeddingModel string, log logging.Logger) *Retriever {
	return &Retriever{
		store:          store,
		embedder:       embedder,
		collection:     collection,
		embeddingModel: embeddingModel,
		log:            logging.OrNoOp(log),
	}
}

// Open returns the collection handle, warning when it was populated with
// a different embedding model than the one queries will use
func (r *Retriever) Open(ctx context.Context) (*vectorstore.Collection, error) {
	coll, err := r.store.EnsureCollection(ctx, r.collection, model.MetricCosine)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}
	if coll.EmbeddingModel != "" && coll.EmbeddingModel != r.embeddingModel {
		r.log.Warn("collection %s was embedded with %s, querying with %s; results may be meaningless",
			coll.Name, coll.EmbeddingModel, r.embeddingModel)
	}
	return coll, nil
}

// Search embeds query and returns up to k nearest documents (k <= 0 uses
// DefaultTopK). An empty collection yields an empty slice.
func (r *Retriever) Search(ctx context.Context, coll *vectorstore.Collection, query string, k int) ([]model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = DefaultTopK
	}

	name := r.collection
	if coll != nil {
		name = coll.Name
	}

	vec, err := r.embedder.Embed(ctx, r.embeddingModel, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := r.store.Query(ctx, name, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", name, err)
	}

	r.log.Debug("search %q returned %d documents", query, len(results))
	return results, nil
}
