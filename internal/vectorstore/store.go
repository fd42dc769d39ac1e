// Package vectorstore persists embedded documents in named collections and
// answers nearest-neighbour queries by cosine distance.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/labkit/internal/logging"
	"github.com/ppiankov/labkit/internal/model"
)

var (
	ErrNotFound           = errors.New("document not found")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrUnsupportedMetric  = errors.New("unsupported similarity metric")
	ErrMetricMismatch     = errors.New("collection exists with a different metric")
	ErrInvalidK           = errors.New("k must be positive")
	ErrEmptyEmbedding     = errors.New("document has no embedding")
)

// Collection describes a named set of documents
type Collection struct {
	Name   string
	Metric model.Metric

	// EmbeddingModel is the model the collection was populated with ("" until set)
	EmbeddingModel string
}

// Store is a persistent vector index
type Store interface {
	// EnsureCollection creates the collection or returns the existing one
	EnsureCollection(ctx context.Context, name string, metric model.Metric) (*Collection, error)

	// SetEmbeddingModel records which embedding model populated the collection
	SetEmbeddingModel(ctx context.Context, collection, embeddingModel string) error

	// Upsert inserts doc, replacing any entry with the same ID
	Upsert(ctx context.Context, collection string, doc model.Document) error

	// Query returns up to k entries ordered by ascending distance to vec
	Query(ctx context.Context, collection string, vec []float32, k int) ([]model.SearchResult, error)

	// Count returns the number of entries in the collection
	Count(ctx context.Context, collection string) (int, error)

	// Get returns one entry by ID
	Get(ctx context.Context, collection, id string) (*model.Document, error)

	// List returns every entry without embeddings, ordered by ID
	List(ctx context.Context, collection string) ([]model.Document, error)

	Close() error
}

// Config selects and configures a backend
type Config struct {
	// Backend is "sqlite" (default) or "postgres"
	Backend string

	// Path is the sqlite database file
	Path string

	// DSN is the postgres connection string
	DSN string
}

// Open opens the configured backend
func Open(ctx context.Context, cfg Config, log logging.Logger) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "sqlite":
		return NewSQLite(cfg.Path, log)
	case "postgres", "pgvector":
		return OpenPostgres(ctx, cfg.DSN, log)
	default:
		return nil, fmt.Errorf("unknown vector store backend: %s (supported: sqlite, postgres)", cfg.Backend)
	}
}

// ConfigFromModel converts the rag section of model.Config
func ConfigFromModel(cfg *model.Config) Config {
	return Config{
		Backend: cfg.RAG.Store,
		Path:    cfg.RAG.StorePath,
		DSN:     cfg.RAG.DSN,
	}
}

func checkMetric(metric model.Metric) (model.Metric, error) {
	if metric == "" {
		return model.MetricCosine, nil
	}
	if metric != model.MetricCosine {
		return "", fmt.Errorf("%s: %w", metric, ErrUnsupportedMetric)
	}
	return metric, nil
}
