package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ppiankov/labkit/internal/logging"
	"github.com/ppiankov/labkit/internal/model"
)

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store on PostgreSQL with the pgvector extension.
// Distances come from the <=> cosine operator.
type PostgresStore struct {
	pool DBPool
	log  logging.Logger
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects to dsn and creates the schema
func OpenPostgres(ctx context.Context, dsn string, log logging.Logger) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres store requires rag.dsn")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	store := NewPostgresWithPool(pool, log)
	if err := store.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresWithPool wraps an existing pool. Useful for testing with mocks.
func NewPostgresWithPool(pool DBPool, log logging.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, log: logging.OrNoOp(log)}
}

// InitSchema creates the extension and tables if they don't exist
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	query := `
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS labkit_collections (
			name TEXT PRIMARY KEY,
			metric TEXT NOT NULL,
			embedding_model TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS labkit_documents (
			collection TEXT NOT NULL REFERENCES labkit_collections (name),
			id TEXT NOT NULL,
			text TEXT NOT NULL,
			embedding vector NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		);
	`
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// EnsureCollection creates the collection or returns the existing one
func (s *PostgresStore) EnsureCollection(ctx context.Context, name string, metric model.Metric) (*Collection, error) {
	metric, err := checkMetric(metric)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO labkit_collections (name, metric) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		name, string(metric))
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	coll, err := s.collection(ctx, name)
	if err != nil {
		return nil, err
	}
	if coll.Metric != metric {
		return nil, fmt.Errorf("%s (%s): %w", name, coll.Metric, ErrMetricMismatch)
	}
	return coll, nil
}

func (s *PostgresStore) collection(ctx context.Context, name string) (*Collection, error) {
	var metric, embeddingModel string
	err := s.pool.QueryRow(ctx,
		`SELECT metric, embedding_model FROM labkit_collections WHERE name = $1`, name).
		Scan(&metric, &embeddingModel)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", name, ErrCollectionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}
	return &Collection{Name: name, Metric: model.Metric(metric), EmbeddingModel: embeddingModel}, nil
}

// SetEmbeddingModel records which embedding model populated the collection
func (s *PostgresStore) SetEmbeddingModel(ctx context.Context, collection, embeddingModel string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE labkit_collections SET embedding_model = $1 WHERE name = $2`, embeddingModel, collection)
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", collection, ErrCollectionNotFound)
	}
	return nil
}

// Upsert inserts doc, replacing any entry with the same ID
func (s *PostgresStore) Upsert(ctx context.Context, collection string, doc model.Document) error {
	if len(doc.Embedding) == 0 {
		return fmt.Errorf("%s: %w", doc.ID, ErrEmptyEmbedding)
	}

	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO labkit_documents (collection, id, text, embedding, metadata)
		VALUES ($1, $2, $3, $4::vector, $5)
		ON CONFLICT (collection, id) DO UPDATE SET
			text = EXCLUDED.text,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata,
			updated_at = now()
	`, collection, doc.ID, doc.Text, vectorLiteral(doc.Embedding), metadataJSON)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// Query returns up to k entries ordered by ascending cosine distance
func (s *PostgresStore) Query(ctx context.Context, collection string, vec []float32, k int) ([]model.SearchResult, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, text, metadata, embedding <=> $2::vector AS distance
		FROM labkit_documents
		WHERE collection = $1 AND vector_dims(embedding) = $3
		ORDER BY distance, id
		LIMIT $4
	`, collection, vectorLiteral(vec), len(vec), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	results := []model.SearchResult{}
	for rows.Next() {
		var r model.SearchResult
		var metadataJSON []byte
		if err := rows.Scan(&r.ID, &r.Text, &metadataJSON, &r.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		r.Metadata = decodeMetadata(string(metadataJSON))
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return results, nil
}

// Count returns the number of entries in the collection
func (s *PostgresStore) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM labkit_documents WHERE collection = $1`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Get returns one entry by ID
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*model.Document, error) {
	var text, embedding string
	var metadataJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT text, embedding::text, metadata FROM labkit_documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&text, &embedding, &metadataJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	vec, err := parseVectorLiteral(embedding)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}

	return &model.Document{
		ID:        id,
		Text:      text,
		Embedding: vec,
		Metadata:  decodeMetadata(string(metadataJSON)),
	}, nil
}

// List returns every entry without embeddings, ordered by ID
func (s *PostgresStore) List(ctx context.Context, collection string) ([]model.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, text, metadata FROM labkit_documents WHERE collection = $1 ORDER BY id`, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var d model.Document
		var metadataJSON []byte
		if err := rows.Scan(&d.ID, &d.Text, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		d.Metadata = decodeMetadata(string(metadataJSON))
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// vectorLiteral renders vec in pgvector's text form: [1,2,3]
func vectorLiteral(vec []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

func parseVectorLiteral(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("invalid vector literal %q", s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return []float32{}, nil
	}

	parts := strings.Split(body, ",")
	vec := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}
