package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/ppiankov/labkit/internal/logging"
	"github.com/ppiankov/labkit/internal/model"
)

// SQLiteStore implements Store on a single sqlite file. Similarity is
// computed in process over the collection's rows.
type SQLiteStore struct {
	db  *sql.DB
	log logging.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens (creating if needed) the database at path
func NewSQLite(path string, log logging.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite store path is required")
	}
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}
	// One writer at a time avoids SQLITE_BUSY during ingestion
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, log: logging.OrNoOp(log)}
	if err := store.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// InitSchema creates the necessary tables if they don't exist
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			metric TEXT NOT NULL,
			embedding_model TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			text TEXT NOT NULL,
			embedding BLOB NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (collection, id)
		);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// EnsureCollection creates the collection or returns the existing one
func (s *SQLiteStore) EnsureCollection(ctx context.Context, name string, metric model.Metric) (*Collection, error) {
	metric, err := checkMetric(metric)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO collections (name, metric) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`,
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

// SetEmbeddingModel records which embedding model populated the collection
func (s *SQLiteStore) SetEmbeddingModel(ctx context.Context, collection, embeddingModel string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE collections SET embedding_model = ? WHERE name = ?`, embeddingModel, collection)
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", collection, ErrCollectionNotFound)
	}
	return nil
}

func (s *SQLiteStore) collection(ctx context.Context, name string) (*Collection, error) {
	var metric, embeddingModel string
	err := s.db.QueryRowContext(ctx,
		`SELECT metric, embedding_model FROM collections WHERE name = ?`, name).
		Scan(&metric, &embeddingModel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", name, ErrCollectionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}
	return &Collection{Name: name, Metric: model.Metric(metric), EmbeddingModel: embeddingModel}, nil
}

// Upsert inserts doc, replacing any entry with the same ID
func (s *SQLiteStore) Upsert(ctx context.Context, collection string, doc model.Document) error {
	if len(doc.Embedding) == 0 {
		return fmt.Errorf("%s: %w", doc.ID, ErrEmptyEmbedding)
	}
	if _, err := s.collection(ctx, collection); err != nil {
		return err
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, text, embedding, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			text = excluded.text,
			embedding = excluded.embedding,
			metadata = excluded.metadata,
			updated_at = CURRENT_TIMESTAMP
	`, collection, doc.ID, doc.Text, encodeEmbedding(doc.Embedding), string(metadataJSON))
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// Query returns up to k entries ordered by ascending cosine distance
func (s *SQLiteStore) Query(ctx context.Context, collection string, vec []float32, k int) ([]model.SearchResult, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if _, err := s.collection(ctx, collection); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, embedding, metadata FROM documents WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	results := []model.SearchResult{}
	for rows.Next() {
		var id, text, metadataJSON string
		var blob []byte
		if err := rows.Scan(&id, &text, &blob, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		emb, err := decodeEmbedding(blob)
		if err != nil {
			s.log.Warn("skipping %s: %v", id, err)
			continue
		}
		dist, err := cosineDistance(vec, emb)
		if err != nil {
			s.log.Warn("skipping %s: %v (query %d, stored %d)", id, err, len(vec), len(emb))
			continue
		}

		results = append(results, model.SearchResult{
			ID:       id,
			Text:     text,
			Distance: dist,
			Metadata: decodeMetadata(metadataJSON),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	return topK(results, k), nil
}

// Count returns the number of entries in the collection
func (s *SQLiteStore) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Get returns one entry by ID
func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (*model.Document, error) {
	var text, metadataJSON string
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT text, embedding, metadata FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&text, &blob, &metadataJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	emb, err := decodeEmbedding(blob)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}

	return &model.Document{
		ID:        id,
		Text:      text,
		Embedding: emb,
		Metadata:  decodeMetadata(metadataJSON),
	}, nil
}

// List returns every entry without embeddings, ordered by ID
func (s *SQLiteStore) List(ctx context.Context, collection string) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, metadata FROM documents WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var id, text, metadataJSON string
		if err := rows.Scan(&id, &text, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, model.Document{ID: id, Text: text, Metadata: decodeMetadata(metadataJSON)})
	}
	return docs, rows.Err()
}

func decodeMetadata(raw string) map[string]string {
	meta := map[string]string{}
	if raw == "" {
		return meta
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil || meta == nil {
		return map[string]string{}
	}
	return meta
}
