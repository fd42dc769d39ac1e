package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/labkit/internal/llm"
	"github.com/ppiankov/labkit/internal/llm/llmtest"
	"github.com/ppiankov/labkit/internal/model"
	"github.com/ppiankov/labkit/internal/session"
	"github.com/ppiankov/labkit/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCollection = "Lab4Collection"

// topicEmbedding maps text onto three axes so similarity is predictable
func topicEmbedding(_ string, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "boom"):
		return nil, errors.New("embedding service down")
	case strings.Contains(lower, "cat"):
		return []float32{1, 0, 0.1}, nil
	case strings.Contains(lower, "dog"):
		return []float32{0, 1, 0.1}, nil
	default:
		return []float32{0, 0, 1}, nil
	}
}

// plainText treats the fixture "PDFs" as text files
func plainText(_ string, data []byte) (string, error) {
	if string(data) == "CORRUPT" {
		return "", errors.New("malformed pdf")
	}
	return string(data), nil
}

type fixture struct {
	dir      string
	store    *vectorstore.SQLiteStore
	fake     *llmtest.Fake
	ingestor *Ingestor
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}

	store, err := vectorstore.NewSQLite(filepath.Join(t.TempDir(), "vectors.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	fake := &llmtest.Fake{EmbedFunc: topicEmbedding}
	ing := NewIngestor(store, fake, "text-embedding-3-small", 2, nil)
	ing.extractText = plainText

	return &fixture{dir: dir, store: store, fake: fake, ingestor: ing}
}

func (f *fixture) write(t *testing.T, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte(body), 0o644))
}

func statuses(r *IngestReport) map[string]FileStatus {
	out := map[string]FileStatus{}
	for _, f := range r.Files {
		out[f.Filename] = f.Status
	}
	return out
}

func TestIngest_SkipsBadFilesAndContinues(t *testing.T) {
	f := newFixture(t, map[string]string{
		"cats.pdf":    "All about cats.",
		"dogs.pdf":    "All about dogs.",
		"empty.pdf":   "   \n",
		"corrupt.pdf": "CORRUPT",
		"down.pdf":    "boom",
		"notes.txt":   "ignored, not a pdf",
	})

	report, err := f.ingestor.Ingest(context.Background(), testCollection, f.dir)
	require.NoError(t, err)

	assert.Len(t, report.Files, 5)
	assert.Equal(t, 2, report.Processed())
	assert.Len(t, report.Skipped(), 3)
	var names []string
	for _, fr := range report.Files {
		names = append(names, fr.Filename)
	}
	assert.Equal(t, []string{"cats.pdf", "corrupt.pdf", "dogs.pdf", "down.pdf", "empty.pdf"}, names)
	for _, sk := range report.Skipped() {
		assert.Error(t, sk.Err, sk.Filename)
	}

	n, err := f.store.Count(context.Background(), testCollection)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	d, err := f.store.Get(context.Background(), testCollection, "cats.pdf")
	require.NoError(t, err)
	assert.Equal(t, "cats.pdf", d.Metadata[model.MetaFilename])
	assert.Len(t, d.Metadata[model.MetaSHA256], 64)

	coll, err := f.store.EnsureCollection(context.Background(), testCollection, model.MetricCosine)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", coll.EmbeddingModel)
}

func TestIngest_NoDocuments(t *testing.T) {
	f := newFixture(t, map[string]string{"readme.md": "x"})

	_, err := f.ingestor.Ingest(context.Background(), testCollection, f.dir)
	assert.ErrorIs(t, err, ErrNoDocuments)

	_, err = f.ingestor.Ingest(context.Background(), testCollection, filepath.Join(f.dir, "missing"))
	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestEnsurePopulated_Reconciles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"cats.pdf": "cats v1"})

	report, err := f.ingestor.EnsurePopulated(ctx, testCollection, f.dir, false)
	require.NoError(t, err)
	assert.Equal(t, StatusAdded, statuses(report)["cats.pdf"])

	// second run embeds nothing
	embedsBefore := len(f.fake.EmbedModels)
	report, err = f.ingestor.EnsurePopulated(ctx, testCollection, f.dir, false)
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, statuses(report)["cats.pdf"])
	assert.Equal(t, embedsBefore, len(f.fake.EmbedModels))

	// a new file and a changed file are picked up
	f.write(t, "dogs.pdf", "dogs")
	f.write(t, "cats.pdf", "cats v2")
	report, err = f.ingestor.EnsurePopulated(ctx, testCollection, f.dir, false)
	require.NoError(t, err)
	assert.Equal(t, StatusUpdated, statuses(report)["cats.pdf"])
	assert.Equal(t, StatusAdded, statuses(report)["dogs.pdf"])

	d, err := f.store.Get(ctx, testCollection, "cats.pdf")
	require.NoError(t, err)
	assert.Equal(t, "cats v2", d.Text)

	// force re-ingests unchanged files
	report, err = f.ingestor.EnsurePopulated(ctx, testCollection, f.dir, true)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(StatusUpdated))

	// removed sources are reported, not deleted
	require.NoError(t, os.Remove(filepath.Join(f.dir, "dogs.pdf")))
	report, err = f.ingestor.EnsurePopulated(ctx, testCollection, f.dir, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"dogs.pdf"}, report.Stale)

	n, err := f.store.Count(ctx, testCollection)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIngest_SameNameLastWriteWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"report.pdf": "about cats"})
	_, err := f.ingestor.Ingest(ctx, testCollection, f.dir)
	require.NoError(t, err)

	other := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(other, "report.pdf"), []byte("about dogs"), 0o644))
	_, err = f.ingestor.Ingest(ctx, testCollection, other)
	require.NoError(t, err)

	n, err := f.store.Count(ctx, testCollection)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	d, err := f.store.Get(ctx, testCollection, "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "about dogs", d.Text)
}

func TestIngest_Canceled(t *testing.T) {
	f := newFixture(t, map[string]string{"cats.pdf": "cats"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.ingestor.Ingest(ctx, testCollection, f.dir)
	assert.Error(t, err)
}

func TestIngest_CanceledMidRunReportsInterruption(t *testing.T) {
	files := map[string]string{}
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf", "e.pdf", "f.pdf"} {
		files[name] = "cats"
	}
	f := newFixture(t, files)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.ingestor.extractText = func(string, []byte) (string, error) {
		cancel()
		return "", errors.New("extraction aborted")
	}

	report, err := f.ingestor.EnsurePopulated(ctx, testCollection, f.dir, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotNil(t, report)
}

func TestEnsurePopulated_KeepsModelLabelOnPartialReembed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"a.pdf": "about cats"})
	_, err := f.ingestor.EnsurePopulated(ctx, testCollection, f.dir, false)
	require.NoError(t, err)

	ada := NewIngestor(f.store, f.fake, "text-embedding-ada-002", 2, nil)
	ada.extractText = plainText
	f.write(t, "b.pdf", "about dogs")

	report, err := ada.EnsurePopulated(ctx, testCollection, f.dir, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]FileStatus{"a.pdf": StatusUnchanged, "b.pdf": StatusAdded}, statuses(report))

	coll, err := f.store.EnsureCollection(ctx, testCollection, model.MetricCosine)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", coll.EmbeddingModel)

	// A forced run rewrites every stored vector, so the label follows
	_, err = ada.EnsurePopulated(ctx, testCollection, f.dir, true)
	require.NoError(t, err)

	coll, err = f.store.EnsureCollection(ctx, testCollection, model.MetricCosine)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-ada-002", coll.EmbeddingModel)
}

func TestRetriever_Search(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"cats.pdf": "cats", "dogs.pdf": "dogs"})
	_, err := f.ingestor.Ingest(ctx, testCollection, f.dir)
	require.NoError(t, err)

	r := NewRetriever(f.store, f.fake, testCollection, "text-embedding-3-small", nil)
	coll, err := r.Open(ctx)
	require.NoError(t, err)

	// fewer documents than k is not an error
	results, err := r.Search(ctx, coll, "tell me about cats", 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "cats.pdf", results[0].ID)
	assert.Greater(t, results[0].Similarity(), results[1].Similarity())

	results, err = r.Search(ctx, coll, "cats", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	_, err = r.Search(ctx, coll, " ", 3)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	assert.Equal(t, "text-embedding-3-small", f.fake.EmbedModels[len(f.fake.EmbedModels)-1])
}

func TestRetriever_EmptyCollection(t *testing.T) {
	f := newFixture(t, nil)
	r := NewRetriever(f.store, f.fake, testCollection, "m", nil)
	coll, err := r.Open(context.Background())
	require.NoError(t, err)

	results, err := r.Search(context.Background(), coll, "cats", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBuildContext(t *testing.T) {
	docs := []model.SearchResult{
		{ID: "a.pdf", Text: strings.Repeat("é", 2000), Metadata: map[string]string{model.MetaFilename: "a.pdf"}},
		{ID: "b.pdf", Text: "short"},
	}
	out := BuildContext(docs, 1500)

	assert.True(t, strings.HasPrefix(out, "Here is relevant information from the knowledge base:\n\n--- Document 1: a.pdf ---\n"))
	assert.Contains(t, out, "\n--- Document 2: b.pdf ---\nshort")
	assert.Equal(t, 1500, strings.Count(out, "é"))
	assert.Empty(t, BuildContext(nil, 1500))
}

func TestResponder_Respond(t *testing.T) {
	fake := (&llmtest.Fake{}).Reply("Cats are mammals, per the documents.")
	r := NewResponder(fake, "gpt-4o-mini", 0, 0, nil)

	docs := []model.SearchResult{{ID: "cats.pdf", Text: "cats", Distance: 0.1234}}
	answer := r.Respond(context.Background(), "What are cats?", docs)

	assert.Equal(t, "Cats are mammals, per the documents.\n\n📚 **Sources consulted:**\n• cats.pdf (similarity: 0.877)", answer)

	req := fake.Request(0)
	assert.Equal(t, 1000, req.MaxTokens)
	assert.Equal(t, "gpt-4o-mini", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[0].Content, "IMPORTANT INSTRUCTIONS:")
	assert.True(t, strings.HasPrefix(req.Messages[1].Content, "User Question: What are cats?\n\nHere is relevant information"))
	assert.True(t, strings.HasSuffix(req.Messages[1].Content, "\n\nPlease provide a helpful response to the user's question."))
}

func TestResponder_NoDocuments(t *testing.T) {
	fake := (&llmtest.Fake{}).Reply("I don't have that in the knowledge base.")
	r := NewResponder(fake, "m", 0, 0, nil)

	answer := r.Respond(context.Background(), "q", nil)
	assert.Equal(t, "I don't have that in the knowledge base.", answer)
	assert.Contains(t, fake.Request(0).Messages[1].Content, "No relevant documents found in the knowledge base for this query.")
}

func TestResponder_ErrorInline(t *testing.T) {
	fake := &llmtest.Fake{Err: &llm.APIError{Op: "chat completion", Kind: llm.KindTimeout, Err: context.DeadlineExceeded}}
	r := NewResponder(fake, "m", 0, 0, nil)

	answer := r.Respond(context.Background(), "q", nil)
	assert.True(t, strings.HasPrefix(answer, "Sorry, I encountered an error while generating a response: "))
}

func TestLab_Ask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"cats.pdf": "cats"})
	_, err := f.ingestor.Ingest(ctx, testCollection, f.dir)
	require.NoError(t, err)
	f.fake.Reply("first", "second")

	lab := NewLab(
		NewRetriever(f.store, f.fake, testCollection, "text-embedding-3-small", nil),
		NewResponder(f.fake, "m", 0, 0, nil),
		3, nil,
	)
	sess := session.New("")

	answer := lab.Ask(ctx, sess, "cats?")
	assert.True(t, strings.HasPrefix(answer, "first"))
	assert.Contains(t, answer, "• cats.pdf")
	require.NotNil(t, sess.Collection())

	lab.Ask(ctx, sess, "more cats?")
	assert.Equal(t, 5, sess.Len())
}

func TestLab_AskSearchFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.fake.Reply("general knowledge answer")

	lab := NewLab(
		NewRetriever(f.store, f.fake, testCollection, "m", nil),
		NewResponder(f.fake, "m", 0, 0, nil),
		3, nil,
	)

	answer := lab.Ask(context.Background(), session.New(""), "boom")
	assert.Equal(t, "general knowledge answer", answer)
	assert.Contains(t, f.fake.Request(0).Messages[1].Content, noContext)
}
