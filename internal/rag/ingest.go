// Package rag builds the PDF knowledge base and answers questions grounded
// in it.
package rag

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/labkit/internal/extract"
	"github.com/ppiankov/labkit/internal/llm"
	"github.com/ppiankov/labkit/internal/logging"
	"github.com/ppiankov/labkit/internal/model"
	"github.com/ppiankov/labkit/internal/vectorstore"
	"github.com/ppiankov/labkit/internal/worker"
)

// ErrNoDocuments is returned when the source directory holds no PDFs
var ErrNoDocuments = errors.New("no PDF files found")

// errEmptyText marks a PDF that extracted to whitespace only
var errEmptyText = errors.New("no extractable text")

// FileStatus is the outcome of ingesting one file
type FileStatus string

const (
	StatusAdded     FileStatus = "added"
	StatusUpdated   FileStatus = "updated"
	StatusUnchanged FileStatus = "unchanged"
	StatusSkipped   FileStatus = "skipped"
)

// FileResult describes what happened to one source file
type FileResult struct {
	Filename string
	Status   FileStatus
	Err      error // set when Status is StatusSkipped
}

// IngestReport summarizes an ingestion run
type IngestReport struct {
	Collection string
	Dir        string
	Files      []FileResult

	// Stale lists stored entries whose source file is gone. They are kept.
	Stale []string
}

// Count returns how many files ended with status
func (r *IngestReport) Count(status FileStatus) int {
	n := 0
	for _, f := range r.Files {
		if f.Status == status {
			n++
		}
	}
	return n
}

// Processed returns how many files were written to the store
func (r *IngestReport) Processed() int {
	return r.Count(StatusAdded) + r.Count(StatusUpdated)
}

// Skipped returns the files that could not be ingested
func (r *IngestReport) Skipped() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Status == StatusSkipped {
			out = append(out, f)
		}
	}
	return out
}

// Ingestor embeds PDF files into a collection
type Ingestor struct {
	store          vectorstore.Store
	embedder       llm.Client
	embeddingModel string
	workers        int
	log            logging.Logger

	// extractText turns file bytes into text; swapped in tests
	extractText func(name string, data []byte) (string, error)
}

func extractPDF(name string, data []byte) (string, error) {
	return extract.ExtractReader(name, bytes.NewReader(data))
}

// NewIngestor creates an ingestor. workers bounds concurrent extract+embed jobs.
func NewIngestor(store vectorstore.Store, embedder llm.Client, embeddingModel string, workers int, log logging.Logger) *Ingestor {
	if workers <= 0 {
		workers = 4
	}
	return &Ingestor{
		store:          store,
		embedder:       embedder,
		embeddingModel: embeddingModel,
		workers:        workers,
		log:            logging.OrNoOp(log),
		extractText:    extractPDF,
	}
}

// Ingest (re-)embeds every PDF in dir into collection
func (i *Ingestor) Ingest(ctx context.Context, collection, dir string) (*IngestReport, error) {
	return i.sync(ctx, collection, dir, true)
}

// EnsurePopulated brings collection in line with dir. Files missing from
// the store, or whose content hash changed, are ingested; unchanged files
// are left alone. With force every file is re-ingested.
func (i *Ingestor) EnsurePopulated(ctx context.Context, collection, dir string, force bool) (*IngestReport, error) {
	return i.sync(ctx, collection, dir, force)
}

func (i *Ingestor) sync(ctx context.Context, collection, dir string, force bool) (*IngestReport, error) {
	files, err := extract.ListFiles(dir, extract.PDFExtensions...)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoDocuments)
	}
	i.log.Info("found %d PDF files in %s", len(files), dir)

	coll, err := i.store.EnsureCollection(ctx, collection, model.MetricCosine)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}

	if coll.EmbeddingModel != "" && coll.EmbeddingModel != i.embeddingModel && !force {
		i.log.Warn("collection %s was embedded with %s but %s is configured; re-ingest with --force",
			collection, coll.EmbeddingModel, i.embeddingModel)
	}

	known, err := i.manifest(ctx, collection)
	if err != nil {
		return nil, err
	}

	jobs := make([]worker.Job, len(files))
	for n, path := range files {
		jobs[n] = &fileJob{
			path:     path,
			extract:  i.extractText,
			embedder: i.embedder,
			model:    i.embeddingModel,
			known:    known[filepath.Base(path)],
			force:    force,
		}
	}

	report := &IngestReport{Collection: collection, Dir: dir}
	results := worker.Run(ctx, i.workers, jobs)

	// Results come back in filename order, so writes are deterministic
	wrote := false
	rewritten := make(map[string]bool, len(results))
	for n, res := range results {
		name := filepath.Base(files[n])
		if res == nil {
			return report, fmt.Errorf("ingest interrupted at %s: %w", name, ctx.Err())
		}

		fr := res.(*fileResult)
		if fr.err != nil {
			i.log.Warn("skipping %s: %v", name, fr.err)
			report.Files = append(report.Files, FileResult{Filename: name, Status: StatusSkipped, Err: fr.err})
			continue
		}
		if fr.doc == nil {
			i.log.Debug("%s unchanged", name)
			report.Files = append(report.Files, FileResult{Filename: name, Status: StatusUnchanged})
			continue
		}

		if err := i.store.Upsert(ctx, collection, *fr.doc); err != nil {
			i.log.Warn("skipping %s: %v", name, err)
			report.Files = append(report.Files, FileResult{Filename: name, Status: StatusSkipped, Err: err})
			continue
		}
		wrote = true
		rewritten[name] = true

		status := StatusAdded
		if _, existed := known[name]; existed {
			status = StatusUpdated
		}
		report.Files = append(report.Files, FileResult{Filename: name, Status: status})
	}

	if len(results) < len(files) || ctx.Err() != nil {
		cause := ctx.Err()
		if cause == nil {
			cause = errors.New("worker pool stopped early")
		}
		return report, fmt.Errorf("ingest interrupted after %d of %d files: %w", len(results), len(files), cause)
	}

	if wrote && coll.EmbeddingModel != i.embeddingModel {
		if relabel(coll.EmbeddingModel, known, rewritten) {
			if err := i.store.SetEmbeddingModel(ctx, collection, i.embeddingModel); err != nil {
				return report, err
			}
		} else {
			i.log.Warn("collection %s still holds %s vectors; keeping that label until a full re-ingest",
				collection, coll.EmbeddingModel)
		}
	}

	present := make(map[string]bool, len(files))
	for _, path := range files {
		present[filepath.Base(path)] = true
	}
	for id := range known {
		if !present[id] {
			report.Stale = append(report.Stale, id)
		}
	}
	sort.Strings(report.Stale)

	i.log.Info("processed %d/%d PDF files (%d unchanged, %d skipped)",
		report.Processed(), len(files), report.Count(StatusUnchanged), report.Count(StatusSkipped))
	return report, nil
}

// relabel reports whether the collection may take the configured model as
// its label: either it had none, or every stored document was rewritten
// in this run.
func relabel(current string, known map[string]string, rewritten map[string]bool) bool {
	if current == "" {
		return true
	}
	for id := range known {
		if !rewritten[id] {
			return false
		}
	}
	return true
}

// manifest maps stored document IDs to their recorded content hash
func (i *Ingestor) manifest(ctx context.Context, collection string) (map[string]string, error) {
	docs, err := i.store.List(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("read collection: %w", err)
	}
	known := make(map[string]string, len(docs))
	for _, d := range docs {
		known[d.ID] = d.Metadata[model.MetaSHA256]
	}
	return known, nil
}

type fileJob struct {
	path     string
	extract  func(name string, data []byte) (string, error)
	embedder llm.Client
	model    string
	known    string // stored hash, "" when absent
	force    bool
}

type fileResult struct {
	doc *model.Document // nil when unchanged
	err error
}

func (r *fileResult) GetError() error {
	return r.err
}

func (j *fileJob) Execute(ctx context.Context) worker.Result {
	data, err := os.ReadFile(j.path)
	if err != nil {
		return &fileResult{err: err}
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	if !j.force && j.known != "" && j.known == hash {
		return &fileResult{}
	}

	name := filepath.Base(j.path)
	text, err := j.extract(name, data)
	if err != nil {
		return &fileResult{err: err}
	}
	if strings.TrimSpace(text) == "" {
		return &fileResult{err: errEmptyText}
	}

	vec, err := j.embedder.Embed(ctx, j.model, text)
	if err != nil {
		return &fileResult{err: fmt.Errorf("embed: %w", err)}
	}

	return &fileResult{doc: &model.Document{
		ID:        name,
		Text:      text,
		Embedding: vec,
		Metadata: map[string]string{
			model.MetaFilename: name,
			model.MetaSHA256:   hash,
			model.MetaSize:     strconv.Itoa(len(data)),
		},
	}}
}
