package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/ppiankov/labkit/internal/llm"
	"github.com/ppiankov/labkit/internal/model"
	"github.com/ppiankov/labkit/internal/rag"
	"github.com/ppiankov/labkit/internal/session"
	"github.com/ppiankov/labkit/internal/vectorstore"
	"github.com/spf13/cobra"
)

var (
	ragDir   string
	ragForce bool
	ragTopK  int
)

// ragCmd represents the rag command
var ragCmd = &cobra.Command{
	Use:   "rag",
	Short: "Answer questions from a PDF knowledge base",
	Long: `Build a persistent vector index from a directory of PDFs and answer
questions grounded in the most similar documents.

The index is reconciled on every run: new or changed files are embedded,
unchanged files are skipped.`,
}

var ragIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index the PDFs in the source directory",
	Long: `Extract and embed every PDF in the source directory (rag.source_dir or --dir).
Use --force to re-embed files that are already indexed.`,
	Args: cobra.NoArgs,
	RunE: runRAGIngest,
}

var ragAskCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask one question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRAGAsk,
}

var ragChatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions interactively",
	Args:  cobra.NoArgs,
	RunE:  runRAGChat,
}

var ragStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what is indexed",
	Args:  cobra.NoArgs,
	RunE:  runRAGStatus,
}

func init() {
	rootCmd.AddCommand(ragCmd)
	ragCmd.AddCommand(ragIngestCmd, ragAskCmd, ragChatCmd, ragStatusCmd)

	ragCmd.PersistentFlags().StringVar(&ragDir, "dir", "", "PDF directory (default: rag.source_dir)")
	ragIngestCmd.Flags().BoolVar(&ragForce, "force", false, "re-embed every file")
	ragAskCmd.Flags().IntVar(&ragTopK, "top-k", 0, "documents to retrieve (default: rag.top_k)")
	ragChatCmd.Flags().IntVar(&ragTopK, "top-k", 0, "documents to retrieve (default: rag.top_k)")
}

// ragLab bundles the store and client a rag command works with
type ragLab struct {
	*app
	store  vectorstore.Store
	client llm.Client
}

func newRAGLab(ctx context.Context, cmd *cobra.Command, needLLM bool) (*ragLab, error) {
	a, err := newApp(cmd)
	if err != nil {
		return nil, err
	}

	var client llm.Client
	if needLLM {
		if client, err = a.llmClient(); err != nil {
			return nil, err
		}
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	return &ragLab{app: a, store: store, client: client}, nil
}

func (r *ragLab) sourceDir() string {
	if ragDir != "" {
		return ragDir
	}
	return r.cfg.RAG.SourceDir
}

func (r *ragLab) ingestor() *rag.Ingestor {
	return rag.NewIngestor(r.store, r.client, r.cfg.LLM.EmbeddingModel, r.cfg.Concurrency.Workers, r.log)
}

// populate brings the index in line with the source directory. A missing
// directory is only a warning when the index already has documents.
func (r *ragLab) populate(ctx context.Context, force bool) error {
	report, err := r.ingestor().EnsurePopulated(ctx, r.cfg.RAG.Collection, r.sourceDir(), force)
	if errors.Is(err, rag.ErrNoDocuments) {
		if n, cerr := r.store.Count(ctx, r.cfg.RAG.Collection); cerr == nil && n > 0 {
			r.out.Warn("No PDF files in %s; using %d indexed documents", r.sourceDir(), n)
			return nil
		}
		return err
	}
	if err != nil {
		return err
	}
	if report.Processed() > 0 || len(report.Skipped()) > 0 {
		r.out.IngestReport(report)
	}
	return nil
}

func (r *ragLab) lab() *rag.Lab {
	topK := ragTopK
	if topK <= 0 {
		topK = r.cfg.RAG.TopK
	}
	retriever := rag.NewRetriever(r.store, r.client, r.cfg.RAG.Collection, r.cfg.LLM.EmbeddingModel, r.log)
	responder := rag.NewResponder(r.client, r.tierModel(), r.cfg.RAG.MaxTokens, r.cfg.RAG.ExcerptChars, r.log)
	return rag.NewLab(retriever, responder, topK, r.log)
}

func runRAGIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	r, err := newRAGLab(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer func() { _ = r.store.Close() }()

	r.out.Info("Loading PDF files from %s...", r.sourceDir())
	report, err := r.ingestor().EnsurePopulated(ctx, r.cfg.RAG.Collection, r.sourceDir(), ragForce)
	if err != nil {
		return err
	}
	r.out.IngestReport(report)
	return nil
}

func runRAGAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	r, err := newRAGLab(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer func() { _ = r.store.Close() }()

	if err := r.populate(ctx, false); err != nil {
		return err
	}

	r.out.Text(r.lab().Ask(ctx, session.New(""), strings.Join(args, " ")))
	return nil
}

func runRAGChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	r, err := newRAGLab(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer func() { _ = r.store.Close() }()

	if err := r.populate(ctx, false); err != nil {
		return err
	}

	lab := r.lab()
	mgr := session.NewManager("", r.cfg.Session.IdleTTL, nil)
	defer mgr.Close()
	sess := mgr.GetOrCreate("")

	r.out.Header("📚 Knowledge base: " + r.cfg.RAG.Collection)
	r.out.Info("Ask about the documents (\"exit\" to quit)")
	return repl(ctx, r.in, r.out.Writer(), "> ", func(line string) {
		sess = mgr.GetOrCreate(sess.ID)
		r.out.Text(lab.Ask(ctx, sess, line))
	})
}

func runRAGStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	r, err := newRAGLab(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer func() { _ = r.store.Close() }()

	coll, err := r.store.EnsureCollection(ctx, r.cfg.RAG.Collection, model.MetricCosine)
	if err != nil {
		return err
	}
	docs, err := r.store.List(ctx, coll.Name)
	if err != nil {
		return err
	}

	embeddingModel := coll.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "(none yet)"
	}

	r.out.Header("📚 " + coll.Name)
	r.out.Text("Store:           " + r.cfg.RAG.Store)
	r.out.Text("Metric:          " + string(coll.Metric))
	r.out.Text("Embedding model: " + embeddingModel)
	if len(docs) == 0 {
		r.out.Warn("No documents indexed. Run 'labkit rag ingest'.")
		return nil
	}
	r.out.Info("%d documents", len(docs))
	for _, d := range docs {
		r.out.Text("  • " + d.ID)
	}
	return nil
}
