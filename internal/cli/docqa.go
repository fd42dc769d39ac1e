package cli

import (
	"fmt"
	"strings"

	"github.com/ppiankov/labkit/internal/docqa"
	"github.com/spf13/cobra"
)

var summaryStyle string

// summarizeCmd represents the summarize command
var summarizeCmd = &cobra.Command{
	Use:   "summarize <file>",
	Short: "Summarize a document",
	Long: `Summarize a text, Markdown, HTML or PDF document, given as a path or an
http(s) URL. Use "-" to read text from stdin.

Styles:
  short       about 100 words
  paragraphs  two connecting paragraphs
  bullets     five bullet points

Example:
  labkit summarize notes.md
  labkit summarize https://go.dev/doc/effective_go
  labkit summarize paper.pdf --style bullets --model-tier regular`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

// qaCmd represents the qa command
var qaCmd = &cobra.Command{
	Use:   "qa <file> [question...]",
	Short: "Ask questions about a document",
	Long: `Answer a question about a single document. Without a question, reads
questions from stdin until "exit".

Example:
  labkit qa report.txt "What is the main finding?"
  labkit qa report.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQA,
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(qaCmd)

	summarizeCmd.Flags().StringVar(&summaryStyle, "style", string(docqa.StyleShort),
		"summary style ("+styleNames()+")")
}

func runSummarize(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	style, err := docqa.ParseStyle(summaryStyle)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd)
	defer cancel()

	doc, err := a.readDocument(ctx, args[0])
	if err != nil {
		return err
	}
	client, err := a.llmClient()
	if err != nil {
		return err
	}

	a.log.Debug("summarizing %s (%d chars) as %s with %s", args[0], len(doc), style, a.tierModel())
	if _, err := docqa.NewSummarizer(client, a.tierModel()).Summarize(ctx, doc, style, a.out.Writer()); err != nil {
		a.fail(err)
		return nil
	}
	fmt.Fprintln(a.out.Writer())
	return nil
}

func runQA(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	doc, err := a.readDocument(ctx, args[0])
	if err != nil {
		return err
	}
	client, err := a.llmClient()
	if err != nil {
		return err
	}
	answerer := docqa.NewAnswerer(client, a.cfg.LLM.QAModel)

	ask := func(question string) {
		if _, err := answerer.Answer(ctx, doc, question, a.out.Writer()); err != nil {
			a.fail(err)
			return
		}
		fmt.Fprintln(a.out.Writer())
	}

	if len(args) > 1 {
		ask(strings.Join(args[1:], " "))
		return nil
	}

	a.out.Header("📄 " + args[0])
	a.out.Info("Ask a question about the document (\"exit\" to quit)")
	return repl(ctx, a.in, a.out.Writer(), "> ", ask)
}

func styleNames() string {
	names := make([]string, len(docqa.Styles))
	for i, s := range docqa.Styles {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
