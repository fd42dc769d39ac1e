package cli

import (
	"errors"
	"strings"

	"github.com/ppiankov/labkit/internal/factcheck"
	"github.com/ppiankov/labkit/internal/session"
	"github.com/spf13/cobra"
)

// factcheckCmd represents the factcheck command
var factcheckCmd = &cobra.Command{
	Use:   "factcheck [claim...]",
	Short: "Fact-check claims",
	Long: `Fact-check a claim and print a structured verdict:

  {"claim": ..., "verdict": "True|False|Partially True|Unclear",
   "explanation": ..., "sources": [...]}

Without a claim, reads claims from stdin and shows the most recent checks
after each one.`,
	RunE: runFactcheck,
}

func init() {
	rootCmd.AddCommand(factcheckCmd)
}

func runFactcheck(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	client, err := a.llmClient()
	if err != nil {
		return err
	}
	checker := factcheck.NewChecker(client, a.tierModel(), a.log)
	authority := factcheck.NewAuthorityClassifier(nil, nil)

	ctx, cancel := signalContext(cmd)
	defer cancel()

	sess := session.New("")
	check := func(claim string) bool {
		a.out.Info("Checking facts...")
		result, err := checker.CheckAndRecord(ctx, sess.Checks(), claim)
		if err != nil {
			var verr *factcheck.ValidationError
			if errors.As(err, &verr) {
				a.log.Debug("rejected response: %s", verr.Raw)
				a.out.Error("Error: %s", verr)
				return false
			}
			a.fail(err)
			return false
		}
		if err := a.out.Verdict(&result.Result); err != nil {
			a.fail(err)
			return false
		}
		a.out.Sources(authority.Rank(result.Result.Sources))
		return true
	}

	if len(args) > 0 {
		check(strings.Join(args, " "))
		return nil
	}

	a.out.Header("🔍 AI Fact-Checker")
	a.out.Info("Enter a claim to fact-check (\"exit\" to quit)")
	return repl(ctx, a.in, a.out.Writer(), "> ", func(line string) {
		if !check(line) {
			return
		}
		if err := a.out.ClaimHistory(sess.Checks().Recent(a.cfg.FactCheck.HistoryDisplay)); err != nil {
			a.fail(err)
		}
	})
}
