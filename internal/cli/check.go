package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate API credentials",
	Long: `Verify that the model endpoint accepts the configured key and that a
weather key is present.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	client, err := a.llmClient()
	if err == nil {
		err = client.IsAvailable(ctx)
	}
	if err != nil {
		a.fail(err)
		return fmt.Errorf("model endpoint check failed")
	}
	a.out.Success("%s API key is valid", client.Name())

	if _, err := a.weatherClient(); err != nil {
		a.out.Warn("Weather: %s", err)
	} else {
		a.out.Success("Weather API key is set")
	}
	return nil
}
