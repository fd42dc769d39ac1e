package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/labkit/internal/llm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is the labkit release
const Version = "v0.1.0"

var (
	cfgFile   string
	verbose   bool
	modelTier string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "labkit",
	Short: "labkit - small LLM labs for the terminal",
	Long: `labkit bundles six small LLM labs behind one command:

  summarize   summarize a document in one of three styles
  qa          ask a question about a document
  chat        a chatbot with a short rolling memory
  rag         answer questions from a PDF knowledge base
  wear        clothing advice from live weather via tool calling
  factcheck   fact-check claims and get a structured verdict

Every lab talks to an OpenAI-compatible endpoint. Set OPENAI_API_KEY, or
point llm.base_url at a local server such as Ollama.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of labkit.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "labkit %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.labkit/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVar(&modelTier, "model-tier", llm.TierMini, "model tier for chat, rag and factcheck (mini, regular)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(home + "/.labkit")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match LABKIT_*, e.g. LABKIT_RAG_TOP_K
	viper.SetEnvPrefix("LABKIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}
