package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ppiankov/labkit/internal/cache"
	"github.com/ppiankov/labkit/internal/extract"
	"github.com/ppiankov/labkit/internal/llm"
	"github.com/ppiankov/labkit/internal/logging"
	"github.com/ppiankov/labkit/internal/model"
	"github.com/ppiankov/labkit/internal/render"
	"github.com/ppiankov/labkit/internal/vectorstore"
	"github.com/ppiankov/labkit/internal/weather"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// newLLMClient builds the model client; tests replace it
var newLLMClient = func(cfg *model.Config) (llm.Client, error) {
	return llm.NewClient(llm.ConfigFromModel(cfg))
}

// app carries what every lab command needs
type app struct {
	cfg *model.Config
	log *logging.GologLogger
	out *render.Renderer
	in  io.Reader
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return &app{
		cfg: cfg,
		log: logging.New(cmd.ErrOrStderr(), cfg.Log.Level),
		out: render.New(cmd.OutOrStdout()),
		in:  cmd.InOrStdin(),
	}, nil
}

// loadConfig merges defaults, config file and environment into a Config
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := registerDefaults(cfg); err != nil {
		return nil, err
	}

	// Well-known variables alongside LABKIT_*
	_ = viper.BindEnv("llm.api_key", "LABKIT_LLM_API_KEY", "OPENAI_API_KEY")
	_ = viper.BindEnv("weather.api_key", "LABKIT_WEATHER_API_KEY", "OPENWEATHERMAP_API_KEY")
	_ = viper.BindEnv("rag.dsn", "LABKIT_RAG_DSN", "DATABASE_URL")

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if cfg.LLM.BaseURL == "" && strings.EqualFold(cfg.LLM.Provider, "ollama") {
		if u := os.Getenv("OLLAMA_BASE_URL"); u != "" {
			cfg.LLM.BaseURL = ollamaAPIBase(u)
		}
	}
	if verbose || viper.GetBool("verbose") {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// registerDefaults makes every config key known to viper so that
// LABKIT_* variables override them
func registerDefaults(cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("error reading defaults: %w", err)
	}
	setDefaults("", tree)
	return nil
}

func setDefaults(prefix string, tree map[string]any) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			setDefaults(key, sub)
			continue
		}
		viper.SetDefault(key, v)
	}
}

// ollamaAPIBase turns OLLAMA_BASE_URL (http://host:11434) into the
// OpenAI-compatible endpoint
func ollamaAPIBase(u string) string {
	u = strings.TrimRight(u, "/")
	if strings.HasSuffix(u, "/v1") {
		return u
	}
	return u + "/v1"
}

func (a *app) llmClient() (llm.Client, error) {
	return newLLMClient(a.cfg)
}

// tierModel is the model chosen by --model-tier
func (a *app) tierModel() string {
	return llm.ConfigFromModel(a.cfg).ModelForTier(modelTier)
}

func (a *app) weatherClient() (*weather.Client, error) {
	c := cache.NewLayeredCache(a.cfg.Weather.CacheTTL, a.cfg.Weather.CacheDir)
	return weather.NewClient(weather.ConfigFromModel(a.cfg), c, a.log)
}

func (a *app) openStore(ctx context.Context) (vectorstore.Store, error) {
	store, err := vectorstore.Open(ctx, vectorstore.ConfigFromModel(a.cfg), a.log)
	if err != nil {
		return nil, fmt.Errorf("error opening vector store: %w", err)
	}
	return store, nil
}

// fail prints an interaction-level error without ending the command
func (a *app) fail(err error) {
	a.out.Error("Error: %s", llm.UserMessage(err))
}

// readDocument extracts text from a file, an http(s) URL, or stdin when
// path is "-"
func (a *app) readDocument(ctx context.Context, path string) (string, error) {
	switch {
	case path == "-":
		return extract.ExtractReader("stdin.txt", a.in)
	case extract.IsURL(path):
		res, err := extract.NewFetcher(extract.FetchConfig{
			Timeout:       a.cfg.Fetch.Timeout,
			UserAgent:     a.cfg.Fetch.UserAgent,
			MaxBytes:      a.cfg.Fetch.MaxBytes,
			RespectRobots: a.cfg.Fetch.RespectRobots,
			HTTPProxy:     a.cfg.LLM.HTTPProxy,
			HTTPSProxy:    a.cfg.LLM.HTTPSProxy,
		}).Fetch(ctx, path)
		if err != nil {
			return "", err
		}
		a.log.Debug("fetched %s (%s) as %q", res.FinalURL, res.ContentType, res.Name)
		return res.Text, nil
	default:
		return extract.Extract(path)
	}
}

// signalContext is canceled on Ctrl-C or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// repl reads lines until EOF, an exit word or cancellation, passing each
// non-empty line to handle
func repl(ctx context.Context, in io.Reader, out io.Writer, prompt string, handle func(line string)) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for ctx.Err() == nil {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit", "/exit", "/quit":
			return nil
		}
		handle(line)
	}
	return nil
}
