package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/labkit/internal/docqa"
	"github.com/ppiankov/labkit/internal/llm"
	"github.com/ppiankov/labkit/internal/llm/llmtest"
	"github.com/ppiankov/labkit/internal/model"
	"github.com/ppiankov/labkit/internal/weather"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const verdictJSON = `{"claim": "Water boils at 100C", "verdict": "True", "explanation": "At sea level.", "sources": ["physics textbook"]}`

// isolate points config, caches and stores at a temp dir and clears the
// well-known credential variables
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENWEATHERMAP_API_KEY", "")
	t.Setenv("OLLAMA_BASE_URL", "")
	t.Setenv("LABKIT_RAG_STORE_PATH", filepath.Join(dir, "vectors.db"))
	t.Setenv("LABKIT_RAG_SOURCE_DIR", filepath.Join(dir, "pdfs"))
	t.Setenv("LABKIT_WEATHER_CACHE_DIR", filepath.Join(dir, "cache"))
	viper.Reset()

	cfgFile, verbose, modelTier = "", false, llm.TierMini
	summaryStyle = string(docqa.StyleShort)
	ragDir, ragForce, ragTopK = "", false, 0
	showWeather = false
	return dir
}

func runCLI(t *testing.T, fake *llmtest.Fake, stdin string, args ...string) (string, error) {
	t.Helper()

	orig := newLLMClient
	newLLMClient = func(*model.Config) (llm.Client, error) { return fake, nil }
	t.Cleanup(func() { newLLMClient = orig })

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestVersion(t *testing.T) {
	isolate(t)
	out, err := runCLI(t, &llmtest.Fake{}, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "labkit "+Version+"\n", out)
}

func TestLoadConfig_Environment(t *testing.T) {
	isolate(t)
	t.Setenv("LABKIT_RAG_TOP_K", "7")
	t.Setenv("LABKIT_WEATHER_CACHE_TTL", "90s")
	t.Setenv("LABKIT_LLM_PROVIDER", "ollama")
	t.Setenv("OLLAMA_BASE_URL", "http://gpu-box:11434/")
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	initConfig()

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.RAG.TopK)
	assert.Equal(t, 90*time.Second, cfg.Weather.CacheTTL)
	assert.Equal(t, "http://gpu-box:11434/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "sk-from-env", cfg.LLM.APIKey)
	assert.Equal(t, "Lab4Collection", cfg.RAG.Collection)
}

func TestLoadConfig_File(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "labkit.yaml", "chat:\n  greeting: Hi there\nlog:\n  level: warn\n")
	cfgFile = path
	initConfig()

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "Hi there", cfg.Chat.Greeting)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 1000, cfg.LLM.MaxTokens)
}

func TestConfigShow_RedactsSecrets(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-abcdefghijkl")

	out, err := runCLI(t, &llmtest.Fake{}, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Current Configuration")
	assert.Contains(t, out, "sk-a****ijkl")
	assert.NotContains(t, out, "sk-abcdefghijkl")
}

func TestConfigInit(t *testing.T) {
	dir := isolate(t)

	out, err := runCLI(t, &llmtest.Fake{}, "", "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Created default configuration")

	data, err := os.ReadFile(filepath.Join(dir, ".labkit", "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "collection: Lab4Collection")

	_, err = runCLI(t, &llmtest.Fake{}, "", "config", "init")
	assert.ErrorContains(t, err, "already exists")
}

func TestSummarize(t *testing.T) {
	dir := isolate(t)
	doc := writeFile(t, dir, "notes.txt", "Go is a language.")
	fake := (&llmtest.Fake{}).Reply("Go is concise.")

	out, err := runCLI(t, fake, "", "summarize", doc, "--style", "bullets", "--model-tier", "regular")
	require.NoError(t, err)
	assert.Contains(t, out, "Go is concise.")

	require.Equal(t, 1, fake.Calls())
	req := fake.Request(0)
	assert.Equal(t, "gpt-4o", req.Model)
	assert.Contains(t, req.Messages[len(req.Messages)-1].Content, "Go is a language.")
}

func TestSummarize_UnknownStyle(t *testing.T) {
	dir := isolate(t)
	doc := writeFile(t, dir, "notes.txt", "text")

	_, err := runCLI(t, &llmtest.Fake{}, "", "summarize", doc, "--style", "haiku")
	assert.ErrorIs(t, err, docqa.ErrUnknownStyle)
}

func TestQA_SingleQuestion(t *testing.T) {
	dir := isolate(t)
	doc := writeFile(t, dir, "report.txt", "Revenue grew 10%.")
	fake := (&llmtest.Fake{}).Reply("It grew 10%.")

	out, err := runCLI(t, fake, "", "qa", doc, "How", "much?")
	require.NoError(t, err)
	assert.Contains(t, out, "It grew 10%.")

	req := fake.Request(0)
	assert.Equal(t, docqa.DefaultQAModel, req.Model)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, docqa.Prompt("Revenue grew 10%.", "How much?"), req.Messages[0].Content)
}

func TestQA_Interactive(t *testing.T) {
	dir := isolate(t)
	doc := writeFile(t, dir, "report.txt", "Revenue grew 10%.")
	fake := (&llmtest.Fake{}).Reply("one", "two")

	out, err := runCLI(t, fake, "first?\n\nsecond?\nexit\nignored?\n", "qa", doc)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.Calls())
	assert.Contains(t, out, "one")
	assert.Contains(t, out, "two")
}

func TestChat_KeepsShortHistory(t *testing.T) {
	isolate(t)
	fake := (&llmtest.Fake{}).Reply("Paris is in France.", "Sure.", "Bye.")

	out, err := runCLI(t, fake, "where is paris\nno\nthanks\n", "chat")
	require.NoError(t, err)
	assert.Contains(t, out, "How can I help you?")
	assert.Contains(t, out, "Paris is in France.")

	require.Equal(t, 3, fake.Calls())
	second := fake.Request(1)
	assert.Equal(t, "ask me WHAT ELSE CAN I HELP YOU WITH?", second.Messages[len(second.Messages)-1].Content)

	// greeting plus the last exchange plus the new prompt
	third := fake.Request(2)
	require.Len(t, third.Messages, 4)
	assert.Equal(t, "How can I help you?", third.Messages[0].Content)
}

func TestChat_ErrorKeepsSession(t *testing.T) {
	isolate(t)
	fake := &llmtest.Fake{Err: &llm.APIError{Op: "stream", Kind: llm.KindRateLimit, StatusCode: 429}}

	out, err := runCLI(t, fake, "hello\nhello again\n", "chat")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "rate limiting"))
}

func TestFactcheck_Single(t *testing.T) {
	isolate(t)
	fake := (&llmtest.Fake{}).Reply(verdictJSON)

	out, err := runCLI(t, fake, "", "factcheck", "Water", "boils", "at", "100C")
	require.NoError(t, err)
	assert.Contains(t, out, `"verdict": "True"`)
	assert.True(t, fake.Request(0).JSONMode)
	assert.Contains(t, out, "• physics textbook (unknown)")
	assert.NotContains(t, out, "Recent Checks")
}

func TestFactcheck_InvalidResponse(t *testing.T) {
	isolate(t)
	fake := (&llmtest.Fake{}).Reply(`{"claim": "x", "verdict": "Maybe", "explanation": "", "sources": []}`)

	out, err := runCLI(t, fake, "", "factcheck", "x")
	require.NoError(t, err)
	assert.Contains(t, out, "invalid fact-check response")
}

func TestFactcheck_InteractiveHistory(t *testing.T) {
	isolate(t)
	fake := (&llmtest.Fake{}).Reply(verdictJSON, verdictJSON)

	out, err := runCLI(t, fake, "first claim\nsecond claim\n", "factcheck")
	require.NoError(t, err)
	assert.Contains(t, out, "Recent Checks")

	last := out[strings.LastIndex(out, "Recent Checks"):]
	assert.Less(t, strings.Index(last, "1. second claim..."), strings.Index(last, "2. first claim..."))
}

func TestCheck(t *testing.T) {
	isolate(t)

	out, err := runCLI(t, &llmtest.Fake{}, "", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "fake API key is valid")
	assert.Contains(t, out, "OPENWEATHERMAP_API_KEY")

	_, err = runCLI(t, &llmtest.Fake{AvailableErr: &llm.APIError{Op: "models", Kind: llm.KindAuth, StatusCode: 401}}, "", "check")
	assert.Error(t, err)
}

func weatherServer(t *testing.T) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"name": "Syracuse",
			"main": {"temp": 300.0, "feels_like": 301.5, "temp_min": 298.15, "temp_max": 302.0, "humidity": 40},
			"weather": [{"main": "Clear", "description": "clear sky"}]
		}`))
	}))
	t.Cleanup(server.Close)
	t.Setenv("LABKIT_WEATHER_BASE_URL", server.URL)
	t.Setenv("OPENWEATHERMAP_API_KEY", "wkey")
}

func TestWeather(t *testing.T) {
	isolate(t)
	weatherServer(t)

	out, err := runCLI(t, &llmtest.Fake{}, "", "weather", "Syracuse,", "NY")
	require.NoError(t, err)
	assert.Contains(t, out, "26.85°C")
	assert.Contains(t, out, "Clear Sky")
}

func TestWear_ToolFlow(t *testing.T) {
	isolate(t)
	weatherServer(t)

	fake := &llmtest.Fake{Responses: []*llm.ChatResponse{{
		ToolCalls: []model.ToolCall{{ID: "call_1", Name: "get_weather_for_openai", Arguments: `{"location":"Syracuse, NY"}`}},
	}}}
	fake.Reply("Wear a t-shirt. Perfect picnic weather.")

	out, err := runCLI(t, fake, "", "wear", "--show-weather")
	require.NoError(t, err)
	assert.Contains(t, out, "Clothing Suggestions for Syracuse, NY")
	assert.Contains(t, out, "Perfect picnic weather.")
	assert.Contains(t, out, "26.85°C")
	assert.Equal(t, 2, fake.Calls())
	assert.Equal(t, "gpt-3.5-turbo", fake.Request(0).Model)
}

func TestWear_FailurePrintsFallback(t *testing.T) {
	isolate(t)
	weatherServer(t)

	out, err := runCLI(t, &llmtest.Fake{}, "", "wear", "Paris")
	require.NoError(t, err)
	assert.Contains(t, out, "Sorry, I couldn't process your request.")
}

func TestWear_MissingWeatherKey(t *testing.T) {
	isolate(t)
	_, err := runCLI(t, &llmtest.Fake{}, "", "wear", "Paris")
	assert.ErrorIs(t, err, weather.ErrMissingCredential)
}

func TestRAGStatus_Empty(t *testing.T) {
	isolate(t)

	out, err := runCLI(t, &llmtest.Fake{}, "", "rag", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Lab4Collection")
	assert.Contains(t, out, "No documents indexed")
}

func TestRAGAsk_NoDocuments(t *testing.T) {
	isolate(t)

	_, err := runCLI(t, &llmtest.Fake{}, "", "rag", "ask", "anything?")
	assert.Error(t, err)
}

func TestSummarize_URL(t *testing.T) {
	isolate(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><p>Remote body text.</p></body></html>"))
	}))
	defer server.Close()
	fake := (&llmtest.Fake{}).Reply("A remote page.")

	out, err := runCLI(t, fake, "", "summarize", server.URL+"/page")
	require.NoError(t, err)
	assert.Contains(t, out, "A remote page.")
	assert.Contains(t, fake.Request(0).Messages[0].Content, "Remote body text.")
}
