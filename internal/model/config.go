package model

import "time"

// Config is the complete labkit configuration
type Config struct {
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Weather      WeatherConfig      `yaml:"weather" mapstructure:"weather"`
	Fetch        FetchConfig        `yaml:"fetch" mapstructure:"fetch"`
	RAG          RAGConfig          `yaml:"rag" mapstructure:"rag"`
	Chat         ChatConfig         `yaml:"chat" mapstructure:"chat"`
	FactCheck    FactCheckConfig    `yaml:"factcheck" mapstructure:"factcheck"`
	Session      SessionConfig      `yaml:"session" mapstructure:"session"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// LLMConfig configures the hosted chat / embedding endpoint
type LLMConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"` // openai, ollama
	APIKey         string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL        string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	MiniModel      string `yaml:"mini_model" mapstructure:"mini_model"`
	RegularModel   string `yaml:"regular_model" mapstructure:"regular_model"`
	QAModel        string `yaml:"qa_model" mapstructure:"qa_model"`
	ToolModel      string `yaml:"tool_model" mapstructure:"tool_model"`
	EmbeddingModel string `yaml:"embedding_model" mapstructure:"embedding_model"`
	Timeout        int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens      int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	HTTPProxy      string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy     string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// WeatherConfig configures the OpenWeatherMap client
type WeatherConfig struct {
	APIKey          string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL         string        `yaml:"base_url" mapstructure:"base_url"`
	DefaultLocation string        `yaml:"default_location" mapstructure:"default_location"`
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
	CacheTTL        time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	CacheDir        string        `yaml:"cache_dir" mapstructure:"cache_dir"`
}

// FetchConfig configures downloading documents given by URL
type FetchConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBytes      int64         `yaml:"max_bytes" mapstructure:"max_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// RAGConfig configures the document collection and retrieval
type RAGConfig struct {
	Store        string `yaml:"store" mapstructure:"store"` // sqlite, postgres
	StorePath    string `yaml:"store_path" mapstructure:"store_path"`
	DSN          string `yaml:"dsn,omitempty" mapstructure:"dsn"`
	Collection   string `yaml:"collection" mapstructure:"collection"`
	SourceDir    string `yaml:"source_dir" mapstructure:"source_dir"`
	TopK         int    `yaml:"top_k" mapstructure:"top_k"`
	ExcerptChars int    `yaml:"excerpt_chars" mapstructure:"excerpt_chars"`
	MaxTokens    int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ChatConfig configures the chatbot lab
type ChatConfig struct {
	Greeting string `yaml:"greeting" mapstructure:"greeting"`
}

// FactCheckConfig configures the fact-check lab
type FactCheckConfig struct {
	HistoryDisplay int `yaml:"history_display" mapstructure:"history_display"`
}

// SessionConfig configures session lifetime
type SessionConfig struct {
	IdleTTL time.Duration `yaml:"idle_ttl" mapstructure:"idle_ttl"`
}

// RateLimitingConfig configures outbound API rate limiting
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ConcurrencyConfig configures the ingestion worker pool
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"` // debug, info, warn, error, disable
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:       "openai",
			MiniModel:      "gpt-4o-mini",
			RegularModel:   "gpt-4o",
			QAModel:        "gpt-4.1-nano",
			ToolModel:      "gpt-3.5-turbo",
			EmbeddingModel: "text-embedding-3-small",
			Timeout:        60,
			MaxTokens:      1000,
		},
		Weather: WeatherConfig{
			BaseURL:         "https://api.openweathermap.org/data/2.5",
			DefaultLocation: "Syracuse, NY",
			Timeout:         10 * time.Second,
			CacheTTL:        10 * time.Minute,
			CacheDir:        "./.labkit-cache/weather",
		},
		Fetch: FetchConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "labkit/0.1 (+https://github.com/ppiankov/labkit)",
			MaxBytes:      2_000_000,
			RespectRobots: true,
		},
		RAG: RAGConfig{
			Store:        "sqlite",
			StorePath:    "./labkit_vectors.db",
			Collection:   "Lab4Collection",
			SourceDir:    "./pdfs",
			TopK:         3,
			ExcerptChars: 1500,
			MaxTokens:    1000,
		},
		Chat: ChatConfig{
			Greeting: "How can I help you?",
		},
		FactCheck: FactCheckConfig{
			HistoryDisplay: 5,
		},
		Session: SessionConfig{
			IdleTTL: 30 * time.Minute,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 3,
			BurstSize:         3,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Redacted returns a copy with secrets masked for display
func (c Config) Redacted() Config {
	c.LLM.APIKey = mask(c.LLM.APIKey)
	c.Weather.APIKey = mask(c.Weather.APIKey)
	c.RAG.DSN = mask(c.RAG.DSN)
	return c
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}
