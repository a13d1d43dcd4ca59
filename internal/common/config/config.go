// internal/common/config/config.go
package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Camunda  CamundaConfig           `mapstructure:"camunda"`
	Database DatabaseConfig          `mapstructure:"database"`
	Server   ServerConfig            `mapstructure:"server"`
	Workers  map[string]WorkerConfig `mapstructure:"workers"`
	APIs     APIsConfig              `mapstructure:"apis"`
	Pipeline PipelineConfig          `mapstructure:"pipeline"`
	Logging  LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// IsProduction reports whether debug traces must be stripped from responses.
func (a AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ServerConfig holds the HTTP listener for health, metrics and the REST endpoint.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// APIsConfig holds settings for the external services the pipeline talks to.
type APIsConfig struct {
	LLM  LLMConfig  `mapstructure:"llm"`
	MeSH MeSHConfig `mapstructure:"mesh"`
	DeCS DeCSConfig `mapstructure:"decs"`
}

// LLMConfig points at an OpenAI-compatible chat completion endpoint.
type LLMConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// MeSHConfig configures the NCBI E-utilities client.
type MeSHConfig struct {
	BaseURL   string  `mapstructure:"base_url"`
	APIKey    string  `mapstructure:"api_key"`
	Tool      string  `mapstructure:"tool"`
	Email     string  `mapstructure:"email"`
	RetMax    int     `mapstructure:"retmax"`
	Delay     int     `mapstructure:"delay"`      // milliseconds, before each term
	Timeout   int     `mapstructure:"timeout"`    // milliseconds, per call
	RateLimit float64 `mapstructure:"rate_limit"` // requests per second
}

// DeCSConfig configures the BIREME DeCS client.
type DeCSConfig struct {
	BaseURL   string   `mapstructure:"base_url"`
	APIKey    string   `mapstructure:"api_key"`
	Languages []string `mapstructure:"languages"`
	Delay     int      `mapstructure:"delay"`      // milliseconds, before each query
	Timeout   int      `mapstructure:"timeout"`    // milliseconds, per call
	RateLimit float64  `mapstructure:"rate_limit"` // requests per second
}

// PipelineConfig tunes the resolution pipeline.
type PipelineConfig struct {
	Backends          []string      `mapstructure:"backends"`
	Parallelism       int           `mapstructure:"parallelism"`
	Deadline          int           `mapstructure:"deadline"` // milliseconds, 0 disables
	DedupPolicy       string        `mapstructure:"dedup_policy"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	CacheBackend      string        `mapstructure:"cache_backend"` // redis | memory | none
	HeuristicFallback bool          `mapstructure:"heuristic_fallback"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
