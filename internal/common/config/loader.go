// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DedupFirstSeen = "first_seen"
	DedupMaxScore  = "max_score"

	CacheRedis  = "redis"
	CacheMemory = "memory"
	CacheNone   = "none"
)

// Task types with a longer default timeout than the generic worker default.
var defaultWorkerTimeouts = map[string]int{
	"resolve-vocabulary-terms": 300000,
	"extract-search-concepts":  60000,
	"search-vocabulary-terms":  60000,
	"format-vocabulary-terms":  5000,
}

func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional overlay

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetDefault("pipeline.heuristic_fallback", true)
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env", // tests in test/e2e
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from the conventional environment variables.
func overrideEmptyConfig(cfg *Config) {
	if cfg.APIs.LLM.APIKey == "" {
		cfg.APIs.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIs.MeSH.APIKey == "" {
		cfg.APIs.MeSH.APIKey = os.Getenv("NCBI_API_KEY")
	}
	if cfg.APIs.DeCS.APIKey == "" {
		cfg.APIs.DeCS.APIKey = os.Getenv("DECS_API_KEY")
	}
	if cfg.Database.Redis.Password == "" {
		cfg.Database.Redis.Password = os.Getenv("REDIS_PASSWORD")
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = os.Getenv("APP_ENVIRONMENT")
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "vocabulary-workers"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}

	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = defaultWorkerTimeout(key)
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	llm := &cfg.APIs.LLM
	if llm.BaseURL == "" {
		llm.BaseURL = "https://api.openai.com/v1"
	}
	if llm.Model == "" {
		llm.Model = "gpt-4o-mini"
	}
	if llm.Timeout == 0 {
		llm.Timeout = 59000
	}

	mesh := &cfg.APIs.MeSH
	if mesh.BaseURL == "" {
		mesh.BaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	}
	if mesh.Tool == "" {
		mesh.Tool = cfg.App.Name
	}
	if mesh.RetMax == 0 {
		mesh.RetMax = 1000
	}
	if mesh.Delay == 0 {
		mesh.Delay = 1000
	}
	if mesh.Timeout == 0 {
		mesh.Timeout = 30000
	}
	if mesh.RateLimit == 0 {
		mesh.RateLimit = 2
	}

	decs := &cfg.APIs.DeCS
	if decs.BaseURL == "" {
		decs.BaseURL = "https://api.bvsalud.org/decs/v2"
	}
	if len(decs.Languages) == 0 {
		decs.Languages = []string{"en", "pt", "es"}
	}
	if decs.Delay == 0 {
		decs.Delay = 500
	}
	if decs.Timeout == 0 {
		decs.Timeout = 30000
	}
	if decs.RateLimit == 0 {
		decs.RateLimit = 2
	}

	p := &cfg.Pipeline
	if len(p.Backends) == 0 {
		p.Backends = []string{"mesh", "decs"}
	}
	if p.Parallelism == 0 {
		p.Parallelism = 1
	}
	if p.DedupPolicy == "" {
		p.DedupPolicy = DedupFirstSeen
	}
	if p.CacheTTL == 0 {
		p.CacheTTL = 24 * time.Hour
	}
	if p.CacheBackend == "" {
		p.CacheBackend = CacheMemory
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	for _, b := range cfg.Pipeline.Backends {
		if b != "mesh" && b != "decs" {
			return fmt.Errorf("pipeline.backends: unsupported backend %q", b)
		}
	}

	switch cfg.Pipeline.DedupPolicy {
	case DedupFirstSeen, DedupMaxScore:
	default:
		return fmt.Errorf("pipeline.dedup_policy must be %s or %s", DedupFirstSeen, DedupMaxScore)
	}

	if cfg.Pipeline.Parallelism < 1 {
		return fmt.Errorf("pipeline.parallelism must be >= 1")
	}
	if cfg.Pipeline.Deadline < 0 {
		return fmt.Errorf("pipeline.deadline must not be negative")
	}

	switch cfg.Pipeline.CacheBackend {
	case CacheRedis:
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required when pipeline.cache_backend is redis")
		}
	case CacheMemory, CacheNone:
	default:
		return fmt.Errorf("pipeline.cache_backend: unsupported value %q", cfg.Pipeline.CacheBackend)
	}

	if cfg.APIs.MeSH.RateLimit < 0 || cfg.APIs.DeCS.RateLimit < 0 {
		return fmt.Errorf("apis rate_limit must not be negative")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

func defaultWorkerTimeout(taskType string) int {
	if t, ok := defaultWorkerTimeouts[taskType]; ok {
		return t
	}
	return 30000
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       defaultWorkerTimeout(workerName),
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
