// internal/workers/vocabulary/resolve-terms/config.go
package resolveterms

import (
	"time"

	"vocabulary-workers/internal/common/config"
)

type Config struct {
	Timeout      time.Duration // whole job, Zeebe or REST
	Deadline     time.Duration // resolution budget, 0 leaves only Timeout
	Parallelism  int
	DedupPolicy  string
	IncludeDebug bool
}

// NewConfig derives the worker config from the application config.
func NewConfig(cfg *config.Config) *Config {
	wc := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		Timeout:      config.GetDuration(wc.Timeout),
		Deadline:     config.GetDuration(cfg.Pipeline.Deadline),
		Parallelism:  cfg.Pipeline.Parallelism,
		DedupPolicy:  cfg.Pipeline.DedupPolicy,
		IncludeDebug: !cfg.App.IsProduction(),
	}
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      5 * time.Minute,
		Parallelism:  1,
		DedupPolicy:  config.DedupFirstSeen,
		IncludeDebug: true,
	}
}
