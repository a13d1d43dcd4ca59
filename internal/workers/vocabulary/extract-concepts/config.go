// internal/workers/vocabulary/extract-concepts/config.go
package extractconcepts

import (
	"time"

	"vocabulary-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func NewConfig(cfg *config.Config) *Config {
	return &Config{
		Timeout: config.GetDuration(config.GetWorkerConfig(cfg, TaskType).Timeout),
	}
}
