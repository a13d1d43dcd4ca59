// internal/workers/vocabulary/format-terms/config.go
package formatterms

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

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
