package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"20"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"2"`

	// Result cache
	RedisURL     string        `envconfig:"REDIS_URL"`
	CacheEnabled bool          `envconfig:"CACHE_ENABLED" default:"true"`
	CacheTTL     time.Duration `envconfig:"CACHE_TTL" default:"1800s"`
	CacheMaxSize int           `envconfig:"CACHE_MAX_SIZE" default:"1000"`

	// Vision provider
	VisionProvider   string        `envconfig:"VISION_PROVIDER" default:"deepface"`
	VisionURL        string        `envconfig:"VISION_URL" default:"http://localhost:5000"`
	VisionTimeout    time.Duration `envconfig:"VISION_TIMEOUT" default:"10s"`
	ModelLoadTimeout time.Duration `envconfig:"MODEL_LOAD_TIMEOUT" default:"60s"`

	// Recognition thresholds
	ConfidenceThreshold float64 `envconfig:"CONFIDENCE_THRESHOLD" default:"0.42"`
	RecognitionProfile  string  `envconfig:"RECOGNITION_PROFILE"`
	MinFaceSize         int     `envconfig:"MIN_FACE_SIZE" default:"80"`
	MaxFaceSize         int     `envconfig:"MAX_FACE_SIZE" default:"1000"`
	DetectionConfidence float64 `envconfig:"DETECTION_CONFIDENCE" default:"0.8"`

	// Batch engine
	MaxBatchSize   int           `envconfig:"MAX_BATCH_SIZE" default:"50"`
	MaxConcurrency int           `envconfig:"MAX_CONCURRENCY" default:"4"`
	JobTTL         time.Duration `envconfig:"JOB_TTL" default:"1h"`

	// Vector index
	HNSWM              int           `envconfig:"HNSW_M" default:"16"`
	HNSWEfConstruction int           `envconfig:"HNSW_EF_CONSTRUCTION" default:"200"`
	HNSWEfSearch       int           `envconfig:"HNSW_EF_SEARCH" default:"100"`
	HNSWMaxElements    uint64        `envconfig:"HNSW_MAX_ELEMENTS" default:"1100000"`
	IndexPath          string        `envconfig:"INDEX_PATH" default:"data/index/faces.hnsw"`
	IndexMetaPath      string        `envconfig:"INDEX_META_PATH" default:"data/index/faces.meta.json"`
	IndexSaveInterval  time.Duration `envconfig:"INDEX_SAVE_INTERVAL" default:"5m"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.MaxBatchSize < 1 {
		return fmt.Errorf("MAX_BATCH_SIZE must be >= 1, got %d", c.MaxBatchSize)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("MAX_CONCURRENCY must be >= 1, got %d", c.MaxConcurrency)
	}
	if c.HNSWM < 2 {
		return fmt.Errorf("HNSW_M must be >= 2, got %d", c.HNSWM)
	}
	if c.HNSWEfSearch < 1 || c.HNSWEfConstruction < 1 {
		return fmt.Errorf("HNSW ef parameters must be >= 1")
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold >= 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be in (0, 1), got %v", c.ConfidenceThreshold)
	}
	if c.MinFaceSize >= c.MaxFaceSize {
		return fmt.Errorf("MIN_FACE_SIZE must be smaller than MAX_FACE_SIZE")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
