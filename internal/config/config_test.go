package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*Config) bool
	}{
		{
			name: "loads with all required vars",
			envVars: map[string]string{
				"PORT":         "3000",
				"ENV":          "production",
				"DATABASE_URL": "postgres://localhost/test",
				"REDIS_URL":    "redis://localhost:6379/0",
			},
			wantErr: false,
			check: func(c *Config) bool {
				return c.Port == 3000 &&
					c.Environment == "production" &&
					c.DatabaseURL == "postgres://localhost/test" &&
					c.RedisURL == "redis://localhost:6379/0"
			},
		},
		{
			name: "uses defaults when optional vars missing",
			envVars: map[string]string{
				"DATABASE_URL": "postgres://localhost/test",
			},
			wantErr: false,
			check: func(c *Config) bool {
				return c.Port == 8080 &&
					c.Environment == "development" &&
					c.VisionProvider == "deepface" &&
					c.ConfidenceThreshold == 0.42 &&
					c.MaxBatchSize == 50 &&
					c.MaxConcurrency == 4 &&
					c.JobTTL == time.Hour &&
					c.CacheTTL == 1800*time.Second &&
					c.HNSWM == 16 &&
					c.HNSWEfConstruction == 200 &&
					c.HNSWEfSearch == 100 &&
					c.HNSWMaxElements == 1100000
			},
		},
		{
			name:    "fails when DATABASE_URL missing",
			envVars: map[string]string{},
			wantErr: true,
			check:   nil,
		},
		{
			name: "fails on zero batch size",
			envVars: map[string]string{
				"DATABASE_URL":   "postgres://localhost/test",
				"MAX_BATCH_SIZE": "0",
			},
			wantErr: true,
			check:   nil,
		},
		{
			name: "fails on threshold out of range",
			envVars: map[string]string{
				"DATABASE_URL":         "postgres://localhost/test",
				"CONFIDENCE_THRESHOLD": "1.5",
			},
			wantErr: true,
			check:   nil,
		},
		{
			name: "fails on inverted face size bounds",
			envVars: map[string]string{
				"DATABASE_URL":  "postgres://localhost/test",
				"MIN_FACE_SIZE": "1200",
				"MAX_FACE_SIZE": "1000",
			},
			wantErr: true,
			check:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()

			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg, err := Load()

			if tt.wantErr {
				if err == nil {
					t.Errorf("Load() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("Load() unexpected error: %v", err)
				return
			}

			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("Load() config check failed, got: %+v", cfg)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want bool
	}{
		{"development", "development", true},
		{"production", "production", false},
		{"staging", "staging", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Environment: tt.env}
			if got := c.IsDevelopment(); got != tt.want {
				t.Errorf("IsDevelopment() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want bool
	}{
		{"production", "production", true},
		{"development", "development", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Environment: tt.env}
			if got := c.IsProduction(); got != tt.want {
				t.Errorf("IsProduction() = %v, want %v", got, tt.want)
			}
		})
	}
}
