package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    *Config
		wantErr bool
	}{
		{
			name: "Defaults",
			env:  map[string]string{"DATABASE_URL": "postgres://localhost/chat"},
			want: &Config{
				Port:             8080,
				LogLevel:         slog.LevelInfo,
				DatabaseURL:      "postgres://localhost/chat",
				RunMigrations:    true,
				RateLimitBackend: BackendMemory,
				RateLimitWindow:  15 * time.Minute,
				RateLimitMax:     200,
				ContextWindow:    20,
				OpenAIModel:      "gpt-4o-mini",
			},
		},
		{
			name: "Overrides",
			env: map[string]string{
				"DATABASE_URL":       "postgres://db/chat",
				"PORT":               "9000",
				"LOG_LEVEL":          "DEBUG",
				"REDIS_ADDR":         "redis:6379",
				"RATE_LIMIT_BACKEND": "redis",
				"RATE_LIMIT_WINDOW":  "1m",
				"RATE_LIMIT_MAX":     "5",
				"TRUST_PROXY":        "true",
				"CONTEXT_WINDOW":     "8",
				"RUN_MIGRATIONS":     "false",
			},
			want: &Config{
				Port:             9000,
				LogLevel:         slog.LevelDebug,
				DatabaseURL:      "postgres://db/chat",
				RedisAddr:        "redis:6379",
				RateLimitBackend: BackendRedis,
				RateLimitWindow:  time.Minute,
				RateLimitMax:     5,
				TrustProxy:       true,
				ContextWindow:    8,
				OpenAIModel:      "gpt-4o-mini",
			},
		},
		{
			name:    "Missing database",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name: "Redis backend without address",
			env: map[string]string{
				"DATABASE_URL":       "postgres://localhost/chat",
				"RATE_LIMIT_BACKEND": "redis",
			},
			wantErr: true,
		},
		{
			name: "Unknown backend",
			env: map[string]string{
				"DATABASE_URL":       "postgres://localhost/chat",
				"RATE_LIMIT_BACKEND": "memcached",
			},
			wantErr: true,
		},
		{
			name: "Zero max",
			env: map[string]string{
				"DATABASE_URL":   "postgres://localhost/chat",
				"RATE_LIMIT_MAX": "0",
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{
				"PORT", "LOG_LEVEL", "DATABASE_URL", "RUN_MIGRATIONS", "REDIS_ADDR",
				"RATE_LIMIT_BACKEND", "RATE_LIMIT_WINDOW", "RATE_LIMIT_MAX", "TRUST_PROXY",
				"CONTEXT_WINDOW", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
			} {
				t.Setenv(k, tt.env[k])
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Got nil error, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
