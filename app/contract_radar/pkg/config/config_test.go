package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	yml := `
llm:
  provider: openai
  base_url: https://api.example.com/v1
  api_key: sk-test
  model: gpt-4o-mini
chunk:
  max_size: 2000
  min_size: 500
concurrency:
  rpm: 30
  workers: 4
db:
  driver: sqlite
  path: ./data/radar.db
kafka:
  brokers: ["localhost:9092"]
  topic: contract-jobs
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.LLM.Model != "gpt-4o-mini" || cfg.LLM.APIKey != "sk-test" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.Chunk.MaxSize != 2000 || cfg.Chunk.MinSize != 500 {
		t.Errorf("chunk = %+v", cfg.Chunk)
	}
	if cfg.Concurrency.Workers != 4 || cfg.Concurrency.QPS != 1 || cfg.Concurrency.MaxRetries != 3 {
		t.Errorf("concurrency = %+v", cfg.Concurrency)
	}
	if cfg.LLM.Temperature != 0.2 || cfg.LLM.MaxTokens != 4000 {
		t.Errorf("llm defaults not applied: %+v", cfg.LLM)
	}
	if cfg.Kafka.GroupID != "contract_radar" {
		t.Errorf("kafka group = %q", cfg.Kafka.GroupID)
	}
	if cfg.DB.DSN() != "./data/radar.db" {
		t.Errorf("dsn = %q", cfg.DB.DSN())
	}
}

func TestParse_EnvOverride(t *testing.T) {
	t.Setenv("LLM_API_KEY", "from-env")
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := Parse([]byte("llm:\n  model: m\n  api_key: from-file\ndb:\n  driver: postgres\n  host: db\n  name: radar\n"))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.LLM.APIKey != "from-env" {
		t.Errorf("api key = %q, want from-env", cfg.LLM.APIKey)
	}
	want := "host=db port=5432 user= password=secret dbname=radar sslmode=disable"
	if cfg.DB.DSN() != want {
		t.Errorf("dsn = %q, want %q", cfg.DB.DSN(), want)
	}
}

func TestParse_ExplicitZero(t *testing.T) {
	tests := []struct {
		name        string
		yml         string
		wantMin     int
		wantRetries int
	}{
		{"absent fields use defaults", "llm:\n  provider: mock\n", 1000, 3},
		{"explicit zero is kept", "llm:\n  provider: mock\nchunk:\n  min_size: 0\nconcurrency:\n  max_retries: 0\n", 0, 0},
		{"explicit values", "llm:\n  provider: mock\nchunk:\n  min_size: 200\nconcurrency:\n  max_retries: 5\n", 200, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yml))
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			if cfg.Chunk.MinSize != tt.wantMin {
				t.Errorf("min_size = %d, want %d", cfg.Chunk.MinSize, tt.wantMin)
			}
			if cfg.Concurrency.MaxRetries != tt.wantRetries {
				t.Errorf("max_retries = %d, want %d", cfg.Concurrency.MaxRetries, tt.wantRetries)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	tests := []struct {
		name    string
		yml     string
		wantErr bool
	}{
		{"mock provider needs nothing", "llm:\n  provider: mock\n", false},
		{"openai without key", "llm:\n  provider: openai\n  model: m\n", true},
		{"unknown provider", "llm:\n  provider: claude-local\n", true},
		{"min above max", "llm:\n  provider: mock\nchunk:\n  max_size: 100\n  min_size: 200\n", true},
		{"sqlite without path", "llm:\n  provider: mock\ndb:\n  driver: sqlite\n", true},
		{"unknown driver", "llm:\n  provider: mock\ndb:\n  driver: mysql\n", true},
		{"topic without brokers", "llm:\n  provider: mock\nkafka:\n  topic: jobs\n", true},
		{"mail without smtp", "llm:\n  provider: mock\nemail:\n  to: [a@b.c]\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yml))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
