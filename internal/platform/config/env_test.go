package config

import "testing"

type sampleConfig struct {
	Path  string `env:"PUGLEDGER_TEST_DB_PATH" envDefault:"data/ledger.db"`
	Limit int    `env:"PUGLEDGER_TEST_LIMIT" envDefault:"3"`
}

func TestParseEnvAppliesDefaults(t *testing.T) {
	var cfg sampleConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Path != "data/ledger.db" {
		t.Fatalf("path = %q, want default", cfg.Path)
	}
	if cfg.Limit != 3 {
		t.Fatalf("limit = %d, want 3", cfg.Limit)
	}
}

func TestParseEnvReadsVariables(t *testing.T) {
	t.Setenv("PUGLEDGER_TEST_DB_PATH", "/tmp/other.db")
	t.Setenv("PUGLEDGER_TEST_LIMIT", "9")

	var cfg sampleConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Path != "/tmp/other.db" {
		t.Fatalf("path = %q, want /tmp/other.db", cfg.Path)
	}
	if cfg.Limit != 9 {
		t.Fatalf("limit = %d, want 9", cfg.Limit)
	}
}
