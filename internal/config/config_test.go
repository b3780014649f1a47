package config

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Simplici0/precifica/internal/pricing"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "DB_PATH", "PORT", "LOG_LEVEL", "SOLVER_MAX_ITERATIONS", "SOLVER_TOLERANCE", "SOLVER_SEED"} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())

	var buf bytes.Buffer
	cfg := Load(zerolog.New(&buf))

	if cfg.DBPath != defaultDBPath {
		t.Fatalf("DBPath=%q, want %q", cfg.DBPath, defaultDBPath)
	}
	if cfg.Port != defaultPort {
		t.Fatalf("Port=%q, want %q", cfg.Port, defaultPort)
	}
	if !cfg.IsDev() {
		t.Fatalf("expected development environment by default")
	}
	if cfg.SolverOptions() != pricing.DefaultOptions() {
		t.Fatalf("SolverOptions=%+v, want %+v", cfg.SolverOptions(), pricing.DefaultOptions())
	}
	if !strings.Contains(buf.String(), "DB_PATH is not set") {
		t.Fatalf("expected DB_PATH warning, got %q", buf.String())
	}
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_PATH", "/data/precos.db")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SOLVER_MAX_ITERATIONS", "20")
	t.Setenv("SOLVER_TOLERANCE", "0.001")
	t.Setenv("SOLVER_SEED", "50")
	t.Chdir(t.TempDir())

	cfg := Load(zerolog.Nop())

	if cfg.IsDev() {
		t.Fatalf("production must not be dev")
	}
	if cfg.DBPath != "/data/precos.db" || cfg.Port != "9090" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	want := pricing.Options{MaxIterations: 20, Tolerance: 0.001, Seed: 50}
	if cfg.SolverOptions() != want {
		t.Fatalf("SolverOptions=%+v, want %+v", cfg.SolverOptions(), want)
	}
}

func TestLoad_InvalidSolverValuesFallBack(t *testing.T) {
	t.Setenv("DB_PATH", "x.db")
	t.Setenv("SOLVER_MAX_ITERATIONS", "muitas")
	t.Setenv("SOLVER_TOLERANCE", "-1")
	t.Setenv("SOLVER_SEED", "abc")
	t.Chdir(t.TempDir())

	var buf bytes.Buffer
	cfg := Load(zerolog.New(&buf))

	if cfg.SolverOptions() != pricing.DefaultOptions() {
		t.Fatalf("SolverOptions=%+v, want defaults", cfg.SolverOptions())
	}
	for _, key := range []string{"SOLVER_MAX_ITERATIONS", "SOLVER_TOLERANCE", "SOLVER_SEED"} {
		if !strings.Contains(buf.String(), key) {
			t.Fatalf("expected warning for %s, got %q", key, buf.String())
		}
	}
}
