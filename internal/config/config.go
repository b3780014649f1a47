package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Simplici0/precifica/internal/pricing"
)

const (
	defaultAppEnv   = "development"
	defaultDBPath   = "./precifica.db"
	defaultPort     = "8080"
	defaultLogLevel = "info"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	AppEnv   string
	DBPath   string
	Port     string
	LogLevel string
	Solver   pricing.Options
}

// Load reads environment variables and returns a populated Config. Problems
// are reported on logger and replaced by defaults.
func Load(logger zerolog.Logger) Config {
	// Best-effort: load local dev environment variables.
	// We don't fail if the file is missing; production should use real env injection.
	n, err := loadDotEnv(".env")
	if err != nil {
		logger.Warn().Err(err).Msg("could not read .env")
	}
	if n > 0 {
		logger.Debug().Int("variables", n).Msg("loaded .env")
	}

	cfg := Config{
		AppEnv:   envOr("APP_ENV", defaultAppEnv),
		DBPath:   envOr("DB_PATH", defaultDBPath),
		Port:     envOr("PORT", defaultPort),
		LogLevel: envOr("LOG_LEVEL", defaultLogLevel),
		Solver:   pricing.DefaultOptions(),
	}

	if v, ok := lookup("SOLVER_MAX_ITERATIONS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			logger.Warn().Str("value", v).Msg("SOLVER_MAX_ITERATIONS must be a positive integer, using default")
		} else {
			cfg.Solver.MaxIterations = n
		}
	}
	cfg.Solver.Tolerance = positiveFloat(logger, "SOLVER_TOLERANCE", cfg.Solver.Tolerance)
	cfg.Solver.Seed = positiveFloat(logger, "SOLVER_SEED", cfg.Solver.Seed)

	if os.Getenv("DB_PATH") == "" {
		logger.Warn().Str("path", cfg.DBPath).Msg("DB_PATH is not set, using default")
	}

	return cfg
}

// IsDev reports whether the process runs in the development environment.
func (c Config) IsDev() bool {
	return strings.EqualFold(c.AppEnv, defaultAppEnv)
}

// SolverOptions returns the iteration settings for pricing.NewSolver.
func (c Config) SolverOptions() pricing.Options {
	return c.Solver
}

func envOr(key, fallback string) string {
	if v, ok := lookup(key); ok {
		return v
	}
	return fallback
}

func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func positiveFloat(logger zerolog.Logger, key string, fallback float64) float64 {
	v, ok := lookup(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || !(f > 0) {
		logger.Warn().Str("value", v).Msgf("%s must be a positive number, using default", key)
		return fallback
	}
	return f
}
