package terminal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"ui_relocator/application/capture"
	"ui_relocator/domain/entities"
)

// Config collects everything the terminal shell reads from the environment.
type Config struct {
	HomeDir        string
	Backend        string
	FixturePath    string
	StartURL       string
	Headless       bool
	LogLevel       string
	Policy         entities.RetryPolicy
	DebounceWindow time.Duration
}

// loadConfig reads RELOCATOR_* variables, with .env as an optional source.
func loadConfig() Config {
	if err := godotenv.Load(); err != nil {
		// .env file is optional
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	policy := entities.DefaultRetryPolicy()
	policy.Trials = envInt("RELOCATOR_TRIALS", policy.Trials)
	policy.SettleDelay = envMillis("RELOCATOR_SETTLE_MS", policy.SettleDelay)
	policy.AttemptTimeout = envMillis("RELOCATOR_ATTEMPT_TIMEOUT_MS", policy.AttemptTimeout)

	return Config{
		HomeDir:        os.Getenv("RELOCATOR_HOME"),
		Backend:        envString("RELOCATOR_BACKEND", "memory"),
		FixturePath:    os.Getenv("RELOCATOR_FIXTURE"),
		StartURL:       os.Getenv("RELOCATOR_URL"),
		Headless:       envBool("RELOCATOR_HEADLESS", true),
		LogLevel:       envString("RELOCATOR_LOG_LEVEL", "info"),
		Policy:         policy.Normalized(),
		DebounceWindow: envMillis("RELOCATOR_DEBOUNCE_MS", capture.DefaultDebounceWindow),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Printf("Warning: invalid %s=%q, using default\n", key, v)
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		fmt.Printf("Warning: invalid %s=%q, using default\n", key, v)
		return fallback
	}
	return b
}

func envMillis(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		fmt.Printf("Warning: invalid %s=%q, using default\n", key, v)
		return fallback
	}
	return time.Duration(n) * time.Millisecond
}
