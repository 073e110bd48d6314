package terminal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ui_relocator/application/capture"
)

// clearRelocatorEnv blanks every variable loadConfig reads so a developer's
// shell does not bleed into the assertions.
func clearRelocatorEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RELOCATOR_HOME", "RELOCATOR_BACKEND", "RELOCATOR_FIXTURE",
		"RELOCATOR_URL", "RELOCATOR_HEADLESS", "RELOCATOR_LOG_LEVEL",
		"RELOCATOR_TRIALS", "RELOCATOR_SETTLE_MS",
		"RELOCATOR_ATTEMPT_TIMEOUT_MS", "RELOCATOR_DEBOUNCE_MS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearRelocatorEnv(t)

	cfg := loadConfig()

	assert.Empty(t, cfg.HomeDir)
	assert.Equal(t, "memory", cfg.Backend)
	assert.Empty(t, cfg.FixturePath)
	assert.True(t, cfg.Headless)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 3, cfg.Policy.Trials)
	assert.Equal(t, 250*time.Millisecond, cfg.Policy.SettleDelay)
	assert.Equal(t, 2*time.Second, cfg.Policy.AttemptTimeout)
	assert.Equal(t, capture.DefaultDebounceWindow, cfg.DebounceWindow)
}

func TestLoadConfigReadsTheEnvironment(t *testing.T) {
	clearRelocatorEnv(t)
	t.Setenv("RELOCATOR_HOME", "/var/lib/relocator")
	t.Setenv("RELOCATOR_BACKEND", "rod")
	t.Setenv("RELOCATOR_FIXTURE", "trees/login.yaml")
	t.Setenv("RELOCATOR_URL", "https://example.test/app")
	t.Setenv("RELOCATOR_HEADLESS", "false")
	t.Setenv("RELOCATOR_LOG_LEVEL", "debug")
	t.Setenv("RELOCATOR_TRIALS", "5")
	t.Setenv("RELOCATOR_SETTLE_MS", "10")
	t.Setenv("RELOCATOR_ATTEMPT_TIMEOUT_MS", "750")
	t.Setenv("RELOCATOR_DEBOUNCE_MS", "100")

	cfg := loadConfig()

	assert.Equal(t, "/var/lib/relocator", cfg.HomeDir)
	assert.Equal(t, "rod", cfg.Backend)
	assert.Equal(t, "trees/login.yaml", cfg.FixturePath)
	assert.Equal(t, "https://example.test/app", cfg.StartURL)
	assert.False(t, cfg.Headless)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5, cfg.Policy.Trials)
	assert.Equal(t, 10*time.Millisecond, cfg.Policy.SettleDelay)
	assert.Equal(t, 750*time.Millisecond, cfg.Policy.AttemptTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.DebounceWindow)
}

func TestLoadConfigInvalidValuesFallBack(t *testing.T) {
	clearRelocatorEnv(t)
	t.Setenv("RELOCATOR_TRIALS", "many")
	t.Setenv("RELOCATOR_HEADLESS", "maybe")
	t.Setenv("RELOCATOR_SETTLE_MS", "-50")
	t.Setenv("RELOCATOR_DEBOUNCE_MS", "soon")

	cfg := loadConfig()

	assert.Equal(t, 3, cfg.Policy.Trials)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 250*time.Millisecond, cfg.Policy.SettleDelay)
	assert.Equal(t, capture.DefaultDebounceWindow, cfg.DebounceWindow)
}

func TestLoadConfigNormalizesZeroTrials(t *testing.T) {
	clearRelocatorEnv(t)
	t.Setenv("RELOCATOR_TRIALS", "0")

	cfg := loadConfig()
	assert.Equal(t, 3, cfg.Policy.Trials, "non-positive trial counts take the default")
}
