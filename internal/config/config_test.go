package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Oracle.Provider != "gemini" {
		t.Errorf("expected gemini provider, got %s", cfg.Oracle.Provider)
	}
	if cfg.Oracle.APIKey != "${GEMINI_API_KEY}" {
		t.Error("expected API key placeholder")
	}
	if cfg.Pipeline.MaxAttempts != 3 {
		t.Errorf("expected 3 max attempts, got %d", cfg.Pipeline.MaxAttempts)
	}
	if cfg.Segmenter.MinWords != 5 || cfg.Segmenter.MinEthiopic != 10 {
		t.Errorf("unexpected segmenter minimums: %+v", cfg.Segmenter)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		os.Setenv("TEST_API_KEY", "secret123")
		defer os.Unsetenv("TEST_API_KEY")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestConfig_ResolvedAPIKey(t *testing.T) {
	os.Setenv("TEST_GEMINI_KEY", "gm-key-123")
	defer os.Unsetenv("TEST_GEMINI_KEY")

	cfg := DefaultConfig()
	cfg.Oracle.APIKey = "${TEST_GEMINI_KEY}"

	if got := cfg.ResolvedAPIKey(); got != "gm-key-123" {
		t.Errorf("expected gm-key-123, got %s", got)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configFile := filepath.Join(tmpDir, "config.yaml")

		configContent := `
oracle:
  provider: "mock"
pipeline:
  max_attempts: 5
`
		if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Oracle.Provider != "mock" {
			t.Errorf("expected mock, got %s", cfg.Oracle.Provider)
		}
		if cfg.Pipeline.MaxAttempts != 5 {
			t.Errorf("expected 5, got %d", cfg.Pipeline.MaxAttempts)
		}
		// Unset keys fall back to defaults.
		if cfg.Segmenter.MinWords != 5 {
			t.Errorf("expected default min_words, got %d", cfg.Segmenter.MinWords)
		}
	})
}

func TestManager_OnChange_Multiple(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
oracle:
  provider: "mock"
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
oracle:
  provider: "mock"
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	// Call Get concurrently to verify no race conditions
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				cfg := mgr.Get()
				_ = cfg.Oracle.Provider
			}
			done <- struct{}{}
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
oracle:
  model: "initial-model"
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	cfg := mgr.Get()
	if cfg.Oracle.Model != "initial-model" {
		t.Errorf("initial value mismatch: got %s", cfg.Oracle.Model)
	}

	var callbackCount atomic.Int32
	var lastValue atomic.Value

	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(cfg.Oracle.Model)
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	newContent := `
oracle:
  model: "updated-model"
`
	if err := os.WriteFile(configFile, []byte(newContent), 0644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	// Wait for the watcher to detect the change (fsnotify is async)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if callbackCount.Load() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Error("callback was not invoked after config file change")
	}

	newCfg := mgr.Get()
	if newCfg.Oracle.Model != "updated-model" {
		t.Errorf("config not updated: got %s", newCfg.Oracle.Model)
	}

	if v := lastValue.Load(); v != "updated-model" {
		t.Errorf("callback received wrong value: got %v", v)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("reading written default: %v", err)
	}
	if mgr.Get().Oracle.Provider != "gemini" {
		t.Errorf("written defaults do not round-trip: %+v", mgr.Get().Oracle)
	}
}
