package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "HOST", "REDIS_URL", "REDIS_PASSWORD", "MAX_SESSIONS",
		"SESSION_TIMEOUT", "ALLOWED_ORIGINS", "HISTORY_CAP", "LLM_PROVIDER",
		"DEEPGRAM_API_KEY", "OPENROUTER_API_KEY", "ELEVENLABS_API_KEY", "GEMINI_API_KEY",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Port != 3001 {
		t.Errorf("Port = %d, want 3001", cfg.Port)
	}
	if cfg.MaxSessions != 100 {
		t.Errorf("MaxSessions = %d, want 100", cfg.MaxSessions)
	}
	if cfg.SessionTimeout != 30*time.Minute {
		t.Errorf("SessionTimeout = %v, want 30m", cfg.SessionTimeout)
	}
	if cfg.HistoryCap != 10 {
		t.Errorf("HistoryCap = %d, want 10", cfg.HistoryCap)
	}
	if cfg.LLMProvider != "openrouter" {
		t.Errorf("LLMProvider = %q, want openrouter", cfg.LLMProvider)
	}
}

func TestMissingCredentialsAreNotAnError(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DeepgramAPIKey != "" || cfg.ElevenLabsAPIKey != "" {
		t.Error("expected empty credentials")
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("MAX_SESSIONS", "5")
	t.Setenv("SESSION_TIMEOUT", "2")
	t.Setenv("HISTORY_CAP", "4")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.MaxSessions != 5 {
		t.Errorf("MaxSessions = %d", cfg.MaxSessions)
	}
	if cfg.SessionTimeout != 2*time.Minute {
		t.Errorf("SessionTimeout = %v", cfg.SessionTimeout)
	}
	if cfg.HistoryCap != 4 {
		t.Errorf("HistoryCap = %d", cfg.HistoryCap)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.LLMProvider != "gemini" {
		t.Errorf("LLMProvider = %q", cfg.LLMProvider)
	}
	if cfg.DeepgramAPIKey != "dg-key" {
		t.Errorf("DeepgramAPIKey = %q", cfg.DeepgramAPIKey)
	}
}

func TestInvalidValues(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{"PORT", "not-a-number"},
		{"MAX_SESSIONS", "many"},
		{"SESSION_TIMEOUT", "soon"},
		{"HISTORY_CAP", "0"},
		{"HISTORY_CAP", "-3"},
		{"LLM_PROVIDER", "llamacpp"},
	}

	for _, c := range cases {
		t.Run(c.key+"="+c.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(c.key, c.value)
			if _, err := LoadConfig(); err == nil {
				t.Errorf("expected error for %s=%s", c.key, c.value)
			}
		})
	}
}
