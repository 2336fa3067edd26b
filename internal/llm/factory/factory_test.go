package factory

import (
	"testing"

	"github.com/newthinker/vanguard/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.LLMConfig
		wantName string
		wantErr  bool
	}{
		{
			name:     "claude",
			cfg:      config.LLMConfig{Provider: "claude", Claude: config.ClaudeConfig{APIKey: "test-key"}},
			wantName: "claude",
		},
		{
			name:     "openai",
			cfg:      config.LLMConfig{Provider: "openai", OpenAI: config.OpenAIConfig{APIKey: "test-key", Model: "gpt-4"}},
			wantName: "openai",
		},
		{
			name:     "ollama",
			cfg:      config.LLMConfig{Provider: "ollama", Ollama: config.OllamaConfig{Endpoint: "http://localhost:11434"}},
			wantName: "ollama",
		},
		{
			name:    "claude missing key",
			cfg:     config.LLMConfig{Provider: "claude"},
			wantErr: true,
		},
		{
			name:    "unknown",
			cfg:     config.LLMConfig{Provider: "unknown"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("expected %s provider, got %s", tt.wantName, p.Name())
			}
		})
	}
}

func TestNew_Disabled(t *testing.T) {
	p, err := New(config.LLMConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil provider, got %s", p.Name())
	}
}
