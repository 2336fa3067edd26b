package factory

import (
	"fmt"

	"github.com/newthinker/vanguard/internal/config"
	"github.com/newthinker/vanguard/internal/llm"
	"github.com/newthinker/vanguard/internal/llm/claude"
	"github.com/newthinker/vanguard/internal/llm/ollama"
	"github.com/newthinker/vanguard/internal/llm/openai"
)

// New creates an LLM provider based on configuration. An empty provider
// disables advisory analysis and returns nil.
func New(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "claude":
		return claude.New(cfg.Claude)
	case "openai":
		return openai.New(cfg.OpenAI)
	case "ollama":
		return ollama.New(cfg.Ollama)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}
