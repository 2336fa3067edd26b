// Package advisory asks an LLM for a directional read on an instrument.
package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/newthinker/vanguard/internal/core"
	"github.com/newthinker/vanguard/internal/llm"
	"go.uber.org/zap"
)

// Request describes one instrument to analyze.
type Request struct {
	Symbol        string
	Snapshot      core.MarketSnapshot
	PromptContext string
}

// Result is the parsed advisory opinion.
type Result struct {
	Bias       float64 `json:"bias"`       // -1 bearish .. +1 bullish
	Confidence float64 `json:"confidence"` // 0..1
	Summary    string  `json:"summary"`
}

// Analyzer turns LLM responses into advisory results.
type Analyzer struct {
	llm    llm.Provider
	logger *zap.Logger
}

// NewAnalyzer creates an analyzer over provider.
func NewAnalyzer(provider llm.Provider, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{llm: provider, logger: logger}
}

// Analyze asks the provider for an opinion. The caller bounds the call with
// ctx; an expired deadline is reported as ErrAdvisoryTimeout and any other
// failure as ErrAdvisoryFailed.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Result, error) {
	if a.llm == nil {
		return nil, core.WrapError(core.ErrAdvisoryFailed, fmt.Errorf("no LLM provider configured"))
	}

	resp, err := a.llm.Chat(ctx, llm.ChatRequest{
		SystemPrompt: systemPrompt,
		Messages:     []llm.Message{llm.UserMessage(buildPrompt(req))},
		MaxTokens:    512,
		Temperature:  0.2,
		JSONMode:     true,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, core.WrapError(core.ErrAdvisoryTimeout, err)
		}
		return nil, core.WrapError(core.ErrAdvisoryFailed, err)
	}
	// a late answer must not be applied once the caller gave up
	if err := ctx.Err(); err != nil {
		return nil, core.WrapError(core.ErrAdvisoryTimeout, err)
	}

	result, ok := parseJSON(resp.Content)
	if !ok {
		a.logger.Debug("advisory response is not JSON, falling back to keywords",
			zap.String("symbol", req.Symbol),
		)
		result = parseText(resp.Content)
	}
	return result, nil
}

func buildPrompt(req Request) string {
	s := req.Snapshot
	var sb strings.Builder

	fmt.Fprintf(&sb, "## Instrument: %s\n\n", req.Symbol)
	sb.WriteString("## Latest Snapshot:\n")
	fmt.Fprintf(&sb, "- Price: %.5f\n", s.Price)
	fmt.Fprintf(&sb, "- Change: %.5f (%.2f%%)\n", s.Change, s.ChangePercent)
	fmt.Fprintf(&sb, "- Range: %.5f - %.5f\n", s.Low, s.High)
	fmt.Fprintf(&sb, "- Volume: %.0f\n", s.Volume)
	if s.Bid > 0 && s.Ask > 0 {
		fmt.Fprintf(&sb, "- Bid/Ask: %.5f / %.5f (spread %.5f)\n", s.Bid, s.Ask, s.Spread)
	}
	sb.WriteString("\n")

	if req.PromptContext != "" {
		sb.WriteString("## Context:\n")
		sb.WriteString(req.PromptContext)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Task:\n")
	sb.WriteString("Give a short-horizon directional read on this instrument.\n")
	sb.WriteString("Respond with JSON containing: bias (-1 to 1), confidence (0-1), summary.\n")
	return sb.String()
}

func parseJSON(content string) (*Result, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var r Result
	if err := json.Unmarshal([]byte(content[start:end+1]), &r); err != nil {
		return nil, false
	}
	r.Bias = core.Clamp(r.Bias, -1, 1)
	r.Confidence = core.Clamp(r.Confidence, 0, 1)
	return &r, true
}

// parseText reads a direction from keywords. Mixed or missing keywords are neutral.
func parseText(text string) *Result {
	upper := strings.ToUpper(text)
	bull := strings.Contains(upper, "BULLISH") || strings.Contains(upper, "BUY")
	bear := strings.Contains(upper, "BEARISH") || strings.Contains(upper, "SELL")

	r := &Result{Confidence: 0.2, Summary: strings.TrimSpace(text)}
	switch {
	case bull && !bear:
		r.Bias, r.Confidence = 0.5, 0.3
	case bear && !bull:
		r.Bias, r.Confidence = -0.5, 0.3
	}
	return r
}

const systemPrompt = `You are a market analyst supporting an automated short-horizon signal engine.
You receive the latest snapshot of one instrument and return a directional bias.

Always respond with valid JSON in this format:
{
  "bias": -1.0 to 1.0 (negative bearish, positive bullish),
  "confidence": 0.0-1.0,
  "summary": "one or two sentences"
}

Be conservative when uncertain. A bias near 0 with low confidence is appropriate when the picture is unclear.`
