package advisory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newthinker/vanguard/internal/core"
	"github.com/newthinker/vanguard/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLLMProvider struct {
	response string
	err      error
	delay    time.Duration
	lastReq  llm.ChatRequest
}

func (m *mockLLMProvider) Name() string { return "mock" }

func (m *mockLLMProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	m.lastReq = req
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llm.ChatResponse{Content: m.response}, nil
}

var eurusd = core.MarketSnapshot{Symbol: "EURUSD", Price: 1.0850, ChangePercent: 0.8, High: 1.09, Low: 1.08, Volume: 1e6, Bid: 1.0849, Ask: 1.0851, Spread: 0.0002}

func TestAnalyze_JSON(t *testing.T) {
	m := &mockLLMProvider{response: "```json\n{\"bias\": 0.6, \"confidence\": 0.8, \"summary\": \"euro strength\"}\n```"}
	a := NewAnalyzer(m, nil)

	res, err := a.Analyze(context.Background(), Request{Symbol: "EURUSD", Snapshot: eurusd, PromptContext: "ECB today"})
	require.NoError(t, err)

	assert.Equal(t, 0.6, res.Bias)
	assert.Equal(t, 0.8, res.Confidence)
	assert.Equal(t, "euro strength", res.Summary)
	assert.True(t, m.lastReq.JSONMode)
	assert.Contains(t, m.lastReq.Messages[0].Content, "EURUSD")
	assert.Contains(t, m.lastReq.Messages[0].Content, "ECB today")
}

func TestAnalyze_ClampsOutOfRange(t *testing.T) {
	a := NewAnalyzer(&mockLLMProvider{response: `{"bias": 4, "confidence": -1}`}, nil)

	res, err := a.Analyze(context.Background(), Request{Symbol: "EURUSD", Snapshot: eurusd})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Bias)
	assert.Equal(t, 0.0, res.Confidence)
}

func TestAnalyze_TextFallback(t *testing.T) {
	tests := []struct {
		text string
		bias float64
	}{
		{"Looks bullish into the close.", 0.5},
		{"I would SELL here.", -0.5},
		{"Could buy or sell, unclear.", 0},
		{"No view.", 0},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			a := NewAnalyzer(&mockLLMProvider{response: tt.text}, nil)
			res, err := a.Analyze(context.Background(), Request{Symbol: "EURUSD", Snapshot: eurusd})
			require.NoError(t, err)
			assert.Equal(t, tt.bias, res.Bias)
			assert.Equal(t, tt.text, res.Summary)
		})
	}
}

func TestAnalyze_Timeout(t *testing.T) {
	a := NewAnalyzer(&mockLLMProvider{delay: time.Second}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := a.Analyze(ctx, Request{Symbol: "EURUSD", Snapshot: eurusd})
	assert.True(t, errors.Is(err, core.ErrAdvisoryTimeout))
}

func TestAnalyze_Failure(t *testing.T) {
	a := NewAnalyzer(&mockLLMProvider{err: errors.New("rate limited")}, nil)

	_, err := a.Analyze(context.Background(), Request{Symbol: "EURUSD", Snapshot: eurusd})
	assert.True(t, errors.Is(err, core.ErrAdvisoryFailed))
}

func TestAnalyze_NoProvider(t *testing.T) {
	_, err := NewAnalyzer(nil, nil).Analyze(context.Background(), Request{Symbol: "EURUSD"})
	assert.True(t, errors.Is(err, core.ErrAdvisoryFailed))
}
