package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/newthinker/vanguard/internal/config"
	"github.com/newthinker/vanguard/internal/core"
)

const binanceBaseURL = "https://api.binance.com"

// Binance reads 24h rolling tickers from the Binance spot API.
type Binance struct {
	client  *http.Client
	baseURL string
	symbols []string
}

// NewBinance creates a Binance feed. An empty symbol list returns every ticker.
func NewBinance(cfg config.FeedConfig) *Binance {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = binanceBaseURL
	}
	return &Binance{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		symbols: slices.Clone(cfg.Symbols),
	}
}

func (b *Binance) Name() string {
	return "binance"
}

// GetLatestSnapshots fetches all 24h tickers and maps them to snapshots.
func (b *Binance) GetLatestSnapshots(ctx context.Context) ([]core.MarketSnapshot, error) {
	url := fmt.Sprintf("%s/api/v3/ticker/24hr", b.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrFeedUnavailable, fmt.Errorf("fetching tickers: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.WrapError(core.ErrFeedUnavailable, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var tickers []ticker24hr
	if err := json.NewDecoder(resp.Body).Decode(&tickers); err != nil {
		return nil, core.WrapError(core.ErrFeedUnavailable, fmt.Errorf("decoding response: %w", err))
	}

	snapshots := make([]core.MarketSnapshot, 0, len(tickers))
	for _, t := range tickers {
		if len(b.symbols) > 0 && !slices.Contains(b.symbols, t.Symbol) {
			continue
		}
		snapshots = append(snapshots, t.snapshot())
	}
	return Dedupe(snapshots), nil
}

// Binance API response types
type ticker24hr struct {
	Symbol             string `json:"symbol"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	LastPrice          string `json:"lastPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
	BidPrice           string `json:"bidPrice"`
	AskPrice           string `json:"askPrice"`
	CloseTime          int64  `json:"closeTime"`
}

func (t ticker24hr) snapshot() core.MarketSnapshot {
	price, _ := strconv.ParseFloat(t.LastPrice, 64)
	high, _ := strconv.ParseFloat(t.HighPrice, 64)
	low, _ := strconv.ParseFloat(t.LowPrice, 64)
	change, _ := strconv.ParseFloat(t.PriceChange, 64)
	changePercent, _ := strconv.ParseFloat(t.PriceChangePercent, 64)
	volume, _ := strconv.ParseFloat(t.Volume, 64)
	bid, _ := strconv.ParseFloat(t.BidPrice, 64)
	ask, _ := strconv.ParseFloat(t.AskPrice, 64)

	var spread float64
	if bid > 0 && ask > 0 {
		spread = ask - bid
	}

	return core.MarketSnapshot{
		Symbol:        t.Symbol,
		Price:         price,
		Change:        change,
		ChangePercent: changePercent,
		High:          high,
		Low:           low,
		Volume:        volume,
		Bid:           bid,
		Ask:           ask,
		Spread:        spread,
		Timestamp:     time.UnixMilli(t.CloseTime).UTC(),
	}
}
