package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/newthinker/vanguard/internal/config"
	"github.com/newthinker/vanguard/internal/core"
	"github.com/newthinker/vanguard/internal/engine"
	"github.com/newthinker/vanguard/internal/feed"
)

func testSnapshots() []core.MarketSnapshot {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	return []core.MarketSnapshot{
		{Symbol: "EURUSD", Price: 1.085, ChangePercent: 0.8, High: 1.0958, Low: 1.0742, Volume: 1_000_000, Timestamp: now},
		{Symbol: "GBPUSD", Price: 1.27, ChangePercent: 0.1, High: 1.2827, Low: 1.2573, Volume: 1_000_000, Timestamp: now},
	}
}

func TestApp_New(t *testing.T) {
	a, err := New(config.Defaults(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Close()

	if a.Engine() == nil {
		t.Error("expected engine")
	}
	if a.Metrics() == nil {
		t.Error("expected metrics registry when metrics are enabled")
	}
	if a.History() == nil {
		t.Error("expected history store")
	}
}

func TestApp_NewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"bad port", func(c *config.Config) { c.Server.Port = 0 }},
		{"bad capacity", func(c *config.Config) { c.Engine.Capacity = 0 }},
		{"unknown feed", func(c *config.Config) { c.Feed.Provider = "carrier-pigeon" }},
		{"webhook without url", func(c *config.Config) { c.Notifiers.Webhook.Enabled = true }},
		{"claude without key", func(c *config.Config) { c.LLM.Provider = "claude" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(cfg)
			if _, err := New(cfg, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestApp_MetricsDisabled(t *testing.T) {
	cfg := config.Defaults()
	cfg.Metrics.Enabled = false

	a, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Close()

	if a.Metrics() != nil {
		t.Error("expected no metrics registry")
	}
}

func TestApp_RegistersNotifiers(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := config.Defaults()
	cfg.Notifiers.Webhook = config.WebhookConfig{Enabled: true, URL: srv.URL}
	cfg.Notifiers.Kafka = config.KafkaConfig{Enabled: true, Brokers: []string{"localhost:9092"}, Topic: "vanguard.consensus"}

	a, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Close()

	if a.Notifiers().Len() != 2 {
		t.Errorf("expected 2 notifiers, got %d", a.Notifiers().Len())
	}
	if _, err := a.Notifiers().Get("webhook"); err != nil {
		t.Errorf("expected webhook notifier: %v", err)
	}
	if _, err := a.Notifiers().Get("kafka"); err != nil {
		t.Errorf("expected kafka notifier: %v", err)
	}
}

func TestApp_RunOnce(t *testing.T) {
	cfg := config.Defaults()
	cfg.Engine.MinSignalStrength = 5

	a, err := New(cfg, nil,
		WithFeed(feed.NewStatic(testSnapshots()...)),
		WithEngineOptions(engine.WithSeed(3)),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Close()

	if err := a.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(a.Engine().GetTrackedInstruments()) == 0 {
		t.Error("expected tracked instruments after one cycle")
	}
	stats := a.GetStats()
	if stats["feed_available"] != true {
		t.Errorf("expected feed available, got %v", stats["feed_available"])
	}
}

func TestApp_RunOnceWithEmptyFeed(t *testing.T) {
	a, err := New(config.Defaults(), nil, WithFeed(feed.NewStatic()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Close()

	if err := a.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.Engine().GetConsensusSignals()) != 0 {
		t.Error("expected no signals from an empty feed")
	}
}

func TestApp_StartStop(t *testing.T) {
	cfg := config.Defaults()
	cfg.Engine.RotationInterval = 10 * time.Millisecond
	cfg.Engine.AnalysisInterval = 10 * time.Millisecond

	a, err := New(cfg, nil, WithFeed(feed.NewStatic(testSnapshots()...)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- a.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop")
	}

	if a.Engine().Status().RotationTicks == 0 {
		t.Error("expected at least one rotation tick")
	}
}

func TestApp_CloseIsIdempotent(t *testing.T) {
	a, err := New(config.Defaults(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("unexpected error on second close: %v", err)
	}
}
