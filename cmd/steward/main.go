// Command steward watches a running village over its API and applies at most
// one provision or immigrate intervention per cycle when the village is in
// trouble.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/ssd-village/internal/steward"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	apiURL := envOrDefault("VILLAGE_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("VILLAGE_ADMIN_KEY")
	memPath := envOrDefault("STEWARD_MEMORY", "data/steward.json")
	interval := time.Duration(envIntOrDefault("STEWARD_INTERVAL", 60)) * time.Second

	if adminKey == "" {
		slog.Error("VILLAGE_ADMIN_KEY is required")
		os.Exit(1)
	}

	rules := steward.DefaultRules()
	rules.MinPopulation = envIntOrDefault("STEWARD_MIN_POPULATION", rules.MinPopulation)

	slog.Info("steward starting", "api_url", apiURL, "interval", interval, "min_population", rules.MinPopulation)

	st := steward.New(apiURL, adminKey, rules, steward.LoadMemory(memPath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !waitForAPI(ctx, st.Observer) {
		return
	}

	runCycle(ctx, st)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			runCycle(ctx, st)
		case <-ctx.Done():
			slog.Info("steward shutting down")
			return
		}
	}
}

func runCycle(ctx context.Context, st *steward.Steward) {
	dec, err := st.RunCycle(ctx)
	if err != nil {
		slog.Error("steward cycle failed", "error", err)
		return
	}
	slog.Info("steward cycle complete", "action", dec.Action, "rationale", dec.Rationale)
}

// waitForAPI polls the status endpoint with exponential backoff until it
// responds. It gives up after five minutes or when ctx ends.
func waitForAPI(ctx context.Context, obs *steward.Observer) bool {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for !obs.Ready(ctx) {
		if time.Now().After(deadline) {
			slog.Error("village API did not become ready within 5 minutes")
			return false
		}
		slog.Info("village API not ready, retrying", "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return false
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	slog.Info("village API is ready")
	return true
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
