package server

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/agusmdev/burntop/internal/config"
)

// getTestConfig returns a config with test-appropriate ports, pointed at
// BURNTOP_TEST_DATABASE_URL. Scheduler runs are disabled so tests don't
// race background leaderboard/benchmark jobs against a small test dataset.
func getTestConfig(t *testing.T, dbURL string) *config.Config {
	t.Helper()

	return &config.Config{
		APIPort:          18080,
		DatabaseURL:      dbURL,
		DatabasePoolMin:  1,
		DatabasePoolMax:  4,
		FrontendURL:      "http://localhost:5173",
		SecretKey:        "test-secret-key-at-least-32-characters-long",
		PricingCachePath: t.TempDir() + "/pricing.json",
		PricingCacheTTL:  time.Hour,
		SchedulerEnabled: false,
	}
}

func requireTestDatabase(t *testing.T) string {
	t.Helper()
	url := os.Getenv("BURNTOP_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("BURNTOP_TEST_DATABASE_URL not set, skipping integration test")
	}
	return url
}

func TestNewServer(t *testing.T) {
	dbURL := requireTestDatabase(t)
	cfg := getTestConfig(t, dbURL)

	ctx := context.Background()
	srv, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	if srv.router == nil {
		t.Error("Server router is nil")
	}
	if srv.pool == nil {
		t.Error("Server pool is nil")
	}
	if srv.config == nil {
		t.Error("Server config is nil")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown returned error: %v", err)
	}
}

func TestServerStartAndShutdown(t *testing.T) {
	dbURL := requireTestDatabase(t)
	cfg := getTestConfig(t, dbURL)

	ctx := context.Background()
	srv, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	time.Sleep(100 * time.Millisecond)

	select {
	case err := <-serverErr:
		if err != nil {
			t.Fatalf("Server failed to start: %v", err)
		}
	default:
	}

	resp, err := http.Get("http://localhost:18080/healthz")
	if err != nil {
		t.Errorf("Failed to reach health endpoint: %v", err)
	} else {
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected status 200, got %d", resp.StatusCode)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown returned error: %v", err)
	}
}

func TestServerShutdownBeforeStart(t *testing.T) {
	dbURL := requireTestDatabase(t)
	cfg := getTestConfig(t, dbURL)

	ctx := context.Background()
	srv, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown before start returned error: %v", err)
	}
}

func TestServerRejectsUnauthenticatedSync(t *testing.T) {
	dbURL := requireTestDatabase(t)
	cfg := getTestConfig(t, dbURL)
	cfg.APIPort = 18081

	ctx := context.Background()
	srv, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	go func() {
		_ = srv.ListenAndServe()
	}()
	time.Sleep(100 * time.Millisecond)

	resp, err := http.Post("http://localhost:18081/api/v1/sync", "application/json", nil)
	if err != nil {
		t.Fatalf("Failed to reach sync endpoint: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for an unauthenticated sync request", resp.StatusCode)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
