package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/myrjola/fitcoach/internal/e2etest"
	"github.com/myrjola/fitcoach/internal/logging"
	"github.com/myrjola/fitcoach/internal/testhelpers"
)

const (
	readTimeout     = 10 * time.Second
	generateTimeout = 3 * time.Minute
)

// checkAuth verifies that the API rejects requests without a user id.
func checkAuth(ctx context.Context, url string) error {
	resp, err := e2etest.NewClient(url, "").Get(ctx, "/api/workouts")
	if err != nil {
		return fmt.Errorf("get workouts: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		return fmt.Errorf("unauthenticated request: expected 401, got %d", resp.StatusCode)
	}
	return nil
}

// checkReads calls the endpoints that only touch the database as a fresh user.
func checkReads(ctx context.Context, client *e2etest.Client) error {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	for _, path := range []string{"/api/profile", "/api/attendance", "/api/rotation/next", "/api/stats", "/api/workouts"} {
		if err := client.DoJSON(ctx, http.MethodGet, path, nil, http.StatusOK, nil); err != nil {
			return fmt.Errorf("GET %s: %w", path, err)
		}
	}
	return nil
}

// checkGeneration creates and deletes a draft, which exercises the completion service.
func checkGeneration(ctx context.Context, client *e2etest.Client) error {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()
	var draft struct {
		ID string `json:"id"`
	}
	if err := client.DoJSON(ctx, http.MethodPost, "/api/workouts/drafts", map[string]string{"mode": "rotation"},
		http.StatusCreated, &draft); err != nil {
		return fmt.Errorf("create draft: %w", err)
	}
	if err := client.DoJSON(ctx, http.MethodDelete, "/api/workouts/"+draft.ID, nil,
		http.StatusNoContent, nil); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	ctx := context.Background()

	generate := flag.Bool("generate", false, "also create and delete a draft, which calls the completion service")
	flag.Parse()
	if flag.NArg() != 1 {
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest [-generate] <hostname>")
		os.Exit(1)
	}

	var (
		hostname = flag.Arg(0)
		userID   = "smoketest-" + uuid.NewString()
		start    = time.Now()
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", hostname), slog.String("user_id", userID))
	url := "https://" + hostname
	if strings.Contains(hostname, "localhost") {
		url = "http://" + hostname
	}

	client := e2etest.NewClient(url, userID)
	if err := client.WaitForReady(ctx, "/api/healthy"); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "server not ready in time", slog.Any("error", err))
		os.Exit(1)
	}
	if err := checkAuth(ctx, url); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing auth", slog.Any("error", err))
		os.Exit(1)
	}
	if err := checkReads(ctx, client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing reads", slog.Any("error", err))
		os.Exit(1)
	}
	if *generate {
		if err := checkGeneration(ctx, client); err != nil {
			logger.LogAttrs(ctx, slog.LevelError, "error testing generation", slog.Any("error", err))
			os.Exit(1)
		}
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌", slog.Duration("duration", time.Since(start)))
}
