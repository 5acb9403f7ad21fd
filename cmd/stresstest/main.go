package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/myrjola/fitcoach/internal/e2etest"
	"github.com/myrjola/fitcoach/internal/logging"
	"github.com/myrjola/fitcoach/internal/testhelpers"
	"golang.org/x/sync/errgroup"
)

const (
	setupTimeout            = 30 * time.Second
	scenarioTimeout         = 30 * time.Second
	historyTimeout          = 10 * time.Minute
	maxConcurrentSetups     = 10
	maxConcurrentOperations = 20
	successRateThreshold    = 95.0
	percentageMultiplier    = 100
	daysPerWeek             = 7
)

// user is a synthetic athlete. The API trusts the user id header so no registration is needed.
type user struct {
	client *e2etest.Client
	id     string
}

type profile struct {
	Goal            string `json:"goal"`
	Level           string `json:"level"`
	Location        string `json:"location"`
	WorkoutsPerWeek int    `json:"workouts_per_week"`
	HeightCm        int    `json:"height_cm"`
	WeightKg        int    `json:"weight_kg"`
	Age             int    `json:"age"`
}

// setupUsers saves a profile for numUsers fresh users.
func setupUsers(ctx context.Context, url string, numUsers int, logger *slog.Logger) ([]user, error) {
	logger.LogAttrs(ctx, slog.LevelInfo, "Setting up users", slog.Int("num_users", numUsers))

	users := make([]user, numUsers)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSetups)
	for i := range users {
		id := "stresstest-" + uuid.NewString()
		users[i] = user{client: e2etest.NewClient(url, id), id: id}
		g.Go(func() error {
			setupCtx, cancel := context.WithTimeout(ctx, setupTimeout)
			defer cancel()
			p := profile{
				Goal:            "Набор мышечной массы",
				Level:           "Средний",
				Location:        "Зал",
				WorkoutsPerWeek: 2 + i%4, //nolint:mnd // two to five workouts a week.
				HeightCm:        160 + i%30,
				WeightKg:        55 + i%40,
				Age:             20 + i%35,
			}
			if err := users[i].client.DoJSON(setupCtx, http.MethodPut, "/api/profile", p, http.StatusOK, nil); err != nil {
				return fmt.Errorf("user %s: save profile: %w", id, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("setup users: %w", err)
	}
	return users, nil
}

// generateHistory creates and completes one workout a week for the last weeks. Every workout calls the completion
// service.
func generateHistory(ctx context.Context, users []user, weeks int, logger *slog.Logger) error {
	var failures atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSetups)
	for _, u := range users {
		g.Go(func() error {
			historyCtx, cancel := context.WithTimeout(ctx, historyTimeout)
			defer cancel()
			for week := weeks; week > 0; week-- {
				date := time.Now().AddDate(0, 0, -week*daysPerWeek).Format(time.DateOnly)
				if err := completeWorkout(historyCtx, u.client, date); err != nil {
					failures.Add(1)
					logger.LogAttrs(historyCtx, slog.LevelWarn, "Failed to generate workout",
						slog.String("user_id", u.id), slog.String("date", date), slog.Any("error", err))
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	if n := failures.Load(); n > 0 {
		return fmt.Errorf("%d workouts failed", n)
	}
	return nil
}

func completeWorkout(ctx context.Context, client *e2etest.Client, date string) error {
	var draft struct {
		ID                string         `json:"id"`
		DetailsStructured map[string]any `json:"details_structured"`
	}
	if err := client.DoJSON(ctx, http.MethodPost, "/api/workouts/drafts",
		map[string]string{"mode": "rotation", "date": date}, http.StatusCreated, &draft); err != nil {
		return fmt.Errorf("create draft: %w", err)
	}
	if draft.DetailsStructured == nil {
		return errors.New("draft has no structured details")
	}
	body := map[string]any{"details": draft.DetailsStructured, "date": date}
	if err := client.DoJSON(ctx, http.MethodPost, "/api/workouts/"+draft.ID+"/complete", body,
		http.StatusOK, nil); err != nil {
		return fmt.Errorf("complete draft: %w", err)
	}
	return nil
}

// scenario is what the home screen loads, fetched twice to hit the attendance cache, followed by a meal entry.
func scenario(ctx context.Context, u user) error {
	for range 2 {
		for _, path := range []string{"/api/attendance", "/api/rotation/next", "/api/stats", "/api/workouts?limit=10"} {
			if err := u.client.DoJSON(ctx, http.MethodGet, path, nil, http.StatusOK, nil); err != nil {
				return fmt.Errorf("GET %s: %w", path, err)
			}
		}
	}
	meal := map[string]any{"description": "Гречка с курицей", "calories": 550} //nolint:mnd // a plausible meal.
	if err := u.client.DoJSON(ctx, http.MethodPost, "/api/meals", meal, http.StatusCreated, nil); err != nil {
		return fmt.Errorf("add meal: %w", err)
	}
	return nil
}

// runLoadTest runs the scenario for every user concurrently and fails when too many scenarios fail.
func runLoadTest(ctx context.Context, users []user, logger *slog.Logger) error {
	logger.LogAttrs(ctx, slog.LevelInfo, "Starting load test", slog.Int("num_users", len(users)))

	var successCount, failureCount atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentOperations)
	for _, u := range users {
		g.Go(func() error {
			scenarioCtx, cancel := context.WithTimeout(ctx, scenarioTimeout)
			defer cancel()
			if err := scenario(scenarioCtx, u); err != nil {
				failureCount.Add(1)
				logger.LogAttrs(scenarioCtx, slog.LevelWarn, "Scenario failed",
					slog.String("user_id", u.id), slog.Any("error", err))
				return nil
			}
			successCount.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	successRate := float64(successCount.Load()) / float64(len(users)) * percentageMultiplier
	logger.LogAttrs(ctx, slog.LevelInfo, "Load test completed",
		slog.Int64("successful", successCount.Load()),
		slog.Int64("failed", failureCount.Load()),
		slog.Float64("success_rate", successRate))
	if successRate < successRateThreshold {
		return fmt.Errorf("load test failed: success rate %.1f%% below threshold", successRate)
	}
	return nil
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	ctx := context.Background()

	numUsers := flag.Int("users", 10, "number of synthetic users") //nolint:mnd // default load.
	weeks := flag.Int("history-weeks", 0,
		"weeks of generated workout history per user, each calls the completion service")
	flag.Parse()
	if flag.NArg() != 1 || *numUsers < 1 {
		logger.LogAttrs(ctx, slog.LevelError, "usage: stresstest [-users n>0] [-history-weeks n] <hostname>")
		os.Exit(1)
	}

	var (
		hostname = flag.Arg(0)
		start    = time.Now()
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", hostname))
	url := "https://" + hostname
	if strings.Contains(hostname, "localhost") {
		url = "http://" + hostname
	}

	if err := e2etest.NewClient(url, "").WaitForReady(ctx, "/api/healthy"); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "server not ready in time", slog.Any("error", err))
		os.Exit(1)
	}

	setupStart := time.Now()
	users, err := setupUsers(ctx, url, *numUsers, logger)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failed to setup users", slog.Any("error", err))
		os.Exit(1)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "User setup completed",
		slog.Duration("setup_duration", time.Since(setupStart)))

	if *weeks > 0 {
		historyStart := time.Now()
		if err = generateHistory(ctx, users, *weeks, logger); err != nil {
			logger.LogAttrs(ctx, slog.LevelWarn, "some workout history generation failed, continuing with load test",
				slog.Any("error", err))
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "Workout history generation completed",
			slog.Duration("history_duration", time.Since(historyStart)))
	}

	loadTestStart := time.Now()
	if err = runLoadTest(ctx, users, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "load test failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "Load test completed successfully 🙌",
		slog.Duration("total_duration", time.Since(start)),
		slog.Duration("load_test_duration", time.Since(loadTestStart)),
		slog.Int("users_tested", len(users)))
}
