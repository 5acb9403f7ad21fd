package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/myrjola/fitcoach/internal/cache"
	"github.com/myrjola/fitcoach/internal/envstruct"
	"github.com/myrjola/fitcoach/internal/errors"
	"github.com/myrjola/fitcoach/internal/flightrecorder"
	"github.com/myrjola/fitcoach/internal/generation"
	"github.com/myrjola/fitcoach/internal/logging"
	"github.com/myrjola/fitcoach/internal/sqlite"
	"github.com/myrjola/fitcoach/internal/trainerchat"
	"github.com/myrjola/fitcoach/internal/workout"
	"github.com/yuin/goldmark"
)

type application struct {
	logger         *slog.Logger
	workouts       *workout.Service
	trainerChat    *trainerchat.Service
	markdown       goldmark.Markdown
	flightRecorder *flightrecorder.Service
}

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"FITCOACH_ADDR" envDefault:"localhost:8081"`
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"FITCOACH_SQLITE_URL" envDefault:"./fitcoach.sqlite3"`
	// OpenAIAPIKey is required. Every draft mutation calls the completion service.
	OpenAIAPIKey string `env:"OPENAI_API_KEY" envDefault:""`
	// OpenAIBaseURL points the client at a compatible endpoint.
	OpenAIBaseURL string `env:"FITCOACH_OPENAI_BASE_URL" envDefault:""`
	OpenAIModel   string `env:"FITCOACH_OPENAI_MODEL" envDefault:"gpt-4o"`
	// OpenAITimeout bounds a single completion request.
	OpenAITimeout time.Duration `env:"FITCOACH_OPENAI_TIMEOUT" envDefault:"60s"`
	// OpenAIStructured selects schema-constrained output. Disable it for models without structured output.
	OpenAIStructured bool `env:"FITCOACH_OPENAI_STRUCTURED" envDefault:"true"`
	// RedisAddr enables the shared attendance cache. Empty uses an in-process cache.
	RedisAddr     string        `env:"FITCOACH_REDIS_ADDR" envDefault:""`
	AttendanceTTL time.Duration `env:"FITCOACH_ATTENDANCE_TTL" envDefault:"5m"`
	// TracesDir enables the flight recorder. Traces of timed out requests are written there.
	TracesDir string `env:"FITCOACH_TRACES_DIR" envDefault:""`
	// TraceCooldown is the minimum time between two traces of the same route.
	TraceCooldown time.Duration `env:"FITCOACH_TRACE_COOLDOWN" envDefault:"30m"`
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		cancel context.CancelFunc
		err    error
	)

	ctx, cancel = signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	var cfg config
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	completer, err := generation.NewOpenAICompleter(generation.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.OpenAITimeout,
	})
	if err != nil {
		return errors.Wrap(err, "new completer")
	}
	gateway := generation.NewGateway(completer, cfg.OpenAIStructured, logger)

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "failed to close db", slog.Any("error", closeErr))
		}
	}()
	logger.LogAttrs(ctx, slog.LevelInfo, "connected to db")

	var attendanceCache cache.Cache
	if cfg.RedisAddr != "" {
		var rdb *cache.Redis
		if rdb, err = cache.NewRedis(ctx, cfg.RedisAddr, logger); err != nil {
			return errors.Wrap(err, "connect redis", slog.String("addr", cfg.RedisAddr))
		}
		defer func() {
			if closeErr := rdb.Close(); closeErr != nil {
				logger.LogAttrs(ctx, slog.LevelError, "failed to close redis", slog.Any("error", closeErr))
			}
		}()
		attendanceCache = rdb
	}

	workouts, err := workout.NewService(db, logger, gateway, workout.Config{
		Cache:         attendanceCache,
		AttendanceTTL: cfg.AttendanceTTL,
		Now:           nil,
		RandIntN:      nil,
	})
	if err != nil {
		return errors.Wrap(err, "new workout service")
	}
	defer workouts.Wait()

	var recorder *flightrecorder.Service
	if cfg.TracesDir != "" {
		if recorder, err = flightrecorder.New(flightrecorder.Config{
			Logger:          logger,
			MinAge:          0,
			MaxBytes:        0,
			TracesDirectory: cfg.TracesDir,
			Cooldown:        cfg.TraceCooldown,
			Now:             nil,
		}); err != nil {
			return errors.Wrap(err, "new flight recorder")
		}
		if err = recorder.Start(ctx); err != nil {
			return errors.Wrap(err, "start flight recorder")
		}
		defer recorder.Stop(ctx)
	}

	app := application{
		logger:         logger,
		workouts:       workouts,
		trainerChat:    trainerchat.NewService(db, logger, gateway, workouts),
		markdown:       goldmark.New(),
		flightRecorder: recorder,
	}

	if err = app.configureAndStartServer(ctx, cfg.Addr); err != nil {
		return errors.Wrap(err, "start server")
	}
	return nil
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
