// Package trainerchat lets a user adjust a draft workout by talking to a trainer persona and then have the draft
// rewritten from the conversation, or restored to what it was before.
package trainerchat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/myrjola/fitcoach/internal/generation"
	"github.com/myrjola/fitcoach/internal/sqlite"
	"github.com/myrjola/fitcoach/internal/workout"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidInput is returned for an empty user message.
var ErrInvalidInput = errors.New("invalid input")

// maxMessages caps how much of a conversation is replayed to the model. Older messages are dropped first.
const maxMessages = 200

// workoutStore is the part of the workout service a session reads and writes.
type workoutStore interface {
	GetWorkout(ctx context.Context, id string) (workout.Workout, error)
	RecentWorkouts(ctx context.Context, limit int) ([]workout.Workout, error)
	RecentMeals(ctx context.Context, limit int) ([]workout.Meal, error)
	Profile(ctx context.Context) (workout.Profile, error)
	RewriteDraft(
		ctx context.Context, id string, sw generation.StructuredWorkout, inTx workout.TxFunc) (workout.Workout, error)
	RestoreDraft(
		ctx context.Context, id string, details workout.Details, inTx workout.TxFunc) (workout.Workout, error)
}

// Service handles the business logic for trainer chat sessions.
type Service struct {
	repo     *repository
	gateway  *generation.Gateway
	workouts workoutStore
	logger   *slog.Logger
}

// NewService creates a new trainer chat service.
func NewService(db *sqlite.Database, logger *slog.Logger, gateway *generation.Gateway, workouts workoutStore) *Service {
	return &Service{
		repo:     newRepositoryFactory(db, logger).newRepository(),
		gateway:  gateway,
		workouts: workouts,
		logger:   logger,
	}
}

// CreateSession opens a session about a draft and seeds it with a greeting summarising the user's history.
func (s *Service) CreateSession(ctx context.Context, workoutID string) (Session, Message, error) {
	w, err := s.draft(ctx, workoutID)
	if err != nil {
		return Session{}, Message{}, err
	}
	h, err := s.history(ctx)
	if err != nil {
		return Session{}, Message{}, err
	}

	session, greetingMsg, err := s.repo.sessions.Create(ctx, Session{
		ID:                  uuid.NewString(),
		UserID:              "",
		WorkoutID:           w.ID,
		Status:              StatusActive,
		OriginalWorkoutText: w.Details.String(),
		OriginalDetails:     w.Details,
		UpdatedWorkoutText:  "",
		UpdatedDetails:      nil,
	}, greeting(h))
	if err != nil {
		return Session{}, Message{}, fmt.Errorf("create session: %w", err)
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "opened trainer chat",
		slog.String("session_id", session.ID), slog.String("workout_id", w.ID))
	return session, greetingMsg, nil
}

// GetSession returns a session of the authenticated user in any status together with its messages.
func (s *Service) GetSession(ctx context.Context, id string) (Session, []Message, error) {
	session, err := s.repo.sessions.Get(ctx, id)
	if err != nil {
		return Session{}, nil, fmt.Errorf("get session %s: %w", id, err)
	}
	messages, err := s.repo.messages.List(ctx, session.ID, maxMessages)
	if err != nil {
		return Session{}, nil, fmt.Errorf("list messages: %w", err)
	}
	return session, messages, nil
}

// SendTurn is SendTurnStream without incremental delivery.
func (s *Service) SendTurn(ctx context.Context, id, text string) (Message, error) {
	return s.SendTurnStream(ctx, id, text, func(string) error { return nil })
}

// SendTurnStream records the user message and streams the trainer's reply to onChunk. The whole conversation is
// replayed to the model on every turn. The user message stays recorded when the model fails, and the reply is
// recorded only once it has been received in full.
func (s *Service) SendTurnStream(
	ctx context.Context, id, text string, onChunk func(string) error) (Message, error) {
	if text = strings.TrimSpace(text); text == "" {
		return Message{}, fmt.Errorf("empty message: %w", ErrInvalidInput)
	}
	session, _, err := s.activeSession(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if _, err = s.repo.messages.Create(ctx, session.ID, RoleUser, text); err != nil {
		return Message{}, fmt.Errorf("add user message: %w", err)
	}
	messages, err := s.repo.messages.List(ctx, session.ID, maxMessages)
	if err != nil {
		return Message{}, fmt.Errorf("list messages: %w", err)
	}
	h, err := s.history(ctx)
	if err != nil {
		return Message{}, err
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "trainer chat turn",
		slog.String("session_id", session.ID), slog.Int("messages", len(messages)))
	var reply strings.Builder
	if err = s.gateway.ChatStream(ctx, chatMessages(userContext(h, session.OriginalWorkoutText), messages),
		func(chunk string) error {
			reply.WriteString(chunk)
			return onChunk(chunk)
		}); err != nil {
		return Message{}, fmt.Errorf("trainer chat turn: %w", err)
	}

	content := strings.TrimSpace(reply.String())
	if content == "" {
		return Message{}, fmt.Errorf("trainer chat turn: %w: empty reply", generation.ErrInvalidOutput)
	}
	msg, err := s.repo.messages.Create(ctx, session.ID, RoleAssistant, content)
	if err != nil {
		return Message{}, fmt.Errorf("add assistant message: %w", err)
	}
	return msg, nil
}

// Finish rewrites the linked draft from the conversation and closes the session. Nothing is written when the
// draft is gone or no longer a draft, or when the session was closed meanwhile.
func (s *Service) Finish(ctx context.Context, id string) (workout.Workout, error) {
	session, w, err := s.activeSession(ctx, id)
	if err != nil {
		return workout.Workout{}, err
	}
	messages, err := s.repo.messages.List(ctx, session.ID, maxMessages)
	if err != nil {
		return workout.Workout{}, fmt.Errorf("list messages: %w", err)
	}
	h, err := s.history(ctx)
	if err != nil {
		return workout.Workout{}, err
	}

	original := session.OriginalWorkoutText
	if strings.TrimSpace(original) == "" {
		original = session.OriginalDetails.String()
	}
	target := w.TargetMuscleGroup()
	sw, err := s.gateway.GenerateFromConversation(ctx, finishMessages(userContext(h, original), target, messages),
		target)
	if err != nil {
		return workout.Workout{}, fmt.Errorf("finish trainer chat: %w", err)
	}

	// The draft and the session change together so a concurrent revert either wins completely or not at all.
	updated, err := s.workouts.RewriteDraft(ctx, w.ID, sw, func(ctx context.Context, tx *sql.Tx) error {
		return s.repo.sessions.Close(ctx, tx, session.ID, StatusFinished, &sw)
	})
	if err != nil {
		return workout.Workout{}, fmt.Errorf("finish session %s: %w", session.ID, notFound(err))
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "finished trainer chat",
		slog.String("session_id", session.ID), slog.String("workout_id", w.ID),
		slog.Int("exercises", len(sw.Exercises)))
	return updated, nil
}

// Revert restores the draft to the snapshot taken when the session was opened and closes the session.
func (s *Service) Revert(ctx context.Context, id string) (workout.Workout, error) {
	session, w, err := s.activeSession(ctx, id)
	if err != nil {
		return workout.Workout{}, err
	}
	restored, err := s.workouts.RestoreDraft(ctx, w.ID, session.OriginalDetails,
		func(ctx context.Context, tx *sql.Tx) error {
			return s.repo.sessions.Close(ctx, tx, session.ID, StatusReverted, nil)
		})
	if err != nil {
		return workout.Workout{}, fmt.Errorf("revert session %s: %w", session.ID, notFound(err))
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "reverted trainer chat",
		slog.String("session_id", session.ID), slog.String("workout_id", w.ID))
	return restored, nil
}

// activeSession loads a session that is still active and whose workout is still a draft.
func (s *Service) activeSession(ctx context.Context, id string) (Session, workout.Workout, error) {
	session, err := s.repo.sessions.Get(ctx, id)
	if err != nil {
		return Session{}, workout.Workout{}, fmt.Errorf("get session %s: %w", id, err)
	}
	if session.Status != StatusActive {
		return Session{}, workout.Workout{}, fmt.Errorf("session %s is %s: %w", id, session.Status, ErrNotFound)
	}
	w, err := s.draft(ctx, session.WorkoutID)
	if err != nil {
		return Session{}, workout.Workout{}, err
	}
	return session, w, nil
}

func (s *Service) draft(ctx context.Context, id string) (workout.Workout, error) {
	w, err := s.workouts.GetWorkout(ctx, id)
	if err != nil {
		return workout.Workout{}, notFound(err)
	}
	if w.Status != workout.StatusDraft {
		return workout.Workout{}, fmt.Errorf("workout %s is %s: %w", id, w.Status, ErrNotFound)
	}
	return w, nil
}

// history reads the profile, recent workouts and recent meals concurrently.
func (s *Service) history(ctx context.Context) (history, error) {
	var h history
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		p, err := s.workouts.Profile(egCtx)
		h.athlete = p.Athlete
		return err
	})
	eg.Go(func() error {
		var err error
		h.workouts, err = s.workouts.RecentWorkouts(egCtx, historyWorkouts)
		return err
	})
	eg.Go(func() error {
		var err error
		h.meals, err = s.workouts.RecentMeals(egCtx, historyMeals)
		return err
	})
	if err := eg.Wait(); err != nil {
		return history{}, fmt.Errorf("load history: %w", err)
	}
	return h, nil
}

// notFound folds the workout package's not found into ErrNotFound so that callers check a single sentinel.
func notFound(err error) error {
	if errors.Is(err, workout.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
