package trainerchat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/myrjola/fitcoach/internal/contexthelpers"
	"github.com/myrjola/fitcoach/internal/generation"
	"github.com/myrjola/fitcoach/internal/sqlite"
	"github.com/myrjola/fitcoach/internal/workout"
)

// ErrNotFound is returned when a session is missing, owned by someone else or no longer active, and when the
// linked workout is no longer a draft.
var ErrNotFound = errors.New("not found")

const timestampFormat = "2006-01-02T15:04:05.000Z"

// repository contains the repositories for the trainer chat aggregates.
type repository struct {
	sessions sessionRepository
	messages messageRepository
}

// sessionRepository handles session persistence.
type sessionRepository interface {
	// Create inserts s together with its opening assistant message.
	Create(ctx context.Context, s Session, greeting string) (Session, Message, error)
	Get(ctx context.Context, id string) (Session, error)
	// Close moves an active session to status within tx. updated is stored when not nil. A session that is no
	// longer active yields ErrNotFound.
	Close(ctx context.Context, tx *sql.Tx, id string, status Status, updated *generation.StructuredWorkout) error
}

// messageRepository handles chat message persistence.
type messageRepository interface {
	Create(ctx context.Context, sessionID string, role Role, content string) (Message, error)
	// List returns the latest limit messages in the order they were written.
	List(ctx context.Context, sessionID string, limit int) ([]Message, error)
}

// repositoryFactory creates repository instances.
type repositoryFactory struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func newRepositoryFactory(db *sqlite.Database, logger *slog.Logger) *repositoryFactory {
	return &repositoryFactory{db: db, logger: logger}
}

func (f *repositoryFactory) newRepository() *repository {
	return &repository{
		sessions: &sqliteSessionRepository{db: f.db, logger: f.logger},
		messages: &sqliteMessageRepository{db: f.db},
	}
}

type sqliteSessionRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func (r *sqliteSessionRepository) Create(ctx context.Context, s Session, greeting string) (Session, Message, error) {
	details, format, err := s.OriginalDetails.Encode()
	if err != nil {
		return Session{}, Message{}, fmt.Errorf("encode original details: %w", err)
	}
	s.UserID = contexthelpers.AuthenticatedUserID(ctx)

	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, Message{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer r.db.Rollback(ctx, tx)()

	var createdAt, updatedAt string
	if err = tx.QueryRowContext(ctx, `
		INSERT INTO trainer_chat_sessions (id, user_id, workout_id, status, original_workout_text, original_details,
		                                   original_details_format)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at, updated_at`,
		s.ID, s.UserID, s.WorkoutID, s.Status, s.OriginalWorkoutText, details, format,
	).Scan(&createdAt, &updatedAt); err != nil {
		return Session{}, Message{}, fmt.Errorf("insert session: %w", err)
	}
	if s.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return Session{}, Message{}, err
	}
	if s.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return Session{}, Message{}, err
	}

	msg, err := insertMessage(ctx, tx, s.ID, RoleAssistant, greeting)
	if err != nil {
		return Session{}, Message{}, err
	}
	if err = tx.Commit(); err != nil {
		return Session{}, Message{}, fmt.Errorf("commit transaction: %w", err)
	}
	return s, msg, nil
}

func (r *sqliteSessionRepository) Get(ctx context.Context, id string) (Session, error) {
	var (
		s                        Session
		details, format          string
		updatedText, updatedJSON sql.NullString
		createdAt, updatedAt     string
	)
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, user_id, workout_id, status, original_workout_text, original_details, original_details_format,
		       updated_workout_text, updated_details, created_at, updated_at
		FROM trainer_chat_sessions
		WHERE id = ? AND user_id = ?`, id, contexthelpers.AuthenticatedUserID(ctx),
	).Scan(&s.ID, &s.UserID, &s.WorkoutID, &s.Status, &s.OriginalWorkoutText, &details, &format,
		&updatedText, &updatedJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("query session: %w", err)
	}

	if s.OriginalDetails, err = workout.DecodeDetails(details, workout.DetailsFormat(format)); err != nil {
		return Session{}, fmt.Errorf("decode original details: %w", err)
	}
	s.UpdatedWorkoutText = updatedText.String
	if updatedJSON.Valid {
		var sw generation.StructuredWorkout
		if err = json.Unmarshal([]byte(updatedJSON.String), &sw); err != nil {
			// The rewritten workout itself lives in the workouts table, so the session copy is informative only.
			r.logger.LogAttrs(ctx, slog.LevelWarn, "ignoring malformed updated details",
				slog.String("session_id", s.ID), slog.Any("error", err))
		} else {
			s.UpdatedDetails = &sw
		}
	}
	if s.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return Session{}, err
	}
	if s.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (r *sqliteSessionRepository) Close(
	ctx context.Context, tx *sql.Tx, id string, status Status, updated *generation.StructuredWorkout) error {
	var updatedText, updatedJSON sql.NullString
	if updated != nil {
		b, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("encode updated details: %w", err)
		}
		updatedJSON = sql.NullString{String: string(b), Valid: true}
		updatedText = sql.NullString{String: updated.Text(), Valid: true}
	}
	result, err := tx.ExecContext(ctx, `
		UPDATE trainer_chat_sessions
		SET status               = ?,
		    updated_workout_text = COALESCE(?, updated_workout_text),
		    updated_details      = COALESCE(?, updated_details),
		    updated_at           = STRFTIME('%Y-%m-%dT%H:%M:%fZ')
		WHERE id = ? AND user_id = ? AND status = 'active'`,
		status, updatedText, updatedJSON, id, contexthelpers.AuthenticatedUserID(ctx))
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type sqliteMessageRepository struct {
	db *sqlite.Database
}

func (r *sqliteMessageRepository) Create(
	ctx context.Context, sessionID string, role Role, content string) (Message, error) {
	return insertMessage(ctx, r.db.ReadWrite, sessionID, role, content)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertMessage(ctx context.Context, q queryRower, sessionID string, role Role, content string) (Message, error) {
	msg := Message{ID: 0, SessionID: sessionID, Role: role, Content: content, CreatedAt: time.Time{}}
	var createdAt string
	if err := q.QueryRowContext(ctx, `
		INSERT INTO trainer_chat_messages (session_id, role, content)
		VALUES (?, ?, ?)
		RETURNING id, created_at`, sessionID, role, content,
	).Scan(&msg.ID, &createdAt); err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	var err error
	if msg.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (r *sqliteMessageRepository) List(ctx context.Context, sessionID string, limit int) (_ []Message, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, session_id, role, content, created_at
		FROM trainer_chat_messages
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var messages []Message
	for rows.Next() {
		var (
			msg       Message
			createdAt string
		)
		if err = rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if msg.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	slices.Reverse(messages)
	return messages, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
