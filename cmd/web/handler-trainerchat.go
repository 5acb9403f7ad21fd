package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/myrjola/fitcoach/internal/errors"
	"github.com/myrjola/fitcoach/internal/trainerchat"
)

type chatMessageResponse struct {
	ID          int64            `json:"id"`
	Role        trainerchat.Role `json:"role"`
	Content     string           `json:"content"`
	ContentHTML string           `json:"content_html,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

type chatSessionResponse struct {
	ID                  string                `json:"id"`
	WorkoutID           string                `json:"workout_id"`
	Status              trainerchat.Status    `json:"status"`
	OriginalWorkoutText string                `json:"original_workout_text"`
	UpdatedWorkoutText  string                `json:"updated_workout_text,omitempty"`
	Messages            []chatMessageResponse `json:"messages"`
	CreatedAt           time.Time             `json:"created_at"`
}

func (app *application) newChatMessageResponse(r *http.Request, m trainerchat.Message) chatMessageResponse {
	resp := chatMessageResponse{
		ID:          m.ID,
		Role:        m.Role,
		Content:     m.Content,
		ContentHTML: "",
		CreatedAt:   m.CreatedAt,
	}
	if m.Role == trainerchat.RoleAssistant {
		resp.ContentHTML = app.renderMarkdownToHTML(r.Context(), m.Content)
	}
	return resp
}

func (app *application) newChatSessionResponse(
	r *http.Request, s trainerchat.Session, messages []trainerchat.Message) chatSessionResponse {
	resp := chatSessionResponse{
		ID:                  s.ID,
		WorkoutID:           s.WorkoutID,
		Status:              s.Status,
		OriginalWorkoutText: s.OriginalWorkoutText,
		UpdatedWorkoutText:  s.UpdatedWorkoutText,
		Messages:            make([]chatMessageResponse, 0, len(messages)),
		CreatedAt:           s.CreatedAt,
	}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, app.newChatMessageResponse(r, m))
	}
	return resp
}

type chatSessionRequest struct {
	WorkoutID string `json:"workout_id"`
}

func (app *application) chatSessionPOST(w http.ResponseWriter, r *http.Request) {
	var req chatSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	session, greeting, err := app.trainerChat.CreateSession(r.Context(), req.WorkoutID)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated,
		app.newChatSessionResponse(r, session, []trainerchat.Message{greeting}))
}

func (app *application) chatSessionGET(w http.ResponseWriter, r *http.Request) {
	session, messages, err := app.trainerChat.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, app.newChatSessionResponse(r, session, messages))
}

type chatMessageRequest struct {
	Text string `json:"text"`
}

// chatMessagePOST answers with the assistant message as JSON, or with ?stream=1 as plain text flushed chunk by
// chunk. A streamed reply that fails midway is cut short since the status has already been sent.
func (app *application) chatMessagePOST(w http.ResponseWriter, r *http.Request) {
	var req chatMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	id := r.PathValue("id")

	if r.URL.Query().Get("stream") != "1" {
		reply, err := app.trainerChat.SendTurn(r.Context(), id, req.Text)
		if err != nil {
			app.handleError(w, r, err)
			return
		}
		app.writeJSON(w, r, http.StatusOK, app.newChatMessageResponse(r, reply))
		return
	}

	rc := http.NewResponseController(w)
	started := false
	_, err := app.trainerChat.SendTurnStream(r.Context(), id, req.Text, func(chunk string) error {
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := w.Write([]byte(chunk)); err != nil {
			return fmt.Errorf("write chunk: %w", err)
		}
		if err := rc.Flush(); err != nil {
			return fmt.Errorf("flush chunk: %w", err)
		}
		return nil
	})
	switch {
	case err == nil && !started:
		w.WriteHeader(http.StatusOK)
	case err != nil && !started:
		app.handleError(w, r, err)
	case err != nil:
		app.logger.LogAttrs(r.Context(), slog.LevelWarn, "trainer chat stream interrupted", errors.SlogError(err))
	}
}

func (app *application) chatFinishPOST(w http.ResponseWriter, r *http.Request) {
	updated, err := app.trainerChat.Finish(r.Context(), r.PathValue("id"))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newWorkoutResponse(updated))
}

func (app *application) chatRevertPOST(w http.ResponseWriter, r *http.Request) {
	restored, err := app.trainerChat.Revert(r.Context(), r.PathValue("id"))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newWorkoutResponse(restored))
}
