package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/myrjola/fitcoach/internal/errors"
	"github.com/myrjola/fitcoach/internal/generation"
	"github.com/myrjola/fitcoach/internal/trainerchat"
	"github.com/myrjola/fitcoach/internal/workout"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.NewSentinel("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		app.serverError(w, r, fmt.Errorf("encode response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(body); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelWarn, "failed to write response", slog.Any("error", err))
	}
}

func (app *application) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	app.writeJSON(w, r, status, errorResponse{Error: msg})
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error", errors.SlogError(err))
	app.writeError(w, r, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

// handleError maps service failures to status codes. Precondition violations are reported as not found, and
// completion service failures as a bad gateway.
func (app *application) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, workout.ErrNotFound), errors.Is(err, trainerchat.ErrNotFound):
		app.writeError(w, r, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	case errors.Is(err, workout.ErrInvalidInput), errors.Is(err, trainerchat.ErrInvalidInput),
		errors.Is(err, errBadRequest):
		app.logger.LogAttrs(r.Context(), slog.LevelInfo, "bad request", slog.Any("error", err))
		app.writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, generation.ErrUpstreamUnavailable), errors.Is(err, generation.ErrInvalidOutput):
		app.logger.LogAttrs(r.Context(), slog.LevelWarn, "generation failed", errors.SlogError(err))
		app.writeError(w, r, http.StatusBadGateway, "workout generation is temporarily unavailable")
	default:
		app.serverError(w, r, err)
	}
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: decode body: %w", errBadRequest, err)
	}
	return nil
}

// parseIndexParam parses the "index" path parameter.
func parseIndexParam(r *http.Request) (int, error) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		return 0, fmt.Errorf("%w: exercise index %q", errBadRequest, r.PathValue("index"))
	}
	return index, nil
}

// parseDate parses an optional YYYY-MM-DD date.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil //nolint:nilnil // absent date.
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q", errBadRequest, s)
	}
	return &d, nil
}
