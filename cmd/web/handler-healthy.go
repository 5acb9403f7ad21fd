package main

import (
	"net/http"
	"strconv"
	"time"
)

type healthResponse struct {
	Status string `json:"status"`
}

func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, healthResponse{Status: "ok"})
}

type testTimeoutResponse struct {
	Status  string `json:"status"`
	SleptMS int    `json:"slept_ms"`
}

// testTimeout sleeps for the sleep_ms query parameter or until the request is cancelled. It lets tests and
// operators verify the timeout of each route class.
func (app *application) testTimeout(w http.ResponseWriter, r *http.Request) {
	sleepMS := 0
	if s := r.URL.Query().Get("sleep_ms"); s != "" {
		var err error
		if sleepMS, err = strconv.Atoi(s); err != nil || sleepMS < 0 {
			app.writeError(w, r, http.StatusBadRequest, "invalid sleep_ms parameter")
			return
		}
	}

	select {
	case <-time.After(time.Duration(sleepMS) * time.Millisecond):
	case <-r.Context().Done():
		return
	}
	app.writeJSON(w, r, http.StatusOK, testTimeoutResponse{Status: "completed", SleptMS: sleepMS})
}
