package main

import (
	"net/http"
)

func (app *application) routes() *http.ServeMux {
	mux := http.NewServeMux()

	var (
		common = func(next http.Handler) http.Handler {
			return app.recoverPanic(app.logAndTraceRequest(secureHeaders(noCache(app.crossOriginProtection(next)))))
		}
		// api serves requests that only touch the database.
		api = func(next http.HandlerFunc) http.Handler {
			return common(app.authenticate(app.timeout(defaultTimeout)(next)))
		}
		// generate serves requests that wait for the completion service.
		generate = func(next http.HandlerFunc) http.Handler {
			return common(app.authenticate(app.timeout(generationTimeout)(next)))
		}
		// stream is for handlers that flush as they go, which http.TimeoutHandler does not support.
		stream = func(next http.HandlerFunc) http.Handler {
			return common(app.authenticate(app.deadline(generationTimeout)(next)))
		}
	)

	mux.Handle("GET /api/attendance", api(app.attendanceGET))
	mux.Handle("GET /api/rotation/next", api(app.rotationNextGET))
	mux.Handle("GET /api/stats", api(app.statsGET))

	mux.Handle("POST /api/workouts/drafts", generate(app.draftPOST))
	mux.Handle("POST /api/workouts/{id}/replace", generate(app.draftReplacePOST))
	mux.Handle("POST /api/workouts/{id}/exercises/{index}/replace", generate(app.exerciseReplacePOST))
	mux.Handle("POST /api/workouts/{id}/complete", api(app.draftCompletePOST))
	mux.Handle("POST /api/workouts/{id}/clone", api(app.workoutClonePOST))
	mux.Handle("DELETE /api/workouts/{id}", api(app.draftDELETE))
	mux.Handle("GET /api/workouts", api(app.workoutsGET))
	mux.Handle("GET /api/workouts/{id}", api(app.workoutGET))
	mux.Handle("POST /api/workouts/{id}/rating", api(app.workoutRatingPOST))
	mux.Handle("POST /api/exercises/generate", generate(app.exerciseGeneratePOST))

	mux.Handle("GET /api/profile", api(app.profileGET))
	mux.Handle("PUT /api/profile", api(app.profilePUT))
	mux.Handle("POST /api/meals", api(app.mealPOST))
	mux.Handle("POST /api/meal-plans/weekly", generate(app.weeklyMenuPOST))

	mux.Handle("POST /api/trainer-chat/sessions", api(app.chatSessionPOST))
	mux.Handle("GET /api/trainer-chat/sessions/{id}", api(app.chatSessionGET))
	mux.Handle("POST /api/trainer-chat/sessions/{id}/messages", stream(app.chatMessagePOST))
	mux.Handle("POST /api/trainer-chat/sessions/{id}/finish", generate(app.chatFinishPOST))
	mux.Handle("POST /api/trainer-chat/sessions/{id}/revert", api(app.chatRevertPOST))

	mux.Handle("GET /api/healthy", common(http.HandlerFunc(app.healthy)))
	mux.Handle("GET /api/test/timeout", common(app.timeout(defaultTimeout)(http.HandlerFunc(app.testTimeout))))
	mux.Handle("GET /api/test/timeout/generation",
		common(app.timeout(generationTimeout)(http.HandlerFunc(app.testTimeout))))

	return mux
}
