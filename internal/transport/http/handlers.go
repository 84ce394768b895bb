package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// API wires the core services to JSON endpoints.
type API struct {
	attempts   *app.AttemptService
	boards     *app.LeaderboardService
	reconciler *app.Reconciler
	quizzes    app.QuizAdmin
	quizCache  app.QuizCache
	settings   app.SettingsStore
	auth       app.Authenticator
	watch      *app.LeaderboardWatch
	log        *zap.Logger
}

func NewAPI(
	attempts *app.AttemptService,
	boards *app.LeaderboardService,
	reconciler *app.Reconciler,
	quizzes app.QuizAdmin,
	quizCache app.QuizCache,
	settings app.SettingsStore,
	auth app.Authenticator,
	watch *app.LeaderboardWatch,
	log *zap.Logger,
) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{
		attempts:   attempts,
		boards:     boards,
		reconciler: reconciler,
		quizzes:    quizzes,
		quizCache:  quizCache,
		settings:   settings,
		auth:       auth,
		watch:      watch,
		log:        log,
	}
}

// Register mounts all routes on the mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("POST /api/attempts", a.withCaller(a.handleSubmit))
	mux.Handle("GET /api/attempts/status", a.withCaller(a.handleCheckAttempted))
	mux.Handle("GET /api/leaderboard/overall", a.withCaller(a.handleOverallLeaderboard))
	mux.Handle("GET /api/leaderboard/{quizID}", a.withCaller(a.handleQuizLeaderboard))
	mux.Handle("POST /api/admin/reconcile", a.withCaller(a.handleReconcile))
	mux.Handle("GET /api/admin/dashboard", a.withCaller(a.handleDashboard))
	mux.Handle("PUT /api/admin/quizzes/{quizID}/leaderboard", a.withCaller(a.handleSetQuizFlag))
	mux.Handle("PUT /api/admin/settings/{key}", a.withCaller(a.handleSetSetting))
	mux.Handle("GET /ws", a.withCaller(a.serveWS))
}

type submitPayload struct {
	QuizID      string `json:"quizId"`
	ExternalID  string `json:"externalId"`
	DisplayName string `json:"displayName"`
	Answers     []int  `json:"answers"`
	TimeTaken   int    `json:"timeTaken"`
}

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	var payload submitPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := a.attempts.Submit(r.Context(), app.SubmitRequest{
		QuizID:      payload.QuizID,
		UserID:      caller.UserID,
		ExternalID:  payload.ExternalID,
		DisplayName: payload.DisplayName,
		Answers:     payload.Answers,
		TimeTaken:   payload.TimeTaken,
	})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleCheckAttempted(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		writeError(w, http.StatusBadRequest, "missing quizId")
		return
	}
	identity := domain.ResolveIdentity(caller.UserID, r.URL.Query().Get("externalId"))
	status, err := a.attempts.CheckAttempted(r.Context(), quizID, identity)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) handleQuizLeaderboard(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	board, err := a.boards.QuizLeaderboard(r.Context(), r.PathValue("quizID"), caller)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (a *API) handleOverallLeaderboard(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	board, err := a.boards.OverallLeaderboard(r.Context(), caller)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (a *API) handleReconcile(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	removed, err := a.reconciler.Run(r.Context(), caller)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removedCount": removed})
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	summary, err := a.boards.Dashboard(r.Context(), caller)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type flagPayload struct {
	Show bool `json:"show"`
}

func (a *API) handleSetQuizFlag(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	if !caller.IsAdmin() {
		a.writeServiceError(w, domain.ErrAccessDenied)
		return
	}
	var payload flagPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	quizID := r.PathValue("quizID")
	if err := a.quizzes.SetShowLeaderboard(r.Context(), quizID, payload.Show); err != nil {
		a.writeServiceError(w, err)
		return
	}
	if a.quizCache != nil {
		if err := a.quizCache.Invalidate(r.Context(), quizID); err != nil {
			a.log.Warn("quiz cache invalidation failed", zap.String("quizId", quizID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"showLeaderboard": payload.Show})
}

type settingPayload struct {
	Value string `json:"value"`
}

func (a *API) handleSetSetting(w http.ResponseWriter, r *http.Request, caller domain.Caller) {
	if !caller.IsAdmin() {
		a.writeServiceError(w, domain.ErrAccessDenied)
		return
	}
	var payload settingPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	key := r.PathValue("key")
	if err := a.settings.Set(r.Context(), key, payload.Value); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": payload.Value})
}

// callerHandler receives the resolved caller alongside the request.
type callerHandler func(http.ResponseWriter, *http.Request, domain.Caller)

// withCaller resolves the Authorization bearer token to a caller. Missing or
// unknown tokens yield an anonymous caller; endpoints decide what that means.
func (a *API) withCaller(next callerHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next(w, r, a.resolveCaller(r))
	})
}

func (a *API) resolveCaller(r *http.Request) domain.Caller {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if a.auth == nil || len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return domain.Caller{}
	}
	caller, ok := a.auth.Authenticate(header[len(prefix):])
	if !ok {
		return domain.Caller{}
	}
	return caller
}

type errorResponse struct {
	Message   string `json:"message"`
	Score     *int   `json:"score,omitempty"`
	TimeTaken *int   `json:"timeTaken,omitempty"`
}

// writeServiceError maps the error taxonomy onto HTTP statuses. Storage
// failures surface as a generic 500; typed client errors pass through.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	var dup *domain.DuplicateAttemptError
	switch {
	case errors.As(err, &dup):
		writeJSON(w, http.StatusConflict, errorResponse{
			Message:   "you have already attempted this quiz",
			Score:     &dup.PriorScore,
			TimeTaken: &dup.PriorTime,
		})
	case errors.Is(err, domain.ErrShapeMismatch), errors.Is(err, domain.ErrInvalidSubmission):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAuthenticationRequired):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrAccessDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrAttemptNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		a.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}
