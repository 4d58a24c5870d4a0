package worker

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/thebtf/attune/internal/adaptive"
	"github.com/thebtf/attune/internal/session"
	"github.com/thebtf/attune/internal/settings"
	_ "github.com/thebtf/attune/internal/worker/docs"
	"github.com/thebtf/attune/pkg/models"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// stateResponse is the client-facing view of the loop.
type stateResponse struct {
	adaptive.State
	View models.View `json:"view"`
}

func newStateResponse(st adaptive.State) stateResponse {
	view := models.ViewPreSession
	if st.Active {
		view = models.ViewDashboard
	}
	return stateResponse{State: st, View: view}
}

type bioRequest struct {
	Activity    string `json:"activity,omitempty"`
	StressLevel string `json:"stressLevel"`
	HeartRate   int    `json:"heartRate"`
}

type startRequest struct {
	Activity string `json:"activity"`
}

type stopResponse struct {
	Record   *models.SessionRecord `json:"record,omitempty"`
	Archived bool                  `json:"archived"`
}

type journalRequest struct {
	Text string   `json:"text"`
	Tags []string `json:"tags,omitempty"`
	Mood int      `json:"mood"`
}

type reframeRequest struct {
	Thought string `json:"thought"`
	Reframe string `json:"reframe"`
}

type mixRequest struct {
	Layers map[models.SoundscapeKey]float64 `json:"layers"`
	Name   string                           `json:"name"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// setupRoutes registers every route on s.router.
func (s *Service) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)
	r.Get("/api/version", s.handleVersion)
	r.Handle("/metrics", s.telemetry.handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Group(func(r chi.Router) {
		r.Use(s.requireReady)
		r.Use(rateLimit(s.config.RateLimitPerMinute))

		r.Get("/api/events", s.sseBroadcaster.HandleSSE)
		r.Get("/api/state", s.handleGetState)
		r.Put("/api/bio", s.handleUpdateBio)
		r.Post("/api/session/start", s.handleStartSession)
		r.Post("/api/session/stop", s.handleStopSession)

		r.Get("/api/history", s.handleGetHistory)
		r.Delete("/api/history", s.handleClearHistory)
		r.Delete("/api/history/{id}", s.handleDeleteHistoryRecord)

		r.Get("/api/journal", s.handleGetJournal)
		r.Post("/api/journal", s.handleCreateJournal)
		r.Delete("/api/journal/{id}", s.handleDeleteJournal)

		r.Get("/api/reframes", s.handleGetReframes)
		r.Post("/api/reframes", s.handleCreateReframe)
		r.Delete("/api/reframes/{id}", s.handleDeleteReframe)

		r.Get("/api/mixes", s.handleGetMixes)
		r.Post("/api/mixes", s.handleCreateMix)
		r.Delete("/api/mixes/{id}", s.handleDeleteMix)

		r.Get("/api/soundscapes", s.handleGetSoundscapes)

		r.Get("/api/preferences", s.handleGetPreferences)
		r.Put("/api/preferences", s.handleUpdatePreferences)
		r.Get("/api/settings", s.handleGetSettings)
		r.Put("/api/settings", s.handleUpdateSettings)
	})
}

// requireReady rejects requests until the service is serving.
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeError(w, http.StatusServiceUnavailable, errors.New("service not ready"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealth reports liveness.
//
//	@Summary	Liveness and version
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	map[string]any
//	@Router		/api/health [get]
func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "starting"
	if s.ready.Load() {
		status = "ready"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
		"clients": s.sseBroadcaster.ClientCount(),
	})
}

// handleReady reports readiness.
//
//	@Summary	Readiness
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Failure	503	{object}	errorResponse
//	@Router		/api/ready [get]
func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeError(w, http.StatusServiceUnavailable, errors.New("service not ready"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion returns the build version.
//
//	@Summary	Build version
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Router		/api/version [get]
func (s *Service) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// handleGetState returns the current snapshot, recommendation and view.
//
//	@Summary	Current state
//	@Tags		session
//	@Produce	json
//	@Success	200	{object}	stateResponse
//	@Router		/api/state [get]
func (s *Service) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newStateResponse(s.loop.State()))
}

// handleUpdateBio replaces the bio snapshot.
//
//	@Summary	Push a bio reading
//	@Tags		session
//	@Accept		json
//	@Produce	json
//	@Param		reading	body		bioRequest	true	"Reading"
//	@Success	200		{object}	stateResponse
//	@Failure	400		{object}	errorResponse
//	@Router		/api/bio [put]
func (s *Service) handleUpdateBio(w http.ResponseWriter, r *http.Request) {
	var req bioRequest
	if !decodeBody(w, r, &req) {
		return
	}
	stress, err := models.ParseStressLevel(req.StressLevel)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	activity := strings.TrimSpace(req.Activity)
	if activity == "" {
		activity = s.loop.State().Bio.Activity
	}
	bio := models.BioSnapshot{HeartRate: req.HeartRate, StressLevel: stress, Activity: activity}
	if err := s.loop.UpdateBioData(bio); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(s.loop.State()))
}

// handleStartSession starts a session for an activity.
//
//	@Summary	Start a session
//	@Tags		session
//	@Accept		json
//	@Produce	json
//	@Param		session	body		startRequest	true	"Activity"
//	@Success	200		{object}	stateResponse
//	@Failure	400		{object}	errorResponse
//	@Failure	409		{object}	errorResponse
//	@Router		/api/session/start [post]
func (s *Service) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.controller.Start(s.ctx, req.Activity); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(s.loop.State()))
}

// handleStopSession stops the running session.
//
//	@Summary	Stop the session
//	@Tags		session
//	@Produce	json
//	@Success	200	{object}	stopResponse
//	@Router		/api/session/stop [post]
func (s *Service) handleStopSession(w http.ResponseWriter, r *http.Request) {
	rec := s.controller.Stop(r.Context())
	writeJSON(w, http.StatusOK, stopResponse{Record: rec, Archived: rec != nil})
}

// handleGetHistory lists archived sessions, most recent first.
//
//	@Summary	Session history
//	@Tags		history
//	@Produce	json
//	@Success	200	{array}	models.SessionRecord
//	@Router		/api/history [get]
func (s *Service) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.controller.History(r.Context())))
}

func (s *Service) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.controller.ClearHistory(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleDeleteHistoryRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.controller.RemoveRecord(r.Context(), id) {
		writeError(w, http.StatusNotFound, fmt.Errorf("session %q not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.store.Journal.All(r.Context())))
}

// handleCreateJournal adds a mood entry.
//
//	@Summary	Add a journal entry
//	@Tags		journal
//	@Accept		json
//	@Produce	json
//	@Param		entry	body		journalRequest	true	"Entry"
//	@Success	201		{object}	models.JournalEntry
//	@Failure	400		{object}	errorResponse
//	@Router		/api/journal [post]
func (s *Service) handleCreateJournal(w http.ResponseWriter, r *http.Request) {
	var req journalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	entry, err := models.NewJournalEntry(req.Mood, req.Text, req.Tags, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.store.Journal.Prepend(r.Context(), *entry)
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Service) handleDeleteJournal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.store.Journal.Remove(r.Context(), id) {
		writeError(w, http.StatusNotFound, fmt.Errorf("journal entry %q not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleGetReframes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.store.Reframes.All(r.Context())))
}

func (s *Service) handleCreateReframe(w http.ResponseWriter, r *http.Request) {
	var req reframeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	entry, err := models.NewReframeEntry(req.Thought, req.Reframe, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.store.Reframes.Prepend(r.Context(), *entry)
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Service) handleDeleteReframe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.store.Reframes.Remove(r.Context(), id) {
		writeError(w, http.StatusNotFound, fmt.Errorf("reframe %q not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleGetMixes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.store.Mixes.All(r.Context())))
}

// handleCreateMix saves a soundscape mix. Every layer must name a known soundscape.
//
//	@Summary	Save a mix
//	@Tags		mixes
//	@Accept		json
//	@Produce	json
//	@Param		mix	body		mixRequest	true	"Mix"
//	@Success	201	{object}	models.Mix
//	@Failure	400	{object}	errorResponse
//	@Router		/api/mixes [post]
func (s *Service) handleCreateMix(w http.ResponseWriter, r *http.Request) {
	var req mixRequest
	if !decodeBody(w, r, &req) {
		return
	}
	for key := range req.Layers {
		if !s.catalog.Has(key) {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: unknown soundscape %q", models.ErrInvalidEntry, key))
			return
		}
	}
	mix, err := models.NewMix(req.Name, req.Layers)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.store.Mixes.Prepend(r.Context(), *mix)
	writeJSON(w, http.StatusCreated, mix)
}

func (s *Service) handleDeleteMix(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.store.Mixes.Remove(r.Context(), id) {
		writeError(w, http.StatusNotFound, fmt.Errorf("mix %q not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleGetSoundscapes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.All())
}

func (s *Service) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs := s.store.Preferences.Get(r.Context())
	if prefs == nil {
		prefs = models.Preferences{}
	}
	writeJSON(w, http.StatusOK, prefs)
}

// handleUpdatePreferences replaces the preference object.
//
//	@Summary	Replace preferences
//	@Tags		preferences
//	@Accept		json
//	@Produce	json
//	@Param		preferences	body		object	true	"Preferences"
//	@Success	200			{object}	object
//	@Failure	400			{object}	errorResponse
//	@Router		/api/preferences [put]
func (s *Service) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var prefs models.Preferences
	if !decodeBody(w, r, &prefs) {
		return
	}
	if prefs == nil {
		prefs = models.Preferences{}
	}
	s.store.Preferences.Set(r.Context(), prefs)
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Service) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.Get())
}

// handleUpdateSettings changes language and theme. Empty fields are kept.
//
//	@Summary	Update settings
//	@Tags		settings
//	@Accept		json
//	@Produce	json
//	@Param		settings	body		settings.Settings	true	"Settings"
//	@Success	200			{object}	settings.Settings
//	@Failure	400			{object}	errorResponse
//	@Router		/api/settings [put]
func (s *Service) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settings.Settings
	if !decodeBody(w, r, &req) {
		return
	}
	updated, err := s.settings.Update(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionActive):
		return http.StatusConflict
	case errors.Is(err, session.ErrInvalidActivity),
		errors.Is(err, models.ErrInvalidBioData),
		errors.Is(err, models.ErrInvalidEntry),
		errors.Is(err, settings.ErrUnsupportedLanguage),
		errors.Is(err, settings.ErrUnsupportedTheme):
		return http.StatusBadRequest
	case errors.Is(err, adaptive.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("Request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
