package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/fortuna/scoredesk/internal/cache"
	"github.com/fortuna/scoredesk/internal/matchscore"
	"github.com/fortuna/scoredesk/internal/notify"
	"github.com/fortuna/scoredesk/internal/scoring"
	"github.com/fortuna/scoredesk/internal/session"
	"github.com/fortuna/scoredesk/internal/store"
)

// MatchLister loads the admin match board.
type MatchLister interface {
	ListMatches(ctx context.Context) (*matchscore.Board, error)
}

// SnapshotStore serves cached snapshots.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, sport matchscore.Sport, matchID string) (*scoring.Snapshot, error)
}

// JournalReader reads the audit trail of a match.
type JournalReader interface {
	MatchJournal(ctx context.Context, matchID string, limit int) (*store.Journal, error)
}

// NotificationLog exposes recent user-facing messages per match.
type NotificationLog interface {
	Recent(matchID string) []notify.Notification
}

// HandlerConfig wires a Handler. Snapshots, Journal and Notifications may be nil.
type HandlerConfig struct {
	Sessions      *session.Manager
	Matches       MatchLister
	Snapshots     SnapshotStore
	Journal       JournalReader
	Notifications NotificationLog
	Logger        *log.Logger
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	sessions      *session.Manager
	matches       MatchLister
	snapshots     SnapshotStore
	journal       JournalReader
	notifications NotificationLog
	logger        *log.Logger
}

// NewHandler creates a new handler
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = defaultLogger()
	}
	return &Handler{
		sessions:      cfg.Sessions,
		matches:       cfg.Matches,
		snapshots:     cfg.Snapshots,
		journal:       cfg.Journal,
		notifications: cfg.Notifications,
		logger:        logger,
	}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"service":  "scoredesk",
		"sessions": h.sessions.Count(),
	})
}

// BoardEntry is one match on the board with the screen it routes to.
type BoardEntry struct {
	Match   matchscore.Match `json:"match"`
	Surface scoring.Surface  `json:"surface"`
	Path    string           `json:"path"`
}

// ListMatches returns the upcoming and live matches, each routed to the
// surface an admin would land on when opening it.
func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	board, err := h.matches.ListMatches(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"upcoming": boardEntries(board.Upcoming),
		"live":     boardEntries(board.Live),
	})
}

func boardEntries(matches []matchscore.Match) []BoardEntry {
	entries := make([]BoardEntry, 0, len(matches))
	for i := range matches {
		surface := scoring.SurfaceFor(&matches[i])
		entries = append(entries, BoardEntry{
			Match:   matches[i],
			Surface: surface,
			Path:    surface.Path(matches[i].ID),
		})
	}
	return entries
}

// GetCachedSnapshot returns the last cached snapshot of a match
func (h *Handler) GetCachedSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		respondError(w, http.StatusNotFound, "Snapshot cache not configured", nil)
		return
	}
	vars := mux.Vars(r)
	sport, err := matchscore.ParseSport(vars["sport"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid sport", err)
		return
	}

	snap, err := h.snapshots.LoadSnapshot(r.Context(), sport, vars["matchID"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// ListSessions returns a view of every open session
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	open := h.sessions.List()
	views := make([]scoring.View, 0, len(open))
	for _, s := range open {
		views = append(views, s.View())
	}
	respondJSON(w, http.StatusOK, views)
}

// OpenSession opens the edit view for a match. Reopening an already open
// match returns the existing session.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sport, err := matchscore.ParseSport(vars["sport"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid sport", err)
		return
	}

	s, created, err := h.sessions.Open(r.Context(), sport, vars["matchID"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, s.View())
}

// GetSession returns the current view of a session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.View())
}

// CloseSession stops polling and discards the session
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(mux.Vars(r)["matchID"]); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type battingTeamRequest struct {
	Team string `json:"team"`
}

// SelectBattingTeam chooses which cricket team is batting
func (h *Handler) SelectBattingTeam(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req battingTeamRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.SelectBattingTeam(r.Context(), req.Team); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.View())
}

type playerRequest struct {
	PlayerID string `json:"player_id"`
}

// SetPlayer selects the acting player
func (h *Handler) SetPlayer(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req playerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.SetPlayer(req.PlayerID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.View())
}

type actionRequest struct {
	Action string `json:"action"`
}

// SetAction selects the action; an empty action clears it
func (h *Handler) SetAction(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req actionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Action) == "" {
		s.ClearAction()
	} else if err := s.SetAction(scoring.Action(req.Action)); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.View())
}

type auxRequest struct {
	Field string      `json:"field"`
	Value interface{} `json:"value"`
}

// SetAuxiliary sets one auxiliary input; a null value clears it
func (h *Handler) SetAuxiliary(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req auxRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Field == "" {
		respondError(w, http.StatusBadRequest, "field is required", nil)
		return
	}

	field := scoring.Field(req.Field)
	if req.Value == nil {
		s.ClearAuxiliary(field)
	} else if err := s.SetAuxiliary(field, req.Value); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.View())
}

// Submit sends the current selection as a score update
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	result, err := s.Submit(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	response := map[string]interface{}{
		"action":  result.Action,
		"payload": result.Payload,
		"view":    s.View(),
	}
	if result.RefreshErr != nil {
		response["refresh_error"] = matchscore.UserMessage(result.RefreshErr)
	}
	respondJSON(w, http.StatusOK, response)
}

type startRequest struct {
	Toss *scoring.TossDecision `json:"toss,omitempty"`
}

// StartMatch takes an upcoming match live. Cricket needs a toss, either
// recorded earlier or carried in the body.
func (h *Handler) StartMatch(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req startRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}

	if err := s.StartMatch(r.Context(), req.Toss); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.View())
}

// CompleteMatch ends a live match
func (h *Handler) CompleteMatch(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := s.CompleteMatch(r.Context()); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.View())
}

// GetNotifications returns the recent messages shown for a match
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	notifications := []notify.Notification{}
	if h.notifications != nil {
		if recent := h.notifications.Recent(mux.Vars(r)["matchID"]); recent != nil {
			notifications = recent
		}
	}
	respondJSON(w, http.StatusOK, notifications)
}

// GetJournal returns the recorded score events and status transitions
func (h *Handler) GetJournal(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		respondError(w, http.StatusNotFound, "Journal not configured", nil)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = parsed
	}

	journal, err := h.journal.MatchJournal(r.Context(), mux.Vars(r)["matchID"], limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load journal", err)
		return
	}
	respondJSON(w, http.StatusOK, journal)
}

// session resolves the {matchID} route variable, writing the error response
// when no session is open.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*scoring.Session, bool) {
	s, err := h.sessions.Get(mux.Vars(r)["matchID"])
	if err != nil {
		respondServiceError(w, err)
		return nil, false
	}
	return s, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case scoring.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, scoring.ErrSubmissionInFlight),
		errors.Is(err, scoring.ErrTransitionInFlight),
		errors.Is(err, scoring.ErrMatchCompleted),
		errors.Is(err, scoring.ErrMatchNotLive),
		errors.Is(err, scoring.ErrIllegalTransition),
		errors.Is(err, session.ErrSportMismatch):
		return http.StatusConflict
	case errors.Is(err, scoring.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, scoring.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, matchscore.ErrNotFound),
		errors.Is(err, cache.ErrMiss):
		return http.StatusNotFound
	case errors.Is(err, matchscore.ErrServer),
		errors.Is(err, matchscore.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes err with the message an admin would see.
func respondServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	switch status {
	case http.StatusBadGateway, http.StatusNotFound:
		var apiErr *matchscore.APIError
		if errors.As(err, &apiErr) {
			message = matchscore.UserMessage(err)
		}
	case http.StatusInternalServerError:
		message = "Internal server error"
	}
	respondError(w, status, message, err)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	json.NewEncoder(w).Encode(response)
}
