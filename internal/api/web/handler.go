// Package web exposes the game service as a JSON HTTP API.
package web

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/splitpoint/ultimatum/internal/game/domain"
	"github.com/splitpoint/ultimatum/internal/game/service"
	"github.com/splitpoint/ultimatum/internal/leaderboard"
	apperr "github.com/splitpoint/ultimatum/internal/platform/errors"
	"github.com/splitpoint/ultimatum/internal/platform/pagination"
)

// Handler serves the HTTP API over a game service.
type Handler struct {
	svc *service.Service
}

// NewHandler creates an API handler for the given service.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Routes returns a mux with every API route registered.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", h.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.handleGetSession)
	mux.HandleFunc("PATCH /api/sessions/{id}", h.handleRenameSession)
	mux.HandleFunc("POST /api/sessions/{id}/proposal", h.handleProposal)
	mux.HandleFunc("POST /api/sessions/{id}/decision", h.handleDecision)
	mux.HandleFunc("POST /api/sessions/{id}/counterpart", h.handleCounterpartTurn)
	mux.HandleFunc("GET /api/leaderboard", h.handleLeaderboard)
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	return mux
}

type createSessionRequest struct {
	PlayerName string `json:"player_name"`
}

type renameSessionRequest struct {
	PlayerName string `json:"player_name"`
}

type proposalRequest struct {
	Actor   string `json:"actor"`
	Points  int    `json:"points"`
	Message string `json:"message"`
}

type decisionRequest struct {
	Actor   string `json:"actor"`
	Accept  bool   `json:"accept"`
	Message string `json:"message"`
}

type eventView struct {
	Round     int       `json:"round"`
	Actor     string    `json:"actor"`
	Role      string    `json:"role"`
	Proposal  *int      `json:"proposal,omitempty"`
	Decision  *bool     `json:"decision,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionView struct {
	ID              string      `json:"id"`
	PlayerName      string      `json:"player_name,omitempty"`
	CurrentRound    int         `json:"current_round"`
	TotalRounds     int         `json:"total_rounds"`
	HumanScore      int         `json:"human_score"`
	AIScore         int         `json:"ai_score"`
	Phase           string      `json:"phase"`
	NextActor       string      `json:"next_actor,omitempty"`
	PendingProposal *int        `json:"pending_proposal,omitempty"`
	GameOver        bool        `json:"game_over"`
	Winner          string      `json:"winner,omitempty"`
	NamePrompt      bool        `json:"name_prompt"`
	Events          []eventView `json:"events"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
}

type entryView struct {
	Rank       int       `json:"rank"`
	PlayerName string    `json:"player_name"`
	HumanScore int       `json:"human_score"`
	AIScore    int       `json:"ai_score"`
	Difference int       `json:"difference"`
	CreatedAt  time.Time `json:"created_at"`
}

type leaderboardView struct {
	Entries    []entryView `json:"entries"`
	Page       int         `json:"page"`
	TotalPages int         `json:"total_pages"`
}

type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Session *sessionView      `json:"session,omitempty"`
}

func sessionToView(session domain.Session) sessionView {
	view := sessionView{
		ID:           session.ID,
		PlayerName:   session.PlayerName,
		CurrentRound: session.CurrentRound,
		TotalRounds:  domain.TotalRounds,
		HumanScore:   session.HumanScore,
		AIScore:      session.AIScore,
		Phase:        string(session.Phase()),
		GameOver:     session.GameOver,
		Winner:       string(session.Winner),
		Events:       make([]eventView, 0, len(session.Ledger)),
		CreatedAt:    session.CreatedAt,
		UpdatedAt:    session.UpdatedAt,
		CompletedAt:  session.CompletedAt,
	}
	if actor, ok := session.ExpectedActor(); ok {
		view.NextActor = string(actor)
	}
	if pending, ok := session.PendingProposal(); ok {
		view.PendingProposal = &pending
	}
	if session.GameOver && session.Winner == domain.WinnerHuman {
		view.NamePrompt = domain.BigWin(session.HumanScore, session.AIScore)
	}
	for _, ev := range session.Ledger {
		view.Events = append(view.Events, eventView{
			Round:     ev.RoundNum,
			Actor:     string(ev.Actor),
			Role:      string(ev.Role),
			Proposal:  ev.Proposal,
			Decision:  ev.Decision,
			Message:   ev.Message,
			CreatedAt: ev.CreatedAt,
		})
	}
	return view
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	session, err := h.svc.CreateSession(r.Context(), domain.CreateSessionInput{PlayerName: req.PlayerName})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionToView(session))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToView(session))
}

func (h *Handler) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	var req renameSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	session, err := h.svc.RenameSession(r.Context(), r.PathValue("id"), req.PlayerName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToView(session))
}

func (h *Handler) handleProposal(w http.ResponseWriter, r *http.Request) {
	var req proposalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	actor := domain.Actor(req.Actor)
	if !actor.IsValid() {
		writeError(w, apperr.New(apperr.CodeInvalidRole, "unknown actor"))
		return
	}
	session, err := h.svc.SubmitProposal(r.Context(), r.PathValue("id"), actor, req.Points, req.Message)
	if err != nil {
		writeTurnError(w, err, session)
		return
	}
	writeJSON(w, http.StatusOK, sessionToView(session))
}

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	actor := domain.Actor(req.Actor)
	if !actor.IsValid() {
		writeError(w, apperr.New(apperr.CodeInvalidRole, "unknown actor"))
		return
	}
	session, _, err := h.svc.SubmitDecision(r.Context(), r.PathValue("id"), actor, req.Accept, req.Message)
	if err != nil {
		writeTurnError(w, err, session)
		return
	}
	writeJSON(w, http.StatusOK, sessionToView(session))
}

func (h *Handler) handleCounterpartTurn(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.RunAutomatedTurn(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToView(session))
}

func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := service.LeaderboardQuery{
		SortBy: params.Get("sort_by"),
		Filter: params.Get("filter"),
	}
	var err error
	if query.Page, err = parseIntParam(params.Get("page"), "page"); err != nil {
		writeError(w, err)
		return
	}
	if query.PageSize, err = parseIntParam(params.Get("page_size"), "page_size"); err != nil {
		writeError(w, err)
		return
	}

	page, err := h.svc.Leaderboard(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leaderboardToView(page, query))
}

func leaderboardToView(page leaderboard.Page, query service.LeaderboardQuery) leaderboardView {
	// Rank numbering must use the same clamped values as the store offset.
	pageNum := pagination.ClampPage(query.Page)
	pageSize := pagination.ClampPageSize(query.PageSize, pagination.PageSizeConfig{
		Default: service.DefaultPageSize,
		Max:     service.MaxPageSize,
	})
	view := leaderboardView{
		Entries:    make([]entryView, 0, len(page.Entries)),
		Page:       pageNum,
		TotalPages: page.TotalPages,
	}
	base := (pageNum - 1) * pageSize
	for i, entry := range page.Entries {
		view.Entries = append(view.Entries, entryView{
			Rank:       base + i + 1,
			PlayerName: entry.PlayerName,
			HumanScore: entry.HumanScore,
			AIScore:    entry.AIScore,
			Difference: entry.Difference(),
			CreatedAt:  entry.CreatedAt,
		})
	}
	return view
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseIntParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, apperr.WithMetadata(apperr.CodeInvalidPage, "invalid integer parameter", map[string]string{
			"param": name,
			"value": raw,
		})
	}
	return value, nil
}

func decodeBody(r *http.Request, target any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return apperr.Wrap(apperr.CodeUnknown, "invalid request body", err)
	}
	return nil
}

// writeTurnError serves a turn failure. Replayed events conflict without
// changing anything, so the 409 carries the session as it stands.
func writeTurnError(w http.ResponseWriter, err error, session domain.Session) {
	var domainErr *apperr.Error
	if errors.As(err, &domainErr) && domainErr.Code == apperr.CodeDuplicateEvent && session.ID != "" {
		view := sessionToView(session)
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:   string(domainErr.Code),
			Message: domainErr.Message,
			Details: domainErr.Metadata,
			Session: &view,
		})
		return
	}
	writeError(w, err)
}

func writeError(w http.ResponseWriter, err error) {
	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		status := domainErr.Code.HTTPStatus()
		// Malformed bodies are client errors, not server faults.
		if domainErr.Code == apperr.CodeUnknown && domainErr.Cause != nil {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse{
			Error:   string(domainErr.Code),
			Message: domainErr.Message,
			Details: domainErr.Metadata,
		})
		return
	}
	log.Printf("internal error: %v", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:   string(apperr.CodeUnknown),
		Message: "internal error",
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(payload)
}
