package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/soyeahso/dialogs/internal/directory"
	"github.com/soyeahso/dialogs/internal/domain"
	"github.com/soyeahso/dialogs/internal/store"
)

// StatusNotifier receives session status changes made over HTTP so they
// reach subscribed viewers.
type StatusNotifier interface {
	SessionUpdate(sessionID string)
}

// WithNotifier sets the bus notified on PUT /session/{id}/status.
func WithNotifier(n StatusNotifier) ServerOption {
	return func(s *Server) {
		s.notify = n
	}
}

// registerRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("GET /messages", s.handleMessages)
	mux.HandleFunc("GET /sessions", s.handleSessions)
	mux.HandleFunc("GET /sessions-list", s.handleSessionsList)
	mux.HandleFunc("GET /sessions-details", s.handleSessionsDetails)
	mux.HandleFunc("GET /session/{id}", s.handleSession)
	mux.HandleFunc("PUT /session/{id}/status", s.handleSessionStatus)
	mux.HandleFunc("GET /chat_ids", s.handleChatIDs)

	mux.HandleFunc("POST /admin/sync", s.requireAdmin(s.handleAdminSync))
	mux.HandleFunc("GET /admin/sync-status", s.requireAdmin(s.handleAdminSyncStatus))
	mux.HandleFunc("POST /admin/reset-db", s.requireAdmin(s.handleAdminResetDB))

	mux.HandleFunc("/", handleNotFound)
}

// ensureFresh refreshes the directory snapshot before sanitizing. A
// failed refresh is already soft-handled by the resolver; anything that
// still surfaces here is logged and display falls back to internal names.
func (s *Server) ensureFresh(r *http.Request) {
	if err := s.resolver.EnsureFresh(r.Context()); err != nil {
		s.log.Warn().Err(err).Msg("directory refresh failed")
	}
}

// handleMessages returns one session's sanitized transcript, or, with no
// session_id, every recorded message grouped by chat id.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	s.ensureFresh(r)

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		msgs, err := s.store.AllMessages()
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		grouped := make(map[string][]directory.MessagePayload)
		for _, msg := range msgs {
			grouped[msg.ChatID] = append(grouped[msg.ChatID], s.resolver.SanitizeMessage(msg))
		}
		respondJSON(w, http.StatusOK, map[string]any{"messages": grouped})
		return
	}

	details, err := s.store.SessionDetails(sessionID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	msgs, err := s.store.MessagesBySession(sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	summary := s.resolver.SanitizeDetails(details)
	respondJSON(w, http.StatusOK, map[string]any{
		"session":      summary,
		"messages":     s.resolver.SanitizeMessages(msgs),
		"userMetadata": s.participantMetadata(summary),
	})
}

// participantMetadata maps each public display name in the session to its
// resolved identity. Internal names never appear, only display names.
func (s *Server) participantMetadata(summary directory.SessionSummary) map[string]domain.Identity {
	meta := make(map[string]domain.Identity, len(summary.Participants)+1)
	for _, p := range summary.Participants {
		meta[p.DisplayName] = p
	}
	if summary.Author.DisplayName != "" {
		meta[summary.Author.DisplayName] = summary.Author
	}
	return meta
}

// handleSessions returns the bare list of session ids, newest first.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ids := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		ids = append(ids, sess.ID)
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": ids})
}

// sessionRow is a session list entry with the author already resolved.
type sessionRow struct {
	ID        string               `json:"session_id"`
	Title     string               `json:"title"`
	Status    domain.SessionStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
	Author    domain.Identity      `json:"author"`
}

// handleSessionsList returns the raw session rows with sanitized authors.
func (s *Server) handleSessionsList(w http.ResponseWriter, r *http.Request) {
	s.ensureFresh(r)

	sessions, err := s.store.ListSessions()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rows := make([]sessionRow, 0, len(sessions))
	for _, sess := range sessions {
		rows = append(rows, sessionRow{
			ID:        sess.ID,
			Title:     sess.Title,
			Status:    sess.Status,
			CreatedAt: sess.CreatedAt,
			Author:    s.resolver.Resolve(directory.OperatorName(sess.Author)),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": rows})
}

// handleSessionsDetails returns enriched summaries for every session.
func (s *Server) handleSessionsDetails(w http.ResponseWriter, r *http.Request) {
	s.ensureFresh(r)

	details, err := s.store.AllSessionDetails()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	summaries := make([]directory.SessionSummary, 0, len(details))
	for _, d := range details {
		summaries = append(summaries, s.resolver.SanitizeDetails(d))
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": summaries})
}

// handleSession returns one session's summary plus its full transcript.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.ensureFresh(r)

	id := r.PathValue("id")
	details, err := s.store.SessionDetails(id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	msgs, err := s.store.MessagesBySession(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"session":  s.resolver.SanitizeDetails(details),
		"messages": s.resolver.SanitizeMessages(msgs),
	})
}

type statusRequest struct {
	Status string `json:"status"`
}

// handleSessionStatus updates a session's status and broadcasts
// session:update. Invalid statuses and transitions are rejected with no
// state change.
func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	next := domain.SessionStatus(req.Status)
	if !next.Valid() {
		respondError(w, http.StatusBadRequest, "invalid status: "+req.Status)
		return
	}

	sess, err := s.store.GetSession(id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if sess.Status != next && !sess.Status.CanTransitionTo(next) {
		respondError(w, http.StatusConflict, "cannot transition from "+string(sess.Status)+" to "+string(next))
		return
	}

	if err := s.store.UpdateSessionStatus(id, next); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.notify != nil {
		s.notify.SessionUpdate(id)
	}
	respondJSON(w, http.StatusOK, map[string]any{"session_id": id, "status": next})
}

// handleChatIDs returns the distinct chat ids that ever recorded a message.
func (s *Server) handleChatIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.UniqueChatIDs()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"chat_ids": ids})
}

// handleHealth reports component health. A failed database ping degrades
// the whole check to 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "ok",
		"version":   s.version,
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
		"viewers":   s.hub.Count(),
		"directory": map[string]any{"entries": s.resolver.EntryCount(), "last_refresh": s.resolver.LastRefresh()},
	}
	if s.channels != nil {
		body["channels"] = s.channels.Status()
	}

	if err := s.db.SQL().PingContext(r.Context()); err != nil {
		body["status"] = "degraded"
		body["error"] = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	respondJSON(w, http.StatusOK, body)
}

// handleAdminSync forces a directory sync run.
func (s *Server) handleAdminSync(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil {
		respondError(w, http.StatusServiceUnavailable, "sync not configured")
		return
	}
	status, err := s.sync.RunNow(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// handleAdminSyncStatus reports the last sync run.
func (s *Server) handleAdminSyncStatus(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil {
		respondError(w, http.StatusServiceUnavailable, "sync not configured")
		return
	}
	respondJSON(w, http.StatusOK, s.sync.Status())
}

// handleAdminResetDB purges every session and message.
func (s *Server) handleAdminResetDB(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Reset(); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Warn().Msg("database reset by admin request")
	respondJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "not found")
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
