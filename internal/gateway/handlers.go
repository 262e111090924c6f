package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"gail/internal/agent"
	"gail/internal/certificate"
	"gail/internal/history"
	"gail/internal/llm"

	"github.com/google/uuid"
)

const maxBodyBytes = 4 << 20

type chatRequest struct {
	Messages       []llm.Message `json:"messages"`
	ConversationID string        `json:"conversationId"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusInternalServerError, "LLM provider not configured")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validateChat(req.Messages); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	principal := agent.PrincipalFromContext(r.Context())
	ctx, done := s.runs.start(r.Context(), principal, req.ConversationID)
	defer done()

	w.Header().Set("X-Conversation-Id", req.ConversationID)
	sse := NewSSEWriter(w)

	kaCtx, stopKeepalive := context.WithCancel(ctx)
	kaDone := make(chan struct{})
	go func() {
		defer close(kaDone)
		sse.keepalive(kaCtx, s.keepalive)
	}()
	defer func() {
		stopKeepalive()
		<-kaDone
	}()

	var terminal bool

	err := s.runner.Run(ctx, agent.Request{
		ConversationID: req.ConversationID,
		PrincipalID:    principal,
		Messages:       req.Messages,
	}, func(ev agent.Event) {
		if ev.Type == agent.EventDone || ev.Type == agent.EventError {
			terminal = true
		}
		if err := sse.Send(ev); err != nil {
			slog.Debug("sse write failed", "conversation_id", req.ConversationID, "error", err)
		}
	})

	if err != nil && !terminal {
		sse.Send(agent.Event{Type: agent.EventError, Error: err.Error()})
	}
}

func validateChat(messages []llm.Message) error {
	if len(messages) == 0 {
		return errors.New("messages must not be empty")
	}
	if last := messages[len(messages)-1]; last.Role != llm.RoleUser {
		return errors.New("last message must be from the user")
	}
	return llm.Validate(messages)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	if s.conversations == nil {
		writeError(w, http.StatusNotFound, "conversation history not enabled")
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	convs, err := s.conversations.ListConversations(r.Context(), agent.PrincipalFromContext(r.Context()), limit)
	if err != nil {
		slog.Error("listing conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "listing conversations failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	if s.conversations == nil {
		writeError(w, http.StatusNotFound, "conversation history not enabled")
		return
	}
	conv, err := s.conversations.LoadConversation(r.Context(), r.PathValue("id"), agent.PrincipalFromContext(r.Context()))
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		slog.Error("loading conversation", "conversation_id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "loading conversation failed")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.runs.cancel(agent.PrincipalFromContext(r.Context()), id) {
		writeError(w, http.StatusNotFound, "no run in progress")
		return
	}
	slog.Info("run cancelled", "conversation_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCertificates(w http.ResponseWriter, r *http.Request) {
	if s.certificates == nil {
		writeError(w, http.StatusNotFound, "certificates not enabled")
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	principal := agent.PrincipalFromContext(r.Context())

	if q := r.URL.Query().Get("q"); q != "" {
		results, err := s.certificates.Search(r.Context(), principal, q, limit)
		if err != nil {
			slog.Error("searching certificates", "error", err)
			writeError(w, http.StatusInternalServerError, "searching certificates failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
		return
	}

	certs, err := s.certificates.List(r.Context(), principal, limit)
	if err != nil {
		slog.Error("listing certificates", "error", err)
		writeError(w, http.StatusInternalServerError, "listing certificates failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"certificates": certs})
}

func (s *Server) handleGetCertificate(w http.ResponseWriter, r *http.Request) {
	if s.certificates == nil {
		writeError(w, http.StatusNotFound, "certificates not enabled")
		return
	}
	cert, err := s.certificates.Get(r.Context(), r.PathValue("id"), agent.PrincipalFromContext(r.Context()))
	if errors.Is(err, certificate.ErrNotFound) {
		writeError(w, http.StatusNotFound, "certificate not found")
		return
	}
	if err != nil {
		slog.Error("loading certificate", "certificate_id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "loading certificate failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"certificate": cert,
		"document":    cert.Document,
		"mime_type":   certificate.MimeType,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"active_runs": s.runs.active(),
	})
}

func queryLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > 200 {
		return 0, fmt.Errorf("invalid limit %q", v)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
