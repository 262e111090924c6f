package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"gail/internal/agent"
	"gail/internal/certificate"
	"gail/internal/history"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type ConversationStore interface {
	ListConversations(ctx context.Context, principalID string, limit int) ([]history.Conversation, error)
	LoadConversation(ctx context.Context, conversationID, principalID string) (*history.Conversation, error)
}

type CertificateStore interface {
	List(ctx context.Context, principalID string, limit int) ([]certificate.Certificate, error)
	Search(ctx context.Context, principalID, query string, limit int) ([]certificate.SearchResult, error)
	Get(ctx context.Context, id, principalID string) (*certificate.Certificate, error)
}

type Option func(*Server)

func WithConversations(s ConversationStore) Option {
	return func(srv *Server) { srv.conversations = s }
}

func WithCertificates(s CertificateStore) Option {
	return func(srv *Server) { srv.certificates = s }
}

// WithKeepalive sets how often an idle chat stream gets a comment frame.
func WithKeepalive(d time.Duration) Option {
	return func(srv *Server) {
		if d > 0 {
			srv.keepalive = d
		}
	}
}

type Server struct {
	// runner is nil when no provider is configured; chat requests then fail
	// with 500 before a stream is opened.
	runner        agent.Runner
	tokens        map[string]string
	conversations ConversationStore
	certificates  CertificateStore
	runs          *runRegistry
	keepalive     time.Duration
	mux           *http.ServeMux
}

// NewServer serves the chat API. tokens maps bearer tokens to principal ids.
func NewServer(runner agent.Runner, tokens map[string]string, opts ...Option) *Server {
	s := &Server{
		runner:    runner,
		tokens:    tokens,
		runs:      newRunRegistry(),
		keepalive: keepaliveInterval,
		mux:       http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("POST /v1/chat", s.authed(s.handleChat))
	s.mux.Handle("GET /v1/conversations", s.authed(s.handleListConversations))
	s.mux.Handle("GET /v1/conversations/{id}", s.authed(s.handleGetConversation))
	s.mux.Handle("DELETE /v1/conversations/{id}/run", s.authed(s.handleCancelRun))
	s.mux.Handle("GET /v1/certificates", s.authed(s.handleListCertificates))
	s.mux.Handle("GET /v1/certificates/{id}", s.authed(s.handleGetCertificate))
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
}

func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.mux, "gateway",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.Pattern
		}),
	)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	// In-flight streams are cancelled when the server stops.
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("gateway listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("gateway shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
