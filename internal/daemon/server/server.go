// Package server exposes an editor session over HTTP on a unix socket.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/grovetools/editsync/errors"
	"github.com/grovetools/editsync/pkg/docsync"
	"github.com/grovetools/editsync/pkg/editorsync"
	"github.com/grovetools/editsync/pkg/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Session is the part of an editor session the daemon serves.
type Session interface {
	State() editorsync.Status
	Modules() []string
	SubscribeModules() (<-chan docsync.Update, func())
	Callbacks() []string
	CallCallback(id string) bool
	CallCallbackError(id, message string) bool
	ApplyOperations(ctx context.Context, batch models.OperationBatch) error
	RunCommand(ctx context.Context, command string) error
	SetVimExtensionEnabled(ctx context.Context, enabled bool) error
}

// Info describes the running daemon. It is served at /api/info.
type Info struct {
	PID       int       `json:"pid"`
	Root      string    `json:"root"`
	Runtime   string    `json:"runtime"`
	StartedAt time.Time `json:"started_at"`
}

// Server manages the daemon's HTTP server over a Unix socket.
type Server struct {
	logger  *logrus.Entry
	server  *http.Server
	session Session
	info    *Info
}

// New creates a new Server instance.
func New(logger *logrus.Entry) *Server {
	return &Server{logger: logger}
}

// SetSession sets the session served by the API.
func (s *Server) SetSession(sess Session) {
	s.session = sess
}

// SetInfo sets the daemon description.
func (s *Server) SetInfo(info *Info) {
	s.info = info
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /api/info", s.handleGetInfo)
	mux.HandleFunc("GET /api/state", s.withSession(s.handleGetState))
	mux.HandleFunc("GET /api/modules", s.withSession(s.handleGetModules))
	mux.HandleFunc("GET /api/stream", s.withSession(s.handleStreamModules))
	mux.HandleFunc("GET /api/callbacks", s.withSession(s.handleGetCallbacks))
	mux.HandleFunc("POST /api/callbacks/{id}/resolve", s.withSession(s.handleResolveCallback))
	mux.HandleFunc("POST /api/callbacks/{id}/reject", s.withSession(s.handleRejectCallback))
	mux.HandleFunc("POST /api/operations", s.withSession(s.handleApplyOperations))
	mux.HandleFunc("POST /api/commands", s.withSession(s.handleRunCommand))
	mux.HandleFunc("POST /api/extensions/vim", s.withSession(s.handleVimExtension))

	return mux
}

// ListenAndServe starts the daemon on the given unix socket path.
// It blocks until the server stops or fails.
func (s *Server) ListenAndServe(socketPath string) error {
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.server = &http.Server{
		Handler: h2c.NewHandler(s.Handler(), &http2.Server{}),
	}

	s.logger.WithField("socket", socketPath).Info("Daemon listening")
	return s.server.Serve(listener)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withSession(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.session == nil {
			http.Error(w, "session not initialized", http.StatusServiceUnavailable)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps session error codes to HTTP statuses.
func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeConcurrentApply, errors.ErrCodeMailboxFull:
		return http.StatusConflict
	case errors.ErrCodeInvalidOperation, errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeUnknownExtension:
		return http.StatusNotFound
	case errors.ErrCodeNotInitialized, errors.ErrCodeBootstrapFailed, errors.ErrCodeSessionDisposed:
		return http.StatusServiceUnavailable
	case errors.ErrCodeSurfaceFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError sends err as a SessionError body.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	sessionErr, ok := errors.As(err)
	if !ok {
		sessionErr = errors.Wrap(err, errors.ErrCodeInternal, err.Error())
	}
	status := statusFor(sessionErr.Code)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).Warn("Request failed")
	}
	writeJSON(w, status, sessionErr)
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body")
	}
	return nil
}

func (s *Server) handleGetInfo(w http.ResponseWriter, r *http.Request) {
	if s.info == nil {
		http.Error(w, "info not initialized", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.info)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleGetModules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"paths": s.session.Modules()})
}

func (s *Server) handleGetCallbacks(w http.ResponseWriter, r *http.Request) {
	ids := s.session.Callbacks()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"ids": ids})
}

func (s *Server) handleResolveCallback(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	fired := s.session.CallCallback(id)
	s.logger.WithFields(logrus.Fields{"id": id, "fired": fired}).Debug("Resolve callback")
	writeJSON(w, http.StatusOK, map[string]bool{"fired": fired})
}

func (s *Server) handleRejectCallback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	// An empty body rejects with the default message.
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
	}
	id := r.PathValue("id")
	fired := s.session.CallCallbackError(id, req.Message)
	s.logger.WithFields(logrus.Fields{"id": id, "fired": fired}).Debug("Reject callback")
	writeJSON(w, http.StatusOK, map[string]bool{"fired": fired})
}

func (s *Server) handleApplyOperations(w http.ResponseWriter, r *http.Request) {
	var batch models.OperationBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		if errors.GetCode(err) == "" {
			err = errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid operation batch")
		}
		s.writeError(w, err)
		return
	}
	if err := s.session.ApplyOperations(r.Context(), batch); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"applied": len(batch)})
}

func (s *Server) handleRunCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.session.RunCommand(r.Context(), req.Command); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"command": req.Command})
}

func (s *Server) handleVimExtension(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Enabled == nil {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "enabled is required"))
		return
	}
	if err := s.session.SetVimExtensionEnabled(r.Context(), *req.Enabled); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": *req.Enabled})
}

// handleStreamModules provides Server-Sent Events (SSE) for module path-set
// changes. The current path set is sent first as an "initial" update.
func (s *Server) handleStreamModules(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsubscribe := s.session.SubscribeModules()
	defer unsubscribe()

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()
	s.logger.Debug("SSE client connected")

	send := func(u StreamUpdate) bool {
		data, err := json.Marshal(u)
		if err != nil {
			s.logger.WithError(err).Error("Failed to marshal update")
			return true
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send(StreamUpdate{UpdateType: "initial", Paths: s.session.Modules()}) {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case update, ok := <-ch:
			if !ok {
				return
			}
			if !send(convertUpdate(update)) {
				return
			}
			if update.Type == docsync.UpdateDisposed {
				return
			}
		}
	}
}

// StreamUpdate is one SSE payload of /api/stream.
type StreamUpdate struct {
	UpdateType string   `json:"update_type"`
	Paths      []string `json:"paths,omitempty"`
	Added      []string `json:"added,omitempty"`
	Removed    []string `json:"removed,omitempty"`
	Changed    []string `json:"changed,omitempty"`
}

func convertUpdate(u docsync.Update) StreamUpdate {
	return StreamUpdate{
		UpdateType: string(u.Type),
		Paths:      u.Paths,
		Added:      u.Added,
		Removed:    u.Removed,
		Changed:    u.Changed,
	}
}
