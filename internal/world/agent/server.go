//go:build linux

/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */

// Package agent implements the World Agent: a small HTTP + WebSocket
// server that runs inside the Linux VM (macOS) or WSL distro (Windows)
// and exposes the same session/exec/fsdiff/policy operations as
// internal/world.Backend, over the wire, to the substrate shell running
// on the host. It is the counterpart to internal/world's remoteBackend
// and wraps the same Linux-native isolation core used directly on
// Linux hosts, so the isolation semantics are identical on every
// platform; only the transport differs.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/substrate-run/substrate/internal/world"
)

// Server adapts a world.Backend to an HTTP API. The backend is expected
// to be the Linux-native implementation (world.Select on a linux GOOS),
// since the agent always runs as a guest-side Linux process regardless
// of which host platform is driving it.
type Server struct {
	backend world.Backend
	logger  *zap.Logger

	mu       sync.Mutex
	handles  map[string]*world.Handle
}

// NewServer wraps backend for HTTP service. Pass nil for logger to use
// a no-op logger.
func NewServer(backend world.Backend, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		backend: backend,
		logger:  logger,
		handles: make(map[string]*world.Handle),
	}
}

// Handler returns the http.Handler to mount, e.g. on a unix socket or
// vsock listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("POST /sessions/{id}/exec", s.handleExec)
	mux.HandleFunc("GET /sessions/{id}/pty", s.handlePTY)
	mux.HandleFunc("GET /sessions/{id}/fsdiff", s.handleFsDiff)
	mux.HandleFunc("POST /sessions/{id}/policy", s.handlePolicy)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleClose)
	return mux
}

func (s *Server) handle(id string) (*world.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[id]
	return h, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var spec world.Spec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	handle, err := s.backend.EnsureSession(r.Context(), spec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.mu.Lock()
	s.handles[handle.ID] = handle
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, handle)
}

func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	handle, ok := s.handle(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("unknown session"))
		return
	}
	var req world.ExecRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Pty {
		writeError(w, http.StatusBadRequest, errors.New("pty requests must use the /pty websocket endpoint"))
		return
	}
	result, err := s.backend.Exec(r.Context(), handle, req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handlePTY upgrades to a WebSocket: the first text frame carries the
// ExecRequest, binary frames after that are stdin; the agent streams
// combined stdout/stderr back as binary frames and sends one final
// text frame with the exit code before closing.
func (s *Server) handlePTY(w http.ResponseWriter, r *http.Request) {
	handle, ok := s.handle(r.PathValue("id"))
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer c.Close(websocket.StatusInternalError, "")

	ctx := r.Context()
	msgType, data, err := c.Read(ctx)
	if err != nil || msgType != websocket.MessageText {
		c.Close(websocket.StatusPolicyViolation, "expected init frame")
		return
	}
	var req world.ExecRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.Close(websocket.StatusPolicyViolation, "malformed init frame")
		return
	}

	ptyExecer, ok := s.backend.(world.PTYExecer)
	if !ok {
		c.Close(websocket.StatusInternalError, "backend does not support pty execution")
		return
	}

	pr, pw := io.Pipe()
	go func() {
		for {
			mt, chunk, err := c.Read(ctx)
			if err != nil {
				pw.CloseWithError(err)
				return
			}
			if mt == websocket.MessageBinary {
				_, _ = pw.Write(chunk)
			}
		}
	}()

	exit, err := ptyExecer.ExecPTY(ctx, handle, req, pr, func(p []byte) {
		_ = c.Write(ctx, websocket.MessageBinary, p)
	})
	if err != nil {
		s.logger.Warn("pty exec failed", zap.Error(err))
		exit = -1
	}
	ctrl, _ := json.Marshal(map[string]int{"exit": exit})
	_ = c.Write(ctx, websocket.MessageText, ctrl)
	c.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) handleFsDiff(w http.ResponseWriter, r *http.Request) {
	handle, ok := s.handle(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("unknown session"))
		return
	}
	spanID := r.URL.Query().Get("span_id")
	diff, err := s.backend.FsDiff(r.Context(), handle, spanID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	handle, ok := s.handle(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("unknown session"))
		return
	}
	var spec world.Spec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.backend.ApplyPolicy(r.Context(), handle, spec); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	handle, ok := s.handle(id)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("unknown session"))
		return
	}
	err := s.backend.Close(r.Context(), handle)
	s.mu.Lock()
	delete(s.handles, id)
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListenAndServe runs the agent HTTP server with sane timeouts, on addr
// (typically a vsock or unix-socket listener set up by the caller via
// a net.Listener and http.Serve instead, in production; this helper
// covers the plain-TCP test/dev path).
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("world agent: serve: %w", err)
	}
}
