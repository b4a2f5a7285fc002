package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ashfaaq98/stixkit/internal/batch"
	"github.com/Ashfaaq98/stixkit/internal/bus"
	"github.com/Ashfaaq98/stixkit/internal/stix"
)

// Validator is the subset of validate.Validator the server needs.
type Validator interface {
	ValidateBytes(data []byte) ([]string, error)
}

// Options controls the HTTP server behavior.
type Options struct {
	// Bind address, e.g. "127.0.0.1:8081"
	Bind string
	// Token for Authorization: Bearer <token> header. Empty disables auth.
	Token string
	// RPS is max requests per second (approximate). 0 disables rate limiting.
	RPS int
	// Burst is the token bucket size. If 0 and RPS>0, defaults to RPS.
	Burst int
	// MaxBodyBytes caps request body size; defaults to 10 MiB.
	MaxBodyBytes int64
	Pipeline     batch.Pipeline
	Validator    Validator
	Bus          bus.Bus
	Logger       *zap.Logger
}

// Server exposes the document pipeline over HTTP:
//
//	POST /v1/fix       returns the fixed document
//	POST /v1/validate  returns the validation error lines
//	GET  /healthz
type Server struct {
	srv     *http.Server
	opts    Options
	limiter *simpleLimiter
	logger  *zap.Logger
	started int32
}

// Headers set on POST /v1/fix responses; the body is the document itself.
const (
	HeaderRequestID = "X-Request-Id"
	HeaderRemapped  = "X-Stixkit-Remapped"
	HeaderChanged   = "X-Stixkit-Changed"
)

// ValidateResponse is the body of POST /v1/validate.
type ValidateResponse struct {
	RequestID string   `json:"request_id"`
	Valid     bool     `json:"valid"`
	Errors    []string `json:"errors,omitempty"`
}

type errorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
}

// NewServer constructs the HTTP server. Validator may be nil, in which case
// /v1/validate answers 404.
func NewServer(opts Options) *Server {
	if opts.Bind == "" {
		opts.Bind = "127.0.0.1:8081"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 * 1024 * 1024
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Bus == nil {
		opts.Bus = bus.NewNullBus(opts.Logger)
	}
	var lim *simpleLimiter
	if opts.RPS > 0 {
		if opts.Burst <= 0 {
			opts.Burst = opts.RPS
		}
		lim = newSimpleLimiter(opts.RPS, opts.Burst)
	}
	s := &Server{
		opts:    opts,
		limiter: lim,
		logger:  opts.Logger.With(zap.String("component", "api")),
	}
	s.srv = &http.Server{
		Addr:         opts.Bind,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler, wrapped with auth and rate limiting.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/v1/fix", s.guard(http.HandlerFunc(s.handleFix)))
	if s.opts.Validator != nil {
		mux.Handle("/v1/validate", s.guard(http.HandlerFunc(s.handleValidate)))
	}
	return mux
}

// Start binds synchronously, serves in the background and shuts down when
// ctx is done. The returned address is the one actually bound.
func (s *Server) Start(ctx context.Context) (string, error) {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return "", errors.New("api server already started")
	}
	ln, err := net.Listen("tcp", s.opts.Bind)
	if err != nil {
		return "", fmt.Errorf("listen on %s: %w", s.opts.Bind, err)
	}
	addr := ln.Addr().String()
	s.logger.Info("listening",
		zap.String("addr", "http://"+addr),
		zap.Int("rps", s.opts.RPS),
		zap.Int("burst", s.opts.Burst),
		zap.Bool("auth", s.opts.Token != ""))

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("graceful shutdown failed", zap.Error(err))
		}
		s.limiter.Close()
	}()
	return addr, nil
}

func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, "", http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if s.opts.Token != "" {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")) != s.opts.Token {
				w.Header().Set("WWW-Authenticate", `Bearer realm="stixkit"`)
				writeError(w, "", http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		if err := s.limiter.Wait(r.Context()); err != nil {
			writeError(w, "", http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request, reqID string) ([]byte, bool) {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, reqID, http.StatusRequestEntityTooLarge, "body too large")
			return nil, false
		}
		writeError(w, reqID, http.StatusBadRequest, "failed to read body")
		return nil, false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, reqID, http.StatusBadRequest, "empty body")
		return nil, false
	}
	return body, true
}

func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := uuid.NewString()
	body, ok := s.readBody(w, r, reqID)
	if !ok {
		return
	}

	out, res, err := s.opts.Pipeline.Process(body)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if !json.Valid(body) || errors.Is(err, stix.ErrNotObject) {
			status = http.StatusBadRequest
		}
		s.logger.Info("fix rejected", zap.String("request_id", reqID), zap.Error(err))
		s.publish(r.Context(), reqID, "failed", res, err)
		writeError(w, reqID, status, err.Error())
		return
	}

	status := "unchanged"
	if res.Changed {
		status = "fixed"
	}
	s.publish(r.Context(), reqID, status, res, nil)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(HeaderRequestID, reqID)
	w.Header().Set(HeaderRemapped, fmt.Sprint(res.Remapped))
	w.Header().Set(HeaderChanged, fmt.Sprint(res.Changed))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)

	s.logger.Debug("fixed",
		zap.String("request_id", reqID),
		zap.Int("bytes", len(body)),
		zap.Int("objects", res.Objects),
		zap.Int("remapped", res.Remapped),
		zap.String("remote", remoteIP(r.RemoteAddr)),
		zap.Duration("dur", time.Since(start)))
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()
	body, ok := s.readBody(w, r, reqID)
	if !ok {
		return
	}

	lines, err := s.opts.Validator.ValidateBytes(body)
	if err != nil {
		writeError(w, reqID, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ValidateResponse{
		RequestID: reqID,
		Valid:     len(lines) == 0,
		Errors:    lines,
	})
}

func (s *Server) publish(ctx context.Context, reqID, status string, res batch.Result, err error) {
	msg := bus.DocumentMessage{
		Command:  "serve",
		Path:     reqID,
		Status:   status,
		Objects:  res.Objects,
		Remapped: res.Remapped,
	}
	if err != nil {
		msg.Error = err.Error()
	}
	if perr := s.opts.Bus.PublishDocument(ctx, msg); perr != nil {
		s.logger.Warn("failed to publish notification", zap.Error(perr))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, reqID string, status int, msg string) {
	writeJSON(w, status, errorResponse{RequestID: reqID, Error: msg})
}

// remoteIP extracts ip from host:port
func remoteIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
