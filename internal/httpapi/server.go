// Package httpapi implements the HTTP front door (spec component C11):
// GET /health, GET /health/llm, GET /metrics, and POST /chat, with
// admission control (sliding-window rate limiting, a bounded chat
// concurrency cap) and per-request JSONL logging.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ainoob2025/AICore/internal/logging"
	"github.com/ainoob2025/AICore/internal/metrics"
	"github.com/ainoob2025/AICore/internal/orchestrator"
	"github.com/ainoob2025/AICore/internal/ratelimit"
)

// MaxBodyBytes bounds request payload size (spec.md §6).
const MaxBodyBytes = 256 * 1024

// MaxMessageChars bounds the chat message field (spec.md §6).
const MaxMessageChars = 32000

// Server is the HTTP front door.
type Server struct {
	Orchestrator *orchestrator.Orchestrator
	Limiter      *ratelimit.Limiter
	Metrics      *metrics.Metrics
	Logger       *logging.Logger

	ChatConcurrency int
	GatewayLogPath  string

	httpServer *http.Server

	sem chan struct{}

	gwMu   sync.Mutex
	gwFile *os.File
}

// New constructs a Server. ChatConcurrency defaults to 4 (spec.md §6).
func New(orc *orchestrator.Orchestrator, limiter *ratelimit.Limiter, m *metrics.Metrics, logger *logging.Logger, chatConcurrency int, gatewayLogPath string) *Server {
	if chatConcurrency <= 0 {
		chatConcurrency = 4
	}
	return &Server{
		Orchestrator:    orc,
		Limiter:         limiter,
		Metrics:         m,
		Logger:          logger,
		ChatConcurrency: chatConcurrency,
		GatewayLogPath:  gatewayLogPath,
		sem:             make(chan struct{}, chatConcurrency),
	}
}

// Handler builds the root http.Handler with all routes wired. Any path or
// method not matched by a route above falls through to the catch-all
// handler, returning 404 {ok:false, error:"NOT_FOUND"} (spec.md §6).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/llm", s.handleHealthLLM)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("/", s.handleNotFound)
	return s.withMiddleware(mux)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, http.StatusNotFound, "NOT_FOUND", nil)
}

// ListenAndServe starts the HTTP server at addr and blocks until ctx is
// canceled, then gracefully shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// withMiddleware applies request-id assignment, panic recovery, rate
// limiting, and request logging to every route. Per spec.md §7's global
// contract, no uncaught exception crosses the HTTP boundary: a panic from
// deep inside a handler becomes 500 {ok:false, error:"GATEWAY_EXCEPTION"}
// as a last resort.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		w.Header().Set("X-Request-Id", reqID)

		extra := &chatLogExtra{}
		ctx := logging.WithRequestID(r.Context(), reqID)
		ctx = context.WithValue(ctx, chatLogExtraKey{}, extra)
		r = r.WithContext(ctx)

		defer func() {
			if rec := recover(); rec != nil {
				if s.Logger != nil {
					s.Logger.Error(r.Context(), "panic recovered in http handler", "recovered", fmt.Sprint(rec))
				}
				writeJSONError(w, http.StatusInternalServerError, "GATEWAY_EXCEPTION", map[string]any{"message": fmt.Sprint(rec)})
				s.logGateway(reqID, r, http.StatusInternalServerError, time.Since(start), extra)
			}
		}()

		remoteIP := clientIP(r)
		if s.Limiter != nil {
			decision := s.Limiter.Allow(remoteIP)
			if !decision.Allowed {
				if s.Metrics != nil {
					s.Metrics.RecordRateLimited()
				}
				w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfterS))
				writeJSON(w, http.StatusTooManyRequests, map[string]any{"ok": false, "error": "RATE_LIMITED", "retry_after_s": decision.RetryAfterS})
				s.logGateway(reqID, r, http.StatusTooManyRequests, time.Since(start), extra)
				return
			}
		}

		sw := &statusCapturingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		latencyMS := float64(time.Since(start).Microseconds()) / 1000.0
		if s.Metrics != nil {
			s.Metrics.RecordRequest(r.URL.Path, r.Method, sw.status, latencyMS)
		}
		s.logGateway(reqID, r, sw.status, time.Since(start), extra)
	})
}

// chatLogExtra carries /chat-specific fields (spec.md §6's optional
// session_id/plan_id/chat_total_ms request-log keys) from handleChat back
// up to the middleware's single logGateway call site.
type chatLogExtra struct {
	sessionID    string
	planID       string
	chatTotalMS  int64
	hasChatTotal bool
}

type chatLogExtraKey struct{}

type statusCapturingWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusCapturingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// logGateway appends one JSONL line per handled request, matching spec.md
// §6's request-log schema: {ts, request_id, remote, method, path, status,
// latency_ms, session_id?, plan_id?, chat_total_ms?}.
func (s *Server) logGateway(reqID string, r *http.Request, status int, dur time.Duration, extra *chatLogExtra) {
	if s.GatewayLogPath == "" {
		return
	}
	s.gwMu.Lock()
	defer s.gwMu.Unlock()

	if s.gwFile == nil {
		if err := os.MkdirAll(filepath.Dir(s.GatewayLogPath), 0o755); err != nil {
			return
		}
		f, err := os.OpenFile(s.GatewayLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return
		}
		s.gwFile = f
	}

	entry := map[string]any{
		"ts":         time.Now().UTC().Format(time.RFC3339Nano),
		"request_id": reqID,
		"remote":     clientIP(r),
		"method":     r.Method,
		"path":       r.URL.Path,
		"status":     status,
		"latency_ms": dur.Milliseconds(),
	}
	if extra != nil {
		if extra.sessionID != "" {
			entry["session_id"] = extra.sessionID
		}
		if extra.planID != "" {
			entry["plan_id"] = extra.planID
		}
		if extra.hasChatTotal {
			entry["chat_total_ms"] = extra.chatTotalMS
		}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	line = append(line, '\n')
	s.gwFile.Write(line)
}

// handleHealth is a fast liveness probe: 200 {ok:true} normally, 503
// {ok:false, error:"WARMUP_FAILED"} iff warmup completed with failure
// (spec.md §6).
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Orchestrator != nil && s.Orchestrator.LLM != nil {
		status := s.Orchestrator.LLM.Warmup()
		if status.Done && !status.OK {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "WARMUP_FAILED"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleHealthLLM is a deep check of LLM reachability: 200 if warmup has
// not failed, 503 {ok:false, error:"LLM_UNREACHABLE", details} otherwise
// (spec.md §6).
func (s *Server) handleHealthLLM(w http.ResponseWriter, r *http.Request) {
	if s.Orchestrator == nil || s.Orchestrator.LLM == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "LLM_UNREACHABLE"})
		return
	}
	status := s.Orchestrator.LLM.Warmup()
	details := map[string]any{
		"warmup_started": status.Started,
		"warmup_done":    status.Done,
		"warmup_ok":      status.OK,
		"warmup_ms":      status.MS,
		"warmup_error":   status.Error,
	}
	if status.Done && !status.OK {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "LLM_UNREACHABLE", "details": details})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "details": details})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.Metrics == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": "METRICS_NOT_CONFIGURED"})
		return
	}
	var warmup metrics.WarmupInfo
	if s.Orchestrator != nil && s.Orchestrator.LLM != nil {
		st := s.Orchestrator.LLM.Warmup()
		warmup = metrics.WarmupInfo{Started: st.Started, Done: st.Done, OK: st.OK, MS: st.MS, Error: st.Error}
	}
	writeJSON(w, http.StatusOK, s.Metrics.Snapshot(warmup))
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	PlanID    string `json:"plan_id"`
}

// handleChat implements the /chat contract (spec.md §4.1, §6): admission
// errors (BUSY, PAYLOAD_TOO_LARGE, INVALID_SCHEMA) are surfaced with their
// own HTTP status; a successfully admitted turn always responds 200 with
// the orchestrator's result verbatim, including turns where result.ok is
// false (e.g. a failed plan-elicitation call) — those are in-band
// diagnostic failures, not admission failures.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	default:
		if s.Metrics != nil {
			s.Metrics.RecordChatBusy()
		}
		writeJSONError(w, http.StatusServiceUnavailable, "BUSY", nil)
		return
	}

	if s.Metrics != nil {
		s.Metrics.ChatInflightInc()
		defer s.Metrics.ChatInflightDec()
	}

	body := io.LimitReader(r.Body, MaxBodyBytes+1)
	data, err := io.ReadAll(body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_SCHEMA", nil)
		return
	}
	if len(data) > MaxBodyBytes {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", map[string]any{"max_bytes": MaxBodyBytes})
		return
	}

	var req chatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_SCHEMA", nil)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSONError(w, http.StatusBadRequest, "INVALID_SCHEMA", nil)
		return
	}
	if len([]rune(req.Message)) > MaxMessageChars {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", map[string]any{"max_chars": MaxMessageChars})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "default"
	}

	ctx := logging.WithSessionID(r.Context(), sessionID)
	if req.PlanID != "" {
		ctx = logging.WithPlanID(ctx, req.PlanID)
	}

	if extra, ok := r.Context().Value(chatLogExtraKey{}).(*chatLogExtra); ok {
		extra.sessionID = sessionID
		extra.planID = req.PlanID
	}

	start := time.Now()
	result := s.Orchestrator.HandleChat(ctx, req.Message, sessionID, req.PlanID)
	chatTotalMS := time.Since(start).Milliseconds()
	if s.Metrics != nil {
		s.Metrics.RecordChatLatency(float64(chatTotalMS))
	}
	if extra, ok := r.Context().Value(chatLogExtraKey{}).(*chatLogExtra); ok {
		extra.chatTotalMS = chatTotalMS
		extra.hasChatTotal = true
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, kind string, details map[string]any) {
	body := map[string]any{"ok": false, "error": kind}
	if details != nil {
		body["details"] = details
	}
	writeJSON(w, status, body)
}
