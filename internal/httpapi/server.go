package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentworkforce/relaysheet/internal/callsheet"
	"github.com/agentworkforce/relaysheet/internal/config"
	"github.com/agentworkforce/relaysheet/internal/logger"
)

const (
	routeRoot    = "/"
	routeWebhook = "/v1/webhook"
	routeVoice   = "/v1/voice"
	routeEvents  = "/v1/events"
	routeHealth  = "/health"
	routeDash    = "/dashboard"

	correlationHeader = "X-Correlation-Id"
)

type ServerConfig struct {
	// Mode decides how the root route reads bodies.
	Mode             config.Mode
	SignatureHeader  string
	TimestampHeader  string
	SignatureSecret  string
	SignatureMaxSkew time.Duration
	MaxBodyBytes     int64
	RequestTimeout   time.Duration
	// EventsToken guards /v1/events and /dashboard; empty disables both.
	EventsToken string
	// EventOrigins are extra Origin host patterns allowed on the event feed.
	EventOrigins []string
	Logger       *zap.SugaredLogger
}

type Server struct {
	dispatcher *callsheet.Dispatcher
	hub        *callsheet.Hub
	cfg        ServerConfig
	log        *zap.SugaredLogger

	replayMu   sync.Mutex
	replaySeen map[string]time.Time
}

func NewServer(dispatcher *callsheet.Dispatcher, hub *callsheet.Hub) *Server {
	return NewServerWithConfig(dispatcher, hub, ServerConfig{})
}

func NewServerWithConfig(dispatcher *callsheet.Dispatcher, hub *callsheet.Hub, cfg ServerConfig) *Server {
	if cfg.Mode == "" {
		cfg.Mode = config.ModeStrict
	}
	if cfg.SignatureHeader == "" {
		cfg.SignatureHeader = config.DefaultSignatureHeader
	}
	if cfg.TimestampHeader == "" {
		cfg.TimestampHeader = config.DefaultTimestampHeader
	}
	if cfg.SignatureMaxSkew <= 0 {
		cfg.SignatureMaxSkew = config.DefaultSignatureMaxSkew
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = config.DefaultMaxBodyBytes
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = config.DefaultRequestTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.ComponentLogger("httpapi")
	}
	return &Server{
		dispatcher: dispatcher,
		hub:        hub,
		cfg:        cfg,
		log:        log,
		replaySeen: map[string]time.Time{},
	}
}

// requestLog collects what the access log line reports.
type requestLog struct {
	action string
	rule   string
	err    error
	// failed marks a backend error, as opposed to a rejected request.
	failed bool
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	correlationID := getCorrelationID(r)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	entry := &requestLog{}
	defer func() { s.logRequest(r, rec.status, correlationID, entry, started) }()

	s.setCORSHeaders(rec)
	rec.Header().Set(correlationHeader, correlationID)

	if r.Method == http.MethodOptions {
		rec.WriteHeader(http.StatusNoContent)
		return
	}

	switch r.URL.Path {
	case routeHealth:
		if r.Method != http.MethodGet {
			writeError(rec, http.StatusMethodNotAllowed, "Method not allowed", correlationID)
			return
		}
		writeJSON(rec, http.StatusOK, map[string]string{"status": "ok"})
		return
	case routeEvents:
		if r.Method != http.MethodGet {
			writeError(rec, http.StatusMethodNotAllowed, "Method not allowed", correlationID)
			return
		}
		s.handleEvents(rec, r, correlationID)
		return
	case routeDash:
		s.handleDashboard(rec, r, correlationID)
		return
	case routeRoot, routeWebhook, routeVoice:
	default:
		writeError(rec, http.StatusNotFound, "Not found", correlationID)
		return
	}

	voice := r.URL.Path == routeVoice || (r.URL.Path == routeRoot && s.cfg.Mode == config.ModeVoice)
	if r.Method != http.MethodPost {
		writeRejection(rec, voice, http.StatusMethodNotAllowed, "Method not allowed", correlationID)
		return
	}

	body, ok := s.readRequestBody(rec, r, voice, correlationID)
	if !ok {
		return
	}
	if s.cfg.SignatureSecret != "" {
		if authErr := s.verifyRequest(r, body); authErr != nil {
			entry.err = authErr
			writeRejection(rec, voice, authErr.status, authErr.message, correlationID)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()
	if voice {
		s.handleVoice(ctx, rec, r, body, entry)
		return
	}
	s.handleStrict(ctx, rec, body, correlationID, entry)
}

// verifyRequest checks the body signature and rejects a signature that was
// already accepted inside the replay window.
func (s *Server) verifyRequest(r *http.Request, body []byte) *authError {
	now := time.Now().UTC()
	timestamp := r.Header.Get(s.cfg.TimestampHeader)
	signature := r.Header.Get(s.cfg.SignatureHeader)
	if authErr := verifySignature(s.cfg.SignatureSecret, timestamp, signature, body, now, s.cfg.SignatureMaxSkew); authErr != nil {
		return authErr
	}
	if !s.markReplaySeen(timestamp, signature, now) {
		return &authError{status: http.StatusUnauthorized, message: "Replayed request"}
	}
	return nil
}

// handleStrict serves {"action", "data"} bodies with JSON results.
func (s *Server) handleStrict(ctx context.Context, w http.ResponseWriter, body []byte, correlationID string, entry *requestLog) {
	doc, err := decodeStrictEnvelope(body)
	if err != nil {
		entry.err = err
		if errors.Is(err, errInvalidJSON) {
			writeError(w, http.StatusBadRequest, "Invalid JSON body", correlationID)
			return
		}
		writeErrorDetails(w, http.StatusBadRequest, "Invalid request body", err.Error(), correlationID)
		return
	}
	action, _ := doc["action"].(string)
	data, _ := doc["data"].(map[string]any)
	entry.action = action

	req, err := callsheet.StrictRequest(action, callsheet.Payload(data))
	switch {
	case errors.Is(err, callsheet.ErrActionRequired):
		writeError(w, http.StatusBadRequest, "Action is required", correlationID)
		return
	case errors.Is(err, callsheet.ErrUnknownAction):
		writeError(w, http.StatusBadRequest, "Unknown action: "+strings.TrimSpace(action), correlationID)
		return
	case err != nil:
		entry.err = err
		writeError(w, http.StatusBadRequest, err.Error(), correlationID)
		return
	}
	entry.action = string(req.Action)
	entry.rule = req.Rule

	result, err := s.dispatcher.Handle(ctx, req)
	if err != nil {
		entry.err = err
		entry.failed = true
		writeErrorDetails(w, http.StatusInternalServerError, "Internal server error", err.Error(), correlationID)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleVoice serves loosely shaped bodies and always answers 200 with a
// sentence the voice agent can read out.
func (s *Server) handleVoice(ctx context.Context, w http.ResponseWriter, r *http.Request, body []byte, entry *requestLog) {
	doc, err := decodeVoiceEnvelope(body)
	if err != nil {
		entry.rule = callsheet.RuleFallback
		entry.err = err
		writeText(w, http.StatusOK, callsheet.Result{Outcome: callsheet.OutcomeAcknowledged}.Sentence())
		return
	}
	req := callsheet.InferRequest(doc, r.URL.Query().Get("action"))
	entry.action = string(req.Action)
	entry.rule = req.Rule

	result, err := s.dispatcher.Handle(ctx, req)
	if err != nil {
		entry.err = err
		entry.failed = true
		writeText(w, http.StatusOK, callsheet.ErrorSentence)
		return
	}
	writeText(w, http.StatusOK, result.Sentence())
}

func (s *Server) setCORSHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+s.cfg.SignatureHeader+", "+s.cfg.TimestampHeader)
}

func (s *Server) logRequest(r *http.Request, status int, correlationID string, entry *requestLog, started time.Time) {
	fields := []any{
		logger.FieldRequestID, correlationID,
		logger.FieldMethod, r.Method,
		logger.FieldRoute, r.URL.Path,
		logger.FieldRemote, clientKey(r),
		logger.FieldStatus, status,
		logger.FieldDurationMS, time.Since(started).Milliseconds(),
	}
	if entry.action != "" {
		fields = append(fields, logger.FieldAction, entry.action)
	}
	if entry.rule != "" {
		fields = append(fields, logger.FieldRule, entry.rule)
	}
	switch {
	case entry.failed:
		s.log.Errorw("request failed", append(fields, logger.FieldError, errString(entry.err))...)
	case entry.err != nil:
		s.log.Warnw("request rejected", append(fields, logger.FieldError, errString(entry.err))...)
	default:
		s.log.Infow("request handled", fields...)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func getCorrelationID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(correlationHeader))
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) readRequestBody(w http.ResponseWriter, r *http.Request, voice bool, correlationID string) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeRejection(w, voice, http.StatusRequestEntityTooLarge, "Request body exceeds configured limit", correlationID)
			return nil, false
		}
		writeRejection(w, voice, http.StatusBadRequest, "Failed to read request body", correlationID)
		return nil, false
	}
	return body, true
}

// writeRejection answers voice routes in plain text and strict routes with
// the JSON error shape.
func writeRejection(w http.ResponseWriter, voice bool, status int, message, correlationID string) {
	if voice {
		writeText(w, status, message)
		return
	}
	writeError(w, status, message, correlationID)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, correlationID string) {
	writeJSON(w, status, map[string]any{
		"error":         message,
		"correlationId": correlationID,
	})
}

func writeErrorDetails(w http.ResponseWriter, status int, message, details, correlationID string) {
	writeJSON(w, status, map[string]any{
		"error":         message,
		"details":       details,
		"correlationId": correlationID,
	})
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, text)
}

// statusRecorder remembers the status code for the access log. It passes
// Hijack through so the event feed can upgrade the connection.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
