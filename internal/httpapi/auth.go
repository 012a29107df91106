package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

const signaturePrefix = "sha256="

type authError struct {
	status  int
	message string
}

func (e *authError) Error() string {
	return e.message
}

// verifySignature checks a hex HMAC-SHA256 over the timestamp header, a
// newline and the raw body. The signature may carry a "sha256=" prefix and
// the timestamp must be RFC3339 within maxSkew of now.
func verifySignature(secret, timestamp, signature string, body []byte, now time.Time, maxSkew time.Duration) *authError {
	signature = normalizeSignature(signature)
	if signature == "" {
		return &authError{status: http.StatusUnauthorized, message: "Missing signature"}
	}
	timestamp = strings.TrimSpace(timestamp)
	if timestamp == "" {
		return &authError{status: http.StatusUnauthorized, message: "Missing signature timestamp"}
	}
	ts, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return &authError{status: http.StatusUnauthorized, message: "Invalid signature timestamp"}
	}
	delta := now.Sub(ts)
	if delta < 0 {
		delta = -delta
	}
	if delta > maxSkew {
		return &authError{status: http.StatusUnauthorized, message: "Signature timestamp outside replay window"}
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return &authError{status: http.StatusUnauthorized, message: "Invalid signature"}
	}
	if !hmac.Equal(provided, SignBody(secret, timestamp, body)) {
		return &authError{status: http.StatusUnauthorized, message: "Signature mismatch"}
	}
	return nil
}

func normalizeSignature(signature string) string {
	signature = strings.TrimSpace(signature)
	if len(signature) >= len(signaturePrefix) && strings.EqualFold(signature[:len(signaturePrefix)], signaturePrefix) {
		signature = signature[len(signaturePrefix):]
	}
	return strings.ToLower(signature)
}

// SignBody returns the HMAC-SHA256 of timestamp, a newline and body under
// secret.
func SignBody(secret, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("\n"))
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

// markReplaySeen records a verified (timestamp, signature) pair and reports
// false when the pair was already seen inside the replay window.
func (s *Server) markReplaySeen(timestamp, signature string, now time.Time) bool {
	key := strings.ToLower(strings.TrimSpace(timestamp)) + "|" + normalizeSignature(signature)
	if key == "|" {
		return false
	}
	s.replayMu.Lock()
	defer s.replayMu.Unlock()
	for seenKey, expiresAt := range s.replaySeen {
		if !now.Before(expiresAt) {
			delete(s.replaySeen, seenKey)
		}
	}
	if expiresAt, exists := s.replaySeen[key]; exists && now.Before(expiresAt) {
		return false
	}
	// Twice the skew covers timestamps up to maxSkew in the future.
	s.replaySeen[key] = now.Add(2 * s.cfg.SignatureMaxSkew)
	return true
}

// authorizeEvents checks the event feed token, sent as a bearer token or,
// for browsers that cannot set headers on a websocket, the "token" query
// parameter.
func (s *Server) authorizeEvents(r *http.Request) *authError {
	token := ""
	if header := strings.TrimSpace(r.Header.Get("Authorization")); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		return &authError{status: http.StatusUnauthorized, message: "Missing event feed token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.EventsToken)) != 1 {
		return &authError{status: http.StatusUnauthorized, message: "Invalid event feed token"}
	}
	return nil
}
