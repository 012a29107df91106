package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/agentworkforce/relaysheet/internal/callsheet"
	"github.com/agentworkforce/relaysheet/internal/logger"
)

const (
	eventBuffer       = 64
	eventWriteTimeout = 5 * time.Second
)

// handleEvents streams recorded call events over a websocket. The optional
// "type" query parameter is a comma separated list of event types to keep.
// Browsers may only connect from the server's own host or a configured
// origin pattern.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, correlationID string) {
	if !s.checkEventsAccess(w, r, correlationID) {
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.cfg.EventOrigins})
	if err != nil {
		s.log.Warnw("event feed upgrade failed", logger.FieldRequestID, correlationID, logger.FieldError, err.Error())
		return
	}
	defer conn.CloseNow()

	wanted := parseEventTypes(r.URL.Query().Get("type"))
	events, cancel := s.hub.Subscribe(eventBuffer)
	defer cancel()

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "feed closed")
				return
			}
			if len(wanted) > 0 && !wanted[event.Type] {
				continue
			}
			if err := writeEvent(ctx, conn, event); err != nil {
				return
			}
		}
	}
}

// checkEventsAccess writes the rejection and returns false when the feed is
// off or the request carries no valid feed token.
func (s *Server) checkEventsAccess(w http.ResponseWriter, r *http.Request, correlationID string) bool {
	if s.hub == nil || s.cfg.EventsToken == "" {
		writeError(w, http.StatusServiceUnavailable, "Event feed is disabled", correlationID)
		return false
	}
	if authErr := s.authorizeEvents(r); authErr != nil {
		writeError(w, authErr.status, authErr.message, correlationID)
		return false
	}
	return true
}

func writeEvent(ctx context.Context, conn *websocket.Conn, event callsheet.Event) error {
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, event)
}

func parseEventTypes(raw string) map[string]bool {
	wanted := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			wanted[part] = true
		}
	}
	return wanted
}
