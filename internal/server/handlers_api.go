package server

import (
	"net/http"

	"github.com/truthinlistings/dashboard/internal/apiclient"
	"github.com/truthinlistings/dashboard/internal/logging"
)

// handleSessionSnapshot godoc
// @Summary Current view state
// @Description Returns the active view of the caller's dashboard session. A session is created when the cookie is missing.
// @Tags session
// @Produce json
// @Success 200 {object} session.Snapshot
// @Router /api/session [get]
func (s *Server) handleSessionSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session(w, r).Snapshot())
}

// handleSessionWS godoc
// @Summary View state stream
// @Description Upgrades to a WebSocket that sends the session snapshot on connect and after every state change.
// @Tags session
// @Success 101 {object} session.Snapshot
// @Router /ws/session [get]
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sess, cookie := s.lookupSession(r)
	var header http.Header
	if cookie != nil {
		header = http.Header{"Set-Cookie": {cookie.String()}}
	}

	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Err(err))
		return
	}
	defer conn.Close()

	updates, cancel := sess.Subscribe()
	defer cancel()

	// The client never sends anything; reading only notices it leaving.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(sess.Snapshot()); err != nil {
		return
	}
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				// Session expired.
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				s.logger.Debug("websocket client went away", logging.Err(err))
				return
			}
		case <-gone:
			return
		}
	}
}

// handleHealthz godoc
// @Summary Dashboard liveness
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /healthz [get]
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Sessions:   s.app.Sessions.Len(),
		APIBaseURL: s.app.Backend.BaseURL(),
	})
}

// handleBackendHealth godoc
// @Summary Fraud API health
// @Description Proxies GET /health of the fraud API.
// @Tags health
// @Produce json
// @Success 200 {object} apiclient.HealthReport
// @Failure 502 {object} ErrorResponse
// @Router /backend/health [get]
func (s *Server) handleBackendHealth(w http.ResponseWriter, r *http.Request) {
	rep, err := s.app.Backend.DetailedHealth(s.backendContext(r))
	if err != nil {
		s.logger.Warn("backend health check failed", logging.Err(err))
		writeError(w, http.StatusBadGateway, apiclient.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
