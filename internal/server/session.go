package server

import (
	"context"
	"net/http"

	"github.com/truthinlistings/dashboard/internal/apiclient"
	"github.com/truthinlistings/dashboard/internal/session"
)

// SessionCookie carries the dashboard session id.
const SessionCookie = "til_session"

// lookupSession resolves the request's session, creating one when the
// cookie is missing or expired. The cookie is non-nil only for a new
// session and must be sent back.
func (s *Server) lookupSession(r *http.Request) (*session.Session, *http.Cookie) {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	sess, created := s.app.Sessions.GetOrCreate(id)
	if !created {
		return sess, nil
	}
	return sess, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.app.Config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// session is lookupSession for handlers that answer through w.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	sess, cookie := s.lookupSession(r)
	if cookie != nil {
		http.SetCookie(w, cookie)
	}
	return sess
}

// backendContext is the context for fraud API calls made on behalf of r.
// With credentials enabled, the browser's own cookies travel along; the
// dashboard's session cookie never does.
func (s *Server) backendContext(r *http.Request) context.Context {
	ctx := r.Context()
	if !s.app.Config.WithCredentials {
		return ctx
	}
	var forward []*http.Cookie
	for _, c := range r.Cookies() {
		if c.Name != SessionCookie {
			forward = append(forward, c)
		}
	}
	if len(forward) == 0 {
		return ctx
	}
	return apiclient.WithForwardedCookies(ctx, forward)
}
