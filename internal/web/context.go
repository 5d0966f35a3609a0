package web

import (
	"context"
	"net/http"

	"github.com/HOUCINE710/csv-fille-Processed/internal/core"
	"github.com/HOUCINE710/csv-fille-Processed/internal/logging"
	"github.com/HOUCINE710/csv-fille-Processed/internal/web/middleware"
)

// SessionCookie names the cookie holding the visitor's session ID.
const SessionCookie = "session_id"

// WithRequestMetadata adds IP and User-Agent to context for the run history.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClient(ctx, core.Client{
		IPAddress: middleware.ClientIP(r), // already rewritten by TrustedRealIP
		UserAgent: r.UserAgent(),
	})
}

// withSession resolves the session cookie, issuing a new ID when it is
// missing or expired, and stores the ID in the request context. The cookie
// is re-sent on every request so its expiry slides with the session's TTL.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var current string
		if c, err := r.Cookie(SessionCookie); err == nil {
			current = c.Value
		}

		id := s.service.Sessions().Resolve(current)
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    id,
			Path:     "/",
			MaxAge:   int(s.cfg.Session.TTL.Seconds()),
			HttpOnly: true,
			Secure:   s.cfg.Session.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})

		ctx := logging.ContextWithSession(r.Context(), id)
		ctx = WithRequestMetadata(ctx, r)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionID returns the ID stored by withSession.
func sessionID(r *http.Request) string {
	return logging.SessionFromContext(r.Context())
}
