package middleware

import (
	"net/http"
	"strings"

	"github.com/aldergrove/carecircle/internal/auth"
	"github.com/aldergrove/carecircle/internal/store"
)

// RequireAuth validates the bearer session token and populates the actor
// context. Sessions are provisioned by the identity provider; an unknown
// or expired token is simply unauthorized.
func RequireAuth(sessions *store.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			sess, err := sessions.GetByToken(token)
			if err != nil || sess == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ac := auth.ActorContext{
				UserID:    sess.UserID,
				SessionID: sess.ID,
			}
			stampActor(r.Context(), sess.UserID, sess.ID)
			ctx := auth.WithActor(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireDetectorToken gates the alert-ingest endpoint to the external
// detection process via a shared token header.
func RequireDetectorToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" || r.Header.Get("X-Detector-Token") != token {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireServiceToken gates provisioning endpoints to the identity
// provider via a shared token header.
func RequireServiceToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" || r.Header.Get("X-Service-Token") != token {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}
