package api

import (
	"context"
	"net/http"
	"strings"

	respond "github.com/dropspot/dropspot/internal/api/respond"
	"github.com/dropspot/dropspot/internal/session"
)

type contextKey string

const memberIDKey contextKey = "memberID"

// SessionMiddleware resolves the Bearer token into a member id and stores it
// on the request context. Requests without a live session get 401.
func SessionMiddleware(sessions session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				respond.WriteUnauthorized(w, "missing bearer token")
				return
			}
			memberID, ok, err := sessions.MemberID(r.Context(), token)
			if err != nil {
				respond.WriteInternalError(w, "session lookup failed")
				return
			}
			if !ok {
				respond.WriteUnauthorized(w, "session expired or unknown")
				return
			}
			ctx := context.WithValue(r.Context(), memberIDKey, memberID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// requesterID returns the member id set by SessionMiddleware.
func requesterID(r *http.Request) string {
	id, _ := r.Context().Value(memberIDKey).(string)
	return id
}
