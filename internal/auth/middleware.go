package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const SessionCookie = "cart_session"

type Identity struct {
	AccountID    string // empty for anonymous visitors
	Role         string
	SessionToken string
}

func (id Identity) Authenticated() bool { return id.AccountID != "" }
func (id Identity) Staff() bool         { return id.Role == RoleStaff }

type ctxKey struct{}

func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(ctxKey{}).(Identity)
	return id
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Middleware attaches an Identity to every request. A bearer token that
// fails to verify is rejected with 401 rather than downgraded to anonymous.
// Every caller gets a session cookie so an anonymous cart can follow them.
func Middleware(tokens *Tokens, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id Identity

			if h := r.Header.Get("Authorization"); h != "" {
				raw, ok := strings.CutPrefix(h, "Bearer ")
				if !ok {
					http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
					return
				}
				claims, err := tokens.Parse(raw)
				if err != nil {
					log.Debug("rejected token", "err", err)
					http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
					return
				}
				id.AccountID = claims.Subject
				id.Role = claims.Role
			}

			if c, err := r.Cookie(SessionCookie); err == nil && uuid.Validate(c.Value) == nil {
				id.SessionToken = c.Value
			} else {
				id.SessionToken = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    id.SessionToken,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireAccount answers 401 for anonymous callers.
func RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !FromContext(r.Context()).Authenticated() {
			http.Error(w, `{"error":"login required"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireStaff answers 403 for callers without the staff role.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := FromContext(r.Context())
		if !id.Authenticated() {
			http.Error(w, `{"error":"login required"}`, http.StatusUnauthorized)
			return
		}
		if !id.Staff() {
			http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
