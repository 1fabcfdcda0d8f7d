package handler

import (
	"context"
	"errors"
	"net/http"

	"fsanano/storefront/internal/model"
	"fsanano/storefront/internal/repository"
)

// UserIDHeader carries the caller's user id. It is set by the gateway in
// front of the API, which owns login and sessions.
const UserIDHeader = "X-User-ID"

type userKey struct{}

func withUser(ctx context.Context, u model.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

func userFrom(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(userKey{}).(model.User)
	return u, ok
}

// RequireUser resolves the caller from UserIDHeader.
func (h *ShopHandler) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(UserIDHeader)
		if raw == "" {
			writeFail(w, http.StatusUnauthorized, "not logged in")
			return
		}
		id, err := model.ParseID(raw)
		if err != nil {
			writeFail(w, http.StatusUnauthorized, "invalid user id")
			return
		}

		u, err := h.svc.User(r.Context(), id)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				writeFail(w, http.StatusUnauthorized, "unknown user")
				return
			}
			h.writeError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
	})
}

// RequireAdmin must run after RequireUser.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := userFrom(r.Context())
		if !ok || !u.IsAdmin() {
			writeFail(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
