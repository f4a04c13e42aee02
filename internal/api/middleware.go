// Package api implements the Hippo REST API using chi.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ohinlabs/hippo/internal/apperr"
	"github.com/ohinlabs/hippo/internal/docstore"
)

// AuthView is the caller identity resolved by the auth middleware: the
// application the request may act on and whether it may mutate it.
type AuthView struct {
	AppID     string
	Writeable bool
}

type ctxKey int

const viewKey ctxKey = iota

// viewFrom returns the AuthView stored by the middleware.
func viewFrom(ctx context.Context) AuthView {
	view, _ := ctx.Value(viewKey).(AuthView)
	return view
}

// AuthMiddleware returns middleware that authenticates requests with HTTP
// Basic credentials: the username is an application id, the password a token
// id. The token must reference that application. When enabled is false the
// client-asserted application id is trusted with full access; that mode is
// for local development only.
func AuthMiddleware(store *docstore.Store, enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			appID, tokenID, _ := r.BasicAuth()

			if !enabled {
				ctx := context.WithValue(r.Context(), viewKey, AuthView{AppID: appID, Writeable: true})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if _, err := store.GetApplication(appID); err != nil {
				unauthorized(w, "application does not exist")
				return
			}
			token, err := store.GetToken(tokenID)
			if err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					unauthorized(w, "invalid token")
					return
				}
				writeStoreError(w, "authenticate", err)
				return
			}
			if token.Application != appID {
				unauthorized(w, "token and application do not match")
				return
			}

			view := AuthView{AppID: token.Application, Writeable: token.Writeable}
			ctx := context.WithValue(r.Context(), viewKey, view)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireWriteable guards mutating routes: the resolved token must carry the
// writeable capability.
func RequireWriteable(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !viewFrom(r.Context()).Writeable {
			writeJSON(w, http.StatusForbidden, errorBody("token is read-only"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="hippo"`)
	writeJSON(w, http.StatusUnauthorized, errorBody(msg))
}
