package api

import (
	"net/http"
	"strconv"

	"github.com/ohinlabs/hippo/internal/docstore"
)

// Handler holds API route handlers over the store façade.
type Handler struct {
	store *docstore.Store
}

// NewHandler creates a new Handler.
func NewHandler(store *docstore.Store) *Handler {
	return &Handler{store: store}
}

// ServerInfo handles GET /api/.
func (h *Handler) ServerInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ServerInfo{
		Version:  Version,
		Features: []string{},
		Vendor: map[string]string{
			"name": "Ohin Taylor <kazani@kazani.dev>",
		},
	})
}

// ListApplications handles GET /api/apps.
func (h *Handler) ListApplications(w http.ResponseWriter, _ *http.Request) {
	apps := h.store.ListApplications()
	out := make([]ApplicationInfo, len(apps))
	for i, app := range apps {
		out[i] = ApplicationInfo{ID: app.ID, Name: app.Name}
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateApplication handles POST /api/apps/new.
func (h *Handler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	app, err := h.store.CreateApplication(name)
	if err != nil {
		writeStoreError(w, "create application", err)
		return
	}
	writeJSON(w, http.StatusCreated, ApplicationInfo{ID: app.ID, Name: app.Name})
}

// DeleteApplication handles DELETE /api/apps/delete. The caller may only
// delete the application its token is scoped to.
func (h *Handler) DeleteApplication(w http.ResponseWriter, r *http.Request) {
	appID := r.URL.Query().Get("app_id")
	if appID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("app_id is required"))
		return
	}
	if viewFrom(r.Context()).AppID != appID {
		writeJSON(w, http.StatusForbidden, errorBody("you do not have permission to delete this application"))
		return
	}
	if err := h.store.DeleteApplication(appID); err != nil {
		writeStoreError(w, "delete application", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateToken handles POST /api/tokens/new. The application id is not
// validated here: a token for an unknown application never authenticates.
func (h *Handler) CreateToken(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	appID := q.Get("app_id")
	if appID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("app_id is required"))
		return
	}
	writeable, _ := strconv.ParseBool(q.Get("writeable"))

	token, err := h.store.CreateToken(appID, writeable)
	if err != nil {
		writeStoreError(w, "create token", err)
		return
	}
	writeJSON(w, http.StatusCreated, TokenInfo{
		ID:          token.ID,
		Application: token.Application,
		Writeable:   token.Writeable,
	})
}

// DeleteToken handles DELETE /api/tokens/delete. The target token must
// belong to the caller's application.
func (h *Handler) DeleteToken(w http.ResponseWriter, r *http.Request) {
	tokenID := r.URL.Query().Get("token_id")
	if tokenID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("token_id is required"))
		return
	}
	token, err := h.store.GetToken(tokenID)
	if err != nil {
		writeStoreError(w, "delete token", err)
		return
	}
	if viewFrom(r.Context()).AppID != token.Application {
		writeJSON(w, http.StatusForbidden, errorBody("you do not have permission to delete this token"))
		return
	}
	if err := h.store.DeleteToken(tokenID); err != nil {
		writeStoreError(w, "delete token", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
