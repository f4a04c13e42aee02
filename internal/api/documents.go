package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ohinlabs/hippo/internal/checksum"
	"github.com/ohinlabs/hippo/internal/models"
)

const maxDocumentSize = 10 << 20

// dbPath extracts and normalizes the database path from the {db} URL
// parameter. Database paths travel as a single URL-encoded segment; after
// decoding a missing leading slash is added.
func dbPath(r *http.Request) string {
	raw := chi.URLParam(r, "db")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}
	if !strings.HasPrefix(decoded, "/") {
		decoded = "/" + decoded
	}
	return decoded
}

// docName extracts the document name from the {document} URL parameter.
func docName(r *http.Request) string {
	raw := chi.URLParam(r, "document")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// resolveDatabase maps the request's database path onto its id within the
// caller's application. A false return means the response is already written.
func (h *Handler) resolveDatabase(w http.ResponseWriter, r *http.Request) (models.Database, bool) {
	view := viewFrom(r.Context())
	db, err := h.store.LookupDatabase(view.AppID, dbPath(r))
	if err != nil {
		writeStoreError(w, "resolve database", err)
		return models.Database{}, false
	}
	return db, true
}

// readDocumentBody reads and validates a document payload: it must be a JSON
// object or array. The bytes are stored as received. A false return means
// the response is already written.
func readDocumentBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentSize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return nil, false
	}
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') || !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, errorBody("body must be a JSON object or array"))
		return nil, false
	}
	return body, true
}

// CreateDatabase handles POST /api/create_db.
func (h *Handler) CreateDatabase(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	view := viewFrom(r.Context())
	db, err := h.store.CreateDatabase(view.AppID, path)
	if err != nil {
		writeStoreError(w, "create database", err)
		return
	}
	writeJSON(w, http.StatusCreated, DatabaseInfo{Path: db.Path})
}

// ListDatabases handles GET /api/dbs/{db}: all databases whose path starts
// with the given prefix, direct children only unless recursive=true.
func (h *Handler) ListDatabases(w http.ResponseWriter, r *http.Request) {
	recursive, _ := strconv.ParseBool(r.URL.Query().Get("recursive"))
	view := viewFrom(r.Context())

	dbs, err := h.store.ListDatabases(view.AppID, dbPath(r), recursive)
	if err != nil {
		writeStoreError(w, "list databases", err)
		return
	}
	out := make([]DatabaseInfo, len(dbs))
	for i, db := range dbs {
		out[i] = DatabaseInfo{Path: db.Path}
	}
	writeJSON(w, http.StatusOK, out)
}

// DeleteDatabase handles DELETE /api/{db}.
func (h *Handler) DeleteDatabase(w http.ResponseWriter, r *http.Request) {
	db, ok := h.resolveDatabase(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteDatabase(db.Application, db.ID); err != nil {
		writeStoreError(w, "delete database", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDocuments handles GET /api/{db}.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	db, ok := h.resolveDatabase(w, r)
	if !ok {
		return
	}
	names, err := h.store.ListDocuments(db.Application, db.ID)
	if err != nil {
		writeStoreError(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// CreateDocument handles POST /api/{db}. When document_name is omitted a
// fresh name is generated so callers can store anonymous documents.
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	db, ok := h.resolveDatabase(w, r)
	if !ok {
		return
	}
	body, ok := readDocumentBody(w, r)
	if !ok {
		return
	}
	name := r.URL.Query().Get("document_name")
	if name == "" {
		name = uuid.NewString()
	}
	if err := h.store.UpdateDocument(db.Application, db.ID, name, body); err != nil {
		writeStoreError(w, "create document", err)
		return
	}
	writeJSON(w, http.StatusCreated, DocumentCreated{Name: name})
}

// ReadDocument handles GET /api/{db}/{document}.
func (h *Handler) ReadDocument(w http.ResponseWriter, r *http.Request) {
	db, ok := h.resolveDatabase(w, r)
	if !ok {
		return
	}
	data, err := h.store.ReadDocument(db.Application, db.ID, docName(r))
	if err != nil {
		writeStoreError(w, "read document", err)
		return
	}
	w.Header().Set("ETag", `"`+checksum.Sum(data)+`"`)
	writeRawJSON(w, http.StatusOK, data)
}

// DocumentExists handles GET /api/{db}/{document}/exists.
func (h *Handler) DocumentExists(w http.ResponseWriter, r *http.Request) {
	db, ok := h.resolveDatabase(w, r)
	if !ok {
		return
	}
	exists, err := h.store.DocumentExists(db.Application, db.ID, docName(r))
	if err != nil {
		writeStoreError(w, "document exists", err)
		return
	}
	writeJSON(w, http.StatusOK, exists)
}

// UpdateDocument handles PUT /api/{db}/{document} (create-or-replace).
func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	db, ok := h.resolveDatabase(w, r)
	if !ok {
		return
	}
	body, ok := readDocumentBody(w, r)
	if !ok {
		return
	}
	if err := h.store.UpdateDocument(db.Application, db.ID, docName(r), body); err != nil {
		writeStoreError(w, "update document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteDocument handles DELETE /api/{db}/{document} and returns the content
// that was deleted.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	db, ok := h.resolveDatabase(w, r)
	if !ok {
		return
	}
	contents, err := h.store.DeleteDocument(db.Application, db.ID, docName(r))
	if err != nil {
		writeStoreError(w, "delete document", err)
		return
	}
	writeRawJSON(w, http.StatusOK, contents)
}
