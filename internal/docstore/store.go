// Package docstore implements the persistence and indexing core: an
// in-memory index over applications, tokens, databases and documents,
// kept consistent with the side-car JSON files and content files on disk.
//
// All reads are served from the in-memory index; every mutation updates the
// index under the owning scope's lock and writes through to the affected
// side-car file(s) before returning. If a write fails the in-memory change
// is rolled back, so a successful return always leaves index and disk in
// agreement.
//
// Lock discipline: Store.mu guards the application/token registries and the
// scope table; each application scope has its own lock guarding its database
// maps; each database scope has a lock guarding its document map and the
// content writes within it. Locks are always taken coarser-first
// (store → application → database), and structural changes take the coarser
// lock exclusively while document operations only take the database lock
// exclusively, so work on disjoint scopes proceeds in parallel.
package docstore

import (
	"log/slog"
	"sync"

	"github.com/ohinlabs/hippo/internal/models"
	"github.com/ohinlabs/hippo/internal/sidecar"
	"github.com/ohinlabs/hippo/internal/storage"
)

// Store is the operations façade over the on-disk document store.
type Store struct {
	fs     storage.Provider
	files  *sidecar.Files
	logger *slog.Logger
	emit   func(Event)

	mu           sync.RWMutex
	applications map[string]models.Application
	tokens       map[string]models.Token
	apps         map[string]*appScope
}

// appScope holds one application's database index.
type appScope struct {
	mu     sync.RWMutex
	byPath map[string]models.Database // path → database (primary)
	byID   map[string]string          // database id → path (reverse)
	dbs    map[string]*dbScope        // database id → document scope
}

// dbScope holds one database's document index.
type dbScope struct {
	mu   sync.RWMutex
	docs map[string]string // document name → document id
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for startup and integrity reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithEvents sets a hook invoked after every successful mutation.
// The hook must not block.
func WithEvents(fn func(Event)) Option {
	return func(s *Store) { s.emit = fn }
}

// Open loads the full index from the side-car files under fs: the
// applications file first, then every application's database map, then every
// database's document map. Absent files are initialised empty, so an empty
// directory yields a working store; malformed files abort the load.
func Open(fs storage.Provider, opts ...Option) (*Store, error) {
	s := &Store{
		fs:           fs,
		files:        sidecar.New(fs),
		logger:       slog.Default(),
		applications: make(map[string]models.Application),
		tokens:       make(map[string]models.Token),
		apps:         make(map[string]*appScope),
	}
	for _, opt := range opts {
		opt(s)
	}

	apps, tokens, err := s.files.LoadRegistry()
	if err != nil {
		return nil, err
	}
	s.applications = apps
	s.tokens = tokens

	var databases, documents int
	for appID := range apps {
		byID, err := s.files.LoadDatabaseMap(appID)
		if err != nil {
			return nil, err
		}
		scope := newAppScope()
		for dbID, db := range byID {
			scope.byPath[db.Path] = db
			scope.byID[dbID] = db.Path

			docs, err := s.files.LoadDocumentMap(appID, dbID)
			if err != nil {
				return nil, err
			}
			scope.dbs[dbID] = &dbScope{docs: docs}
			documents += len(docs)
		}
		databases += len(byID)
		s.apps[appID] = scope
	}

	s.logger.Info("store loaded",
		slog.Int("applications", len(s.applications)),
		slog.Int("tokens", len(s.tokens)),
		slog.Int("databases", databases),
		slog.Int("documents", documents))
	return s, nil
}

func newAppScope() *appScope {
	return &appScope{
		byPath: make(map[string]models.Database),
		byID:   make(map[string]string),
		dbs:    make(map[string]*dbScope),
	}
}

// scope returns the application scope for appID, or nil if unknown.
// The caller must hold s.mu (read or write).
func (s *Store) scope(appID string) *appScope {
	return s.apps[appID]
}

// databaseMap builds the id-keyed map persisted to the application's
// database side-car. The caller must hold the scope's lock.
func (a *appScope) databaseMap() map[string]models.Database {
	byID := make(map[string]models.Database, len(a.byPath))
	for _, db := range a.byPath {
		byID[db.ID] = db
	}
	return byID
}
