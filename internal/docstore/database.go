package docstore

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ohinlabs/hippo/internal/apperr"
	"github.com/ohinlabs/hippo/internal/models"
	"github.com/ohinlabs/hippo/internal/sidecar"
)

// CreateDatabase registers a new database at path within an application and
// persists both the application's database map and the new database's empty
// document map. Creating a path that already exists fails with ErrConflict.
func (s *Store) CreateDatabase(appID, path string) (models.Database, error) {
	db, err := s.createDatabase(appID, path)
	if err != nil {
		return models.Database{}, err
	}
	s.notify(Event{Type: EventDatabaseCreated, Application: appID, Database: db.ID, Path: path})
	return db, nil
}

// createDatabase is CreateDatabase without the event, so CreateApplication
// can announce the new application before its root database.
func (s *Store) createDatabase(appID, path string) (models.Database, error) {
	if !strings.HasPrefix(path, "/") {
		return models.Database{}, fmt.Errorf("docstore: database path must begin with /: %q", path)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	scope := s.scope(appID)
	if scope == nil {
		return models.Database{}, fmt.Errorf("docstore: application %s: %w", appID, apperr.ErrNotFound)
	}

	scope.mu.Lock()
	defer scope.mu.Unlock()
	if _, ok := scope.byPath[path]; ok {
		return models.Database{}, fmt.Errorf("docstore: database path %s: %w", path, apperr.ErrConflict)
	}

	db := models.Database{ID: uuid.NewString(), Application: appID, Path: path}
	scope.byPath[path] = db
	scope.byID[db.ID] = path
	scope.dbs[db.ID] = &dbScope{docs: make(map[string]string)}

	rollback := func() {
		delete(scope.byPath, path)
		delete(scope.byID, db.ID)
		delete(scope.dbs, db.ID)
	}
	if err := s.files.SaveDatabaseMap(appID, scope.databaseMap()); err != nil {
		rollback()
		return models.Database{}, err
	}
	if err := s.files.SaveDocumentMap(appID, db.ID, map[string]string{}); err != nil {
		rollback()
		// Restore the database map on disk to match the rolled-back index.
		if rerr := s.files.SaveDatabaseMap(appID, scope.databaseMap()); rerr != nil {
			s.logger.Error("rollback of database map failed",
				slog.String("application", appID), slog.String("error", rerr.Error()))
		}
		return models.Database{}, err
	}

	return db, nil
}

// DeleteDatabase removes a database by id along with its document scope and
// on-disk subtree.
func (s *Store) DeleteDatabase(appID, dbID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scope := s.scope(appID)
	if scope == nil {
		return fmt.Errorf("docstore: application %s: %w", appID, apperr.ErrNotFound)
	}

	scope.mu.Lock()
	defer scope.mu.Unlock()
	path, ok := scope.byID[dbID]
	if !ok {
		return fmt.Errorf("docstore: database %s: %w", dbID, apperr.ErrNotFound)
	}
	db := scope.byPath[path]
	docs := scope.dbs[dbID]

	delete(scope.byPath, path)
	delete(scope.byID, dbID)
	delete(scope.dbs, dbID)

	if err := s.files.SaveDatabaseMap(appID, scope.databaseMap()); err != nil {
		scope.byPath[path] = db
		scope.byID[dbID] = path
		scope.dbs[dbID] = docs
		return err
	}

	if err := s.fs.RemoveAll(sidecar.DatabaseDir(appID, dbID)); err != nil {
		return err
	}

	s.notify(Event{Type: EventDatabaseDeleted, Application: appID, Database: dbID, Path: path})
	return nil
}

// LookupDatabase returns the database registered at path.
func (s *Store) LookupDatabase(appID, path string) (models.Database, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scope := s.scope(appID)
	if scope == nil {
		return models.Database{}, fmt.Errorf("docstore: application %s: %w", appID, apperr.ErrNotFound)
	}

	scope.mu.RLock()
	defer scope.mu.RUnlock()
	db, ok := scope.byPath[path]
	if !ok {
		return models.Database{}, fmt.Errorf("docstore: database path %s: %w", path, apperr.ErrNotFound)
	}
	return db, nil
}

// ListDatabases returns all databases whose path starts with prefix, ordered
// by path. When recursive is false only the database at the prefix itself
// and its direct children are returned.
func (s *Store) ListDatabases(appID, prefix string, recursive bool) ([]models.Database, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scope := s.scope(appID)
	if scope == nil {
		return nil, fmt.Errorf("docstore: application %s: %w", appID, apperr.ErrNotFound)
	}

	scope.mu.RLock()
	defer scope.mu.RUnlock()
	out := make([]models.Database, 0, len(scope.byPath))
	for path, db := range scope.byPath {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if !recursive {
			rest := strings.TrimPrefix(strings.TrimPrefix(path, prefix), "/")
			if strings.Contains(rest, "/") {
				continue
			}
		}
		out = append(out, db)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
