package docstore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/google/uuid"

	"github.com/ohinlabs/hippo/internal/apperr"
	"github.com/ohinlabs/hippo/internal/sidecar"
)

// lockDatabase resolves the scopes for a document operation, read-locking
// the store and the application scope. On success the caller holds both read
// locks and must call the returned unlock exactly once. Holding the
// application read lock for the whole operation keeps structural changes
// (database or application deletion) from interleaving with document work.
func (s *Store) lockDatabase(appID, dbID string) (*dbScope, func(), error) {
	s.mu.RLock()
	scope := s.scope(appID)
	if scope == nil {
		s.mu.RUnlock()
		return nil, nil, fmt.Errorf("docstore: application %s: %w", appID, apperr.ErrNotFound)
	}
	scope.mu.RLock()
	db := scope.dbs[dbID]
	if db == nil {
		scope.mu.RUnlock()
		s.mu.RUnlock()
		return nil, nil, fmt.Errorf("docstore: database %s: %w", dbID, apperr.ErrNotFound)
	}
	return db, func() {
		scope.mu.RUnlock()
		s.mu.RUnlock()
	}, nil
}

// UpdateDocument writes contents under name, allocating and persisting a new
// document id when the name is unseen. It is a create-or-replace operation.
func (s *Store) UpdateDocument(appID, dbID, name string, contents []byte) error {
	db, unlock, err := s.lockDatabase(appID, dbID)
	if err != nil {
		return err
	}
	defer unlock()

	db.mu.Lock()
	defer db.mu.Unlock()
	docID, known := db.docs[name]
	if !known {
		docID = uuid.NewString()
		db.docs[name] = docID
		if err := s.files.SaveDocumentMap(appID, dbID, db.docs); err != nil {
			delete(db.docs, name)
			return err
		}
	}

	if err := s.fs.Write(sidecar.DocumentPath(appID, dbID, docID), contents); err != nil {
		if !known {
			// Unwind the allocation so the index never references content
			// that was never written.
			delete(db.docs, name)
			if rerr := s.files.SaveDocumentMap(appID, dbID, db.docs); rerr != nil {
				s.logger.Error("rollback of document map failed",
					slog.String("application", appID), slog.String("database", dbID),
					slog.String("error", rerr.Error()))
			}
		}
		return err
	}

	s.notify(Event{Type: EventDocumentUpdated, Application: appID, Database: dbID, Document: name})
	return nil
}

// ReadDocument returns the content stored under name. A name missing from
// the document map is a normal not-found; a name that is indexed but whose
// content file is gone is an integrity violation.
func (s *Store) ReadDocument(appID, dbID, name string) ([]byte, error) {
	db, unlock, err := s.lockDatabase(appID, dbID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	db.mu.RLock()
	defer db.mu.RUnlock()
	docID, ok := db.docs[name]
	if !ok {
		return nil, fmt.Errorf("docstore: document %s: %w", name, apperr.ErrNotFound)
	}

	data, err := s.fs.Read(sidecar.DocumentPath(appID, dbID, docID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("docstore: document %s indexed as %s but content is missing: %w",
				name, docID, apperr.ErrIntegrity)
		}
		return nil, err
	}
	return data, nil
}

// DeleteDocument removes name from the document map, deletes its content
// file, and returns the content that was deleted.
func (s *Store) DeleteDocument(appID, dbID, name string) ([]byte, error) {
	db, unlock, err := s.lockDatabase(appID, dbID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	db.mu.Lock()
	defer db.mu.Unlock()
	docID, ok := db.docs[name]
	if !ok {
		return nil, fmt.Errorf("docstore: document %s: %w", name, apperr.ErrNotFound)
	}

	contentPath := sidecar.DocumentPath(appID, dbID, docID)
	contents, err := s.fs.Read(contentPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("docstore: document %s indexed as %s but content is missing: %w",
				name, docID, apperr.ErrIntegrity)
		}
		return nil, err
	}

	delete(db.docs, name)
	if err := s.files.SaveDocumentMap(appID, dbID, db.docs); err != nil {
		db.docs[name] = docID
		return nil, err
	}

	if err := s.fs.Delete(contentPath); err != nil {
		db.docs[name] = docID
		if rerr := s.files.SaveDocumentMap(appID, dbID, db.docs); rerr != nil {
			s.logger.Error("rollback of document map failed",
				slog.String("application", appID), slog.String("database", dbID),
				slog.String("error", rerr.Error()))
		}
		return nil, err
	}

	s.notify(Event{Type: EventDocumentDeleted, Application: appID, Database: dbID, Document: name})
	return contents, nil
}

// DocumentExists reports whether name is present in the database's map.
func (s *Store) DocumentExists(appID, dbID, name string) (bool, error) {
	db, unlock, err := s.lockDatabase(appID, dbID)
	if err != nil {
		return false, err
	}
	defer unlock()

	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.docs[name]
	return ok, nil
}

// ListDocuments returns all document names in the database, sorted.
func (s *Store) ListDocuments(appID, dbID string) ([]string, error) {
	db, unlock, err := s.lockDatabase(appID, dbID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	db.mu.RLock()
	defer db.mu.RUnlock()
	names := make([]string, 0, len(db.docs))
	for name := range db.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
