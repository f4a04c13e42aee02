package docstore

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/ohinlabs/hippo/internal/apperr"
	"github.com/ohinlabs/hippo/internal/models"
	"github.com/ohinlabs/hippo/internal/sidecar"
)

// CreateApplication registers a new application under a fresh id and creates
// its root database at "/". The name is not required to be unique.
func (s *Store) CreateApplication(name string) (models.Application, error) {
	app := models.Application{ID: uuid.NewString(), Name: name}

	s.mu.Lock()
	s.applications[app.ID] = app
	s.apps[app.ID] = newAppScope()
	if err := s.files.SaveRegistry(s.applications, s.tokens); err != nil {
		delete(s.applications, app.ID)
		delete(s.apps, app.ID)
		s.mu.Unlock()
		return models.Application{}, err
	}
	s.mu.Unlock()

	// Every application owns a root database, created atomically with it:
	// if the root database cannot be persisted, the application is unwound.
	db, err := s.createDatabase(app.ID, "/")
	if err != nil {
		s.mu.Lock()
		delete(s.applications, app.ID)
		delete(s.apps, app.ID)
		if rerr := s.files.SaveRegistry(s.applications, s.tokens); rerr != nil {
			s.logger.Error("rollback of application registration failed",
				slog.String("application", app.ID), slog.String("error", rerr.Error()))
		}
		s.mu.Unlock()
		return models.Application{}, fmt.Errorf("docstore: create root database: %w", err)
	}

	// The application is announced before its root database so consumers
	// never see a database belonging to an unknown application.
	s.notify(Event{Type: EventApplicationCreated, Application: app.ID})
	s.notify(Event{Type: EventDatabaseCreated, Application: app.ID, Database: db.ID, Path: "/"})
	return app, nil
}

// DeleteApplication removes an application, all of its databases and
// documents, and every token referencing it. The full affected set is
// computed and committed to the index before any file is destroyed.
func (s *Store) DeleteApplication(id string) error {
	s.mu.Lock()
	app, ok := s.applications[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("docstore: application %s: %w", id, apperr.ErrNotFound)
	}
	scope := s.apps[id]

	removedTokens := make(map[string]models.Token)
	for tokenID, token := range s.tokens {
		if token.Application == id {
			removedTokens[tokenID] = token
			delete(s.tokens, tokenID)
		}
	}
	delete(s.applications, id)
	delete(s.apps, id)

	if err := s.files.SaveRegistry(s.applications, s.tokens); err != nil {
		s.applications[id] = app
		s.apps[id] = scope
		for tokenID, token := range removedTokens {
			s.tokens[tokenID] = token
		}
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	// The subtree is unreferenced by now; a failure here leaves orphan files
	// but never a dangling index entry.
	if err := s.fs.RemoveAll(sidecar.ApplicationDir(id)); err != nil {
		return err
	}

	s.notify(Event{Type: EventApplicationDeleted, Application: id})
	return nil
}

// GetApplication returns the application with the given id.
func (s *Store) GetApplication(id string) (models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.applications[id]
	if !ok {
		return models.Application{}, fmt.Errorf("docstore: application %s: %w", id, apperr.ErrNotFound)
	}
	return app, nil
}

// ListApplications returns all applications ordered by id.
func (s *Store) ListApplications() []models.Application {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Application, 0, len(s.applications))
	for _, app := range s.applications {
		out = append(out, app)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CreateToken mints a token scoped to the given application id. The id is
// not validated against the application registry; a token referencing an
// unknown application simply never authenticates.
func (s *Store) CreateToken(appID string, writeable bool) (models.Token, error) {
	token := models.Token{ID: uuid.NewString(), Application: appID, Writeable: writeable}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.ID] = token
	if err := s.files.SaveRegistry(s.applications, s.tokens); err != nil {
		delete(s.tokens, token.ID)
		return models.Token{}, err
	}

	s.notify(Event{Type: EventTokenCreated, Application: appID})
	return token, nil
}

// DeleteToken removes a token by id.
func (s *Store) DeleteToken(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[id]
	if !ok {
		return fmt.Errorf("docstore: token %s: %w", id, apperr.ErrNotFound)
	}
	delete(s.tokens, id)
	if err := s.files.SaveRegistry(s.applications, s.tokens); err != nil {
		s.tokens[id] = token
		return err
	}

	s.notify(Event{Type: EventTokenDeleted, Application: token.Application})
	return nil
}

// GetToken returns the token with the given id.
func (s *Store) GetToken(id string) (models.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[id]
	if !ok {
		return models.Token{}, fmt.Errorf("docstore: token %s: %w", id, apperr.ErrNotFound)
	}
	return token, nil
}
