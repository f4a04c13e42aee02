// Package sidecar persists the JSON index files that sit alongside document
// content and let the in-memory index be rebuilt on startup without scanning
// content files.
//
// On-disk layout, relative to the store root:
//
//	applications.json                  {"applications":[...],"tokens":[...]}
//	db/<application>/map.json          {databaseId: {id, application, path}}
//	db/<application>/<database>/map.json  {documentName: documentId}
//	db/<application>/<database>/<documentId>  raw document bytes
//
// Every save rewrites the whole file for its scope; there are no incremental
// writes. Loads of absent files initialise an empty default on disk so a
// store is usable from a completely empty directory, while malformed content
// is surfaced as an error so startup can abort instead of discarding data.
package sidecar

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/ohinlabs/hippo/internal/models"
	"github.com/ohinlabs/hippo/internal/storage"
)

const (
	registryFile = "applications.json"
	dataDir      = "db"
	mapFile      = "map.json"
)

// ApplicationDir returns the store-relative directory holding an
// application's databases.
func ApplicationDir(appID string) string {
	return path.Join(dataDir, appID)
}

// DatabaseDir returns the store-relative directory holding a database's
// documents and its document map.
func DatabaseDir(appID, dbID string) string {
	return path.Join(dataDir, appID, dbID)
}

// DocumentPath returns the store-relative path of a document's content file.
func DocumentPath(appID, dbID, docID string) string {
	return path.Join(dataDir, appID, dbID, docID)
}

// Files reads and writes the three side-car file kinds through a storage
// provider. It holds no state of its own.
type Files struct {
	fs storage.Provider
}

// New creates a Files over the given provider.
func New(fs storage.Provider) *Files {
	return &Files{fs: fs}
}

// registry is the serialized form of applications.json.
type registry struct {
	Applications []models.Application `json:"applications"`
	Tokens       []models.Token       `json:"tokens"`
}

// LoadRegistry loads the applications file, creating an empty one if absent.
func (f *Files) LoadRegistry() (map[string]models.Application, map[string]models.Token, error) {
	apps := make(map[string]models.Application)
	tokens := make(map[string]models.Token)

	data, err := f.fs.Read(registryFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := f.SaveRegistry(apps, tokens); err != nil {
				return nil, nil, err
			}
			return apps, tokens, nil
		}
		return nil, nil, err
	}

	var reg registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, nil, fmt.Errorf("sidecar: malformed %s: %w", registryFile, err)
	}
	for _, app := range reg.Applications {
		apps[app.ID] = app
	}
	for _, tok := range reg.Tokens {
		tokens[tok.ID] = tok
	}
	return apps, tokens, nil
}

// SaveRegistry rewrites the applications file from the full in-memory state.
func (f *Files) SaveRegistry(apps map[string]models.Application, tokens map[string]models.Token) error {
	reg := registry{
		Applications: make([]models.Application, 0, len(apps)),
		Tokens:       make([]models.Token, 0, len(tokens)),
	}
	for _, app := range apps {
		reg.Applications = append(reg.Applications, app)
	}
	for _, tok := range tokens {
		reg.Tokens = append(reg.Tokens, tok)
	}
	// Stable output so repeated saves of the same state are byte-identical.
	sort.Slice(reg.Applications, func(i, j int) bool { return reg.Applications[i].ID < reg.Applications[j].ID })
	sort.Slice(reg.Tokens, func(i, j int) bool { return reg.Tokens[i].ID < reg.Tokens[j].ID })

	data, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("sidecar: encode %s: %w", registryFile, err)
	}
	return f.fs.Write(registryFile, data)
}

// LoadDatabaseMap loads an application's database map keyed by database id,
// creating an empty one if absent.
func (f *Files) LoadDatabaseMap(appID string) (map[string]models.Database, error) {
	byID := make(map[string]models.Database)

	data, err := f.fs.Read(path.Join(ApplicationDir(appID), mapFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := f.SaveDatabaseMap(appID, byID); err != nil {
				return nil, err
			}
			return byID, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, &byID); err != nil {
		return nil, fmt.Errorf("sidecar: malformed database map for %s: %w", appID, err)
	}
	return byID, nil
}

// SaveDatabaseMap rewrites an application's database map.
func (f *Files) SaveDatabaseMap(appID string, byID map[string]models.Database) error {
	data, err := json.Marshal(byID)
	if err != nil {
		return fmt.Errorf("sidecar: encode database map for %s: %w", appID, err)
	}
	return f.fs.Write(path.Join(ApplicationDir(appID), mapFile), data)
}

// LoadDocumentMap loads a database's name→id document map, creating an empty
// one if absent.
func (f *Files) LoadDocumentMap(appID, dbID string) (map[string]string, error) {
	docs := make(map[string]string)

	data, err := f.fs.Read(path.Join(DatabaseDir(appID, dbID), mapFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := f.SaveDocumentMap(appID, dbID, docs); err != nil {
				return nil, err
			}
			return docs, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("sidecar: malformed document map for %s/%s: %w", appID, dbID, err)
	}
	return docs, nil
}

// SaveDocumentMap rewrites a database's document map.
func (f *Files) SaveDocumentMap(appID, dbID string, docs map[string]string) error {
	data, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("sidecar: encode document map for %s/%s: %w", appID, dbID, err)
	}
	return f.fs.Write(path.Join(DatabaseDir(appID, dbID), mapFile), data)
}
