package docstore_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/ohinlabs/hippo/internal/apperr"
	"github.com/ohinlabs/hippo/internal/docstore"
	"github.com/ohinlabs/hippo/internal/storage"
	"github.com/ohinlabs/hippo/internal/testutil"
)

func TestOpenEmptyDirectory(t *testing.T) {
	store, root := testutil.TestStore(t)
	if got := store.ListApplications(); len(got) != 0 {
		t.Errorf("fresh store has %d applications", len(got))
	}
	if _, err := os.Stat(filepath.Join(root, "applications.json")); err != nil {
		t.Errorf("applications file not initialised: %v", err)
	}
}

func TestCreateApplicationHasRootDatabase(t *testing.T) {
	store, _ := testutil.TestStore(t)

	app, err := store.CreateApplication("tenant")
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	if app.ID == "" || app.Name != "tenant" {
		t.Fatalf("app = %+v", app)
	}

	dbs, err := store.ListDatabases(app.ID, "/", true)
	if err != nil {
		t.Fatalf("ListDatabases: %v", err)
	}
	if len(dbs) != 1 || dbs[0].Path != "/" {
		t.Fatalf("fresh application databases = %+v, want exactly [/]", dbs)
	}
	if dbs[0].Application != app.ID {
		t.Errorf("root database application = %q, want %q", dbs[0].Application, app.ID)
	}
}

func TestDocumentWriteReadRoundTrip(t *testing.T) {
	store, _ := testutil.TestStore(t)
	app, _ := store.CreateApplication("t")
	db, err := store.LookupDatabase(app.ID, "/")
	if err != nil {
		t.Fatalf("LookupDatabase: %v", err)
	}

	content := []byte(`{"greeting":"hello","n":[1,2,3]}`)
	if err := store.UpdateDocument(app.ID, db.ID, "greeting", content); err != nil {
		t.Fatalf("UpdateDocument: %v", err)
	}
	got, err := store.ReadDocument(app.ID, db.ID, "greeting")
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("round trip mismatch: got %q", got)
	}

	// Upsert replaces in place under the same name.
	updated := []byte(`{"greeting":"goodbye"}`)
	if err := store.UpdateDocument(app.ID, db.ID, "greeting", updated); err != nil {
		t.Fatalf("UpdateDocument (replace): %v", err)
	}
	got, _ = store.ReadDocument(app.ID, db.ID, "greeting")
	if !bytes.Equal(got, updated) {
		t.Errorf("after replace: got %q", got)
	}
	names, _ := store.ListDocuments(app.ID, db.ID)
	if len(names) != 1 {
		t.Errorf("documents = %v, want one entry", names)
	}
}

func TestDeleteDocumentReturnsContent(t *testing.T) {
	store, _ := testutil.TestStore(t)
	app, _ := store.CreateApplication("t")
	db, _ := store.LookupDatabase(app.ID, "/")

	content := []byte(`{"k":"v"}`)
	_ = store.UpdateDocument(app.ID, db.ID, "doc", content)

	got, err := store.DeleteDocument(app.ID, db.ID, "doc")
	if err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("deleted content = %q, want %q", got, content)
	}

	if _, err := store.ReadDocument(app.ID, db.ID, "doc"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("read after delete: %v, want ErrNotFound", err)
	}
	if _, err := store.DeleteDocument(app.ID, db.ID, "doc"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: %v, want ErrNotFound", err)
	}
}

func TestDocumentExists(t *testing.T) {
	store, _ := testutil.TestStore(t)
	app, _ := store.CreateApplication("t")
	db, _ := store.LookupDatabase(app.ID, "/")

	if ok, _ := store.DocumentExists(app.ID, db.ID, "doc"); ok {
		t.Error("document should not exist yet")
	}
	_ = store.UpdateDocument(app.ID, db.ID, "doc", []byte(`{}`))
	if ok, _ := store.DocumentExists(app.ID, db.ID, "doc"); !ok {
		t.Error("document should exist")
	}
}

func TestListDatabasesPrefixFiltering(t *testing.T) {
	store, _ := testutil.TestStore(t)
	app, _ := store.CreateApplication("t")
	for _, path := range []string{"/a", "/a/b", "/a/b/c"} {
		if _, err := store.CreateDatabase(app.ID, path); err != nil {
			t.Fatalf("CreateDatabase(%s): %v", path, err)
		}
	}

	paths := func(prefix string, recursive bool) []string {
		t.Helper()
		dbs, err := store.ListDatabases(app.ID, prefix, recursive)
		if err != nil {
			t.Fatalf("ListDatabases: %v", err)
		}
		out := make([]string, len(dbs))
		for i, db := range dbs {
			out[i] = db.Path
		}
		return out
	}

	if got := paths("/a", false); !reflect.DeepEqual(got, []string{"/a", "/a/b"}) {
		t.Errorf("non-recursive /a = %v, want [/a /a/b]", got)
	}
	if got := paths("/a", true); !reflect.DeepEqual(got, []string{"/a", "/a/b", "/a/b/c"}) {
		t.Errorf("recursive /a = %v", got)
	}
	if got := paths("/", false); !reflect.DeepEqual(got, []string{"/", "/a"}) {
		t.Errorf("non-recursive / = %v, want [/ /a]", got)
	}
}

func TestCreateDatabaseDuplicatePathConflicts(t *testing.T) {
	store, _ := testutil.TestStore(t)
	app, _ := store.CreateApplication("t")

	if _, err := store.CreateDatabase(app.ID, "/dup"); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	if _, err := store.CreateDatabase(app.ID, "/dup"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate path: %v, want ErrConflict", err)
	}
	// The root database already exists, so recreating "/" conflicts too.
	if _, err := store.CreateDatabase(app.ID, "/"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate root: %v, want ErrConflict", err)
	}
}

func TestCreateDatabaseValidation(t *testing.T) {
	store, _ := testutil.TestStore(t)
	app, _ := store.CreateApplication("t")

	if _, err := store.CreateDatabase(app.ID, "nope"); err == nil {
		t.Error("path without leading slash should fail")
	}
	if _, err := store.CreateDatabase("ghost", "/x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown application: %v, want ErrNotFound", err)
	}
}

func TestDeleteDatabaseRemovesScopeAndFiles(t *testing.T) {
	store, root := testutil.TestStore(t)
	app, _ := store.CreateApplication("t")
	db, _ := store.CreateDatabase(app.ID, "/tmp")
	_ = store.UpdateDocument(app.ID, db.ID, "doc", []byte(`{}`))

	if err := store.DeleteDatabase(app.ID, db.ID); err != nil {
		t.Fatalf("DeleteDatabase: %v", err)
	}
	if _, err := store.LookupDatabase(app.ID, "/tmp"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("lookup after delete: %v", err)
	}
	if _, err := store.ListDocuments(app.ID, db.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("documents after delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "db", app.ID, db.ID)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("database directory should be removed: %v", err)
	}
	if err := store.DeleteDatabase(app.ID, db.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: %v, want ErrNotFound", err)
	}
}

func TestDeleteApplicationCascades(t *testing.T) {
	store, root := testutil.TestStore(t)
	app, _ := store.CreateApplication("t")
	other, _ := store.CreateApplication("other")

	db, _ := store.CreateDatabase(app.ID, "/data")
	_ = store.UpdateDocument(app.ID, db.ID, "doc", []byte(`{"x":1}`))
	token, _ := store.CreateToken(app.ID, true)
	otherToken, _ := store.CreateToken(other.ID, false)

	if err := store.DeleteApplication(app.ID); err != nil {
		t.Fatalf("DeleteApplication: %v", err)
	}

	if _, err := store.GetApplication(app.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("application lookup: %v", err)
	}
	if _, err := store.GetToken(token.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("token should be cascade-deleted: %v", err)
	}
	if _, err := store.ListDatabases(app.ID, "/", true); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("databases lookup: %v", err)
	}
	if _, err := store.ReadDocument(app.ID, db.ID, "doc"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("document lookup: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "db", app.ID)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("application subtree should be removed: %v", err)
	}

	// Unrelated tenants are untouched.
	if _, err := store.GetToken(otherToken.ID); err != nil {
		t.Errorf("other tenant's token lost: %v", err)
	}
	if _, err := store.LookupDatabase(other.ID, "/"); err != nil {
		t.Errorf("other tenant's root database lost: %v", err)
	}

	if err := store.DeleteApplication(app.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: %v, want ErrNotFound", err)
	}
}

func TestTokens(t *testing.T) {
	store, _ := testutil.TestStore(t)

	// Token creation does not validate the application id.
	token, err := store.CreateToken("no-such-app", false)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	got, err := store.GetToken(token.ID)
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got.Application != "no-such-app" || got.Writeable {
		t.Errorf("token = %+v", got)
	}

	if err := store.DeleteToken(token.ID); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	if err := store.DeleteToken(token.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: %v, want ErrNotFound", err)
	}
}

func TestReloadReconstructsIndex(t *testing.T) {
	store, root := testutil.TestStore(t)

	app, _ := store.CreateApplication("alpha")
	deleted, _ := store.CreateApplication("doomed")
	db, _ := store.CreateDatabase(app.ID, "/settings")
	_ = store.UpdateDocument(app.ID, db.ID, "theme", []byte(`{"dark":true}`))
	_ = store.UpdateDocument(app.ID, db.ID, "removed", []byte(`{}`))
	_, _ = store.DeleteDocument(app.ID, db.ID, "removed")
	token, _ := store.CreateToken(app.ID, true)
	_ = store.DeleteApplication(deleted.ID)

	reloaded := testutil.Reopen(t, root)

	if !reflect.DeepEqual(reloaded.ListApplications(), store.ListApplications()) {
		t.Errorf("applications diverge after reload")
	}
	gotToken, err := reloaded.GetToken(token.ID)
	if err != nil || gotToken != token {
		t.Errorf("token after reload = %+v, %v", gotToken, err)
	}

	freshDBs, _ := reloaded.ListDatabases(app.ID, "/", true)
	liveDBs, _ := store.ListDatabases(app.ID, "/", true)
	if !reflect.DeepEqual(freshDBs, liveDBs) {
		t.Errorf("databases diverge: %+v vs %+v", freshDBs, liveDBs)
	}

	names, err := reloaded.ListDocuments(app.ID, db.ID)
	if err != nil {
		t.Fatalf("ListDocuments after reload: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"theme"}) {
		t.Errorf("documents after reload = %v", names)
	}
	content, err := reloaded.ReadDocument(app.ID, db.ID, "theme")
	if err != nil || string(content) != `{"dark":true}` {
		t.Errorf("content after reload = %q, %v", content, err)
	}
}

func TestOpenFailsOnMalformedSidecar(t *testing.T) {
	store, root := testutil.TestStore(t)
	_, _ = store.CreateApplication("t")

	if err := os.WriteFile(filepath.Join(root, "applications.json"), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := docstore.Open(fs); err == nil {
		t.Fatal("malformed applications file should abort the load")
	}
}

func TestReadMissingContentIsIntegrityError(t *testing.T) {
	store, root := testutil.TestStore(t)
	app, _ := store.CreateApplication("t")
	db, _ := store.LookupDatabase(app.ID, "/")
	_ = store.UpdateDocument(app.ID, db.ID, "doc", []byte(`{}`))

	// Remove the content file behind the index's back.
	entries, err := os.ReadDir(filepath.Join(root, "db", app.ID, db.ID))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "map.json" {
			if err := os.Remove(filepath.Join(root, "db", app.ID, db.ID, e.Name())); err != nil {
				t.Fatal(err)
			}
		}
	}

	if _, err := store.ReadDocument(app.ID, db.ID, "doc"); !errors.Is(err, apperr.ErrIntegrity) {
		t.Errorf("read with missing content: %v, want ErrIntegrity", err)
	}
	if _, err := store.DeleteDocument(app.ID, db.ID, "doc"); !errors.Is(err, apperr.ErrIntegrity) {
		t.Errorf("delete with missing content: %v, want ErrIntegrity", err)
	}
}

func TestConcurrentUpsertSameNewName(t *testing.T) {
	store, root := testutil.TestStore(t)
	app, _ := store.CreateApplication("t")
	db, _ := store.LookupDatabase(app.ID, "/")

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.UpdateDocument(app.ID, db.ID, "shared", []byte(`{"w":true}`)); err != nil {
				t.Errorf("UpdateDocument: %v", err)
			}
		}()
	}
	wg.Wait()

	names, err := store.ListDocuments(app.ID, db.ID)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"shared"}) {
		t.Fatalf("documents = %v, want exactly [shared]", names)
	}

	// Exactly one id allocated: the database directory holds the document
	// map plus a single content file.
	entries, err := os.ReadDir(filepath.Join(root, "db", app.ID, db.ID))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		files := make([]string, len(entries))
		for i, e := range entries {
			files[i] = e.Name()
		}
		t.Errorf("database dir = %v, want map.json plus one content file", files)
	}

	// And a reload agrees with the live index.
	reloaded := testutil.Reopen(t, root)
	got, err := reloaded.ReadDocument(app.ID, db.ID, "shared")
	if err != nil || string(got) != `{"w":true}` {
		t.Errorf("reloaded content = %q, %v", got, err)
	}
}

// faultStore opens a store over a fault-injecting provider so persistence
// failures can be triggered mid-operation.
func faultStore(t *testing.T) (*docstore.Store, *testutil.FaultFS, string) {
	t.Helper()
	root := t.TempDir()
	fs, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	fault := &testutil.FaultFS{Provider: fs}
	store, err := docstore.Open(fault)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store, fault, root
}

var errDiskFull = errors.New("disk full")

func TestCreateApplicationUnwoundWhenRootDatabaseFails(t *testing.T) {
	store, fault, root := faultStore(t)

	// The registry write succeeds; the root database's side-car writes fail.
	fault.WriteErr = func(p string) error {
		if strings.HasPrefix(p, "db/") {
			return errDiskFull
		}
		return nil
	}
	if _, err := store.CreateApplication("t"); !errors.Is(err, errDiskFull) {
		t.Fatalf("CreateApplication = %v, want injected failure", err)
	}
	fault.WriteErr = nil

	if got := store.ListApplications(); len(got) != 0 {
		t.Errorf("applications = %+v, want none", got)
	}
	reloaded := testutil.Reopen(t, root)
	if got := reloaded.ListApplications(); len(got) != 0 {
		t.Errorf("applications after reload = %+v, want none", got)
	}
}

func TestCreateDatabaseRollbackOnDocumentMapFailure(t *testing.T) {
	store, fault, root := faultStore(t)
	app, _ := store.CreateApplication("t")

	// Fail the new database's document map write (db/<app>/<db>/map.json)
	// while the application's database map (db/<app>/map.json) still
	// persists, so the rollback must re-save the latter without the entry.
	fault.WriteErr = func(p string) error {
		if strings.HasSuffix(p, "map.json") && strings.Count(p, "/") == 3 {
			return errDiskFull
		}
		return nil
	}
	if _, err := store.CreateDatabase(app.ID, "/x"); !errors.Is(err, errDiskFull) {
		t.Fatalf("CreateDatabase = %v, want injected failure", err)
	}
	fault.WriteErr = nil

	if _, err := store.LookupDatabase(app.ID, "/x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("lookup after failed create: %v, want ErrNotFound", err)
	}
	dbs, _ := store.ListDatabases(app.ID, "/", true)
	if len(dbs) != 1 || dbs[0].Path != "/" {
		t.Errorf("databases = %+v, want only /", dbs)
	}

	reloaded := testutil.Reopen(t, root)
	if _, err := reloaded.LookupDatabase(app.ID, "/x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("lookup after reload: %v, want ErrNotFound", err)
	}
}

func TestUpdateDocumentRollbackOnContentWriteFailure(t *testing.T) {
	store, fault, root := faultStore(t)
	app, _ := store.CreateApplication("t")
	db, _ := store.LookupDatabase(app.ID, "/")

	// Content files live beside map.json in the database directory.
	fault.WriteErr = func(p string) error {
		if strings.Count(p, "/") == 3 && !strings.HasSuffix(p, "map.json") {
			return errDiskFull
		}
		return nil
	}
	if err := store.UpdateDocument(app.ID, db.ID, "doc", []byte(`{}`)); !errors.Is(err, errDiskFull) {
		t.Fatalf("UpdateDocument = %v, want injected failure", err)
	}
	fault.WriteErr = nil

	if ok, _ := store.DocumentExists(app.ID, db.ID, "doc"); ok {
		t.Error("failed write left the allocated id in the index")
	}
	names, _ := store.ListDocuments(app.ID, db.ID)
	if len(names) != 0 {
		t.Errorf("documents = %v, want none", names)
	}

	// The unwound id must not survive in the on-disk document map either.
	reloaded := testutil.Reopen(t, root)
	if ok, _ := reloaded.DocumentExists(app.ID, db.ID, "doc"); ok {
		t.Error("unwound id still present after reload")
	}
}

func TestDeleteDocumentRollbackOnContentDeleteFailure(t *testing.T) {
	store, fault, root := faultStore(t)
	app, _ := store.CreateApplication("t")
	db, _ := store.LookupDatabase(app.ID, "/")
	content := []byte(`{"keep":true}`)
	if err := store.UpdateDocument(app.ID, db.ID, "doc", content); err != nil {
		t.Fatal(err)
	}

	fault.DeleteErr = func(string) error { return errDiskFull }
	if _, err := store.DeleteDocument(app.ID, db.ID, "doc"); !errors.Is(err, errDiskFull) {
		t.Fatalf("DeleteDocument = %v, want injected failure", err)
	}
	fault.DeleteErr = nil

	// The map entry was restored; the document is still fully readable.
	got, err := store.ReadDocument(app.ID, db.ID, "doc")
	if err != nil || !bytes.Equal(got, content) {
		t.Errorf("read after failed delete = %q, %v", got, err)
	}
	reloaded := testutil.Reopen(t, root)
	if got, err := reloaded.ReadDocument(app.ID, db.ID, "doc"); err != nil || !bytes.Equal(got, content) {
		t.Errorf("read after reload = %q, %v", got, err)
	}
}

func TestEventsEmitted(t *testing.T) {
	var events []docstore.Event
	var mu sync.Mutex
	store, _ := testutil.TestStore(t, docstore.WithEvents(func(ev docstore.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}))

	app, _ := store.CreateApplication("t")
	db, _ := store.LookupDatabase(app.ID, "/")
	_ = store.UpdateDocument(app.ID, db.ID, "doc", []byte(`{}`))
	_, _ = store.DeleteDocument(app.ID, db.ID, "doc")

	mu.Lock()
	defer mu.Unlock()
	var kinds []string
	for _, ev := range events {
		kinds = append(kinds, ev.Type)
	}
	// The application is announced before its root database.
	want := []string{
		docstore.EventApplicationCreated,
		docstore.EventDatabaseCreated,
		docstore.EventDocumentUpdated,
		docstore.EventDocumentDeleted,
	}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("event kinds = %v, want %v", kinds, want)
	}
}
