// Package models defines the domain types for Hippo.
//
// JSON field names match the on-disk side-car format and must not change:
// existing stores are read back with these exact keys.
package models

// Application is a tenant. It owns databases and is referenced by tokens.
type Application struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Token is a bearer credential scoped to one application. The id itself is
// the secret. Writeable tokens may mutate the application's data; read-only
// tokens may not.
type Token struct {
	ID          string `json:"id"`
	Application string `json:"application"`
	Writeable   bool   `json:"writeable"`
}

// Database is a path-identified container for documents, scoped to one
// application. Paths always begin with "/" and are unique within the
// application; they form a virtual hierarchy through prefix matching but are
// stored flat.
type Database struct {
	ID          string `json:"id"`
	Application string `json:"application"`
	Path        string `json:"path"`
}
