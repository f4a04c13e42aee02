package api

// Version reported by the server info endpoint.
const Version = "0.1.0"

// ServerInfo is the response of GET /api/.
type ServerInfo struct {
	Version  string            `json:"version"`
	Features []string          `json:"features"`
	Vendor   map[string]string `json:"vendor"`
}

// ApplicationInfo is the public view of an application.
type ApplicationInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TokenInfo is returned when a token is minted. The id is the bearer secret
// and is only ever revealed here.
type TokenInfo struct {
	ID          string `json:"id"`
	Application string `json:"application"`
	Writeable   bool   `json:"writeable"`
}

// DatabaseInfo is the public view of a database.
type DatabaseInfo struct {
	Path string `json:"path"`
}

// DocumentCreated is returned after creating a document.
type DocumentCreated struct {
	Name string `json:"name"`
}
