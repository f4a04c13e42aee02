package docstore

// Event kinds published through the WithEvents hook.
const (
	EventApplicationCreated = "application.created"
	EventApplicationDeleted = "application.deleted"
	EventTokenCreated       = "token.created"
	EventTokenDeleted       = "token.deleted"
	EventDatabaseCreated    = "database.created"
	EventDatabaseDeleted    = "database.deleted"
	EventDocumentUpdated    = "document.updated"
	EventDocumentDeleted    = "document.deleted"
)

// Event describes a successful mutation. Fields that do not apply to the
// event kind are empty.
type Event struct {
	Type        string `json:"type"`
	Application string `json:"application,omitempty"`
	Database    string `json:"database,omitempty"`
	Path        string `json:"path,omitempty"`
	Document    string `json:"document,omitempty"`
}

func (s *Store) notify(ev Event) {
	if s.emit != nil {
		s.emit(ev)
	}
}
