package domain

import "context"

// EntityStore is the single persistence contract. Two backends implement it
// at startup time: a local SQLite mirror and a server-side Postgres store.
type EntityStore interface {
	ListChildren(ctx context.Context) ([]Child, error)
	GetChild(ctx context.Context, id string) (Child, error)
	CreateChild(ctx context.Context, value Child) (Child, error)
	DeleteChild(ctx context.Context, id string) error

	ListCatalog(ctx context.Context, kind CatalogKind) ([]CatalogItem, error)
	GetCatalogItem(ctx context.Context, kind CatalogKind, id string) (CatalogItem, error)
	CreateCatalogItem(ctx context.Context, kind CatalogKind, value CatalogItem) (CatalogItem, error)
	DeleteCatalogItem(ctx context.Context, kind CatalogKind, id string) error

	CreateIncident(ctx context.Context, value Incident) error
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error)
	ListIncidentsExpanded(ctx context.Context, filter IncidentFilter) ([]ExpandedIncident, error)
	GetIncidentExpanded(ctx context.Context, id string) (ExpandedIncident, error)
	UpdateIncident(ctx context.Context, id string, patch IncidentPatch) error
	DeleteIncident(ctx context.Context, id string) error
}
