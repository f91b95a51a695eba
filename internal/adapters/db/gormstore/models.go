package gormstore

import (
	"time"

	"github.com/opencaretools/abctrack/internal/domain"
	"gorm.io/datatypes"
)

type ChildModel struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null;index"`
	DOB       *time.Time
	AvatarURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ChildModel) TableName() string { return "children" }

// CatalogItemModel is shared by all five catalog tables; the concrete table
// is always set with db.Table(catalogTable(kind)).
type CatalogItemModel struct {
	ID        string `gorm:"primaryKey"`
	Label     string `gorm:"not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type IncidentModel struct {
	ID                 string    `gorm:"primaryKey"`
	ChildID            string    `gorm:"not null;index"`
	Timestamp          time.Time `gorm:"not null;index"`
	BehaviorText       string
	Intensity          int `gorm:"not null;index"`
	DurationSec        *int
	LatencySec         *int
	LocationID         *string `gorm:"index"`
	LocationText       string
	FunctionHypothesis string `gorm:"not null;default:'unknown'"`
	Notes              string
	Tags               datatypes.JSON
	SettingEvents      datatypes.JSON
	Attachments        datatypes.JSON
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (IncidentModel) TableName() string { return "incidents" }

// IncidentLinkModel is one row of a many-to-many link table. Ord preserves
// the submission order so expanded arrays round-trip deterministically.
type IncidentLinkModel struct {
	IncidentID string `gorm:"primaryKey"`
	ItemID     string `gorm:"primaryKey"`
	Ord        int    `gorm:"not null;default:0"`
}

// catalogTable maps a kind to its backing table and, for the linked kinds,
// its incident link table. Locations are referenced by a single foreign key
// and have no link table.
func catalogTable(kind domain.CatalogKind) (table, linkTable string) {
	switch kind {
	case domain.KindBehavior:
		return "behaviors", "incident_behaviors"
	case domain.KindAntecedent:
		return "antecedents", "incident_antecedents"
	case domain.KindConsequence:
		return "consequences", "incident_consequences"
	case domain.KindIntervention:
		return "interventions", "incident_interventions"
	case domain.KindLocation:
		return "locations", ""
	}
	return "", ""
}

// linkedKinds are the kinds carried through incident link tables.
func linkedKinds() []domain.CatalogKind {
	return []domain.CatalogKind{
		domain.KindBehavior,
		domain.KindAntecedent,
		domain.KindConsequence,
		domain.KindIntervention,
	}
}
