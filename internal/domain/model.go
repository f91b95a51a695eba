package domain

import (
	"encoding/json"
	"time"
)

type Child struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	DOB       *time.Time `json:"dob,omitempty"`
	AvatarURL string     `json:"avatarUrl,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type CatalogItem struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FunctionHypothesis is the caregiver's guess at the behavioral motive.
type FunctionHypothesis string

const (
	FunctionEscape    FunctionHypothesis = "escape"
	FunctionAttention FunctionHypothesis = "attention"
	FunctionTangible  FunctionHypothesis = "tangible"
	FunctionSensory   FunctionHypothesis = "sensory"
	FunctionUnknown   FunctionHypothesis = "unknown"
)

func (f FunctionHypothesis) Valid() bool {
	switch f {
	case FunctionEscape, FunctionAttention, FunctionTangible, FunctionSensory, FunctionUnknown:
		return true
	}
	return false
}

type SettingEvents struct {
	SleepQuality   string `json:"sleepQuality,omitempty"`
	Illness        bool   `json:"illness,omitempty"`
	Hunger         bool   `json:"hunger,omitempty"`
	ScheduleChange bool   `json:"scheduleChange,omitempty"`
}

type Attachment struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URI  string `json:"uri"`
}

func ValidAttachmentType(t string) bool {
	switch t {
	case "photo", "video", "audio":
		return true
	}
	return false
}

// SettingEventsPatch separates three update intents: the zero value leaves
// the stored record alone, an explicit JSON null clears it, and an object
// replaces it.
type SettingEventsPatch struct {
	Set   bool
	Value *SettingEvents
}

func (p *SettingEventsPatch) UnmarshalJSON(data []byte) error {
	p.Set = true
	if string(data) == "null" {
		p.Value = nil
		return nil
	}
	return json.Unmarshal(data, &p.Value)
}

func (p SettingEventsPatch) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Value)
}

// Incident is a single logged behavioral event tied to one child. Catalog
// references are held by id only; resolution happens in ExpandedIncident.
type Incident struct {
	ID                 string             `json:"id"`
	ChildID            string             `json:"childId"`
	Timestamp          time.Time          `json:"timestamp"`
	BehaviorText       string             `json:"behaviorText,omitempty"`
	BehaviorIDs        []string           `json:"behaviorIds"`
	AntecedentIDs      []string           `json:"antecedentIds"`
	ConsequenceIDs     []string           `json:"consequenceIds"`
	InterventionIDs    []string           `json:"interventionIds"`
	Intensity          int                `json:"intensity"`
	DurationSec        *int               `json:"durationSec,omitempty"`
	LatencySec         *int               `json:"latencySec,omitempty"`
	LocationID         *string            `json:"locationId,omitempty"`
	LocationText       string             `json:"locationText,omitempty"`
	FunctionHypothesis FunctionHypothesis `json:"functionHypothesis"`
	Notes              string             `json:"notes,omitempty"`
	Tags               []string           `json:"tags"`
	SettingEvents      *SettingEvents     `json:"settingEvents,omitempty"`
	Attachments        []Attachment       `json:"attachments"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// ExpandedIncident carries the incident with its foreign keys resolved into
// embedded records.
type ExpandedIncident struct {
	Incident
	Child         Child         `json:"child"`
	Location      *CatalogItem  `json:"location,omitempty"`
	Behaviors     []CatalogItem `json:"behaviors"`
	Antecedents   []CatalogItem `json:"antecedents"`
	Consequences  []CatalogItem `json:"consequences"`
	Interventions []CatalogItem `json:"interventions"`
}

// IncidentPatch holds a partial update. Nil fields are left untouched; link
// id slices, when present, replace the stored link set. SettingEvents
// additionally accepts an explicit null to clear the stored record.
type IncidentPatch struct {
	Timestamp          *time.Time          `json:"timestamp"`
	BehaviorText       *string             `json:"behaviorText"`
	Intensity          *int                `json:"intensity"`
	DurationSec        *int                `json:"durationSec"`
	LatencySec         *int                `json:"latencySec"`
	LocationID         *string             `json:"locationId"`
	LocationText       *string             `json:"locationText"`
	FunctionHypothesis *FunctionHypothesis `json:"functionHypothesis"`
	Notes              *string             `json:"notes"`
	Tags               *[]string           `json:"tags"`
	SettingEvents      SettingEventsPatch  `json:"settingEvents"`
	BehaviorIDs        *[]string           `json:"behaviorIds"`
	AntecedentIDs      *[]string           `json:"antecedentIds"`
	ConsequenceIDs     *[]string           `json:"consequenceIds"`
	InterventionIDs    *[]string           `json:"interventionIds"`
}

// IncidentFilter narrows incident listings. Nil fields match everything.
type IncidentFilter struct {
	ChildID *string
	From    *time.Time
	To      *time.Time
}

type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

type ReportSummary struct {
	Total       int            `json:"total"`
	ByHour      [24]int        `json:"byHour"`
	ByIntensity [5]int         `json:"byIntensity"`
	ByFunction  map[string]int `json:"byFunction"`
	ByDay       []DayCount     `json:"byDay"`
}
