package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opencaretools/abctrack/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func (s *Store) ListChildren(ctx context.Context) ([]domain.Child, error) {
	rows := make([]ChildModel, 0)
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Child, 0, len(rows))
	for _, m := range rows {
		result = append(result, childToDomain(m))
	}
	return result, nil
}

func (s *Store) GetChild(ctx context.Context, id string) (domain.Child, error) {
	var m ChildModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Child{}, fmt.Errorf("%w: child %s", domain.ErrNotFound, id)
		}
		return domain.Child{}, err
	}
	return childToDomain(m), nil
}

func (s *Store) CreateChild(ctx context.Context, value domain.Child) (domain.Child, error) {
	m := ChildModel{ID: value.ID, Name: value.Name, DOB: value.DOB, AvatarURL: value.AvatarURL}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Child{}, err
	}
	return childToDomain(m), nil
}

// DeleteChild refuses to remove a child that incidents still reference.
// Deleting a missing id is a silent success.
func (s *Store) DeleteChild(ctx context.Context, id string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&IncidentModel{}).Where("child_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: child %s is referenced by %d incidents", domain.ErrConflict, id, count)
	}
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&ChildModel{}).Error
}

func (s *Store) ListCatalog(ctx context.Context, kind domain.CatalogKind) ([]domain.CatalogItem, error) {
	table, _ := catalogTable(kind)
	rows := make([]CatalogItemModel, 0)
	if err := s.db.WithContext(ctx).Table(table).Order("label ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.CatalogItem, 0, len(rows))
	for _, m := range rows {
		result = append(result, catalogItemToDomain(m))
	}
	return result, nil
}

func (s *Store) GetCatalogItem(ctx context.Context, kind domain.CatalogKind, id string) (domain.CatalogItem, error) {
	table, _ := catalogTable(kind)
	var m CatalogItemModel
	if err := s.db.WithContext(ctx).Table(table).Where("id = ?", id).Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.CatalogItem{}, fmt.Errorf("%w: %s item %s", domain.ErrNotFound, kind, id)
		}
		return domain.CatalogItem{}, err
	}
	return catalogItemToDomain(m), nil
}

func (s *Store) CreateCatalogItem(ctx context.Context, kind domain.CatalogKind, value domain.CatalogItem) (domain.CatalogItem, error) {
	table, _ := catalogTable(kind)
	now := time.Now().UTC()
	m := CatalogItemModel{ID: value.ID, Label: value.Label, CreatedAt: now, UpdatedAt: now}
	if err := s.db.WithContext(ctx).Table(table).Create(&m).Error; err != nil {
		return domain.CatalogItem{}, err
	}
	return catalogItemToDomain(m), nil
}

// DeleteCatalogItem removes the item together with its incident link rows;
// location references held by incidents are cleared instead. Incidents
// themselves are left intact.
func (s *Store) DeleteCatalogItem(ctx context.Context, kind domain.CatalogKind, id string) error {
	table, linkTable := catalogTable(kind)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if kind == domain.KindLocation {
			if err := tx.Model(&IncidentModel{}).Where("location_id = ?", id).Update("location_id", nil).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Table(linkTable).Where("item_id = ?", id).Delete(&IncidentLinkModel{}).Error; err != nil {
				return err
			}
		}
		return tx.Table(table).Where("id = ?", id).Delete(&CatalogItemModel{}).Error
	})
}

func (s *Store) CreateIncident(ctx context.Context, value domain.Incident) error {
	m, err := incidentToModel(value)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		for _, kind := range linkedKinds() {
			if err := insertLinks(tx, kind, value.ID, linkIDsFor(value, kind)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListIncidents(ctx context.Context, filter domain.IncidentFilter) ([]domain.Incident, error) {
	models, err := s.queryIncidents(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.attachLinkIDs(ctx, models)
}

func (s *Store) ListIncidentsExpanded(ctx context.Context, filter domain.IncidentFilter) ([]domain.ExpandedIncident, error) {
	models, err := s.queryIncidents(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, models)
}

func (s *Store) GetIncidentExpanded(ctx context.Context, id string) (domain.ExpandedIncident, error) {
	var m IncidentModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ExpandedIncident{}, fmt.Errorf("%w: incident %s", domain.ErrNotFound, id)
		}
		return domain.ExpandedIncident{}, err
	}
	expanded, err := s.expand(ctx, []IncidentModel{m})
	if err != nil {
		return domain.ExpandedIncident{}, err
	}
	return expanded[0], nil
}

// UpdateIncident merges the patch into the stored row: provided fields
// overwrite, omitted fields stay. Provided link-id arrays replace the link
// set wholesale.
func (s *Store) UpdateIncident(ctx context.Context, id string, patch domain.IncidentPatch) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m IncidentModel
		if err := tx.Where("id = ?", id).Take(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: incident %s", domain.ErrNotFound, id)
			}
			return err
		}

		updates, err := patchUpdates(patch)
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			updates["updated_at"] = time.Now().UTC()
			if err := tx.Model(&IncidentModel{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return err
			}
		}

		for _, rl := range []struct {
			kind domain.CatalogKind
			ids  *[]string
		}{
			{domain.KindBehavior, patch.BehaviorIDs},
			{domain.KindAntecedent, patch.AntecedentIDs},
			{domain.KindConsequence, patch.ConsequenceIDs},
			{domain.KindIntervention, patch.InterventionIDs},
		} {
			if rl.ids == nil {
				continue
			}
			_, linkTable := catalogTable(rl.kind)
			if err := tx.Table(linkTable).Where("incident_id = ?", id).Delete(&IncidentLinkModel{}).Error; err != nil {
				return err
			}
			if err := insertLinks(tx, rl.kind, id, *rl.ids); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteIncident is idempotent: removing an id that is already gone succeeds.
func (s *Store) DeleteIncident(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, kind := range linkedKinds() {
			_, linkTable := catalogTable(kind)
			if err := tx.Table(linkTable).Where("incident_id = ?", id).Delete(&IncidentLinkModel{}).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", id).Delete(&IncidentModel{}).Error
	})
}

func (s *Store) queryIncidents(ctx context.Context, filter domain.IncidentFilter) ([]IncidentModel, error) {
	q := s.db.WithContext(ctx).Model(&IncidentModel{})
	if filter.ChildID != nil {
		q = q.Where("child_id = ?", *filter.ChildID)
	}
	if filter.From != nil {
		q = q.Where("timestamp >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("timestamp < ?", *filter.To)
	}
	rows := make([]IncidentModel, 0)
	if err := q.Order("timestamp DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) attachLinkIDs(ctx context.Context, models []IncidentModel) ([]domain.Incident, error) {
	result := make([]domain.Incident, 0, len(models))
	ids := make([]string, 0, len(models))
	for _, m := range models {
		incident, err := incidentToDomain(m)
		if err != nil {
			return nil, err
		}
		result = append(result, incident)
		ids = append(ids, m.ID)
	}
	if len(ids) == 0 {
		return result, nil
	}

	index := make(map[string]int, len(result))
	for i := range result {
		index[result[i].ID] = i
	}
	for _, kind := range linkedKinds() {
		_, linkTable := catalogTable(kind)
		links := make([]IncidentLinkModel, 0)
		if err := s.db.WithContext(ctx).Table(linkTable).
			Where("incident_id IN ?", ids).
			Order("incident_id, ord").
			Find(&links).Error; err != nil {
			return nil, err
		}
		for _, link := range links {
			i, ok := index[link.IncidentID]
			if !ok {
				continue
			}
			setLinkIDs(&result[i], kind, append(linkIDsFor(result[i], kind), link.ItemID))
		}
	}
	return result, nil
}

type linkItemRow struct {
	IncidentID string
	ID         string
	Label      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// expand joins each incident's foreign keys into embedded records.
func (s *Store) expand(ctx context.Context, models []IncidentModel) ([]domain.ExpandedIncident, error) {
	result := make([]domain.ExpandedIncident, 0, len(models))
	ids := make([]string, 0, len(models))
	childIDs := make([]string, 0, len(models))
	locationIDs := make([]string, 0)
	for _, m := range models {
		incident, err := incidentToDomain(m)
		if err != nil {
			return nil, err
		}
		result = append(result, domain.ExpandedIncident{
			Incident:      incident,
			Behaviors:     []domain.CatalogItem{},
			Antecedents:   []domain.CatalogItem{},
			Consequences:  []domain.CatalogItem{},
			Interventions: []domain.CatalogItem{},
		})
		ids = append(ids, m.ID)
		childIDs = append(childIDs, m.ChildID)
		if m.LocationID != nil {
			locationIDs = append(locationIDs, *m.LocationID)
		}
	}
	if len(ids) == 0 {
		return result, nil
	}

	children := make([]ChildModel, 0)
	if err := s.db.WithContext(ctx).Where("id IN ?", childIDs).Find(&children).Error; err != nil {
		return nil, err
	}
	childByID := make(map[string]domain.Child, len(children))
	for _, c := range children {
		childByID[c.ID] = childToDomain(c)
	}

	locationByID := make(map[string]domain.CatalogItem)
	if len(locationIDs) > 0 {
		locations := make([]CatalogItemModel, 0)
		if err := s.db.WithContext(ctx).Table("locations").Where("id IN ?", locationIDs).Find(&locations).Error; err != nil {
			return nil, err
		}
		for _, l := range locations {
			locationByID[l.ID] = catalogItemToDomain(l)
		}
	}

	index := make(map[string]int, len(result))
	for i := range result {
		index[result[i].ID] = i
	}
	for _, kind := range linkedKinds() {
		table, linkTable := catalogTable(kind)
		rows := make([]linkItemRow, 0)
		query := fmt.Sprintf(`
SELECT l.incident_id,
       c.id,
       c.label,
       c.created_at,
       c.updated_at
FROM %s l
JOIN %s c ON c.id = l.item_id
WHERE l.incident_id IN ?
ORDER BY l.incident_id, l.ord
`, linkTable, table)
		if err := s.db.WithContext(ctx).Raw(query, ids).Scan(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			i, ok := index[row.IncidentID]
			if !ok {
				continue
			}
			item := domain.CatalogItem{ID: row.ID, Label: row.Label, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt}
			appendLinkItem(&result[i], kind, item)
		}
	}

	for i := range result {
		result[i].Child = childByID[result[i].ChildID]
		if result[i].LocationID != nil {
			if loc, ok := locationByID[*result[i].LocationID]; ok {
				l := loc
				result[i].Location = &l
			}
		}
	}
	return result, nil
}

func insertLinks(tx *gorm.DB, kind domain.CatalogKind, incidentID string, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	_, linkTable := catalogTable(kind)
	rows := make([]IncidentLinkModel, 0, len(itemIDs))
	for i, itemID := range itemIDs {
		rows = append(rows, IncidentLinkModel{IncidentID: incidentID, ItemID: itemID, Ord: i})
	}
	return tx.Table(linkTable).Create(&rows).Error
}

func linkIDsFor(value domain.Incident, kind domain.CatalogKind) []string {
	switch kind {
	case domain.KindBehavior:
		return value.BehaviorIDs
	case domain.KindAntecedent:
		return value.AntecedentIDs
	case domain.KindConsequence:
		return value.ConsequenceIDs
	case domain.KindIntervention:
		return value.InterventionIDs
	}
	return nil
}

func setLinkIDs(value *domain.Incident, kind domain.CatalogKind, ids []string) {
	switch kind {
	case domain.KindBehavior:
		value.BehaviorIDs = ids
	case domain.KindAntecedent:
		value.AntecedentIDs = ids
	case domain.KindConsequence:
		value.ConsequenceIDs = ids
	case domain.KindIntervention:
		value.InterventionIDs = ids
	}
}

func appendLinkItem(value *domain.ExpandedIncident, kind domain.CatalogKind, item domain.CatalogItem) {
	switch kind {
	case domain.KindBehavior:
		value.Behaviors = append(value.Behaviors, item)
		value.BehaviorIDs = append(value.BehaviorIDs, item.ID)
	case domain.KindAntecedent:
		value.Antecedents = append(value.Antecedents, item)
		value.AntecedentIDs = append(value.AntecedentIDs, item.ID)
	case domain.KindConsequence:
		value.Consequences = append(value.Consequences, item)
		value.ConsequenceIDs = append(value.ConsequenceIDs, item.ID)
	case domain.KindIntervention:
		value.Interventions = append(value.Interventions, item)
		value.InterventionIDs = append(value.InterventionIDs, item.ID)
	}
}

func patchUpdates(patch domain.IncidentPatch) (map[string]any, error) {
	updates := map[string]any{}
	if patch.Timestamp != nil {
		updates["timestamp"] = *patch.Timestamp
	}
	if patch.BehaviorText != nil {
		updates["behavior_text"] = *patch.BehaviorText
	}
	if patch.Intensity != nil {
		updates["intensity"] = *patch.Intensity
	}
	if patch.DurationSec != nil {
		updates["duration_sec"] = *patch.DurationSec
	}
	if patch.LatencySec != nil {
		updates["latency_sec"] = *patch.LatencySec
	}
	if patch.LocationID != nil {
		if *patch.LocationID == "" {
			updates["location_id"] = nil
		} else {
			updates["location_id"] = *patch.LocationID
		}
	}
	if patch.LocationText != nil {
		updates["location_text"] = *patch.LocationText
	}
	if patch.FunctionHypothesis != nil {
		updates["function_hypothesis"] = string(*patch.FunctionHypothesis)
	}
	if patch.Notes != nil {
		updates["notes"] = *patch.Notes
	}
	if patch.Tags != nil {
		raw, err := marshalColumn(*patch.Tags)
		if err != nil {
			return nil, err
		}
		updates["tags"] = raw
	}
	if patch.SettingEvents.Set {
		if patch.SettingEvents.Value == nil {
			updates["setting_events"] = nil
		} else {
			raw, err := marshalColumn(patch.SettingEvents.Value)
			if err != nil {
				return nil, err
			}
			updates["setting_events"] = raw
		}
	}
	return updates, nil
}

func childToDomain(m ChildModel) domain.Child {
	return domain.Child{ID: m.ID, Name: m.Name, DOB: m.DOB, AvatarURL: m.AvatarURL, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func catalogItemToDomain(m CatalogItemModel) domain.CatalogItem {
	return domain.CatalogItem{ID: m.ID, Label: m.Label, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func incidentToModel(value domain.Incident) (IncidentModel, error) {
	tags, err := marshalColumn(value.Tags)
	if err != nil {
		return IncidentModel{}, err
	}
	settingEvents, err := marshalColumn(value.SettingEvents)
	if err != nil {
		return IncidentModel{}, err
	}
	attachments, err := marshalColumn(value.Attachments)
	if err != nil {
		return IncidentModel{}, err
	}
	return IncidentModel{
		ID:                 value.ID,
		ChildID:            value.ChildID,
		Timestamp:          value.Timestamp,
		BehaviorText:       value.BehaviorText,
		Intensity:          value.Intensity,
		DurationSec:        value.DurationSec,
		LatencySec:         value.LatencySec,
		LocationID:         value.LocationID,
		LocationText:       value.LocationText,
		FunctionHypothesis: string(value.FunctionHypothesis),
		Notes:              value.Notes,
		Tags:               tags,
		SettingEvents:      settingEvents,
		Attachments:        attachments,
	}, nil
}

func incidentToDomain(m IncidentModel) (domain.Incident, error) {
	incident := domain.Incident{
		ID:                 m.ID,
		ChildID:            m.ChildID,
		Timestamp:          m.Timestamp,
		BehaviorText:       m.BehaviorText,
		BehaviorIDs:        []string{},
		AntecedentIDs:      []string{},
		ConsequenceIDs:     []string{},
		InterventionIDs:    []string{},
		Intensity:          m.Intensity,
		DurationSec:        m.DurationSec,
		LatencySec:         m.LatencySec,
		LocationID:         m.LocationID,
		LocationText:       m.LocationText,
		FunctionHypothesis: domain.FunctionHypothesis(m.FunctionHypothesis),
		Notes:              m.Notes,
		Tags:               []string{},
		Attachments:        []domain.Attachment{},
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	if len(m.Tags) > 0 {
		if err := json.Unmarshal(m.Tags, &incident.Tags); err != nil {
			return domain.Incident{}, err
		}
	}
	if len(m.SettingEvents) > 0 {
		var se domain.SettingEvents
		if err := json.Unmarshal(m.SettingEvents, &se); err != nil {
			return domain.Incident{}, err
		}
		incident.SettingEvents = &se
	}
	if len(m.Attachments) > 0 {
		if err := json.Unmarshal(m.Attachments, &incident.Attachments); err != nil {
			return domain.Incident{}, err
		}
	}
	return incident, nil
}

// marshalColumn stores nil pointers and empty values as SQL NULL.
func marshalColumn(v any) (datatypes.JSON, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []string:
		if t == nil {
			return nil, nil
		}
	case []domain.Attachment:
		if t == nil {
			return nil, nil
		}
	case *domain.SettingEvents:
		if t == nil {
			return nil, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
