package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/opencaretools/abctrack/internal/domain"
)

// TrackerService owns the input validation and defaulting rules; persistence
// details stay behind the EntityStore port.
type TrackerService struct {
	store domain.EntityStore
}

func NewTrackerService(store domain.EntityStore) *TrackerService {
	return &TrackerService{store: store}
}

func (s *TrackerService) ListChildren(ctx context.Context) ([]domain.Child, error) {
	return s.store.ListChildren(ctx)
}

func (s *TrackerService) GetChild(ctx context.Context, id string) (domain.Child, error) {
	return s.store.GetChild(ctx, id)
}

func (s *TrackerService) CreateChild(ctx context.Context, value domain.Child) (domain.Child, error) {
	value.Name = strings.TrimSpace(value.Name)
	if value.Name == "" {
		return domain.Child{}, fmt.Errorf("%w: child name is required", domain.ErrValidation)
	}
	if value.ID == "" {
		value.ID = domain.NewID()
	}
	return s.store.CreateChild(ctx, value)
}

func (s *TrackerService) DeleteChild(ctx context.Context, id string) error {
	return s.store.DeleteChild(ctx, id)
}

func (s *TrackerService) ListCatalog(ctx context.Context, kind domain.CatalogKind) ([]domain.CatalogItem, error) {
	return s.store.ListCatalog(ctx, kind)
}

func (s *TrackerService) CreateCatalogItem(ctx context.Context, kind domain.CatalogKind, value domain.CatalogItem) (domain.CatalogItem, error) {
	value.Label = strings.TrimSpace(value.Label)
	if value.Label == "" {
		return domain.CatalogItem{}, fmt.Errorf("%w: label is required", domain.ErrValidation)
	}
	if value.ID == "" {
		value.ID = domain.NewID()
	}
	return s.store.CreateCatalogItem(ctx, kind, value)
}

func (s *TrackerService) DeleteCatalogItem(ctx context.Context, kind domain.CatalogKind, id string) error {
	return s.store.DeleteCatalogItem(ctx, kind, id)
}

func (s *TrackerService) CreateIncident(ctx context.Context, value domain.Incident) (domain.ExpandedIncident, error) {
	if value.ChildID == "" {
		return domain.ExpandedIncident{}, fmt.Errorf("%w: childId is required", domain.ErrValidation)
	}
	if _, err := s.store.GetChild(ctx, value.ChildID); err != nil {
		return domain.ExpandedIncident{}, err
	}
	if value.Timestamp.IsZero() {
		return domain.ExpandedIncident{}, fmt.Errorf("%w: timestamp is required", domain.ErrValidation)
	}
	if value.Intensity < 1 || value.Intensity > 5 {
		return domain.ExpandedIncident{}, fmt.Errorf("%w: intensity must be between 1 and 5", domain.ErrValidation)
	}
	if value.DurationSec != nil && *value.DurationSec < 0 {
		return domain.ExpandedIncident{}, fmt.Errorf("%w: durationSec must not be negative", domain.ErrValidation)
	}
	if value.LatencySec != nil && *value.LatencySec < 0 {
		return domain.ExpandedIncident{}, fmt.Errorf("%w: latencySec must not be negative", domain.ErrValidation)
	}
	if value.FunctionHypothesis == "" {
		value.FunctionHypothesis = domain.FunctionUnknown
	}
	if !value.FunctionHypothesis.Valid() {
		return domain.ExpandedIncident{}, fmt.Errorf("%w: unknown functionHypothesis %q", domain.ErrValidation, value.FunctionHypothesis)
	}
	for _, att := range value.Attachments {
		if !domain.ValidAttachmentType(att.Type) {
			return domain.ExpandedIncident{}, fmt.Errorf("%w: unknown attachment type %q", domain.ErrValidation, att.Type)
		}
	}
	if value.LocationID != nil {
		if *value.LocationID == "" {
			value.LocationID = nil
		} else if _, err := s.store.GetCatalogItem(ctx, domain.KindLocation, *value.LocationID); err != nil {
			return domain.ExpandedIncident{}, err
		}
	}
	for _, links := range []struct {
		kind domain.CatalogKind
		ids  []string
	}{
		{domain.KindBehavior, value.BehaviorIDs},
		{domain.KindAntecedent, value.AntecedentIDs},
		{domain.KindConsequence, value.ConsequenceIDs},
		{domain.KindIntervention, value.InterventionIDs},
	} {
		if err := s.checkCatalogIDs(ctx, links.kind, links.ids); err != nil {
			return domain.ExpandedIncident{}, err
		}
	}
	if value.Tags == nil {
		value.Tags = []string{}
	}
	if value.ID == "" {
		value.ID = domain.NewID()
	}
	if err := s.store.CreateIncident(ctx, value); err != nil {
		return domain.ExpandedIncident{}, err
	}
	return s.store.GetIncidentExpanded(ctx, value.ID)
}

func (s *TrackerService) ListIncidents(ctx context.Context, filter domain.IncidentFilter) ([]domain.ExpandedIncident, error) {
	return s.store.ListIncidentsExpanded(ctx, filter)
}

func (s *TrackerService) GetIncident(ctx context.Context, id string) (domain.ExpandedIncident, error) {
	return s.store.GetIncidentExpanded(ctx, id)
}

func (s *TrackerService) UpdateIncident(ctx context.Context, id string, patch domain.IncidentPatch) (domain.ExpandedIncident, error) {
	if patch.Intensity != nil && (*patch.Intensity < 1 || *patch.Intensity > 5) {
		return domain.ExpandedIncident{}, fmt.Errorf("%w: intensity must be between 1 and 5", domain.ErrValidation)
	}
	if patch.DurationSec != nil && *patch.DurationSec < 0 {
		return domain.ExpandedIncident{}, fmt.Errorf("%w: durationSec must not be negative", domain.ErrValidation)
	}
	if patch.LatencySec != nil && *patch.LatencySec < 0 {
		return domain.ExpandedIncident{}, fmt.Errorf("%w: latencySec must not be negative", domain.ErrValidation)
	}
	if patch.FunctionHypothesis != nil && !patch.FunctionHypothesis.Valid() {
		return domain.ExpandedIncident{}, fmt.Errorf("%w: unknown functionHypothesis %q", domain.ErrValidation, *patch.FunctionHypothesis)
	}
	if patch.LocationID != nil && *patch.LocationID != "" {
		if _, err := s.store.GetCatalogItem(ctx, domain.KindLocation, *patch.LocationID); err != nil {
			return domain.ExpandedIncident{}, err
		}
	}
	for _, links := range []struct {
		kind domain.CatalogKind
		ids  *[]string
	}{
		{domain.KindBehavior, patch.BehaviorIDs},
		{domain.KindAntecedent, patch.AntecedentIDs},
		{domain.KindConsequence, patch.ConsequenceIDs},
		{domain.KindIntervention, patch.InterventionIDs},
	} {
		if links.ids == nil {
			continue
		}
		if err := s.checkCatalogIDs(ctx, links.kind, *links.ids); err != nil {
			return domain.ExpandedIncident{}, err
		}
	}
	if err := s.store.UpdateIncident(ctx, id, patch); err != nil {
		return domain.ExpandedIncident{}, err
	}
	return s.store.GetIncidentExpanded(ctx, id)
}

func (s *TrackerService) DeleteIncident(ctx context.Context, id string) error {
	return s.store.DeleteIncident(ctx, id)
}

func (s *TrackerService) checkCatalogIDs(ctx context.Context, kind domain.CatalogKind, ids []string) error {
	for _, id := range ids {
		if _, err := s.store.GetCatalogItem(ctx, kind, id); err != nil {
			return err
		}
	}
	return nil
}
