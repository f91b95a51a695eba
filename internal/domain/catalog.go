package domain

import "fmt"

// CatalogKind is the closed set of reusable label collections. Adding a kind
// means touching every switch below, which is the point.
type CatalogKind int

const (
	KindBehavior CatalogKind = iota
	KindAntecedent
	KindConsequence
	KindIntervention
	KindLocation
)

// CatalogKinds lists every kind in display order.
func CatalogKinds() []CatalogKind {
	return []CatalogKind{KindBehavior, KindAntecedent, KindConsequence, KindIntervention, KindLocation}
}

// ParseCatalogKind validates an API type token before any store access.
func ParseCatalogKind(token string) (CatalogKind, error) {
	switch token {
	case "behaviors":
		return KindBehavior, nil
	case "antecedents":
		return KindAntecedent, nil
	case "consequences":
		return KindConsequence, nil
	case "interventions":
		return KindIntervention, nil
	case "locations":
		return KindLocation, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidCatalogKind, token)
}

func (k CatalogKind) String() string {
	switch k {
	case KindBehavior:
		return "behaviors"
	case KindAntecedent:
		return "antecedents"
	case KindConsequence:
		return "consequences"
	case KindIntervention:
		return "interventions"
	case KindLocation:
		return "locations"
	}
	return fmt.Sprintf("CatalogKind(%d)", int(k))
}
