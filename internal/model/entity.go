package model

import (
	"strings"

	"github.com/google/uuid"
)

// UnknownName is the display name of an entity whose record has no name.
const UnknownName = "Unknown"

// Entity is one enriched catalog entry. Fields are read-only once the
// entity is constructed; a refresh replaces entities rather than editing them.
type Entity struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	ScientificName   *string   `json:"scientificName"`
	Regions          []Region  `json:"regions"`
	ShortDescription string    `json:"shortDescription"`
	Description      string    `json:"description"`
	CoolFacts        *string   `json:"coolFacts"`
	FindThisBird     *string   `json:"findThisBird"`
	Images           []string  `json:"images"`
	Videos           []string  `json:"videos"`
	Sounds           []string  `json:"sounds"`
}

// EntityParams carries the resolved values for NewEntity.
type EntityParams struct {
	Name             string
	ScientificName   *string
	Regions          []Region
	ShortDescription string
	Description      string
	CoolFacts        *string
	FindThisBird     *string
	Images           []string
	Videos           []string
	Sounds           []string
}

// NewEntity builds an entity with a fresh identity. An empty region list
// becomes {All} and an empty name becomes UnknownName. Nil media slices
// are normalized to empty ones.
func NewEntity(p EntityParams) *Entity {
	name := p.Name
	if name == "" {
		name = UnknownName
	}
	regions := p.Regions
	if len(regions) == 0 {
		regions = []Region{RegionAll}
	}

	return &Entity{
		ID:               uuid.New(),
		Name:             name,
		ScientificName:   p.ScientificName,
		Regions:          regions,
		ShortDescription: p.ShortDescription,
		Description:      p.Description,
		CoolFacts:        p.CoolFacts,
		FindThisBird:     p.FindThisBird,
		Images:           nonNil(p.Images),
		Videos:           nonNil(p.Videos),
		Sounds:           nonNil(p.Sounds),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// SameAs reports identity equality. Two entities built from identical
// records are still different entities.
func (e *Entity) SameAs(other *Entity) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.ID == other.ID
}

// HasRegion reports whether the entity is tagged with r. Every entity
// matches RegionAll.
func (e *Entity) HasRegion(r Region) bool {
	if r == RegionAll {
		return true
	}
	for _, have := range e.Regions {
		if have == r {
			return true
		}
	}
	return false
}

// MatchesQuery does a case-insensitive substring match on the name and the
// scientific name. An empty query matches everything.
func (e *Entity) MatchesQuery(query string) bool {
	q := strings.TrimSpace(query)
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	if strings.Contains(strings.ToLower(e.Name), q) {
		return true
	}
	return e.ScientificName != nil && strings.Contains(strings.ToLower(*e.ScientificName), q)
}
