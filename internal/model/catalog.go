package model

import "github.com/google/uuid"

// Catalog is an immutable snapshot of the entity list. While IsLoading is
// true the entities are those of the previous snapshot and may be stale.
type Catalog struct {
	Entities   []*Entity `json:"entities"`
	IsLoading  bool      `json:"isLoading"`
	Generation uint64    `json:"generation"`
	BaseURL    string    `json:"baseUrl"`
}

// Len returns the number of entities.
func (c Catalog) Len() int {
	return len(c.Entities)
}

// IsEmpty reports whether the catalog has no entities.
func (c Catalog) IsEmpty() bool {
	return len(c.Entities) == 0
}

// FindByName returns the first entity whose name equals name exactly.
func (c Catalog) FindByName(name string) *Entity {
	for _, e := range c.Entities {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// FindByID returns the entity with the given identity.
func (c Catalog) FindByID(id uuid.UUID) *Entity {
	for _, e := range c.Entities {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Filter returns the entities tagged with region that match query, in
// catalog order. An empty region means any region.
func (c Catalog) Filter(region Region, query string) []*Entity {
	out := make([]*Entity, 0, len(c.Entities))
	for _, e := range c.Entities {
		if region != "" && !e.HasRegion(region) {
			continue
		}
		if !e.MatchesQuery(query) {
			continue
		}
		out = append(out, e)
	}
	return out
}
