// Package catalog provides the service-category catalog orders are
// posted against.
package catalog

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var ErrCategoryNotFound = errors.New("category not found")

// ErrUnknownCategory is returned when a provider registers an offering
// for a category that does not exist.
var ErrUnknownCategory = errors.New("unknown service category")

// Category is one bookable service type.
type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`
}

// Catalog is an in-memory category registry seeded at startup. It also
// tracks which categories each provider has registered to serve.
type Catalog struct {
	mu         sync.RWMutex
	categories map[string]*Category
	offerings  map[string]map[string]struct{} // provider ID -> category IDs
}

// New creates a catalog with the given categories.
func New(categories []Category) *Catalog {
	c := &Catalog{
		categories: make(map[string]*Category),
		offerings:  make(map[string]map[string]struct{}),
	}
	for i := range categories {
		cat := categories[i]
		c.categories[cat.ID] = &cat
	}
	return c
}

// Default returns the catalog seeded with the standard category set.
func Default() *Catalog {
	return New([]Category{
		{ID: "plumbing", Name: "Plumbing"},
		{ID: "electrical", Name: "Electrical"},
		{ID: "carpentry", Name: "Carpentry"},
		{ID: "painting", Name: "Painting"},
		{ID: "cleaning", Name: "Cleaning"},
		{ID: "moving", Name: "Moving"},
		{ID: "appliance-repair", Name: "Appliance Repair"},
		{ID: "hvac", Name: "Heating & Cooling"},
		{ID: "landscaping", Name: "Landscaping"},
		{ID: "handyman", Name: "General Handyman"},
	})
}

// CategoryExists reports whether the category is bookable.
func (c *Catalog) CategoryExists(ctx context.Context, categoryID string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.categories[categoryID]
	return ok, nil
}

// Get returns a category by ID.
func (c *Catalog) Get(ctx context.Context, categoryID string) (*Category, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cat, ok := c.categories[categoryID]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	cp := *cat
	return &cp, nil
}

// SetProviderServices replaces the provider's registered offerings.
// Every category must exist; an empty list clears the registration so
// the provider sees every category again.
func (c *Catalog) SetProviderServices(ctx context.Context, providerID string, categoryIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	set := make(map[string]struct{}, len(categoryIDs))
	for _, id := range categoryIDs {
		if _, ok := c.categories[id]; !ok {
			return ErrUnknownCategory
		}
		set[id] = struct{}{}
	}
	if len(set) == 0 {
		delete(c.offerings, providerID)
		return nil
	}
	c.offerings[providerID] = set
	return nil
}

// ServicesOfferedBy returns the category IDs the provider has registered
// to serve, sorted. Nil means the provider has not narrowed their
// offerings.
func (c *Catalog) ServicesOfferedBy(ctx context.Context, providerID string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set, ok := c.offerings[providerID]
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// List returns all categories sorted by ID.
func (c *Catalog) List(ctx context.Context) ([]Category, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Category, 0, len(c.categories))
	for _, cat := range c.categories {
		out = append(out, *cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
