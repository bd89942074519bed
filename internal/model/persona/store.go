package persona

import "strings"

// Store exposes persona lookup to handlers and the turn pipeline.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore keeps the persona catalogue in memory; personas never change at runtime.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns the personas in catalogue order.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier. Display names such as
// "Gentle Listener" are accepted as well so CLI users can pass either.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	needle := strings.TrimSpace(id)
	for _, item := range s.items {
		if item.ID == needle || strings.EqualFold(item.Name, needle) {
			return item, true
		}
	}
	return Persona{}, false
}
