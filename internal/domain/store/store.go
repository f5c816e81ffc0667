package store

import (
	"errors"
	"fmt"
	"sort"
)

var ErrNotFound = errors.New("store: not found")

// Validation problem reasons reported by Validate and Reserve. They are
// plain strings so a whole batch of problems can be reported together.
const (
	ReasonStoreNotFound     = "store not found"
	ReasonStoreNotActive    = "store not active"
	ReasonNotInStore        = "product not in store"
	ReasonInsufficientStock = "insufficient stock"
)

// Store owns the live inventory for one seller. Stock is only mutated
// through Reserve and Restore so the non-negativity invariant holds.
type Store struct {
	ID     string
	Name   string
	Active bool
	stock  map[string]int
}

func New(id, name string, stock map[string]int) *Store {
	s := &Store{
		ID:     id,
		Name:   name,
		Active: true,
		stock:  make(map[string]int, len(stock)),
	}
	for productID, qty := range stock {
		if qty > 0 {
			s.stock[productID] = qty
		}
	}
	return s
}

func (s *Store) Stock(productID string) (int, bool) {
	qty, ok := s.stock[productID]
	return qty, ok
}

// StockSnapshot returns a copy of the full stock mapping.
func (s *Store) StockSnapshot() map[string]int {
	out := make(map[string]int, len(s.stock))
	for productID, qty := range s.stock {
		out[productID] = qty
	}
	return out
}

func (s *Store) SetStock(productID string, quantity int) {
	if quantity < 0 {
		quantity = 0
	}
	s.stock[productID] = quantity
}

// Validate checks a batch of requested items against live stock. Every item
// is checked and every violation collected, so the caller gets a complete
// diagnostic instead of the first failure. An inactive store fails as a
// whole before per-item checks.
func (s *Store) Validate(items map[string]int) []string {
	if !s.Active {
		return []string{fmt.Sprintf("store %s: %s", s.ID, ReasonStoreNotActive)}
	}

	var problems []string
	for _, productID := range sortedProductIDs(items) {
		requested := items[productID]
		available, ok := s.stock[productID]
		if !ok {
			problems = append(problems, fmt.Sprintf("product %s: %s", productID, ReasonNotInStore))
			continue
		}
		if requested > available {
			problems = append(problems, fmt.Sprintf("product %s: %s (requested %d, available %d)",
				productID, ReasonInsufficientStock, requested, available))
		}
	}
	return problems
}

// Reserve decrements stock for the whole batch as one unit. If any item
// fails validation, nothing is decremented and the problems are returned.
func (s *Store) Reserve(items map[string]int) []string {
	if problems := s.Validate(items); len(problems) > 0 {
		return problems
	}
	for productID, qty := range items {
		s.stock[productID] -= qty
	}
	return nil
}

// Restore adds reserved quantities back after a canceled checkout.
func (s *Store) Restore(items map[string]int) {
	for productID, qty := range items {
		if qty > 0 {
			s.stock[productID] += qty
		}
	}
}

func (s *Store) Clone() *Store {
	clone := *s
	clone.stock = s.StockSnapshot()
	return &clone
}

func sortedProductIDs(items map[string]int) []string {
	ids := make([]string, 0, len(items))
	for productID := range items {
		ids = append(ids, productID)
	}
	sort.Strings(ids)
	return ids
}
