package cart

import "errors"

var (
	ErrNotFound        = errors.New("cart: not found")
	ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")
)

// Basket holds the selections for a single store within a cart.
type Basket struct {
	storeID string
	items   map[string]int
}

func NewBasket(storeID string) *Basket {
	return &Basket{
		storeID: storeID,
		items:   make(map[string]int),
	}
}

func (b *Basket) StoreID() string { return b.storeID }

// Add increments the quantity for a product. Adding to an existing product
// accumulates, it does not overwrite.
func (b *Basket) Add(productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	b.items[productID] += quantity
	return nil
}

// SetQuantity replaces the quantity for a product. Zero removes the entry,
// a negative value is rejected.
func (b *Basket) SetQuantity(productID string, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	if quantity == 0 {
		delete(b.items, productID)
		return nil
	}
	b.items[productID] = quantity
	return nil
}

func (b *Basket) Remove(productID string) {
	delete(b.items, productID)
}

func (b *Basket) Quantity(productID string) int {
	return b.items[productID]
}

// Items returns a copy of the basket contents; mutating the result never
// affects the basket.
func (b *Basket) Items() map[string]int {
	out := make(map[string]int, len(b.items))
	for id, qty := range b.items {
		out[id] = qty
	}
	return out
}

func (b *Basket) IsEmpty() bool { return len(b.items) == 0 }

func (b *Basket) ItemCount() int {
	total := 0
	for _, qty := range b.items {
		total += qty
	}
	return total
}

// Cart aggregates per-store baskets for one buyer. Empty baskets are pruned
// so a cart never carries a store with no items.
type Cart struct {
	baskets map[string]*Basket
}

func New() *Cart {
	return &Cart{baskets: make(map[string]*Basket)}
}

func (c *Cart) AddItem(storeID, productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	basket, ok := c.baskets[storeID]
	if !ok {
		basket = NewBasket(storeID)
		c.baskets[storeID] = basket
	}
	return basket.Add(productID, quantity)
}

// ChangeQuantity sets the quantity for a (store, product) pair. A missing
// store is a no-op rather than an error, which keeps guest flows simple.
func (c *Cart) ChangeQuantity(storeID, productID string, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	basket, ok := c.baskets[storeID]
	if !ok {
		return nil
	}
	if err := basket.SetQuantity(productID, quantity); err != nil {
		return err
	}
	c.prune(storeID)
	return nil
}

func (c *Cart) RemoveItem(storeID, productID string) {
	basket, ok := c.baskets[storeID]
	if !ok {
		return
	}
	basket.Remove(productID)
	c.prune(storeID)
}

func (c *Cart) Clear() {
	c.baskets = make(map[string]*Basket)
}

func (c *Cart) IsEmpty() bool { return len(c.baskets) == 0 }

func (c *Cart) TotalItemCount() int {
	total := 0
	for _, basket := range c.baskets {
		total += basket.ItemCount()
	}
	return total
}

// Baskets returns a deep copy of the cart contents keyed by store.
func (c *Cart) Baskets() map[string]map[string]int {
	out := make(map[string]map[string]int, len(c.baskets))
	for storeID, basket := range c.baskets {
		out[storeID] = basket.Items()
	}
	return out
}

func (c *Cart) Clone() *Cart {
	clone := New()
	for storeID, basket := range c.baskets {
		b := NewBasket(storeID)
		b.items = basket.Items()
		clone.baskets[storeID] = b
	}
	return clone
}

func (c *Cart) prune(storeID string) {
	if basket, ok := c.baskets[storeID]; ok && basket.IsEmpty() {
		delete(c.baskets, storeID)
	}
}
