package cart

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line is one product held in a user's cart.
type Line struct {
	ProductID      uuid.UUID
	ProductName    string
	SKU            string
	Quantity       int
	UnitPrice      decimal.Decimal
	DiscountAmount decimal.Decimal
}

// Cart is the mutable state kept per user. Order preserves insertion so
// views are stable across calls.
type Cart struct {
	Lines        map[uuid.UUID]*Line
	Order        []uuid.UUID
	DiscountCode *string
}

func newCart() Cart {
	return Cart{Lines: map[uuid.UUID]*Line{}}
}

// IsEmpty reports whether the cart holds no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// QuantityOf returns the quantity already in the cart for the product.
func (c Cart) QuantityOf(productID uuid.UUID) int {
	if line, ok := c.Lines[productID]; ok {
		return line.Quantity
	}
	return 0
}

func (c *Cart) put(line Line) {
	if c.Lines == nil {
		c.Lines = map[uuid.UUID]*Line{}
	}
	if _, ok := c.Lines[line.ProductID]; !ok {
		c.Order = append(c.Order, line.ProductID)
	}
	copied := line
	c.Lines[line.ProductID] = &copied
}

func (c *Cart) remove(productID uuid.UUID) {
	if _, ok := c.Lines[productID]; !ok {
		return
	}
	delete(c.Lines, productID)
	for i, id := range c.Order {
		if id == productID {
			c.Order = append(c.Order[:i:i], c.Order[i+1:]...)
			break
		}
	}
}

func (c *Cart) reset() {
	*c = newCart()
}

func (c Cart) clone() Cart {
	out := Cart{
		Lines: make(map[uuid.UUID]*Line, len(c.Lines)),
		Order: append([]uuid.UUID(nil), c.Order...),
	}
	for id, line := range c.Lines {
		copied := *line
		out.Lines[id] = &copied
	}
	if c.DiscountCode != nil {
		code := *c.DiscountCode
		out.DiscountCode = &code
	}
	return out
}

// Store holds carts keyed by username. Update must serialize mutations for
// the same user and apply fn's changes only when fn returns nil.
type Store interface {
	Get(ctx context.Context, username string) (Cart, error)
	Update(ctx context.Context, username string, fn func(cart *Cart) error) error
	Clear(ctx context.Context, username string) error
	// Take empties the user's cart and returns what it held, in one step.
	Take(ctx context.Context, username string) (Cart, error)
	// Restore merges previously taken lines back into the user's cart.
	Restore(ctx context.Context, username string, taken Cart) error
}

type userCart struct {
	mu   sync.Mutex
	cart Cart
}

// MemoryStore keeps carts in process memory for the life of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string]*userCart
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: map[string]*userCart{}}
}

func (s *MemoryStore) entry(username string) *userCart {
	s.mu.RLock()
	uc, ok := s.carts[username]
	s.mu.RUnlock()
	if ok {
		return uc
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if uc, ok = s.carts[username]; ok {
		return uc
	}
	uc = &userCart{cart: newCart()}
	s.carts[username] = uc
	return uc
}

// Get returns a copy of the user's cart, creating an empty one lazily.
func (s *MemoryStore) Get(_ context.Context, username string) (Cart, error) {
	uc := s.entry(username)
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.cart.clone(), nil
}

// Update runs fn against a working copy under the user's lock and swaps it
// in on success, so a failing fn leaves the cart untouched.
func (s *MemoryStore) Update(_ context.Context, username string, fn func(cart *Cart) error) error {
	uc := s.entry(username)
	uc.mu.Lock()
	defer uc.mu.Unlock()

	working := uc.cart.clone()
	if err := fn(&working); err != nil {
		return err
	}
	uc.cart = working
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, username string) error {
	uc := s.entry(username)
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.cart.reset()
	return nil
}

func (s *MemoryStore) Take(_ context.Context, username string) (Cart, error) {
	uc := s.entry(username)
	uc.mu.Lock()
	defer uc.mu.Unlock()
	taken := uc.cart
	uc.cart = newCart()
	return taken, nil
}

func (s *MemoryStore) Restore(_ context.Context, username string, taken Cart) error {
	uc := s.entry(username)
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.cart = merge(taken, uc.cart)
	return nil
}

// merge lays current on top of taken. Lines for the same product add up and
// the code applied since the take wins over the taken one.
func merge(taken, current Cart) Cart {
	out := taken.clone()
	for _, id := range current.Order {
		line, ok := current.Lines[id]
		if !ok {
			continue
		}
		existing, ok := out.Lines[id]
		if !ok {
			out.put(*line)
			continue
		}
		existing.Quantity += line.Quantity
		existing.DiscountAmount = existing.DiscountAmount.Add(line.DiscountAmount)
	}
	if current.DiscountCode != nil {
		code := *current.DiscountCode
		out.DiscountCode = &code
	}
	return out
}

// Len is the number of carts currently held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.carts)
}
