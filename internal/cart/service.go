package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/smes-pos/smes-backend/pkg/config"
	"github.com/smes-pos/smes-backend/pkg/db/models"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
	"github.com/smes-pos/smes-backend/pkg/logger"
)

type productReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type discountEvaluator interface {
	MaxDiscountPercentage(ctx context.Context, productID uuid.UUID, now time.Time) (decimal.Decimal, error)
	ValidByCode(ctx context.Context, code string, now time.Time) (*models.Discount, error)
}

// Service is the per-user cart engine.
type Service interface {
	GetCart(ctx context.Context, username string) (CartView, error)
	AddItems(ctx context.Context, username string, items []ItemInput) (CartView, error)
	UpdateItemQuantity(ctx context.Context, username string, productID uuid.UUID, quantity int) (CartItemView, error)
	RemoveItem(ctx context.Context, username string, productID uuid.UUID) (CartView, error)
	ApplyDiscount(ctx context.Context, username, code string) (CartView, error)
	ClearCart(ctx context.Context, username string) error
	ClaimCart(ctx context.Context, username string) (*Claim, error)
}

// Claim holds a cart taken out of the store for checkout. Lines added while
// the claim is open land in a fresh cart and are not part of it.
type Claim struct {
	View CartView

	store    Store
	username string
	cart     Cart
}

// Release puts the claimed lines back into the user's cart. Call it when
// the sale built from the claim did not commit.
func (c *Claim) Release(ctx context.Context) error {
	if c == nil || (c.cart.IsEmpty() && c.cart.DiscountCode == nil) {
		return nil
	}
	if err := c.store.Restore(ctx, c.username, c.cart); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore cart")
	}
	return nil
}

// ItemInput is one requested addition.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

type service struct {
	store     Store
	products  productReader
	discounts discountEvaluator
	taxRate   decimal.Decimal
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(store Store, products productReader, discounts discountEvaluator, tax config.TaxConfig, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if discounts == nil {
		return nil, fmt.Errorf("discount evaluator required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if tax.Rate < 0 || tax.Rate >= 1 {
		return nil, fmt.Errorf("tax rate must be in [0,1)")
	}
	return &service{
		store:     store,
		products:  products,
		discounts: discounts,
		taxRate:   decimal.NewFromFloat(tax.Rate),
		logg:      logg,
		now:       time.Now,
	}, nil
}

func (s *service) GetCart(ctx context.Context, username string) (CartView, error) {
	if err := requireUser(username); err != nil {
		return CartView{}, err
	}
	cart, err := s.store.Get(ctx, username)
	if err != nil {
		return CartView{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return s.priceCart(ctx, username, cart)
}

func (s *service) AddItems(ctx context.Context, username string, items []ItemInput) (CartView, error) {
	if err := requireUser(username); err != nil {
		return CartView{}, err
	}
	requested, order, err := mergeItems(items)
	if err != nil {
		return CartView{}, err
	}

	products, err := s.products.FindByIDs(ctx, order)
	if err != nil {
		return CartView{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	now := s.now()
	percentages := make(map[uuid.UUID]decimal.Decimal, len(order))
	for _, id := range order {
		if _, ok := products[id]; !ok {
			return CartView{}, pkgerrors.New(pkgerrors.CodeNotFound, "Product not found").
				WithDetails(map[string]any{"product_id": id})
		}
		pct, err := s.discounts.MaxDiscountPercentage(ctx, id, now)
		if err != nil {
			return CartView{}, err
		}
		percentages[id] = pct
	}

	err = s.store.Update(ctx, username, func(cart *Cart) error {
		for _, id := range order {
			product := products[id]
			inCart := cart.QuantityOf(id)
			if inCart+requested[id] > product.QuantityInStock {
				return insufficientForAdd(product, requested[id], inCart)
			}
		}

		for _, id := range order {
			product := products[id]
			qty := decimal.NewFromInt(int64(requested[id]))

			line, ok := cart.Lines[id]
			if !ok {
				cart.put(Line{
					ProductID:      id,
					ProductName:    product.Name,
					SKU:            product.SKU,
					Quantity:       requested[id],
					UnitPrice:      product.Price,
					DiscountAmount: PercentOf(product.Price.Mul(qty), percentages[id]),
				})
				continue
			}
			// The line keeps the price it was first added at.
			line.Quantity += requested[id]
			line.DiscountAmount = line.DiscountAmount.Add(PercentOf(line.UnitPrice.Mul(qty), percentages[id]))
		}
		return nil
	})
	if err != nil {
		return CartView{}, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"username": username, "lines": len(order)})
	s.logg.Debug(ctx, "cart.items_added")
	return s.GetCart(ctx, username)
}

func (s *service) UpdateItemQuantity(ctx context.Context, username string, productID uuid.UUID, quantity int) (CartItemView, error) {
	if err := requireUser(username); err != nil {
		return CartItemView{}, err
	}
	if quantity <= 0 {
		return CartItemView{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	current, err := s.store.Get(ctx, username)
	if err != nil {
		return CartItemView{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if _, ok := current.Lines[productID]; !ok {
		return CartItemView{}, errLineNotFound(productID)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CartItemView{}, pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
		}
		return CartItemView{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if quantity > product.QuantityInStock {
		return CartItemView{}, pkgerrors.New(pkgerrors.CodeInsufficientStock,
			fmt.Sprintf("Not enough stock available for product '%s'. Only %d items available.", product.Name, product.QuantityInStock)).
			WithDetails(stockDetails(*product, quantity, 0))
	}
	pct, err := s.discounts.MaxDiscountPercentage(ctx, productID, s.now())
	if err != nil {
		return CartItemView{}, err
	}

	var updated Line
	err = s.store.Update(ctx, username, func(cart *Cart) error {
		line, ok := cart.Lines[productID]
		if !ok {
			return errLineNotFound(productID)
		}
		line.Quantity = quantity
		line.DiscountAmount = PercentOf(line.UnitPrice.Mul(decimal.NewFromInt(int64(quantity))), pct)
		updated = *line
		return nil
	})
	if err != nil {
		return CartItemView{}, err
	}
	return newItemView(updated), nil
}

func (s *service) RemoveItem(ctx context.Context, username string, productID uuid.UUID) (CartView, error) {
	if err := requireUser(username); err != nil {
		return CartView{}, err
	}
	err := s.store.Update(ctx, username, func(cart *Cart) error {
		cart.remove(productID)
		return nil
	})
	if err != nil {
		return CartView{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart")
	}
	return s.GetCart(ctx, username)
}

func (s *service) ApplyDiscount(ctx context.Context, username, code string) (CartView, error) {
	if err := requireUser(username); err != nil {
		return CartView{}, err
	}
	discount, err := s.discounts.ValidByCode(ctx, code, s.now())
	if err != nil {
		return CartView{}, err
	}
	applied := discount.Code
	err = s.store.Update(ctx, username, func(cart *Cart) error {
		cart.DiscountCode = &applied
		return nil
	})
	if err != nil {
		return CartView{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart")
	}
	return s.GetCart(ctx, username)
}

func (s *service) ClearCart(ctx context.Context, username string) error {
	if err := requireUser(username); err != nil {
		return err
	}
	if err := s.store.Clear(ctx, username); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

// ClaimCart empties the user's cart atomically and prices what it held. An
// empty cart yields a claim with no items.
func (s *service) ClaimCart(ctx context.Context, username string) (*Claim, error) {
	if err := requireUser(username); err != nil {
		return nil, err
	}
	taken, err := s.store.Take(ctx, username)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim cart")
	}
	claim := &Claim{store: s.store, username: username, cart: taken}
	if taken.IsEmpty() && taken.DiscountCode == nil {
		claim.View = price(taken, s.taxRate, nil)
		return claim, nil
	}

	view, err := s.priceCart(ctx, username, taken)
	if err != nil {
		if rerr := claim.Release(ctx); rerr != nil {
			s.logg.Error(s.logg.WithField(ctx, "username", username), "cart.claim_release_failed", rerr)
		}
		return nil, err
	}
	if view.DiscountCode == nil {
		claim.cart.DiscountCode = nil
	}
	claim.View = view
	return claim, nil
}

// priceCart resolves the applied code afresh. A code that has been deleted
// is dropped from the cart; one that has lapsed stays but contributes nothing.
func (s *service) priceCart(ctx context.Context, username string, cart Cart) (CartView, error) {
	if cart.DiscountCode == nil {
		return price(cart, s.taxRate, nil), nil
	}

	discount, err := s.discounts.ValidByCode(ctx, *cart.DiscountCode, s.now())
	switch {
	case err == nil:
		pct := discount.Percentage
		return price(cart, s.taxRate, &pct), nil
	case pkgerrors.HasCode(err, pkgerrors.CodeStateConflict):
		return price(cart, s.taxRate, nil), nil
	case pkgerrors.HasCode(err, pkgerrors.CodeNotFound):
		s.logg.Warn(s.logg.WithField(ctx, "discount_code", *cart.DiscountCode), "cart.discount_code_dropped")
		code := *cart.DiscountCode
		if uerr := s.store.Update(ctx, username, func(c *Cart) error {
			if c.DiscountCode != nil && *c.DiscountCode == code {
				c.DiscountCode = nil
			}
			return nil
		}); uerr != nil {
			return CartView{}, pkgerrors.Wrap(pkgerrors.CodeInternal, uerr, "update cart")
		}
		cart.DiscountCode = nil
		return price(cart, s.taxRate, nil), nil
	default:
		return CartView{}, err
	}
}

// mergeItems sums duplicate product ids, keeping first-seen order.
func mergeItems(items []ItemInput) (map[uuid.UUID]int, []uuid.UUID, error) {
	if len(items) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	requested := make(map[uuid.UUID]int, len(items))
	order := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		if item.Quantity <= 0 {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		if _, seen := requested[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		requested[item.ProductID] += item.Quantity
	}
	return requested, order, nil
}

func insufficientForAdd(product models.Product, requested, inCart int) error {
	msg := fmt.Sprintf("Cannot add %d items of product '%s' to cart. Only %d items available in stock. You already have %d in your cart.",
		requested, product.Name, product.QuantityInStock, inCart)
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, msg).
		WithDetails(stockDetails(product, requested, inCart))
}

func stockDetails(product models.Product, requested, inCart int) map[string]any {
	return map[string]any{
		"product_id": product.ID,
		"product":    product.Name,
		"requested":  requested,
		"available":  product.QuantityInStock,
		"in_cart":    inCart,
	}
}

func errLineNotFound(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "Cart item not found").
		WithDetails(map[string]any{"product_id": productID})
}

func requireUser(username string) error {
	if strings.TrimSpace(username) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user is required")
	}
	return nil
}
