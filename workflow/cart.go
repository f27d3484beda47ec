// Package workflow holds the checkout engine: in-memory carts, the pricing
// rules, the finalize transaction, and the outbox dispatcher that publishes
// WhatsApp notifications after commit.
package workflow

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tichatapp/tichat_backend/models"
)

var (
	ErrNoTargetSelected  = errors.New("no checkout target selected")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrCartNotFound      = errors.New("cart not found")
)

// Catalog is the product lookup the cart engine depends on. models-backed in
// production, faked in tests.
type Catalog interface {
	LookupProduct(ctx context.Context, productId int) (*models.Product, error)
}

// CheckoutTarget is who the cart is being rung up for. Exactly one of the
// two shapes: a registered customer (CustomerId > 0) or the anonymous
// counter sale (Anonymous true, customer fields zero).
type CheckoutTarget struct {
	Anonymous     bool   `json:"anonymous"`
	CustomerId    int    `json:"customer_id"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
}

func (t CheckoutTarget) IsSet() bool {
	return t.Anonymous || t.CustomerId > 0
}

func (t CheckoutTarget) sameIdentity(other CheckoutTarget) bool {
	if t.Anonymous || other.Anonymous {
		return t.Anonymous == other.Anonymous
	}
	return t.CustomerId == other.CustomerId
}

// CartLine is one product in the cart with its price snapshotted at the
// moment it was first added.
type CartLine struct {
	ProductId int             `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit"`
}

// Cart is a draft sale. It lives in memory only; nothing touches the ledger
// or stock until Finalize.
type Cart struct {
	ID     string         `json:"id"`
	Target CheckoutTarget `json:"target"`
	Lines  []CartLine     `json:"lines"`
}

// Totals is the priced view of a cart.
type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Total       decimal.Decimal `json:"total"`
}

// CartManager owns the live carts. All access goes through its mutex; cart
// snapshots returned to callers are copies.
type CartManager struct {
	mu      sync.Mutex
	carts   map[string]*Cart
	catalog Catalog
}

func NewCartManager(catalog Catalog) *CartManager {
	return &CartManager{
		carts:   make(map[string]*Cart),
		catalog: catalog,
	}
}

func (m *CartManager) CreateCart() *Cart {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart := &Cart{ID: uuid.NewString()}
	m.carts[cart.ID] = cart
	return snapshot(cart)
}

func (m *CartManager) GetCart(cartId string) (*Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.carts[cartId]
	if !ok {
		return nil, ErrCartNotFound
	}
	return snapshot(cart), nil
}

// SelectTarget sets who the cart is for. Switching to a different identity
// clears the lines: prices and delivery rules may differ per target, so
// items do not carry over. Re-selecting the same identity keeps them.
func (m *CartManager) SelectTarget(cartId string, target CheckoutTarget) (*Cart, error) {
	if !target.IsSet() {
		return nil, ErrNoTargetSelected
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.carts[cartId]
	if !ok {
		return nil, ErrCartNotFound
	}

	if cart.Target.IsSet() && !cart.Target.sameIdentity(target) {
		cart.Lines = nil
	}
	cart.Target = target
	return snapshot(cart), nil
}

// AddItem adds one unit of a product to the cart. The line's price is
// snapshotted on first add. Stock is a hard limit here: the cart can never
// hold more of a product than the catalog says is on hand.
func (m *CartManager) AddItem(ctx context.Context, cartId string, productId int) (*Cart, error) {
	return m.AddItemQuantity(ctx, cartId, productId, 1)
}

// AddItemQuantity adds qty units in a single step. The whole quantity must
// fit within stock or nothing is added; a rejected add never leaves a
// partial quantity in the cart.
func (m *CartManager) AddItemQuantity(ctx context.Context, cartId string, productId int, qty int) (*Cart, error) {
	if qty < 1 {
		qty = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.carts[cartId]
	if !ok {
		return nil, ErrCartNotFound
	}
	if !cart.Target.IsSet() {
		return nil, ErrNoTargetSelected
	}

	product, err := m.catalog.LookupProduct(ctx, productId)
	if err != nil {
		return nil, err
	}

	inCart := decimal.Zero
	lineIdx := -1
	for i, line := range cart.Lines {
		if line.ProductId == productId {
			inCart = line.Quantity
			lineIdx = i
			break
		}
	}

	want := inCart.Add(decimal.NewFromInt(int64(qty)))
	if want.GreaterThan(product.StockOnHand) {
		return nil, ErrInsufficientStock
	}

	if lineIdx >= 0 {
		cart.Lines[lineIdx].Quantity = want
	} else {
		cart.Lines = append(cart.Lines, CartLine{
			ProductId: product.ID,
			Name:      product.Name,
			UnitPrice: product.UnitPrice,
			Quantity:  want,
			Unit:      product.Unit,
		})
	}
	return snapshot(cart), nil
}

// RemoveItem takes one unit of a product out of the cart, dropping the line
// when it reaches zero. Removing a product that is not in the cart is a
// no-op.
func (m *CartManager) RemoveItem(cartId string, productId int) (*Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.carts[cartId]
	if !ok {
		return nil, ErrCartNotFound
	}

	for i, line := range cart.Lines {
		if line.ProductId != productId {
			continue
		}
		qty := line.Quantity.Sub(decimal.NewFromInt(1))
		if qty.IsPositive() {
			cart.Lines[i].Quantity = qty
		} else {
			cart.Lines = append(cart.Lines[:i], cart.Lines[i+1:]...)
		}
		break
	}
	return snapshot(cart), nil
}

// ComputeTotals prices a cart against the current store settings. Anonymous
// counter sales never pay delivery. Registered customers pay the flat fee
// unless free delivery is enabled and the subtotal reaches the threshold.
func ComputeTotals(target CheckoutTarget, lines []CartLine, settings *models.ShopSettings) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(line.Quantity))
	}

	fee := decimal.Zero
	if !target.Anonymous && target.CustomerId > 0 {
		fee = settings.DeliveryFee
		if settings.HasFreeDeliveryOption != nil && *settings.HasFreeDeliveryOption &&
			subtotal.GreaterThanOrEqual(settings.FreeDeliveryThreshold) {
			fee = decimal.Zero
		}
	}

	return Totals{
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Total:       subtotal.Add(fee),
	}
}

// reset empties the cart after a successful finalize. Caller holds the lock.
func (m *CartManager) reset(cartId string) {
	if cart, ok := m.carts[cartId]; ok {
		cart.Lines = nil
		cart.Target = CheckoutTarget{}
	}
}

func snapshot(cart *Cart) *Cart {
	copied := &Cart{ID: cart.ID, Target: cart.Target}
	copied.Lines = append([]CartLine(nil), cart.Lines...)
	return copied
}
