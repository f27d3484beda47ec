package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tichatapp/tichat_backend/models"
	"github.com/tichatapp/tichat_backend/utils"
)

// fakeCatalog serves products from a map so the engine runs without MySQL.
type fakeCatalog struct {
	products map[int]*models.Product
}

func (f *fakeCatalog) LookupProduct(_ context.Context, productId int) (*models.Product, error) {
	p, ok := f.products[productId]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func newTestCatalog() *fakeCatalog {
	return &fakeCatalog{products: map[int]*models.Product{
		1: {ID: 1, Name: "Arroz Diana 500g", UnitPrice: decimal.NewFromInt(3500), StockOnHand: decimal.NewFromInt(10), Unit: "unidad"},
		2: {ID: 2, Name: "Panela", UnitPrice: decimal.NewFromInt(4200), StockOnHand: decimal.NewFromInt(3), Unit: "unidad"},
		3: {ID: 3, Name: "Queso costeño", UnitPrice: decimal.NewFromInt(9000), StockOnHand: decimal.NewFromInt(0), Unit: "libra"},
	}}
}

func customerTarget(id int) CheckoutTarget {
	return CheckoutTarget{CustomerId: id, CustomerName: "Doña Marta", CustomerPhone: "+573001234567"}
}

var anonymousTarget = CheckoutTarget{Anonymous: true}

func freeDelivery(enabled bool) *bool {
	if enabled {
		return utils.NewTrue()
	}
	return utils.NewFalse()
}

func testSettings(fee int64, free bool, threshold int64) *models.ShopSettings {
	return &models.ShopSettings{
		StoreName:             "La Esquina",
		DeliveryFee:           decimal.NewFromInt(fee),
		HasFreeDeliveryOption: freeDelivery(free),
		FreeDeliveryThreshold: decimal.NewFromInt(threshold),
	}
}

func TestAddItemRequiresTarget(t *testing.T) {
	m := NewCartManager(newTestCatalog())
	cart := m.CreateCart()

	if _, err := m.AddItem(context.Background(), cart.ID, 1); !errors.Is(err, ErrNoTargetSelected) {
		t.Fatalf("expected ErrNoTargetSelected, got %v", err)
	}

	got, err := m.GetCart(cart.ID)
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if len(got.Lines) != 0 {
		t.Fatalf("failed add must not mutate the cart, got %d lines", len(got.Lines))
	}
}

func TestAddItemStockLimit(t *testing.T) {
	m := NewCartManager(newTestCatalog())
	cart := m.CreateCart()
	if _, err := m.SelectTarget(cart.ID, anonymousTarget); err != nil {
		t.Fatalf("SelectTarget: %v", err)
	}

	// Product 2 has 3 on hand: three adds succeed, the fourth fails.
	for i := 0; i < 3; i++ {
		if _, err := m.AddItem(context.Background(), cart.ID, 2); err != nil {
			t.Fatalf("add %d: %v", i+1, err)
		}
	}
	if _, err := m.AddItem(context.Background(), cart.ID, 2); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	got, _ := m.GetCart(cart.ID)
	if len(got.Lines) != 1 || !got.Lines[0].Quantity.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("cart must keep quantity 3 after rejected add, got %+v", got.Lines)
	}
}

func TestAddItemQuantityAllOrNothing(t *testing.T) {
	m := NewCartManager(newTestCatalog())
	cart := m.CreateCart()
	m.SelectTarget(cart.ID, anonymousTarget)

	// Product 2 has 3 on hand: asking for 5 must add nothing at all.
	if _, err := m.AddItemQuantity(context.Background(), cart.ID, 2, 5); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	got, _ := m.GetCart(cart.ID)
	if len(got.Lines) != 0 {
		t.Fatalf("rejected bulk add must not leave a partial quantity, got %+v", got.Lines)
	}

	// The full stock fits in one call.
	got, err := m.AddItemQuantity(context.Background(), cart.ID, 2, 3)
	if err != nil {
		t.Fatalf("AddItemQuantity: %v", err)
	}
	if len(got.Lines) != 1 || !got.Lines[0].Quantity.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected quantity 3, got %+v", got.Lines)
	}

	// Topping up past stock fails and keeps the existing quantity.
	if _, err := m.AddItemQuantity(context.Background(), cart.ID, 2, 1); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock on top-up, got %v", err)
	}
	got, _ = m.GetCart(cart.ID)
	if !got.Lines[0].Quantity.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("quantity must stay 3 after rejected top-up, got %s", got.Lines[0].Quantity)
	}
}

func TestAddItemZeroStock(t *testing.T) {
	m := NewCartManager(newTestCatalog())
	cart := m.CreateCart()
	m.SelectTarget(cart.ID, anonymousTarget)

	if _, err := m.AddItem(context.Background(), cart.ID, 3); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock for zero-stock product, got %v", err)
	}
}

func TestAddItemUnknownProduct(t *testing.T) {
	m := NewCartManager(newTestCatalog())
	cart := m.CreateCart()
	m.SelectTarget(cart.ID, anonymousTarget)

	if _, err := m.AddItem(context.Background(), cart.ID, 99); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected record not found, got %v", err)
	}
}

func TestAddItemSnapshotsPrice(t *testing.T) {
	catalog := newTestCatalog()
	m := NewCartManager(catalog)
	cart := m.CreateCart()
	m.SelectTarget(cart.ID, anonymousTarget)

	if _, err := m.AddItem(context.Background(), cart.ID, 1); err != nil {
		t.Fatalf("first add: %v", err)
	}

	// Price changes in the catalog after the first add.
	catalog.products[1].UnitPrice = decimal.NewFromInt(9999)

	got, err := m.AddItem(context.Background(), cart.ID, 1)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if !got.Lines[0].UnitPrice.Equal(decimal.NewFromInt(3500)) {
		t.Fatalf("line must keep the snapshot price 3500, got %s", got.Lines[0].UnitPrice)
	}
	if !got.Lines[0].Quantity.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected quantity 2, got %s", got.Lines[0].Quantity)
	}
}

func TestRemoveItem(t *testing.T) {
	m := NewCartManager(newTestCatalog())
	cart := m.CreateCart()
	m.SelectTarget(cart.ID, anonymousTarget)
	m.AddItem(context.Background(), cart.ID, 1)
	m.AddItem(context.Background(), cart.ID, 1)

	got, err := m.RemoveItem(cart.ID, 1)
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if !got.Lines[0].Quantity.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected quantity 1 after remove, got %s", got.Lines[0].Quantity)
	}

	got, _ = m.RemoveItem(cart.ID, 1)
	if len(got.Lines) != 0 {
		t.Fatalf("line must be dropped at zero, got %+v", got.Lines)
	}

	// Removing an absent product is a no-op, not an error.
	got, err = m.RemoveItem(cart.ID, 42)
	if err != nil || len(got.Lines) != 0 {
		t.Fatalf("remove of absent product must be a no-op, got lines=%v err=%v", got.Lines, err)
	}
}

func TestSelectTargetSwitchClearsCart(t *testing.T) {
	m := NewCartManager(newTestCatalog())
	cart := m.CreateCart()
	m.SelectTarget(cart.ID, customerTarget(7))
	m.AddItem(context.Background(), cart.ID, 1)

	// Same identity: lines survive.
	got, err := m.SelectTarget(cart.ID, customerTarget(7))
	if err != nil {
		t.Fatalf("SelectTarget same identity: %v", err)
	}
	if len(got.Lines) != 1 {
		t.Fatalf("re-selecting the same customer must keep the lines")
	}

	// Different customer: cart empties.
	got, _ = m.SelectTarget(cart.ID, customerTarget(8))
	if len(got.Lines) != 0 {
		t.Fatalf("switching customers must clear the cart, got %+v", got.Lines)
	}

	m.AddItem(context.Background(), cart.ID, 1)
	got, _ = m.SelectTarget(cart.ID, anonymousTarget)
	if len(got.Lines) != 0 {
		t.Fatalf("switching to anonymous must clear the cart, got %+v", got.Lines)
	}
}

func TestSelectTargetRejectsEmptyTarget(t *testing.T) {
	m := NewCartManager(newTestCatalog())
	cart := m.CreateCart()
	if _, err := m.SelectTarget(cart.ID, CheckoutTarget{}); !errors.Is(err, ErrNoTargetSelected) {
		t.Fatalf("expected ErrNoTargetSelected, got %v", err)
	}
}

func TestComputeTotals(t *testing.T) {
	lines := []CartLine{
		{ProductId: 1, UnitPrice: decimal.NewFromInt(24500), Quantity: decimal.NewFromInt(2)},
	}
	// subtotal 49000

	cases := []struct {
		name     string
		target   CheckoutTarget
		settings *models.ShopSettings
		wantFee  int64
		wantTot  int64
	}{
		{"anonymous never pays delivery", anonymousTarget, testSettings(3000, false, 0), 0, 49000},
		{"customer pays flat fee", customerTarget(7), testSettings(3000, false, 0), 3000, 52000},
		{"below free threshold pays fee", customerTarget(7), testSettings(3000, true, 50000), 3000, 52000},
		{"free delivery disabled ignores threshold", customerTarget(7), testSettings(3000, false, 10000), 3000, 52000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeTotals(tc.target, lines, tc.settings)
			if !got.Subtotal.Equal(decimal.NewFromInt(49000)) {
				t.Fatalf("subtotal: got %s", got.Subtotal)
			}
			if !got.DeliveryFee.Equal(decimal.NewFromInt(tc.wantFee)) {
				t.Fatalf("fee: want %d got %s", tc.wantFee, got.DeliveryFee)
			}
			if !got.Total.Equal(decimal.NewFromInt(tc.wantTot)) {
				t.Fatalf("total: want %d got %s", tc.wantTot, got.Total)
			}
		})
	}

	// Exactly at the threshold the fee is waived.
	atThreshold := []CartLine{
		{ProductId: 1, UnitPrice: decimal.NewFromInt(25000), Quantity: decimal.NewFromInt(2)},
	}
	got := ComputeTotals(customerTarget(7), atThreshold, testSettings(3000, true, 50000))
	if !got.DeliveryFee.IsZero() || !got.Total.Equal(decimal.NewFromInt(50000)) {
		t.Fatalf("fee must be waived at the threshold, got fee=%s total=%s", got.DeliveryFee, got.Total)
	}
}

func TestComputeTotalsEmptyCart(t *testing.T) {
	got := ComputeTotals(anonymousTarget, nil, testSettings(3000, false, 0))
	if !got.Subtotal.IsZero() || !got.Total.IsZero() {
		t.Fatalf("empty cart must price to zero, got %+v", got)
	}
}

func TestBuildSale(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.Local)
	lines := []CartLine{
		{ProductId: 1, Name: "Arroz Diana 500g", UnitPrice: decimal.NewFromInt(3500), Quantity: decimal.NewFromInt(2), Unit: "unidad"},
	}
	totals := Totals{
		Subtotal:    decimal.NewFromInt(7000),
		DeliveryFee: decimal.NewFromInt(3000),
		Total:       decimal.NewFromInt(10000),
	}

	sale := BuildSale(customerTarget(7), lines, totals, now)
	if sale.Status != models.SaleStatusPending {
		t.Fatalf("customer sale must start pending, got %s", sale.Status)
	}
	if sale.CustomerId != 7 || sale.CustomerName != "Doña Marta" {
		t.Fatalf("unexpected customer fields: %d %q", sale.CustomerId, sale.CustomerName)
	}
	if !sale.Total.Equal(decimal.NewFromInt(10000)) || !sale.Date.Equal(now) {
		t.Fatalf("unexpected total/date: %s %s", sale.Total, sale.Date)
	}
	if len(sale.Items) != 1 || sale.Items[0].ProductId != 1 || !sale.Items[0].Quantity.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("unexpected items: %+v", sale.Items)
	}

	anon := BuildSale(anonymousTarget, lines, Totals{Subtotal: totals.Subtotal, Total: totals.Subtotal}, now)
	if anon.Status != models.SaleStatusPaid {
		t.Fatalf("anonymous sale must be paid immediately, got %s", anon.Status)
	}
	if anon.CustomerId != 0 {
		t.Fatalf("anonymous sale must have customer id 0, got %d", anon.CustomerId)
	}
}

func TestCartSnapshotsAreCopies(t *testing.T) {
	m := NewCartManager(newTestCatalog())
	cart := m.CreateCart()
	m.SelectTarget(cart.ID, anonymousTarget)
	got, _ := m.AddItem(context.Background(), cart.ID, 1)

	got.Lines[0].Quantity = decimal.NewFromInt(100)

	fresh, _ := m.GetCart(cart.ID)
	if !fresh.Lines[0].Quantity.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("mutating a snapshot must not touch the stored cart")
	}
}

func TestGetCartUnknownId(t *testing.T) {
	m := NewCartManager(newTestCatalog())
	if _, err := m.GetCart("nope"); !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound, got %v", err)
	}
}
