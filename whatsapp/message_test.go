package whatsapp

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tichatapp/tichat_backend/models"
)

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		in   decimal.Decimal
		want string
	}{
		{decimal.NewFromInt(0), "0"},
		{decimal.NewFromInt(950), "950"},
		{decimal.NewFromInt(1000), "1.000"},
		{decimal.NewFromInt(49000), "49.000"},
		{decimal.NewFromInt(1234567), "1.234.567"},
		{decimal.NewFromFloat(2500.5), "2.500,5"},
		{decimal.NewFromInt(-12000), "-12.000"},
	}
	for _, tc := range cases {
		if got := FormatMoney(tc.in); got != tc.want {
			t.Errorf("FormatMoney(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func testSale(customerId int, fee int64) *models.Sale {
	feeDec := decimal.NewFromInt(fee)
	subtotal := decimal.NewFromInt(49000)
	return &models.Sale{
		CustomerId:         customerId,
		CustomerName:       "Doña Marta",
		Subtotal:           subtotal,
		DeliveryFeeApplied: feeDec,
		Total:              subtotal.Add(feeDec),
		Date:               time.Now(),
		Status:             models.SaleStatusPending,
		Items: []models.SaleItem{
			{Name: "Arroz Diana 500g", UnitPrice: decimal.NewFromInt(3500), Quantity: decimal.NewFromInt(2), Unit: "unidad"},
			{Name: "Panela", UnitPrice: decimal.NewFromInt(42000), Quantity: decimal.NewFromInt(1), Unit: "unidad"},
		},
	}
}

func testStoreSettings() *models.ShopSettings {
	return &models.ShopSettings{
		StoreName:      "La Esquina",
		WelcomeMessage: "¡Gracias por tu compra!",
	}
}

func TestRenderSaleMessageCustomerWithFee(t *testing.T) {
	msg := RenderSaleMessage(testSale(7, 3000), testStoreSettings())

	for _, want := range []string{
		"¡Hola Doña Marta!",
		"La Esquina",
		"*Arroz Diana 500g* (2 x $3.500) = $7.000",
		"*Panela* (1 x $42.000) = $42.000",
		"Subtotal: $49.000",
		"Domicilio: $3.000",
		"*TOTAL A PAGAR: $52.000*",
		"¡Gracias por tu compra!",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "GRATIS") {
		t.Errorf("paid delivery must not be marked GRATIS:\n%s", msg)
	}
}

func TestRenderSaleMessageFreeDelivery(t *testing.T) {
	msg := RenderSaleMessage(testSale(7, 0), testStoreSettings())
	if !strings.Contains(msg, "Domicilio: GRATIS") {
		t.Errorf("waived fee must be marked GRATIS:\n%s", msg)
	}
}

func TestRenderSaleMessageAnonymousOmitsDelivery(t *testing.T) {
	msg := RenderSaleMessage(testSale(0, 0), testStoreSettings())
	if strings.Contains(msg, "Domicilio") {
		t.Errorf("counter sale must not mention delivery:\n%s", msg)
	}
}

func TestDeepLink(t *testing.T) {
	link := DeepLink("+57 300 123-4567", "hola tienda")
	if !strings.HasPrefix(link, "https://wa.me/573001234567?text=") {
		t.Fatalf("unexpected link prefix: %s", link)
	}
	if strings.Contains(link, " ") {
		t.Fatalf("message must be url-escaped: %s", link)
	}
}
