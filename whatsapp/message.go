// Package whatsapp renders checkout notifications and understands the
// inbound message envelope delivered by the WhatsApp bridge. Everything here
// is pure; delivery happens through the Pub/Sub outbox.
package whatsapp

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tichatapp/tichat_backend/models"
	"github.com/tichatapp/tichat_backend/utils"
)

// FormatMoney renders a peso amount the way the customers read it:
// thousands separated with dots, decimals with a comma, no trailing zeros
// for whole amounts (es-CO convention).
func FormatMoney(amount decimal.Decimal) string {
	s := amount.String()

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart = s[:i]
		fracPart = strings.TrimRight(s[i+1:], "0")
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	out := b.String()
	if fracPart != "" {
		out += "," + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out
}

// RenderSaleMessage builds the order-summary text sent to the customer after
// checkout: greeting, itemized lines, subtotal, delivery fee (marked GRATIS
// when waived), total, and the store's configured farewell.
func RenderSaleMessage(sale *models.Sale, settings *models.ShopSettings) string {
	var b strings.Builder

	fmt.Fprintf(&b, "¡Hola %s! 👋\n\n", sale.CustomerName)
	fmt.Fprintf(&b, "Aquí está el resumen de tu compra en %s:\n\n", settings.StoreName)

	for _, item := range sale.Items {
		fmt.Fprintf(&b, "*%s* (%s x $%s) = $%s\n",
			item.Name,
			item.Quantity.String(),
			FormatMoney(item.UnitPrice),
			FormatMoney(item.LineTotal()),
		)
	}

	fmt.Fprintf(&b, "\nSubtotal: $%s", FormatMoney(sale.Subtotal))
	if sale.CustomerId > 0 {
		if sale.DeliveryFeeApplied.IsZero() {
			b.WriteString("\nDomicilio: GRATIS 🎉")
		} else {
			fmt.Fprintf(&b, "\nDomicilio: $%s", FormatMoney(sale.DeliveryFeeApplied))
		}
	}
	fmt.Fprintf(&b, "\n*TOTAL A PAGAR: $%s*", FormatMoney(sale.Total))

	if settings.WelcomeMessage != "" {
		fmt.Fprintf(&b, "\n\n%s", settings.WelcomeMessage)
	}

	return b.String()
}

// DeepLink builds the wa.me link that opens the conversation with the
// message prefilled. The phone keeps digits only.
func DeepLink(phone string, message string) string {
	return fmt.Sprintf("https://wa.me/%s?text=%s",
		utils.DigitsOnly(phone),
		url.QueryEscape(message),
	)
}
