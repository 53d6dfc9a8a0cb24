// Package handoff turns a checked-out cart into the WhatsApp order message
// the store operator confirms by hand.
package handoff

import (
	"fmt"
	"net/url"
	"strings"

	"energy-store/internal/cart"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	DefaultStoreName = "EnergyTi"
	separator        = "━━━━━━━━━━━━━━━━━"
	waBaseURL        = "https://wa.me/"
)

var printer = message.NewPrinter(language.BrazilianPortuguese)

// FormatPrice renders centavos as Brazilian reais, e.g. 123450 -> "R$ 1.234,50"
func FormatPrice(cents int64) string {
	return "R$ " + printer.Sprintf("%v", number.Decimal(float64(cents)/100, number.Scale(2)))
}

// Composer builds order messages and deep links for one business number
type Composer struct {
	storeName string
	phone     string
}

// NewComposer creates a composer; an empty store name falls back to DefaultStoreName
func NewComposer(storeName, phone string) *Composer {
	if storeName == "" {
		storeName = DefaultStoreName
	}
	return &Composer{storeName: storeName, phone: phone}
}

// Phone returns the destination number
func (c *Composer) Phone() string {
	return c.phone
}

// Message renders the itemized order text
func (c *Composer) Message(items []cart.Item) string {
	var b strings.Builder
	var total int64

	fmt.Fprintf(&b, "🛒 *Pedido %s*\n\n", c.storeName)
	for _, item := range items {
		fmt.Fprintf(&b, "• %s\n", item.Product.Name)
		if desc := item.Product.DescriptionText(); desc != "" {
			fmt.Fprintf(&b, "  %s\n", desc)
		}
		fmt.Fprintf(&b, "  Qtd: %d x %s\n", item.Quantity, FormatPrice(item.Product.Price))
		fmt.Fprintf(&b, "  Subtotal: %s\n\n", FormatPrice(item.Subtotal()))
		total += item.Subtotal()
	}
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "*Total: %s*", FormatPrice(total))

	return b.String()
}

// Link builds the wa.me deep link with the message pre-filled
func (c *Composer) Link(text string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return waBaseURL + c.phone + "?text=" + escaped
}
