package handoff

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"energy-store/internal/cart"
	"energy-store/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "R$ 9,50", FormatPrice(950))
	assert.Equal(t, "R$ 19,00", FormatPrice(1900))
	assert.Equal(t, "R$ 0,05", FormatPrice(5))
}

func TestComposer_Message(t *testing.T) {
	items := []cart.Item{
		{Product: models.Product{ID: "1", Name: "Monster Energy Ultra", Description: strPtr("Lata 473ml (sem açúcar)"), Price: 950}, Quantity: 2},
		{Product: models.Product{ID: "2", Name: "Sem descrição", Price: 500}, Quantity: 1},
	}

	msg := NewComposer("", "5511999999999").Message(items)

	want := "🛒 *Pedido EnergyTi*\n\n" +
		"• Monster Energy Ultra\n" +
		"  Lata 473ml (sem açúcar)\n" +
		"  Qtd: 2 x R$ 9,50\n" +
		"  Subtotal: R$ 19,00\n\n" +
		"• Sem descrição\n" +
		"  Qtd: 1 x R$ 5,00\n" +
		"  Subtotal: R$ 5,00\n\n" +
		"━━━━━━━━━━━━━━━━━\n" +
		"*Total: R$ 24,00*"
	assert.Equal(t, want, msg)
}

func TestComposer_Link(t *testing.T) {
	c := NewComposer("Loja", "5511988887777")
	text := "🛒 *Pedido Loja*\n\nQtd: 1 & mais"

	link := c.Link(text)
	require.True(t, strings.HasPrefix(link, "https://wa.me/5511988887777?text="))
	assert.NotContains(t, link, "+")
	assert.NotContains(t, link, " ")

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, text, u.Query().Get("text"))
}

type recordingPublisher struct {
	events []*models.HandoffRequestedEvent
}

func (p *recordingPublisher) PublishHandoffRequested(ctx context.Context, event *models.HandoffRequestedEvent) error {
	p.events = append(p.events, event)
	return nil
}

func TestKafkaEmitter_Emit(t *testing.T) {
	pub := &recordingPublisher{}
	err := NewKafkaEmitter(pub).Emit(context.Background(), Request{Token: "tok", Phone: "55", Message: "m", Link: "l"})
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, models.EventTypeHandoffRequested, pub.events[0].EventType)
	assert.Equal(t, "tok", pub.events[0].Token)
	assert.NotEmpty(t, pub.events[0].EventID)
}
