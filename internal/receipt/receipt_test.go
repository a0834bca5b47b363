// internal/receipt/receipt_test.go
package receipt

import (
	"testing"
	"time"

	"tapcash-pos/internal/domain"
	"tapcash-pos/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func sampleSale() *domain.Sale {
	meter := "MTR-001"
	return &domain.Sale{
		ID:          1,
		Reference:   "7a9f0b58-1f7d-4a63-9a5b-1f3c1d2e4f56",
		PayerID:     42,
		Channel:     domain.ChannelDashboard,
		Subtotal:    decimal.RequireFromString("2500"),
		Tax:         decimal.RequireFromString("450"),
		Discount:    decimal.Zero,
		Total:       decimal.RequireFromString("2950"),
		RewardUnits: decimal.RequireFromString("30"),
		MeterID:     &meter,
		SoldAt:      time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Lines: []domain.SaleLine{
			{Position: 0, ProductID: 1, Name: "Cooking Oil 1L", Quantity: 2, UnitPrice: decimal.RequireFromString("1000"), LineTotal: decimal.RequireFromString("2000")},
			{Position: 1, ProductID: 2, Name: "Sugar 1kg", Quantity: 1, UnitPrice: decimal.RequireFromString("500"), LineTotal: decimal.RequireFromString("500")},
		},
	}
}

func TestRender(t *testing.T) {
	t.Run("RendersAllFields", func(t *testing.T) {
		sale := sampleSale()
		view, err := Render(sale)

		assert.NoError(t, err)
		assert.Equal(t, sale.Reference, view.Reference)
		assert.Equal(t, sale.SoldAt, view.IssuedAt)
		assert.Equal(t, sale.Channel, view.Channel)
		assert.True(t, view.Total.Equal(sale.Total))
		assert.True(t, view.RewardUnits.Equal(sale.RewardUnits))
		assert.Equal(t, sale.MeterID, view.MeterID)
	})

	t.Run("PreservesLineOrder", func(t *testing.T) {
		view, err := Render(sampleSale())

		assert.NoError(t, err)
		assert.Len(t, view.Lines, 2)
		assert.Equal(t, "Cooking Oil 1L", view.Lines[0].Name)
		assert.Equal(t, "Sugar 1kg", view.Lines[1].Name)
	})

	t.Run("DeterministicForSameSale", func(t *testing.T) {
		first, err := Render(sampleSale())
		assert.NoError(t, err)
		second, err := Render(sampleSale())
		assert.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("NilSale", func(t *testing.T) {
		_, err := Render(nil)
		assert.ErrorIs(t, err, util.ErrInvalidInput)
	})

	t.Run("SaleWithoutLines", func(t *testing.T) {
		sale := sampleSale()
		sale.Lines = nil
		_, err := Render(sale)
		assert.ErrorIs(t, err, util.ErrInvalidInput)
	})
}
