// internal/receipt/receipt.go

// Package receipt renders a committed sale into an immutable, replayable
// summary. Rendering has no side effects.
package receipt

import (
	"fmt"
	"time"

	"tapcash-pos/internal/domain"
	"tapcash-pos/internal/util"

	"github.com/shopspring/decimal"
)

// LineView is one rendered receipt line, in the order the cart was built.
type LineView struct {
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// View is the durable summary of a finalized sale.
type View struct {
	Reference   string                `json:"reference"`
	IssuedAt    time.Time             `json:"issued_at"`
	Channel     domain.FundingChannel `json:"channel"`
	Lines       []LineView            `json:"lines"`
	Subtotal    decimal.Decimal       `json:"subtotal"`
	Tax         decimal.Decimal       `json:"tax"`
	Discount    decimal.Decimal       `json:"discount"`
	Total       decimal.Decimal       `json:"total"`
	RewardUnits decimal.Decimal       `json:"reward_units"`
	MeterID     *string               `json:"meter_id,omitempty"`
}

// Render converts a sale into its receipt view. It fails only on
// malformed input.
func Render(sale *domain.Sale) (*View, error) {
	if sale == nil || sale.Reference == "" {
		return nil, fmt.Errorf("render receipt: %w", util.ErrInvalidInput)
	}
	if len(sale.Lines) == 0 {
		return nil, fmt.Errorf("render receipt: sale %s has no lines: %w", sale.Reference, util.ErrInvalidInput)
	}

	view := &View{
		Reference:   sale.Reference,
		IssuedAt:    sale.SoldAt,
		Channel:     sale.Channel,
		Subtotal:    sale.Subtotal,
		Tax:         sale.Tax,
		Discount:    sale.Discount,
		Total:       sale.Total,
		RewardUnits: sale.RewardUnits,
		MeterID:     sale.MeterID,
	}
	for _, l := range sale.Lines {
		view.Lines = append(view.Lines, LineView{
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
		})
	}
	return view, nil
}
