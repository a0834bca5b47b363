// internal/domain/sale.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal" // For precise monetary calculations
)

// SaleLine is a committed cart line. Order is preserved for receipt
// rendering.
type SaleLine struct {
	ID        int64           `db:"id" json:"id"`
	SaleID    int64           `db:"sale_id" json:"sale_id"`
	Position  int             `db:"position" json:"position"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Name      string          `db:"name" json:"name"`
	Quantity  int64           `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	LineTotal decimal.Decimal `db:"line_total" json:"line_total"`
}

// Sale is the immutable record of a committed cart. It is created exactly
// once per successful settlement commit and never mutated afterwards.
type Sale struct {
	ID               int64           `db:"id" json:"id"`
	Reference        string          `db:"reference" json:"reference"` // UUID, unique
	PayerID          int64           `db:"payer_id" json:"payer_id"`
	Channel          FundingChannel  `db:"channel" json:"channel"`
	Subtotal         decimal.Decimal `db:"subtotal" json:"subtotal"`
	Tax              decimal.Decimal `db:"tax" json:"tax"`
	Discount         decimal.Decimal `db:"discount" json:"discount"`
	Total            decimal.Decimal `db:"total" json:"total"`
	RewardUnits      decimal.Decimal `db:"reward_units" json:"reward_units"` // Gas units accrued, zero when not eligible
	MeterID          *string         `db:"meter_id" json:"meter_id"`
	IdempotencyToken string          `db:"idempotency_token" json:"idempotency_token"`
	CartFingerprint  string          `db:"cart_fingerprint" json:"cart_fingerprint"`
	SoldAt           time.Time       `db:"sold_at" json:"sold_at"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`

	Lines []SaleLine `db:"-" json:"lines"`
}

// NewSale snapshots an authorized intent and its cart into a sale record.
func NewSale(cart *Cart, intent *PaymentIntent, rewardUnits decimal.Decimal) *Sale {
	now := time.Now().UTC()
	sale := &Sale{
		Reference:        uuid.New().String(),
		PayerID:          intent.PayerID,
		Channel:          intent.Channel,
		Subtotal:         cart.Subtotal(),
		Tax:              cart.Tax(),
		Discount:         cart.DiscountAmount(),
		Total:            cart.Total(),
		RewardUnits:      rewardUnits,
		MeterID:          intent.MeterID,
		IdempotencyToken: intent.IdempotencyToken,
		CartFingerprint:  cart.Fingerprint(),
		SoldAt:           now,
		CreatedAt:        now,
	}
	for i, l := range cart.Lines {
		sale.Lines = append(sale.Lines, SaleLine{
			Position:  i,
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal(),
		})
	}
	return sale
}

// RewardAccrual ties gas units earned by a sale to a prepaid-gas meter.
type RewardAccrual struct {
	ID            int64           `db:"id" json:"id"`
	SaleReference string          `db:"sale_reference" json:"sale_reference"`
	MeterID       string          `db:"meter_id" json:"meter_id"`
	Units         decimal.Decimal `db:"units" json:"units"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// NewRewardAccrual creates an accrual record for a committed sale.
func NewRewardAccrual(saleReference, meterID string, units decimal.Decimal) *RewardAccrual {
	return &RewardAccrual{
		SaleReference: saleReference,
		MeterID:       meterID,
		Units:         units,
		CreatedAt:     time.Now().UTC(),
	}
}
