// internal/domain/cart.go
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"tapcash-pos/internal/util"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// TaxRate is the fixed VAT rate applied to every sale.
var TaxRate = decimal.RequireFromString("0.18")

var oneHundred = decimal.NewFromInt(100)

// DiscountMode selects how a cart discount value is interpreted.
type DiscountMode string

const (
	DiscountModeFixed   DiscountMode = "FIXED"   // Value is an absolute amount
	DiscountModePercent DiscountMode = "PERCENT" // Value is a percentage of the subtotal
)

// CartLine is a single cart entry. The unit price is captured at add time
// so a sale's total stays stable once built; the stock snapshot backs the
// soft quantity clamp only, the hard gate re-checks at commit.
type CartLine struct {
	ProductID  int64           `json:"product_id"`
	Name       string          `json:"name"`
	Quantity   int64           `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	StockAtAdd int64           `json:"-"` // Last-known stock when the line was added
}

// LineTotal returns quantity times the captured unit price.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// Cart accumulates lines and computes totals under fixed arithmetic rules.
// It is created empty at checkout start and consumed exactly once by a
// successful settlement commit.
type Cart struct {
	Lines         []CartLine      `json:"lines"`
	DiscountMode  DiscountMode    `json:"discount_mode"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewCart creates an empty cart with no discount.
func NewCart() *Cart {
	return &Cart{
		DiscountMode:  DiscountModeFixed,
		DiscountValue: decimal.Zero,
		CreatedAt:     time.Now().UTC(),
	}
}

// AddLine appends quantity of the given product, merging with an existing
// line for the same product. The quantity is clamped to the product's
// last-known stock; the returned flag reports whether clamping happened.
// The hard stock gate at commit time is the true enforcement point.
func (c *Cart) AddLine(p *Product, quantity int64) (stockExceeded bool, err error) {
	if p == nil || quantity < 1 {
		return false, util.ErrInvalidInput
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == p.ID {
			requested := c.Lines[i].Quantity + quantity
			c.Lines[i].StockAtAdd = p.StockQuantity
			if requested > p.StockQuantity {
				c.Lines[i].Quantity = p.StockQuantity
				return true, nil
			}
			c.Lines[i].Quantity = requested
			return false, nil
		}
	}
	line := CartLine{
		ProductID:  p.ID,
		Name:       p.Name,
		Quantity:   quantity,
		UnitPrice:  p.UnitPrice,
		UnitCost:   p.UnitCost,
		StockAtAdd: p.StockQuantity,
	}
	if quantity > p.StockQuantity {
		line.Quantity = p.StockQuantity
		stockExceeded = true
	}
	if line.Quantity < 1 {
		return true, util.ErrInsufficientStock
	}
	c.Lines = append(c.Lines, line)
	return stockExceeded, nil
}

// AddLineExact appends quantity of the given product at exactly the
// requested quantity, without the soft stock clamp. Commit-time cart
// reconstruction uses it so a replayed commit fingerprints identically
// to the original even after the stock moved; the hard stock gate
// inside the settlement transaction is the enforcement point there.
func (c *Cart) AddLineExact(p *Product, quantity int64) error {
	if p == nil || quantity < 1 {
		return util.ErrInvalidInput
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == p.ID {
			c.Lines[i].Quantity += quantity
			c.Lines[i].StockAtAdd = p.StockQuantity
			return nil
		}
	}
	c.Lines = append(c.Lines, CartLine{
		ProductID:  p.ID,
		Name:       p.Name,
		Quantity:   quantity,
		UnitPrice:  p.UnitPrice,
		UnitCost:   p.UnitCost,
		StockAtAdd: p.StockQuantity,
	})
	return nil
}

// RemoveLine drops the line for the given product, if present.
func (c *Cart) RemoveLine(productID int64) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return
		}
	}
}

// SetQuantity replaces a line's quantity, clamped to the stock snapshot
// captured when the line was last validated.
func (c *Cart) SetQuantity(productID, quantity int64) (stockExceeded bool, err error) {
	if quantity < 1 {
		return false, util.ErrInvalidInput
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			if quantity > c.Lines[i].StockAtAdd {
				c.Lines[i].Quantity = c.Lines[i].StockAtAdd
				return true, nil
			}
			c.Lines[i].Quantity = quantity
			return false, nil
		}
	}
	return false, util.ErrNotFound
}

// ApplyDiscount sets the cart discount. Percentage values are clamped to
// [0, 100]; fixed values are clamped to the subtotal at computation time.
func (c *Cart) ApplyDiscount(value decimal.Decimal, mode DiscountMode) error {
	if value.IsNegative() {
		return util.ErrInvalidInput
	}
	switch mode {
	case DiscountModePercent:
		if value.GreaterThan(oneHundred) {
			value = oneHundred
		}
	case DiscountModeFixed:
		// Clamped against the subtotal in DiscountAmount.
	default:
		return util.ErrInvalidInput
	}
	c.DiscountMode = mode
	c.DiscountValue = value
	return nil
}

// IsEmpty reports whether the cart holds no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Subtotal is the sum of all line totals.
func (c *Cart) Subtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, l := range c.Lines {
		subtotal = subtotal.Add(l.LineTotal())
	}
	return subtotal
}

// Tax is the fixed-rate VAT on the subtotal.
func (c *Cart) Tax() decimal.Decimal {
	return c.Subtotal().Mul(TaxRate)
}

// DiscountAmount resolves the configured discount against the current
// subtotal. A fixed discount never exceeds the subtotal.
func (c *Cart) DiscountAmount() decimal.Decimal {
	subtotal := c.Subtotal()
	if c.DiscountMode == DiscountModePercent {
		return subtotal.Mul(c.DiscountValue).Div(oneHundred)
	}
	if c.DiscountValue.GreaterThan(subtotal) {
		return subtotal
	}
	return c.DiscountValue
}

// Total is subtotal + tax - discount, floored at zero.
func (c *Cart) Total() decimal.Decimal {
	total := c.Subtotal().Add(c.Tax()).Sub(c.DiscountAmount())
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// Profit is the margin over unit costs across all lines, before tax and
// discount. Reward accrual is computed from this figure.
func (c *Cart) Profit() decimal.Decimal {
	profit := decimal.Zero
	for _, l := range c.Lines {
		margin := l.UnitPrice.Sub(l.UnitCost).Mul(decimal.NewFromInt(l.Quantity))
		profit = profit.Add(margin)
	}
	return profit
}

// Fingerprint is a stable digest of the cart's lines and total, used to
// detect idempotency-token reuse against a different cart.
func (c *Cart) Fingerprint() string {
	var b strings.Builder
	for _, l := range c.Lines {
		fmt.Fprintf(&b, "%d:%d:%s;", l.ProductID, l.Quantity, l.UnitPrice.String())
	}
	fmt.Fprintf(&b, "%s:%s:%s", c.DiscountMode, c.DiscountValue.String(), c.Total().String())
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
