package domain

import "math"

// CartLine is a single purchasable position in the cart. Two lines are the
// same position when product, size and color all match.
type CartLine struct {
	ProductID string  `bson:"product_id" json:"product_id"`
	Name      string  `bson:"name" json:"name"`
	UnitPrice float64 `bson:"price" json:"unit_price"`
	Quantity  int     `bson:"quantity" json:"quantity"`
	Size      string  `bson:"size" json:"size"`
	Color     string  `bson:"color,omitempty" json:"color,omitempty"`
	Image     string  `bson:"image" json:"image"`
	BundleID  string  `bson:"bundle_id,omitempty" json:"bundle_id,omitempty"`
}

type LineKey struct {
	ProductID string
	Size      string
	Color     string
}

func (l CartLine) Key() LineKey {
	return LineKey{ProductID: l.ProductID, Size: l.Size, Color: l.Color}
}

type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// Pricing holds the storefront pricing policy applied to every cart.
type Pricing struct {
	FreeShippingThreshold float64
	FlatShippingFee       float64
	TaxRate               float64
}

func DefaultPricing() Pricing {
	return Pricing{
		FreeShippingThreshold: 150,
		FlatShippingFee:       15,
		TaxRate:               0.08,
	}
}

// TotalsFor derives subtotal, shipping, tax and total from the given lines.
// An empty cart yields all zeroes, shipping fee included.
func (p Pricing) TotalsFor(lines []CartLine) Totals {
	var t Totals
	if len(lines) == 0 {
		return t
	}

	for _, l := range lines {
		t.Subtotal += l.UnitPrice * float64(l.Quantity)
	}
	t.Subtotal = Round2(t.Subtotal)

	if t.Subtotal < p.FreeShippingThreshold {
		t.Shipping = p.FlatShippingFee
	}

	t.Tax = Round2(t.Subtotal * p.TaxRate)
	t.Total = Round2(t.Subtotal + t.Shipping + t.Tax)
	return t
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
