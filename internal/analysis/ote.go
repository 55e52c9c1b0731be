package analysis

import (
	"math"

	"ict-sweep-bot/config"
)

// OTEZone is the optimal trade entry band of the impulse leg from the sweep
// extreme to the post-sweep extreme. Shallow is the boundary closer to the
// impulse extreme, Deep the boundary closer to the sweep anchor.
type OTEZone struct {
	Direction Direction
	Anchor    float64 // sweep extreme, the 0% end of the leg
	Impulse   float64 // post-sweep extreme, the 100% end
	Shallow   float64
	Deep      float64
	Discount  float64
}

// NewOTEZone computes the retracement band for a leg. The anchor is the
// sweep wick, the impulse the furthest price reached after it. Fib
// fractions are normalized so the shallow boundary always uses the smaller
// retrace regardless of configuration order.
func NewOTEZone(dir Direction, anchor, impulse float64, cfg config.OTEConfig) OTEZone {
	lo := math.Min(cfg.FibLower, cfg.FibUpper)
	hi := math.Max(cfg.FibLower, cfg.FibUpper)
	rng := math.Abs(impulse - anchor)
	sign := dir.Sign()

	return OTEZone{
		Direction: dir,
		Anchor:    anchor,
		Impulse:   impulse,
		Shallow:   impulse - sign*rng*lo,
		Deep:      impulse - sign*rng*hi,
		Discount:  impulse - sign*rng*cfg.DiscountFibMax,
	}
}

// PriceInOTE reports whether the price sits inside the retracement band.
func (z OTEZone) PriceInOTE(price float64) bool {
	sign := z.Direction.Sign()
	return sign*(z.Shallow-price) >= 0 && sign*(price-z.Deep) >= 0
}

// PriceInDiscount reports whether the price has retraced at least to the
// discount boundary (premium boundary for shorts).
func (z OTEZone) PriceInDiscount(price float64) bool {
	return z.Direction.Sign()*(z.Discount-price) >= 0
}

// OverlapsFVG reports whether any part of the gap intersects the band.
func (z OTEZone) OverlapsFVG(fvg *FVG) bool {
	zoneTop := math.Max(z.Shallow, z.Deep)
	zoneBottom := math.Min(z.Shallow, z.Deep)
	return fvg.Bottom <= zoneTop && fvg.Top >= zoneBottom
}
