package analysis

import "time"

// Direction parameterizes every detector so the long and short sides share
// one implementation. Long setups start from a sell-side sweep, short setups
// from a buy-side sweep.
type Direction int

const (
	Long Direction = iota
	Short
)

func (d Direction) String() string {
	if d == Short {
		return "SHORT"
	}
	return "LONG"
}

// Sign returns +1 for Long and -1 for Short. Detector arithmetic is written
// once against the sign instead of being mirrored per side.
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

// SwingType marks a pivot as a swing high or swing low.
type SwingType int

const (
	SwingHigh SwingType = iota
	SwingLow
)

func (t SwingType) String() string {
	if t == SwingLow {
		return "LOW"
	}
	return "HIGH"
}

// SwingPoint is a fractal pivot. ConfirmableAt is the first bar index at
// which the pivot is allowed to influence a decision: the pivot bar plus the
// right-hand window. Using a pivot before that index would peek at bars that
// had not closed when the pivot formed.
type SwingPoint struct {
	BarIndex      int
	Timestamp     time.Time
	Price         float64
	Type          SwingType
	ConfirmableAt int
}

// Sweep is a liquidity sweep event. For Long it is a sell-side sweep (a dip
// below a swing low), for Short a buy-side sweep (a spike above a swing
// high). Extreme is the sweep wick, the lowest low or highest high of the
// sweep bar.
type Sweep struct {
	Direction       Direction
	SweptSwing      SwingPoint
	BarIndex        int
	Timestamp       time.Time
	Extreme         float64
	Penetration     float64
	Confirmed       bool
	ConfirmBarIndex int
}

// MSS is a market structure shift: the break of the lower-high (Long) or
// higher-low (Short) pivot that formed before the sweep.
type MSS struct {
	Direction        Direction
	Pivot            SwingPoint
	BreakBarIndex    int
	Timestamp        time.Time
	BreakPrice       float64
	ConfirmedByClose bool
}

// Displacement is an impulsive candle whose body clears the configured
// threshold.
type Displacement struct {
	BarIndex    int
	Timestamp   time.Time
	Body        float64
	ATRMultiple float64
	Direction   Direction
}

// FVG is a three-bar fair value gap. BarIndex is the middle bar, the one
// that created the imbalance.
type FVG struct {
	Direction          Direction
	BarIndex           int
	Timestamp          time.Time
	Top                float64
	Bottom             float64
	Size               float64
	Mitigated          bool
	MitigationBarIndex int
}

// Midpoint returns the center of the gap.
func (f FVG) Midpoint() float64 {
	return (f.Top + f.Bottom) / 2
}

// NearEdge is the edge price touches first on a retrace into the gap: the
// top for a bullish gap, the bottom for a bearish one.
func (f FVG) NearEdge() float64 {
	if f.Direction == Short {
		return f.Bottom
	}
	return f.Top
}

// FarEdge is the opposite edge, the last line before the gap is consumed.
func (f FVG) FarEdge() float64 {
	if f.Direction == Short {
		return f.Top
	}
	return f.Bottom
}
