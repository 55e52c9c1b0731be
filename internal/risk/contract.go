package risk

import "strings"

// ContractSpec describes the tick economics of a futures contract.
type ContractSpec struct {
	TickSize  float64
	TickValue float64
}

// PointValue is the dollar value of a one point move per contract.
func (s ContractSpec) PointValue() float64 {
	return s.TickValue / s.TickSize
}

var contractSpecs = map[string]ContractSpec{
	"ES":  {TickSize: 0.25, TickValue: 12.50},
	"NQ":  {TickSize: 0.25, TickValue: 5.00},
	"YM":  {TickSize: 1.00, TickValue: 5.00},
	"RTY": {TickSize: 0.10, TickValue: 5.00},
}

// SpecFor returns the contract spec for a symbol. Continuous-contract
// suffixes ("ES1!") are stripped. Unknown symbols fall back to the ES spec.
func SpecFor(symbol string) ContractSpec {
	key := strings.ToUpper(strings.TrimSuffix(symbol, "1!"))
	if spec, ok := contractSpecs[key]; ok {
		return spec
	}
	return contractSpecs["ES"]
}
