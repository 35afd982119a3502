package quota

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// multiplierTolerance is how close a requested multiplier must be to a
// table entry to match it.
const multiplierTolerance = 0.001

// Odds is one published multiplier and its win probability.
type Odds struct {
	Multiplier  float64
	Probability float64
}

// OddsTable is the fixed set of wagers players may place. The
// probabilities are published constants and are not derived from the
// multiplier.
type OddsTable []Odds

// DefaultOdds is the stock table.
func DefaultOdds() OddsTable {
	return OddsTable{
		{Multiplier: 1.05, Probability: 0.8571428571428571},
		{Multiplier: 1.10, Probability: 0.8181818181818182},
		{Multiplier: 1.25, Probability: 0.72},
		{Multiplier: 1.50, Probability: 0.6},
		{Multiplier: 2.00, Probability: 0.45},
		{Multiplier: 3.00, Probability: 0.3},
		{Multiplier: 5.00, Probability: 0.18},
		{Multiplier: 10.00, Probability: 0.09},
	}
}

// Lookup finds the entry matching multiplier.
func (t OddsTable) Lookup(multiplier float64) (Odds, bool) {
	for _, o := range t {
		if math.Abs(o.Multiplier-multiplier) < multiplierTolerance {
			return o, true
		}
	}
	return Odds{}, false
}

// Multipliers lists the table's multipliers, e.g. "1.05, 1.1, 2".
func (t OddsTable) Multipliers() string {
	parts := make([]string, 0, len(t))
	for _, o := range t {
		parts = append(parts, FormatMultiplier(o.Multiplier))
	}
	return strings.Join(parts, ", ")
}

// Validate checks the table is usable.
func (t OddsTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("odds table is empty")
	}
	for _, o := range t {
		if o.Multiplier <= 1 {
			return fmt.Errorf("multiplier %s must be greater than 1", FormatMultiplier(o.Multiplier))
		}
		if o.Probability <= 0 || o.Probability >= 1 {
			return fmt.Errorf("probability for %sx must be between 0 and 1", FormatMultiplier(o.Multiplier))
		}
	}
	return nil
}

// FormatMultiplier renders a multiplier without trailing zeros.
func FormatMultiplier(m float64) string {
	return strconv.FormatFloat(m, 'f', -1, 64)
}

// OneIn renders the probability as "1 in X.X".
func (o Odds) OneIn() string {
	return fmt.Sprintf("1 in %.1f", 1/o.Probability)
}
