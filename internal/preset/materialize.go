package preset

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"gttbracket/internal/bracket"
)

var (
	decOne     = decimal.NewFromInt(1)
	decHundred = decimal.NewFromInt(100)
)

// Materialize turns a preset into concrete stop and target legs for one
// position. Tier offsets point away from entry in the direction the kind
// implies: for a BUY position stops sit below entry and targets above, for
// a SELL position the reverse. Quantities split by tier weight using
// largest-remainder rounding so they always sum exactly to totalQty.
func Materialize(p Preset, side bracket.Side, entryPrice float64, totalQty int) (stops, targets []bracket.Leg, err error) {
	if entryPrice <= 0 {
		return nil, nil, fmt.Errorf("entry price must be positive")
	}
	if totalQty <= 0 {
		return nil, nil, fmt.Errorf("total quantity must be positive")
	}
	if len(p.Stops) == 0 && len(p.Targets) == 0 {
		return nil, nil, fmt.Errorf("preset %s has no tiers", p.ID)
	}
	stops = buildLegs(p.Stops, bracket.KindStop, side, entryPrice, totalQty)
	targets = buildLegs(p.Targets, bracket.KindTarget, side, entryPrice, totalQty)
	return stops, targets, nil
}

func buildLegs(tiers []Tier, kind bracket.LegKind, side bracket.Side, entry float64, totalQty int) []bracket.Leg {
	if len(tiers) == 0 {
		return nil
	}
	qtys := splitByWeight(totalQty, tierWeights(tiers))
	legs := make([]bracket.Leg, 0, len(tiers))
	for i, t := range tiers {
		legs = append(legs, bracket.Leg{
			Label:    t.Label,
			Kind:     kind,
			Price:    tierPrice(entry, t.OffsetPct, kind, side),
			Quantity: qtys[i],
			Status:   bracket.StatusNotPlaced,
		})
	}
	return legs
}

// tierPrice computes entry shifted by offsetPct percent, away from entry in
// the leg's direction. Decimal arithmetic keeps ladder prices exact.
func tierPrice(entry, offsetPct float64, kind bracket.LegKind, side bracket.Side) float64 {
	pct := decimal.NewFromFloat(offsetPct).Div(decHundred)
	up := (side == bracket.SideBuy) == (kind == bracket.KindTarget)
	var factor decimal.Decimal
	if up {
		factor = decOne.Add(pct)
	} else {
		factor = decOne.Sub(pct)
	}
	out, _ := decimal.NewFromFloat(entry).Mul(factor).Round(2).Float64()
	return out
}

func tierWeights(tiers []Tier) []int {
	weights := make([]int, len(tiers))
	for i, t := range tiers {
		w := t.Weight
		if w < 1 {
			w = 1
		}
		weights[i] = w
	}
	return weights
}

// splitByWeight apportions total across weights with the largest-remainder
// method: floor every share, then hand the leftover units to the largest
// fractional parts, earlier tiers first on ties.
func splitByWeight(total int, weights []int) []int {
	sum := 0
	for _, w := range weights {
		sum += w
	}
	out := make([]int, len(weights))
	type frac struct {
		idx int
		rem int
	}
	fracs := make([]frac, len(weights))
	assigned := 0
	for i, w := range weights {
		out[i] = total * w / sum
		assigned += out[i]
		fracs[i] = frac{idx: i, rem: total * w % sum}
	}
	sort.SliceStable(fracs, func(i, j int) bool { return fracs[i].rem > fracs[j].rem })
	for k := 0; k < total-assigned; k++ {
		out[fracs[k].idx]++
	}
	return out
}
