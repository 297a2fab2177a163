package preset

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gttbracket/internal/bracket"
)

func ladderPreset() Preset {
	return Preset{
		ID: "three-tier",
		Stops: []Tier{
			{Label: "SL", OffsetPct: 2, Weight: 1},
		},
		Targets: []Tier{
			{Label: "T1", OffsetPct: 2, Weight: 1},
			{Label: "T2", OffsetPct: 4, Weight: 1},
			{Label: "T3", OffsetPct: 6, Weight: 1},
		},
	}
}

func TestMaterializePrices(t *testing.T) {
	t.Run("buy side", func(t *testing.T) {
		stops, targets, err := Materialize(ladderPreset(), bracket.SideBuy, 100, 100)
		assert.NoError(t, err)
		assert.Equal(t, 98.0, stops[0].Price, "buy stops sit below entry")
		assert.Equal(t, 102.0, targets[0].Price)
		assert.Equal(t, 104.0, targets[1].Price)
		assert.Equal(t, 106.0, targets[2].Price)
		assert.Equal(t, bracket.KindStop, stops[0].Kind)
		assert.Equal(t, bracket.KindTarget, targets[0].Kind)
		assert.Equal(t, bracket.StatusNotPlaced, targets[0].Status)
	})
	t.Run("sell side inverts", func(t *testing.T) {
		stops, targets, err := Materialize(ladderPreset(), bracket.SideSell, 100, 100)
		assert.NoError(t, err)
		assert.Equal(t, 102.0, stops[0].Price, "sell stops sit above entry")
		assert.Equal(t, 98.0, targets[0].Price)
	})
	t.Run("prices round to two decimals", func(t *testing.T) {
		_, targets, err := Materialize(ladderPreset(), bracket.SideBuy, 333.33, 10)
		assert.NoError(t, err)
		assert.Equal(t, 340.0, targets[0].Price) // 333.33 * 1.02 = 339.9966
	})
}

func TestMaterializeQuantitySplit(t *testing.T) {
	t.Run("equal weights carry the remainder forward", func(t *testing.T) {
		_, targets, err := Materialize(ladderPreset(), bracket.SideBuy, 100, 100)
		assert.NoError(t, err)
		assert.Equal(t, 34, targets[0].Quantity)
		assert.Equal(t, 33, targets[1].Quantity)
		assert.Equal(t, 33, targets[2].Quantity)
	})
	t.Run("weighted split sums exactly", func(t *testing.T) {
		p := ladderPreset()
		p.Targets[0].Weight = 2
		_, targets, err := Materialize(p, bracket.SideBuy, 100, 65)
		assert.NoError(t, err)
		sum := 0
		for _, l := range targets {
			sum += l.Quantity
		}
		assert.Equal(t, 65, sum)
		assert.Equal(t, 33, targets[0].Quantity) // 65*2/4 = 32.5, largest remainder
		assert.Equal(t, 16, targets[1].Quantity)
		assert.Equal(t, 16, targets[2].Quantity)
	})
	t.Run("stop takes the full size", func(t *testing.T) {
		stops, _, err := Materialize(ladderPreset(), bracket.SideBuy, 100, 65)
		assert.NoError(t, err)
		assert.Equal(t, 65, stops[0].Quantity)
	})
}

func TestMaterializeValidation(t *testing.T) {
	_, _, err := Materialize(ladderPreset(), bracket.SideBuy, 0, 100)
	assert.Error(t, err)

	_, _, err = Materialize(ladderPreset(), bracket.SideBuy, 100, 0)
	assert.Error(t, err)

	_, _, err = Materialize(Preset{ID: "empty"}, bracket.SideBuy, 100, 100)
	assert.Error(t, err)
}
