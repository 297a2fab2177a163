package bracket

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Alert condition relative to the last traded price.
const (
	ConditionLTPBelow = "LTP_BELOW"
	ConditionLTPAbove = "LTP_ABOVE"
)

// legDirection resolves the alert condition and the child order side for a
// leg. A BUY position exits via SELL children: its stop fires when price
// falls below the stop level, its target when price rises above the target
// level. A SELL position inverts both.
func legDirection(side Side, kind LegKind) (condition, orderSide string, err error) {
	switch {
	case side == SideBuy && kind == KindStop:
		return ConditionLTPBelow, "SELL", nil
	case side == SideBuy && kind == KindTarget:
		return ConditionLTPAbove, "SELL", nil
	case side == SideSell && kind == KindStop:
		return ConditionLTPAbove, "BUY", nil
	case side == SideSell && kind == KindTarget:
		return ConditionLTPBelow, "BUY", nil
	default:
		return "", "", fmt.Errorf("no direction for side=%s kind=%s", side, kind)
	}
}

// BuildPayload renders the broker form fields for one leg. All values go
// over the wire as strings; prices carry exactly two decimal places and the
// leg price serves as both the alert trigger and the child limit price.
// Optional fields are omitted entirely when blank.
func BuildPayload(p *Plan, l *Leg) (map[string]string, error) {
	condition, orderSide, err := legDirection(p.Side, l.Kind)
	if err != nil {
		return nil, err
	}
	price := decimal.NewFromFloat(l.Price).StringFixed(2)
	payload := map[string]string{
		"exchange":      p.Exchange,
		"tradingsymbol": p.Symbol,
		"condition":     condition,
		"alert_price":   price,
		"quantity":      strconv.Itoa(l.Quantity),
		"order_type":    orderSide,
		"price":         price,
	}
	if p.ProductType != "" {
		payload["product_type"] = p.ProductType
	}
	if p.Remarks != "" {
		payload["remarks"] = p.Remarks
	}
	return payload, nil
}
