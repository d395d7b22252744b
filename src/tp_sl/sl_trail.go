package tp_sl

import (
	"riskexecutor/src/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Percentages are the configured distances from a reference price, in percent.
// A value <= 0 disables the corresponding threshold.
type Percentages struct {
	StopLossPct     decimal.Decimal
	TakeProfitPct   decimal.Decimal
	TrailingStopPct decimal.Decimal
}

// Thresholds are the absolute exit prices of a position. Nil means not set.
type Thresholds struct {
	StopLoss     *decimal.Decimal
	TakeProfit   *decimal.Decimal
	TrailingStop *decimal.Decimal
}

// Derive computes fresh thresholds from an entry price.
//
// Long:  stop = entry*(1-sl%), target = entry*(1+tp%), trail = entry*(1-trail%)
// Short: stop = entry*(1+sl%), target = entry*(1-tp%), trail = entry*(1+trail%)
func Derive(side model.PositionSide, entry decimal.Decimal, pct Percentages) Thresholds {
	return Thresholds{
		StopLoss:     offset(entry, pct.StopLossPct, side == model.PositionSideShort),
		TakeProfit:   offset(entry, pct.TakeProfitPct, side != model.PositionSideShort),
		TrailingStop: offset(entry, pct.TrailingStopPct, side == model.PositionSideShort),
	}
}

// TrailingCandidate is the trailing value the current price would imply.
func TrailingCandidate(side model.PositionSide, price, trailingPct decimal.Decimal) decimal.Decimal {
	if side == model.PositionSideShort {
		return scale(price, trailingPct)
	}
	return scale(price, trailingPct.Neg())
}

// ComputeNextStopLossDirectional applies the trailing ratchet for long or short.
//
// Long:  candidate = price*(1-trail%), adopted only when greater than current
// Short: candidate = price*(1+trail%), adopted only when smaller than current
func ComputeNextStopLossDirectional(
	side model.PositionSide,
	currentSL decimal.Decimal,
	price decimal.Decimal,
	trailingPct decimal.Decimal,
) (newSL decimal.Decimal, moved bool) {
	if !trailingPct.IsPositive() || !price.IsPositive() {
		return currentSL, false
	}

	candidate := TrailingCandidate(side, price, trailingPct)

	switch side {
	case model.PositionSideLong:
		if candidate.GreaterThan(currentSL) {
			return candidate, true
		}
		return currentSL, false

	case model.PositionSideShort:
		// Stop only moves down for shorts
		if candidate.LessThan(currentSL) {
			return candidate, true
		}
		return currentSL, false

	default:
		return currentSL, false
	}
}

// Tighter reports whether candidate is a stricter stop than current for the side.
func Tighter(side model.PositionSide, candidate, current decimal.Decimal) bool {
	if side == model.PositionSideShort {
		return candidate.LessThan(current)
	}
	return candidate.GreaterThan(current)
}

func StopLossHit(side model.PositionSide, price decimal.Decimal, stop *decimal.Decimal) bool {
	if stop == nil || !price.IsPositive() {
		return false
	}
	if side == model.PositionSideShort {
		return price.GreaterThanOrEqual(*stop)
	}
	return price.LessThanOrEqual(*stop)
}

func TakeProfitHit(side model.PositionSide, price decimal.Decimal, target *decimal.Decimal) bool {
	if target == nil || !price.IsPositive() {
		return false
	}
	if side == model.PositionSideShort {
		return price.LessThanOrEqual(*target)
	}
	return price.GreaterThanOrEqual(*target)
}

func offset(ref, pct decimal.Decimal, up bool) *decimal.Decimal {
	if !pct.IsPositive() {
		return nil
	}
	if !up {
		pct = pct.Neg()
	}
	v := scale(ref, pct)
	return &v
}

func scale(ref, pct decimal.Decimal) decimal.Decimal {
	return ref.Mul(hundred.Add(pct)).Div(hundred)
}
