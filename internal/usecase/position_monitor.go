package usecase

import (
	"github.com/shopspring/decimal"

	"github.com/vitos/trade_calls/internal/domain"
)

// PriceLookup returns the latest price for a symbol, or false when none is
// available this cycle.
type PriceLookup func(symbol string) (decimal.Decimal, bool)

// Evaluation is the outcome for one position of a monitor pass.
type Evaluation struct {
	Position domain.Position
	Changed  bool
}

type PositionMonitor struct{}

func NewPositionMonitor() *PositionMonitor {
	return &PositionMonitor{}
}

// Evaluate checks every ACTIVE position against its target and stop loss and
// returns a new snapshot in input order. The input slice is not modified.
func (m *PositionMonitor) Evaluate(positions []domain.Position, lookup PriceLookup) []Evaluation {
	out := make([]Evaluation, len(positions))
	for i, p := range positions {
		out[i] = Evaluation{Position: p}
		if !p.IsActive() || p.Validate() != nil {
			continue
		}

		price, ok := lookup(p.Symbol)
		if !ok || !price.IsPositive() {
			continue // retry next cycle
		}

		status, hit := m.Trigger(&p, price)
		if !hit {
			continue
		}
		out[i].Position.Status = status
		out[i].Position.ExitPrice = price
		out[i].Changed = true
	}
	return out
}

// Trigger reports which terminal status price reaches for p. The target is
// checked first and wins when a misconfigured call satisfies both.
func (m *PositionMonitor) Trigger(p *domain.Position, price decimal.Decimal) (domain.Status, bool) {
	switch p.Side {
	case domain.SideBuy:
		if price.GreaterThanOrEqual(p.TargetPrice) {
			return domain.StatusTargetHit, true
		}
		if price.LessThanOrEqual(p.StopLossPrice) {
			return domain.StatusStopLossHit, true
		}
	case domain.SideSell:
		if price.LessThanOrEqual(p.TargetPrice) {
			return domain.StatusTargetHit, true
		}
		if price.GreaterThanOrEqual(p.StopLossPrice) {
			return domain.StatusStopLossHit, true
		}
	}
	return domain.StatusActive, false
}

// Changed filters evaluations down to the positions that transitioned.
func Changed(evals []Evaluation) []domain.Position {
	var changed []domain.Position
	for _, e := range evals {
		if e.Changed {
			changed = append(changed, e.Position)
		}
	}
	return changed
}

// Snapshot returns the positions of evals in order.
func Snapshot(evals []Evaluation) []domain.Position {
	out := make([]domain.Position, len(evals))
	for i, e := range evals {
		out[i] = e.Position
	}
	return out
}
