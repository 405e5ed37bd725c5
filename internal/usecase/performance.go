package usecase

import (
	"github.com/shopspring/decimal"

	"github.com/vitos/trade_calls/internal/domain"
)

// RealizedPoints is the price move booked by a closed call. ACTIVE calls and
// calls without an exit price count as zero.
func RealizedPoints(p domain.Position) decimal.Decimal {
	if p.IsActive() || p.ExitPrice.IsZero() {
		return decimal.Zero
	}
	switch p.Side {
	case domain.SideBuy:
		return p.ExitPrice.Sub(p.EntryPrice)
	case domain.SideSell:
		return p.EntryPrice.Sub(p.ExitPrice)
	}
	return decimal.Zero
}

// AggregatePerformance sums realized points over all closed calls.
func AggregatePerformance(positions []domain.Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(RealizedPoints(p))
	}
	return total
}

// Performance summarises the closed calls shown on the history tab.
type Performance struct {
	Closed         int             `json:"closed"`
	Wins           int             `json:"wins"`
	Losses         int             `json:"losses"`
	TargetHits     int             `json:"target_hits"`
	StopLossHits   int             `json:"stop_loss_hits"`
	ManualCloses   int             `json:"manual_closes"`
	TotalPoints    decimal.Decimal `json:"total_points"`
	HitRatePercent decimal.Decimal `json:"hit_rate_percent"`
}

func Summarize(positions []domain.Position) Performance {
	perf := Performance{TotalPoints: decimal.Zero, HitRatePercent: decimal.Zero}
	for _, p := range positions {
		if p.IsActive() {
			continue
		}
		perf.Closed++
		switch p.Status {
		case domain.StatusTargetHit:
			perf.TargetHits++
		case domain.StatusStopLossHit:
			perf.StopLossHits++
		case domain.StatusManuallyClosed:
			perf.ManualCloses++
		}

		pts := RealizedPoints(p)
		switch pts.Sign() {
		case 1:
			perf.Wins++
		case -1:
			perf.Losses++
		}
		perf.TotalPoints = perf.TotalPoints.Add(pts)
	}
	if perf.Closed > 0 {
		perf.HitRatePercent = decimal.NewFromInt(int64(perf.Wins)).
			Mul(decimal.NewFromInt(100)).
			DivRound(decimal.NewFromInt(int64(perf.Closed)), 2)
	}
	return perf
}
