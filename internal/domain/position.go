package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide accepts any casing of BUY/SELL.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", fmt.Errorf("unknown side %q: %w", s, ErrInvalidCall)
}

type Status string

const (
	StatusActive         Status = "ACTIVE"
	StatusTargetHit      Status = "TARGET_HIT"
	StatusStopLossHit    Status = "STOP_LOSS_HIT"
	StatusManuallyClosed Status = "MANUALLY_CLOSED"
)

// ParseStatus maps stored status strings (including the legacy sheet values
// "Active", "Target Hit", "SL Hit", "Closed") onto Status.
func ParseStatus(s string) (Status, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch norm {
	case "", "ACTIVE":
		return StatusActive, nil
	case "TARGET_HIT":
		return StatusTargetHit, nil
	case "STOP_LOSS_HIT", "SL_HIT":
		return StatusStopLossHit, nil
	case "MANUALLY_CLOSED", "CLOSED":
		return StatusManuallyClosed, nil
	}
	return "", fmt.Errorf("unknown status %q: %w", s, ErrInvalidCall)
}

// Terminal reports whether the status can no longer change automatically.
func (s Status) Terminal() bool {
	return s != StatusActive
}

const DateLayout = "2006-01-02"

// Position is a single published call.
type Position struct {
	ID            int64           `json:"id"`
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	TargetPrice   decimal.Decimal `json:"target_price"`
	StopLossPrice decimal.Decimal `json:"stop_loss_price"`
	Status        Status          `json:"status"`
	ExitPrice     decimal.Decimal `json:"exit_price"` // zero while ACTIVE
	OpenedOn      time.Time       `json:"opened_on"`
}

func (p *Position) IsActive() bool {
	return p.Status == StatusActive
}

// Validate checks the fields a call needs before it can be evaluated.
func (p *Position) Validate() error {
	if strings.TrimSpace(p.Symbol) == "" {
		return fmt.Errorf("call %d: symbol is required: %w", p.ID, ErrInvalidCall)
	}
	if p.Side != SideBuy && p.Side != SideSell {
		return fmt.Errorf("call %d: side %q: %w", p.ID, p.Side, ErrInvalidCall)
	}
	prices := []struct {
		name  string
		value decimal.Decimal
	}{
		{"entry", p.EntryPrice},
		{"target", p.TargetPrice},
		{"stop loss", p.StopLossPrice},
	}
	for _, f := range prices {
		if !f.value.IsPositive() {
			return fmt.Errorf("call %d: %s price must be positive: %w", p.ID, f.name, ErrInvalidCall)
		}
	}
	return nil
}

// NewCall holds the admin input for publishing a call.
type NewCall struct {
	Symbol        string
	Side          Side
	EntryPrice    decimal.Decimal
	TargetPrice   decimal.Decimal
	StopLossPrice decimal.Decimal
}

// RowEdit replaces raw cell values of one row. Keys are sheet column names
// (stock, type, entry, target, sl, status, exit_price, date).
type RowEdit struct {
	ID     int64             `json:"id"`
	Fields map[string]string `json:"fields"`
}
