package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SheetColumns is the column order of the call sheet.
var SheetColumns = []string{"id", "stock", "type", "entry", "target", "sl", "status", "exit_price", "date"}

// ToRow renders a position as sheet cells in SheetColumns order.
func (p *Position) ToRow() []string {
	exit := ""
	if !p.ExitPrice.IsZero() {
		exit = p.ExitPrice.String()
	}
	date := ""
	if !p.OpenedOn.IsZero() {
		date = p.OpenedOn.Format(DateLayout)
	}
	return []string{
		strconv.FormatInt(p.ID, 10),
		p.Symbol,
		string(p.Side),
		p.EntryPrice.String(),
		p.TargetPrice.String(),
		p.StopLossPrice.String(),
		string(p.Status),
		exit,
		date,
	}
}

// PositionFromRow parses sheet cells. Malformed cells never fail the row:
// numbers fall back to zero and the problem is returned as a warning.
func PositionFromRow(header, row []string) (Position, []string) {
	cells := make(map[string]string, len(header))
	for i, h := range header {
		if i < len(row) {
			cells[strings.ToLower(strings.TrimSpace(h))] = row[i]
		}
	}
	var p Position
	p.Status = StatusActive
	warnings := ApplyCells(&p, cells)
	return p, warnings
}

// ApplyCells overwrites the fields named in cells. It is the unvalidated edit
// path used by bulk edits and sheet imports.
func ApplyCells(p *Position, cells map[string]string) []string {
	var warnings []string
	warn := func(col, val string) {
		warnings = append(warnings, fmt.Sprintf("row %d: %s %q is not valid", p.ID, col, val))
	}

	for col, raw := range cells {
		val := strings.TrimSpace(raw)
		switch strings.ToLower(col) {
		case "id":
			id, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				warn(col, val)
				continue
			}
			p.ID = id
		case "stock", "symbol":
			p.Symbol = strings.ToUpper(val)
		case "type", "side":
			side, err := ParseSide(val)
			if err != nil {
				warn(col, val)
				p.Side = Side(val)
				continue
			}
			p.Side = side
		case "entry", "entry_price":
			p.EntryPrice = parseCell(val, col, warn)
		case "target", "target_price":
			p.TargetPrice = parseCell(val, col, warn)
		case "sl", "stop_loss_price":
			p.StopLossPrice = parseCell(val, col, warn)
		case "exit_price":
			p.ExitPrice = parseCell(val, col, warn)
		case "status":
			st, err := ParseStatus(val)
			if err != nil {
				warn(col, val)
				continue
			}
			p.Status = st
		case "date", "opened_on":
			if val == "" {
				p.OpenedOn = time.Time{}
				continue
			}
			d, err := time.Parse(DateLayout, val)
			if err != nil {
				warn(col, val)
				continue
			}
			p.OpenedOn = d
		default:
			warnings = append(warnings, fmt.Sprintf("row %d: unknown column %q", p.ID, col))
		}
	}
	return warnings
}

func parseCell(val, col string, warn func(col, val string)) decimal.Decimal {
	if val == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val)
	if err != nil {
		warn(col, val)
		return decimal.Zero
	}
	return d
}
