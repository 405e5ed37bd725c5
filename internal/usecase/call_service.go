package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/vitos/trade_calls/internal/domain"
	"github.com/vitos/trade_calls/internal/infrastructure/tracing"
)

// Quoter is the part of MarketService the call service needs.
type Quoter interface {
	Quote(ctx context.Context, symbol string) (decimal.Decimal, bool)
	Quotes(ctx context.Context, symbols []string) map[string]decimal.Decimal
}

// CallService owns the call sheet: admin edits, monitor passes and the
// viewer projections.
type CallService struct {
	repo    domain.PositionRepository
	market  Quoter
	monitor *PositionMonitor
	logger  *zap.Logger

	// serialises read-modify-write cycles within this process
	mu      sync.Mutex
	timeNow func() time.Time
}

func NewCallService(repo domain.PositionRepository, market Quoter, logger *zap.Logger) *CallService {
	return &CallService{
		repo:    repo,
		market:  market,
		monitor: NewPositionMonitor(),
		logger:  logger,
		timeNow: time.Now,
	}
}

// Calls loads the sheet. When storage is unavailable the caller gets an empty
// sheet plus a warning instead of an error.
func (s *CallService) Calls(ctx context.Context) ([]domain.Position, []string) {
	positions, err := s.repo.Load(ctx)
	if err != nil {
		s.logger.Warn("Call sheet unavailable, using empty sheet", zap.Error(err))
		return []domain.Position{}, []string{"Call sheet is temporarily unavailable."}
	}
	return positions, nil
}

func (s *CallService) load(ctx context.Context) ([]domain.Position, error) {
	positions, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load calls: %w", err)
	}
	return positions, nil
}

func (s *CallService) save(ctx context.Context, positions []domain.Position) error {
	if err := s.repo.Save(ctx, positions); err != nil {
		return fmt.Errorf("failed to save calls: %w", err)
	}
	return nil
}

// Publish appends a new ACTIVE call.
func (s *CallService) Publish(ctx context.Context, in domain.NewCall) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions, err := s.load(ctx)
	if err != nil {
		return domain.Position{}, err
	}

	var maxID int64
	for _, p := range positions {
		if p.ID > maxID {
			maxID = p.ID
		}
	}

	now := s.timeNow()
	call := domain.Position{
		ID:            maxID + 1,
		Symbol:        strings.ToUpper(strings.TrimSpace(in.Symbol)),
		Side:          in.Side,
		EntryPrice:    in.EntryPrice,
		TargetPrice:   in.TargetPrice,
		StopLossPrice: in.StopLossPrice,
		Status:        domain.StatusActive,
		ExitPrice:     decimal.Zero,
		OpenedOn:      time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
	}
	if err := call.Validate(); err != nil {
		return domain.Position{}, err
	}

	if err := s.save(ctx, append(positions, call)); err != nil {
		return domain.Position{}, err
	}
	s.logger.Info("Call published",
		zap.Int64("id", call.ID),
		zap.String("symbol", call.Symbol),
		zap.String("side", string(call.Side)))
	return call, nil
}

// Close manually closes an ACTIVE call at exitPrice.
func (s *CallService) Close(ctx context.Context, id int64, exitPrice decimal.Decimal) (domain.Position, error) {
	if !exitPrice.IsPositive() {
		return domain.Position{}, fmt.Errorf("exit price must be positive: %w", domain.ErrInvalidCall)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	positions, err := s.load(ctx)
	if err != nil {
		return domain.Position{}, err
	}
	i := indexOf(positions, id)
	if i < 0 {
		return domain.Position{}, fmt.Errorf("call %d: %w", id, domain.ErrNotFound)
	}
	if !positions[i].IsActive() {
		return domain.Position{}, fmt.Errorf("call %d: %w", id, domain.ErrAlreadyClosed)
	}

	positions[i].Status = domain.StatusManuallyClosed
	positions[i].ExitPrice = exitPrice
	if err := s.save(ctx, positions); err != nil {
		return domain.Position{}, err
	}
	s.logger.Info("Call closed manually", zap.Int64("id", id), zap.String("exit_price", exitPrice.String()))
	return positions[i], nil
}

// Delete removes a closed call permanently. Active calls must be closed first
// so they are not silently dropped from the history.
func (s *CallService) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions, err := s.load(ctx)
	if err != nil {
		return err
	}
	i := indexOf(positions, id)
	if i < 0 {
		return fmt.Errorf("call %d: %w", id, domain.ErrNotFound)
	}
	if positions[i].IsActive() {
		return fmt.Errorf("call %d: %w", id, domain.ErrActivePosition)
	}

	positions = append(positions[:i], positions[i+1:]...)
	if err := s.save(ctx, positions); err != nil {
		return err
	}
	s.logger.Info("Call deleted", zap.Int64("id", id))
	return nil
}

// BulkEdit overwrites arbitrary cells of arbitrary rows without validation.
// Cells that do not parse are stored as zero and returned as warnings.
func (s *CallService) BulkEdit(ctx context.Context, edits []domain.RowEdit) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	var warnings []string
	for _, e := range edits {
		i := indexOf(positions, e.ID)
		if i < 0 {
			warnings = append(warnings, fmt.Sprintf("row %d: not found", e.ID))
			continue
		}
		warnings = append(warnings, domain.ApplyCells(&positions[i], e.Fields)...)
	}

	if err := s.save(ctx, positions); err != nil {
		return nil, err
	}
	s.logger.Info("Bulk edit applied", zap.Int("rows", len(edits)), zap.Int("warnings", len(warnings)))
	return warnings, nil
}

// RefreshResult describes one monitor pass.
type RefreshResult struct {
	Evaluated int               `json:"evaluated"`
	Priced    int               `json:"priced"`
	Changed   []domain.Position `json:"changed"`
	At        time.Time         `json:"at"`
}

// Refresh runs the monitor over the sheet and writes it back only when a call
// transitioned.
func (s *CallService) Refresh(ctx context.Context) (RefreshResult, error) {
	ctx, span := tracing.StartSpan(ctx, "calls.refresh")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	res := RefreshResult{At: s.timeNow()}
	positions, err := s.load(ctx)
	if err != nil {
		span.RecordError(err)
		return res, err
	}

	var symbols []string
	for _, p := range positions {
		if p.IsActive() {
			symbols = append(symbols, p.Symbol)
			res.Evaluated++
		}
	}
	prices := s.market.Quotes(ctx, symbols)

	evals := s.monitor.Evaluate(positions, func(symbol string) (decimal.Decimal, bool) {
		price, ok := prices[strings.ToUpper(symbol)]
		return price, ok
	})
	for _, p := range positions {
		if _, ok := prices[strings.ToUpper(p.Symbol)]; ok && p.IsActive() {
			res.Priced++
		}
	}

	res.Changed = Changed(evals)
	span.SetAttributes(
		attribute.Int("calls.evaluated", res.Evaluated),
		attribute.Int("calls.changed", len(res.Changed)))
	if len(res.Changed) == 0 {
		return res, nil
	}

	if err := s.save(ctx, Snapshot(evals)); err != nil {
		span.RecordError(err)
		return res, err
	}
	for _, p := range res.Changed {
		s.logger.Info("Call triggered",
			zap.Int64("id", p.ID),
			zap.String("symbol", p.Symbol),
			zap.String("status", string(p.Status)),
			zap.String("exit_price", p.ExitPrice.String()))
	}
	return res, nil
}

// ActiveCall is an ACTIVE call annotated with its current market price.
type ActiveCall struct {
	domain.Position
	CMP       decimal.Decimal `json:"cmp"`
	HasPrice  bool            `json:"has_price"`
	OpenPoint decimal.Decimal `json:"open_points"`
}

// ActiveView lists ACTIVE calls with live prices. It never changes the sheet.
func (s *CallService) ActiveView(ctx context.Context) ([]ActiveCall, []string) {
	positions, warnings := s.Calls(ctx)

	var symbols []string
	for _, p := range positions {
		if p.IsActive() {
			symbols = append(symbols, p.Symbol)
		}
	}
	prices := s.market.Quotes(ctx, symbols)

	var out []ActiveCall
	for _, p := range positions {
		if !p.IsActive() {
			continue
		}
		ac := ActiveCall{Position: p, CMP: decimal.Zero, OpenPoint: decimal.Zero}
		if price, ok := prices[strings.ToUpper(p.Symbol)]; ok {
			ac.CMP = price
			ac.HasPrice = true
			mark := p
			mark.Status = domain.StatusManuallyClosed
			mark.ExitPrice = price
			ac.OpenPoint = RealizedPoints(mark)
		} else {
			warnings = append(warnings, fmt.Sprintf("No live price for %s.", p.Symbol))
		}
		out = append(out, ac)
	}
	return out, warnings
}

// ClosedCall is a terminal call with its realized points.
type ClosedCall struct {
	domain.Position
	Points decimal.Decimal `json:"points"`
}

type History struct {
	Calls       []ClosedCall `json:"calls"`
	Performance Performance  `json:"performance"`
}

// HistoryView lists terminal calls with realized points, newest first.
func (s *CallService) HistoryView(ctx context.Context) (History, []string) {
	positions, warnings := s.Calls(ctx)

	var h History
	for i := len(positions) - 1; i >= 0; i-- {
		p := positions[i]
		if p.IsActive() {
			continue
		}
		h.Calls = append(h.Calls, ClosedCall{Position: p, Points: RealizedPoints(p)})
	}
	h.Performance = Summarize(positions)
	return h, warnings
}

func indexOf(positions []domain.Position, id int64) int {
	for i := range positions {
		if positions[i].ID == id {
			return i
		}
	}
	return -1
}
