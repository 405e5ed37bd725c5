package web

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vitos/trade_calls/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"ws_clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleListCallsJSON(w http.ResponseWriter, r *http.Request) {
	calls, warnings := s.calls.Calls(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"calls":    calls,
		"warnings": warnings,
	})
}

type publishRequest struct {
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	TargetPrice   decimal.Decimal `json:"target_price"`
	StopLossPrice decimal.Decimal `json:"stop_loss_price"`
}

func (s *Server) handlePublishJSON(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	call, err := s.calls.Publish(r.Context(), domain.NewCall{
		Symbol:        req.Symbol,
		Side:          side,
		EntryPrice:    req.EntryPrice,
		TargetPrice:   req.TargetPrice,
		StopLossPrice: req.StopLossPrice,
	})
	if err != nil {
		s.writeServiceError(w, "Failed to publish call", err)
		return
	}
	writeJSON(w, http.StatusCreated, call)
}

func (s *Server) handleCloseJSON(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "call not found")
		return
	}
	var req struct {
		ExitPrice decimal.Decimal `json:"exit_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	call, err := s.calls.Close(r.Context(), id, req.ExitPrice)
	if err != nil {
		s.writeServiceError(w, "Failed to close call", err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

func (s *Server) handleDeleteJSON(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "call not found")
		return
	}
	if err := s.calls.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, "Failed to delete call", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBulkEditJSON(w http.ResponseWriter, r *http.Request) {
	var edits []domain.RowEdit
	if err := json.NewDecoder(r.Body).Decode(&edits); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	warnings, err := s.calls.BulkEdit(r.Context(), edits)
	if err != nil {
		s.writeServiceError(w, "Failed to apply bulk edit", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rows":     len(edits),
		"warnings": warnings,
	})
}

func (s *Server) handleRefreshJSON(w http.ResponseWriter, r *http.Request) {
	res, err := s.Refresh(r.Context())
	if err != nil {
		s.logger.Error("Refresh failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "call sheet is temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleActiveJSON(w http.ResponseWriter, r *http.Request) {
	active, warnings := s.calls.ActiveView(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"calls":    active,
		"warnings": warnings,
	})
}

func (s *Server) handleHistoryJSON(w http.ResponseWriter, r *http.Request) {
	history, warnings := s.calls.HistoryView(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"calls":       history.Calls,
		"performance": history.Performance,
		"warnings":    warnings,
	})
}

func (s *Server) handleIndicesJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.market.Indices(r.Context()))
}

func (s *Server) writeServiceError(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Warn(msg, zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
