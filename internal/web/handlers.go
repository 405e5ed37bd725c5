package web

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vitos/trade_calls/internal/domain"
	"github.com/vitos/trade_calls/internal/usecase"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"price": func(d decimal.Decimal) string {
		if d.IsZero() {
			return "-"
		}
		return d.StringFixed(2)
	},
	"points": func(d decimal.Decimal) string {
		if d.IsPositive() {
			return "+" + d.StringFixed(2)
		}
		return d.StringFixed(2)
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(domain.DateLayout)
	},
	"positive": func(d decimal.Decimal) bool { return d.IsPositive() },
	"negative": func(d decimal.Decimal) bool { return d.IsNegative() },
	"cells":    func(p domain.Position) []string { return p.ToRow() },
	"columns":  func() []string { return domain.SheetColumns },
}).ParseFS(templateFS, "templates/*.html"))

type loginPage struct {
	Error string
}

type adminPage struct {
	Calls    []domain.Position
	Messages []string
	Warnings []string
}

type clientPage struct {
	Name     string
	Indices  []domain.IndexQuote
	Active   []usecase.ActiveCall
	History  usecase.History
	Warnings []string
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("Template error", zap.String("template", name), zap.Error(err))
	}
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.currentSession(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.render(w, http.StatusOK, "login.html", loginPage{})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess usecase.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleClientLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	sess, err := s.auth.ClientLogin(r.FormValue("full_name"), r.FormValue("mobile"))
	if err != nil {
		s.render(w, http.StatusUnauthorized, "login.html", loginPage{Error: "Please enter a valid 10-digit mobile number and name."})
		return
	}
	s.setSessionCookie(w, sess)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	sess, err := s.auth.AdminLogin(r.FormValue("username"), r.FormValue("password"))
	if err != nil {
		s.render(w, http.StatusUnauthorized, "login.html", loginPage{Error: "Invalid Admin Credentials"})
		return
	}
	s.setSessionCookie(w, sess)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Logout(sessionToken(r))
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookie,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	if sess.IsAdmin() {
		s.renderAdmin(w, r, http.StatusOK, nil, nil)
		return
	}

	page := clientPage{
		Name:    sess.Name,
		Indices: s.market.Indices(r.Context()),
	}
	var warnings []string
	page.Active, warnings = s.calls.ActiveView(r.Context())
	page.Warnings = append(page.Warnings, warnings...)
	page.History, warnings = s.calls.HistoryView(r.Context())
	page.Warnings = append(page.Warnings, dedupe(warnings, page.Warnings)...)

	s.render(w, http.StatusOK, "client.html", page)
}

func (s *Server) renderAdmin(w http.ResponseWriter, r *http.Request, status int, messages, warnings []string) {
	calls, loadWarnings := s.calls.Calls(r.Context())
	s.render(w, status, "admin.html", adminPage{
		Calls:    calls,
		Messages: messages,
		Warnings: append(warnings, loadWarnings...),
	})
}

func dedupe(add, have []string) []string {
	seen := make(map[string]bool, len(have))
	for _, h := range have {
		seen[h] = true
	}
	var out []string
	for _, a := range add {
		if !seen[a] {
			out = append(out, a)
			seen[a] = true
		}
	}
	return out
}

// formDecimal parses a price field. Empty and malformed input are both zero;
// Validate rejects them later.
func formDecimal(r *http.Request, name string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(r.FormValue(name)))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (s *Server) handlePublishForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	side, err := domain.ParseSide(r.FormValue("side"))
	if err != nil {
		s.renderAdmin(w, r, http.StatusBadRequest, nil, []string{"Type must be BUY or SELL."})
		return
	}

	call, err := s.calls.Publish(r.Context(), domain.NewCall{
		Symbol:        r.FormValue("symbol"),
		Side:          side,
		EntryPrice:    formDecimal(r, "entry"),
		TargetPrice:   formDecimal(r, "target"),
		StopLossPrice: formDecimal(r, "sl"),
	})
	if err != nil {
		s.logger.Warn("Failed to publish call", zap.Error(err))
		s.renderAdmin(w, r, statusFor(err), nil, []string{err.Error()})
		return
	}
	s.renderAdmin(w, r, http.StatusOK, []string{"Published " + call.Symbol + " " + string(call.Side) + "."}, nil)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, domain.ErrNotFound
	}
	return id, nil
}

func (s *Server) handleCloseForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	id, err := pathID(r)
	if err == nil {
		_, err = s.calls.Close(r.Context(), id, formDecimal(r, "exit_price"))
	}
	if err != nil {
		s.renderAdmin(w, r, statusFor(err), nil, []string{err.Error()})
		return
	}
	s.renderAdmin(w, r, http.StatusOK, []string{"Call " + strconv.FormatInt(id, 10) + " closed."}, nil)
}

func (s *Server) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		err = s.calls.Delete(r.Context(), id)
	}
	if err != nil {
		s.renderAdmin(w, r, statusFor(err), nil, []string{err.Error()})
		return
	}
	s.renderAdmin(w, r, http.StatusOK, []string{"Call " + strconv.FormatInt(id, 10) + " deleted."}, nil)
}

// handleBulkEditForm reads inputs named "cell:{id}:{column}".
func (s *Server) handleBulkEditForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	byID := make(map[int64]map[string]string)
	for key, vals := range r.PostForm {
		parts := strings.SplitN(key, ":", 3)
		if len(parts) != 3 || parts[0] != "cell" || len(vals) == 0 {
			continue
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}
		if byID[id] == nil {
			byID[id] = make(map[string]string)
		}
		byID[id][parts[2]] = vals[0]
	}

	edits := make([]domain.RowEdit, 0, len(byID))
	for id, fields := range byID {
		edits = append(edits, domain.RowEdit{ID: id, Fields: fields})
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].ID < edits[j].ID })

	warnings, err := s.calls.BulkEdit(r.Context(), edits)
	if err != nil {
		s.logger.Error("Bulk edit failed", zap.Error(err))
		s.renderAdmin(w, r, statusFor(err), nil, []string{err.Error()})
		return
	}
	s.renderAdmin(w, r, http.StatusOK, []string{"Saved " + strconv.Itoa(len(edits)) + " rows."}, warnings)
}

func (s *Server) handleRefreshForm(w http.ResponseWriter, r *http.Request) {
	res, err := s.Refresh(r.Context())
	if err != nil {
		s.logger.Error("Refresh failed", zap.Error(err))
		s.renderAdmin(w, r, http.StatusServiceUnavailable, nil, []string{"Call sheet is temporarily unavailable."})
		return
	}
	msg := "Checked " + strconv.Itoa(res.Evaluated) + " active calls, " + strconv.Itoa(len(res.Changed)) + " closed."
	s.renderAdmin(w, r, http.StatusOK, []string{msg}, nil)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidCall):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrBadLogin):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrActivePosition), errors.Is(err, domain.ErrAlreadyClosed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
