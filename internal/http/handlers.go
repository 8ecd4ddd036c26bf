package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"budgetd/internal/core"
	"budgetd/internal/ledger"
	"budgetd/internal/log"
	"budgetd/internal/metrics"
)

type userIDKey struct{}

// requireUser scopes the request to the caller named by X-User-ID.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey{}).(string)
	return id
}

type errorResponse struct {
	Error          string `json:"error"`
	ShortfallCents int64  `json:"shortfall_cents,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeLedgerError maps domain errors onto HTTP statuses. The over-assignment
// rejection carries the exact shortfall so clients can show it.
func writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		overErr     *core.OverAssignmentError
		notFound    *core.NotFoundError
		processed   *core.AlreadyProcessedError
		conflict    *core.ConflictError
		persistence *core.PersistenceError
	)
	switch {
	case errors.As(err, &overErr):
		metrics.OverAssignmentRejections.Inc()
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:          overErr.Error(),
			ShortfallCents: overErr.ShortfallCents,
		})
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &processed):
		writeError(w, http.StatusConflict, processed.Error())
	case errors.As(err, &conflict):
		metrics.StorageConflicts.Inc()
		writeError(w, http.StatusConflict, conflict.Error())
	case errors.As(err, &persistence):
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Storage failure",
			log.FieldError, err.Error(), log.FieldPath, r.URL.Path)
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable")
	case errors.Is(err, core.ErrEmptyUserID):
		writeError(w, http.StatusUnauthorized, err.Error())
	case isValidationError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Unhandled ledger error",
			log.FieldError, err.Error(), log.FieldPath, r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrInvalidAmount, core.ErrInvalidMonth, core.ErrInvalidDay,
		core.ErrInvalidFrequency, core.ErrInvalidSchedule, core.ErrInvalidTxType,
		core.ErrInvalidPriority, core.ErrEmptyName, core.ErrNameTooLong,
		core.ErrInvalidMonthChoice,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// parseAmount resolves the two accepted amount encodings: integer cents, or
// a decimal string ("12.34") parsed with the same rules as every other
// money input.
func parseAmount(cents int64, decimalStr string) (int64, error) {
	if decimalStr == "" {
		return cents, nil
	}
	if cents != 0 {
		return 0, core.ErrInvalidAmount
	}
	return core.ParseDecimalToCents(decimalStr)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

type assignRequest struct {
	Month         string `json:"month"`
	CategoryID    string `json:"category_id"`
	AmountCents   int64  `json:"amount_cents"`
	Amount        string `json:"amount,omitempty"`
	OverrideAllow bool   `json:"override_allow,omitempty"`
}

type assignResponse struct {
	NewRTACents  int64 `json:"new_rta_cents"`
	OverAssigned bool  `json:"over_assigned"`
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !decodeBody(w, r, &req) {
		return
	}

	month, err := core.ParseMonth(req.Month)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	amount, err := parseAmount(req.AmountCents, req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	start := time.Now()
	res, err := s.ledger.Assign(r.Context(), userID(r), month, req.CategoryID, amount, req.OverrideAllow)
	metrics.ObserveOperation(log.OpAssign, start, err)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assignResponse{
		NewRTACents:  res.NewRTACents,
		OverAssigned: res.OverAssigned,
	})
}

type allowOverAssignRequest struct {
	Allow bool `json:"allow"`
}

func (s *Server) handleAllowOverAssign(w http.ResponseWriter, r *http.Request) {
	month, err := core.ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	var req allowOverAssignRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.ledger.SetAllowOverAssign(r.Context(), userID(r), month, req.Allow); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allow_over_assign": req.Allow})
}

func (s *Server) handleRecomputeExpectedIncome(w http.ResponseWriter, r *http.Request) {
	month, err := core.ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	expected, err := s.ledger.RecomputeExpectedIncome(r.Context(), userID(r), month)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"expected_income_cents": expected})
}

type categoryLineJSON struct {
	CategoryID    string `json:"category_id"`
	Name          string `json:"name"`
	AssignedCents int64  `json:"assigned_cents"`
	SpentCents    int64  `json:"spent_cents"`
	LeftoverCents int64  `json:"leftover_cents"`
}

type summaryResponse struct {
	Month               string             `json:"month"`
	ExpectedIncomeCents int64              `json:"expected_income_cents"`
	ReceivedIncomeCents int64              `json:"received_income_cents"`
	LeftoverCents       int64              `json:"leftover_cents"`
	OverspendCarryCents int64              `json:"overspend_carry_cents"`
	AssignedCents       int64              `json:"assigned_cents"`
	RTACents            int64              `json:"rta_cents"`
	Categories          []categoryLineJSON `json:"categories"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	month, err := core.ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	sum, err := s.ledger.Summary(r.Context(), userID(r), month)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}

	resp := summaryResponse{
		Month:               string(sum.Month),
		ExpectedIncomeCents: sum.ExpectedIncomeCents,
		ReceivedIncomeCents: sum.ReceivedIncomeCents,
		LeftoverCents:       sum.LeftoverCents,
		OverspendCarryCents: sum.OverspendCarryCents,
		AssignedCents:       sum.AssignedCents,
		RTACents:            sum.RTACents,
		Categories:          make([]categoryLineJSON, 0, len(sum.Categories)),
	}
	for _, line := range sum.Categories {
		resp.Categories = append(resp.Categories, categoryLineJSON{
			CategoryID:    line.CategoryID,
			Name:          line.Name,
			AssignedCents: line.AssignedCents,
			SpentCents:    line.SpentCents,
			LeftoverCents: line.LeftoverCents,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type rolloverResponse struct {
	Month          string           `json:"month"`
	Leftovers      map[string]int64 `json:"leftovers"`
	OverspendCents int64            `json:"overspend_cents"`
}

func (s *Server) handleRollover(w http.ResponseWriter, r *http.Request) {
	month, err := core.ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ro, err := s.ledger.ComputeRollover(r.Context(), userID(r), month)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rolloverResponse{
		Month:          string(ro.Month),
		Leftovers:      ro.Leftovers,
		OverspendCents: ro.OverspendCents,
	})
}

type incomeSourceJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Frequency   string `json:"frequency"`
	AmountCents int64  `json:"amount_cents"`
	Active      bool   `json:"active"`
}

func (s *Server) handleListIncomeSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.ledger.ListIncomeSources(r.Context(), userID(r))
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	out := make([]incomeSourceJSON, 0, len(sources))
	for _, src := range sources {
		out = append(out, incomeSourceJSON{
			ID:          src.ID,
			Name:        src.Name,
			Frequency:   string(src.Frequency),
			AmountCents: src.AmountCents,
			Active:      src.Active,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type createIncomeSourceRequest struct {
	Name        string `json:"name"`
	Frequency   string `json:"frequency"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount,omitempty"`
}

func (s *Server) handleCreateIncomeSource(w http.ResponseWriter, r *http.Request) {
	var req createIncomeSourceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.AmountCents, req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	src, err := s.ledger.CreateIncomeSource(r.Context(), core.IncomeSource{
		UserID:      userID(r),
		Name:        req.Name,
		Frequency:   core.Frequency(req.Frequency),
		AmountCents: amount,
		Active:      true,
	})
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, incomeSourceJSON{
		ID:          src.ID,
		Name:        src.Name,
		Frequency:   string(src.Frequency),
		AmountCents: src.AmountCents,
		Active:      src.Active,
	})
}

type receiveIncomeRequest struct {
	AmountCents int64  `json:"amount_cents,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Date        string `json:"date,omitempty"`
	BudgetMonth string `json:"budget_month,omitempty"`
}

type receiveIncomeResponse struct {
	TxID             string `json:"tx_id"`
	BudgetMonth      string `json:"budget_month"`
	AmountCents      int64  `json:"amount_cents"`
	RTAIncreaseCents int64  `json:"rta_increase_cents"`
}

func (s *Server) handleReceiveIncome(w http.ResponseWriter, r *http.Request) {
	var req receiveIncomeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.AmountCents, req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid date: "+err.Error())
		return
	}

	start := time.Now()
	res, err := s.ledger.ReceiveIncome(r.Context(), userID(r), chi.URLParam(r, "id"), ledger.ReceiveIncomeOptions{
		AmountCents: amount,
		Date:        date,
		BudgetMonth: core.Month(req.BudgetMonth),
	})
	metrics.ObserveOperation(log.OpReceive, start, err)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receiveIncomeResponse{
		TxID:             res.Transaction.ID,
		BudgetMonth:      string(res.Transaction.BudgetMonth),
		AmountCents:      res.Transaction.AmountCents,
		RTAIncreaseCents: res.RTAIncreaseCents,
	})
}

type billJSON struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	CategoryID     string `json:"category_id,omitempty"`
	AmountCents    int64  `json:"amount_cents"`
	Frequency      string `json:"frequency"`
	DayOfMonth     int    `json:"day_of_month,omitempty"`
	Weekday        int    `json:"weekday,omitempty"`
	EveryN         int    `json:"every_n,omitempty"`
	AutopayEnabled bool   `json:"autopay_enabled"`
	AccountID      string `json:"account_id,omitempty"`
}

func billToJSON(b core.Bill) billJSON {
	return billJSON{
		ID:             b.ID,
		Name:           b.Name,
		CategoryID:     b.CategoryID,
		AmountCents:    b.AmountCents,
		Frequency:      string(b.Frequency),
		DayOfMonth:     b.DayOfMonth,
		Weekday:        int(b.Weekday),
		EveryN:         b.EveryN,
		AutopayEnabled: b.AutopayEnabled,
		AccountID:      b.AccountID,
	}
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := s.ledger.ListBills(r.Context(), userID(r))
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	out := make([]billJSON, 0, len(bills))
	for _, b := range bills {
		out = append(out, billToJSON(b))
	}
	writeJSON(w, http.StatusOK, out)
}

type createBillRequest struct {
	Name           string `json:"name"`
	AmountCents    int64  `json:"amount_cents"`
	Amount         string `json:"amount,omitempty"`
	Frequency      string `json:"frequency"`
	DayOfMonth     int    `json:"day_of_month,omitempty"`
	Weekday        int    `json:"weekday,omitempty"`
	EveryN         int    `json:"every_n,omitempty"`
	AutopayEnabled bool   `json:"autopay_enabled,omitempty"`
	AccountID      string `json:"account_id,omitempty"`
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var req createBillRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.AmountCents, req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	bill, err := s.ledger.CreateBill(r.Context(), core.Bill{
		UserID:         userID(r),
		Name:           req.Name,
		AmountCents:    amount,
		Frequency:      core.Frequency(req.Frequency),
		DayOfMonth:     req.DayOfMonth,
		Weekday:        time.Weekday(req.Weekday),
		EveryN:         req.EveryN,
		AutopayEnabled: req.AutopayEnabled,
		AccountID:      req.AccountID,
	})
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, billToJSON(bill))
}

type payBillRequest struct {
	AmountCents int64  `json:"amount_cents,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Date        string `json:"date,omitempty"`
	AccountID   string `json:"account_id,omitempty"`
}

type payBillResponse struct {
	TxID        string `json:"tx_id"`
	PaymentID   string `json:"payment_id"`
	AmountCents int64  `json:"amount_cents"`
	BudgetMonth string `json:"budget_month"`
}

func (s *Server) handlePayBill(w http.ResponseWriter, r *http.Request) {
	var req payBillRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.AmountCents, req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid date: "+err.Error())
		return
	}

	start := time.Now()
	res, err := s.ledger.PayBill(r.Context(), userID(r), chi.URLParam(r, "id"), ledger.PayBillOptions{
		AmountCents: amount,
		Date:        date,
		AccountID:   req.AccountID,
	})
	metrics.ObserveOperation(log.OpPayBill, start, err)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payBillResponse{
		TxID:        res.Transaction.ID,
		PaymentID:   res.BillPayment.ID,
		AmountCents: res.BillPayment.AmountCents,
		BudgetMonth: string(res.Transaction.BudgetMonth),
	})
}

type linkBillRequest struct {
	CategoryID string `json:"category_id,omitempty"`
	AutoCreate bool   `json:"auto_create,omitempty"`
}

type linkBillResponse struct {
	BillID                      string `json:"bill_id"`
	CategoryID                  string `json:"category_id"`
	CategoryName                string `json:"category_name"`
	SuggestedMonthlyAmountCents int64  `json:"suggested_monthly_amount_cents"`
}

func (s *Server) handleLinkBill(w http.ResponseWriter, r *http.Request) {
	var req linkBillRequest
	if !decodeBody(w, r, &req) {
		return
	}

	start := time.Now()
	res, err := s.ledger.LinkBillToCategory(r.Context(), userID(r), chi.URLParam(r, "id"), req.CategoryID, req.AutoCreate)
	metrics.ObserveOperation(log.OpLink, start, err)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, linkBillResponse{
		BillID:                      res.Bill.ID,
		CategoryID:                  res.Category.ID,
		CategoryName:                res.Category.Name,
		SuggestedMonthlyAmountCents: res.SuggestedMonthlyAmountCents,
	})
}

func (s *Server) handleUnlinkBill(w http.ResponseWriter, r *http.Request) {
	categoryID := r.URL.Query().Get("category_id")
	if err := s.ledger.UnlinkBill(r.Context(), userID(r), chi.URLParam(r, "id"), categoryID); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type categoryJSON struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	GroupID            string `json:"group_id,omitempty"`
	SortOrder          int    `json:"sort_order"`
	Rollover           bool   `json:"rollover"`
	Priority           int    `json:"priority,omitempty"`
	MonthlyBudgetCents int64  `json:"monthly_budget_cents,omitempty"`
	LinkedBillID       string `json:"linked_bill_id,omitempty"`
}

func categoryToJSON(c core.Category) categoryJSON {
	return categoryJSON{
		ID:                 c.ID,
		Name:               c.Name,
		GroupID:            c.GroupID,
		SortOrder:          c.SortOrder,
		Rollover:           c.Rollover,
		Priority:           c.Priority,
		MonthlyBudgetCents: c.MonthlyBudgetCents,
		LinkedBillID:       c.LinkedBillID,
	}
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.ledger.ListCategories(r.Context(), userID(r))
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	out := make([]categoryJSON, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryToJSON(c))
	}
	writeJSON(w, http.StatusOK, out)
}

type createCategoryRequest struct {
	Name               string `json:"name"`
	GroupID            string `json:"group_id,omitempty"`
	SortOrder          int    `json:"sort_order,omitempty"`
	Rollover           bool   `json:"rollover,omitempty"`
	Priority           int    `json:"priority,omitempty"`
	MonthlyBudgetCents int64  `json:"monthly_budget_cents,omitempty"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cat, err := s.ledger.CreateCategory(r.Context(), core.Category{
		UserID:             userID(r),
		Name:               req.Name,
		GroupID:            req.GroupID,
		SortOrder:          req.SortOrder,
		Rollover:           req.Rollover,
		Priority:           req.Priority,
		MonthlyBudgetCents: req.MonthlyBudgetCents,
	})
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, categoryToJSON(cat))
}

type reorderRequest struct {
	OrderedIDs []string `json:"ordered_ids"`
}

func (s *Server) handleReorderCategories(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.ledger.ReorderCategories(r.Context(), userID(r), req.OrderedIDs); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type groupJSON struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.ledger.ListCategoryGroups(r.Context(), userID(r))
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	out := make([]groupJSON, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupJSON{ID: g.ID, Name: g.Name, SortOrder: g.SortOrder})
	}
	writeJSON(w, http.StatusOK, out)
}

type createGroupRequest struct {
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order,omitempty"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	group, err := s.ledger.CreateCategoryGroup(r.Context(), core.CategoryGroup{
		UserID:    userID(r),
		Name:      req.Name,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, groupJSON{ID: group.ID, Name: group.Name, SortOrder: group.SortOrder})
}
