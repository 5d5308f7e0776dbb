/*
handlers.go - HTTP API handlers for the loan reconciliation engine

PURPOSE:
  Exposes the reconciliation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Loans:
    GET    /api/loans                    List all loans (metadata)
    POST   /api/loans                    Create loan (schedule + metadata)
    GET    /api/loans/{loanID}           Full amortization schedule
    GET    /api/loans/{loanID}/metadata  Loan-level aggregates

  Users:
    GET    /api/users/{userID}/loans     Loans of one user

  Payments:
    POST   /api/loans/{loanID}/payments          Record a payment
    POST   /api/loans/{loanID}/payments/advance  Zero-payment reconciliation
                                                 of a future period (a WRITE)

  Admin:
    GET    /health                       Liveness probe
    POST   /api/admin/sweep              Run the end-of-month sweep now

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, malformed amounts or dates
  - 404: Loan not found
  - 500: Store or internal errors
  A payment whose due-date window matches no period is NOT an error: the
  schedule may simply be exhausted. It returns 200 with a message and no
  state change.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - engine/engine.go: The operations these handlers delegate to
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/meridianbank/loan-engine/engine"
	"github.com/meridianbank/loan-engine/factory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *engine.Engine
	Store  engine.Store
	Log    *logrus.Logger
}

// NewHandler creates a new handler.
func NewHandler(eng *engine.Engine, store engine.Store, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{Engine: eng, Store: store, Log: log}
}

// Health is the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// LOAN HANDLERS
// =============================================================================

// ListLoans returns metadata for all loans.
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.Store.ListMetadata(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list loans", err)
		return
	}

	dtos := make([]LoanMetadataDTO, len(loans))
	for i, m := range loans {
		dtos[i] = toLoanMetadataDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLoan creates a loan from an uploaded amortization schedule.
func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req factory.LoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	meta, entries, err := factory.BuildLoan(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid loan payload", err)
		return
	}

	if err := h.Engine.CreateLoan(r.Context(), meta, entries); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to create loan", err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateLoanResponse{
		LoanID:   meta.LoanID,
		Metadata: toLoanMetadataDTO(meta),
		Schedule: toScheduleEntryDTOs(entries),
	})
}

// GetLoanSchedule returns the loan's full amortization schedule, extension
// periods included.
func (h *Handler) GetLoanSchedule(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loanID")

	entries, err := h.Store.ListSchedule(r.Context(), loanID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get schedule", err)
		return
	}
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, "Loan not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toScheduleEntryDTOs(entries))
}

// GetLoanMetadata returns the loan-level aggregates.
func (h *Handler) GetLoanMetadata(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loanID")

	meta, err := h.Store.GetMetadata(r.Context(), loanID)
	if err != nil {
		if engine.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Loan not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get metadata", err)
		return
	}

	writeJSON(w, http.StatusOK, toLoanMetadataDTO(*meta))
}

// ListUserLoans returns metadata for all loans of one user.
func (h *Handler) ListUserLoans(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	loans, err := h.Store.ListMetadataByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list loans", err)
		return
	}

	dtos := make([]LoanMetadataDTO, len(loans))
	for i, m := range loans {
		dtos[i] = toLoanMetadataDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// RecordPayment reconciles a payment against the loan's schedule.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loanID")

	var req RecordPaymentRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber() // amounts must reach the normalizer un-floated
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := engine.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	if amount.IsNegative() {
		writeError(w, http.StatusBadRequest, "Amount must not be negative", nil)
		return
	}

	entry, err := h.Engine.RecordPayment(r.Context(), engine.PaymentEvent{
		LoanID:      loanID,
		UserID:      req.UserID,
		DocumentID:  req.DocumentID,
		Amount:      amount,
		MonthOffset: req.MonthOffset,
	})
	if err != nil {
		h.writePaymentError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toScheduleEntryDTO(*entry))
}

// AdvancePayment reconciles the period at today + month_offset with a zero
// payment. Lateness, fees, and status changes are persisted.
func (h *Handler) AdvancePayment(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loanID")

	var req AdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, err := h.Engine.AdvancePayment(r.Context(), loanID, req.MonthOffset)
	if err != nil {
		h.writePaymentError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toScheduleEntryDTO(*entry))
}

func (h *Handler) writePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNoApplicablePeriod):
		// Valid terminal outcome, not a failure.
		writeJSON(w, http.StatusOK, MessageResponse{Message: "no applicable period"})
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Loan not found", err)
	case engine.IsRetryable(err):
		writeError(w, http.StatusServiceUnavailable, "Store unavailable, retry later", err)
	default:
		writeError(w, http.StatusInternalServerError, "Failed to record payment", err)
	}
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerSweep runs the end-of-month sweep immediately. On any day other
// than the last of the month it is a no-op reporting zero updates.
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	updated, err := h.Engine.EndOfMonthSweep(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SweepResponse{UpdatedLoans: updated})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
