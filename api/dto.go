/*
dto.go - Request/response data structures

PURPOSE:
  JSON shapes for the HTTP API, decoupled from the engine's internal types.
  Money renders as exact decimal strings and dates as YYYY-MM-DD, matching
  what the store persists.

SEE ALSO:
  - handlers.go: Where these are populated
*/
package api

import (
	"github.com/meridianbank/loan-engine/engine"
)

const dateLayout = "2006-01-02"

// =============================================================================
// RESPONSE DTOS
// =============================================================================

// ScheduleEntryDTO is one schedule period as returned by the API.
type ScheduleEntryDTO struct {
	LoanID  string `json:"loan_id"`
	Period  int    `json:"period"`
	DueDate string `json:"due_date"`

	Installment  string `json:"installment"`
	Principal    string `json:"principal"`
	Interest     string `json:"interest"`
	ServiceFee   string `json:"service_fee"`
	InsuranceFee string `json:"insurance_fee"`

	LatePaymentFee       string  `json:"late_payment_fee"`
	PayedAmount          string  `json:"payed_amount"`
	OutstandingBalance   string  `json:"outstanding_balance"`
	CalcInstallment      string  `json:"calc_installment"`
	LateDays             int     `json:"late_days"`
	Status               string  `json:"status"`
	PaymentDate          *string `json:"payment_date"`
	ReceiptID            string  `json:"receipt_id,omitempty"`
	ConsecutiveDefaulted int     `json:"consecutive_defaulted"`
}

func toScheduleEntryDTO(e engine.ScheduleEntry) ScheduleEntryDTO {
	dto := ScheduleEntryDTO{
		LoanID:  e.LoanID,
		Period:  e.Period,
		DueDate: e.DueDate.Format(dateLayout),

		Installment:  e.Installment.String(),
		Principal:    e.Principal.String(),
		Interest:     e.Interest.String(),
		ServiceFee:   e.ServiceFee.String(),
		InsuranceFee: e.InsuranceFee.String(),

		LatePaymentFee:       e.LatePaymentFee.String(),
		PayedAmount:          e.PayedAmount.String(),
		OutstandingBalance:   e.OutstandingBalance.String(),
		CalcInstallment:      e.CalcInstallment.String(),
		LateDays:             e.LateDays,
		Status:               string(e.Status),
		ReceiptID:            e.ReceiptID,
		ConsecutiveDefaulted: e.ConsecutiveDefaulted,
	}
	if e.PaymentDate != nil {
		s := e.PaymentDate.Format(dateLayout)
		dto.PaymentDate = &s
	}
	return dto
}

func toScheduleEntryDTOs(entries []engine.ScheduleEntry) []ScheduleEntryDTO {
	dtos := make([]ScheduleEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toScheduleEntryDTO(e)
	}
	return dtos
}

// LoanMetadataDTO is loan-level aggregates as returned by the API.
type LoanMetadataDTO struct {
	LoanID string `json:"loan_id"`
	UserID string `json:"user_id"`

	Amount      string `json:"amount"`
	Term        int    `json:"term"`
	Rate        string `json:"rate"`
	Installment string `json:"installment"`

	Payed             string `json:"payed"`
	Balance           string `json:"balance"`
	DefaultedPayments int    `json:"defaulted_payments"`
	DefaultedAmount   string `json:"defaulted_amount"`

	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`

	RiskDistance   string `json:"risk_distance"`
	RiskScore      string `json:"risk_score"`
	RiskCategory   string `json:"risk_category"`
	ClosestCluster int    `json:"closest_cluster"`
	UserRisk       string `json:"user_risk"`
}

func toLoanMetadataDTO(m engine.LoanMetadata) LoanMetadataDTO {
	return LoanMetadataDTO{
		LoanID: m.LoanID,
		UserID: m.UserID,

		Amount:      m.Amount.String(),
		Term:        m.Term,
		Rate:        m.Rate.String(),
		Installment: m.Installment.String(),

		Payed:             m.Payed.String(),
		Balance:           m.Balance.String(),
		DefaultedPayments: m.DefaultedPayments,
		DefaultedAmount:   m.DefaultedAmount.String(),

		StartDate: m.StartDate.Format(dateLayout),
		EndDate:   m.EndDate.Format(dateLayout),

		RiskDistance:   m.RiskDistance.String(),
		RiskScore:      m.RiskScore.String(),
		RiskCategory:   m.RiskCategory,
		ClosestCluster: m.ClosestCluster,
		UserRisk:       m.UserRisk.String(),
	}
}

// CreateLoanResponse returns the assigned loan id with the created schedule.
type CreateLoanResponse struct {
	LoanID   string             `json:"loan_id"`
	Metadata LoanMetadataDTO    `json:"metadata"`
	Schedule []ScheduleEntryDTO `json:"schedule"`
}

// SweepResponse reports an end-of-month sweep run.
type SweepResponse struct {
	UpdatedLoans int `json:"updated_loans"`
}

// MessageResponse carries a human-readable outcome for requests that change
// nothing, e.g. a payment whose due-date window matches no period.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// REQUEST DTOS
// =============================================================================

// RecordPaymentRequest applies a payment to a loan.
type RecordPaymentRequest struct {
	UserID     string `json:"user_id"`
	DocumentID string `json:"document_id"`
	// Amount tolerates numbers and comma-decimal strings.
	Amount      any `json:"amount"`
	MonthOffset int `json:"month_offset"`
}

// AdvanceRequest reconciles a future period with a zero payment.
type AdvanceRequest struct {
	MonthOffset int `json:"month_offset"`
}
