/*
Package factory shapes raw loan-creation payloads into engine records.

PURPOSE:
  Schedule uploads arrive as loosely-typed JSON: amounts may be numbers or
  locale strings ("1000,50"), dates are ISO strings, and none of the mutable
  reconciliation fields exist yet. This package normalizes a payload into a
  LoanMetadata plus a clean ScheduleEntry sequence ready for
  Engine.CreateLoan.

KEY CONCEPTS:
  - FlexNumber: JSON field accepting both numbers and comma-decimal strings
  - BuildLoan:  payload -> (metadata, schedule), assigns the loan id

SEE ALSO:
  - engine/numeric.go: The normalization rules FlexNumber delegates to
  - engine/engine.go:  CreateLoan, which validates and persists the result
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridianbank/loan-engine/engine"
)

const dateLayout = "2006-01-02"

// =============================================================================
// FLEX NUMBER - Tolerant JSON numeric field
// =============================================================================

// FlexNumber is a decimal that unmarshals from either a JSON number or a
// string, tolerating "," as the decimal separator.
type FlexNumber struct {
	decimal.Decimal
}

func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	d, err := engine.ParseAmount(raw)
	if err != nil {
		return err
	}
	n.Decimal = d
	return nil
}

// =============================================================================
// LOAN REQUEST - Incoming creation payload
// =============================================================================

// ScheduleRow is one period of an uploaded amortization plan. Only the
// contractual fields are accepted; mutable reconciliation state always
// starts zeroed.
type ScheduleRow struct {
	Period       int        `json:"period"`
	DueDate      string     `json:"due_date"`
	Installment  FlexNumber `json:"installment"`
	Principal    FlexNumber `json:"principal"`
	Interest     FlexNumber `json:"interest"`
	ServiceFee   FlexNumber `json:"service_fee"`
	InsuranceFee FlexNumber `json:"insurance_fee"`
}

// LoanRequest is the full loan-creation payload.
type LoanRequest struct {
	UserID string        `json:"user_id"`
	Amount FlexNumber    `json:"amount"`
	Term   int           `json:"term"`
	Rate   FlexNumber    `json:"rate"`
	Rows   []ScheduleRow `json:"schedule"`

	// Optional risk attributes from the scoring pipeline.
	RiskDistance   FlexNumber `json:"risk_distance"`
	RiskScore      FlexNumber `json:"risk_score"`
	RiskCategory   string     `json:"risk_category"`
	ClosestCluster int        `json:"closest_cluster"`
	UserRisk       FlexNumber `json:"user_risk"`
}

// =============================================================================
// BUILD LOAN
// =============================================================================

// BuildLoan normalizes a creation payload into metadata plus a schedule,
// assigning a fresh loan id. The metadata's contractual installment is the
// first period's; start and end dates come from the first and last rows.
func BuildLoan(req LoanRequest) (engine.LoanMetadata, []engine.ScheduleEntry, error) {
	if req.UserID == "" {
		return engine.LoanMetadata{}, nil, fmt.Errorf("user_id is required")
	}
	if len(req.Rows) == 0 {
		return engine.LoanMetadata{}, nil, fmt.Errorf("schedule is empty")
	}

	loanID := strings.ReplaceAll(uuid.New().String(), "-", "")

	entries := make([]engine.ScheduleEntry, 0, len(req.Rows))
	for i, row := range req.Rows {
		dueDate, err := time.Parse(dateLayout, row.DueDate)
		if err != nil {
			return engine.LoanMetadata{}, nil, fmt.Errorf("row %d: invalid due_date %q", i, row.DueDate)
		}
		entries = append(entries, engine.ScheduleEntry{
			LoanID:       loanID,
			Period:       row.Period,
			DueDate:      dueDate,
			Installment:  row.Installment.Decimal,
			Principal:    row.Principal.Decimal,
			Interest:     row.Interest.Decimal,
			ServiceFee:   row.ServiceFee.Decimal,
			InsuranceFee: row.InsuranceFee.Decimal,

			LatePaymentFee:     decimal.Zero,
			PayedAmount:        decimal.Zero,
			OutstandingBalance: decimal.Zero,
			CalcInstallment:    decimal.Zero,
			Status:             engine.StatusPending,
		})
	}

	meta := engine.LoanMetadata{
		UserID:      req.UserID,
		LoanID:      loanID,
		Amount:      req.Amount.Decimal,
		Term:        req.Term,
		Rate:        req.Rate.Decimal,
		Installment: entries[0].Installment,

		Payed:             decimal.Zero,
		Balance:           req.Amount.Decimal,
		DefaultedPayments: 0,
		DefaultedAmount:   decimal.Zero,

		StartDate: entries[0].DueDate,
		EndDate:   entries[len(entries)-1].DueDate,

		RiskDistance:   req.RiskDistance.Decimal,
		RiskScore:      req.RiskScore.Decimal,
		RiskCategory:   req.RiskCategory,
		ClosestCluster: req.ClosestCluster,
		UserRisk:       req.UserRisk.Decimal,
	}
	return meta, entries, nil
}
