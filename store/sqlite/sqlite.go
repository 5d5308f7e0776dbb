/*
Package sqlite provides a SQLite-backed implementation of engine.Store.

PURPOSE:
  Persists schedule periods, loan metadata, and the payment audit log. The
  same patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  schedule_entries:  One row per installment period, unique (loan_id, period)
  loan_metadata:     One row per loan, unique loan_id
  payments:          Append-only audit log of recorded payments

MONEY AND DATES:
  Money columns are stored as TEXT holding exact decimal strings - storing
  floats would reintroduce the precision problems decimal.Decimal exists to
  avoid. Dates are TEXT in ISO form (2006-01-02).

TRANSACTIONS:
  WithTx runs the whole reconciliation write set (period update, optional
  extension insert, metadata update, audit insert) inside one SQL
  transaction. A Store scoped to a *sql.Tx is handed to the callback; nested
  WithTx calls join the enclosing transaction.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): multiple readers don't
  block, single writer at a time, better crash recovery.

USAGE:
  st, err := sqlite.New("./data/loans.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()
  eng := engine.New(st, nil, logger)

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/meridianbank/loan-engine/engine"
)

// querier is the subset of *sql.DB and *sql.Tx the store uses.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements engine.Store using SQLite.
type Store struct {
	db *sql.DB
	q  querier // db outside a transaction, tx inside one
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite allows a single writer anyway, and ":memory:"
	// databases exist per connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, q: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schedule_entries (
		loan_id TEXT NOT NULL,
		period INTEGER NOT NULL,
		due_date TEXT NOT NULL,
		installment TEXT NOT NULL,
		principal TEXT NOT NULL,
		interest TEXT NOT NULL,
		service_fee TEXT NOT NULL,
		insurance_fee TEXT NOT NULL,
		late_payment_fee TEXT NOT NULL DEFAULT '0',
		payed_amount TEXT NOT NULL DEFAULT '0',
		outstanding_balance TEXT NOT NULL DEFAULT '0',
		calc_installment TEXT NOT NULL DEFAULT '0',
		late_days INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		payment_date TEXT,
		receipt_id TEXT NOT NULL DEFAULT '',
		consecutive_defaulted INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (loan_id, period)
	);

	CREATE INDEX IF NOT EXISTS idx_schedule_entries_due_date
		ON schedule_entries(loan_id, due_date);

	CREATE TABLE IF NOT EXISTS loan_metadata (
		loan_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		term INTEGER NOT NULL,
		rate TEXT NOT NULL,
		installment TEXT NOT NULL,
		payed TEXT NOT NULL DEFAULT '0',
		balance TEXT NOT NULL,
		defaulted_payments INTEGER NOT NULL DEFAULT 0,
		defaulted_amount TEXT NOT NULL DEFAULT '0',
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		risk_distance TEXT NOT NULL DEFAULT '0',
		risk_score TEXT NOT NULL DEFAULT '0',
		risk_category TEXT NOT NULL DEFAULT '',
		closest_cluster INTEGER NOT NULL DEFAULT 0,
		user_risk TEXT NOT NULL DEFAULT '0'
	);

	CREATE INDEX IF NOT EXISTS idx_loan_metadata_user
		ON loan_metadata(user_id);

	-- Payments (append-only audit log)
	CREATE TABLE IF NOT EXISTS payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		loan_id TEXT NOT NULL,
		document_id TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_loan
		ON payments(loan_id, payment_date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SCHEDULE STORE
// =============================================================================

const scheduleColumns = `loan_id, period, due_date, installment, principal, interest,
	service_fee, insurance_fee, late_payment_fee, payed_amount, outstanding_balance,
	calc_installment, late_days, status, payment_date, receipt_id, consecutive_defaulted`

func (s *Store) ListPeriods(ctx context.Context, loanID string, from, to time.Time) ([]engine.ScheduleEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedule_entries
		WHERE loan_id = ? AND due_date >= ? AND due_date <= ?
		ORDER BY due_date ASC`,
		loanID, fmtDate(from), fmtDate(to))
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) ListSchedule(ctx context.Context, loanID string) ([]engine.ScheduleEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedule_entries
		WHERE loan_id = ?
		ORDER BY period ASC`, loanID)
	if err != nil {
		return nil, fmt.Errorf("list schedule: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) MaxPeriod(ctx context.Context, loanID string) (int, error) {
	var max sql.NullInt64
	err := s.q.QueryRowContext(ctx,
		`SELECT MAX(period) FROM schedule_entries WHERE loan_id = ?`, loanID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max period: %w", err)
	}
	return int(max.Int64), nil
}

func (s *Store) UpdatePeriod(ctx context.Context, e engine.ScheduleEntry) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE schedule_entries SET
			late_payment_fee = ?, payed_amount = ?, outstanding_balance = ?,
			calc_installment = ?, late_days = ?, status = ?, payment_date = ?,
			receipt_id = ?, consecutive_defaulted = ?
		WHERE loan_id = ? AND period = ?`,
		e.LatePaymentFee.String(), e.PayedAmount.String(), e.OutstandingBalance.String(),
		e.CalcInstallment.String(), e.LateDays, string(e.Status), fmtDatePtr(e.PaymentDate),
		e.ReceiptID, e.ConsecutiveDefaulted,
		e.LoanID, e.Period)
	if err != nil {
		return fmt.Errorf("update period: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("period %d of loan %s does not exist", e.Period, e.LoanID)
	}
	return nil
}

func (s *Store) InsertPeriod(ctx context.Context, e engine.ScheduleEntry) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO schedule_entries (`+scheduleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.LoanID, e.Period, fmtDate(e.DueDate),
		e.Installment.String(), e.Principal.String(), e.Interest.String(),
		e.ServiceFee.String(), e.InsuranceFee.String(), e.LatePaymentFee.String(),
		e.PayedAmount.String(), e.OutstandingBalance.String(), e.CalcInstallment.String(),
		e.LateDays, string(e.Status), fmtDatePtr(e.PaymentDate), e.ReceiptID,
		e.ConsecutiveDefaulted)
	if err != nil {
		return fmt.Errorf("insert period: %w", err)
	}
	return nil
}

func (s *Store) InsertSchedule(ctx context.Context, entries []engine.ScheduleEntry) error {
	return s.WithTx(ctx, func(tx engine.Store) error {
		for _, entry := range entries {
			if err := tx.InsertPeriod(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

func scanEntries(rows *sql.Rows) ([]engine.ScheduleEntry, error) {
	var result []engine.ScheduleEntry
	for rows.Next() {
		var (
			e                        engine.ScheduleEntry
			dueDate, status          string
			paymentDate              sql.NullString
			installment, principal   string
			interest, serviceFee     string
			insuranceFee, lateFee    string
			payedAmount, outstanding string
			calcInstallment          string
		)
		err := rows.Scan(&e.LoanID, &e.Period, &dueDate, &installment, &principal,
			&interest, &serviceFee, &insuranceFee, &lateFee, &payedAmount,
			&outstanding, &calcInstallment, &e.LateDays, &status, &paymentDate,
			&e.ReceiptID, &e.ConsecutiveDefaulted)
		if err != nil {
			return nil, fmt.Errorf("scan schedule entry: %w", err)
		}

		if e.DueDate, err = parseDate(dueDate); err != nil {
			return nil, err
		}
		if paymentDate.Valid {
			pd, err := parseDate(paymentDate.String)
			if err != nil {
				return nil, err
			}
			e.PaymentDate = &pd
		}
		e.Status = engine.Status(status)

		dec := decimalScanner{}
		e.Installment = dec.parse(installment)
		e.Principal = dec.parse(principal)
		e.Interest = dec.parse(interest)
		e.ServiceFee = dec.parse(serviceFee)
		e.InsuranceFee = dec.parse(insuranceFee)
		e.LatePaymentFee = dec.parse(lateFee)
		e.PayedAmount = dec.parse(payedAmount)
		e.OutstandingBalance = dec.parse(outstanding)
		e.CalcInstallment = dec.parse(calcInstallment)
		if dec.err != nil {
			return nil, dec.err
		}

		result = append(result, e)
	}
	return result, rows.Err()
}

// =============================================================================
// METADATA STORE
// =============================================================================

const metadataColumns = `loan_id, user_id, amount, term, rate, installment, payed,
	balance, defaulted_payments, defaulted_amount, start_date, end_date,
	risk_distance, risk_score, risk_category, closest_cluster, user_risk`

func (s *Store) GetMetadata(ctx context.Context, loanID string) (*engine.LoanMetadata, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+metadataColumns+`
		FROM loan_metadata WHERE loan_id = ?`, loanID)

	meta, err := scanMetadata(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("loan %s: %w", loanID, engine.ErrLoanNotFound)
	}
	if err != nil {
		return nil, err
	}
	return meta, nil
}

func (s *Store) ListMetadata(ctx context.Context) ([]engine.LoanMetadata, error) {
	return s.listMetadata(ctx, `SELECT `+metadataColumns+` FROM loan_metadata ORDER BY loan_id`)
}

func (s *Store) ListMetadataByUser(ctx context.Context, userID string) ([]engine.LoanMetadata, error) {
	return s.listMetadata(ctx,
		`SELECT `+metadataColumns+` FROM loan_metadata WHERE user_id = ? ORDER BY loan_id`, userID)
}

func (s *Store) listMetadata(ctx context.Context, query string, args ...any) ([]engine.LoanMetadata, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	defer rows.Close()

	var result []engine.LoanMetadata
	for rows.Next() {
		meta, err := scanMetadata(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *meta)
	}
	return result, rows.Err()
}

func scanMetadata(scan func(...any) error) (*engine.LoanMetadata, error) {
	var (
		m                         engine.LoanMetadata
		amount, rate, installment string
		payed, balance            string
		defaultedAmount           string
		startDate, endDate        string
		riskDistance, riskScore   string
		userRisk                  string
	)
	err := scan(&m.LoanID, &m.UserID, &amount, &m.Term, &rate, &installment,
		&payed, &balance, &m.DefaultedPayments, &defaultedAmount,
		&startDate, &endDate, &riskDistance, &riskScore, &m.RiskCategory,
		&m.ClosestCluster, &userRisk)
	if err != nil {
		return nil, err
	}

	if m.StartDate, err = parseDate(startDate); err != nil {
		return nil, err
	}
	if m.EndDate, err = parseDate(endDate); err != nil {
		return nil, err
	}

	dec := decimalScanner{}
	m.Amount = dec.parse(amount)
	m.Rate = dec.parse(rate)
	m.Installment = dec.parse(installment)
	m.Payed = dec.parse(payed)
	m.Balance = dec.parse(balance)
	m.DefaultedAmount = dec.parse(defaultedAmount)
	m.RiskDistance = dec.parse(riskDistance)
	m.RiskScore = dec.parse(riskScore)
	m.UserRisk = dec.parse(userRisk)
	if dec.err != nil {
		return nil, dec.err
	}
	return &m, nil
}

func (s *Store) InsertMetadata(ctx context.Context, m engine.LoanMetadata) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO loan_metadata (`+metadataColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.LoanID, m.UserID, m.Amount.String(), m.Term, m.Rate.String(),
		m.Installment.String(), m.Payed.String(), m.Balance.String(),
		m.DefaultedPayments, m.DefaultedAmount.String(),
		fmtDate(m.StartDate), fmtDate(m.EndDate),
		m.RiskDistance.String(), m.RiskScore.String(), m.RiskCategory,
		m.ClosestCluster, m.UserRisk.String())
	if err != nil {
		return fmt.Errorf("insert metadata: %w", err)
	}
	return nil
}

func (s *Store) UpdateMetadata(ctx context.Context, m engine.LoanMetadata) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE loan_metadata SET
			payed = ?, balance = ?, defaulted_payments = ?, defaulted_amount = ?
		WHERE loan_id = ?`,
		m.Payed.String(), m.Balance.String(), m.DefaultedPayments,
		m.DefaultedAmount.String(), m.LoanID)
	if err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("loan %s: %w", m.LoanID, engine.ErrLoanNotFound)
	}
	return nil
}

// =============================================================================
// PAYMENT STORE
// =============================================================================

func (s *Store) InsertPaymentRecord(ctx context.Context, rec engine.PaymentRecord) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO payments (user_id, loan_id, document_id, payment_date, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.LoanID, rec.DocumentID, fmtDate(rec.PaymentDate),
		rec.Amount.String(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert payment record: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn inside a SQL transaction. A nested call joins the
// enclosing transaction.
func (s *Store) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	if _, inTx := s.q.(*sql.Tx); inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", engine.ErrStoreUnavailable, err)
	}

	txStore := &Store{db: s.db, q: tx}
	if err := fn(txStore); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", engine.ErrStoreUnavailable, err)
	}
	return nil
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

const dateLayout = "2006-01-02"

func fmtDate(t time.Time) string {
	return t.Format(dateLayout)
}

func fmtDatePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// decimalScanner collects the first parse error across a row's many decimal
// columns so each Scan doesn't need its own error plumbing.
type decimalScanner struct {
	err error
}

func (ds *decimalScanner) parse(s string) decimal.Decimal {
	if ds.err != nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		ds.err = fmt.Errorf("parse decimal %q: %w", s, err)
		return decimal.Zero
	}
	return d
}
