// Package store provides an in-memory engine.Store (for testing/dev).
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/meridianbank/loan-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps everything under one mutex. Public methods lock and delegate
// to the *Locked variants; WithTx holds the lock for the whole transaction
// and hands the callback a view that calls the *Locked variants directly.
type Memory struct {
	mu       sync.RWMutex
	periods  map[string][]engine.ScheduleEntry // keyed by loan id, sorted by period
	metadata map[string]engine.LoanMetadata
	payments []engine.PaymentRecord
}

func NewMemory() *Memory {
	return &Memory{
		periods:  make(map[string][]engine.ScheduleEntry),
		metadata: make(map[string]engine.LoanMetadata),
	}
}

// =============================================================================
// SCHEDULE STORE
// =============================================================================

func (m *Memory) ListPeriods(_ context.Context, loanID string, from, to time.Time) ([]engine.ScheduleEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPeriodsLocked(loanID, from, to)
}

func (m *Memory) listPeriodsLocked(loanID string, from, to time.Time) ([]engine.ScheduleEntry, error) {
	var result []engine.ScheduleEntry
	for _, entry := range m.periods[loanID] {
		if !entry.DueDate.Before(from) && !entry.DueDate.After(to) {
			result = append(result, entry)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DueDate.Before(result[j].DueDate)
	})
	return result, nil
}

func (m *Memory) ListSchedule(_ context.Context, loanID string) ([]engine.ScheduleEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listScheduleLocked(loanID)
}

func (m *Memory) listScheduleLocked(loanID string) ([]engine.ScheduleEntry, error) {
	result := make([]engine.ScheduleEntry, len(m.periods[loanID]))
	copy(result, m.periods[loanID])
	return result, nil
}

func (m *Memory) MaxPeriod(_ context.Context, loanID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxPeriodLocked(loanID)
}

func (m *Memory) maxPeriodLocked(loanID string) (int, error) {
	entries := m.periods[loanID]
	if len(entries) == 0 {
		return 0, nil
	}
	return entries[len(entries)-1].Period, nil
}

func (m *Memory) UpdatePeriod(_ context.Context, entry engine.ScheduleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatePeriodLocked(entry)
}

func (m *Memory) updatePeriodLocked(entry engine.ScheduleEntry) error {
	entries := m.periods[entry.LoanID]
	for i := range entries {
		if entries[i].Period == entry.Period {
			entries[i] = entry
			return nil
		}
	}
	return fmt.Errorf("period %d of loan %s does not exist", entry.Period, entry.LoanID)
}

func (m *Memory) InsertPeriod(_ context.Context, entry engine.ScheduleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertPeriodLocked(entry)
}

func (m *Memory) insertPeriodLocked(entry engine.ScheduleEntry) error {
	for _, existing := range m.periods[entry.LoanID] {
		if existing.Period == entry.Period {
			return fmt.Errorf("period %d of loan %s already exists", entry.Period, entry.LoanID)
		}
	}
	entries := append(m.periods[entry.LoanID], entry)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Period < entries[j].Period })
	m.periods[entry.LoanID] = entries
	return nil
}

func (m *Memory) InsertSchedule(_ context.Context, entries []engine.ScheduleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertScheduleLocked(entries)
}

func (m *Memory) insertScheduleLocked(entries []engine.ScheduleEntry) error {
	for _, entry := range entries {
		if err := m.insertPeriodLocked(entry); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// METADATA STORE
// =============================================================================

func (m *Memory) GetMetadata(_ context.Context, loanID string) (*engine.LoanMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getMetadataLocked(loanID)
}

func (m *Memory) getMetadataLocked(loanID string) (*engine.LoanMetadata, error) {
	meta, ok := m.metadata[loanID]
	if !ok {
		return nil, fmt.Errorf("loan %s: %w", loanID, engine.ErrLoanNotFound)
	}
	return &meta, nil
}

func (m *Memory) ListMetadata(_ context.Context) ([]engine.LoanMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listMetadataLocked()
}

func (m *Memory) listMetadataLocked() ([]engine.LoanMetadata, error) {
	result := make([]engine.LoanMetadata, 0, len(m.metadata))
	for _, meta := range m.metadata {
		result = append(result, meta)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].LoanID < result[j].LoanID })
	return result, nil
}

func (m *Memory) ListMetadataByUser(_ context.Context, userID string) ([]engine.LoanMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listMetadataByUserLocked(userID)
}

func (m *Memory) listMetadataByUserLocked(userID string) ([]engine.LoanMetadata, error) {
	var result []engine.LoanMetadata
	for _, meta := range m.metadata {
		if meta.UserID == userID {
			result = append(result, meta)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].LoanID < result[j].LoanID })
	return result, nil
}

func (m *Memory) InsertMetadata(_ context.Context, meta engine.LoanMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertMetadataLocked(meta)
}

func (m *Memory) insertMetadataLocked(meta engine.LoanMetadata) error {
	if _, ok := m.metadata[meta.LoanID]; ok {
		return fmt.Errorf("metadata for loan %s already exists", meta.LoanID)
	}
	m.metadata[meta.LoanID] = meta
	return nil
}

func (m *Memory) UpdateMetadata(_ context.Context, meta engine.LoanMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateMetadataLocked(meta)
}

func (m *Memory) updateMetadataLocked(meta engine.LoanMetadata) error {
	if _, ok := m.metadata[meta.LoanID]; !ok {
		return fmt.Errorf("loan %s: %w", meta.LoanID, engine.ErrLoanNotFound)
	}
	m.metadata[meta.LoanID] = meta
	return nil
}

// =============================================================================
// PAYMENT STORE
// =============================================================================

func (m *Memory) InsertPaymentRecord(_ context.Context, rec engine.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertPaymentRecordLocked(rec)
}

func (m *Memory) insertPaymentRecordLocked(rec engine.PaymentRecord) error {
	m.payments = append(m.payments, rec)
	return nil
}

// PaymentRecords returns a copy of the audit log (test helper).
func (m *Memory) PaymentRecords() []engine.PaymentRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]engine.PaymentRecord, len(m.payments))
	copy(result, m.payments)
	return result
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn atomically, holding the store lock for the whole
// transaction so nothing else can commit inside the snapshot-rollback
// window. A rollback must only undo this transaction's own writes.
func (m *Memory) WithTx(_ context.Context, fn func(engine.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshotLocked()
	if err := fn(&txView{parent: m}); err != nil {
		m.restoreLocked(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	periods  map[string][]engine.ScheduleEntry
	metadata map[string]engine.LoanMetadata
	payments []engine.PaymentRecord
}

func (m *Memory) snapshotLocked() memorySnapshot {
	periods := make(map[string][]engine.ScheduleEntry, len(m.periods))
	for k, v := range m.periods {
		periods[k] = append([]engine.ScheduleEntry{}, v...)
	}
	metadata := make(map[string]engine.LoanMetadata, len(m.metadata))
	for k, v := range m.metadata {
		metadata[k] = v
	}
	return memorySnapshot{
		periods:  periods,
		metadata: metadata,
		payments: append([]engine.PaymentRecord{}, m.payments...),
	}
}

func (m *Memory) restoreLocked(s memorySnapshot) {
	m.periods = s.periods
	m.metadata = s.metadata
	m.payments = s.payments
}

// txView runs against the parent's *Locked variants: WithTx already holds
// the lock, so going through the public methods would deadlock. Nested
// WithTx calls run in the enclosing transaction.
type txView struct {
	parent *Memory
}

func (tv *txView) ListPeriods(_ context.Context, loanID string, from, to time.Time) ([]engine.ScheduleEntry, error) {
	return tv.parent.listPeriodsLocked(loanID, from, to)
}

func (tv *txView) ListSchedule(_ context.Context, loanID string) ([]engine.ScheduleEntry, error) {
	return tv.parent.listScheduleLocked(loanID)
}

func (tv *txView) MaxPeriod(_ context.Context, loanID string) (int, error) {
	return tv.parent.maxPeriodLocked(loanID)
}

func (tv *txView) UpdatePeriod(_ context.Context, entry engine.ScheduleEntry) error {
	return tv.parent.updatePeriodLocked(entry)
}

func (tv *txView) InsertPeriod(_ context.Context, entry engine.ScheduleEntry) error {
	return tv.parent.insertPeriodLocked(entry)
}

func (tv *txView) InsertSchedule(_ context.Context, entries []engine.ScheduleEntry) error {
	return tv.parent.insertScheduleLocked(entries)
}

func (tv *txView) GetMetadata(_ context.Context, loanID string) (*engine.LoanMetadata, error) {
	return tv.parent.getMetadataLocked(loanID)
}

func (tv *txView) ListMetadata(_ context.Context) ([]engine.LoanMetadata, error) {
	return tv.parent.listMetadataLocked()
}

func (tv *txView) ListMetadataByUser(_ context.Context, userID string) ([]engine.LoanMetadata, error) {
	return tv.parent.listMetadataByUserLocked(userID)
}

func (tv *txView) InsertMetadata(_ context.Context, meta engine.LoanMetadata) error {
	return tv.parent.insertMetadataLocked(meta)
}

func (tv *txView) UpdateMetadata(_ context.Context, meta engine.LoanMetadata) error {
	return tv.parent.updateMetadataLocked(meta)
}

func (tv *txView) InsertPaymentRecord(_ context.Context, rec engine.PaymentRecord) error {
	return tv.parent.insertPaymentRecordLocked(rec)
}

func (tv *txView) WithTx(_ context.Context, fn func(engine.Store) error) error {
	return fn(tv)
}
