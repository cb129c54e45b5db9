package billing

import (
	"fmt"
	"sort"
	"time"

	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultEpsilon is the negligible-amount threshold: 0.01 currency units.
// CLP amounts are integral, so this only absorbs decimal drift from
// percentage adjustments and divisions.
var DefaultEpsilon = decimal.New(1, -2)

// AllocationTarget is an outstanding invoice eligible to absorb a payment
type AllocationTarget struct {
	InvoiceID         uuid.UUID
	InvoiceNumber     string
	IssueDate         time.Time
	OutstandingAmount decimal.Decimal
}

// Allocation is the slice of a payment applied to one invoice
type Allocation struct {
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Amount        decimal.Decimal `json:"amount"`
	FullyPaid     bool            `json:"fully_paid"`
}

// AllocationResult is the outcome of allocating one payment
type AllocationResult struct {
	Allocations     []Allocation    // in application order, oldest invoice first
	TotalAllocated  decimal.Decimal // sum of all allocation amounts
	CreditRemaining decimal.Decimal // residual not absorbed by any invoice
	AnyFullyPaid    bool            // true if at least one invoice became fully paid
}

// SortTargetsFIFO orders targets oldest-first by issue date, with invoice
// number ascending as the stable tiebreak. Every consumer of FIFO order goes
// through here so the ordering stays deterministic across replays.
func SortTargetsFIFO(targets []AllocationTarget) {
	sort.SliceStable(targets, func(i, j int) bool {
		if !targets[i].IssueDate.Equal(targets[j].IssueDate) {
			return targets[i].IssueDate.Before(targets[j].IssueDate)
		}
		return targets[i].InvoiceNumber < targets[j].InvoiceNumber
	})
}

// FIFOAllocator allocates a payment across outstanding invoices oldest-first
type FIFOAllocator struct {
	epsilon decimal.Decimal
}

// NewFIFOAllocator creates an allocator with the given epsilon; a
// non-positive epsilon falls back to DefaultEpsilon
func NewFIFOAllocator(epsilon decimal.Decimal) *FIFOAllocator {
	if epsilon.LessThanOrEqual(decimal.Zero) {
		epsilon = DefaultEpsilon
	}
	return &FIFOAllocator{epsilon: epsilon}
}

// Epsilon returns the allocator's negligible-amount threshold
func (a *FIFOAllocator) Epsilon() decimal.Decimal {
	return a.epsilon
}

// Allocate distributes a payment amount across the targets in FIFO order.
//
// Each target absorbs min(remaining, outstanding); a target is fully paid
// when the applied amount covers its outstanding within epsilon. Allocation
// stops early once the remainder is within epsilon of zero. Whatever is left
// after all targets are satisfied is surfaced as credit; it is never applied
// to future invoices automatically and never silently dropped.
//
// Invariant: TotalAllocated + CreditRemaining equals the payment amount
// exactly. A violation aborts with a fatal conservation error.
func (a *FIFOAllocator) Allocate(amount decimal.Decimal, targets []AllocationTarget) (*AllocationResult, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Allocation amount must be positive")
	}

	sorted := make([]AllocationTarget, len(targets))
	copy(sorted, targets)
	SortTargetsFIFO(sorted)

	allocations := make([]Allocation, 0, len(sorted))
	remaining := amount
	totalAllocated := decimal.Zero
	anyFullyPaid := false

	for _, target := range sorted {
		if remaining.LessThanOrEqual(a.epsilon) {
			break
		}
		if target.OutstandingAmount.LessThanOrEqual(decimal.Zero) {
			continue
		}

		applied := decimal.Min(remaining, target.OutstandingAmount)
		fullyPaid := applied.GreaterThanOrEqual(target.OutstandingAmount.Sub(a.epsilon))

		allocations = append(allocations, Allocation{
			InvoiceID:     target.InvoiceID,
			InvoiceNumber: target.InvoiceNumber,
			Amount:        applied,
			FullyPaid:     fullyPaid,
		})
		totalAllocated = totalAllocated.Add(applied)
		remaining = remaining.Sub(applied)
		if fullyPaid {
			anyFullyPaid = true
		}
	}

	if !totalAllocated.Add(remaining).Equal(amount) {
		return nil, shared.NewConservationViolation(fmt.Sprintf(
			"allocated %s + residual %s != payment %s",
			totalAllocated, remaining, amount))
	}

	return &AllocationResult{
		Allocations:     allocations,
		TotalAllocated:  totalAllocated,
		CreditRemaining: remaining,
		AnyFullyPaid:    anyFullyPaid,
	}, nil
}
