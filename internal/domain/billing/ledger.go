package billing

import (
	"sort"

	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceBalance is the replayed paid/owed projection of one invoice
type InvoiceBalance struct {
	InvoiceID         uuid.UUID        `json:"invoice_id"`
	InvoiceNumber     string           `json:"invoice_number"`
	ChargeAmount      decimal.Decimal  `json:"charge_amount"`
	PaidAmount        decimal.Decimal  `json:"paid_amount"`
	OutstandingAmount decimal.Decimal  `json:"outstanding_amount"`
	Status            InvoiceStatus    `json:"status"`
	AppliedPayments   []AppliedPayment `json:"applied_payments"`
}

// CustomerStatement is the replayed view of a customer's ledger
type CustomerStatement struct {
	CustomerID       uuid.UUID        `json:"customer_id"`
	Invoices         []InvoiceBalance `json:"invoices"` // FIFO order, oldest first
	TotalOutstanding decimal.Decimal  `json:"total_outstanding"`
	CreditAvailable  decimal.Decimal  `json:"credit_available"`
	Balance          decimal.Decimal  `json:"balance"` // outstanding minus credit; negative = in favor
}

// LedgerService recomputes per-invoice paid/owed state and the customer
// balance by replaying the full payment history through the FIFO allocator.
// It is pure: calling it never mutates the aggregates it reads, and two runs
// over the same history produce identical results. This is the single source
// of truth for invoice status; the persisted fields are only a projection.
type LedgerService struct {
	allocator *FIFOAllocator
}

// NewLedgerService creates a ledger service sharing the allocator's epsilon
func NewLedgerService(allocator *FIFOAllocator) *LedgerService {
	if allocator == nil {
		allocator = NewFIFOAllocator(DefaultEpsilon)
	}
	return &LedgerService{allocator: allocator}
}

// Allocator exposes the underlying allocator for orchestration
func (s *LedgerService) Allocator() *FIFOAllocator {
	return s.allocator
}

// BuildStatement replays the given invoices and payments into a statement.
//
// Only completed payments participate; reversed ones are skipped entirely,
// which is how a reversal "re-runs" the ledger instead of undoing deltas.
// Payments replay in completion order (ID ascending on equal timestamps) and
// each allocates FIFO across the invoices issued on or before its completion
// time: credit left by an overpayment stays credit when a later boleta
// arrives, it is never auto-applied.
func (s *LedgerService) BuildStatement(customerID uuid.UUID, invoices []Invoice, payments []Payment) (*CustomerStatement, error) {
	balances := make([]InvoiceBalance, 0, len(invoices))
	index := make(map[uuid.UUID]int, len(invoices))
	targets := make([]AllocationTarget, 0, len(invoices))

	for i := range invoices {
		inv := &invoices[i]
		if inv.CustomerID != customerID {
			return nil, shared.NewDomainError("INVALID_INPUT",
				"Statement input contains an invoice of another customer")
		}
		charge := inv.ChargeAmount()
		status := InvoiceStatusPending
		if charge.LessThanOrEqual(s.allocator.epsilon) {
			status = InvoiceStatusPaid
		}
		balances = append(balances, InvoiceBalance{
			InvoiceID:         inv.ID,
			InvoiceNumber:     inv.InvoiceNumber,
			ChargeAmount:      charge,
			PaidAmount:        decimal.Zero,
			OutstandingAmount: charge,
			Status:            status,
		})
		targets = append(targets, AllocationTarget{
			InvoiceID:         inv.ID,
			InvoiceNumber:     inv.InvoiceNumber,
			IssueDate:         inv.IssueDate,
			OutstandingAmount: charge,
		})
	}

	SortTargetsFIFO(targets)
	for i, t := range targets {
		index[t.InvoiceID] = i
	}
	// Present balances in the same FIFO order as the allocation walk
	sort.SliceStable(balances, func(i, j int) bool {
		return index[balances[i].InvoiceID] < index[balances[j].InvoiceID]
	})
	for i := range balances {
		index[balances[i].InvoiceID] = i
	}

	replayable := completedPaymentsInOrder(payments)
	credit := decimal.Zero

	for _, p := range replayable {
		eligible := make([]AllocationTarget, 0, len(targets))
		for _, t := range targets {
			if t.OutstandingAmount.LessThanOrEqual(decimal.Zero) {
				continue
			}
			if p.CompletedAt != nil && t.IssueDate.After(*p.CompletedAt) {
				continue
			}
			eligible = append(eligible, t)
		}

		if len(eligible) == 0 {
			credit = credit.Add(p.Amount)
			continue
		}

		result, err := s.allocator.Allocate(p.Amount, eligible)
		if err != nil {
			return nil, err
		}

		for _, alloc := range result.Allocations {
			pos := index[alloc.InvoiceID]
			b := &balances[pos]
			b.PaidAmount = b.PaidAmount.Add(alloc.Amount)
			b.OutstandingAmount = b.OutstandingAmount.Sub(alloc.Amount)
			b.AppliedPayments = append(b.AppliedPayments, AppliedPayment{
				PaymentID: p.ID,
				Amount:    alloc.Amount,
				AppliedAt: *p.CompletedAt,
			})
			if b.OutstandingAmount.LessThanOrEqual(s.allocator.epsilon) {
				b.Status = InvoiceStatusPaid
			} else if b.PaidAmount.GreaterThan(decimal.Zero) {
				b.Status = InvoiceStatusPartial
			}
			targets[pos].OutstandingAmount = b.OutstandingAmount
		}
		credit = credit.Add(result.CreditRemaining)
	}

	totalOutstanding := decimal.Zero
	for i := range balances {
		totalOutstanding = totalOutstanding.Add(balances[i].OutstandingAmount)
	}

	return &CustomerStatement{
		CustomerID:       customerID,
		Invoices:         balances,
		TotalOutstanding: totalOutstanding,
		CreditAvailable:  credit,
		Balance:          totalOutstanding.Sub(credit),
	}, nil
}

// OutstandingTargets extracts the allocation targets still owing from a
// statement, in FIFO order
func (s *LedgerService) OutstandingTargets(stmt *CustomerStatement, invoices []Invoice) []AllocationTarget {
	issueDates := make(map[uuid.UUID]int, len(invoices))
	for i := range invoices {
		issueDates[invoices[i].ID] = i
	}
	targets := make([]AllocationTarget, 0, len(stmt.Invoices))
	for _, b := range stmt.Invoices {
		if b.OutstandingAmount.LessThanOrEqual(decimal.Zero) {
			continue
		}
		t := AllocationTarget{
			InvoiceID:         b.InvoiceID,
			InvoiceNumber:     b.InvoiceNumber,
			OutstandingAmount: b.OutstandingAmount,
		}
		if i, ok := issueDates[b.InvoiceID]; ok {
			t.IssueDate = invoices[i].IssueDate
		}
		targets = append(targets, t)
	}
	SortTargetsFIFO(targets)
	return targets
}

// completedPaymentsInOrder filters to ledger-relevant payments sorted by
// completion time, ID ascending on ties for a deterministic replay
func completedPaymentsInOrder(payments []Payment) []Payment {
	replayable := make([]Payment, 0, len(payments))
	for i := range payments {
		if payments[i].Status.CountsTowardLedger() && payments[i].CompletedAt != nil {
			replayable = append(replayable, payments[i])
		}
	}
	sort.SliceStable(replayable, func(i, j int) bool {
		if !replayable[i].CompletedAt.Equal(*replayable[j].CompletedAt) {
			return replayable[i].CompletedAt.Before(*replayable[j].CompletedAt)
		}
		return replayable[i].ID.String() < replayable[j].ID.String()
	})
	return replayable
}
