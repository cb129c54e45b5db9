package billing

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coopaguas/backend/internal/domain/billing"
	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// memStore is a shared in-memory backing store for the repository fakes
type memStore struct {
	mu          sync.Mutex
	customers   map[uuid.UUID]billing.Customer
	invoices    map[uuid.UUID]billing.Invoice
	payments    map[uuid.UUID]billing.Payment
	adjustments map[uuid.UUID]billing.Adjustment
	classes     map[uuid.UUID]billing.SubsidyClass
	assignments map[uuid.UUID]billing.SubsidyAssignment
	plans       map[uuid.UUID]billing.RepactacionPlan
	tariffs     map[uuid.UUID]billing.TariffSchedule
}

func newMemStore() *memStore {
	return &memStore{
		customers:   make(map[uuid.UUID]billing.Customer),
		invoices:    make(map[uuid.UUID]billing.Invoice),
		payments:    make(map[uuid.UUID]billing.Payment),
		adjustments: make(map[uuid.UUID]billing.Adjustment),
		classes:     make(map[uuid.UUID]billing.SubsidyClass),
		assignments: make(map[uuid.UUID]billing.SubsidyAssignment),
		plans:       make(map[uuid.UUID]billing.RepactacionPlan),
		tariffs:     make(map[uuid.UUID]billing.TariffSchedule),
	}
}

func (s *memStore) scope() *NoOpTransactionScope {
	return NewNoOpTransactionScope(
		&memCustomerRepo{s}, &memInvoiceRepo{s}, &memPaymentRepo{s},
		&memAdjustmentRepo{s}, &memSubsidyRepo{s}, &memRepactacionRepo{s},
		&memTariffRepo{s},
	)
}

type memCustomerRepo struct{ s *memStore }

func (r *memCustomerRepo) FindByID(_ context.Context, id uuid.UUID) (*billing.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &c, nil
}

func (r *memCustomerRepo) FindByCode(_ context.Context, code string) (*billing.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	code = strings.TrimSpace(code)
	for _, c := range r.s.customers {
		if c.Code == code {
			return &c, nil
		}
		for _, alias := range c.Aliases {
			if alias.Code == code {
				return &c, nil
			}
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memCustomerRepo) FindAll(_ context.Context, _ shared.Filter) ([]billing.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]billing.Customer, 0, len(r.s.customers))
	for _, c := range r.s.customers {
		out = append(out, c)
	}
	return out, nil
}

func (r *memCustomerRepo) Count(_ context.Context, _ shared.Filter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.customers)), nil
}

func (r *memCustomerRepo) Save(_ context.Context, customer *billing.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.customers[customer.ID] = *customer
	return nil
}

type memInvoiceRepo struct{ s *memStore }

func (r *memInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*billing.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &inv, nil
}

func (r *memInvoiceRepo) FindByNumber(_ context.Context, number string) (*billing.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, inv := range r.s.invoices {
		if inv.InvoiceNumber == number {
			return &inv, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memInvoiceRepo) FindByCustomer(_ context.Context, customerID uuid.UUID) ([]billing.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]billing.Invoice, 0)
	for _, inv := range r.s.invoices {
		if inv.CustomerID == customerID {
			out = append(out, inv)
		}
	}
	sortInvoicesFIFO(out)
	return out, nil
}

func (r *memInvoiceRepo) FindOutstandingByCustomer(ctx context.Context, customerID uuid.UUID) ([]billing.Invoice, error) {
	all, err := r.FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	out := make([]billing.Invoice, 0, len(all))
	for _, inv := range all {
		if inv.Status != billing.InvoiceStatusPaid {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *memInvoiceRepo) FindAll(_ context.Context, _ billing.InvoiceFilter) ([]billing.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]billing.Invoice, 0, len(r.s.invoices))
	for _, inv := range r.s.invoices {
		out = append(out, inv)
	}
	sortInvoicesFIFO(out)
	return out, nil
}

func (r *memInvoiceRepo) Save(_ context.Context, invoice *billing.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.invoices[invoice.ID] = *invoice
	return nil
}

func (r *memInvoiceRepo) SaveAll(ctx context.Context, invoices []billing.Invoice) error {
	for i := range invoices {
		if err := r.Save(ctx, &invoices[i]); err != nil {
			return err
		}
	}
	return nil
}

func sortInvoicesFIFO(invoices []billing.Invoice) {
	sort.SliceStable(invoices, func(i, j int) bool {
		if !invoices[i].IssueDate.Equal(invoices[j].IssueDate) {
			return invoices[i].IssueDate.Before(invoices[j].IssueDate)
		}
		return invoices[i].InvoiceNumber < invoices[j].InvoiceNumber
	})
}

type memPaymentRepo struct{ s *memStore }

func (r *memPaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*billing.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &p, nil
}

func (r *memPaymentRepo) FindByGatewayReference(_ context.Context, reference string) (*billing.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.GatewayReference == reference {
			return &p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memPaymentRepo) FindByCustomer(_ context.Context, customerID uuid.UUID, _ billing.PaymentFilter) ([]billing.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]billing.Payment, 0)
	for _, p := range r.s.payments {
		if p.CustomerID == customerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memPaymentRepo) FindCompletedByCustomer(_ context.Context, customerID uuid.UUID) ([]billing.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]billing.Payment, 0)
	for _, p := range r.s.payments {
		if p.CustomerID == customerID && p.Status == billing.PaymentStatusCompleted {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletedAt.Before(*out[j].CompletedAt)
	})
	return out, nil
}

func (r *memPaymentRepo) Save(_ context.Context, payment *billing.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.payments[payment.ID] = *payment
	return nil
}

type memAdjustmentRepo struct{ s *memStore }

func (r *memAdjustmentRepo) FindByID(_ context.Context, id uuid.UUID) (*billing.Adjustment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.adjustments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &a, nil
}

func (r *memAdjustmentRepo) FindByInvoice(_ context.Context, invoiceID uuid.UUID) ([]billing.Adjustment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]billing.Adjustment, 0)
	for _, a := range r.s.adjustments {
		if a.InvoiceID != nil && *a.InvoiceID == invoiceID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAdjustmentRepo) FindUnbilledByCustomer(_ context.Context, customerID uuid.UUID) ([]billing.Adjustment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]billing.Adjustment, 0)
	for _, a := range r.s.adjustments {
		if a.CustomerID == customerID && a.InvoiceID == nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAdjustmentRepo) Save(_ context.Context, adjustment *billing.Adjustment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.adjustments[adjustment.ID] = *adjustment
	return nil
}

type memSubsidyRepo struct{ s *memStore }

func (r *memSubsidyRepo) FindClassByID(_ context.Context, id uuid.UUID) (*billing.SubsidyClass, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.classes[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &c, nil
}

func (r *memSubsidyRepo) FindClassByCode(_ context.Context, code int) (*billing.SubsidyClass, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.classes {
		if c.Code == code {
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memSubsidyRepo) FindAllClasses(_ context.Context) ([]billing.SubsidyClass, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]billing.SubsidyClass, 0, len(r.s.classes))
	for _, c := range r.s.classes {
		out = append(out, c)
	}
	return out, nil
}

func (r *memSubsidyRepo) SaveClass(_ context.Context, class *billing.SubsidyClass) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.classes[class.ID] = *class
	return nil
}

func (r *memSubsidyRepo) FindActiveAssignment(_ context.Context, customerID uuid.UUID, on time.Time) (*billing.SubsidyAssignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.assignments {
		if a.CustomerID == customerID && a.ActiveOn(on) {
			return &a, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memSubsidyRepo) FindAssignmentsByCustomer(_ context.Context, customerID uuid.UUID) ([]billing.SubsidyAssignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]billing.SubsidyAssignment, 0)
	for _, a := range r.s.assignments {
		if a.CustomerID == customerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memSubsidyRepo) SaveAssignment(_ context.Context, assignment *billing.SubsidyAssignment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.assignments[assignment.ID] = *assignment
	return nil
}

type memRepactacionRepo struct{ s *memStore }

func (r *memRepactacionRepo) FindByID(_ context.Context, id uuid.UUID) (*billing.RepactacionPlan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.plans[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &p, nil
}

func (r *memRepactacionRepo) FindByCustomer(_ context.Context, customerID uuid.UUID) ([]billing.RepactacionPlan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]billing.RepactacionPlan, 0)
	for _, p := range r.s.plans {
		if p.CustomerID == customerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memRepactacionRepo) FindCurrentByCustomer(_ context.Context, customerID uuid.UUID, period time.Time) ([]billing.RepactacionPlan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]billing.RepactacionPlan, 0)
	for _, p := range r.s.plans {
		if p.CustomerID == customerID && !p.IsExhausted(period) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memRepactacionRepo) Save(_ context.Context, plan *billing.RepactacionPlan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.plans[plan.ID] = *plan
	return nil
}

type memTariffRepo struct{ s *memStore }

func (r *memTariffRepo) FindEffectiveOn(_ context.Context, on time.Time) (*billing.TariffSchedule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tariffs {
		if t.ActiveOn(on) {
			return &t, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memTariffRepo) FindAll(_ context.Context) ([]billing.TariffSchedule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]billing.TariffSchedule, 0, len(r.s.tariffs))
	for _, t := range r.s.tariffs {
		out = append(out, t)
	}
	return out, nil
}

func (r *memTariffRepo) Save(_ context.Context, schedule *billing.TariffSchedule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.tariffs[schedule.ID] = *schedule
	return nil
}

// recordingEventBus captures published events for assertions
type recordingEventBus struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (b *recordingEventBus) Publish(_ context.Context, events ...shared.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, events...)
	return nil
}

func (b *recordingEventBus) typesPublished() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]string, 0, len(b.events))
	for _, e := range b.events {
		types = append(types, e.EventType())
	}
	return types
}

// memIdempotencyStore is a map-backed idempotency store for tests
type memIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemIdempotencyStore() *memIdempotencyStore {
	return &memIdempotencyStore{seen: make(map[string]bool)}
}

func (s *memIdempotencyStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

func (s *memIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[key], nil
}

func (s *memIdempotencyStore) Close() error { return nil }
