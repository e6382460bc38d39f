package charges

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/paysync/pkg/db/models"
	"github.com/angelmondragon/paysync/pkg/enums"
)

type stubAPI struct {
	mu sync.Mutex

	charges  map[string]*RemoteCharge
	invoices map[string]*RemoteInvoice

	chargeErr  error
	invoiceErr error
	refundErr  error

	retrieveCalls []retrieveCall
	invoiceCalls  []string
	refundCalls   []refundCall
}

type retrieveCall struct {
	id      string
	expand  []string
	account string
}

type refundCall struct {
	chargeID string
	amount   int64
	opts     RefundOptions
	account  string
}

func newStubAPI() *stubAPI {
	return &stubAPI{
		charges:  map[string]*RemoteCharge{},
		invoices: map[string]*RemoteInvoice{},
	}
}

func (s *stubAPI) RetrieveCharge(_ context.Context, id string, expand []string, account string) (*RemoteCharge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retrieveCalls = append(s.retrieveCalls, retrieveCall{id: id, expand: expand, account: account})
	if s.chargeErr != nil {
		return nil, s.chargeErr
	}
	remote, ok := s.charges[id]
	if !ok {
		return nil, errors.New("no such charge")
	}
	return remote, nil
}

func (s *stubAPI) RetrieveInvoice(_ context.Context, id string) (*RemoteInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoiceCalls = append(s.invoiceCalls, id)
	if s.invoiceErr != nil {
		return nil, s.invoiceErr
	}
	inv, ok := s.invoices[id]
	if !ok {
		return nil, errors.New("no such invoice")
	}
	return inv, nil
}

func (s *stubAPI) CreateRefund(_ context.Context, chargeID string, amount int64, opts RefundOptions, account string) (*RemoteRefund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refundCalls = append(s.refundCalls, refundCall{chargeID: chargeID, amount: amount, opts: opts, account: account})
	if s.refundErr != nil {
		return nil, s.refundErr
	}
	return &RemoteRefund{ID: "re_1", Charge: chargeID, Amount: amount, Status: "succeeded"}, nil
}

// memoryStore keeps rows in maps and enforces the (customer, processor_id)
// uniqueness the database would.
type memoryStore struct {
	mu sync.Mutex

	customers     []*models.Customer
	subscriptions []*models.Subscription
	charges       map[uuid.UUID]*models.Charge

	subscriptionErr error
	// hideCharges makes FindCharge miss this many times, as if a concurrent
	// sync had not committed yet.
	hideCharges int

	creates int
	updates int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{charges: map[uuid.UUID]*models.Charge{}}
}

func (m *memoryStore) addCustomer(processorID string, account *string) *models.Customer {
	c := &models.Customer{
		ID:            uuid.New(),
		OwnerType:     "User",
		OwnerID:       "1",
		Processor:     enums.ProcessorStripe,
		ProcessorID:   processorID,
		StripeAccount: account,
	}
	m.customers = append(m.customers, c)
	return c
}

func (m *memoryStore) addSubscription(customerID uuid.UUID, processorID string) *models.Subscription {
	s := &models.Subscription{
		ID:            uuid.New(),
		CustomerID:    customerID,
		Name:          "default",
		ProcessorID:   processorID,
		ProcessorPlan: "price_1",
		Status:        "active",
	}
	m.subscriptions = append(m.subscriptions, s)
	return s
}

func (m *memoryStore) FindCustomer(_ context.Context, processor enums.Processor, processorID string) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.Processor == processor && c.ProcessorID == processorID {
			return c, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) FindCharge(_ context.Context, customerID uuid.UUID, processorID string) (*models.Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hideCharges > 0 {
		m.hideCharges--
		return nil, nil
	}
	if c := m.lookup(customerID, processorID); c != nil {
		clone := *c
		return &clone, nil
	}
	return nil, nil
}

func (m *memoryStore) FindSubscription(_ context.Context, customerID uuid.UUID, processorID string) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscriptionErr != nil {
		return nil, m.subscriptionErr
	}
	for _, s := range m.subscriptions {
		if s.CustomerID == customerID && s.ProcessorID == processorID {
			return s, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) CreateCharge(_ context.Context, charge *models.Charge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.lookup(charge.CustomerID, charge.ProcessorID) != nil {
		return conflictError(errors.New("UNIQUE constraint failed: pay_charges.customer_id, pay_charges.processor_id"), "create charge")
	}
	if charge.ID == uuid.Nil {
		charge.ID = uuid.New()
	}
	clone := *charge
	m.charges[charge.ID] = &clone
	return nil
}

func (m *memoryStore) UpdateChargeUnderLock(_ context.Context, charge *models.Charge, attrs Attributes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	stored, ok := m.charges[charge.ID]
	if !ok {
		return errors.New("charge vanished")
	}
	updated := attrs.NewCharge(stored.CustomerID, stored.ProcessorID)
	updated.ID = stored.ID
	if attrs.Subscription == nil {
		updated.SubscriptionID = stored.SubscriptionID
	}
	*stored = *updated
	*charge = *updated
	return nil
}

func (m *memoryStore) UpdateAmountRefunded(_ context.Context, chargeID uuid.UUID, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.charges[chargeID]
	if !ok {
		return errors.New("charge not found")
	}
	stored.AmountRefunded = amount
	return nil
}

func (m *memoryStore) lookup(customerID uuid.UUID, processorID string) *models.Charge {
	for _, c := range m.charges {
		if c.CustomerID == customerID && c.ProcessorID == processorID {
			return c
		}
	}
	return nil
}

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.charges)
}

func (m *memoryStore) FindChargeByID(_ context.Context, id uuid.UUID) (*models.Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.charges[id], nil
}
