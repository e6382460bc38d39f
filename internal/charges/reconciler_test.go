package charges

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	pkgerrors "github.com/angelmondragon/paysync/pkg/errors"
	"github.com/angelmondragon/paysync/pkg/metrics"
)

const cardChargeJSON = `{
	"id": "ch_123",
	"amount": 5000,
	"amount_refunded": 0,
	"created": 1767225600,
	"currency": "usd",
	"customer": "cus_123",
	"payment_method_details": {
		"type": "card",
		"card": {"brand": "visa", "last4": "4242", "exp_month": 12, "exp_year": 2030}
	}
}`

func newTestSyncer(t *testing.T, api RemoteAPI, store Store, retries int) *Syncer {
	t.Helper()
	syncer, err := NewSyncer(SyncerParams{
		API:     api,
		Store:   store,
		Retries: retries,
		Backoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new syncer: %v", err)
	}
	return syncer
}

func TestNewSyncerRequiresCollaborators(t *testing.T) {
	if _, err := NewSyncer(SyncerParams{Store: newMemoryStore()}); err == nil {
		t.Fatal("expected api to be required")
	}
	if _, err := NewSyncer(SyncerParams{API: newStubAPI()}); err == nil {
		t.Fatal("expected store to be required")
	}
	if _, err := NewSyncer(SyncerParams{API: newStubAPI(), Store: newMemoryStore(), Retries: -1}); err == nil {
		t.Fatal("expected negative retries to be rejected")
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	store := newMemoryStore()
	customer := store.addCustomer("cus_123", nil)
	syncer := newTestSyncer(t, newStubAPI(), store, DefaultRetries)
	ctx := context.Background()

	first, err := syncer.Sync(ctx, "ch_123", decodeFixture(t, cardChargeJSON), UseDefaultRetries)
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if first == nil || first.CustomerID != customer.ID || first.ProcessorID != "ch_123" {
		t.Fatalf("unexpected first result %+v", first)
	}

	second := decodeFixture(t, cardChargeJSON)
	second.AmountRefunded = 1500
	got, err := syncer.Sync(ctx, "ch_123", second, UseDefaultRetries)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}

	if store.count() != 1 {
		t.Fatalf("expected exactly one charge, got %d", store.count())
	}
	if got.ID != first.ID {
		t.Fatalf("second sync must update the same row, got %s want %s", got.ID, first.ID)
	}
	if got.AmountRefunded != 1500 || got.Amount != 5000 {
		t.Fatalf("expected fields from second sync, got %+v", got)
	}
	if deref(got.Brand) != "Visa" || deref(got.PaymentMethodType) != "card" {
		t.Fatalf("payment method fields lost on update: %+v", got)
	}
	if store.creates != 1 || store.updates != 1 {
		t.Fatalf("expected 1 create and 1 update, got %d/%d", store.creates, store.updates)
	}
}

func TestSyncSkipsUnknownCustomer(t *testing.T) {
	store := newMemoryStore()
	store.addCustomer("cus_other", nil)
	syncer := newTestSyncer(t, newStubAPI(), store, DefaultRetries)

	got, err := syncer.Sync(context.Background(), "ch_123", decodeFixture(t, cardChargeJSON), UseDefaultRetries)
	if err != nil {
		t.Fatalf("unknown customer is not an error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no-op, got %+v", got)
	}
	if store.count() != 0 || store.creates != 0 {
		t.Fatal("no charge may be created for an unknown customer")
	}
}

func TestSyncSkipsChargeWithoutCustomer(t *testing.T) {
	store := newMemoryStore()
	syncer := newTestSyncer(t, newStubAPI(), store, DefaultRetries)

	got, err := syncer.Sync(context.Background(), "ch_guest", decodeFixture(t, `{"id": "ch_guest", "amount": 100, "created": 1, "currency": "usd", "customer": null}`), 0)
	if err != nil || got != nil {
		t.Fatalf("expected silent skip, got %+v (%v)", got, err)
	}
}

func TestSyncFetchesWhenRemoteMissing(t *testing.T) {
	store := newMemoryStore()
	store.addCustomer("cus_123", nil)
	api := newStubAPI()
	api.charges["ch_123"] = decodeFixture(t, cardChargeJSON)
	syncer := newTestSyncer(t, api, store, DefaultRetries)

	got, err := syncer.Sync(context.Background(), "ch_123", nil, UseDefaultRetries)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if got == nil || got.Amount != 5000 {
		t.Fatalf("unexpected result %+v", got)
	}
	if len(api.retrieveCalls) != 1 || api.retrieveCalls[0].id != "ch_123" {
		t.Fatalf("expected one retrieve for ch_123, got %+v", api.retrieveCalls)
	}
}

func TestSyncUsesSuppliedRemote(t *testing.T) {
	store := newMemoryStore()
	store.addCustomer("cus_123", nil)
	api := newStubAPI()
	syncer := newTestSyncer(t, api, store, DefaultRetries)

	if _, err := syncer.Sync(context.Background(), "ch_123", decodeFixture(t, cardChargeJSON), UseDefaultRetries); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(api.retrieveCalls) != 0 {
		t.Fatalf("supplied remote must not be refetched, got %d calls", len(api.retrieveCalls))
	}
}

func TestSyncTranslatesFetchFailure(t *testing.T) {
	api := newStubAPI()
	api.chargeErr = errors.New("connection reset by peer")
	syncer := newTestSyncer(t, api, newMemoryStore(), DefaultRetries)

	_, err := syncer.Sync(context.Background(), "ch_123", nil, UseDefaultRetries)
	if err == nil {
		t.Fatal("expected error")
	}
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(api.retrieveCalls) != 1 {
		t.Fatalf("fetch failures are not retried, got %d calls", len(api.retrieveCalls))
	}
}

func TestSyncStoresCustomerAccountScope(t *testing.T) {
	store := newMemoryStore()
	account := "acct_connected"
	store.addCustomer("cus_123", &account)
	syncer := newTestSyncer(t, newStubAPI(), store, DefaultRetries)

	got, err := syncer.Sync(context.Background(), "ch_123", decodeFixture(t, cardChargeJSON), UseDefaultRetries)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if deref(got.StripeAccount) != account {
		t.Fatalf("expected account %q, got %v", account, got.StripeAccount)
	}
}

func TestSyncSubscriptionLinkage(t *testing.T) {
	tests := []struct {
		name        string
		invoice     string
		invoices    map[string]*RemoteInvoice
		invoiceErr  error
		subErr      error
		wantLinked  bool
		wantFetched bool
	}{
		{
			name:       "expanded invoice with known subscription",
			invoice:    `{"id": "in_1", "subscription": "sub_1"}`,
			wantLinked: true,
		},
		{
			name:        "invoice id fetched",
			invoice:     `"in_1"`,
			invoices:    map[string]*RemoteInvoice{"in_1": {ID: "in_1", Subscription: Ref{ID: "sub_1"}}},
			wantLinked:  true,
			wantFetched: true,
		},
		{
			name:    "subscription not on customer",
			invoice: `{"id": "in_1", "subscription": "sub_unknown"}`,
		},
		{
			name:    "invoice without subscription",
			invoice: `{"id": "in_1", "subscription": null}`,
		},
		{
			name:        "invoice fetch fails",
			invoice:     `"in_1"`,
			invoiceErr:  errors.New("stripe down"),
			wantFetched: true,
		},
		{
			name:    "subscription lookup fails",
			invoice: `{"id": "in_1", "subscription": "sub_1"}`,
			subErr:  errors.New("db down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			customer := store.addCustomer("cus_123", nil)
			sub := store.addSubscription(customer.ID, "sub_1")
			store.subscriptionErr = tt.subErr
			api := newStubAPI()
			if tt.invoices != nil {
				api.invoices = tt.invoices
			}
			api.invoiceErr = tt.invoiceErr
			syncer := newTestSyncer(t, api, store, DefaultRetries)

			remote := decodeFixture(t, `{"id": "ch_sub", "amount": 900, "created": 1, "currency": "usd", "customer": "cus_123", "invoice": `+tt.invoice+`}`)
			got, err := syncer.Sync(context.Background(), "ch_sub", remote, UseDefaultRetries)
			if err != nil {
				t.Fatalf("linkage problems must not fail the sync: %v", err)
			}
			if tt.wantLinked {
				if got.SubscriptionID == nil || *got.SubscriptionID != sub.ID {
					t.Fatalf("expected subscription %s, got %v", sub.ID, got.SubscriptionID)
				}
			} else if got.SubscriptionID != nil {
				t.Fatalf("expected no subscription, got %s", *got.SubscriptionID)
			}
			if fetched := len(api.invoiceCalls) > 0; fetched != tt.wantFetched {
				t.Fatalf("invoice fetched = %v, want %v", fetched, tt.wantFetched)
			}
		})
	}
}

func TestSyncClearsStaleSubscriptionWhenInvoiceDoesNotResolve(t *testing.T) {
	store := newMemoryStore()
	customer := store.addCustomer("cus_123", nil)
	store.addSubscription(customer.ID, "sub_1")
	syncer := newTestSyncer(t, newStubAPI(), store, DefaultRetries)
	ctx := context.Background()

	linked := `{"id": "ch_sub", "amount": 900, "created": 1, "currency": "usd", "customer": "cus_123", "invoice": {"id": "in_1", "subscription": "sub_1"}}`
	if got, err := syncer.Sync(ctx, "ch_sub", decodeFixture(t, linked), 0); err != nil || got.SubscriptionID == nil {
		t.Fatalf("expected linked charge, got %+v (%v)", got, err)
	}

	noInvoice := `{"id": "ch_sub", "amount": 900, "created": 1, "currency": "usd", "customer": "cus_123"}`
	got, err := syncer.Sync(ctx, "ch_sub", decodeFixture(t, noInvoice), 0)
	if err != nil || got.SubscriptionID == nil {
		t.Fatalf("a charge without invoice keeps its link, got %+v (%v)", got, err)
	}

	unresolved := `{"id": "ch_sub", "amount": 900, "created": 1, "currency": "usd", "customer": "cus_123", "invoice": {"id": "in_2", "subscription": "sub_gone"}}`
	got, err = syncer.Sync(ctx, "ch_sub", decodeFixture(t, unresolved), 0)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if got.SubscriptionID != nil {
		t.Fatalf("unresolvable subscription clears the link, got %s", *got.SubscriptionID)
	}
}

func TestSyncRetriesAfterCreateConflict(t *testing.T) {
	store := newMemoryStore()
	store.addCustomer("cus_123", nil)
	reg := prometheus.NewRegistry()
	syncer, err := NewSyncer(SyncerParams{
		API:     newStubAPI(),
		Store:   store,
		Metrics: metrics.NewChargeSyncMetrics(reg),
		Retries: 1,
		Backoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new syncer: %v", err)
	}
	ctx := context.Background()

	if _, err := syncer.Sync(ctx, "ch_123", decodeFixture(t, cardChargeJSON), 0); err != nil {
		t.Fatalf("seed sync: %v", err)
	}

	// The next sync misses the committed row once, loses the insert race and
	// must converge on the update path.
	store.hideCharges = 1
	refunded := decodeFixture(t, cardChargeJSON)
	refunded.AmountRefunded = 5000
	got, err := syncer.Sync(ctx, "ch_123", refunded, UseDefaultRetries)
	if err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if got.AmountRefunded != 5000 {
		t.Fatalf("expected retried update to apply, got %d", got.AmountRefunded)
	}
	if store.count() != 1 {
		t.Fatalf("expected one charge, got %d", store.count())
	}
	if store.creates != 2 || store.updates != 1 {
		t.Fatalf("expected 2 creates and 1 update, got %d/%d", store.creates, store.updates)
	}
	if got := counterValue(t, reg, "paysync_charge_sync_conflict_retries_total"); got != 1 {
		t.Fatalf("expected 1 retry recorded, got %v", got)
	}
}

func TestSyncReportsConflictAfterExhaustingRetries(t *testing.T) {
	store := newMemoryStore()
	store.addCustomer("cus_123", nil)
	syncer := newTestSyncer(t, newStubAPI(), store, 2)
	ctx := context.Background()

	if _, err := syncer.Sync(ctx, "ch_123", decodeFixture(t, cardChargeJSON), 0); err != nil {
		t.Fatalf("seed sync: %v", err)
	}

	store.hideCharges = 10
	got, err := syncer.Sync(ctx, "ch_123", decodeFixture(t, cardChargeJSON), UseDefaultRetries)
	if err == nil {
		t.Fatalf("expected conflict, got %+v", got)
	}
	if !errors.Is(err, ErrValidationConflict) {
		t.Fatalf("expected ErrValidationConflict, got %v", err)
	}
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict code, got %v", err)
	}
	// seed create + 1 attempt + 2 retries
	if store.creates != 4 {
		t.Fatalf("expected 4 create attempts, got %d", store.creates)
	}
	if store.count() != 1 {
		t.Fatalf("expected one charge, got %d", store.count())
	}
}

func TestSyncWithZeroRetriesFailsFast(t *testing.T) {
	store := newMemoryStore()
	store.addCustomer("cus_123", nil)
	syncer := newTestSyncer(t, newStubAPI(), store, 3)
	ctx := context.Background()

	if _, err := syncer.Sync(ctx, "ch_123", decodeFixture(t, cardChargeJSON), 0); err != nil {
		t.Fatalf("seed sync: %v", err)
	}
	store.hideCharges = 1
	if _, err := syncer.Sync(ctx, "ch_123", decodeFixture(t, cardChargeJSON), 0); !errors.Is(err, ErrValidationConflict) {
		t.Fatalf("expected conflict without retry, got %v", err)
	}
	if store.creates != 2 {
		t.Fatalf("expected a single conflicting create, got %d", store.creates-1)
	}
}

func TestConcurrentSyncsConvergeOnOneRow(t *testing.T) {
	store := newMemoryStore()
	store.addCustomer("cus_123", nil)
	syncer := newTestSyncer(t, newStubAPI(), store, 3)

	const workers = 8
	remotes := make([]*RemoteCharge, workers)
	for i := range remotes {
		remotes[i] = decodeFixture(t, cardChargeJSON)
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for _, remote := range remotes {
		wg.Add(1)
		go func(remote *RemoteCharge) {
			defer wg.Done()
			_, err := syncer.Sync(context.Background(), "ch_123", remote, UseDefaultRetries)
			errs <- err
		}(remote)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent sync failed: %v", err)
		}
	}
	if store.count() != 1 {
		t.Fatalf("expected exactly one charge, got %d", store.count())
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			total += counterOf(m)
		}
		return total
	}
	return 0
}

func counterOf(m *dto.Metric) float64 {
	if m.GetCounter() == nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
