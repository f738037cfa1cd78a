package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	billingeventdomain "github.com/quotient-hq/quotient/internal/billingevent/domain"
	billingeventrepo "github.com/quotient-hq/quotient/internal/billingevent/repository"
	billingeventservice "github.com/quotient-hq/quotient/internal/billingevent/service"
	"github.com/quotient-hq/quotient/internal/clock"
	customerdomain "github.com/quotient-hq/quotient/internal/customer/domain"
	customerrepo "github.com/quotient-hq/quotient/internal/customer/repository"
	customerservice "github.com/quotient-hq/quotient/internal/customer/service"
	"github.com/quotient-hq/quotient/internal/dunning"
	limitrepo "github.com/quotient-hq/quotient/internal/limit/repository"
	plandomain "github.com/quotient-hq/quotient/internal/plan/domain"
	planrepo "github.com/quotient-hq/quotient/internal/plan/repository"
	planservice "github.com/quotient-hq/quotient/internal/plan/service"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeProvider struct {
	canceledSubs    []string
	retriedInvoices []string
	retryErr        error
}

func (f *fakeProvider) CreateCustomer(ctx context.Context, email string, name string) (string, error) {
	return "cus_fake", nil
}

func (f *fakeProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	f.canceledSubs = append(f.canceledSubs, subscriptionID)
	return nil
}

func (f *fakeProvider) RetryLatestInvoice(ctx context.Context, customerID string) error {
	if f.retryErr != nil {
		return f.retryErr
	}
	f.retriedInvoices = append(f.retriedInvoices, customerID)
	return nil
}

type stack struct {
	db           *gorm.DB
	node         *snowflake.Node
	clk          *clock.FakeClock
	provider     *fakeProvider
	plans        plandomain.Service
	customers    customerdomain.Service
	customerRepo customerdomain.Repository
	events       billingeventdomain.Service
}

func newStack(t *testing.T) *stack {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(31)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	provider := &fakeProvider{}

	planSvc := planservice.New(planservice.Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Repo:      planrepo.Provide(),
		LimitRepo: limitrepo.Provide(),
	})
	custRepo := customerrepo.Provide()
	customerSvc := customerservice.New(customerservice.Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Repo:      custRepo,
		PlanSvc:   planSvc,
		PlanRepo:  planrepo.Provide(),
		LimitRepo: limitrepo.Provide(),
		Provider:  provider,
	})
	dunningSvc := dunning.New(dunning.Params{
		DB:        db,
		Log:       zap.NewNop(),
		Customers: custRepo,
		Provider:  provider,
	})
	eventSvc := billingeventservice.New(billingeventservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		Repo:       billingeventrepo.Provide(),
		Customers:  custRepo,
		PlanSvc:    planSvc,
		DunningSvc: dunningSvc,
	})

	return &stack{
		db:           db,
		node:         node,
		clk:          clk,
		provider:     provider,
		plans:        planSvc,
		customers:    customerSvc,
		customerRepo: custRepo,
		events:       eventSvc,
	}
}

// seedPayingSetup creates a customer attached to cus_1 and a paid plan behind
// price_pro.
func seedPayingSetup(t *testing.T, s *stack) (*customerdomain.Customer, *plandomain.Plan) {
	t.Helper()
	ctx := context.Background()

	customer, err := s.customers.EnsureCustomer(ctx, 1)
	if err != nil {
		t.Fatalf("ensure customer: %v", err)
	}
	if err := s.customers.AttachExternalCustomer(ctx, 1, "cus_1"); err != nil {
		t.Fatalf("attach external customer: %v", err)
	}

	price := "price_pro"
	pro, err := s.plans.Create(ctx, plandomain.CreateRequest{Name: "Pro", Kind: plandomain.PlanKindPaid, PriceID: &price})
	if err != nil {
		t.Fatalf("create pro plan: %v", err)
	}
	return customer, pro
}

func subscriptionEvent(eventID, status, priceID string, created, periodEnd int64) []byte {
	return []byte(fmt.Sprintf(
		`{"id":"%s","type":"customer.subscription.updated","created":%d,"data":{"object":{"id":"sub_1","customer":"cus_1","status":"%s","current_period_end":%d,"items":{"data":[{"price":{"id":"%s"}}]}}}}`,
		eventID, created, status, periodEnd, priceID,
	))
}

func invoiceEvent(eventID, eventType string, created, periodEnd int64) []byte {
	lines := `{"data":[]}`
	if periodEnd > 0 {
		lines = fmt.Sprintf(`{"data":[{"period":{"end":%d}}]}`, periodEnd)
	}
	return []byte(fmt.Sprintf(
		`{"id":"%s","type":"%s","created":%d,"data":{"object":{"customer":"cus_1","subscription":"sub_1","billing_reason":"subscription_cycle","lines":%s}}}`,
		eventID, eventType, created, lines,
	))
}

func TestIngestSubscriptionUpdatedActivatesPlan(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	_, pro := seedPayingSetup(t, s)

	created := s.clk.Now().Unix()
	periodEnd := s.clk.Now().Add(30 * 24 * time.Hour).Unix()
	result, err := s.events.Ingest(ctx, subscriptionEvent("evt_1", "active", "price_pro", created, periodEnd))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !result.Accepted {
		t.Fatal("expected event to be accepted")
	}
	if result.Record.Status != billingeventdomain.EventStatusProcessed {
		t.Fatalf("expected processed, got %s", result.Record.Status)
	}

	got, err := s.customers.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if got.PlanID != pro.ID {
		t.Fatalf("expected plan %s, got %s", pro.ID, got.PlanID)
	}
	if got.PaymentState != customerdomain.PaymentStateOK {
		t.Fatalf("expected payment state ok, got %s", got.PaymentState)
	}
	if got.ExternalSubscriptionID == nil || *got.ExternalSubscriptionID != "sub_1" {
		t.Fatalf("expected subscription sub_1, got %v", got.ExternalSubscriptionID)
	}
	if got.CurrentPeriodEnd == nil {
		t.Fatal("expected period end to be set")
	}
}

func TestIngestDuplicateDelivery(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	seedPayingSetup(t, s)

	created := s.clk.Now().Unix()
	periodEnd := s.clk.Now().Add(30 * 24 * time.Hour).Unix()
	payload := subscriptionEvent("evt_dup", "active", "price_pro", created, periodEnd)

	first, err := s.events.Ingest(ctx, payload)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if !first.Accepted {
		t.Fatal("expected first delivery accepted")
	}

	second, err := s.events.Ingest(ctx, payload)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if second.Accepted {
		t.Fatal("expected duplicate to be rejected")
	}
	if second.Record.ID != first.Record.ID {
		t.Fatalf("expected the original record back, got %s", second.Record.ID)
	}

	assertCount(t, s.db, `SELECT COUNT(1) FROM processor_events`, 1)
}

func TestIngestOutOfOrderIsDiscarded(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	seedPayingSetup(t, s)

	base := s.clk.Now()
	periodEnd := base.Add(30 * 24 * time.Hour).Unix()
	if _, err := s.events.Ingest(ctx, subscriptionEvent("evt_a", "active", "price_pro", base.Unix(), periodEnd)); err != nil {
		t.Fatalf("activate: %v", err)
	}

	// The later failure arrives first.
	t2 := base.Add(2 * time.Hour).Unix()
	res, err := s.events.Ingest(ctx, invoiceEvent("evt_t2", "invoice.payment_failed", t2, 0))
	if err != nil {
		t.Fatalf("ingest t2: %v", err)
	}
	if res.Record.Status != billingeventdomain.EventStatusProcessed {
		t.Fatalf("expected t2 processed, got %s", res.Record.Status)
	}

	// The earlier payment arrives second and must not clear the failure.
	t1 := base.Add(1 * time.Hour).Unix()
	res, err = s.events.Ingest(ctx, invoiceEvent("evt_t1", "invoice.paid", t1, 0))
	if err != nil {
		t.Fatalf("ingest t1: %v", err)
	}
	if res.Record.Status != billingeventdomain.EventStatusIgnored {
		t.Fatalf("expected t1 ignored as stale, got %s", res.Record.Status)
	}

	got, err := s.customers.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if got.PaymentState != customerdomain.PaymentStatePastDue {
		t.Fatalf("expected past_due to survive, got %s", got.PaymentState)
	}
}

func TestIngestUnknownPriceFails(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	seedPayingSetup(t, s)

	created := s.clk.Now().Unix()
	periodEnd := s.clk.Now().Add(30 * 24 * time.Hour).Unix()
	_, err := s.events.Ingest(ctx, subscriptionEvent("evt_badprice", "active", "price_nobody", created, periodEnd))
	if !errors.Is(err, billingeventdomain.ErrUnknownPrice) {
		t.Fatalf("expected ErrUnknownPrice, got %v", err)
	}

	assertCount(t, s.db, `SELECT COUNT(1) FROM processor_events WHERE status = 'failed'`, 1)

	got, getErr := s.customers.Get(ctx, 1)
	if getErr != nil {
		t.Fatalf("get customer: %v", getErr)
	}
	if got.PaymentState != customerdomain.PaymentStateFree {
		t.Fatalf("customer state should be untouched, got %s", got.PaymentState)
	}
}

func TestIngestSubscriptionDeletedFallsBack(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	seedPayingSetup(t, s)

	base := s.clk.Now()
	periodEnd := base.Add(30 * 24 * time.Hour).Unix()
	if _, err := s.events.Ingest(ctx, subscriptionEvent("evt_up", "active", "price_pro", base.Unix(), periodEnd)); err != nil {
		t.Fatalf("activate: %v", err)
	}

	deleted := []byte(fmt.Sprintf(
		`{"id":"evt_del","type":"customer.subscription.deleted","created":%d,"data":{"object":{"id":"sub_1","customer":"cus_1","status":"canceled","current_period_end":0,"items":{"data":[]}}}}`,
		base.Add(time.Hour).Unix(),
	))
	res, err := s.events.Ingest(ctx, deleted)
	if err != nil {
		t.Fatalf("ingest deleted: %v", err)
	}
	if res.Record.Status != billingeventdomain.EventStatusProcessed {
		t.Fatalf("expected processed, got %s", res.Record.Status)
	}

	got, err := s.customers.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	freeDefault, err := s.plans.EnsureFreeDefault(ctx)
	if err != nil {
		t.Fatalf("ensure free default: %v", err)
	}
	if got.PlanID != freeDefault.ID {
		t.Fatalf("expected free default plan, got %s", got.PlanID)
	}
	if got.PaymentState != customerdomain.PaymentStateFree {
		t.Fatalf("expected payment state free, got %s", got.PaymentState)
	}
	if got.ExternalSubscriptionID != nil {
		t.Fatalf("expected subscription cleared, got %v", *got.ExternalSubscriptionID)
	}
	if got.CurrentPeriodEnd != nil {
		t.Fatal("expected period end cleared")
	}
}

func TestIngestSubscriptionDeletedUnknownCustomer(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	deleted := []byte(fmt.Sprintf(
		`{"id":"evt_ghost","type":"customer.subscription.deleted","created":%d,"data":{"object":{"id":"sub_ghost","customer":"cus_nobody","status":"canceled","current_period_end":0,"items":{"data":[]}}}}`,
		s.clk.Now().Unix(),
	))
	res, err := s.events.Ingest(ctx, deleted)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Record.Status != billingeventdomain.EventStatusIgnored {
		t.Fatalf("expected ignored, got %s", res.Record.Status)
	}
}

func TestIngestPaymentFailureThenRecovery(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	seedPayingSetup(t, s)

	base := s.clk.Now()
	periodEnd := base.Add(30 * 24 * time.Hour).Unix()
	if _, err := s.events.Ingest(ctx, subscriptionEvent("evt_up", "active", "price_pro", base.Unix(), periodEnd)); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if _, err := s.events.Ingest(ctx, invoiceEvent("evt_fail", "invoice.payment_failed", base.Add(time.Hour).Unix(), 0)); err != nil {
		t.Fatalf("ingest failure: %v", err)
	}
	got, err := s.customers.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if got.PaymentState != customerdomain.PaymentStatePastDue {
		t.Fatalf("expected past_due, got %s", got.PaymentState)
	}

	newPeriodEnd := base.Add(60 * 24 * time.Hour).Unix()
	res, err := s.events.Ingest(ctx, invoiceEvent("evt_recover", "invoice.paid", base.Add(2*time.Hour).Unix(), newPeriodEnd))
	if err != nil {
		t.Fatalf("ingest recovery: %v", err)
	}
	if res.Record.Status != billingeventdomain.EventStatusProcessed {
		t.Fatalf("expected processed, got %s", res.Record.Status)
	}

	got, err = s.customers.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if got.PaymentState != customerdomain.PaymentStateOK {
		t.Fatalf("expected ok after recovery, got %s", got.PaymentState)
	}
	if got.CurrentPeriodEnd == nil || got.CurrentPeriodEnd.Unix() != newPeriodEnd {
		t.Fatalf("expected refreshed period end %d, got %v", newPeriodEnd, got.CurrentPeriodEnd)
	}
}

func TestIngestInvoicePaidNoopWhenNothingToDo(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	seedPayingSetup(t, s)

	res, err := s.events.Ingest(ctx, invoiceEvent("evt_noop", "invoice.paid", s.clk.Now().Unix(), 0))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Record.Status != billingeventdomain.EventStatusProcessed {
		t.Fatalf("expected processed, got %s", res.Record.Status)
	}

	got, err := s.customers.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if got.PaymentState != customerdomain.PaymentStateFree {
		t.Fatalf("expected payment state untouched, got %s", got.PaymentState)
	}
	if got.LastEventAppliedAt != nil {
		t.Fatal("expected no state write for the bookkeeping event")
	}
}

func TestIngestUnrecognizedTypeIgnored(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	payload := []byte(fmt.Sprintf(
		`{"id":"evt_other","type":"charge.refunded","created":%d,"data":{"object":{}}}`,
		s.clk.Now().Unix(),
	))
	res, err := s.events.Ingest(ctx, payload)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Record.Status != billingeventdomain.EventStatusIgnored {
		t.Fatalf("expected ignored, got %s", res.Record.Status)
	}
}

func TestIngestInvalidPayload(t *testing.T) {
	s := newStack(t)

	if _, err := s.events.Ingest(context.Background(), []byte(`{"type":"x"}`)); !errors.Is(err, billingeventdomain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	if _, err := s.events.Ingest(context.Background(), []byte(`not json`)); !errors.Is(err, billingeventdomain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestPaymentMethodUpdatedTriggersSingleRetry(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	seedPayingSetup(t, s)

	base := s.clk.Now()
	periodEnd := base.Add(30 * 24 * time.Hour).Unix()
	if _, err := s.events.Ingest(ctx, subscriptionEvent("evt_up", "active", "price_pro", base.Unix(), periodEnd)); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := s.events.Ingest(ctx, invoiceEvent("evt_fail", "invoice.payment_failed", base.Add(time.Hour).Unix(), 0)); err != nil {
		t.Fatalf("ingest failure: %v", err)
	}

	pmEvent := func(id string) []byte {
		return []byte(fmt.Sprintf(
			`{"id":"%s","type":"payment_method.automatically_updated","created":%d,"data":{"object":{"customer":"cus_1"}}}`,
			id, base.Add(2*time.Hour).Unix(),
		))
	}

	res, err := s.events.Ingest(ctx, pmEvent("evt_pm"))
	if err != nil {
		t.Fatalf("ingest payment method update: %v", err)
	}
	if res.Record.Status != billingeventdomain.EventStatusProcessed {
		t.Fatalf("expected processed, got %s", res.Record.Status)
	}
	if len(s.provider.retriedInvoices) != 1 || s.provider.retriedInvoices[0] != "cus_1" {
		t.Fatalf("expected one retry for cus_1, got %v", s.provider.retriedInvoices)
	}

	// Redelivery of the same event must not retry again.
	if _, err := s.events.Ingest(ctx, pmEvent("evt_pm")); err != nil {
		t.Fatalf("redeliver: %v", err)
	}
	if len(s.provider.retriedInvoices) != 1 {
		t.Fatalf("expected exactly one retry, got %d", len(s.provider.retriedInvoices))
	}
}

func TestPaymentMethodUpdatedSkipsHealthyCustomer(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	seedPayingSetup(t, s)

	payload := []byte(fmt.Sprintf(
		`{"id":"evt_pm_ok","type":"payment_method.automatically_updated","created":%d,"data":{"object":{"customer":"cus_1"}}}`,
		s.clk.Now().Unix(),
	))
	if _, err := s.events.Ingest(ctx, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(s.provider.retriedInvoices) != 0 {
		t.Fatalf("expected no retries for a healthy customer, got %v", s.provider.retriedInvoices)
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE limits (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			default_value BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_limits_name ON limits(name)`,
		`CREATE TABLE plans (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			price_id TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_plans_name ON plans(name)`,
		`CREATE UNIQUE INDEX ux_plans_single_free_default ON plans(kind) WHERE kind = 'free_default'`,
		`CREATE UNIQUE INDEX ux_plans_price_id ON plans(price_id) WHERE price_id IS NOT NULL`,
		`CREATE TABLE plan_limits (
			id BIGINT PRIMARY KEY,
			plan_id BIGINT NOT NULL,
			limit_id BIGINT NOT NULL,
			value BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (plan_id, limit_id)
		)`,
		`CREATE TABLE customers (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			plan_id BIGINT NOT NULL,
			external_customer_id TEXT,
			external_subscription_id TEXT,
			current_period_end TIMESTAMP,
			payment_state TEXT NOT NULL DEFAULT 'free',
			last_event_applied_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_customers_user_id ON customers(user_id)`,
		`CREATE UNIQUE INDEX ux_customers_external_customer_id ON customers(external_customer_id) WHERE external_customer_id IS NOT NULL`,
		`CREATE TABLE processor_events (
			id BIGINT PRIMARY KEY,
			external_event_id TEXT NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			customer_ref TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			note TEXT NOT NULL DEFAULT '',
			received_at TIMESTAMP NOT NULL,
			processed_at TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX ux_processor_events_external_event_id ON processor_events(external_event_id)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func assertCount(t *testing.T, db *gorm.DB, query string, expected int64) {
	t.Helper()

	var count int64
	if err := db.Raw(query).Scan(&count).Error; err != nil {
		t.Fatalf("query count: %v", err)
	}
	if count != expected {
		t.Fatalf("expected %d, got %d", expected, count)
	}
}
