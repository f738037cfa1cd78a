package service

import (
	"errors"
	"testing"
	"time"

	"github.com/quotient-hq/quotient/internal/billingevent/domain"
)

var fallback = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestParseSubscriptionEvent(t *testing.T) {
	payload := []byte(`{
		"id": "evt_1",
		"type": "customer.subscription.updated",
		"created": 1714500000,
		"data": {"object": {
			"id": "sub_1",
			"customer": "cus_1",
			"status": "active",
			"current_period_end": 1717100000,
			"items": {"data": [{"price": {"id": "price_pro"}}]}
		}}
	}`)

	parsed, err := parseEvent(payload, fallback)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.ExternalID != "evt_1" || parsed.Type != domain.EventTypeSubscriptionUpdated {
		t.Fatalf("unexpected envelope: %+v", parsed)
	}
	if parsed.CustomerRef != "cus_1" || parsed.SubscriptionID != "sub_1" {
		t.Fatalf("unexpected references: %+v", parsed)
	}
	if parsed.SubscriptionStatus != "active" || parsed.PriceID != "price_pro" {
		t.Fatalf("unexpected subscription fields: %+v", parsed)
	}
	if parsed.OccurredAt.Unix() != 1714500000 {
		t.Fatalf("unexpected occurred_at: %v", parsed.OccurredAt)
	}
	if parsed.PeriodEnd == nil || parsed.PeriodEnd.Unix() != 1717100000 {
		t.Fatalf("unexpected period end: %v", parsed.PeriodEnd)
	}
}

func TestParseInvoiceEventWithoutLines(t *testing.T) {
	payload := []byte(`{
		"id": "evt_2",
		"type": "invoice.paid",
		"created": 0,
		"data": {"object": {
			"customer": "cus_1",
			"subscription": "sub_1",
			"billing_reason": "subscription_create",
			"lines": {"data": []}
		}}
	}`)

	parsed, err := parseEvent(payload, fallback)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.PeriodEnd != nil {
		t.Fatalf("expected nil period end, got %v", parsed.PeriodEnd)
	}
	if !parsed.OccurredAt.Equal(fallback) {
		t.Fatalf("expected fallback timestamp, got %v", parsed.OccurredAt)
	}
	if parsed.BillingReason != "subscription_create" {
		t.Fatalf("unexpected billing reason: %s", parsed.BillingReason)
	}
}

func TestParseRejectsMissingIdentity(t *testing.T) {
	cases := [][]byte{
		[]byte(`{"type":"invoice.paid"}`),
		[]byte(`{"id":"evt_3"}`),
		[]byte(`{"id":" ","type":"invoice.paid"}`),
		[]byte(`not json`),
	}
	for _, payload := range cases {
		if _, err := parseEvent(payload, fallback); !errors.Is(err, domain.ErrInvalidPayload) {
			t.Fatalf("expected ErrInvalidPayload for %s, got %v", payload, err)
		}
	}
}
