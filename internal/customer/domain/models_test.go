package domain_test

import (
	"testing"
	"time"

	customerdomain "github.com/quotient-hq/quotient/internal/customer/domain"
	plandomain "github.com/quotient-hq/quotient/internal/plan/domain"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func TestFallsBackToFreeDefault(t *testing.T) {
	future := ptr(now.Add(time.Hour))
	past := ptr(now.Add(-time.Hour))

	cases := []struct {
		name      string
		kind      plandomain.PlanKind
		periodEnd *time.Time
		want      bool
	}{
		{"free default never falls back", plandomain.PlanKindFreeDefault, past, false},
		{"paid inside period", plandomain.PlanKindPaid, future, false},
		{"paid expired", plandomain.PlanKindPaid, past, true},
		{"paid incomplete signup", plandomain.PlanKindPaid, nil, true},
		{"free private indefinite", plandomain.PlanKindFreePrivate, nil, false},
		{"free private inside period", plandomain.PlanKindFreePrivate, future, false},
		{"free private expired", plandomain.PlanKindFreePrivate, past, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := customerdomain.FallsBackToFreeDefault(tc.kind, tc.periodEnd, now)
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestEffectiveState(t *testing.T) {
	future := ptr(now.Add(time.Hour))
	past := ptr(now.Add(-time.Hour))

	cases := []struct {
		name         string
		kind         plandomain.PlanKind
		paymentState customerdomain.PaymentState
		periodEnd    *time.Time
		want         string
	}{
		{"new free customer", plandomain.PlanKindFreeDefault, customerdomain.PaymentStateFree, nil, "free_default.new"},
		{"expired paid plan", plandomain.PlanKindPaid, customerdomain.PaymentStateOK, past, "free_default.canceled"},
		{"expired free private plan", plandomain.PlanKindFreePrivate, customerdomain.PaymentStateFree, past, "free_default.canceled"},
		{"free private no end", plandomain.PlanKindFreePrivate, customerdomain.PaymentStateFree, nil, "free_private.indefinite"},
		{"free private with end", plandomain.PlanKindFreePrivate, customerdomain.PaymentStateFree, future, "free_private.will_expire"},
		{"paid signup never completed", plandomain.PlanKindPaid, customerdomain.PaymentStateFree, nil, "free_default.incomplete"},
		{"paying customer", plandomain.PlanKindPaid, customerdomain.PaymentStateOK, future, "paid.ok"},
		{"past due customer", plandomain.PlanKindPaid, customerdomain.PaymentStatePastDue, future, "paid.past_due"},
		{"canceled but inside period", plandomain.PlanKindPaid, customerdomain.PaymentStateCanceled, future, "paid.will_cancel"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := customerdomain.EffectiveState(tc.kind, tc.paymentState, tc.periodEnd, now)
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
