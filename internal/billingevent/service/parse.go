package service

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/quotient-hq/quotient/internal/billingevent/domain"
)

// parsedEvent is the canonical shape extracted from a processor payload.
// Only the fields the reconciler acts on are pulled out; the full payload
// stays on the event record.
type parsedEvent struct {
	ExternalID         string
	Type               string
	OccurredAt         time.Time
	CustomerRef        string
	SubscriptionID     string
	SubscriptionStatus string
	PriceID            string
	PeriodEnd          *time.Time
	BillingReason      string
}

type processorEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type subscriptionObject struct {
	ID               string `json:"id"`
	Customer         string `json:"customer"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
	Items            struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type invoiceObject struct {
	Customer      string `json:"customer"`
	Subscription  string `json:"subscription"`
	BillingReason string `json:"billing_reason"`
	Lines         struct {
		Data []struct {
			Period struct {
				End int64 `json:"end"`
			} `json:"period"`
		} `json:"data"`
	} `json:"lines"`
}

type paymentMethodObject struct {
	Customer string `json:"customer"`
}

func parseEvent(payload []byte, fallbackNow time.Time) (*parsedEvent, error) {
	var envelope processorEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(envelope.ID) == "" || strings.TrimSpace(envelope.Type) == "" {
		return nil, domain.ErrInvalidPayload
	}

	parsed := &parsedEvent{
		ExternalID: strings.TrimSpace(envelope.ID),
		Type:       strings.TrimSpace(envelope.Type),
		OccurredAt: eventTimestamp(envelope.Created, fallbackNow),
	}

	switch parsed.Type {
	case domain.EventTypeSubscriptionUpdated, domain.EventTypeSubscriptionDeleted:
		var sub subscriptionObject
		if err := json.Unmarshal(envelope.Data.Object, &sub); err != nil {
			return nil, domain.ErrInvalidPayload
		}
		parsed.CustomerRef = strings.TrimSpace(sub.Customer)
		parsed.SubscriptionID = strings.TrimSpace(sub.ID)
		parsed.SubscriptionStatus = strings.TrimSpace(sub.Status)
		if sub.CurrentPeriodEnd > 0 {
			end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
			parsed.PeriodEnd = &end
		}
		if len(sub.Items.Data) > 0 {
			parsed.PriceID = strings.TrimSpace(sub.Items.Data[0].Price.ID)
		}

	case domain.EventTypeInvoicePaid, domain.EventTypeInvoicePaymentFailed:
		var inv invoiceObject
		if err := json.Unmarshal(envelope.Data.Object, &inv); err != nil {
			return nil, domain.ErrInvalidPayload
		}
		parsed.CustomerRef = strings.TrimSpace(inv.Customer)
		parsed.SubscriptionID = strings.TrimSpace(inv.Subscription)
		parsed.BillingReason = strings.TrimSpace(inv.BillingReason)
		if len(inv.Lines.Data) > 0 && inv.Lines.Data[0].Period.End > 0 {
			end := time.Unix(inv.Lines.Data[0].Period.End, 0).UTC()
			parsed.PeriodEnd = &end
		}

	case domain.EventTypePaymentMethodUpdated:
		var pm paymentMethodObject
		if err := json.Unmarshal(envelope.Data.Object, &pm); err != nil {
			return nil, domain.ErrInvalidPayload
		}
		parsed.CustomerRef = strings.TrimSpace(pm.Customer)
	}

	return parsed, nil
}

func eventTimestamp(created int64, fallback time.Time) time.Time {
	if created > 0 {
		return time.Unix(created, 0).UTC()
	}
	return fallback.UTC()
}
