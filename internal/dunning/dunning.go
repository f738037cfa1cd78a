// Package dunning reacts to "payment method updated" signals by asking the
// payment provider to retry the affected customer's latest open invoice.
package dunning

import (
	"context"
	"errors"

	customerdomain "github.com/quotient-hq/quotient/internal/customer/domain"
	providerdomain "github.com/quotient-hq/quotient/internal/providers/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Customers customerdomain.Repository
	Provider  providerdomain.Client
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	customers customerdomain.Repository
	provider  providerdomain.Client
}

func New(p Params) *Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("dunning.service"),
		customers: p.Customers,
		provider:  p.Provider,
	}
}

// OnPaymentMethodUpdated requests an invoice retry for a past_due customer.
// It never mutates customer state: the retry outcome arrives later as a
// fresh invoice.paid or invoice.payment_failed event through ingestion.
func (s *Service) OnPaymentMethodUpdated(ctx context.Context, customerRef string) error {
	if customerRef == "" {
		return nil
	}

	customer, err := s.customers.FindByExternalCustomerID(ctx, s.db, customerRef)
	if err != nil {
		return err
	}
	if customer == nil {
		s.log.Warn("payment method updated for unknown customer", zap.String("customer_ref", customerRef))
		return nil
	}
	if customer.PaymentState != customerdomain.PaymentStatePastDue {
		return nil
	}

	if err := s.provider.RetryLatestInvoice(ctx, customerRef); err != nil {
		if errors.Is(err, providerdomain.ErrNoOpenInvoice) {
			s.log.Warn("customer is past_due but has no open invoice", zap.String("customer_ref", customerRef))
			return nil
		}
		return err
	}

	s.log.Info("invoice retry requested", zap.String("customer_ref", customerRef))
	return nil
}
