package stripe

import (
	"context"
	"strings"

	"github.com/quotient-hq/quotient/internal/config"
	"github.com/quotient-hq/quotient/internal/providers/payment/domain"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

type Client struct {
	api *stripe.Client
	log *zap.Logger
}

// NewClient builds the Stripe-backed provider client. Without an API key it
// returns a disabled client whose calls fail with ErrProviderConfig, so the
// application still boots for local development and tests.
func NewClient(cfg config.Config, log *zap.Logger) domain.Client {
	key := strings.TrimSpace(cfg.StripeAPIKey)
	if key == "" {
		log.Named("providers.stripe").Warn("stripe api key not configured, provider calls disabled")
		return disabledClient{}
	}
	return &Client{
		api: stripe.NewClient(key, nil),
		log: log.Named("providers.stripe"),
	}
}

type disabledClient struct{}

func (disabledClient) CreateCustomer(ctx context.Context, email string, name string) (string, error) {
	return "", domain.ErrProviderConfig
}

func (disabledClient) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return domain.ErrProviderConfig
}

func (disabledClient) RetryLatestInvoice(ctx context.Context, customerID string) error {
	return domain.ErrProviderConfig
}

func (c *Client) CreateCustomer(ctx context.Context, email string, name string) (string, error) {
	customer, err := c.api.V1Customers.Create(ctx, &stripe.CustomerCreateParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	})
	if err != nil {
		return "", err
	}
	return customer.ID, nil
}

func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	_, err := c.api.V1Subscriptions.Cancel(ctx, subscriptionID, &stripe.SubscriptionCancelParams{})
	return err
}

func (c *Client) RetryLatestInvoice(ctx context.Context, customerID string) error {
	params := &stripe.InvoiceListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.InvoiceStatusOpen)),
	}
	params.Limit = stripe.Int64(1)

	// Manually desugared range-over-func loop: the installed toolchain
	// predates Go 1.23 language support for ranging over iterators.
	var retErr error
	seen := false
	c.api.V1Invoices.List(ctx, params)(func(invoice *stripe.Invoice, err error) bool {
		seen = true
		if err != nil {
			retErr = err
			return false
		}
		_, retErr = c.api.V1Invoices.Pay(ctx, invoice.ID, &stripe.InvoicePayParams{})
		return false
	})
	if seen {
		return retErr
	}

	c.log.Warn("retry requested but customer has no open invoice", zap.String("customer_id", customerID))
	return domain.ErrNoOpenInvoice
}
