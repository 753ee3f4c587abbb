// Package bankfeed manages external bank connections and their disconnect
// lifecycle.
package bankfeed

import (
	"context"
	"fmt"

	"github.com/plaid/plaid-go/v20/plaid"
)

// Connector revokes provider-side access for a bank connection.
type Connector interface {
	RemoveItem(ctx context.Context, accessToken string) error
}

// PlaidConnector talks to the Plaid API.
type PlaidConnector struct {
	client *plaid.APIClient
}

// NewPlaidConnector builds a connector for the given Plaid credentials.
// env selects the Plaid environment: sandbox, development or production.
func NewPlaidConnector(clientID, secret, env string) *PlaidConnector {
	cfg := plaid.NewConfiguration()
	cfg.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	cfg.AddDefaultHeader("PLAID-SECRET", secret)
	cfg.UseEnvironment(plaidEnvironment(env))
	return &PlaidConnector{client: plaid.NewAPIClient(cfg)}
}

// RemoveItem invalidates the access token at Plaid so the provider stops
// syncing data for the connection.
func (c *PlaidConnector) RemoveItem(ctx context.Context, accessToken string) error {
	req := plaid.NewItemRemoveRequest(accessToken)
	_, _, err := c.client.PlaidApi.ItemRemove(ctx).ItemRemoveRequest(*req).Execute()
	if err != nil {
		if plaidErr, ok := err.(*plaid.GenericOpenAPIError); ok {
			return fmt.Errorf("plaid item remove: %s: %s", plaidErr.Error(), string(plaidErr.Body()))
		}
		return fmt.Errorf("plaid item remove: %w", err)
	}
	return nil
}

func plaidEnvironment(env string) plaid.Environment {
	switch env {
	case "production":
		return plaid.Production
	case "development":
		return plaid.Development
	default:
		return plaid.Sandbox
	}
}

var _ Connector = (*PlaidConnector)(nil)
