package client

import (
	"context"
	"net/url"
	"strings"

	"github.com/turtacn/KeyQTO/pkg/errors"
)

// PricesClient calls the price table endpoints.
type PricesClient struct {
	client *Client
}

// List returns the whole loaded price table.
func (p *PricesClient) List(ctx context.Context) (*PriceTable, error) {
	var out PriceTable
	if err := p.client.get(ctx, "/api/v1/prices", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Match resolves label against the price table.  A label with no price
// yields an *APIError for which IsNotFound is true.
func (p *PricesClient) Match(ctx context.Context, label string) (*PriceMatch, error) {
	if strings.TrimSpace(label) == "" {
		return nil, errors.InvalidParam("label is required")
	}
	var out PriceMatch
	if err := p.client.get(ctx, "/api/v1/prices/match?label="+url.QueryEscape(label), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

//Personal.AI order the ending
