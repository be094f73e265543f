// Package productclient talks to the products service over HTTP.
package productclient

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/sai-karthik-k/ecommerce-microservices/internal/orders"
)

const DefaultTimeout = 5 * time.Second

// Client implements orders.ProductGateway
type Client struct {
	client  *resty.Client
	timeout time.Duration
}

// New creates a Client for the products service at baseURL. Every call is bounded by
// timeout; a non-positive timeout means DefaultTimeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	client.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		otel.GetTextMapPropagator().Inject(r.Context(), propagation.HeaderCarrier(r.Header))
		return nil
	})

	return &Client{client: client, timeout: timeout}
}

// FetchProduct calls GET /products/{id}. A 2xx body is always decoded as JSON, so a
// body that is not a product is a remote fault.
func (c *Client) FetchProduct(ctx context.Context, productID int64) (*orders.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var product orders.Product
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(productID, 10)).
		ForceContentType("application/json").
		SetResult(&product).
		Get("/products/{id}")
	if err := check("GET", productID, resp, err); err != nil {
		return nil, err
	}
	return &product, nil
}

// ReplaceProduct calls PUT /products/{id} with the full product
func (c *Client) ReplaceProduct(ctx context.Context, productID int64, product *orders.Product) (*orders.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var replaced orders.Product
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(productID, 10)).
		SetHeader("Content-Type", "application/json").
		SetBody(product).
		ForceContentType("application/json").
		SetResult(&replaced).
		Put("/products/{id}")
	if err := check("PUT", productID, resp, err); err != nil {
		return nil, err
	}
	return &replaced, nil
}

func check(method string, productID int64, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s /products/%d: %v", orders.ErrRemoteUnavailable, method, productID, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%w: %s /products/%d: status %d: %s",
			orders.ErrRemoteUnavailable, method, productID, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}
