package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Oracle answers whether a user has paid for a premium post. The decision is
// external and financial, so it is re-queried on every check and never cached
// here.
type Oracle interface {
	Entitled(ctx context.Context, userID, postID int) (bool, error)
}

// HTTPOracle queries a payment confirmation service over HTTP.
type HTTPOracle struct {
	baseURL string
	client  *http.Client
}

// NewHTTPOracle constructs an oracle client for the given base URL.
func NewHTTPOracle(baseURL string) (*HTTPOracle, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("entitlement base url is required")
	}
	return &HTTPOracle{
		baseURL: baseURL,
		client:  http.DefaultClient,
	}, nil
}

type entitlementResponse struct {
	Granted bool `json:"granted"`
}

// Entitled asks the payment service whether (userID, postID) is paid for.
// The caller bounds the request through ctx.
func (o *HTTPOracle) Entitled(ctx context.Context, userID, postID int) (bool, error) {
	query := url.Values{}
	query.Set("user_id", strconv.Itoa(userID))
	query.Set("post_id", strconv.Itoa(postID))

	endpoint := fmt.Sprintf("%s/entitlements?%s", o.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("entitlement service returned status %d", resp.StatusCode)
	}

	var decision entitlementResponse
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		return false, err
	}
	return decision.Granted, nil
}
