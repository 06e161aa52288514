package fetch

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/vault-metrics/internal/fault"
	"github.com/yourorg/vault-metrics/internal/model"
)

const tonAPISource = "tonapi"

// TonAPIClient implements a client for the TonAPI jetton and rates endpoints
type TonAPIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewTonAPIClient creates a new TonAPI client. rps limits outgoing requests;
// a non-positive value disables the limit.
func NewTonAPIClient(baseURL, apiKey string, rps float64, httpClient *http.Client) *TonAPIClient {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &TonAPIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		limiter:    limiter,
	}
}

type jettonInfoResponse struct {
	TotalSupply string `json:"total_supply"`
	Metadata    struct {
		Address  string `json:"address"`
		Name     string `json:"name"`
		Symbol   string `json:"symbol"`
		Decimals string `json:"decimals"`
		Image    string `json:"image"`
	} `json:"metadata"`
}

// JettonInfo retrieves the metadata and total supply of the jetton master at address.
func (c *TonAPIClient) JettonInfo(ctx context.Context, address string) (model.JettonInfo, error) {
	var response jettonInfoResponse
	if err := c.get(ctx, "/v2/jettons/"+url.PathEscape(address), nil, &response); err != nil {
		return model.JettonInfo{}, fmt.Errorf("jetton %s: %w", address, err)
	}

	supply, ok := new(big.Int).SetString(response.TotalSupply, 10)
	if !ok {
		return model.JettonInfo{}, fmt.Errorf("%w: jetton %s total supply %q", fault.ErrInvalidPayload, address, response.TotalSupply)
	}

	decimals := response.Metadata.Decimals
	if decimals == "" {
		decimals = "9"
	}
	return model.JettonInfo{
		Metadata: model.TokenMetadata{
			Address:  response.Metadata.Address,
			Name:     response.Metadata.Name,
			Symbol:   response.Metadata.Symbol,
			Decimals: decimals,
			Image:    response.Metadata.Image,
		},
		TotalSupply: supply,
	}, nil
}

// TonPrice retrieves the current TON/USD rate.
func (c *TonAPIClient) TonPrice(ctx context.Context) (float64, error) {
	var response struct {
		Rates map[string]struct {
			Prices map[string]float64 `json:"prices"`
		} `json:"rates"`
	}
	query := url.Values{"tokens": {"TON"}, "currencies": {"USD"}}
	if err := c.get(ctx, "/v2/rates", query, &response); err != nil {
		return 0, fmt.Errorf("rates: %w", err)
	}

	price := response.Rates["TON"].Prices["USD"]
	if price <= 0 {
		return 0, fault.ErrPriceNotFound
	}
	return price, nil
}

func (c *TonAPIClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := newJSONRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	logrus.Debugf("Fetching from TonAPI: %s", path)
	return doJSON(c.httpClient, req, tonAPISource, out)
}
