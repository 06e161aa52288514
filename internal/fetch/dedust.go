package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/vault-metrics/internal/fault"
	"github.com/yourorg/vault-metrics/internal/model"
	"github.com/yourorg/vault-metrics/internal/validation"
)

const dedustSource = "dedust"

const (
	queryGetPool      = `query GetPool($address: ID!) { pool(address: $address) { totalSupply assets reserves } }`
	queryGetAllAssets = `query GetAllAssets { assets { type address price decimals } }`
	queryGetAllBoosts = `query GetAllBoosts { boosts { liquidityPool asset budget rewardPerDay startAt endAt } }`
)

// DedustClient implements a client for the DeDust GraphQL API
type DedustClient struct {
	url        string
	httpClient *http.Client
}

// NewDedustClient creates a new DeDust API client
func NewDedustClient(url string, httpClient *http.Client) *DedustClient {
	return &DedustClient{url: url, httpClient: httpClient}
}

type graphQLRequest struct {
	OperationName string      `json:"operationName"`
	Query         string      `json:"query"`
	Variables     interface{} `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// Pool retrieves the reserves and total supply of the pool at address.
func (c *DedustClient) Pool(ctx context.Context, address string) (model.AssetPool, error) {
	var data struct {
		Pool *validation.PoolPayload `json:"pool"`
	}
	vars := map[string]string{"address": address}
	if err := c.query(ctx, "GetPool", queryGetPool, vars, &data); err != nil {
		return model.AssetPool{}, err
	}
	if data.Pool == nil {
		return model.AssetPool{}, fmt.Errorf("%w: pool %s not listed", fault.ErrInvalidPayload, address)
	}
	return validation.Pool(address, *data.Pool)
}

// Assets retrieves every listed asset with its USD price and decimals.
func (c *DedustClient) Assets(ctx context.Context) ([]model.AssetRef, error) {
	var data struct {
		Assets []validation.AssetPayload `json:"assets"`
	}
	if err := c.query(ctx, "GetAllAssets", queryGetAllAssets, struct{}{}, &data); err != nil {
		return nil, err
	}
	return validation.Assets(data.Assets), nil
}

// Boosts retrieves every reward boost program.
func (c *DedustClient) Boosts(ctx context.Context) ([]model.Boost, error) {
	var data struct {
		Boosts []validation.BoostPayload `json:"boosts"`
	}
	if err := c.query(ctx, "GetAllBoosts", queryGetAllBoosts, struct{}{}, &data); err != nil {
		return nil, err
	}
	return validation.Boosts(data.Boosts), nil
}

func (c *DedustClient) query(ctx context.Context, operation, query string, variables, out interface{}) error {
	body, err := json.Marshal(graphQLRequest{OperationName: operation, Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", operation, err)
	}

	req, err := newJSONRequest(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	logrus.WithField("operation", operation).Debug("Querying DeDust")

	var response struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := doJSON(c.httpClient, req, dedustSource, &response); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	if len(response.Errors) > 0 {
		messages := make([]string, 0, len(response.Errors))
		for _, e := range response.Errors {
			messages = append(messages, e.Message)
		}
		return fault.Upstream(dedustSource, fmt.Errorf("%s: %s", operation, strings.Join(messages, "; ")))
	}
	if len(response.Data) == 0 || string(response.Data) == "null" {
		return fmt.Errorf("%w: %s returned no data", fault.ErrInvalidPayload, operation)
	}
	if err := json.Unmarshal(response.Data, out); err != nil {
		return fmt.Errorf("%w: decode %s data: %v", fault.ErrInvalidPayload, operation, err)
	}
	return nil
}
