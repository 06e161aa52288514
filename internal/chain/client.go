// Package chain reads account state and get-method results from a TON v4
// HTTP endpoint.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xssnick/tonutils-go/address"

	"github.com/yourorg/vault-metrics/internal/fault"
	"github.com/yourorg/vault-metrics/internal/retry"
)

const chainSource = "ton"

// Account state types reported by the v4 API
const (
	StateActive = "active"
	StateUninit = "uninit"
	StateFrozen = "frozen"
)

// Account is the lite view of an account.
type Account struct {
	Balance *big.Int
	State   string
}

// Active reports whether the account has deployed code.
func (a Account) Active() bool { return a.State == StateActive }

// Client implements a client for the TON v4 HTTP API. Every read is wrapped
// in the configured retry policy.
type Client struct {
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
}

// NewClient creates a new chain client
func NewClient(baseURL string, httpClient *http.Client, policy retry.Policy) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		policy:     policy,
	}
}

// LatestSeqno returns the sequence number of the last masterchain block.
func (c *Client) LatestSeqno(ctx context.Context) (uint32, error) {
	return retry.Do(ctx, c.policy, func(ctx context.Context) (uint32, error) {
		var response struct {
			Last struct {
				Seqno uint32 `json:"seqno"`
			} `json:"last"`
		}
		if err := c.get(ctx, "/block/latest", &response); err != nil {
			return 0, err
		}
		return response.Last.Seqno, nil
	})
}

// Account returns the balance and state of addr at the latest block.
func (c *Client) Account(ctx context.Context, addr *address.Address) (Account, error) {
	seqno, err := c.LatestSeqno(ctx)
	if err != nil {
		return Account{}, err
	}

	return retry.Do(ctx, c.policy, func(ctx context.Context) (Account, error) {
		var response struct {
			Account struct {
				State struct {
					Type string `json:"type"`
				} `json:"state"`
				Balance struct {
					Coins string `json:"coins"`
				} `json:"balance"`
			} `json:"account"`
		}
		path := fmt.Sprintf("/block/%d/%s/lite", seqno, Friendly(addr))
		if err := c.get(ctx, path, &response); err != nil {
			return Account{}, err
		}

		balance, ok := new(big.Int).SetString(response.Account.Balance.Coins, 10)
		if !ok {
			return Account{}, fmt.Errorf("%w: balance %q of %s", fault.ErrInvalidPayload, response.Account.Balance.Coins, Friendly(addr))
		}
		return Account{Balance: balance, State: response.Account.State.Type}, nil
	})
}

// RunGetMethod executes method on addr at the latest block.
func (c *Client) RunGetMethod(ctx context.Context, addr *address.Address, method string, args ...Arg) (Stack, error) {
	path := ""
	if len(args) > 0 {
		encoded, err := encodeArgs(args)
		if err != nil {
			return nil, err
		}
		path = "/" + encoded
	}

	seqno, err := c.LatestSeqno(ctx)
	if err != nil {
		return nil, err
	}

	return retry.Do(ctx, c.policy, func(ctx context.Context) (Stack, error) {
		var response struct {
			ExitCode int   `json:"exitCode"`
			Result   Stack `json:"result"`
		}
		full := fmt.Sprintf("/block/%d/%s/run/%s%s", seqno, Friendly(addr), method, path)
		if err := c.get(ctx, full, &response); err != nil {
			return nil, err
		}
		if response.ExitCode != 0 && response.ExitCode != 1 {
			return nil, fault.Upstream(chainSource, fmt.Errorf("%s on %s exited with code %d", method, Friendly(addr), response.ExitCode))
		}
		return response.Result, nil
	})
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	logrus.Debugf("Fetching from TON v4 API: %s", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fault.Upstream(chainSource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fault.Upstream(chainSource, fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fault.Upstream(chainSource, fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}
