// Package ledger reads reward ledgers published to content-addressed storage.
//
// A ledger is a BOC whose root is a dictionary keyed by account address with
// the accumulated reward of each account as value.
package ledger

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/yourorg/vault-metrics/internal/cache"
	"github.com/yourorg/vault-metrics/internal/chain"
	"github.com/yourorg/vault-metrics/internal/fault"
	"github.com/yourorg/vault-metrics/internal/model"
)

const (
	ipfsScheme  = "ipfs://"
	ledgerTTL   = 5 * time.Minute
	addrKeyBits = 267
	maxBOCSize  = 64 << 20
	source      = "ipfs"
)

// Reader fetches and decodes ledgers, caching each URI for five minutes.
type Reader struct {
	gateway    string
	httpClient *http.Client
	ledgers    *cache.Cell[string, model.RewardLedger]
}

// NewReader creates a Reader resolving ipfs:// URIs through gateway.
func NewReader(gateway string, httpClient *http.Client, opts ...cache.Option) *Reader {
	r := &Reader{
		gateway:    gateway,
		httpClient: httpClient,
	}
	r.ledgers = cache.NewCell("ledger", ledgerTTL, r.fetch, opts...)
	return r
}

// Read returns the ledger published at uri. An empty uri means nothing was
// published yet and yields an empty ledger.
func (r *Reader) Read(ctx context.Context, uri string) (model.RewardLedger, error) {
	if uri == "" {
		return model.NewRewardLedger(nil), nil
	}
	return r.ledgers.Get(ctx, uri)
}

// Resolve maps a ledger URI to the URL it is downloaded from.
func (r *Reader) Resolve(uri string) string {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return uri
	}
	return r.gateway + strings.TrimPrefix(uri, ipfsScheme)
}

func (r *Reader) fetch(ctx context.Context, uri string) (model.RewardLedger, error) {
	target := r.Resolve(uri)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return model.RewardLedger{}, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return model.RewardLedger{}, fault.Upstream(source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.RewardLedger{}, fault.Upstream(source, fmt.Errorf("status %d for %s", resp.StatusCode, target))
	}

	boc, err := io.ReadAll(io.LimitReader(resp.Body, maxBOCSize))
	if err != nil {
		return model.RewardLedger{}, fault.Upstream(source, err)
	}

	ledger, err := Decode(boc)
	if err != nil {
		return model.RewardLedger{}, fmt.Errorf("ledger %s: %w", uri, err)
	}
	logrus.WithFields(logrus.Fields{
		"uri":      uri,
		"accounts": ledger.Len(),
	}).Debug("Reward ledger loaded")
	return ledger, nil
}

// Decode parses a ledger BOC. Any structural problem is reported as
// fault.ErrLedgerDecode.
func Decode(boc []byte) (model.RewardLedger, error) {
	root, err := cell.FromBOC(boc)
	if err != nil {
		return model.RewardLedger{}, fmt.Errorf("%w: %v", fault.ErrLedgerDecode, err)
	}

	entries, err := root.AsDict(addrKeyBits).LoadAll()
	if err != nil {
		return model.RewardLedger{}, fmt.Errorf("%w: %v", fault.ErrLedgerDecode, err)
	}

	amounts := make(map[string]*big.Int, len(entries))
	for _, kv := range entries {
		addr, err := kv.Key.LoadAddr()
		if err != nil {
			return model.RewardLedger{}, fmt.Errorf("%w: key: %v", fault.ErrLedgerDecode, err)
		}
		amount, err := kv.Value.LoadBigCoins()
		if err != nil {
			return model.RewardLedger{}, fmt.Errorf("%w: value of %s: %v", fault.ErrLedgerDecode, chain.Raw(addr), err)
		}
		amounts[chain.Raw(addr)] = amount
	}
	return model.NewRewardLedger(amounts), nil
}
