package fetch

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/vault-metrics/internal/fault"
	"github.com/yourorg/vault-metrics/internal/model"
)

func testHTTPClient() *http.Client {
	return NewRetryClient(0, 5*time.Second)
}

func newDedustServer(t *testing.T, respond func(req graphQLRequest) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(respond(req)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDedustClient_Pool(t *testing.T) {
	srv := newDedustServer(t, func(req graphQLRequest) string {
		assert.Equal(t, "GetPool", req.OperationName)
		vars := req.Variables.(map[string]interface{})
		assert.Equal(t, "EQpool", vars["address"])
		return `{"data":{"pool":{"totalSupply":"2000000000","assets":["native","jetton:EQusdt"],"reserves":["4000000000","10000000"]}}}`
	})

	pool, err := NewDedustClient(srv.URL, testHTTPClient()).Pool(context.Background(), "EQpool")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2_000_000_000), pool.TotalSupply)
	assert.Equal(t, model.AssetKey{Type: "jetton", Address: "EQusdt"}, pool.Assets[1])
}

func TestDedustClient_PoolMissing(t *testing.T) {
	srv := newDedustServer(t, func(req graphQLRequest) string {
		return `{"data":{"pool":null}}`
	})

	_, err := NewDedustClient(srv.URL, testHTTPClient()).Pool(context.Background(), "EQpool")
	assert.ErrorIs(t, err, fault.ErrInvalidPayload)
}

func TestDedustClient_AssetsAndBoosts(t *testing.T) {
	srv := newDedustServer(t, func(req graphQLRequest) string {
		switch req.OperationName {
		case "GetAllAssets":
			return `{"data":{"assets":[{"type":"native","address":"","price":"5.1","decimals":9},{"type":"jetton","address":"EQx","price":"oops","decimals":9}]}}`
		case "GetAllBoosts":
			return `{"data":{"boosts":[{"liquidityPool":"EQpool","asset":"native","budget":"10","rewardPerDay":"5","startAt":"2024-01-01T00:00:00Z","endAt":"2024-02-01T00:00:00Z"}]}}`
		}
		t.Errorf("unexpected operation %s", req.OperationName)
		return ""
	})
	client := NewDedustClient(srv.URL, testHTTPClient())

	assets, err := client.Assets(context.Background())
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.InDelta(t, 5.1, assets[0].PriceUSD, 1e-12)

	boosts, err := client.Boosts(context.Background())
	require.NoError(t, err)
	require.Len(t, boosts, 1)
	assert.Equal(t, big.NewInt(5), boosts[0].RewardPerDay)
}

func TestDedustClient_GraphQLErrors(t *testing.T) {
	srv := newDedustServer(t, func(req graphQLRequest) string {
		return `{"data":null,"errors":[{"message":"rate limited"}]}`
	})

	_, err := NewDedustClient(srv.URL, testHTTPClient()).Assets(context.Background())
	require.Error(t, err)
	assert.True(t, fault.IsUpstream(err))
	assert.Contains(t, err.Error(), "rate limited")
}

func TestDedustClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewDedustClient(srv.URL, testHTTPClient()).Boosts(context.Background())
	assert.True(t, fault.IsUpstream(err))
}

func TestTonAPIClient_JettonInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/jettons/EQlp", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"total_supply":"123456789","metadata":{"address":"0:abcd","name":"LP TON/USDT","symbol":"LP","decimals":"9","image":"https://img"}}`))
	}))
	defer srv.Close()

	info, err := NewTonAPIClient(srv.URL, "secret", 0, testHTTPClient()).JettonInfo(context.Background(), "EQlp")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(123456789), info.TotalSupply)
	assert.Equal(t, model.TokenMetadata{
		Address:  "0:abcd",
		Name:     "LP TON/USDT",
		Symbol:   "LP",
		Decimals: "9",
		Image:    "https://img",
	}, info.Metadata)
}

func TestTonAPIClient_TonPrice(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    float64
		wantErr error
	}{
		{name: "price present", body: `{"rates":{"TON":{"prices":{"USD":5.42}}}}`, want: 5.42},
		{name: "price missing", body: `{"rates":{"TON":{"prices":{}}}}`, wantErr: fault.ErrPriceNotFound},
		{name: "token missing", body: `{"rates":{}}`, wantErr: fault.ErrPriceNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v2/rates", r.URL.Path)
				assert.Equal(t, "TON", r.URL.Query().Get("tokens"))
				assert.Equal(t, "USD", r.URL.Query().Get("currencies"))
				assert.Empty(t, r.Header.Get("Authorization"))
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			price, err := NewTonAPIClient(srv.URL+"/", "", 100, testHTTPClient()).TonPrice(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, price, 1e-12)
		})
	}
}
