package validation

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/vault-metrics/internal/fault"
	"github.com/yourorg/vault-metrics/internal/model"
)

func TestPool(t *testing.T) {
	tests := []struct {
		name    string
		payload PoolPayload
		wantErr bool
	}{
		{
			name: "valid pool",
			payload: PoolPayload{
				TotalSupply: "2000000000",
				Assets:      []string{"native", "jetton:EQAbc"},
				Reserves:    []string{"4000000000", "10000000"},
			},
		},
		{
			name:    "single asset",
			payload: PoolPayload{TotalSupply: "1", Assets: []string{"native"}, Reserves: []string{"1"}},
			wantErr: true,
		},
		{
			name:    "bad supply",
			payload: PoolPayload{TotalSupply: "1e9", Assets: []string{"native", "native"}, Reserves: []string{"1", "1"}},
			wantErr: true,
		},
		{
			name:    "negative reserve",
			payload: PoolPayload{TotalSupply: "1", Assets: []string{"native", "native"}, Reserves: []string{"1", "-1"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := Pool("EQpool", tt.payload)
			if tt.wantErr {
				assert.ErrorIs(t, err, fault.ErrInvalidPayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "EQpool", pool.Address)
			assert.Equal(t, big.NewInt(2_000_000_000), pool.TotalSupply)
			assert.Equal(t, model.AssetKey{Type: "native"}, pool.Assets[0])
			assert.Equal(t, model.AssetKey{Type: "jetton", Address: "EQAbc"}, pool.Assets[1])
			assert.Equal(t, big.NewInt(10_000_000), pool.Reserves[1])
		})
	}
}

func TestAssets(t *testing.T) {
	payloads := []AssetPayload{
		{Type: "native", Price: "5.25", Decimals: 9},
		{Type: "jetton", Address: "EQA", Price: "not-a-price", Decimals: 9},
		{Type: "jetton", Address: "EQB", Price: "1", Decimals: -1},
		{Type: "jetton", Address: "EQC", Price: "0.99", Decimals: 6},
	}

	assets := Assets(payloads)
	require.Len(t, assets, 2)
	assert.Equal(t, "native", assets[0].Type)
	assert.InDelta(t, 5.25, assets[0].PriceUSD, 1e-12)
	assert.Equal(t, "EQC", assets[1].Address)
	assert.Equal(t, 6, assets[1].Decimals)
}

func TestBoosts(t *testing.T) {
	payloads := []BoostPayload{
		{
			LiquidityPool: "EQpool",
			Asset:         "native",
			Budget:        "1000000000000",
			RewardPerDay:  "100000000000",
			StartAt:       "2024-05-01T00:00:00.000Z",
			EndAt:         "2024-06-01T00:00:00.000Z",
		},
		{LiquidityPool: "EQpool", Asset: "native", RewardPerDay: "x", StartAt: "2024-05-01T00:00:00Z", EndAt: "2024-06-01T00:00:00Z"},
		{LiquidityPool: "EQpool", Asset: "native", RewardPerDay: "1", StartAt: "2024-06-01T00:00:00Z", EndAt: "2024-05-01T00:00:00Z"},
		{LiquidityPool: "EQother", Asset: "native", RewardPerDay: "1", StartAt: "1714521600", EndAt: "1717200000"},
	}

	boosts := Boosts(payloads)
	require.Len(t, boosts, 2)
	assert.Equal(t, big.NewInt(100_000_000_000), boosts[0].RewardPerDay)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), boosts[0].StartAt.UTC())
	assert.Equal(t, "EQother", boosts[1].LiquidityPool)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), boosts[1].StartAt)
	assert.Equal(t, 0, boosts[1].Budget.Sign())
}
