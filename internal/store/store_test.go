package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/yourorg/vault-metrics/internal/chain"
	"github.com/yourorg/vault-metrics/internal/fault"
	"github.com/yourorg/vault-metrics/internal/integrity"
	"github.com/yourorg/vault-metrics/internal/model"
)

const (
	vaultRaw = "0:bb309547a688b8eb328938a5765cb998334d2cea2b6dc511406f8274fb6d2220"
	lpRaw    = "0:3333333333333333333333333333333333333333333333333333333333333333"
)

func friendly(t *testing.T, raw string) string {
	t.Helper()
	f, err := chain.ToFriendly(raw)
	require.NoError(t, err)
	return f
}

func testMetrics(t *testing.T) model.VaultMetrics {
	vault := friendly(t, vaultRaw)
	return model.VaultMetrics{
		VaultData: model.VaultData{
			Name:                  "TON/USDT LP",
			VaultAddress:          vault,
			VaultAddressFormatted: vault,
			LPAddress:             friendly(t, lpRaw),
			LPTotalSupply:         "2000000000000",
			PLPTotalSupply:        "100000000000",
			PLPPriceUSD:           "30.00",
			LPPriceUSD:            "15.00",
			TVLUSD:                "15010.00",
			PendingRewardsUSD:     "40.00",
			DPR:                   "0.0500",
			APR:                   "18.2500",
			APY:                   "20.0123",
			DailyUSDRewards:       "15.0000",
			ManagementFee:         "1000000000",
		},
		LPMetadata:  model.TokenMetadata{Address: lpRaw, Name: "TON/USDT LP", Symbol: "LP", Decimals: "9"},
		PLPMetadata: model.TokenMetadata{Address: vaultRaw, Name: "Vault Share", Symbol: "PLP", Decimals: "9"},
		KPIs: model.NewKPIBlock(
			model.KPISet{TVL: "100000", LiquidityFraction: "0.001", Revenue: "1000"},
			model.KPISet{TVL: "15010.00", LiquidityFraction: "0.5000000000", Revenue: "5.00"},
		),
	}
}

func TestVaultFieldsRoundTrip(t *testing.T) {
	m := testMetrics(t)

	fields := VaultFields(m.VaultData)
	assert.NotContains(t, fields, "vaultAddress")
	assert.Equal(t, "15010.00", fields["tvlUsd"])

	back := vaultFromFields(fields)
	back.VaultAddress = m.VaultAddress
	assert.Equal(t, m.VaultData, back)
}

func startRedis(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcredis.RunContainer(ctx, testcontainers.WithImage("docker.io/redis:7"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	rdb, err := Connect(ctx, url)
	require.NoError(t, err)

	s := New(rdb)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SnapshotLifecycle(t *testing.T) {
	s := startRedis(t)
	ctx := context.Background()
	m := testMetrics(t)
	computedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_, _, err := s.VaultData(ctx, vaultRaw)
	assert.ErrorIs(t, err, fault.ErrNotFoundInStore)

	require.NoError(t, s.SaveKPITarget(ctx, vaultRaw, m.KPIs.Targets()))
	require.NoError(t, s.SaveSnapshot(ctx, model.NewSnapshot(m, computedAt)))

	vaults, err := s.VaultAddresses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{m.VaultAddress}, vaults)

	data, at, err := s.VaultData(ctx, vaultRaw)
	require.NoError(t, err)
	assert.Equal(t, m.VaultData, data)
	assert.True(t, computedAt.Equal(at))

	md, err := s.TokenMetadata(ctx, friendly(t, lpRaw))
	require.NoError(t, err)
	assert.Equal(t, m.LPMetadata, md)

	current, err := s.KPICurrent(ctx, vaultRaw)
	require.NoError(t, err)
	assert.Equal(t, m.KPIs.Currents(), current)

	list, err := s.ListVaults(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, m.VaultData, list[0].VaultData)
	assert.Equal(t, m.KPIs, list[0].KPIs)
	assert.Equal(t, m.PLPMetadata, list[0].PLPMetadata)
	assert.True(t, computedAt.Equal(list[0].ComputedAt))
}

func TestStore_DetectsTamperedSnapshot(t *testing.T) {
	s := startRedis(t)
	ctx := context.Background()
	m := testMetrics(t)

	require.NoError(t, s.SaveSnapshot(ctx, model.NewSnapshot(m, time.Now())))
	require.NoError(t, s.rdb.HSet(ctx, VaultPrefix+m.VaultAddress, "tvlUsd", "99999999.00").Err())

	_, _, err := s.VaultData(ctx, vaultRaw)
	assert.ErrorIs(t, err, fault.ErrSnapshotCorrupt)

	list, err := s.ListVaults(ctx)
	require.NoError(t, err)
	assert.Empty(t, list, "corrupt snapshots are not served")
}

func TestStore_AcceptsSnapshotsWithoutChecksum(t *testing.T) {
	s := startRedis(t)
	ctx := context.Background()
	m := testMetrics(t)

	fields := VaultFields(m.VaultData)
	require.NoError(t, s.rdb.HSet(ctx, VaultPrefix+m.VaultAddress, toArgs(fields)).Err())
	_, ok := fields[integrity.ChecksumField]
	require.False(t, ok)

	data, at, err := s.VaultData(ctx, vaultRaw)
	require.NoError(t, err)
	assert.Equal(t, m.TVLUSD, data.TVLUSD)
	assert.True(t, at.IsZero())
}

func TestConnectInvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "not-a-url://")
	assert.Error(t, err)
}
