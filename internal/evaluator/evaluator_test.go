package evaluator

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"go.uber.org/mock/gomock"

	"github.com/yourorg/vault-metrics/internal/chain"
	"github.com/yourorg/vault-metrics/internal/config"
	"github.com/yourorg/vault-metrics/internal/fault"
	"github.com/yourorg/vault-metrics/internal/mocks"
	"github.com/yourorg/vault-metrics/internal/model"
)

const (
	vaultRaw    = "0:bb309547a688b8eb328938a5765cb998334d2cea2b6dc511406f8274fb6d2220"
	strategyRaw = "0:1111111111111111111111111111111111111111111111111111111111111111"
	poolRaw     = "0:2222222222222222222222222222222222222222222222222222222222222222"
	lpRaw       = "0:3333333333333333333333333333333333333333333333333333333333333333"
	accountRaw  = "0:4444444444444444444444444444444444444444444444444444444444444444"
	usdtMaster  = "EQCxE6mUtQJKFnGfaROTKOt1lZbDiiX1kCixRv7Nw2Id_sDs"
	ledgerURI   = "ipfs://QmLedger"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func nano(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), big.NewInt(1_000_000_000))
}

func friendly(t *testing.T, raw string) string {
	t.Helper()
	f, err := chain.ToFriendly(raw)
	require.NoError(t, err)
	return f
}

func mustAddr(t *testing.T, raw string) *address.Address {
	t.Helper()
	addr, err := chain.ParseAddress(raw)
	require.NoError(t, err)
	return addr
}

type fixture struct {
	chain   *mocks.MockChain
	dex     *mocks.MockDex
	tokens  *mocks.MockTokens
	ledgers *mocks.MockLedgers
	advance func(time.Duration)
	eval    *Evaluator
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	clock := clockwork.NewFakeClockAt(now)

	f := &fixture{
		chain:   mocks.NewMockChain(ctrl),
		dex:     mocks.NewMockDex(ctrl),
		tokens:  mocks.NewMockTokens(ctrl),
		ledgers: mocks.NewMockLedgers(ctrl),
		advance: clock.Advance,
	}
	vaults := []config.Vault{{
		Address: vaultRaw,
		KPIs:    model.KPISet{TVL: "100000", LiquidityFraction: "0.001", Revenue: "1000"},
	}}
	f.eval = New(Deps{Chain: f.chain, Dex: f.dex, Tokens: f.tokens, Ledgers: f.ledgers}, vaults, WithClock(clock))
	return f
}

// scenario describes the upstream state of the test vault.
type scenario struct {
	accountState string
	ledgerURI    string
	assets       []model.AssetRef
}

func defaultScenario() scenario {
	return scenario{
		accountState: chain.StateActive,
		ledgerURI:    ledgerURI,
		assets: []model.AssetRef{
			{AssetKey: model.AssetKey{Type: "native"}, PriceUSD: 5, Decimals: 9},
			{AssetKey: model.AssetKey{Type: "jetton", Address: usdtMaster}, PriceUSD: 1, Decimals: 6},
		},
	}
}

// expectVolatile registers the reads cached for one minute.
func (f *fixture) expectVolatile(t *testing.T, s scenario) {
	lp := friendly(t, lpRaw)

	f.chain.EXPECT().VaultData(gomock.Any(), gomock.Any()).Return(model.VaultOnchainData{
		ManagementFee:           nano(1),
		DepositedLP:             nano(1000),
		StrategyAddress:         friendly(t, strategyRaw),
		DistributionPoolAddress: friendly(t, poolRaw),
	}, nil)
	f.tokens.EXPECT().TonPrice(gomock.Any()).Return(5.0, nil)
	f.chain.EXPECT().EstimatedLPAmount(gomock.Any(), gomock.Any(), oneShare).Return(nano(2), nil)
	f.chain.EXPECT().Account(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, addr *address.Address) (chain.Account, error) {
			assert.Equal(t, vaultRaw, chain.Raw(addr))
			return chain.Account{Balance: nano(2), State: chain.StateActive}, nil
		})
	f.dex.EXPECT().Pool(gomock.Any(), lp).Return(model.AssetPool{
		Address:     lp,
		TotalSupply: nano(2000),
		Reserves:    [2]*big.Int{nano(4000), big.NewInt(10_000_000_000)},
		Assets:      [2]model.AssetKey{{Type: "native"}, {Type: "jetton", Address: usdtMaster}},
	}, nil)
	f.dex.EXPECT().Assets(gomock.Any()).Return(s.assets, nil)

	f.chain.EXPECT().DistributionAccountAddress(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, pool, owner *address.Address) (*address.Address, error) {
			assert.Equal(t, poolRaw, chain.Raw(pool))
			assert.Equal(t, vaultRaw, chain.Raw(owner))
			return mustAddr(t, accountRaw), nil
		})
	f.chain.EXPECT().Account(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, addr *address.Address) (chain.Account, error) {
			assert.Equal(t, accountRaw, chain.Raw(addr))
			return chain.Account{Balance: new(big.Int), State: s.accountState}, nil
		})
	if s.accountState == chain.StateActive {
		f.chain.EXPECT().DistributionAccountPaid(gomock.Any(), gomock.Any()).Return(nano(3), nil)
	}
	f.chain.EXPECT().RewardsDataURI(gomock.Any(), gomock.Any()).Return(s.ledgerURI, nil)
	f.ledgers.EXPECT().Read(gomock.Any(), s.ledgerURI).Return(
		model.NewRewardLedger(map[string]*big.Int{vaultRaw: nano(10)}), nil)
}

// expectStable registers the reads cached for five minutes or longer.
func (f *fixture) expectStable(t *testing.T) {
	vault := friendly(t, vaultRaw)
	lp := friendly(t, lpRaw)

	f.chain.EXPECT().StrategyData(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, strategy *address.Address) (model.StrategyData, error) {
			assert.Equal(t, strategyRaw, chain.Raw(strategy))
			return model.StrategyData{PoolAddress: lp}, nil
		})
	f.tokens.EXPECT().JettonInfo(gomock.Any(), vault).Return(model.JettonInfo{
		Metadata:    model.TokenMetadata{Address: vaultRaw, Name: "Vault Share", Symbol: "PLP", Decimals: "9"},
		TotalSupply: nano(100),
	}, nil)
	f.tokens.EXPECT().JettonInfo(gomock.Any(), lp).Return(model.JettonInfo{
		Metadata:    model.TokenMetadata{Address: lpRaw, Name: "TON/USDT LP", Symbol: "LP", Decimals: "9"},
		TotalSupply: nano(2000),
	}, nil)
	f.dex.EXPECT().Boosts(gomock.Any()).Return([]model.Boost{
		{
			LiquidityPool: lp,
			Asset:         model.AssetNative,
			Budget:        nano(1000),
			RewardPerDay:  nano(3),
			StartAt:       now.Add(-time.Hour),
			EndAt:         now.Add(30 * 24 * time.Hour),
		},
		{
			LiquidityPool: lp,
			Asset:         "jetton:" + usdtMaster,
			RewardPerDay:  nano(1000),
			StartAt:       now.Add(-time.Hour),
			EndAt:         now.Add(time.Hour),
		},
	}, nil)
}

func TestEvaluate_FullRecord(t *testing.T) {
	f := newFixture(t)
	f.expectVolatile(t, defaultScenario())
	f.expectStable(t)

	m, err := f.eval.Evaluate(context.Background(), vaultRaw)
	require.NoError(t, err)

	vault := friendly(t, vaultRaw)
	assert.Equal(t, "TON/USDT LP", m.Name)
	assert.Equal(t, vault, m.VaultAddress)
	assert.Equal(t, vault, m.VaultAddressFormatted)
	assert.Equal(t, friendly(t, lpRaw), m.LPAddress)
	assert.Equal(t, "2000000000000", m.LPTotalSupply)
	assert.Equal(t, "100000000000", m.PLPTotalSupply)
	assert.Equal(t, "15.00", m.LPPriceUSD)
	assert.Equal(t, "30.00", m.PLPPriceUSD)
	assert.Equal(t, "15010.00", m.TVLUSD)
	// (2 TON balance + 10 accumulated - 3 claimed - 1 fee) * $5
	assert.Equal(t, "40.00", m.PendingRewardsUSD)
	assert.Equal(t, "18.2500", m.APR)
	assert.Equal(t, "0.0500", m.DPR)
	assert.Equal(t, "15.0000", m.DailyUSDRewards)
	assert.NotEqual(t, "0", m.APY)
	assert.Equal(t, "1000000000", m.ManagementFee)

	assert.Equal(t, "PLP", m.PLPMetadata.Symbol)
	assert.Equal(t, "LP", m.LPMetadata.Symbol)

	assert.Equal(t, model.KPIValue{Target: "100000", Current: "15010.00"}, m.KPIs.TVL)
	assert.Equal(t, model.KPIValue{Target: "0.001", Current: "0.5000000000"}, m.KPIs.LiquidityFraction)
	assert.Equal(t, model.KPIValue{Target: "1000", Current: "5.00"}, m.KPIs.Revenue)
	assert.Equal(t, now, m.ComputedAt)
}

func TestEvaluate_InactiveRewardAccountClaimedNothing(t *testing.T) {
	f := newFixture(t)
	s := defaultScenario()
	s.accountState = chain.StateUninit
	f.expectVolatile(t, s)
	f.expectStable(t)

	m, err := f.eval.Evaluate(context.Background(), vaultRaw)
	require.NoError(t, err)
	// (2 + 10 - 0 - 1) * $5
	assert.Equal(t, "55.00", m.PendingRewardsUSD)
}

func TestEvaluate_CellsKeepTheirOwnLifetimes(t *testing.T) {
	f := newFixture(t)
	f.expectVolatile(t, defaultScenario())
	f.expectStable(t)

	first, err := f.eval.Evaluate(context.Background(), vaultRaw)
	require.NoError(t, err)

	// served from the record cell, no upstream reads
	again, err := f.eval.Evaluate(context.Background(), friendly(t, vaultRaw))
	require.NoError(t, err)
	assert.Equal(t, first, again)

	all, err := f.eval.EvaluateAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, first, all[0])

	// one-minute cells expire, metadata, strategy and boosts stay cached
	f.advance(61 * time.Second)
	f.expectVolatile(t, defaultScenario())

	refreshed, err := f.eval.Evaluate(context.Background(), vaultRaw)
	require.NoError(t, err)
	assert.Equal(t, first.TVLUSD, refreshed.TVLUSD)
	assert.Equal(t, now.Add(61*time.Second), refreshed.ComputedAt)
}

func TestEvaluate_AssetNotFound(t *testing.T) {
	f := newFixture(t)
	s := defaultScenario()
	s.assets = s.assets[:1]

	f.chain.EXPECT().VaultData(gomock.Any(), gomock.Any()).Return(model.VaultOnchainData{
		ManagementFee:           nano(1),
		DepositedLP:             nano(1000),
		StrategyAddress:         friendly(t, strategyRaw),
		DistributionPoolAddress: friendly(t, poolRaw),
	}, nil)
	f.tokens.EXPECT().TonPrice(gomock.Any()).Return(5.0, nil).AnyTimes()
	f.chain.EXPECT().EstimatedLPAmount(gomock.Any(), gomock.Any(), gomock.Any()).Return(nano(2), nil)
	f.chain.EXPECT().StrategyData(gomock.Any(), gomock.Any()).Return(model.StrategyData{PoolAddress: friendly(t, lpRaw)}, nil)
	f.tokens.EXPECT().JettonInfo(gomock.Any(), gomock.Any()).Return(model.JettonInfo{TotalSupply: nano(1)}, nil).AnyTimes()
	f.chain.EXPECT().Account(gomock.Any(), gomock.Any()).Return(chain.Account{Balance: nano(1), State: chain.StateActive}, nil).AnyTimes()
	f.chain.EXPECT().DistributionAccountAddress(gomock.Any(), gomock.Any(), gomock.Any()).Return(mustAddr(t, accountRaw), nil).AnyTimes()
	f.chain.EXPECT().DistributionAccountPaid(gomock.Any(), gomock.Any()).Return(nano(0), nil).AnyTimes()
	f.chain.EXPECT().RewardsDataURI(gomock.Any(), gomock.Any()).Return("", nil).AnyTimes()
	f.ledgers.EXPECT().Read(gomock.Any(), gomock.Any()).Return(model.NewRewardLedger(nil), nil).AnyTimes()
	f.dex.EXPECT().Pool(gomock.Any(), gomock.Any()).Return(model.AssetPool{
		TotalSupply: nano(2),
		Reserves:    [2]*big.Int{nano(4), big.NewInt(10_000_000)},
		Assets:      [2]model.AssetKey{{Type: "native"}, {Type: "jetton", Address: usdtMaster}},
	}, nil)
	f.dex.EXPECT().Assets(gomock.Any()).Return(s.assets, nil)

	_, err := f.eval.Evaluate(context.Background(), vaultRaw)
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrAssetNotFound)
	assert.True(t, fault.IsPermanent(err))

	_, err = f.eval.EvaluateAll(context.Background())
	assert.ErrorIs(t, err, fault.ErrAssetNotFound, "failures are not cached, the list fails as a whole")
}

func TestEvaluate_InvalidAddress(t *testing.T) {
	f := newFixture(t)

	_, err := f.eval.Evaluate(context.Background(), "not-an-address")
	assert.Error(t, err)
}

func TestTokenMetadata(t *testing.T) {
	f := newFixture(t)
	lp := friendly(t, lpRaw)
	f.tokens.EXPECT().JettonInfo(gomock.Any(), lp).Return(model.JettonInfo{
		Metadata:    model.TokenMetadata{Address: lpRaw, Name: "TON/USDT LP", Symbol: "LP", Decimals: "9"},
		TotalSupply: nano(2000),
	}, nil).Times(1)

	for i := 0; i < 2; i++ {
		md, err := f.eval.TokenMetadata(context.Background(), lpRaw)
		require.NoError(t, err)
		assert.Equal(t, "TON/USDT LP", md.Name)
	}
}

func TestVaults(t *testing.T) {
	f := newFixture(t)
	require.Len(t, f.eval.Vaults(), 1)
	assert.Equal(t, vaultRaw, f.eval.Vaults()[0].Address)
}
