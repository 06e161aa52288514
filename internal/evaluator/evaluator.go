// Package evaluator computes vault metrics from a graph of cached upstream reads.
//
// Every upstream value lives in its own cache cell with its own TTL. Derived
// values are pure functions of their inputs, so a vault record is recomputed
// from whatever mix of fresh and still-valid cached inputs is available.
package evaluator

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/xssnick/tonutils-go/address"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/vault-metrics/internal/aggregate"
	"github.com/yourorg/vault-metrics/internal/cache"
	"github.com/yourorg/vault-metrics/internal/chain"
	"github.com/yourorg/vault-metrics/internal/config"
	"github.com/yourorg/vault-metrics/internal/model"
	"github.com/yourorg/vault-metrics/internal/otel"
)

// Cell lifetimes
const (
	shortTTL     = time.Minute
	boostsTTL    = 5 * time.Minute
	rewardsTTL   = 10 * time.Minute
	metadataTTL  = 24 * time.Hour
	prefetchFrac = 2.0 / 3.0
)

// oneShare is the PLP amount priced by get_estimated_lp_amount
var oneShare = big.NewInt(1_000_000_000)

//go:generate mockgen -source=evaluator.go -destination=../mocks/evaluator.go -package=mocks

// Chain reads contract state.
type Chain interface {
	VaultData(ctx context.Context, vault *address.Address) (model.VaultOnchainData, error)
	EstimatedLPAmount(ctx context.Context, vault *address.Address, amount *big.Int) (*big.Int, error)
	StrategyData(ctx context.Context, strategy *address.Address) (model.StrategyData, error)
	DistributionAccountAddress(ctx context.Context, pool, owner *address.Address) (*address.Address, error)
	RewardsDataURI(ctx context.Context, pool *address.Address) (string, error)
	DistributionAccountPaid(ctx context.Context, account *address.Address) (*big.Int, error)
	Account(ctx context.Context, addr *address.Address) (chain.Account, error)
}

// Dex reads pool, asset and boost data from the DEX.
type Dex interface {
	Pool(ctx context.Context, address string) (model.AssetPool, error)
	Assets(ctx context.Context) ([]model.AssetRef, error)
	Boosts(ctx context.Context) ([]model.Boost, error)
}

// Tokens reads jetton metadata and the TON price.
type Tokens interface {
	JettonInfo(ctx context.Context, address string) (model.JettonInfo, error)
	TonPrice(ctx context.Context) (float64, error)
}

// Ledgers reads reward ledgers by URI.
type Ledgers interface {
	Read(ctx context.Context, uri string) (model.RewardLedger, error)
}

// Deps are the upstreams an Evaluator reads from.
type Deps struct {
	Chain   Chain
	Dex     Dex
	Tokens  Tokens
	Ledgers Ledgers
}

type rewardKey struct {
	Pool  string
	Owner string
}

type statsKey struct {
	LP      string
	PoolTVL float64
}

// single key of the unkeyed cells
const singleton = ""

// Evaluator computes VaultMetrics for the configured vaults.
type Evaluator struct {
	deps   Deps
	vaults []config.Vault
	clock  clockwork.Clock
	tracer trace.Tracer

	vaultData   *cache.Cell[string, model.VaultOnchainData]
	strategy    *cache.Cell[string, model.StrategyData]
	jettons     *cache.Cell[string, model.JettonInfo]
	pools       *cache.Cell[string, model.AssetPool]
	assets      *cache.Cell[string, []model.AssetRef]
	lpInfo      *cache.Cell[string, model.LPInfo]
	tonPrice    *cache.Cell[string, float64]
	accounts    *cache.Cell[string, chain.Account]
	estimatedLP *cache.Cell[string, *big.Int]
	claimed     *cache.Cell[rewardKey, *big.Int]
	accumulated *cache.Cell[rewardKey, *big.Int]
	boosts      *cache.Cell[string, []model.Boost]
	rewards     *cache.Cell[statsKey, model.RewardsStats]
	metrics     *cache.Cell[string, model.VaultMetrics]
	all         *cache.Cell[string, []model.VaultMetrics]
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock injects the clock shared by every cell.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Evaluator) { e.clock = clock }
}

// WithTracer replaces the global tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Evaluator) { e.tracer = tracer }
}

// New creates an Evaluator for vaults.
func New(deps Deps, vaults []config.Vault, opts ...Option) *Evaluator {
	e := &Evaluator{
		deps:   deps,
		vaults: vaults,
		clock:  clockwork.NewRealClock(),
		tracer: otel.Tracer(),
	}
	for _, opt := range opts {
		opt(e)
	}

	clock := cache.WithClock(e.clock)
	prefetch := cache.WithPrefetch(prefetchFrac)

	e.vaultData = cache.NewCell("vault_data", shortTTL, e.fetchVaultData, clock)
	e.strategy = cache.NewCell("strategy_data", metadataTTL, e.fetchStrategy, clock)
	e.jettons = cache.NewCell("jetton_info", metadataTTL, e.deps.Tokens.JettonInfo, clock)
	e.pools = cache.NewCell("dedust_pool", shortTTL, e.deps.Dex.Pool, clock)
	e.assets = cache.NewCell("dedust_assets", shortTTL, func(ctx context.Context, _ string) ([]model.AssetRef, error) {
		return e.deps.Dex.Assets(ctx)
	}, clock)
	e.lpInfo = cache.NewCell("lp_info", shortTTL, e.computeLPInfo, clock)
	e.tonPrice = cache.NewCell("ton_price", shortTTL, func(ctx context.Context, _ string) (float64, error) {
		return e.deps.Tokens.TonPrice(ctx)
	}, clock)
	e.accounts = cache.NewCell("account", shortTTL, e.fetchAccount, clock)
	e.estimatedLP = cache.NewCell("estimated_lp", shortTTL, e.fetchEstimatedLP, clock)
	e.claimed = cache.NewCell("claimed_rewards", shortTTL, e.fetchClaimed, clock)
	e.accumulated = cache.NewCell("accumulated_rewards", shortTTL, e.fetchAccumulated, clock)
	e.boosts = cache.NewCell("boosts", boostsTTL, func(ctx context.Context, _ string) ([]model.Boost, error) {
		return e.deps.Dex.Boosts(ctx)
	}, clock)
	e.rewards = cache.NewCell("rewards_stats", rewardsTTL, e.computeRewards, clock)
	e.metrics = cache.NewCell("vault_metrics", shortTTL, e.computeVault, clock, prefetch)
	e.all = cache.NewCell("all_vaults", shortTTL, e.computeAll, clock, prefetch)
	return e
}

// Vaults returns the configured vaults.
func (e *Evaluator) Vaults() []config.Vault {
	return e.vaults
}

// Evaluate returns the metrics of the vault at vaultAddress (raw or friendly form).
func (e *Evaluator) Evaluate(ctx context.Context, vaultAddress string) (model.VaultMetrics, error) {
	friendly, err := chain.ToFriendly(vaultAddress)
	if err != nil {
		return model.VaultMetrics{}, err
	}
	return e.metrics.Get(ctx, friendly)
}

// EvaluateAll returns the metrics of every configured vault, in configuration
// order. One failing vault fails the whole list.
func (e *Evaluator) EvaluateAll(ctx context.Context) ([]model.VaultMetrics, error) {
	return e.all.Get(ctx, singleton)
}

// TokenMetadata returns the cached metadata of the jetton master at address.
func (e *Evaluator) TokenMetadata(ctx context.Context, address string) (model.TokenMetadata, error) {
	friendly, err := chain.ToFriendly(address)
	if err != nil {
		return model.TokenMetadata{}, err
	}
	info, err := e.jettons.Get(ctx, friendly)
	if err != nil {
		return model.TokenMetadata{}, err
	}
	return info.Metadata, nil
}

func (e *Evaluator) computeAll(ctx context.Context, _ string) ([]model.VaultMetrics, error) {
	ctx, span := e.tracer.Start(ctx, "evaluator.EvaluateAll")
	defer span.End()

	out := make([]model.VaultMetrics, len(e.vaults))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range e.vaults {
		i, v := i, v
		g.Go(func() error {
			m, err := e.Evaluate(gctx, v.Address)
			if err != nil {
				return fmt.Errorf("vault %s: %w", v.Address, err)
			}
			out[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		otel.RecordError(ctx, err)
		return nil, err
	}
	return out, nil
}

// inputs are the leaf values one vault record is assembled from.
type inputs struct {
	vault       model.VaultOnchainData
	lpAddress   string
	tonPrice    float64
	account     chain.Account
	plp         model.JettonInfo
	lp          model.JettonInfo
	estimatedLP *big.Int
	lpInfo      model.LPInfo
	claimed     *big.Int
	accumulated *big.Int
	rewards     model.RewardsStats
}

func (e *Evaluator) computeVault(ctx context.Context, vault string) (model.VaultMetrics, error) {
	ctx, span := e.tracer.Start(ctx, "evaluator.Evaluate", trace.WithAttributes(attribute.String("vault", vault)))
	defer span.End()

	in, err := e.gather(ctx, vault)
	if err != nil {
		otel.RecordError(ctx, err)
		logrus.WithField("vault", vault).WithError(err).Warn("Vault evaluation failed")
		return model.VaultMetrics{}, err
	}
	return e.assemble(vault, in), nil
}

func (e *Evaluator) gather(ctx context.Context, vault string) (inputs, error) {
	var in inputs

	// leaves that only need the vault address
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.vault, err = e.vaultData.Get(gctx, vault)
		return err
	})
	g.Go(func() error {
		s, err := e.strategy.Get(gctx, vault)
		in.lpAddress = s.PoolAddress
		return err
	})
	g.Go(func() (err error) {
		in.tonPrice, err = e.tonPrice.Get(gctx, singleton)
		return err
	})
	g.Go(func() (err error) {
		in.account, err = e.accounts.Get(gctx, vault)
		return err
	})
	g.Go(func() (err error) {
		in.plp, err = e.jettons.Get(gctx, vault)
		return err
	})
	g.Go(func() (err error) {
		in.estimatedLP, err = e.estimatedLP.Get(gctx, vault)
		return err
	})
	if err := g.Wait(); err != nil {
		return inputs{}, err
	}

	// leaves keyed by what the contracts returned
	reward := rewardKey{Pool: in.vault.DistributionPoolAddress, Owner: vault}
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.lpInfo, err = e.lpInfo.Get(gctx, in.lpAddress)
		return err
	})
	g.Go(func() (err error) {
		in.lp, err = e.jettons.Get(gctx, in.lpAddress)
		return err
	})
	g.Go(func() (err error) {
		in.claimed, err = e.claimed.Get(gctx, reward)
		return err
	})
	g.Go(func() (err error) {
		in.accumulated, err = e.accumulated.Get(gctx, reward)
		return err
	})
	if err := g.Wait(); err != nil {
		return inputs{}, err
	}

	stats, err := e.rewards.Get(ctx, statsKey{LP: in.lpAddress, PoolTVL: in.lpInfo.PoolTVLUSD})
	if err != nil {
		return inputs{}, err
	}
	in.rewards = stats
	return in, nil
}

func (e *Evaluator) assemble(vault string, in inputs) model.VaultMetrics {
	tonBalance := aggregate.FromNano(in.account.Balance)
	tvl := aggregate.VaultTVL(in.vault.DepositedLP, in.lpInfo.LPPrice, tonBalance, in.tonPrice)
	pending := aggregate.PendingRewards(tonBalance, in.accumulated, in.claimed, in.vault.ManagementFee, in.tonPrice)
	plpPrice := aggregate.PLPPrice(in.estimatedLP, in.lpInfo.LPPrice)
	revenue := aggregate.Revenue(in.vault.ManagementFee, in.tonPrice)

	var targets model.KPISet
	for _, v := range e.vaults {
		if chain.SameAddress(v.Address, vault) {
			targets = v.KPIs
			break
		}
	}
	current := model.KPISet{
		TVL:               aggregate.FormatUSD(tvl),
		LiquidityFraction: aggregate.LiquidityFraction(in.vault.DepositedLP, in.lp.TotalSupply),
		Revenue:           aggregate.FormatUSD(revenue),
	}

	return model.VaultMetrics{
		VaultData: model.VaultData{
			Name:                  in.lp.Metadata.Name,
			VaultAddress:          vault,
			VaultAddressFormatted: vault,
			LPAddress:             in.lpAddress,
			LPTotalSupply:         bigString(in.lp.TotalSupply),
			PLPTotalSupply:        bigString(in.plp.TotalSupply),
			PLPPriceUSD:           aggregate.FormatUSD(plpPrice),
			LPPriceUSD:            aggregate.FormatUSD(in.lpInfo.LPPrice),
			TVLUSD:                aggregate.FormatUSD(tvl),
			PendingRewardsUSD:     aggregate.FormatUSD(pending),
			DPR:                   aggregate.FormatRate(in.rewards.DPR * 100),
			APR:                   aggregate.FormatRate(in.rewards.APR * 100),
			APY:                   aggregate.FormatRate(in.rewards.APY * 100),
			DailyUSDRewards:       aggregate.FormatRate(in.rewards.DailyUSD),
			ManagementFee:         bigString(in.vault.ManagementFee),
		},
		LPMetadata:  in.lp.Metadata,
		PLPMetadata: in.plp.Metadata,
		KPIs:        model.NewKPIBlock(targets, current),
		ComputedAt:  e.clock.Now().UTC(),
	}
}

func (e *Evaluator) fetchVaultData(ctx context.Context, vault string) (model.VaultOnchainData, error) {
	addr, err := chain.ParseAddress(vault)
	if err != nil {
		return model.VaultOnchainData{}, err
	}
	return e.deps.Chain.VaultData(ctx, addr)
}

func (e *Evaluator) fetchStrategy(ctx context.Context, vault string) (model.StrategyData, error) {
	vd, err := e.vaultData.Get(ctx, vault)
	if err != nil {
		return model.StrategyData{}, err
	}
	addr, err := chain.ParseAddress(vd.StrategyAddress)
	if err != nil {
		return model.StrategyData{}, err
	}
	return e.deps.Chain.StrategyData(ctx, addr)
}

func (e *Evaluator) fetchAccount(ctx context.Context, account string) (chain.Account, error) {
	addr, err := chain.ParseAddress(account)
	if err != nil {
		return chain.Account{}, err
	}
	return e.deps.Chain.Account(ctx, addr)
}

func (e *Evaluator) fetchEstimatedLP(ctx context.Context, vault string) (*big.Int, error) {
	addr, err := chain.ParseAddress(vault)
	if err != nil {
		return nil, err
	}
	return e.deps.Chain.EstimatedLPAmount(ctx, addr, oneShare)
}

func (e *Evaluator) computeLPInfo(ctx context.Context, lp string) (model.LPInfo, error) {
	var (
		pool   model.AssetPool
		assets []model.AssetRef
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		pool, err = e.pools.Get(gctx, lp)
		return err
	})
	g.Go(func() (err error) {
		assets, err = e.assets.Get(gctx, singleton)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.LPInfo{}, err
	}
	return aggregate.LPInfo(pool, assets)
}

// fetchClaimed returns what the reward account of the owner has been paid.
// An account that was never deployed has been paid nothing.
func (e *Evaluator) fetchClaimed(ctx context.Context, key rewardKey) (*big.Int, error) {
	pool, err := chain.ParseAddress(key.Pool)
	if err != nil {
		return nil, err
	}
	owner, err := chain.ParseAddress(key.Owner)
	if err != nil {
		return nil, err
	}

	accountAddr, err := e.deps.Chain.DistributionAccountAddress(ctx, pool, owner)
	if err != nil {
		return nil, err
	}
	account, err := e.accounts.Get(ctx, chain.Friendly(accountAddr))
	if err != nil {
		return nil, err
	}
	if !account.Active() {
		return new(big.Int), nil
	}
	return e.deps.Chain.DistributionAccountPaid(ctx, accountAddr)
}

func (e *Evaluator) fetchAccumulated(ctx context.Context, key rewardKey) (*big.Int, error) {
	pool, err := chain.ParseAddress(key.Pool)
	if err != nil {
		return nil, err
	}
	owner, err := chain.ParseAddress(key.Owner)
	if err != nil {
		return nil, err
	}

	uri, err := e.deps.Chain.RewardsDataURI(ctx, pool)
	if err != nil {
		return nil, err
	}
	ledger, err := e.deps.Ledgers.Read(ctx, uri)
	if err != nil {
		return nil, err
	}
	return ledger.Amount(chain.Raw(owner)), nil
}

func (e *Evaluator) computeRewards(ctx context.Context, key statsKey) (model.RewardsStats, error) {
	var (
		boosts []model.Boost
		price  float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		boosts, err = e.boosts.Get(gctx, singleton)
		return err
	})
	g.Go(func() (err error) {
		price, err = e.tonPrice.Get(gctx, singleton)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.RewardsStats{}, err
	}
	return aggregate.RewardsStats(boosts, key.LP, key.PoolTVL, price, e.clock.Now()), nil
}

func bigString(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return x.String()
}
