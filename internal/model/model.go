// Package model defines the data structures shared by the compute, storage and API layers.
package model

import (
	"math/big"
	"sort"
	"time"
)

// AssetNative is the DeDust asset type of the chain's native coin.
const AssetNative = "native"

// TokenMetadata describes a jetton as reported by the token metadata service.
type TokenMetadata struct {
	// Address is the raw ("0:<hex>") form of the jetton master address
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals string `json:"decimals"`
	Image    string `json:"image,omitempty"`
}

// JettonInfo is token metadata plus the jetton's circulating supply in base units.
type JettonInfo struct {
	Metadata    TokenMetadata
	TotalSupply *big.Int
}

// KPISet holds one value per tracked KPI, either the static targets or the current values.
type KPISet struct {
	TVL               string `json:"tvl"`
	LiquidityFraction string `json:"liquidityFraction"`
	Revenue           string `json:"revenue"`
}

// KPIValue pairs a KPI's target with its latest computed value.
type KPIValue struct {
	Target  string `json:"target"`
	Current string `json:"current"`
}

// KPIBlock is the per-vault KPI report.
type KPIBlock struct {
	TVL               KPIValue `json:"tvl"`
	LiquidityFraction KPIValue `json:"liquidityFraction"`
	Revenue           KPIValue `json:"revenue"`
}

// NewKPIBlock pairs targets with current values.
func NewKPIBlock(target, current KPISet) KPIBlock {
	return KPIBlock{
		TVL:               KPIValue{Target: target.TVL, Current: current.TVL},
		LiquidityFraction: KPIValue{Target: target.LiquidityFraction, Current: current.LiquidityFraction},
		Revenue:           KPIValue{Target: target.Revenue, Current: current.Revenue},
	}
}

// Targets extracts the target side of the block.
func (b KPIBlock) Targets() KPISet {
	return KPISet{TVL: b.TVL.Target, LiquidityFraction: b.LiquidityFraction.Target, Revenue: b.Revenue.Target}
}

// Currents extracts the current side of the block.
func (b KPIBlock) Currents() KPISet {
	return KPISet{TVL: b.TVL.Current, LiquidityFraction: b.LiquidityFraction.Current, Revenue: b.Revenue.Current}
}

// AssetKey identifies a DEX asset by kind and (for jettons) master address.
type AssetKey struct {
	Type    string `json:"type"`
	Address string `json:"address"`
}

// AssetRef is a DEX asset with the data needed to price its reserves.
type AssetRef struct {
	AssetKey
	PriceUSD float64 `json:"price"`
	Decimals int     `json:"decimals"`
}

// AssetPool is the raw DEX state of one liquidity pair.
type AssetPool struct {
	Address     string
	TotalSupply *big.Int
	Reserves    [2]*big.Int
	Assets      [2]AssetKey
}

// LPInfo is the USD valuation of one LP token and of the whole pool.
type LPInfo struct {
	LPPrice     float64
	Asset1Price float64
	Asset2Price float64
	PoolTVLUSD  float64
}

// Boost is a time-bounded reward program on a DEX pool.
type Boost struct {
	LiquidityPool string
	Asset         string
	Budget        *big.Int
	RewardPerDay  *big.Int
	StartAt       time.Time
	EndAt         time.Time
}

// ActiveAt reports whether t falls inside [StartAt, EndAt).
func (b Boost) ActiveAt(t time.Time) bool {
	return !t.Before(b.StartAt) && t.Before(b.EndAt)
}

// RewardsStats are the reward rates of a pool, as fractions (not percent).
type RewardsStats struct {
	DPR      float64
	APR      float64
	APY      float64
	DailyUSD float64
}

// VaultOnchainData is the state returned by the vault contract.
type VaultOnchainData struct {
	ManagementFee           *big.Int
	DepositedLP             *big.Int
	StrategyAddress         string
	DistributionPoolAddress string
}

// StrategyData is the state returned by the vault's strategy contract.
type StrategyData struct {
	PoolAddress string
}

// RewardLedger maps account addresses (raw form) to accumulated reward amounts.
// A ledger is immutable once decoded.
type RewardLedger struct {
	amounts map[string]*big.Int
}

// NewRewardLedger builds a ledger from raw-address keyed amounts.
func NewRewardLedger(amounts map[string]*big.Int) RewardLedger {
	copied := make(map[string]*big.Int, len(amounts))
	for k, v := range amounts {
		copied[k] = new(big.Int).Set(v)
	}
	return RewardLedger{amounts: copied}
}

// Amount returns the accumulated amount for account, zero when absent.
func (l RewardLedger) Amount(account string) *big.Int {
	if v, ok := l.amounts[account]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// Len returns the number of accounts in the ledger.
func (l RewardLedger) Len() int {
	return len(l.amounts)
}

// Accounts returns the ledger's accounts in ascending order.
func (l RewardLedger) Accounts() []string {
	accounts := make([]string, 0, len(l.amounts))
	for k := range l.amounts {
		accounts = append(accounts, k)
	}
	sort.Strings(accounts)
	return accounts
}

// VaultData is the flat part of a vault record, persisted field by field.
type VaultData struct {
	Name                  string `json:"name"`
	VaultAddress          string `json:"vaultAddress"`
	VaultAddressFormatted string `json:"vaultAddressFormatted"`
	LPAddress             string `json:"lpAddress"`
	LPTotalSupply         string `json:"lpTotalSupply"`
	PLPTotalSupply        string `json:"plpTotalSupply"`
	PLPPriceUSD           string `json:"plpPriceUsd"`
	LPPriceUSD            string `json:"lpPriceUsd"`
	TVLUSD                string `json:"tvlUsd"`
	PendingRewardsUSD     string `json:"pendingRewardsUSD"`
	DPR                   string `json:"dpr"`
	APR                   string `json:"apr"`
	APY                   string `json:"apy"`
	DailyUSDRewards       string `json:"dailyUsdRewards"`
	ManagementFee         string `json:"managementFee"`
}

// VaultMetrics is the complete computed record for one vault.
// This is the terminal node of the evaluation graph and the payload of the list endpoint.
type VaultMetrics struct {
	VaultData
	LPMetadata  TokenMetadata `json:"lpMetadata"`
	PLPMetadata TokenMetadata `json:"plpMetadata"`
	KPIs        KPIBlock      `json:"kpis"`
	ComputedAt  time.Time     `json:"computedAt"`
}

// Snapshot is a persisted VaultMetrics with its computation time.
type Snapshot struct {
	Metrics    VaultMetrics
	ComputedAt time.Time
}

// NewSnapshot stamps metrics with the time they were computed.
func NewSnapshot(m VaultMetrics, computedAt time.Time) Snapshot {
	m.ComputedAt = computedAt
	return Snapshot{Metrics: m, ComputedAt: computedAt}
}
