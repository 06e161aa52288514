// Package aggregate holds the pure valuation formulas of a vault: LP pricing,
// TVL, reward rates and KPI currents. Nothing here touches the network.
package aggregate

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourorg/vault-metrics/internal/fault"
	"github.com/yourorg/vault-metrics/internal/model"
)

// Precision constants of the valuation formulas
const (
	pricePrecision = 10_000
	vaultPrecision = 1_000
	nanoDecimals   = 9
	daysPerYear    = 365
)

var (
	oneLP      = big.NewInt(1_000_000_000)
	oneNano    = big.NewInt(1_000_000_000)
	bigPrice   = big.NewInt(pricePrecision)
	bigVault   = big.NewInt(vaultPrecision)
	zeroString = "0"
)

// ParseAsset zerlegt einen DEX-Asset-String "type:address" in seine Teile.
// "native" hat keine Adresse.
func ParseAsset(s string) model.AssetKey {
	kind, address, _ := strings.Cut(s, ":")
	return model.AssetKey{Type: kind, Address: address}
}

// FindAsset sucht ein Asset anhand von Typ und Adresse.
func FindAsset(assets []model.AssetRef, key model.AssetKey) (model.AssetRef, error) {
	for _, a := range assets {
		if a.Type == key.Type && a.Address == key.Address {
			return a, nil
		}
	}
	return model.AssetRef{}, fmt.Errorf("%w: %s:%s", fault.ErrAssetNotFound, key.Type, key.Address)
}

// LPInfo berechnet den USD-Preis eines LP-Tokens und den TVL des Pools
// aus den Reserven und den Preisen der beiden Assets.
func LPInfo(pool model.AssetPool, assets []model.AssetRef) (model.LPInfo, error) {
	asset1, err := FindAsset(assets, pool.Assets[0])
	if err != nil {
		return model.LPInfo{}, err
	}
	asset2, err := FindAsset(assets, pool.Assets[1])
	if err != nil {
		return model.LPInfo{}, err
	}
	if pool.TotalSupply == nil || pool.TotalSupply.Sign() <= 0 {
		return model.LPInfo{}, fmt.Errorf("%w: %s", fault.ErrEmptyPool, pool.Address)
	}

	lpPrice := underLP(pool.Reserves[0], pool.TotalSupply, asset1.Decimals)*asset1.PriceUSD +
		underLP(pool.Reserves[1], pool.TotalSupply, asset2.Decimals)*asset2.PriceUSD

	scaledSupply := new(big.Int).Mul(pool.TotalSupply, bigPrice)
	scaledSupply.Quo(scaledSupply, oneLP)

	return model.LPInfo{
		LPPrice:     lpPrice,
		Asset1Price: asset1.PriceUSD,
		Asset2Price: asset2.PriceUSD,
		PoolTVLUSD:  toFloat(scaledSupply) * lpPrice / pricePrecision,
	}, nil
}

// underLP liefert die Asset-Menge (in ganzen Einheiten) hinter einem LP-Token.
func underLP(reserve, totalSupply *big.Int, decimals int) float64 {
	amount := new(big.Int).Mul(oneLP, reserve)
	amount.Quo(amount, totalSupply)
	amount.Mul(amount, bigPrice)
	amount.Quo(amount, pow10(decimals))
	return toFloat(amount) / pricePrecision
}

// VaultTVL berechnet den TVL eines Vaults: hinterlegte LP-Tokens plus TON-Guthaben.
func VaultTVL(depositedLP *big.Int, lpPrice, tonBalance, tonPrice float64) float64 {
	return scaledNano(depositedLP)/vaultPrecision*lpPrice + tonBalance*tonPrice
}

// PLPPrice berechnet den USD-Preis eines Vault-Anteils (PLP).
func PLPPrice(estimatedLP *big.Int, lpPrice float64) float64 {
	return scaledNano(estimatedLP) * lpPrice / vaultPrecision
}

// PendingRewards bewertet das TON-Guthaben plus nicht abgeholte Belohnungen
// abzüglich der Managementgebühr in USD.
func PendingRewards(tonBalance float64, accumulated, claimed, managementFee *big.Int, tonPrice float64) float64 {
	unclaimed := new(big.Int).Sub(accumulated, claimed)
	return (tonBalance + FromNano(unclaimed) - FromNano(managementFee)) * tonPrice
}

// Revenue bewertet die Managementgebühr in USD.
func Revenue(managementFee *big.Int, tonPrice float64) float64 {
	return FromNano(managementFee) * tonPrice
}

// ActiveNativeBoost sucht das aktive Boost-Programm in nativer Währung für einen Pool.
func ActiveNativeBoost(boosts []model.Boost, lpAddress string, now time.Time) (model.Boost, bool) {
	for _, b := range boosts {
		if b.LiquidityPool == lpAddress && b.Asset == model.AssetNative && b.ActiveAt(now) {
			return b, true
		}
	}
	return model.Boost{}, false
}

// RewardsStats berechnet DPR, APR und APY aus den täglichen Boost-Belohnungen.
// Ein Pool ohne TVL hat keine Renditen.
func RewardsStats(boosts []model.Boost, lpAddress string, poolTVL, tonPrice float64, now time.Time) model.RewardsStats {
	var daily float64
	if b, ok := ActiveNativeBoost(boosts, lpAddress, now); ok && b.RewardPerDay != nil {
		daily = FromNano(b.RewardPerDay)
	}

	stats := model.RewardsStats{DailyUSD: daily * tonPrice}
	if poolTVL <= 0 {
		return stats
	}

	stats.APR = stats.DailyUSD * daysPerYear / poolTVL
	stats.APY = math.Pow(1+stats.APR/daysPerYear, daysPerYear) - 1
	stats.DPR = stats.APR / daysPerYear
	return stats
}

// LiquidityFraction liefert den Anteil des Vaults am LP-Angebot als exakten Bruch
// mit zehn Nachkommastellen.
func LiquidityFraction(depositedLP, lpTotalSupply *big.Int) string {
	if lpTotalSupply == nil || lpTotalSupply.Sign() == 0 || depositedLP == nil {
		return new(big.Rat).FloatString(10)
	}
	return new(big.Rat).SetFrac(depositedLP, lpTotalSupply).FloatString(10)
}

// FromNano wandelt Nano-Einheiten in ganze Einheiten um.
func FromNano(x *big.Int) float64 {
	if x == nil {
		return 0
	}
	return decimal.NewFromBigInt(x, -nanoDecimals).InexactFloat64()
}

// FormatUSD formatiert einen USD-Betrag mit zwei Nachkommastellen.
func FormatUSD(v float64) string {
	return formatFixed(v, 2)
}

// FormatRate formatiert eine Rate mit vier Nachkommastellen.
func FormatRate(v float64) string {
	return formatFixed(v, 4)
}

func formatFixed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return zeroString
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

// Summary fasst alle Vaults zusammen: Gesamt-TVL und TVL-gewichtete APR.
type Summary struct {
	Vaults      int     `json:"vaults"`
	TotalTVLUSD float64 `json:"totalTvlUsd"`
	WeightedAPR float64 `json:"weightedApr"`
}

// Summarize berechnet TVL-gewichtete Durchschnittswerte über alle Vaults.
// Datensätze mit unlesbaren Zahlen werden übersprungen.
func Summarize(vaults []model.VaultMetrics) Summary {
	var totalTVL, weightedAPR float64
	valid := 0
	for _, v := range vaults {
		tvl, err := decimal.NewFromString(v.TVLUSD)
		if err != nil {
			continue
		}
		apr, err := decimal.NewFromString(v.APR)
		if err != nil {
			continue
		}
		t := tvl.InexactFloat64()
		if t <= 0 {
			continue
		}
		totalTVL += t
		weightedAPR += apr.InexactFloat64() * t
		valid++
	}

	if valid == 0 || totalTVL <= 0 {
		return Summary{Vaults: len(vaults)}
	}
	return Summary{
		Vaults:      len(vaults),
		TotalTVLUSD: totalTVL,
		WeightedAPR: weightedAPR / totalTVL,
	}
}

// scaledNano rechnet x*1000/1e9 mit Ganzzahldivision.
func scaledNano(x *big.Int) float64 {
	if x == nil {
		return 0
	}
	v := new(big.Int).Mul(x, bigVault)
	v.Quo(v, oneNano)
	return toFloat(v)
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func toFloat(x *big.Int) float64 {
	f, _ := new(big.Float).SetInt(x).Float64()
	return f
}
