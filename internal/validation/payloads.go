// Package validation turns raw upstream payloads into model values, rejecting
// or filtering entries that cannot be valued.
package validation

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/vault-metrics/internal/aggregate"
	"github.com/yourorg/vault-metrics/internal/fault"
	"github.com/yourorg/vault-metrics/internal/model"
)

// maxDecimals bounds the decimals a jetton may declare
const maxDecimals = 255

// PoolPayload is the DEX answer for one pool.
type PoolPayload struct {
	TotalSupply string   `json:"totalSupply"`
	Assets      []string `json:"assets"`
	Reserves    []string `json:"reserves"`
}

// AssetPayload is one entry of the DEX asset list.
type AssetPayload struct {
	Type     string `json:"type"`
	Address  string `json:"address"`
	Price    string `json:"price"`
	Decimals int    `json:"decimals"`
}

// BoostPayload is one entry of the DEX boost list.
type BoostPayload struct {
	LiquidityPool string `json:"liquidityPool"`
	Asset         string `json:"asset"`
	Budget        string `json:"budget"`
	RewardPerDay  string `json:"rewardPerDay"`
	StartAt       string `json:"startAt"`
	EndAt         string `json:"endAt"`
}

// Pool validates a pool payload. A pool must name exactly two assets and two
// non-negative reserves; anything else cannot be priced.
func Pool(address string, p PoolPayload) (model.AssetPool, error) {
	if len(p.Assets) != 2 || len(p.Reserves) != 2 {
		return model.AssetPool{}, fmt.Errorf("%w: pool %s has %d assets and %d reserves",
			fault.ErrInvalidPayload, address, len(p.Assets), len(p.Reserves))
	}

	supply, err := parseAmount(p.TotalSupply)
	if err != nil {
		return model.AssetPool{}, fmt.Errorf("%w: pool %s total supply: %v", fault.ErrInvalidPayload, address, err)
	}

	pool := model.AssetPool{Address: address, TotalSupply: supply}
	for i := range p.Reserves {
		reserve, err := parseAmount(p.Reserves[i])
		if err != nil {
			return model.AssetPool{}, fmt.Errorf("%w: pool %s reserve %d: %v", fault.ErrInvalidPayload, address, i, err)
		}
		pool.Reserves[i] = reserve
		pool.Assets[i] = aggregate.ParseAsset(p.Assets[i])
	}
	return pool, nil
}

// Assets converts the asset list, dropping entries without a usable price or
// with out-of-range decimals.
func Assets(payloads []AssetPayload) []model.AssetRef {
	assets := make([]model.AssetRef, 0, len(payloads))
	for _, p := range payloads {
		price, err := strconv.ParseFloat(p.Price, 64)
		if err != nil || math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
			logrus.WithFields(logrus.Fields{
				"type":    p.Type,
				"address": p.Address,
				"price":   p.Price,
			}).Debug("Asset filtered: invalid price")
			continue
		}
		if p.Decimals < 0 || p.Decimals > maxDecimals {
			logrus.WithFields(logrus.Fields{
				"type":     p.Type,
				"address":  p.Address,
				"decimals": p.Decimals,
			}).Debug("Asset filtered: invalid decimals")
			continue
		}
		assets = append(assets, model.AssetRef{
			AssetKey: model.AssetKey{Type: p.Type, Address: p.Address},
			PriceUSD: price,
			Decimals: p.Decimals,
		})
	}
	return assets
}

// Boosts converts the boost list, dropping entries with unreadable amounts or
// an empty time window.
func Boosts(payloads []BoostPayload) []model.Boost {
	boosts := make([]model.Boost, 0, len(payloads))
	for _, p := range payloads {
		b, err := boost(p)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"pool":  p.LiquidityPool,
				"asset": p.Asset,
			}).WithError(err).Debug("Boost filtered")
			continue
		}
		boosts = append(boosts, b)
	}
	return boosts
}

func boost(p BoostPayload) (model.Boost, error) {
	reward, err := parseAmount(p.RewardPerDay)
	if err != nil {
		return model.Boost{}, fmt.Errorf("reward per day: %w", err)
	}
	budget := new(big.Int)
	if p.Budget != "" {
		if budget, err = parseAmount(p.Budget); err != nil {
			return model.Boost{}, fmt.Errorf("budget: %w", err)
		}
	}
	start, err := parseTime(p.StartAt)
	if err != nil {
		return model.Boost{}, fmt.Errorf("start: %w", err)
	}
	end, err := parseTime(p.EndAt)
	if err != nil {
		return model.Boost{}, fmt.Errorf("end: %w", err)
	}
	if !end.After(start) {
		return model.Boost{}, fmt.Errorf("empty window %s..%s", p.StartAt, p.EndAt)
	}
	return model.Boost{
		LiquidityPool: p.LiquidityPool,
		Asset:         p.Asset,
		Budget:        budget,
		RewardPerDay:  reward,
		StartAt:       start,
		EndAt:         end,
	}, nil
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("not an integer: %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount: %s", s)
	}
	return v, nil
}

// parseTime accepts RFC 3339 timestamps and unix seconds.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unreadable time %q", s)
	}
	return time.Unix(secs, 0).UTC(), nil
}
