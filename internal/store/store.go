// Package store persists vault snapshots as Redis hashes.
//
// Key space (one hash per entity):
//
//	vault_data:<vault>        flat vault record, computedAt and checksum
//	token_metadata:<jetton>   jetton metadata, keyed by raw address
//	kpi_target:<vault>        static KPI targets
//	kpi_current:<vault>       KPI values of the last snapshot
//
// Vault keys use the friendly address form.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/vault-metrics/internal/chain"
	"github.com/yourorg/vault-metrics/internal/fault"
	"github.com/yourorg/vault-metrics/internal/integrity"
	"github.com/yourorg/vault-metrics/internal/model"
)

// Key prefixes
const (
	VaultPrefix      = "vault_data:"
	TokenPrefix      = "token_metadata:"
	KPITargetPrefix  = "kpi_target:"
	KPICurrentPrefix = "kpi_current:"
)

const (
	computedAtField = "computedAt"
	scanCount       = 100
	metadataTTL     = time.Minute
)

// Store reads and writes snapshots.
type Store struct {
	rdb      *redis.Client
	metadata *gocache.Cache
}

// Connect opens a client from a redis:// URL and checks it with a ping.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// New creates a Store over rdb.
func New(rdb *redis.Client) *Store {
	return &Store{
		rdb:      rdb,
		metadata: gocache.New(metadataTTL, 2*metadataTTL),
	}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// SaveSnapshot writes the vault record, its current KPIs and the metadata of
// its LP and PLP jettons in one MULTI/EXEC transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	m := snap.Metrics
	vault, err := chain.ToFriendly(m.VaultAddress)
	if err != nil {
		return fmt.Errorf("snapshot vault address: %w", err)
	}

	fields := VaultFields(m.VaultData)
	fields[computedAtField] = snap.ComputedAt.UTC().Format(time.RFC3339Nano)
	fields[integrity.ChecksumField] = integrity.Checksum(fields)

	tokens := make(map[string]model.TokenMetadata, 2)
	for _, md := range []model.TokenMetadata{m.LPMetadata, m.PLPMetadata} {
		if md.Address == "" {
			continue
		}
		raw, err := chain.ToRaw(md.Address)
		if err != nil {
			return fmt.Errorf("token metadata address: %w", err)
		}
		tokens[raw] = md
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		// fields of an older layout would break the checksum
		pipe.Del(ctx, VaultPrefix+vault)
		pipe.HSet(ctx, VaultPrefix+vault, toArgs(fields))
		pipe.HSet(ctx, KPICurrentPrefix+vault, toArgs(kpiFields(m.KPIs.Currents())))
		for raw, md := range tokens {
			pipe.HSet(ctx, TokenPrefix+raw, toArgs(tokenFields(md)))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot of %s: %w", vault, err)
	}

	for raw := range tokens {
		s.metadata.Delete(raw)
	}
	logrus.WithFields(logrus.Fields{
		"vault":      vault,
		"computedAt": snap.ComputedAt,
	}).Debug("Snapshot saved")
	return nil
}

// SaveKPITarget stores the static KPI targets of vault.
func (s *Store) SaveKPITarget(ctx context.Context, vault string, kpis model.KPISet) error {
	friendly, err := chain.ToFriendly(vault)
	if err != nil {
		return err
	}
	if err := s.rdb.HSet(ctx, KPITargetPrefix+friendly, toArgs(kpiFields(kpis))).Err(); err != nil {
		return fmt.Errorf("failed to save kpi targets of %s: %w", friendly, err)
	}
	return nil
}

// SaveTokenMetadata stores md under its raw jetton address.
func (s *Store) SaveTokenMetadata(ctx context.Context, md model.TokenMetadata) error {
	raw, err := chain.ToRaw(md.Address)
	if err != nil {
		return err
	}
	if err := s.rdb.HSet(ctx, TokenPrefix+raw, toArgs(tokenFields(md))).Err(); err != nil {
		return fmt.Errorf("failed to save token metadata of %s: %w", raw, err)
	}
	s.metadata.Delete(raw)
	return nil
}

// VaultAddresses lists the vaults that have a snapshot, sorted.
func (s *Store) VaultAddresses(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	iter := s.rdb.Scan(ctx, 0, VaultPrefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		// SCAN may return a key more than once
		seen[strings.TrimPrefix(iter.Val(), VaultPrefix)] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan vault keys: %w", err)
	}

	out := make([]string, 0, len(seen))
	for addr := range seen {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out, nil
}

// VaultData reads the flat record of vault and the time it was computed.
func (s *Store) VaultData(ctx context.Context, vault string) (model.VaultData, time.Time, error) {
	friendly, err := chain.ToFriendly(vault)
	if err != nil {
		return model.VaultData{}, time.Time{}, err
	}

	fields, err := s.hash(ctx, VaultPrefix+friendly)
	if err != nil {
		return model.VaultData{}, time.Time{}, err
	}
	if _, ok := fields[integrity.ChecksumField]; ok && !integrity.Verify(fields) {
		return model.VaultData{}, time.Time{}, fmt.Errorf("%w: %s", fault.ErrSnapshotCorrupt, friendly)
	}

	var computedAt time.Time
	if v := fields[computedAtField]; v != "" {
		computedAt, err = time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return model.VaultData{}, time.Time{}, fmt.Errorf("%w: computedAt of %s: %v", fault.ErrSnapshotCorrupt, friendly, err)
		}
	}

	data := vaultFromFields(fields)
	data.VaultAddress = friendly
	return data, computedAt, nil
}

// TokenMetadata reads the metadata of the jetton at address.
func (s *Store) TokenMetadata(ctx context.Context, address string) (model.TokenMetadata, error) {
	raw, err := chain.ToRaw(address)
	if err != nil {
		return model.TokenMetadata{}, err
	}
	if cached, ok := s.metadata.Get(raw); ok {
		return cached.(model.TokenMetadata), nil
	}

	fields, err := s.hash(ctx, TokenPrefix+raw)
	if err != nil {
		return model.TokenMetadata{}, err
	}
	md := model.TokenMetadata{
		Address:  raw,
		Name:     fields["name"],
		Symbol:   fields["symbol"],
		Decimals: fields["decimals"],
		Image:    fields["image"],
	}
	s.metadata.SetDefault(raw, md)
	return md, nil
}

// KPITarget reads the KPI targets of vault.
func (s *Store) KPITarget(ctx context.Context, vault string) (model.KPISet, error) {
	return s.kpis(ctx, KPITargetPrefix, vault)
}

// KPICurrent reads the KPI values of the last snapshot of vault.
func (s *Store) KPICurrent(ctx context.Context, vault string) (model.KPISet, error) {
	return s.kpis(ctx, KPICurrentPrefix, vault)
}

// ListVaults assembles the full record of every stored vault. Corrupt
// snapshots are skipped; missing metadata or KPIs leave their fields empty.
func (s *Store) ListVaults(ctx context.Context) ([]model.VaultMetrics, error) {
	vaults, err := s.VaultAddresses(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.VaultMetrics, 0, len(vaults))
	for _, vault := range vaults {
		m, err := s.vaultMetrics(ctx, vault)
		if errors.Is(err, fault.ErrSnapshotCorrupt) || errors.Is(err, fault.ErrNotFoundInStore) {
			logrus.WithField("vault", vault).WithError(err).Warn("Skipping unreadable snapshot")
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) vaultMetrics(ctx context.Context, vault string) (model.VaultMetrics, error) {
	data, computedAt, err := s.VaultData(ctx, vault)
	if err != nil {
		return model.VaultMetrics{}, err
	}

	m := model.VaultMetrics{VaultData: data, ComputedAt: computedAt}
	if m.LPMetadata, err = s.optionalMetadata(ctx, data.LPAddress); err != nil {
		return model.VaultMetrics{}, err
	}
	if m.PLPMetadata, err = s.optionalMetadata(ctx, vault); err != nil {
		return model.VaultMetrics{}, err
	}

	target, err := s.KPITarget(ctx, vault)
	if err != nil && !errors.Is(err, fault.ErrNotFoundInStore) {
		return model.VaultMetrics{}, err
	}
	current, err := s.KPICurrent(ctx, vault)
	if err != nil && !errors.Is(err, fault.ErrNotFoundInStore) {
		return model.VaultMetrics{}, err
	}
	m.KPIs = model.NewKPIBlock(target, current)
	return m, nil
}

func (s *Store) optionalMetadata(ctx context.Context, address string) (model.TokenMetadata, error) {
	if address == "" {
		return model.TokenMetadata{}, nil
	}
	md, err := s.TokenMetadata(ctx, address)
	if errors.Is(err, fault.ErrNotFoundInStore) {
		return model.TokenMetadata{}, nil
	}
	return md, err
}

func (s *Store) kpis(ctx context.Context, prefix, vault string) (model.KPISet, error) {
	friendly, err := chain.ToFriendly(vault)
	if err != nil {
		return model.KPISet{}, err
	}
	fields, err := s.hash(ctx, prefix+friendly)
	if err != nil {
		return model.KPISet{}, err
	}
	return model.KPISet{
		TVL:               fields["tvl"],
		LiquidityFraction: fields["liquidityFraction"],
		Revenue:           fields["revenue"],
	}, nil
}

func (s *Store) hash(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", fault.ErrNotFoundInStore, key)
	}
	return fields, nil
}

// VaultFields flattens a vault record into hash fields. The vault address is
// carried by the key and not stored.
func VaultFields(d model.VaultData) map[string]string {
	return map[string]string{
		"name":                  d.Name,
		"vaultAddressFormatted": d.VaultAddressFormatted,
		"lpAddress":             d.LPAddress,
		"lpTotalSupply":         d.LPTotalSupply,
		"plpTotalSupply":        d.PLPTotalSupply,
		"plpPriceUsd":           d.PLPPriceUSD,
		"lpPriceUsd":            d.LPPriceUSD,
		"tvlUsd":                d.TVLUSD,
		"pendingRewardsUSD":     d.PendingRewardsUSD,
		"dpr":                   d.DPR,
		"apr":                   d.APR,
		"apy":                   d.APY,
		"dailyUsdRewards":       d.DailyUSDRewards,
		"managementFee":         d.ManagementFee,
	}
}

func vaultFromFields(f map[string]string) model.VaultData {
	return model.VaultData{
		Name:                  f["name"],
		VaultAddressFormatted: f["vaultAddressFormatted"],
		LPAddress:             f["lpAddress"],
		LPTotalSupply:         f["lpTotalSupply"],
		PLPTotalSupply:        f["plpTotalSupply"],
		PLPPriceUSD:           f["plpPriceUsd"],
		LPPriceUSD:            f["lpPriceUsd"],
		TVLUSD:                f["tvlUsd"],
		PendingRewardsUSD:     f["pendingRewardsUSD"],
		DPR:                   f["dpr"],
		APR:                   f["apr"],
		APY:                   f["apy"],
		DailyUSDRewards:       f["dailyUsdRewards"],
		ManagementFee:         f["managementFee"],
	}
}

func kpiFields(k model.KPISet) map[string]string {
	return map[string]string{
		"tvl":               k.TVL,
		"liquidityFraction": k.LiquidityFraction,
		"revenue":           k.Revenue,
	}
}

func tokenFields(md model.TokenMetadata) map[string]string {
	return map[string]string{
		"address":  md.Address,
		"name":     md.Name,
		"symbol":   md.Symbol,
		"decimals": md.Decimals,
		"image":    md.Image,
	}
}

func toArgs(fields map[string]string) map[string]interface{} {
	args := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		args[k] = v
	}
	return args
}
