package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/address"

	"github.com/yourorg/vault-metrics/internal/model"
)

// Get-method stack layouts of the vault, strategy and reward distribution contracts.
const (
	// get_vault_data
	vaultStrategyIdx         = 0
	vaultDistributionPoolIdx = 1
	vaultDepositedLPIdx      = 2
	vaultManagementFeeIdx    = 3

	// get_strategy_data
	strategyPoolIdx = 0

	// get_rewards_data
	rewardsDataURIIdx = 1

	// get_account_data
	accountTotalPaidIdx = 2
)

// VaultData reads the vault's strategy, reward pool, deposited LP and accrued fee.
func (c *Client) VaultData(ctx context.Context, vault *address.Address) (model.VaultOnchainData, error) {
	stack, err := c.RunGetMethod(ctx, vault, "get_vault_data")
	if err != nil {
		return model.VaultOnchainData{}, fmt.Errorf("get_vault_data: %w", err)
	}

	strategy, err := stack.Address(vaultStrategyIdx)
	if err != nil {
		return model.VaultOnchainData{}, fmt.Errorf("strategy address: %w", err)
	}
	pool, err := stack.Address(vaultDistributionPoolIdx)
	if err != nil {
		return model.VaultOnchainData{}, fmt.Errorf("distribution pool address: %w", err)
	}
	deposited, err := stack.Int(vaultDepositedLPIdx)
	if err != nil {
		return model.VaultOnchainData{}, fmt.Errorf("deposited lp: %w", err)
	}
	fee, err := stack.Int(vaultManagementFeeIdx)
	if err != nil {
		return model.VaultOnchainData{}, fmt.Errorf("management fee: %w", err)
	}

	return model.VaultOnchainData{
		ManagementFee:           fee,
		DepositedLP:             deposited,
		StrategyAddress:         Friendly(strategy),
		DistributionPoolAddress: Friendly(pool),
	}, nil
}

// EstimatedLPAmount returns how many LP tokens amount vault shares redeem for.
func (c *Client) EstimatedLPAmount(ctx context.Context, vault *address.Address, amount *big.Int) (*big.Int, error) {
	stack, err := c.RunGetMethod(ctx, vault, "get_estimated_lp_amount", IntArg(amount))
	if err != nil {
		return nil, fmt.Errorf("get_estimated_lp_amount: %w", err)
	}
	return stack.Int(0)
}

// StrategyData reads the DEX pool the strategy provides liquidity to.
func (c *Client) StrategyData(ctx context.Context, strategy *address.Address) (model.StrategyData, error) {
	stack, err := c.RunGetMethod(ctx, strategy, "get_strategy_data")
	if err != nil {
		return model.StrategyData{}, fmt.Errorf("get_strategy_data: %w", err)
	}
	pool, err := stack.Address(strategyPoolIdx)
	if err != nil {
		return model.StrategyData{}, fmt.Errorf("pool address: %w", err)
	}
	return model.StrategyData{PoolAddress: Friendly(pool)}, nil
}

// DistributionAccountAddress resolves the reward account of owner in pool.
func (c *Client) DistributionAccountAddress(ctx context.Context, pool, owner *address.Address) (*address.Address, error) {
	stack, err := c.RunGetMethod(ctx, pool, "get_account_address", AddressArg(owner))
	if err != nil {
		return nil, fmt.Errorf("get_account_address: %w", err)
	}
	return stack.Address(0)
}

// RewardsDataURI returns the content address of the pool's current reward ledger.
func (c *Client) RewardsDataURI(ctx context.Context, pool *address.Address) (string, error) {
	stack, err := c.RunGetMethod(ctx, pool, "get_rewards_data")
	if err != nil {
		return "", fmt.Errorf("get_rewards_data: %w", err)
	}
	return stack.String(rewardsDataURIIdx)
}

// DistributionAccountPaid returns the total rewards already paid out to a reward account.
func (c *Client) DistributionAccountPaid(ctx context.Context, account *address.Address) (*big.Int, error) {
	stack, err := c.RunGetMethod(ctx, account, "get_account_data")
	if err != nil {
		return nil, fmt.Errorf("get_account_data: %w", err)
	}
	return stack.Int(accountTotalPaidIdx)
}
