// Copyright 2025 OpenPad Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package amm_test

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/openpad-io/openpad/amm"
	"github.com/openpad-io/openpad/asset"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const provider = asset.Address("provider")

func newFundedPair(t *testing.T) (*amm.PoolRouter, *asset.Book, *asset.Book) {
	t.Helper()
	router := amm.NewPoolRouter(amm.PoolRouterConfig{})
	tokenA := asset.NewBook("AAA", 18)
	tokenB := asset.NewBook("BBB", 18)
	tokenA.Mint(provider, uint256.NewInt(1_000_000))
	tokenB.Mint(provider, uint256.NewInt(1_000_000))
	require.NoError(t, router.CreatePair(tokenA, tokenB))
	return router, tokenA, tokenB
}

func TestCreatePairDuplicate(t *testing.T) {
	router, tokenA, tokenB := newFundedPair(t)
	assert.ErrorIs(t, router.CreatePair(tokenA, tokenB), amm.ErrPairExists)
	// Pair identity is order-independent
	assert.ErrorIs(t, router.CreatePair(tokenB, tokenA), amm.ErrPairExists)
}

func TestAddLiquidityPairNotFound(t *testing.T) {
	router := amm.NewPoolRouter(amm.PoolRouterConfig{})
	tokenA := asset.NewBook("AAA", 18)
	tokenB := asset.NewBook("BBB", 18)
	_, err := router.AddLiquidity(amm.AddLiquidityParams{
		TokenA:  tokenA,
		TokenB:  tokenB,
		From:    provider,
		AmountA: uint256.NewInt(10),
		AmountB: uint256.NewInt(10),
	})
	assert.ErrorIs(t, err, amm.ErrPairNotFound)
}

func TestAddLiquidityFirstProvision(t *testing.T) {
	router, tokenA, tokenB := newFundedPair(t)
	result, err := router.AddLiquidity(amm.AddLiquidityParams{
		TokenA:  tokenA,
		TokenB:  tokenB,
		From:    provider,
		AmountA: uint256.NewInt(400),
		AmountB: uint256.NewInt(100),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(400), result.UsedA.Uint64())
	assert.Equal(t, uint64(100), result.UsedB.Uint64())
	// First mint is sqrt(a*b)
	assert.Equal(t, uint64(200), result.Liquidity.Uint64())
	assert.Equal(
		t,
		uint64(200),
		result.LPToken.BalanceOf(provider).Uint64(),
	)
	pool, ok := router.Pair(tokenA, tokenB)
	require.True(t, ok)
	reserveA, reserveB := pool.Reserves()
	assert.Equal(t, uint64(400), reserveA.Uint64())
	assert.Equal(t, uint64(100), reserveB.Uint64())
	assert.True(t, pool.SpotPrice().Equal(decimal.RequireFromString("0.25")))
}

func TestAddLiquidityMatchesReserveRatio(t *testing.T) {
	router, tokenA, tokenB := newFundedPair(t)
	_, err := router.AddLiquidity(amm.AddLiquidityParams{
		TokenA:  tokenA,
		TokenB:  tokenB,
		From:    provider,
		AmountA: uint256.NewInt(400),
		AmountB: uint256.NewInt(100),
	})
	require.NoError(t, err)
	// Offer B in excess of the 4:1 ratio; the surplus stays with the provider
	result, err := router.AddLiquidity(amm.AddLiquidityParams{
		TokenA:  tokenA,
		TokenB:  tokenB,
		From:    provider,
		AmountA: uint256.NewInt(40),
		AmountB: uint256.NewInt(99),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(40), result.UsedA.Uint64())
	assert.Equal(t, uint64(10), result.UsedB.Uint64())
	// Proportional mint: 40/400 of the 200 existing supply
	assert.Equal(t, uint64(20), result.Liquidity.Uint64())
}

func TestAddLiquidityMinimumEnforced(t *testing.T) {
	router, tokenA, tokenB := newFundedPair(t)
	_, err := router.AddLiquidity(amm.AddLiquidityParams{
		TokenA:  tokenA,
		TokenB:  tokenB,
		From:    provider,
		AmountA: uint256.NewInt(400),
		AmountB: uint256.NewInt(100),
	})
	require.NoError(t, err)
	// Ratio matching would scale B down to 10, below the stated minimum
	_, err = router.AddLiquidity(amm.AddLiquidityParams{
		TokenA:  tokenA,
		TokenB:  tokenB,
		From:    provider,
		AmountA: uint256.NewInt(40),
		AmountB: uint256.NewInt(99),
		MinB:    uint256.NewInt(50),
	})
	assert.ErrorIs(t, err, amm.ErrInsufficientAmount)
}

func TestAddLiquidityDeadline(t *testing.T) {
	now := time.Now()
	router := amm.NewPoolRouter(amm.PoolRouterConfig{
		NowFunc: func() time.Time { return now },
	})
	tokenA := asset.NewBook("AAA", 18)
	tokenB := asset.NewBook("BBB", 18)
	tokenA.Mint(provider, uint256.NewInt(100))
	tokenB.Mint(provider, uint256.NewInt(100))
	require.NoError(t, router.CreatePair(tokenA, tokenB))
	_, err := router.AddLiquidity(amm.AddLiquidityParams{
		TokenA:   tokenA,
		TokenB:   tokenB,
		From:     provider,
		AmountA:  uint256.NewInt(10),
		AmountB:  uint256.NewInt(10),
		Deadline: now.Add(-time.Second),
	})
	assert.ErrorIs(t, err, amm.ErrDeadlineExpired)
}

func TestAddLiquidityUnwindsFirstLeg(t *testing.T) {
	router := amm.NewPoolRouter(amm.PoolRouterConfig{})
	tokenA := asset.NewBook("AAA", 18)
	tokenB := asset.NewBook("BBB", 18)
	tokenA.Mint(provider, uint256.NewInt(100))
	// No tokenB balance, so the second leg fails
	require.NoError(t, router.CreatePair(tokenA, tokenB))
	_, err := router.AddLiquidity(amm.AddLiquidityParams{
		TokenA:  tokenA,
		TokenB:  tokenB,
		From:    provider,
		AmountA: uint256.NewInt(50),
		AmountB: uint256.NewInt(50),
	})
	require.Error(t, err)
	// The already-pulled tokenA leg came back
	assert.Equal(t, uint64(100), tokenA.BalanceOf(provider).Uint64())
	pool, ok := router.Pair(tokenA, tokenB)
	require.True(t, ok)
	reserveA, reserveB := pool.Reserves()
	assert.True(t, reserveA.IsZero())
	assert.True(t, reserveB.IsZero())
}

func TestAddLiquidityMintsToDesignatedRecipient(t *testing.T) {
	router, tokenA, tokenB := newFundedPair(t)
	recipient := asset.Address("lp-holder")
	result, err := router.AddLiquidity(amm.AddLiquidityParams{
		TokenA:  tokenA,
		TokenB:  tokenB,
		From:    provider,
		To:      recipient,
		AmountA: uint256.NewInt(100),
		AmountB: uint256.NewInt(100),
	})
	require.NoError(t, err)
	assert.Equal(
		t,
		result.Liquidity.Uint64(),
		result.LPToken.BalanceOf(recipient).Uint64(),
	)
	assert.True(t, result.LPToken.BalanceOf(provider).IsZero())
}

func TestRemoveLiquidity(t *testing.T) {
	router, tokenA, tokenB := newFundedPair(t)
	added, err := router.AddLiquidity(amm.AddLiquidityParams{
		TokenA:  tokenA,
		TokenB:  tokenB,
		From:    provider,
		AmountA: uint256.NewInt(400),
		AmountB: uint256.NewInt(100),
	})
	require.NoError(t, err)
	// Withdraw half the position
	result, err := router.RemoveLiquidity(amm.RemoveLiquidityParams{
		TokenA:    tokenA,
		TokenB:    tokenB,
		From:      provider,
		Liquidity: uint256.NewInt(100),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(200), result.AmountA.Uint64())
	assert.Equal(t, uint64(50), result.AmountB.Uint64())
	assert.Equal(t, uint64(100), added.LPToken.BalanceOf(provider).Uint64())
	pool, ok := router.Pair(tokenA, tokenB)
	require.True(t, ok)
	reserveA, reserveB := pool.Reserves()
	assert.Equal(t, uint64(200), reserveA.Uint64())
	assert.Equal(t, uint64(50), reserveB.Uint64())
	// The remainder drains the pool and makes the provider whole
	_, err = router.RemoveLiquidity(amm.RemoveLiquidityParams{
		TokenA:    tokenA,
		TokenB:    tokenB,
		From:      provider,
		Liquidity: uint256.NewInt(100),
	})
	require.NoError(t, err)
	reserveA, reserveB = pool.Reserves()
	assert.True(t, reserveA.IsZero())
	assert.True(t, reserveB.IsZero())
	assert.Equal(t, uint64(1_000_000), tokenA.BalanceOf(provider).Uint64())
	assert.Equal(t, uint64(1_000_000), tokenB.BalanceOf(provider).Uint64())
}

func TestRemoveLiquidityInsufficient(t *testing.T) {
	router, tokenA, tokenB := newFundedPair(t)
	_, err := router.AddLiquidity(amm.AddLiquidityParams{
		TokenA:  tokenA,
		TokenB:  tokenB,
		From:    provider,
		AmountA: uint256.NewInt(400),
		AmountB: uint256.NewInt(100),
	})
	require.NoError(t, err)
	// An account without LP units cannot withdraw
	_, err = router.RemoveLiquidity(amm.RemoveLiquidityParams{
		TokenA:    tokenA,
		TokenB:    tokenB,
		From:      asset.Address("stranger"),
		Liquidity: uint256.NewInt(100),
	})
	assert.ErrorIs(t, err, amm.ErrInsufficientLiquidity)
	// Nor can anyone withdraw more than the outstanding supply
	_, err = router.RemoveLiquidity(amm.RemoveLiquidityParams{
		TokenA:    tokenA,
		TokenB:    tokenB,
		From:      provider,
		Liquidity: uint256.NewInt(201),
	})
	assert.ErrorIs(t, err, amm.ErrInsufficientLiquidity)
}

func TestQuote(t *testing.T) {
	router, tokenA, tokenB := newFundedPair(t)
	pool, ok := router.Pair(tokenA, tokenB)
	require.True(t, ok)
	// Empty pool has no meaningful quote
	assert.True(t, pool.Quote(uint256.NewInt(10)).IsZero())
	_, err := router.AddLiquidity(amm.AddLiquidityParams{
		TokenA:  tokenA,
		TokenB:  tokenB,
		From:    provider,
		AmountA: uint256.NewInt(400),
		AmountB: uint256.NewInt(100),
	})
	require.NoError(t, err)
	assert.True(
		t,
		pool.Quote(uint256.NewInt(40)).Equal(decimal.NewFromInt(10)),
	)
}
