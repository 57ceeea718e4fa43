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

package amm

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/openpad-io/openpad/asset"
	"github.com/shopspring/decimal"
)

// Pool is a constant-product (x*y=k) pool over two assets. LP shares are a
// plain asset book, so they can be transferred and time-locked like any
// other token.
type Pool struct {
	TokenA   asset.Asset
	TokenB   asset.Asset
	lpToken  *asset.Book
	escrow   asset.Address
	reserveA *uint256.Int
	reserveB *uint256.Int
	mu       sync.RWMutex
}

// Reserves returns the current pool reserves.
func (p *Pool) Reserves() (*uint256.Int, *uint256.Int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(uint256.Int).Set(p.reserveA), new(uint256.Int).Set(p.reserveB)
}

// LPToken returns the pool-share asset.
func (p *Pool) LPToken() asset.Asset {
	return p.lpToken
}

// SpotPrice returns the price of one TokenA unit in TokenB units.
func (p *Pool) SpotPrice() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.reserveA.IsZero() {
		return decimal.Zero
	}
	a := decimal.NewFromBigInt(p.reserveA.ToBig(), 0)
	b := decimal.NewFromBigInt(p.reserveB.ToBig(), 0)
	return b.Div(a)
}

// Quote returns the TokenB amount matching amountA at the current reserve
// ratio, the amount a liquidity provider must pair with amountA.
func (p *Pool) Quote(amountA *uint256.Int) decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.reserveA.IsZero() {
		return decimal.Zero
	}
	a := decimal.NewFromBigInt(amountA.ToBig(), 0)
	return a.Mul(decimal.NewFromBigInt(p.reserveB.ToBig(), 0)).
		Div(decimal.NewFromBigInt(p.reserveA.ToBig(), 0))
}

type pairKey struct {
	a string
	b string
}

func keyFor(tokenA, tokenB asset.Asset) pairKey {
	a, b := tokenA.Symbol(), tokenB.Symbol()
	if a > b {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

type PoolRouterConfig struct {
	Logger *slog.Logger
	// NowFunc overrides the deadline clock, for tests.
	NowFunc func() time.Time
}

// PoolRouter is the in-process Router: it maintains constant-product pools
// keyed by asset pair and mints LP units into per-pool share books.
type PoolRouter struct {
	config PoolRouterConfig
	logger *slog.Logger
	pools  map[pairKey]*Pool
	mu     sync.RWMutex
}

func NewPoolRouter(config PoolRouterConfig) *PoolRouter {
	r := &PoolRouter{
		config: config,
		pools:  make(map[pairKey]*Pool),
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		r.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		r.logger = config.Logger
	}
	return r
}

func (r *PoolRouter) now() time.Time {
	if r.config.NowFunc != nil {
		return r.config.NowFunc()
	}
	return time.Now()
}

func (r *PoolRouter) CreatePair(tokenA, tokenB asset.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := keyFor(tokenA, tokenB)
	if _, ok := r.pools[key]; ok {
		return ErrPairExists
	}
	lpSymbol := fmt.Sprintf("LP-%s-%s", key.a, key.b)
	r.pools[key] = &Pool{
		TokenA:   tokenA,
		TokenB:   tokenB,
		lpToken:  asset.NewBook(lpSymbol, 18),
		escrow:   asset.Address("amm:" + lpSymbol),
		reserveA: uint256.NewInt(0),
		reserveB: uint256.NewInt(0),
	}
	r.logger.Debug(
		"created pair",
		"component", "amm",
		"pair", lpSymbol,
	)
	return nil
}

// Pair returns the pool for the two assets, if one exists.
func (r *PoolRouter) Pair(tokenA, tokenB asset.Asset) (*Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pool, ok := r.pools[keyFor(tokenA, tokenB)]
	return pool, ok
}

func (r *PoolRouter) AddLiquidity(
	params AddLiquidityParams,
) (*AddLiquidityResult, error) {
	if !params.Deadline.IsZero() && r.now().After(params.Deadline) {
		return nil, ErrDeadlineExpired
	}
	r.mu.RLock()
	pool, ok := r.pools[keyFor(params.TokenA, params.TokenB)]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrPairNotFound
	}
	pool.mu.Lock()
	defer pool.mu.Unlock()
	usedA := new(uint256.Int).Set(params.AmountA)
	usedB := new(uint256.Int).Set(params.AmountB)
	if !pool.reserveA.IsZero() {
		// Keep the reserve ratio: scale one side down to match the other
		optimalB := new(uint256.Int).Mul(usedA, pool.reserveB)
		optimalB.Div(optimalB, pool.reserveA)
		if optimalB.Cmp(usedB) <= 0 {
			usedB = optimalB
		} else {
			optimalA := new(uint256.Int).Mul(usedB, pool.reserveA)
			optimalA.Div(optimalA, pool.reserveB)
			usedA = optimalA
		}
	}
	if params.MinA != nil && usedA.Lt(params.MinA) {
		return nil, fmt.Errorf("%w: %s < %s", ErrInsufficientAmount, usedA, params.MinA)
	}
	if params.MinB != nil && usedB.Lt(params.MinB) {
		return nil, fmt.Errorf("%w: %s < %s", ErrInsufficientAmount, usedB, params.MinB)
	}
	// Liquidity minted: sqrt(a*b) on first provision, proportional after
	var liquidity *uint256.Int
	if pool.reserveA.IsZero() {
		product := new(uint256.Int).Mul(usedA, usedB)
		liquidity = new(uint256.Int).Sqrt(product)
	} else {
		supply := pool.lpToken.TotalSupply()
		byA := new(uint256.Int).Mul(usedA, supply)
		byA.Div(byA, pool.reserveA)
		byB := new(uint256.Int).Mul(usedB, supply)
		byB.Div(byB, pool.reserveB)
		liquidity = byA
		if byB.Lt(byA) {
			liquidity = byB
		}
	}
	if liquidity.IsZero() {
		return nil, ErrZeroLiquidity
	}
	// Pull both legs into pool escrow; unwind the first if the second fails
	if err := asset.Move(params.TokenA, params.From, pool.escrow, usedA); err != nil {
		return nil, err
	}
	if err := asset.Move(params.TokenB, params.From, pool.escrow, usedB); err != nil {
		if uerr := asset.Move(params.TokenA, pool.escrow, params.From, usedA); uerr != nil {
			r.logger.Error(
				"failed to unwind partial liquidity provision",
				"component", "amm",
				"error", uerr,
			)
		}
		return nil, err
	}
	pool.reserveA.Add(pool.reserveA, usedA)
	pool.reserveB.Add(pool.reserveB, usedB)
	to := params.To
	if to == asset.ZeroAddress {
		to = params.From
	}
	pool.lpToken.Mint(to, liquidity)
	r.logger.Debug(
		"added liquidity",
		"component", "amm",
		"pair", pool.lpToken.Symbol(),
		"used_a", usedA.String(),
		"used_b", usedB.String(),
		"liquidity", liquidity.String(),
	)
	return &AddLiquidityResult{
		UsedA:     usedA,
		UsedB:     usedB,
		Liquidity: liquidity,
		LPToken:   pool.lpToken,
	}, nil
}

func (r *PoolRouter) RemoveLiquidity(
	params RemoveLiquidityParams,
) (*RemoveLiquidityResult, error) {
	if params.Liquidity == nil || params.Liquidity.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	r.mu.RLock()
	pool, ok := r.pools[keyFor(params.TokenA, params.TokenB)]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrPairNotFound
	}
	pool.mu.Lock()
	defer pool.mu.Unlock()
	supply := pool.lpToken.TotalSupply()
	if supply.IsZero() || supply.Lt(params.Liquidity) {
		return nil, ErrInsufficientLiquidity
	}
	amountA := new(uint256.Int).Mul(params.Liquidity, pool.reserveA)
	amountA.Div(amountA, supply)
	amountB := new(uint256.Int).Mul(params.Liquidity, pool.reserveB)
	amountB.Div(amountB, supply)
	if err := pool.lpToken.Burn(params.From, params.Liquidity); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInsufficientLiquidity, err)
	}
	to := params.To
	if to == asset.ZeroAddress {
		to = params.From
	}
	// Pay out both legs; re-mint the burned units if either payout fails
	if err := asset.Move(pool.TokenA, pool.escrow, to, amountA); err != nil {
		pool.lpToken.Mint(params.From, params.Liquidity)
		return nil, err
	}
	if err := asset.Move(pool.TokenB, pool.escrow, to, amountB); err != nil {
		if uerr := asset.Move(pool.TokenA, to, pool.escrow, amountA); uerr != nil {
			r.logger.Error(
				"failed to unwind partial liquidity withdrawal",
				"component", "amm",
				"error", uerr,
			)
		}
		pool.lpToken.Mint(params.From, params.Liquidity)
		return nil, err
	}
	pool.reserveA.Sub(pool.reserveA, amountA)
	pool.reserveB.Sub(pool.reserveB, amountB)
	r.logger.Debug(
		"removed liquidity",
		"component", "amm",
		"pair", pool.lpToken.Symbol(),
		"amount_a", amountA.String(),
		"amount_b", amountB.String(),
		"liquidity", params.Liquidity.String(),
	)
	return &RemoveLiquidityResult{
		AmountA: amountA,
		AmountB: amountB,
	}, nil
}
