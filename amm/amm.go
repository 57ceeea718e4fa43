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
	"errors"
	"time"

	"github.com/holiman/uint256"
	"github.com/openpad-io/openpad/asset"
)

var (
	ErrPairExists            = errors.New("pair already exists")
	ErrPairNotFound          = errors.New("pair not found")
	ErrDeadlineExpired       = errors.New("deadline expired")
	ErrInsufficientAmount    = errors.New("amount below minimum")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrZeroLiquidity         = errors.New("zero liquidity minted")
)

// AddLiquidityParams describes a liquidity provision request. Amounts are
// pulled from the From account; minted LP units are credited to To.
type AddLiquidityParams struct {
	TokenA   asset.Asset
	TokenB   asset.Asset
	From     asset.Address
	To       asset.Address
	AmountA  *uint256.Int
	AmountB  *uint256.Int
	MinA     *uint256.Int
	MinB     *uint256.Int
	Deadline time.Time
}

// AddLiquidityResult reports the amounts actually consumed and the LP units
// minted. LPToken is the transferable pool-share asset.
type AddLiquidityResult struct {
	UsedA     *uint256.Int
	UsedB     *uint256.Int
	Liquidity *uint256.Int
	LPToken   asset.Asset
}

// RemoveLiquidityParams describes a liquidity withdrawal. The LP units are
// burned from the From account; the proportional reserve share is paid to
// To (From when To is unset).
type RemoveLiquidityParams struct {
	TokenA    asset.Asset
	TokenB    asset.Asset
	From      asset.Address
	To        asset.Address
	Liquidity *uint256.Int
}

// RemoveLiquidityResult reports the reserve amounts paid out.
type RemoveLiquidityResult struct {
	AmountA *uint256.Int
	AmountB *uint256.Int
}

// Router is the AMM boundary the settlement engine depends on. A Router call
// is atomic on the router's side: an error return means no pool state
// changed and no funds moved.
type Router interface {
	// CreatePair registers the trading pair for the two assets. Calling it
	// twice for the same pair fails with ErrPairExists.
	CreatePair(tokenA, tokenB asset.Asset) error
	// AddLiquidity pulls the requested amounts into the pool and mints LP
	// units, respecting the minimum amounts and deadline.
	AddLiquidity(params AddLiquidityParams) (*AddLiquidityResult, error)
	// RemoveLiquidity burns LP units and pays out the matching share of
	// both reserves.
	RemoveLiquidity(params RemoveLiquidityParams) (*RemoveLiquidityResult, error)
}
