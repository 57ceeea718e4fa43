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

package openpad

import (
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/openpad-io/openpad/asset"
	"github.com/openpad-io/openpad/whitelist"
)

const bpsDenominator = 10000

// Allowed liquidityBps range. At least half of the raise must be paired
// into liquidity so the post-sale price cannot be trivially dumped.
const (
	MinLiquidityBps = 5000
	MaxLiquidityBps = 10000
)

// LeftoverOption selects what happens to unsold tokens at settlement.
type LeftoverOption int

const (
	LeftoverReturn LeftoverOption = iota
	LeftoverBurn
	LeftoverVest
)

func (o LeftoverOption) String() string {
	switch o {
	case LeftoverReturn:
		return "return"
	case LeftoverBurn:
		return "burn"
	case LeftoverVest:
		return "vest"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}

var (
	ErrInvalidCaps         = errors.New("soft cap above hard cap")
	ErrInvalidLimits       = errors.New("per-address limits out of range")
	ErrInvalidRates        = errors.New("listing rate must be below presale rate")
	ErrInvalidLiquidityBps = errors.New("liquidity bps outside allowed range")
	ErrInvalidSlippageBps  = errors.New("slippage bps above denominator")
	ErrInvalidWindow       = errors.New("sale start must precede end")
	ErrInvalidWhitelist    = errors.New("whitelist fields inconsistent with type")
	ErrInvalidVesting      = errors.New("vesting fields inconsistent with leftover option")
	ErrInsufficientDeposit = errors.New("token deposit below required amount")
)

// PresaleOptions are the immutable sale parameters. Nothing here changes
// after construction; the only owner-mutable piece of sale configuration is
// the Merkle whitelist root, which lives on the verifier instead.
type PresaleOptions struct {
	// TokenDeposit is the token amount the owner must escrow before the
	// sale can activate.
	TokenDeposit *uint256.Int
	HardCap      *uint256.Int
	SoftCap      *uint256.Int
	// Min/Max bound the cumulative contribution per address.
	Min *uint256.Int
	Max *uint256.Int
	// PresaleRate is tokens per currency unit for contributor allocation;
	// ListingRate is tokens per currency unit for liquidity seeding and
	// must be strictly below PresaleRate.
	PresaleRate uint64
	ListingRate uint64
	// LiquidityBps is the share of the raise paired into liquidity.
	LiquidityBps uint64
	SlippageBps  uint64
	Start        time.Time
	End          time.Time
	// LockupDuration time-locks the minted pool tokens after settlement.
	LockupDuration time.Duration
	// VestingDuration spans the linear unlock of the leftover schedule;
	// the schedule registers with nothing released at settlement.
	// VestingPercentage (bps) is carried for schedule consumers and is
	// validated against the bps range. Both apply only when
	// LeftoverTokenOption is LeftoverVest.
	VestingPercentage   uint64
	VestingDuration     time.Duration
	LeftoverTokenOption LeftoverOption
	// Currency is the payment asset. nil selects the native coin.
	Currency      asset.Asset
	WhitelistType whitelist.Type
	MerkleRoot    []byte
	NFTContract   whitelist.BalanceChecker
}

// Validate enforces the construction invariants. An options value that
// fails Validate must never reach a Presale instance.
func (o *PresaleOptions) Validate() error {
	if o.HardCap == nil || o.SoftCap == nil || o.HardCap.IsZero() {
		return ErrInvalidCaps
	}
	if o.SoftCap.Gt(o.HardCap) {
		return ErrInvalidCaps
	}
	if o.Min == nil || o.Max == nil || o.Min.IsZero() {
		return ErrInvalidLimits
	}
	if o.Min.Gt(o.Max) || o.Max.Gt(o.HardCap) {
		return ErrInvalidLimits
	}
	if o.PresaleRate == 0 || o.ListingRate == 0 ||
		o.ListingRate >= o.PresaleRate {
		return ErrInvalidRates
	}
	if o.LiquidityBps < MinLiquidityBps || o.LiquidityBps > MaxLiquidityBps {
		return ErrInvalidLiquidityBps
	}
	if o.SlippageBps > bpsDenominator {
		return ErrInvalidSlippageBps
	}
	if !o.Start.Before(o.End) {
		return ErrInvalidWindow
	}
	switch o.WhitelistType {
	case whitelist.TypeNone:
		if len(o.MerkleRoot) != 0 || o.NFTContract != nil {
			return ErrInvalidWhitelist
		}
	case whitelist.TypeMerkle:
		if len(o.MerkleRoot) == 0 || o.NFTContract != nil {
			return ErrInvalidWhitelist
		}
	case whitelist.TypeNFT:
		if o.NFTContract == nil || len(o.MerkleRoot) != 0 {
			return ErrInvalidWhitelist
		}
	default:
		return ErrInvalidWhitelist
	}
	if o.LeftoverTokenOption == LeftoverVest {
		if o.VestingDuration <= 0 || o.VestingPercentage > bpsDenominator {
			return ErrInvalidVesting
		}
	}
	if o.TokenDeposit == nil || o.TokenDeposit.Lt(o.RequiredDeposit()) {
		return ErrInsufficientDeposit
	}
	return nil
}

// RequiredDeposit returns the minimum token deposit: full allocation at the
// hard cap plus the liquidity reserve computed from the hard cap. The
// liquidity reserve uses the hard cap, not the eventual raise, so the
// deposit is sufficient no matter how the sale fills.
func (o *PresaleOptions) RequiredDeposit() *uint256.Int {
	sold := new(uint256.Int).Mul(o.HardCap, uint256.NewInt(o.PresaleRate))
	liqCurrency := new(uint256.Int).Mul(
		o.HardCap,
		uint256.NewInt(o.LiquidityBps),
	)
	liqCurrency.Div(liqCurrency, uint256.NewInt(bpsDenominator))
	liqTokens := new(uint256.Int).Mul(
		liqCurrency,
		uint256.NewInt(o.ListingRate),
	)
	return sold.Add(sold, liqTokens)
}
