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
	"github.com/openpad-io/openpad/amm"
	"github.com/openpad-io/openpad/asset"
)

// liquidityDeadline bounds how long the router may take to execute the
// provision relative to the settlement clock.
const liquidityDeadline = 15 * time.Minute

// SettlementResult reports the exact amounts moved by a successful
// finalization.
type SettlementResult struct {
	TotalRaised          *uint256.Int
	TokensSold           *uint256.Int
	CurrencyForLiquidity *uint256.Int
	TokensForLiquidity   *uint256.Int
	HouseFee             *uint256.Int
	OwnerProceeds        *uint256.Int
	Leftover             *uint256.Int
	Liquidity            *uint256.Int
	LpLockId             string
	VestingScheduleId    string
	ClaimDeadline        time.Time
}

// Finalize settles the sale. It is owner-only and valid at most once:
// either strictly after the sale end with the soft cap reached, or early
// once the raise equals the hard cap.
//
// The settlement order is fixed: liquidity seeding, house fee, owner
// proceeds, leftover disposition, pool-token lock. The router leg is atomic
// on the router's side; every leg after it is reversible — the transfers
// run through a move journal and the liquidity provision and any vesting
// registration carry compensators — so a failure at any point restores the
// pre-call balances and leaves the sale Active for a retry.
func (p *Presale) Finalize(caller asset.Address) (*SettlementResult, error) {
	if err := p.guard.enter(); err != nil {
		return nil, err
	}
	defer p.guard.exit()
	if caller != p.owner {
		return nil, ErrNotOwner
	}
	p.stateMu.RLock()
	phase := p.phase
	p.stateMu.RUnlock()
	switch phase {
	case PhaseFinalized:
		return nil, ErrAlreadyFinalized
	case PhaseCanceled:
		return nil, ErrSaleCanceled
	case PhaseActive:
	default:
		return nil, ErrNotInPurchasePeriod
	}
	now := p.now()
	totalRaised := p.ledger.TotalRaised()
	atHardCap := totalRaised.Eq(p.options.HardCap)
	if !atHardCap {
		if !now.After(p.options.End) {
			return nil, ErrSaleNotEnded
		}
		if totalRaised.Lt(p.options.SoftCap) {
			return nil, ErrSoftCapNotReached
		}
	}
	result, err := p.settle(now, totalRaised)
	if err != nil {
		return nil, err
	}
	deadline := now.Add(p.config.claimWindow)
	p.stateMu.Lock()
	p.phase = PhaseFinalized
	p.finalizeTime = now
	p.claimDeadline = deadline
	// The escrow now holds exactly the sold allocation for claims
	p.tokenBalance = new(uint256.Int).Set(result.TokensSold)
	p.lpLockId = result.LpLockId
	p.vestingId = result.VestingScheduleId
	p.stateMu.Unlock()
	result.ClaimDeadline = deadline
	p.persistState()
	p.emit(FinalizedEventType, FinalizedEvent{
		SaleId:        p.id,
		TotalRaised:   totalRaised.Dec(),
		TokensSold:    result.TokensSold.Dec(),
		Liquidity:     result.Liquidity.Dec(),
		ClaimDeadline: result.ClaimDeadline,
	})
	switch p.options.LeftoverTokenOption {
	case LeftoverBurn:
		p.emit(LeftoverTokensBurnedEventType, LeftoverTokensBurnedEvent{
			SaleId: p.id,
			Amount: result.Leftover.Dec(),
		})
	case LeftoverVest:
		p.emit(LeftoverTokensVestedEventType, LeftoverTokensVestedEvent{
			SaleId:      p.id,
			Amount:      result.Leftover.Dec(),
			Beneficiary: string(p.owner),
		})
	}
	p.logger.Info(
		"sale finalized",
		"component", "presale",
		"sale_id", p.id,
		"total_raised", totalRaised.String(),
		"tokens_sold", result.TokensSold.String(),
		"liquidity", result.Liquidity.String(),
		"leftover", result.Leftover.String(),
	)
	return result, nil
}

func (p *Presale) settle(
	now time.Time,
	totalRaised *uint256.Int,
) (*SettlementResult, error) {
	tokensSold := new(uint256.Int).Mul(
		totalRaised,
		uint256.NewInt(p.options.PresaleRate),
	)
	currencyForLiquidity := new(uint256.Int).Mul(
		totalRaised,
		uint256.NewInt(p.options.LiquidityBps),
	)
	currencyForLiquidity.Div(
		currencyForLiquidity,
		uint256.NewInt(bpsDenominator),
	)
	tokensForLiquidity := new(uint256.Int).Mul(
		currencyForLiquidity,
		uint256.NewInt(p.options.ListingRate),
	)
	houseFee := new(uint256.Int).Mul(
		totalRaised,
		uint256.NewInt(p.config.houseFeeBps),
	)
	houseFee.Div(houseFee, uint256.NewInt(bpsDenominator))
	p.stateMu.RLock()
	tokenBalance := new(uint256.Int).Set(p.tokenBalance)
	tokensReserved := new(uint256.Int).Set(p.tokensLiquidity)
	p.stateMu.RUnlock()
	// Both bounds hold by the required-deposit check at construction; a
	// violation here means the escrow was tampered with.
	if tokensForLiquidity.Gt(tokensReserved) {
		return nil, fmt.Errorf(
			"%w: liquidity allocation %s above reserved %s",
			ErrInvariantViolation,
			tokensForLiquidity,
			tokensReserved,
		)
	}
	allocated := new(uint256.Int).Add(tokensSold, tokensForLiquidity)
	if tokenBalance.Lt(allocated) {
		return nil, fmt.Errorf(
			"%w: token balance %s below allocation %s",
			ErrInvariantViolation,
			tokenBalance,
			allocated,
		)
	}

	// Seed liquidity. An existing pair is located, not an error.
	if err := p.config.router.CreatePair(p.token, p.currency); err != nil {
		if !errors.Is(err, amm.ErrPairExists) {
			return nil, fmt.Errorf("router create pair: %w", err)
		}
	}
	minTokens := applySlippage(tokensForLiquidity, p.options.SlippageBps)
	minCurrency := applySlippage(currencyForLiquidity, p.options.SlippageBps)
	liq, err := p.config.router.AddLiquidity(amm.AddLiquidityParams{
		TokenA:   p.token,
		TokenB:   p.currency,
		From:     p.account,
		To:       p.account,
		AmountA:  tokensForLiquidity,
		AmountB:  currencyForLiquidity,
		MinA:     minTokens,
		MinB:     minCurrency,
		Deadline: now.Add(liquidityDeadline),
	})
	if err != nil {
		return nil, fmt.Errorf("router add liquidity: %w", err)
	}
	// A pre-existing pool at a different reserve ratio consumes less than
	// requested; proceeds and leftover settle on what the router took.
	usedTokens := new(uint256.Int).Set(liq.UsedA)
	usedCurrency := new(uint256.Int).Set(liq.UsedB)
	ownerProceeds := new(uint256.Int).Sub(totalRaised, usedCurrency)
	ownerProceeds.Sub(ownerProceeds, houseFee)
	leftover := new(uint256.Int).Sub(tokenBalance, tokensSold)
	leftover.Sub(leftover, usedTokens)

	journal := asset.NewJournal(p.logger)
	var vestingId string
	unwind := func() {
		journal.Unwind()
		if vestingId != "" {
			if _, cerr := p.config.vesting.Cancel(vestingId, p.account); cerr != nil {
				p.logger.Error(
					"failed to unwind vesting registration",
					"component", "presale",
					"sale_id", p.id,
					"schedule_id", vestingId,
					"error", cerr,
				)
			}
		}
		if _, rerr := p.config.router.RemoveLiquidity(amm.RemoveLiquidityParams{
			TokenA:    p.token,
			TokenB:    p.currency,
			From:      p.account,
			To:        p.account,
			Liquidity: liq.Liquidity,
		}); rerr != nil {
			p.logger.Error(
				"failed to unwind liquidity provision",
				"component", "presale",
				"sale_id", p.id,
				"error", rerr,
			)
		}
	}
	if !houseFee.IsZero() {
		if err := journal.Move(
			p.currency,
			p.account,
			p.config.feeRecipient,
			houseFee,
		); err != nil {
			unwind()
			return nil, fmt.Errorf("house fee transfer: %w", err)
		}
	}
	if !ownerProceeds.IsZero() {
		if err := journal.Move(
			p.currency,
			p.account,
			p.owner,
			ownerProceeds,
		); err != nil {
			unwind()
			return nil, fmt.Errorf("owner proceeds transfer: %w", err)
		}
	}
	vestingId, err = p.disposeLeftover(journal, leftover, now)
	if err != nil {
		unwind()
		return nil, err
	}
	// Lock the minted pool tokens last, once every reversible leg is done
	lock, err := p.config.locker.Lock(
		liq.LPToken,
		p.account,
		p.owner,
		liq.Liquidity,
		now.Add(p.options.LockupDuration),
	)
	if err != nil {
		unwind()
		return nil, fmt.Errorf("lock liquidity: %w", err)
	}
	journal.Commit()
	return &SettlementResult{
		TotalRaised:          totalRaised,
		TokensSold:           tokensSold,
		CurrencyForLiquidity: usedCurrency,
		TokensForLiquidity:   usedTokens,
		HouseFee:             houseFee,
		OwnerProceeds:        ownerProceeds,
		Leftover:             leftover,
		Liquidity:            liq.Liquidity,
		LpLockId:             lock.ID,
		VestingScheduleId:    vestingId,
	}, nil
}

func (p *Presale) disposeLeftover(
	journal *asset.Journal,
	leftover *uint256.Int,
	now time.Time,
) (string, error) {
	if leftover.IsZero() {
		return "", nil
	}
	switch p.options.LeftoverTokenOption {
	case LeftoverReturn:
		if err := journal.Move(p.token, p.account, p.owner, leftover); err != nil {
			return "", fmt.Errorf("leftover return: %w", err)
		}
	case LeftoverBurn:
		if err := journal.Move(
			p.token,
			p.account,
			asset.BurnAddress,
			leftover,
		); err != nil {
			return "", fmt.Errorf("leftover burn: %w", err)
		}
	case LeftoverVest:
		// The leftover allocation registers with nothing released up
		// front; it unlocks linearly over the vesting duration.
		sched, err := p.config.vesting.Create(
			p.owner,
			p.token,
			p.account,
			leftover,
			now,
			p.options.VestingDuration,
			0,
		)
		if err != nil {
			return "", fmt.Errorf("leftover vest: %w", err)
		}
		return sched.ID, nil
	}
	return "", nil
}

// applySlippage returns amount reduced by bps, the minimum acceptable
// amount for a liquidity provision.
func applySlippage(amount *uint256.Int, bps uint64) *uint256.Int {
	minAmount := new(uint256.Int).Mul(
		amount,
		uint256.NewInt(bpsDenominator-bps),
	)
	return minAmount.Div(minAmount, uint256.NewInt(bpsDenominator))
}
