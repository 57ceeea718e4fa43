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

	"github.com/holiman/uint256"
	"github.com/openpad-io/openpad/asset"
	"github.com/openpad-io/openpad/ledger"
)

// Claim releases the caller's purchased token allocation. Valid only while
// Finalized and before the claim deadline. The claimed amount is marked
// before the transfer, so a re-entrant claim from a token callback finds
// nothing left to claim.
func (p *Presale) Claim(caller asset.Address) (*uint256.Int, error) {
	if err := p.guard.enter(); err != nil {
		return nil, err
	}
	defer p.guard.exit()
	p.stateMu.RLock()
	phase := p.phase
	paused := p.paused
	deadline := p.claimDeadline
	p.stateMu.RUnlock()
	if paused {
		return nil, ErrContractPaused
	}
	if phase != PhaseFinalized {
		return nil, ErrNotInClaimPeriod
	}
	if p.now().After(deadline) {
		return nil, ErrNotInClaimPeriod
	}
	contribution := p.ledger.Contribution(caller)
	if contribution.IsZero() {
		return nil, ErrNothingToClaim
	}
	entitled := new(uint256.Int).Mul(
		contribution,
		uint256.NewInt(p.options.PresaleRate),
	)
	p.stateMu.Lock()
	already, ok := p.claimed[caller]
	if !ok {
		already = uint256.NewInt(0)
	}
	if !already.Lt(entitled) {
		p.stateMu.Unlock()
		return nil, ErrNothingToClaim
	}
	amount := new(uint256.Int).Sub(entitled, already)
	if p.tokenBalance.Lt(amount) {
		p.stateMu.Unlock()
		return nil, fmt.Errorf(
			"%w: escrow balance %s below claim %s",
			ErrInvariantViolation,
			p.tokenBalance,
			amount,
		)
	}
	// Mark claimed before the transfer
	p.claimed[caller] = entitled
	p.tokenBalance = new(uint256.Int).Sub(p.tokenBalance, amount)
	p.stateMu.Unlock()
	if err := asset.Move(p.token, p.account, caller, amount); err != nil {
		p.stateMu.Lock()
		p.claimed[caller] = already
		p.tokenBalance = new(uint256.Int).Add(p.tokenBalance, amount)
		p.stateMu.Unlock()
		return nil, err
	}
	p.persistContribution(caller)
	p.persistState()
	p.emit(TokensClaimedEventType, TokensClaimedEvent{
		SaleId:  p.id,
		Claimer: string(caller),
		Amount:  amount.Dec(),
	})
	p.logger.Debug(
		"tokens claimed",
		"component", "presale",
		"sale_id", p.id,
		"claimer", string(caller),
		"amount", amount.String(),
	)
	return amount, nil
}

// Refund returns the caller's full recorded contribution. Available when
// the sale is Canceled, or when the sale window has passed with the soft
// cap unmet. The recorded contribution is zeroed before the transfer, so a
// re-entrant refund observes a zero balance and fails.
func (p *Presale) Refund(caller asset.Address) (*uint256.Int, error) {
	if err := p.guard.enter(); err != nil {
		return nil, err
	}
	defer p.guard.exit()
	p.stateMu.RLock()
	phase := p.phase
	paused := p.paused
	p.stateMu.RUnlock()
	if paused {
		return nil, ErrContractPaused
	}
	if !p.refundable(phase) {
		return nil, ErrRefundNotAvailable
	}
	amount, err := p.ledger.Clear(caller)
	if err != nil {
		if errors.Is(err, ledger.ErrNoContribution) {
			return nil, ErrNothingToRefund
		}
		return nil, err
	}
	if err := asset.Move(p.currency, p.account, caller, amount); err != nil {
		p.ledger.Restore(caller, amount)
		return nil, err
	}
	p.persistContribution(caller)
	p.persistState()
	p.emit(RefundedEventType, RefundedEvent{
		SaleId:      p.id,
		Contributor: string(caller),
		Amount:      amount.Dec(),
	})
	p.logger.Debug(
		"contribution refunded",
		"component", "presale",
		"sale_id", p.id,
		"contributor", string(caller),
		"amount", amount.String(),
	)
	return amount, nil
}

// refundable reports whether refunds are currently released: after an
// explicit cancel, or once the sale expired under its soft cap without
// needing an explicit cancel.
func (p *Presale) refundable(phase Phase) bool {
	if phase == PhaseCanceled {
		return true
	}
	if phase != PhaseActive {
		return false
	}
	return p.now().After(p.options.End) &&
		p.ledger.TotalRaised().Lt(p.options.SoftCap)
}
