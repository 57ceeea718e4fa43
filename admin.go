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
	"time"

	"github.com/holiman/uint256"
	"github.com/openpad-io/openpad/asset"
)

// Cancel ends the sale without settlement, releasing contributions for
// refund. Valid any time before finalization.
func (p *Presale) Cancel(caller asset.Address) error {
	if caller != p.owner {
		return ErrNotOwner
	}
	p.stateMu.Lock()
	switch p.phase {
	case PhaseFinalized:
		p.stateMu.Unlock()
		return ErrAlreadyFinalized
	case PhaseCanceled:
		p.stateMu.Unlock()
		return ErrSaleCanceled
	}
	p.phase = PhaseCanceled
	p.stateMu.Unlock()
	p.persistState()
	p.emit(CanceledEventType, CanceledEvent{SaleId: p.id})
	p.logger.Info(
		"sale canceled",
		"component", "presale",
		"sale_id", p.id,
	)
	return nil
}

// Pause blocks the contribute, claim, and refund entry points.
// Administrative and view calls are unaffected.
func (p *Presale) Pause(caller asset.Address) error {
	if caller != p.owner {
		return ErrNotOwner
	}
	p.stateMu.Lock()
	if p.paused {
		p.stateMu.Unlock()
		return ErrAlreadyPaused
	}
	p.paused = true
	p.stateMu.Unlock()
	p.persistState()
	p.emit(PausedEventType, PausedEvent{SaleId: p.id})
	return nil
}

// Unpause re-enables the value-moving entry points.
func (p *Presale) Unpause(caller asset.Address) error {
	if caller != p.owner {
		return ErrNotOwner
	}
	p.stateMu.Lock()
	if !p.paused {
		p.stateMu.Unlock()
		return ErrNotPaused
	}
	p.paused = false
	p.stateMu.Unlock()
	p.persistState()
	p.emit(UnpausedEventType, UnpausedEvent{SaleId: p.id})
	return nil
}

// ExtendClaimDeadline moves the claim deadline later. The deadline only
// ever increases; an earlier or equal deadline is rejected.
func (p *Presale) ExtendClaimDeadline(
	caller asset.Address,
	newDeadline time.Time,
) error {
	if caller != p.owner {
		return ErrNotOwner
	}
	p.stateMu.Lock()
	if p.phase != PhaseFinalized {
		p.stateMu.Unlock()
		return ErrNotInClaimPeriod
	}
	if !newDeadline.After(p.claimDeadline) {
		p.stateMu.Unlock()
		return ErrDeadlineNotLater
	}
	p.claimDeadline = newDeadline
	p.stateMu.Unlock()
	p.persistState()
	p.emit(ClaimDeadlineExtendedEventType, ClaimDeadlineExtendedEvent{
		SaleId:      p.id,
		NewDeadline: newDeadline,
	})
	return nil
}

// SetMerkleRoot rotates the whitelist root mid-sale. Proofs against the
// old root stop verifying immediately.
func (p *Presale) SetMerkleRoot(caller asset.Address, root []byte) error {
	if caller != p.owner {
		return ErrNotOwner
	}
	return p.verifier.SetRoot(root)
}

// RescueTokens sweeps the escrow's full balance of a token to the given
// address. The sale token itself can only be rescued after cancellation or
// once the claim deadline has passed, so funds contributors still have a
// claim on stay put.
func (p *Presale) RescueTokens(
	caller asset.Address,
	token asset.Asset,
	to asset.Address,
) (*uint256.Int, error) {
	if err := p.guard.enter(); err != nil {
		return nil, err
	}
	defer p.guard.exit()
	if caller != p.owner {
		return nil, ErrNotOwner
	}
	if to == asset.ZeroAddress {
		return nil, asset.ErrZeroAddress
	}
	p.stateMu.RLock()
	phase := p.phase
	deadline := p.claimDeadline
	p.stateMu.RUnlock()
	if token.Symbol() == p.token.Symbol() {
		deadlinePassed := !deadline.IsZero() && p.now().After(deadline)
		if phase != PhaseCanceled && !deadlinePassed {
			return nil, ErrRescueRestricted
		}
	}
	amount := token.BalanceOf(p.account)
	if amount.IsZero() {
		return nil, ErrNothingToRescue
	}
	if err := asset.Move(token, p.account, to, amount); err != nil {
		return nil, err
	}
	if token.Symbol() == p.token.Symbol() {
		p.stateMu.Lock()
		p.tokenBalance = uint256.NewInt(0)
		p.stateMu.Unlock()
		p.persistState()
	}
	p.emit(TokensRescuedEventType, TokensRescuedEvent{
		SaleId: p.id,
		Symbol: token.Symbol(),
		Amount: amount.Dec(),
		To:     string(to),
	})
	p.logger.Info(
		"tokens rescued",
		"component", "presale",
		"sale_id", p.id,
		"symbol", token.Symbol(),
		"amount", amount.String(),
	)
	return amount, nil
}
