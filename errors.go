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

import "errors"

// Access errors
var (
	ErrNotOwner       = errors.New("caller is not the sale owner")
	ErrNotFactory     = errors.New("caller is not the authorized deployer")
	ErrContractPaused = errors.New("sale is paused")
	ErrReentrantCall  = errors.New("reentrant call")
	ErrAlreadyPaused  = errors.New("sale already paused")
	ErrNotPaused      = errors.New("sale is not paused")
)

// Lifecycle errors
var (
	ErrNotInPurchasePeriod = errors.New("not in purchase period")
	ErrNotInClaimPeriod    = errors.New("not in claim period")
	ErrAlreadyDeposited    = errors.New("tokens already deposited")
	ErrDepositTooLate      = errors.New("deposit after sale start")
	ErrSaleNotEnded        = errors.New("sale has not ended")
	ErrSoftCapNotReached   = errors.New("soft cap not reached")
	ErrAlreadyFinalized    = errors.New("sale already finalized")
	ErrSaleCanceled        = errors.New("sale canceled")
	ErrRefundNotAvailable  = errors.New("refund not available")
)

// Validation errors
var (
	ErrWrongCurrency    = errors.New("wrong payment currency")
	ErrNothingToClaim   = errors.New("nothing to claim")
	ErrNothingToRefund  = errors.New("nothing to refund")
	ErrDeadlineNotLater = errors.New("new deadline not later than current")
	ErrRescueRestricted = errors.New("token rescue restricted")
	ErrNothingToRescue  = errors.New("nothing to rescue")
)

// Construction errors
var (
	ErrMissingToken    = errors.New("sale token required")
	ErrMissingCurrency = errors.New("no payment currency or native asset configured")
	ErrMissingRouter   = errors.New("amm router required")
	ErrMissingLocker   = errors.New("liquidity locker required")
	ErrMissingVesting  = errors.New("vesting ledger required for leftover-vest sales")
)

// ErrInvariantViolation marks states that are unreachable given correct
// construction checks. It is never expected in normal operation; callers
// should treat it as fail-fast, not as a recoverable branch.
var ErrInvariantViolation = errors.New("invariant violation")
