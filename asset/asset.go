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

package asset

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// Address identifies an account on an asset book. The empty value is
// reserved to mean "the native coin" in places that select a payment asset.
type Address string

const (
	// ZeroAddress is the unset address.
	ZeroAddress Address = ""
	// BurnAddress receives tokens that are permanently removed from
	// circulation. Nothing ever transfers out of it.
	BurnAddress Address = "0x000000000000000000000000000000000000dEaD"
)

var (
	ErrTransferFailed        = errors.New("transfer failed")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrZeroAddress           = errors.New("zero address")
)

// Asset is the ERC-20-shaped surface the engine depends on. Implementations
// may signal transfer failure either by returning ok=false with a nil error
// (non-standard tokens) or by returning an error; callers should use Move
// and MoveFrom, which normalize both into ErrTransferFailed.
type Asset interface {
	Symbol() string
	Decimals() uint8
	BalanceOf(addr Address) *uint256.Int
	// Transfer moves amount from one account to another. The from account
	// must be one the caller has authority over.
	Transfer(from, to Address, amount *uint256.Int) (bool, error)
	// TransferFrom moves amount from an account that has approved the
	// spender for at least that amount.
	TransferFrom(spender, from, to Address, amount *uint256.Int) (bool, error)
}

// Move executes a transfer and folds the two ERC-20 failure modes (false
// return vs error) into a single ErrTransferFailed.
func Move(a Asset, from, to Address, amount *uint256.Int) error {
	ok, err := a.Transfer(from, to, amount)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransferFailed, a.Symbol(), err)
	}
	if !ok {
		return fmt.Errorf("%w: %s returned false", ErrTransferFailed, a.Symbol())
	}
	return nil
}

// MoveFrom executes an allowance-backed transfer with the same failure-mode
// normalization as Move.
func MoveFrom(a Asset, spender, from, to Address, amount *uint256.Int) error {
	ok, err := a.TransferFrom(spender, from, to, amount)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransferFailed, a.Symbol(), err)
	}
	if !ok {
		return fmt.Errorf("%w: %s returned false", ErrTransferFailed, a.Symbol())
	}
	return nil
}
