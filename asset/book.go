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
	"sync"

	"github.com/holiman/uint256"
)

// Book is an in-memory balance book implementing Asset. It is the standard
// in-process token: settlement custody accounts, the native coin, and test
// tokens are all Books. All operations are safe for concurrent use.
type Book struct {
	symbol     string
	decimals   uint8
	balances   map[Address]*uint256.Int
	allowances map[Address]map[Address]*uint256.Int
	mu         sync.RWMutex
}

// NewBook creates an empty balance book.
func NewBook(symbol string, decimals uint8) *Book {
	return &Book{
		symbol:     symbol,
		decimals:   decimals,
		balances:   make(map[Address]*uint256.Int),
		allowances: make(map[Address]map[Address]*uint256.Int),
	}
}

func (b *Book) Symbol() string {
	return b.symbol
}

func (b *Book) Decimals() uint8 {
	return b.decimals
}

func (b *Book) BalanceOf(addr Address) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if bal, ok := b.balances[addr]; ok {
		return new(uint256.Int).Set(bal)
	}
	return uint256.NewInt(0)
}

// Mint credits newly created units to an account.
func (b *Book) Mint(to Address, amount *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(to, amount)
}

// Burn debits amount from an account, removing it from supply.
func (b *Book) Burn(from Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	bal, ok := b.balances[from]
	if !ok || bal.Lt(amount) {
		return ErrInsufficientBalance
	}
	b.balances[from] = new(uint256.Int).Sub(bal, amount)
	return nil
}

// TotalSupply returns the sum of all balances.
func (b *Book) TotalSupply() *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := uint256.NewInt(0)
	for _, bal := range b.balances {
		total.Add(total, bal)
	}
	return total
}

func (b *Book) Transfer(from, to Address, amount *uint256.Int) (bool, error) {
	if from == ZeroAddress || to == ZeroAddress {
		return false, ErrZeroAddress
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transfer(from, to, amount)
}

func (b *Book) TransferFrom(
	spender, from, to Address,
	amount *uint256.Int,
) (bool, error) {
	if from == ZeroAddress || to == ZeroAddress {
		return false, ErrZeroAddress
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if spender != from {
		allowance := b.allowance(from, spender)
		if allowance.Lt(amount) {
			return false, ErrInsufficientAllowance
		}
		b.allowances[from][spender] = new(uint256.Int).Sub(allowance, amount)
	}
	return b.transfer(from, to, amount)
}

// Approve grants spender authority to pull up to amount from owner.
func (b *Book) Approve(owner, spender Address, amount *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.allowances[owner]; !ok {
		b.allowances[owner] = make(map[Address]*uint256.Int)
	}
	b.allowances[owner][spender] = new(uint256.Int).Set(amount)
}

// Allowance returns the remaining amount spender may pull from owner.
func (b *Book) Allowance(owner, spender Address) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return new(uint256.Int).Set(b.allowance(owner, spender))
}

func (b *Book) allowance(owner, spender Address) *uint256.Int {
	if byOwner, ok := b.allowances[owner]; ok {
		if a, ok := byOwner[spender]; ok {
			return a
		}
	}
	return uint256.NewInt(0)
}

func (b *Book) transfer(from, to Address, amount *uint256.Int) (bool, error) {
	fromBal, ok := b.balances[from]
	if !ok || fromBal.Lt(amount) {
		return false, ErrInsufficientBalance
	}
	b.balances[from] = new(uint256.Int).Sub(fromBal, amount)
	b.credit(to, amount)
	return true, nil
}

func (b *Book) credit(to Address, amount *uint256.Int) {
	if bal, ok := b.balances[to]; ok {
		b.balances[to] = new(uint256.Int).Add(bal, amount)
	} else {
		b.balances[to] = new(uint256.Int).Set(amount)
	}
}
