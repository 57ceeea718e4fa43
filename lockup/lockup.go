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

// Package lockup time-locks AMM pool tokens so liquidity seeded at
// settlement cannot be withdrawn before the agreed duration has passed.
package lockup

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/openpad-io/openpad/asset"
)

var (
	ErrLockNotFound = errors.New("lock not found")
	ErrStillLocked  = errors.New("lock has not expired")
	ErrNotLockOwner = errors.New("caller does not own lock")
	ErrWithdrawn    = errors.New("lock already withdrawn")
	ErrZeroAmount   = errors.New("zero lock amount")
)

// Lock is a single time-locked custody position.
type Lock struct {
	ID         string
	Token      asset.Asset
	Owner      asset.Address
	Amount     *uint256.Int
	UnlockTime time.Time
	Withdrawn  bool
}

type VaultConfig struct {
	Logger *slog.Logger
	// NowFunc overrides the clock, for tests.
	NowFunc func() time.Time
}

// Vault custodies locked tokens. The vault never reads balances back on
// behalf of callers; it only releases a position to its owner after the
// unlock time.
type Vault struct {
	config  VaultConfig
	logger  *slog.Logger
	custody asset.Address
	locks   map[string]*Lock
	mu      sync.RWMutex
}

func NewVault(config VaultConfig) *Vault {
	v := &Vault{
		config:  config,
		custody: asset.Address("lockup:" + uuid.NewString()),
		locks:   make(map[string]*Lock),
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		v.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		v.logger = config.Logger
	}
	return v
}

func (v *Vault) now() time.Time {
	if v.config.NowFunc != nil {
		return v.config.NowFunc()
	}
	return time.Now()
}

// Custody returns the vault's custody account address.
func (v *Vault) Custody() asset.Address {
	return v.custody
}

// Lock pulls amount of token from the from account into vault custody until
// unlockTime. It returns the created lock.
func (v *Vault) Lock(
	token asset.Asset,
	from asset.Address,
	owner asset.Address,
	amount *uint256.Int,
	unlockTime time.Time,
) (*Lock, error) {
	if amount == nil || amount.IsZero() {
		return nil, ErrZeroAmount
	}
	if err := asset.Move(token, from, v.custody, amount); err != nil {
		return nil, err
	}
	lock := &Lock{
		ID:         uuid.NewString(),
		Token:      token,
		Owner:      owner,
		Amount:     new(uint256.Int).Set(amount),
		UnlockTime: unlockTime,
	}
	v.mu.Lock()
	v.locks[lock.ID] = lock
	v.mu.Unlock()
	v.logger.Info(
		"locked tokens",
		"component", "lockup",
		"lock_id", lock.ID,
		"symbol", token.Symbol(),
		"amount", amount.String(),
		"unlock_time", unlockTime,
	)
	return lock, nil
}

// Get returns a lock by id.
func (v *Vault) Get(id string) (*Lock, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	lock, ok := v.locks[id]
	if !ok {
		return nil, ErrLockNotFound
	}
	cp := *lock
	cp.Amount = new(uint256.Int).Set(lock.Amount)
	return &cp, nil
}

// Unlockable reports whether the lock can currently be withdrawn.
func (v *Vault) Unlockable(id string) (bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	lock, ok := v.locks[id]
	if !ok {
		return false, ErrLockNotFound
	}
	return !lock.Withdrawn && !v.now().Before(lock.UnlockTime), nil
}

// Withdraw releases the locked tokens to the lock owner. Only the owner may
// withdraw, and only after the unlock time.
func (v *Vault) Withdraw(id string, caller asset.Address) error {
	v.mu.Lock()
	lock, ok := v.locks[id]
	if !ok {
		v.mu.Unlock()
		return ErrLockNotFound
	}
	if lock.Owner != caller {
		v.mu.Unlock()
		return ErrNotLockOwner
	}
	if lock.Withdrawn {
		v.mu.Unlock()
		return ErrWithdrawn
	}
	if v.now().Before(lock.UnlockTime) {
		v.mu.Unlock()
		return ErrStillLocked
	}
	// Mark before transferring so a re-entrant withdraw sees Withdrawn
	lock.Withdrawn = true
	v.mu.Unlock()
	if err := asset.Move(lock.Token, v.custody, lock.Owner, lock.Amount); err != nil {
		v.mu.Lock()
		lock.Withdrawn = false
		v.mu.Unlock()
		return err
	}
	v.logger.Info(
		"withdrew locked tokens",
		"component", "lockup",
		"lock_id", id,
		"amount", lock.Amount.String(),
	)
	return nil
}
