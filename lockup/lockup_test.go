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

package lockup_test

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/openpad-io/openpad/asset"
	"github.com/openpad-io/openpad/lockup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	funder = asset.Address("funder")
	owner  = asset.Address("owner")
)

type vaultClock struct {
	now time.Time
}

func newTestVault() (*lockup.Vault, *vaultClock, *asset.Book) {
	clock := &vaultClock{now: time.Now()}
	vault := lockup.NewVault(lockup.VaultConfig{
		NowFunc: func() time.Time { return clock.now },
	})
	token := asset.NewBook("LP", 18)
	token.Mint(funder, uint256.NewInt(1000))
	return vault, clock, token
}

func TestLockPullsIntoCustody(t *testing.T) {
	vault, clock, token := newTestVault()
	lock, err := vault.Lock(
		token,
		funder,
		owner,
		uint256.NewInt(400),
		clock.now.Add(time.Hour),
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), token.BalanceOf(funder).Uint64())
	assert.Equal(t, uint64(400), token.BalanceOf(vault.Custody()).Uint64())
	got, err := vault.Get(lock.ID)
	require.NoError(t, err)
	assert.Equal(t, owner, got.Owner)
	assert.False(t, got.Withdrawn)
}

func TestLockZeroAmount(t *testing.T) {
	vault, clock, token := newTestVault()
	_, err := vault.Lock(token, funder, owner, nil, clock.now)
	assert.ErrorIs(t, err, lockup.ErrZeroAmount)
	_, err = vault.Lock(token, funder, owner, uint256.NewInt(0), clock.now)
	assert.ErrorIs(t, err, lockup.ErrZeroAmount)
}

func TestLockInsufficientBalance(t *testing.T) {
	vault, clock, token := newTestVault()
	_, err := vault.Lock(
		token,
		funder,
		owner,
		uint256.NewInt(1001),
		clock.now.Add(time.Hour),
	)
	require.Error(t, err)
	assert.Equal(t, uint64(1000), token.BalanceOf(funder).Uint64())
}

func TestWithdrawBeforeUnlock(t *testing.T) {
	vault, clock, token := newTestVault()
	lock, err := vault.Lock(
		token,
		funder,
		owner,
		uint256.NewInt(400),
		clock.now.Add(time.Hour),
	)
	require.NoError(t, err)
	unlockable, err := vault.Unlockable(lock.ID)
	require.NoError(t, err)
	assert.False(t, unlockable)
	assert.ErrorIs(t, vault.Withdraw(lock.ID, owner), lockup.ErrStillLocked)
}

func TestWithdrawAfterUnlock(t *testing.T) {
	vault, clock, token := newTestVault()
	lock, err := vault.Lock(
		token,
		funder,
		owner,
		uint256.NewInt(400),
		clock.now.Add(time.Hour),
	)
	require.NoError(t, err)
	clock.now = clock.now.Add(time.Hour + time.Second)
	unlockable, err := vault.Unlockable(lock.ID)
	require.NoError(t, err)
	assert.True(t, unlockable)
	require.NoError(t, vault.Withdraw(lock.ID, owner))
	assert.Equal(t, uint64(400), token.BalanceOf(owner).Uint64())
	assert.True(t, token.BalanceOf(vault.Custody()).IsZero())
	// A second withdraw finds nothing
	assert.ErrorIs(t, vault.Withdraw(lock.ID, owner), lockup.ErrWithdrawn)
}

func TestWithdrawWrongOwner(t *testing.T) {
	vault, clock, token := newTestVault()
	lock, err := vault.Lock(
		token,
		funder,
		owner,
		uint256.NewInt(400),
		clock.now.Add(-time.Second),
	)
	require.NoError(t, err)
	assert.ErrorIs(
		t,
		vault.Withdraw(lock.ID, funder),
		lockup.ErrNotLockOwner,
	)
}

func TestUnknownLock(t *testing.T) {
	vault, _, _ := newTestVault()
	_, err := vault.Get("nope")
	assert.ErrorIs(t, err, lockup.ErrLockNotFound)
	_, err = vault.Unlockable("nope")
	assert.ErrorIs(t, err, lockup.ErrLockNotFound)
	assert.ErrorIs(t, vault.Withdraw("nope", owner), lockup.ErrLockNotFound)
}
