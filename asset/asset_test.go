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

package asset_test

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/openpad-io/openpad/asset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = asset.Address("alice")
	bob   = asset.Address("bob")
	carol = asset.Address("carol")
)

func TestBookTransfer(t *testing.T) {
	book := asset.NewBook("TKN", 18)
	book.Mint(alice, uint256.NewInt(100))
	ok, err := book.Transfer(alice, bob, uint256.NewInt(40))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(60), book.BalanceOf(alice).Uint64())
	assert.Equal(t, uint64(40), book.BalanceOf(bob).Uint64())
}

func TestBookTransferInsufficient(t *testing.T) {
	book := asset.NewBook("TKN", 18)
	book.Mint(alice, uint256.NewInt(10))
	_, err := book.Transfer(alice, bob, uint256.NewInt(11))
	require.ErrorIs(t, err, asset.ErrInsufficientBalance)
	assert.Equal(t, uint64(10), book.BalanceOf(alice).Uint64())
}

func TestBookTransferFrom(t *testing.T) {
	book := asset.NewBook("TKN", 18)
	book.Mint(alice, uint256.NewInt(100))
	book.Approve(alice, bob, uint256.NewInt(50))
	ok, err := book.TransferFrom(bob, alice, carol, uint256.NewInt(30))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(70), book.BalanceOf(alice).Uint64())
	assert.Equal(t, uint64(30), book.BalanceOf(carol).Uint64())
	assert.Equal(t, uint64(20), book.Allowance(alice, bob).Uint64())
	// Spending past the remaining allowance fails
	_, err = book.TransferFrom(bob, alice, carol, uint256.NewInt(21))
	require.ErrorIs(t, err, asset.ErrInsufficientAllowance)
}

// falseReturnAsset mimics non-standard tokens that signal failure by
// returning false instead of an error.
type falseReturnAsset struct {
	*asset.Book
}

func (f *falseReturnAsset) Transfer(
	from, to asset.Address,
	amount *uint256.Int,
) (bool, error) {
	return false, nil
}

func TestMoveNormalizesFalseReturn(t *testing.T) {
	book := asset.NewBook("BAD", 18)
	book.Mint(alice, uint256.NewInt(100))
	bad := &falseReturnAsset{Book: book}
	err := asset.Move(bad, alice, bob, uint256.NewInt(1))
	require.ErrorIs(t, err, asset.ErrTransferFailed)
}

func TestMoveNormalizesError(t *testing.T) {
	book := asset.NewBook("TKN", 18)
	err := asset.Move(book, alice, bob, uint256.NewInt(1))
	require.ErrorIs(t, err, asset.ErrTransferFailed)
	require.ErrorIs(t, err, asset.ErrInsufficientBalance)
}

func TestJournalUnwind(t *testing.T) {
	book := asset.NewBook("TKN", 18)
	book.Mint(alice, uint256.NewInt(100))
	journal := asset.NewJournal(nil)
	require.NoError(t, journal.Move(book, alice, bob, uint256.NewInt(30)))
	require.NoError(t, journal.Move(book, alice, carol, uint256.NewInt(20)))
	require.Equal(t, 2, journal.Len())
	journal.Unwind()
	assert.Equal(t, uint64(100), book.BalanceOf(alice).Uint64())
	assert.True(t, book.BalanceOf(bob).IsZero())
	assert.True(t, book.BalanceOf(carol).IsZero())
	assert.Equal(t, 0, journal.Len())
}

func TestJournalCommit(t *testing.T) {
	book := asset.NewBook("TKN", 18)
	book.Mint(alice, uint256.NewInt(100))
	journal := asset.NewJournal(nil)
	require.NoError(t, journal.Move(book, alice, bob, uint256.NewInt(30)))
	journal.Commit()
	journal.Unwind()
	// Committed moves are permanent
	assert.Equal(t, uint64(70), book.BalanceOf(alice).Uint64())
	assert.Equal(t, uint64(30), book.BalanceOf(bob).Uint64())
}

func TestJournalOnlyRecordsSuccess(t *testing.T) {
	book := asset.NewBook("TKN", 18)
	book.Mint(alice, uint256.NewInt(10))
	journal := asset.NewJournal(nil)
	err := journal.Move(book, alice, bob, uint256.NewInt(11))
	require.Error(t, err)
	require.True(t, errors.Is(err, asset.ErrTransferFailed))
	assert.Equal(t, 0, journal.Len())
}
