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

package factory_test

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/openpad-io/openpad"
	"github.com/openpad-io/openpad/amm"
	"github.com/openpad-io/openpad/asset"
	"github.com/openpad-io/openpad/database"
	"github.com/openpad-io/openpad/factory"
	"github.com/openpad-io/openpad/lockup"
	"github.com/openpad-io/openpad/vesting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	saleOwner = asset.Address("sale-owner")
	buyer     = asset.Address("buyer")
	feeRecip  = asset.Address("fee-recipient")
)

type testEnv struct {
	factory  *factory.Factory
	database *database.Database
	token    *asset.Book
	native   *asset.Book
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.New(&database.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	env := &testEnv{
		database: db,
		token:    asset.NewBook("TKN", 18),
		native:   asset.NewBook("NATIVE", 18),
		now:      time.Unix(1_700_000_000, 0),
	}
	// One clock for the engine and every collaborator
	clock := func() time.Time { return env.now }
	env.factory = factory.New(factory.Config{
		Database:     db,
		Router:       amm.NewPoolRouter(amm.PoolRouterConfig{NowFunc: clock}),
		Locker:       lockup.NewVault(lockup.VaultConfig{NowFunc: clock}),
		Vesting:      vesting.NewLedger(vesting.LedgerConfig{NowFunc: clock}),
		NativeAsset:  env.native,
		FeeRecipient: feeRecip,
		NowFunc:      clock,
	})
	return env
}

func (env *testEnv) saleOptions() openpad.PresaleOptions {
	return openpad.PresaleOptions{
		TokenDeposit:   uint256.NewInt(600_000),
		HardCap:        uint256.NewInt(10),
		SoftCap:        uint256.NewInt(5),
		Min:            uint256.NewInt(1),
		Max:            uint256.NewInt(10),
		PresaleRate:    1000,
		ListingRate:    800,
		LiquidityBps:   8000,
		Start:          env.now.Add(time.Hour),
		End:            env.now.Add(2 * time.Hour),
		LockupDuration: 24 * time.Hour,
	}
}

func TestDeploy(t *testing.T) {
	env := newTestEnv(t)
	sale, err := env.factory.Deploy(saleOwner, env.token, env.saleOptions())
	require.NoError(t, err)
	assert.Equal(t, openpad.PhasePending, sale.Phase())
	assert.Equal(t, saleOwner, sale.Owner())
	got, err := env.factory.Get(sale.Id())
	require.NoError(t, err)
	assert.Same(t, sale, got)
	assert.Len(t, env.factory.List(), 1)
}

func TestDeployRequiresOwner(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.factory.Deploy(
		asset.ZeroAddress,
		env.token,
		env.saleOptions(),
	)
	assert.ErrorIs(t, err, factory.ErrMissingOwner)
}

func TestDeployRejectsBadOptions(t *testing.T) {
	env := newTestEnv(t)
	options := env.saleOptions()
	options.SoftCap = uint256.NewInt(11)
	_, err := env.factory.Deploy(saleOwner, env.token, options)
	assert.ErrorIs(t, err, openpad.ErrInvalidCaps)
}

func TestAuthorized(t *testing.T) {
	env := newTestEnv(t)
	assert.False(t, env.factory.Authorized(saleOwner))
	_, err := env.factory.Deploy(saleOwner, env.token, env.saleOptions())
	require.NoError(t, err)
	assert.True(t, env.factory.Authorized(saleOwner))
	assert.False(t, env.factory.Authorized(buyer))
}

func TestGetUnknownSale(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.factory.Get("nope")
	assert.ErrorIs(t, err, factory.ErrSaleNotFound)
}

func TestDepositGatedByFactory(t *testing.T) {
	env := newTestEnv(t)
	options := env.saleOptions()
	sale, err := env.factory.Deploy(saleOwner, env.token, options)
	require.NoError(t, err)
	env.token.Mint(saleOwner, options.TokenDeposit)
	env.token.Approve(saleOwner, sale.Account(), options.TokenDeposit)
	require.NoError(t, sale.Deposit(saleOwner))
	assert.Equal(t, openpad.PhaseActive, sale.Phase())
}

func TestRestoreSale(t *testing.T) {
	env := newTestEnv(t)
	options := env.saleOptions()
	sale, err := env.factory.Deploy(saleOwner, env.token, options)
	require.NoError(t, err)
	env.token.Mint(saleOwner, options.TokenDeposit)
	env.token.Approve(saleOwner, sale.Account(), options.TokenDeposit)
	require.NoError(t, sale.Deposit(saleOwner))
	// Run the sale into its window and take a contribution
	env.now = options.Start.Add(time.Minute)
	env.native.Mint(buyer, uint256.NewInt(10))
	env.native.Approve(buyer, sale.Account(), uint256.NewInt(10))
	_, err = sale.Contribute(buyer, nil, uint256.NewInt(6), nil)
	require.NoError(t, err)
	// A fresh factory over the same database reconstructs the sale
	restored, err := env.factory.RestoreSale(
		sale.Id(),
		saleOwner,
		env.token,
		options,
	)
	require.NoError(t, err)
	assert.Equal(t, sale.Id(), restored.Id())
	assert.Equal(t, openpad.PhaseActive, restored.Phase())
	assert.Equal(t, uint64(6), restored.TotalRaised().Uint64())
	assert.Equal(t, uint64(6), restored.Contribution(buyer).Uint64())
	assert.Equal(
		t,
		uint64(600_000),
		restored.TokenBalance().Uint64(),
	)
}

func TestRestoreUnknownSale(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.factory.RestoreSale(
		"missing",
		saleOwner,
		env.token,
		env.saleOptions(),
	)
	assert.ErrorIs(t, err, database.ErrSaleNotFound)
}
