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

package ledger_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/openpad-io/openpad/asset"
	"github.com/openpad-io/openpad/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = asset.Address("alice")
	bob   = asset.Address("bob")
)

func newTestLedger() *ledger.Ledger {
	return ledger.NewLedger(ledger.LedgerConfig{
		Min:     uint256.NewInt(1),
		Max:     uint256.NewInt(10),
		HardCap: uint256.NewInt(20),
	})
}

func TestRecordAccumulates(t *testing.T) {
	l := newTestLedger()
	cumulative, err := l.Record(alice, uint256.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), cumulative.Uint64())
	cumulative, err = l.Record(alice, uint256.NewInt(4))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), cumulative.Uint64())
	assert.Equal(t, uint64(7), l.TotalRaised().Uint64())
	assert.Equal(t, uint64(7), l.Contribution(alice).Uint64())
}

func TestRecordZeroAmount(t *testing.T) {
	l := newTestLedger()
	_, err := l.Record(alice, uint256.NewInt(0))
	assert.ErrorIs(t, err, ledger.ErrZeroAmount)
	_, err = l.Record(alice, nil)
	assert.ErrorIs(t, err, ledger.ErrZeroAmount)
}

func TestRecordBounds(t *testing.T) {
	l := newTestLedger()
	// Above per-address maximum
	_, err := l.Record(alice, uint256.NewInt(11))
	assert.ErrorIs(t, err, ledger.ErrAboveMaximum)
	// Cumulative crossing the max is rejected without partial acceptance
	_, err = l.Record(alice, uint256.NewInt(8))
	require.NoError(t, err)
	_, err = l.Record(alice, uint256.NewInt(3))
	assert.ErrorIs(t, err, ledger.ErrAboveMaximum)
	assert.Equal(t, uint64(8), l.Contribution(alice).Uint64())
	assert.Equal(t, uint64(8), l.TotalRaised().Uint64())
}

func TestRecordMinimumCumulative(t *testing.T) {
	l := ledger.NewLedger(ledger.LedgerConfig{
		Min:     uint256.NewInt(5),
		Max:     uint256.NewInt(10),
		HardCap: uint256.NewInt(20),
	})
	_, err := l.Record(alice, uint256.NewInt(3))
	assert.ErrorIs(t, err, ledger.ErrBelowMinimum)
	// First contribution at the minimum, then a small top-up is fine
	_, err = l.Record(alice, uint256.NewInt(5))
	require.NoError(t, err)
	_, err = l.Record(alice, uint256.NewInt(2))
	require.NoError(t, err)
}

func TestRecordHardCapRejectsEntirely(t *testing.T) {
	l := newTestLedger()
	_, err := l.Record(alice, uint256.NewInt(10))
	require.NoError(t, err)
	_, err = l.Record(bob, uint256.NewInt(10))
	require.NoError(t, err)
	// Any amount past the cap is rejected, never clamped
	_, err = l.Record(alice, uint256.NewInt(1))
	var capErr *ledger.HardCapExceededError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, uint64(20), capErr.TotalRaised.Uint64())
	assert.Equal(t, uint64(1), capErr.Amount.Uint64())
	assert.Equal(t, uint64(20), l.TotalRaised().Uint64())
}

func TestRevert(t *testing.T) {
	l := newTestLedger()
	_, err := l.Record(alice, uint256.NewInt(5))
	require.NoError(t, err)
	l.Revert(alice, uint256.NewInt(5))
	assert.True(t, l.Contribution(alice).IsZero())
	assert.True(t, l.TotalRaised().IsZero())
}

func TestClearAndRestore(t *testing.T) {
	l := newTestLedger()
	_, err := l.Record(alice, uint256.NewInt(5))
	require.NoError(t, err)
	amt, err := l.Clear(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), amt.Uint64())
	assert.True(t, l.TotalRaised().IsZero())
	// A second clear finds nothing
	_, err = l.Clear(alice)
	assert.ErrorIs(t, err, ledger.ErrNoContribution)
	// Restore reinstates the cleared amount
	l.Restore(alice, amt)
	assert.Equal(t, uint64(5), l.Contribution(alice).Uint64())
	assert.Equal(t, uint64(5), l.TotalRaised().Uint64())
}

func TestTotalMatchesSum(t *testing.T) {
	l := newTestLedger()
	_, err := l.Record(alice, uint256.NewInt(4))
	require.NoError(t, err)
	_, err = l.Record(bob, uint256.NewInt(6))
	require.NoError(t, err)
	sum := uint256.NewInt(0)
	for _, addr := range l.Contributors() {
		sum.Add(sum, l.Contribution(addr))
	}
	assert.True(t, sum.Eq(l.TotalRaised()))
}

func TestMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	l := ledger.NewLedger(ledger.LedgerConfig{
		PromRegistry: registry,
		Min:          uint256.NewInt(1),
		Max:          uint256.NewInt(10),
		HardCap:      uint256.NewInt(20),
	})
	_, err := l.Record(alice, uint256.NewInt(4))
	require.NoError(t, err)
	_, err = l.Record(bob, uint256.NewInt(6))
	require.NoError(t, err)
	metricFamilies, err := registry.Gather()
	require.NoError(t, err)
	values := make(map[string]float64)
	for _, mf := range metricFamilies {
		for _, m := range mf.GetMetric() {
			if m.GetGauge() != nil {
				values[mf.GetName()] = m.GetGauge().GetValue()
			} else if m.GetCounter() != nil {
				values[mf.GetName()] = m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(2), values["openpad_contributions_total"])
	assert.Equal(t, float64(2), values["openpad_contributors"])
	assert.Equal(t, float64(10), values["openpad_total_raised"])
}
