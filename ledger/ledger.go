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

package ledger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/holiman/uint256"
	"github.com/openpad-io/openpad/asset"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrZeroAmount     = errors.New("zero amount")
	ErrBelowMinimum   = errors.New("below per-address minimum")
	ErrAboveMaximum   = errors.New("above per-address maximum")
	ErrNoContribution = errors.New("no recorded contribution")
)

// HardCapExceededError reports a contribution that would push totalRaised
// past the hard cap. The contribution is rejected entirely, never clamped.
type HardCapExceededError struct {
	TotalRaised *uint256.Int
	Amount      *uint256.Int
	HardCap     *uint256.Int
}

func (e *HardCapExceededError) Error() string {
	return fmt.Sprintf(
		"hard cap exceeded: raised=%s amount=%s cap=%s",
		e.TotalRaised,
		e.Amount,
		e.HardCap,
	)
}

type LedgerConfig struct {
	PromRegistry prometheus.Registerer
	Logger       *slog.Logger
	Min          *uint256.Int
	Max          *uint256.Int
	HardCap      *uint256.Int
}

// Ledger tracks per-address cumulative contributions and the running total.
// Min/max bounds apply to the cumulative amount per address, not per call;
// the hard cap applies to the total. totalRaised is always the exact sum of
// the recorded per-address amounts.
type Ledger struct {
	config        LedgerConfig
	logger        *slog.Logger
	contributions map[asset.Address]*uint256.Int
	totalRaised   *uint256.Int
	metrics       struct {
		contributionsTotal prometheus.Counter
		contributors       prometheus.Gauge
		totalRaised        prometheus.Gauge
	}
	sync.RWMutex
}

func NewLedger(config LedgerConfig) *Ledger {
	l := &Ledger{
		config:        config,
		contributions: make(map[asset.Address]*uint256.Int),
		totalRaised:   uint256.NewInt(0),
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		l.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		l.logger = config.Logger
	}
	promautoFactory := promauto.With(config.PromRegistry)
	l.metrics.contributionsTotal = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "openpad_contributions_total",
			Help: "total accepted contributions",
		},
	)
	l.metrics.contributors = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "openpad_contributors",
		Help: "current count of distinct contributors",
	})
	l.metrics.totalRaised = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "openpad_total_raised",
		Help: "current total raised in currency base units",
	})
	return l
}

// Record validates and records a contribution. On success the new cumulative
// amount for addr is returned. The caller is expected to commit this record
// before moving any funds, and call Revert if the subsequent transfer fails.
func (l *Ledger) Record(
	addr asset.Address,
	amount *uint256.Int,
) (*uint256.Int, error) {
	if amount == nil || amount.IsZero() {
		return nil, ErrZeroAmount
	}
	l.Lock()
	defer l.Unlock()
	newTotal := new(uint256.Int).Add(l.totalRaised, amount)
	if newTotal.Gt(l.config.HardCap) {
		return nil, &HardCapExceededError{
			TotalRaised: new(uint256.Int).Set(l.totalRaised),
			Amount:      new(uint256.Int).Set(amount),
			HardCap:     new(uint256.Int).Set(l.config.HardCap),
		}
	}
	existing, known := l.contributions[addr]
	if !known {
		existing = uint256.NewInt(0)
	}
	cumulative := new(uint256.Int).Add(existing, amount)
	if cumulative.Lt(l.config.Min) {
		return nil, fmt.Errorf(
			"%w: cumulative=%s min=%s",
			ErrBelowMinimum,
			cumulative,
			l.config.Min,
		)
	}
	if cumulative.Gt(l.config.Max) {
		return nil, fmt.Errorf(
			"%w: cumulative=%s max=%s",
			ErrAboveMaximum,
			cumulative,
			l.config.Max,
		)
	}
	l.contributions[addr] = cumulative
	l.totalRaised = newTotal
	if !known {
		l.metrics.contributors.Inc()
	}
	l.metrics.contributionsTotal.Inc()
	l.metrics.totalRaised.Set(float64(l.totalRaised.Uint64()))
	l.logger.Debug(
		"recorded contribution",
		"component", "ledger",
		"address", string(addr),
		"amount", amount.String(),
		"cumulative", cumulative.String(),
		"total_raised", l.totalRaised.String(),
	)
	return cumulative, nil
}

// Revert removes a previously recorded amount for addr. Used when the fund
// pull following a successful Record fails, so no funds end up recorded.
func (l *Ledger) Revert(addr asset.Address, amount *uint256.Int) {
	l.Lock()
	defer l.Unlock()
	existing, ok := l.contributions[addr]
	if !ok || existing.Lt(amount) {
		// Nothing coherent to revert; leave state alone
		return
	}
	remaining := new(uint256.Int).Sub(existing, amount)
	if remaining.IsZero() {
		delete(l.contributions, addr)
		l.metrics.contributors.Dec()
	} else {
		l.contributions[addr] = remaining
	}
	l.totalRaised = new(uint256.Int).Sub(l.totalRaised, amount)
	l.metrics.totalRaised.Set(float64(l.totalRaised.Uint64()))
}

// Contribution returns the cumulative recorded amount for addr.
func (l *Ledger) Contribution(addr asset.Address) *uint256.Int {
	l.RLock()
	defer l.RUnlock()
	if amt, ok := l.contributions[addr]; ok {
		return new(uint256.Int).Set(amt)
	}
	return uint256.NewInt(0)
}

// TotalRaised returns the running total of all recorded contributions.
func (l *Ledger) TotalRaised() *uint256.Int {
	l.RLock()
	defer l.RUnlock()
	return new(uint256.Int).Set(l.totalRaised)
}

// Contributors returns all addresses with a nonzero recorded contribution.
func (l *Ledger) Contributors() []asset.Address {
	l.RLock()
	defer l.RUnlock()
	addrs := make([]asset.Address, 0, len(l.contributions))
	for addr := range l.contributions {
		addrs = append(addrs, addr)
	}
	return addrs
}

// Clear zeroes the recorded contribution for addr and returns the amount
// that was recorded. Used by the refund path; clearing before the refund
// transfer makes a re-entrant second refund observe a zero balance.
func (l *Ledger) Clear(addr asset.Address) (*uint256.Int, error) {
	l.Lock()
	defer l.Unlock()
	amt, ok := l.contributions[addr]
	if !ok || amt.IsZero() {
		return nil, ErrNoContribution
	}
	delete(l.contributions, addr)
	l.totalRaised = new(uint256.Int).Sub(l.totalRaised, amt)
	l.metrics.contributors.Dec()
	l.metrics.totalRaised.Set(float64(l.totalRaised.Uint64()))
	return amt, nil
}

// Restore reinstates a cleared contribution. Used to unwind a refund whose
// transfer leg failed.
func (l *Ledger) Restore(addr asset.Address, amount *uint256.Int) {
	l.Lock()
	defer l.Unlock()
	if existing, ok := l.contributions[addr]; ok {
		l.contributions[addr] = new(uint256.Int).Add(existing, amount)
	} else {
		l.contributions[addr] = new(uint256.Int).Set(amount)
		l.metrics.contributors.Inc()
	}
	l.totalRaised = new(uint256.Int).Add(l.totalRaised, amount)
	l.metrics.totalRaised.Set(float64(l.totalRaised.Uint64()))
}
