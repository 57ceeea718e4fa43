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

// Package vesting tracks linear token release schedules. A schedule may
// release a percentage immediately at its start, with the remainder
// unlocking linearly over the duration.
package vesting

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/openpad-io/openpad/asset"
)

const bpsDenominator = 10000

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrNothingToClaim   = errors.New("nothing to claim")
	ErrNotBeneficiary   = errors.New("caller is not the beneficiary")
	ErrZeroAmount       = errors.New("zero vesting amount")
	ErrZeroDuration     = errors.New("zero vesting duration")
	ErrInvalidBps       = errors.New("immediate bps above denominator")
)

// Schedule is a single vesting position.
type Schedule struct {
	ID           string
	Beneficiary  asset.Address
	Token        asset.Asset
	Total        *uint256.Int
	Released     *uint256.Int
	Start        time.Time
	Duration     time.Duration
	ImmediateBps uint64
}

type LedgerConfig struct {
	Logger *slog.Logger
	// NowFunc overrides the clock, for tests.
	NowFunc func() time.Time
}

// Ledger custodies vested tokens and answers vested/claimable queries.
type Ledger struct {
	config        LedgerConfig
	logger        *slog.Logger
	custody       asset.Address
	schedules     map[string]*Schedule
	byBeneficiary map[asset.Address][]string
	mu            sync.RWMutex
}

func NewLedger(config LedgerConfig) *Ledger {
	l := &Ledger{
		config:        config,
		custody:       asset.Address("vesting:" + uuid.NewString()),
		schedules:     make(map[string]*Schedule),
		byBeneficiary: make(map[asset.Address][]string),
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		l.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		l.logger = config.Logger
	}
	return l
}

func (l *Ledger) now() time.Time {
	if l.config.NowFunc != nil {
		return l.config.NowFunc()
	}
	return time.Now()
}

// Custody returns the ledger's custody account address.
func (l *Ledger) Custody() asset.Address {
	return l.custody
}

// Create pulls amount of token from the from account into vesting custody
// and registers a schedule for beneficiary starting at start. immediateBps
// of the total is released at start; the rest unlocks linearly over
// duration.
func (l *Ledger) Create(
	beneficiary asset.Address,
	token asset.Asset,
	from asset.Address,
	amount *uint256.Int,
	start time.Time,
	duration time.Duration,
	immediateBps uint64,
) (*Schedule, error) {
	if amount == nil || amount.IsZero() {
		return nil, ErrZeroAmount
	}
	if duration <= 0 {
		return nil, ErrZeroDuration
	}
	if immediateBps > bpsDenominator {
		return nil, ErrInvalidBps
	}
	if err := asset.Move(token, from, l.custody, amount); err != nil {
		return nil, err
	}
	sched := &Schedule{
		ID:           uuid.NewString(),
		Beneficiary:  beneficiary,
		Token:        token,
		Total:        new(uint256.Int).Set(amount),
		Released:     uint256.NewInt(0),
		Start:        start,
		Duration:     duration,
		ImmediateBps: immediateBps,
	}
	l.mu.Lock()
	l.schedules[sched.ID] = sched
	l.byBeneficiary[beneficiary] = append(l.byBeneficiary[beneficiary], sched.ID)
	l.mu.Unlock()
	l.logger.Info(
		"created vesting schedule",
		"component", "vesting",
		"schedule_id", sched.ID,
		"beneficiary", string(beneficiary),
		"amount", amount.String(),
		"duration", duration,
	)
	return sched, nil
}

// Cancel removes a schedule and returns its unreleased balance to the to
// account. Used to unwind a registration when an enclosing operation fails
// after the schedule was created.
func (l *Ledger) Cancel(id string, to asset.Address) (*uint256.Int, error) {
	l.mu.Lock()
	sched, ok := l.schedules[id]
	if !ok {
		l.mu.Unlock()
		return nil, ErrScheduleNotFound
	}
	remaining := new(uint256.Int).Sub(sched.Total, sched.Released)
	delete(l.schedules, id)
	l.mu.Unlock()
	if !remaining.IsZero() {
		if err := asset.Move(sched.Token, l.custody, to, remaining); err != nil {
			l.mu.Lock()
			l.schedules[id] = sched
			l.mu.Unlock()
			return nil, fmt.Errorf("vesting cancel: %w", err)
		}
	}
	l.mu.Lock()
	ids := l.byBeneficiary[sched.Beneficiary]
	for i, schedId := range ids {
		if schedId == id {
			l.byBeneficiary[sched.Beneficiary] = append(
				ids[:i],
				ids[i+1:]...)
			break
		}
	}
	l.mu.Unlock()
	l.logger.Info(
		"canceled vesting schedule",
		"component", "vesting",
		"schedule_id", id,
		"returned", remaining.String(),
	)
	return remaining, nil
}

// Get returns a schedule by id.
func (l *Ledger) Get(id string) (*Schedule, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sched, ok := l.schedules[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	return copySchedule(sched), nil
}

// Schedules returns all schedules for a beneficiary.
func (l *Ledger) Schedules(beneficiary asset.Address) []*Schedule {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := l.byBeneficiary[beneficiary]
	out := make([]*Schedule, 0, len(ids))
	for _, id := range ids {
		if sched, ok := l.schedules[id]; ok {
			out = append(out, copySchedule(sched))
		}
	}
	return out
}

// VestedAmount returns the amount unlocked at time at.
func (l *Ledger) VestedAmount(id string, at time.Time) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sched, ok := l.schedules[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	return vestedAt(sched, at), nil
}

// Claimable returns the amount unlocked but not yet released at time at.
func (l *Ledger) Claimable(id string, at time.Time) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sched, ok := l.schedules[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	return new(uint256.Int).Sub(vestedAt(sched, at), sched.Released), nil
}

// Claim releases the currently claimable amount to the beneficiary. Only
// the beneficiary may claim. Returns the released amount.
func (l *Ledger) Claim(id string, caller asset.Address) (*uint256.Int, error) {
	l.mu.Lock()
	sched, ok := l.schedules[id]
	if !ok {
		l.mu.Unlock()
		return nil, ErrScheduleNotFound
	}
	if sched.Beneficiary != caller {
		l.mu.Unlock()
		return nil, ErrNotBeneficiary
	}
	claimable := new(uint256.Int).Sub(vestedAt(sched, l.now()), sched.Released)
	if claimable.IsZero() {
		l.mu.Unlock()
		return nil, ErrNothingToClaim
	}
	// Mark released before transferring so re-entry observes updated state
	sched.Released = new(uint256.Int).Add(sched.Released, claimable)
	l.mu.Unlock()
	if err := asset.Move(sched.Token, l.custody, sched.Beneficiary, claimable); err != nil {
		l.mu.Lock()
		sched.Released = new(uint256.Int).Sub(sched.Released, claimable)
		l.mu.Unlock()
		return nil, fmt.Errorf("vesting claim: %w", err)
	}
	l.logger.Info(
		"released vested tokens",
		"component", "vesting",
		"schedule_id", id,
		"amount", claimable.String(),
	)
	return claimable, nil
}

func vestedAt(sched *Schedule, at time.Time) *uint256.Int {
	if at.Before(sched.Start) {
		return uint256.NewInt(0)
	}
	immediate := new(uint256.Int).Mul(
		sched.Total,
		uint256.NewInt(sched.ImmediateBps),
	)
	immediate.Div(immediate, uint256.NewInt(bpsDenominator))
	remainder := new(uint256.Int).Sub(sched.Total, immediate)
	elapsed := at.Sub(sched.Start)
	if elapsed >= sched.Duration {
		return new(uint256.Int).Set(sched.Total)
	}
	linear := new(uint256.Int).Mul(
		remainder,
		uint256.NewInt(uint64(elapsed)),
	)
	linear.Div(linear, uint256.NewInt(uint64(sched.Duration)))
	return immediate.Add(immediate, linear)
}

func copySchedule(sched *Schedule) *Schedule {
	cp := *sched
	cp.Total = new(uint256.Int).Set(sched.Total)
	cp.Released = new(uint256.Int).Set(sched.Released)
	return &cp
}
