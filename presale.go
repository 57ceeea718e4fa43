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

// Package openpad implements the token crowdsale lifecycle engine. A
// Presale runs the Pending, Active, Finalized/Canceled state machine,
// records contributions against caps and per-address limits, settles into
// AMM liquidity at finalization, and releases purchased tokens and refunds.
package openpad

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/openpad-io/openpad/asset"
	"github.com/openpad-io/openpad/database"
	"github.com/openpad-io/openpad/event"
	"github.com/openpad-io/openpad/ledger"
	"github.com/openpad-io/openpad/whitelist"
	"github.com/prometheus/client_golang/prometheus"
)

// Presale is one sale instance. Every fund-moving entry point runs under
// the non-reentrant guard; eligibility state is committed before any
// external transfer, so a re-entrant call observes post-mutation state.
type Presale struct {
	config   Config
	options  PresaleOptions
	id       string
	owner    asset.Address
	account  asset.Address
	token    asset.Asset
	currency asset.Asset
	native   bool
	verifier *whitelist.Verifier
	ledger   *ledger.Ledger
	eventBus *event.EventBus
	ownedBus bool
	logger   *slog.Logger
	guard    guard
	// stateMu protects the lifecycle fields below. It is never held across
	// an external call.
	stateMu         sync.RWMutex
	phase           Phase
	paused          bool
	tokenBalance    *uint256.Int
	tokensLiquidity *uint256.Int
	claimed         map[asset.Address]*uint256.Int
	finalizeTime    time.Time
	claimDeadline   time.Time
	lpLockId        string
	vestingId       string
	shutdownFuncs   []func(context.Context) error
	shutdownOnce    sync.Once
}

// New constructs a sale in the Pending phase. The owner must still call
// Deposit to escrow the token allocation before the sale can activate.
func New(
	cfg Config,
	owner asset.Address,
	token asset.Asset,
	options PresaleOptions,
) (*Presale, error) {
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sale options: %w", err)
	}
	if owner == asset.ZeroAddress {
		return nil, asset.ErrZeroAddress
	}
	if token == nil {
		return nil, ErrMissingToken
	}
	if cfg.router == nil {
		return nil, ErrMissingRouter
	}
	if cfg.locker == nil {
		return nil, ErrMissingLocker
	}
	if options.LeftoverTokenOption == LeftoverVest && cfg.vesting == nil {
		return nil, ErrMissingVesting
	}
	currency := options.Currency
	native := currency == nil
	if native {
		if cfg.nativeAsset == nil {
			return nil, ErrMissingCurrency
		}
		currency = cfg.nativeAsset
	}
	var verifier *whitelist.Verifier
	var err error
	switch options.WhitelistType {
	case whitelist.TypeMerkle:
		verifier, err = whitelist.NewMerkle(options.MerkleRoot)
	case whitelist.TypeNFT:
		verifier, err = whitelist.NewNFT(options.NFTContract)
	default:
		verifier = whitelist.NewNone()
	}
	if err != nil {
		return nil, err
	}
	saleId := uuid.NewString()
	// Per-sale metric label so multiple sales can share a registry
	var promRegistry prometheus.Registerer
	if cfg.promRegistry != nil {
		promRegistry = prometheus.WrapRegistererWith(
			prometheus.Labels{"sale_id": saleId},
			cfg.promRegistry,
		)
	}
	p := &Presale{
		config:   cfg,
		options:  options,
		id:       saleId,
		owner:    owner,
		account:  asset.Address("presale:" + saleId),
		token:    token,
		currency: currency,
		native:   native,
		verifier: verifier,
		logger:   cfg.logger,
		ledger: ledger.NewLedger(ledger.LedgerConfig{
			PromRegistry: promRegistry,
			Logger:       cfg.logger,
			Min:          options.Min,
			Max:          options.Max,
			HardCap:      options.HardCap,
		}),
		phase:           PhasePending,
		tokenBalance:    uint256.NewInt(0),
		tokensLiquidity: liquidityReserve(&options),
		claimed:         make(map[asset.Address]*uint256.Int),
	}
	if cfg.eventBus != nil {
		p.eventBus = cfg.eventBus
	} else {
		p.eventBus = event.NewEventBus(promRegistry, cfg.logger)
		p.ownedBus = true
	}
	if cfg.tracing {
		if err := p.setupTracing(); err != nil {
			return nil, err
		}
	}
	p.persistState()
	return p, nil
}

// liquidityReserve computes the token portion reserved for AMM seeding from
// the hard cap, so the reserve is sufficient for any raise.
func liquidityReserve(options *PresaleOptions) *uint256.Int {
	liqCurrency := new(uint256.Int).Mul(
		options.HardCap,
		uint256.NewInt(options.LiquidityBps),
	)
	liqCurrency.Div(liqCurrency, uint256.NewInt(bpsDenominator))
	return liqCurrency.Mul(liqCurrency, uint256.NewInt(options.ListingRate))
}

func (p *Presale) now() time.Time {
	if p.config.nowFunc != nil {
		return p.config.nowFunc()
	}
	return time.Now()
}

// Stop releases background resources (trace provider, owned event bus).
func (p *Presale) Stop(ctx context.Context) error {
	var err error
	p.shutdownOnce.Do(func() {
		for _, fn := range p.shutdownFuncs {
			if ferr := fn(ctx); ferr != nil && err == nil {
				err = ferr
			}
		}
		if p.ownedBus {
			p.eventBus.Stop()
		}
	})
	return err
}

// Id returns the sale identifier.
func (p *Presale) Id() string {
	return p.id
}

// Owner returns the sale owner address.
func (p *Presale) Owner() asset.Address {
	return p.owner
}

// Account returns the sale escrow account address.
func (p *Presale) Account() asset.Address {
	return p.account
}

// Token returns the sale token.
func (p *Presale) Token() asset.Asset {
	return p.token
}

// Currency returns the payment asset.
func (p *Presale) Currency() asset.Asset {
	return p.currency
}

// Options returns the immutable sale parameters.
func (p *Presale) Options() PresaleOptions {
	return p.options
}

// EventBus returns the bus carrying the sale's event stream.
func (p *Presale) EventBus() *event.EventBus {
	return p.eventBus
}

// Phase returns the current lifecycle phase.
func (p *Presale) Phase() Phase {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.phase
}

// Paused reports whether value movement is currently paused.
func (p *Presale) Paused() bool {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.paused
}

// TotalRaised returns the sum of all recorded contributions.
func (p *Presale) TotalRaised() *uint256.Int {
	return p.ledger.TotalRaised()
}

// Contribution returns the cumulative recorded contribution for addr.
func (p *Presale) Contribution(addr asset.Address) *uint256.Int {
	return p.ledger.Contribution(addr)
}

// ClaimedAmount returns the token amount already claimed by addr.
func (p *Presale) ClaimedAmount(addr asset.Address) *uint256.Int {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	if amt, ok := p.claimed[addr]; ok {
		return new(uint256.Int).Set(amt)
	}
	return uint256.NewInt(0)
}

// TokenBalance returns the sale's remaining escrowed token amount.
func (p *Presale) TokenBalance() *uint256.Int {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return new(uint256.Int).Set(p.tokenBalance)
}

// ClaimDeadline returns the claim deadline, zero before finalization.
func (p *Presale) ClaimDeadline() time.Time {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.claimDeadline
}

// Deposit escrows the full token allocation from the owner and arms the
// sale. Valid once, in the Pending phase, before the sale start.
func (p *Presale) Deposit(caller asset.Address) error {
	if err := p.guard.enter(); err != nil {
		return err
	}
	defer p.guard.exit()
	p.stateMu.RLock()
	phase := p.phase
	p.stateMu.RUnlock()
	if phase != PhasePending {
		return ErrAlreadyDeposited
	}
	if caller != p.owner {
		return ErrNotOwner
	}
	if p.config.deployer != nil && !p.config.deployer.Authorized(caller) {
		return ErrNotFactory
	}
	if !p.now().Before(p.options.Start) {
		return ErrDepositTooLate
	}
	if err := asset.MoveFrom(
		p.token,
		p.account,
		caller,
		p.account,
		p.options.TokenDeposit,
	); err != nil {
		return err
	}
	p.stateMu.Lock()
	p.tokenBalance = new(uint256.Int).Set(p.options.TokenDeposit)
	p.phase = PhaseActive
	p.stateMu.Unlock()
	p.persistState()
	p.emit(TokensDepositedEventType, TokensDepositedEvent{
		SaleId: p.id,
		Amount: p.options.TokenDeposit.Dec(),
	})
	p.logger.Info(
		"sale tokens deposited",
		"component", "presale",
		"sale_id", p.id,
		"amount", p.options.TokenDeposit.String(),
	)
	return nil
}

// Contribute records a contribution from payer and pulls the funds.
// payment names the asset the payer intends to pay with; nil means the
// native coin. The contribution is recorded before the fund pull, so a
// re-entrant call from a token callback observes the updated ledger and is
// stopped by the guard.
func (p *Presale) Contribute(
	payer asset.Address,
	payment asset.Asset,
	amount *uint256.Int,
	proof [][]byte,
) (*uint256.Int, error) {
	if err := p.guard.enter(); err != nil {
		return nil, err
	}
	defer p.guard.exit()
	p.stateMu.RLock()
	phase := p.phase
	paused := p.paused
	p.stateMu.RUnlock()
	if paused {
		return nil, ErrContractPaused
	}
	if phase != PhaseActive {
		return nil, ErrNotInPurchasePeriod
	}
	now := p.now()
	if now.Before(p.options.Start) || now.After(p.options.End) {
		return nil, ErrNotInPurchasePeriod
	}
	if err := p.checkCurrency(payment); err != nil {
		return nil, err
	}
	if err := p.verifier.Allowed(payer, proof); err != nil {
		return nil, err
	}
	cumulative, err := p.ledger.Record(payer, amount)
	if err != nil {
		return nil, err
	}
	if err := asset.MoveFrom(
		p.currency,
		p.account,
		payer,
		p.account,
		amount,
	); err != nil {
		p.ledger.Revert(payer, amount)
		return nil, err
	}
	p.persistContribution(payer)
	p.persistState()
	p.emit(ContributionEventType, ContributionEvent{
		SaleId:      p.id,
		Contributor: string(payer),
		Amount:      amount.Dec(),
		Cumulative:  cumulative.Dec(),
		TotalRaised: p.ledger.TotalRaised().Dec(),
	})
	tokens := new(uint256.Int).Mul(
		amount,
		uint256.NewInt(p.options.PresaleRate),
	)
	p.emit(PurchaseEventType, PurchaseEvent{
		SaleId:      p.id,
		Buyer:       string(payer),
		Amount:      amount.Dec(),
		TokenAmount: tokens.Dec(),
	})
	p.logger.Debug(
		"contribution accepted",
		"component", "presale",
		"sale_id", p.id,
		"payer", string(payer),
		"amount", amount.String(),
	)
	return cumulative, nil
}

func (p *Presale) checkCurrency(payment asset.Asset) error {
	if payment == nil {
		if !p.native {
			return ErrWrongCurrency
		}
		return nil
	}
	if payment.Symbol() != p.currency.Symbol() {
		return ErrWrongCurrency
	}
	return nil
}

// Restore loads persisted sale state. The options and collaborators must
// match those of the original instance; only mutable state is loaded.
func (p *Presale) Restore(
	row *database.Sale,
	contribs []database.Contribution,
) error {
	phase, err := phaseFromString(row.Phase)
	if err != nil {
		return err
	}
	tokenBalance, err := uint256.FromDecimal(row.TokenBalance)
	if err != nil {
		return fmt.Errorf("bad token balance %q: %w", row.TokenBalance, err)
	}
	for _, c := range contribs {
		amount, err := uint256.FromDecimal(c.Amount)
		if err != nil {
			return fmt.Errorf("bad contribution %q: %w", c.Amount, err)
		}
		if _, err := p.ledger.Record(asset.Address(c.Address), amount); err != nil {
			return fmt.Errorf("restore contribution: %w", err)
		}
		if c.Claimed != "" && c.Claimed != "0" {
			claimed, err := uint256.FromDecimal(c.Claimed)
			if err != nil {
				return fmt.Errorf("bad claimed amount %q: %w", c.Claimed, err)
			}
			p.claimed[asset.Address(c.Address)] = claimed
		}
	}
	wantRaised, err := uint256.FromDecimal(row.TotalRaised)
	if err != nil {
		return fmt.Errorf("bad total raised %q: %w", row.TotalRaised, err)
	}
	if !p.ledger.TotalRaised().Eq(wantRaised) {
		return fmt.Errorf(
			"%w: restored total %s does not match persisted %s",
			ErrInvariantViolation,
			p.ledger.TotalRaised(),
			wantRaised,
		)
	}
	p.stateMu.Lock()
	p.id = row.SaleID
	p.account = asset.Address("presale:" + row.SaleID)
	p.phase = phase
	p.paused = row.Paused
	p.tokenBalance = tokenBalance
	p.finalizeTime = row.FinalizeTime
	p.claimDeadline = row.ClaimDeadline
	p.stateMu.Unlock()
	return nil
}

func (p *Presale) persistState() {
	if p.config.database == nil {
		return
	}
	p.stateMu.RLock()
	row := &database.Sale{
		SaleID:        p.id,
		Owner:         string(p.owner),
		TokenSymbol:   p.token.Symbol(),
		Phase:         p.phase.String(),
		TotalRaised:   p.ledger.TotalRaised().Dec(),
		TokenBalance:  p.tokenBalance.Dec(),
		Paused:        p.paused,
		FinalizeTime:  p.finalizeTime,
		ClaimDeadline: p.claimDeadline,
		UpdatedAt:     p.now(),
	}
	p.stateMu.RUnlock()
	if err := p.config.database.UpsertSale(row); err != nil {
		p.logger.Error(
			"failed to persist sale state",
			"component", "presale",
			"sale_id", p.id,
			"error", err,
		)
	}
}

func (p *Presale) persistContribution(addr asset.Address) {
	if p.config.database == nil {
		return
	}
	claimed := "0"
	p.stateMu.RLock()
	if amt, ok := p.claimed[addr]; ok {
		claimed = amt.Dec()
	}
	p.stateMu.RUnlock()
	if err := p.config.database.UpsertContribution(
		p.id,
		string(addr),
		p.ledger.Contribution(addr).Dec(),
		claimed,
	); err != nil {
		p.logger.Error(
			"failed to persist contribution",
			"component", "presale",
			"sale_id", p.id,
			"address", string(addr),
			"error", err,
		)
	}
}

// emit publishes to the event bus and journals the event to the database.
func (p *Presale) emit(eventType event.EventType, data any) {
	evt := event.NewEvent(eventType, data)
	p.eventBus.Publish(eventType, evt)
	if p.config.database == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		p.logger.Error(
			"failed to encode event payload",
			"component", "presale",
			"sale_id", p.id,
			"type", string(eventType),
			"error", err,
		)
		return
	}
	if err := p.config.database.AppendEvent(&database.EventRecord{
		SaleID:    p.id,
		Type:      string(eventType),
		Payload:   string(payload),
		Timestamp: evt.Timestamp,
	}); err != nil {
		p.logger.Error(
			"failed to journal event",
			"component", "presale",
			"sale_id", p.id,
			"type", string(eventType),
			"error", err,
		)
	}
}
