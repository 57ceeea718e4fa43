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

// Package factory deploys presale instances with shared collaborators.
// The locker, vesting ledger, router, and event bus are handed to each
// sale as explicit capabilities; the factory also carries the platform fee
// configuration applied at every settlement.
package factory

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/openpad-io/openpad"
	"github.com/openpad-io/openpad/amm"
	"github.com/openpad-io/openpad/asset"
	"github.com/openpad-io/openpad/database"
	"github.com/openpad-io/openpad/event"
	"github.com/openpad-io/openpad/lockup"
	"github.com/openpad-io/openpad/vesting"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrSaleNotFound = errors.New("sale not found")
	ErrMissingOwner = errors.New("sale owner required")
)

type Config struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	EventBus     *event.EventBus
	Database     *database.Database
	Router       amm.Router
	Locker       *lockup.Vault
	Vesting      *vesting.Ledger
	NativeAsset  asset.Asset
	FeeRecipient asset.Address
	HouseFeeBps  uint64
	ClaimWindow  time.Duration
	NowFunc      func() time.Time
}

// Factory constructs and tracks presale instances. It implements the
// deployer check consulted at deposit time.
type Factory struct {
	config  Config
	logger  *slog.Logger
	sales   map[string]*openpad.Presale
	owners  map[asset.Address]int
	metrics struct {
		salesDeployed prometheus.Counter
	}
	mu sync.RWMutex
}

func New(config Config) *Factory {
	f := &Factory{
		config: config,
		sales:  make(map[string]*openpad.Presale),
		owners: make(map[asset.Address]int),
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		f.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		f.logger = config.Logger
	}
	promautoFactory := promauto.With(config.PromRegistry)
	f.metrics.salesDeployed = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "openpad_sales_deployed_total",
			Help: "total sales deployed by the factory",
		},
	)
	return f
}

func (f *Factory) saleConfig() openpad.Config {
	opts := []openpad.ConfigOptionFunc{
		openpad.WithLogger(f.logger),
		openpad.WithPrometheusRegistry(f.config.PromRegistry),
		openpad.WithEventBus(f.config.EventBus),
		openpad.WithDatabase(f.config.Database),
		openpad.WithRouter(f.config.Router),
		openpad.WithLiquidityLocker(f.config.Locker),
		openpad.WithVestingLedger(f.config.Vesting),
		openpad.WithDeployer(f),
		openpad.WithNativeAsset(f.config.NativeAsset),
		openpad.WithHouseFee(f.config.HouseFeeBps, f.config.FeeRecipient),
	}
	if f.config.ClaimWindow > 0 {
		opts = append(opts, openpad.WithClaimWindow(f.config.ClaimWindow))
	}
	if f.config.NowFunc != nil {
		opts = append(opts, openpad.WithNowFunc(f.config.NowFunc))
	}
	return openpad.NewConfig(opts...)
}

// Deploy validates the options and constructs a new sale owned by owner.
func (f *Factory) Deploy(
	owner asset.Address,
	token asset.Asset,
	options openpad.PresaleOptions,
) (*openpad.Presale, error) {
	if owner == asset.ZeroAddress {
		return nil, ErrMissingOwner
	}
	sale, err := openpad.New(f.saleConfig(), owner, token, options)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.sales[sale.Id()] = sale
	f.owners[owner]++
	f.mu.Unlock()
	f.metrics.salesDeployed.Inc()
	f.logger.Info(
		"sale deployed",
		"component", "factory",
		"sale_id", sale.Id(),
		"owner", string(owner),
	)
	return sale, nil
}

// RestoreSale reconstructs a persisted sale. The immutable parameters are
// supplied by the caller; mutable state (phase, contributions, deadlines)
// is loaded from the database.
func (f *Factory) RestoreSale(
	saleId string,
	owner asset.Address,
	token asset.Asset,
	options openpad.PresaleOptions,
) (*openpad.Presale, error) {
	if f.config.Database == nil {
		return nil, database.ErrSaleNotFound
	}
	row, err := f.config.Database.GetSale(saleId)
	if err != nil {
		return nil, err
	}
	contribs, err := f.config.Database.ListContributions(saleId)
	if err != nil {
		return nil, err
	}
	sale, err := openpad.New(f.saleConfig(), owner, token, options)
	if err != nil {
		return nil, err
	}
	if err := sale.Restore(row, contribs); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.sales[sale.Id()] = sale
	f.owners[owner]++
	f.mu.Unlock()
	f.logger.Info(
		"sale restored",
		"component", "factory",
		"sale_id", sale.Id(),
		"phase", sale.Phase().String(),
	)
	return sale, nil
}

// Get returns a deployed sale by id.
func (f *Factory) Get(saleId string) (*openpad.Presale, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	sale, ok := f.sales[saleId]
	if !ok {
		return nil, ErrSaleNotFound
	}
	return sale, nil
}

// List returns all deployed sales.
func (f *Factory) List() []*openpad.Presale {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*openpad.Presale, 0, len(f.sales))
	for _, sale := range f.sales {
		out = append(out, sale)
	}
	return out
}

// Authorized reports whether addr owns a sale deployed by this factory.
// Consulted by sales when gating deposits.
func (f *Factory) Authorized(addr asset.Address) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.owners[addr] > 0
}
