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

package openpad

import (
	"io"
	"log/slog"
	"time"

	"github.com/openpad-io/openpad/amm"
	"github.com/openpad-io/openpad/asset"
	"github.com/openpad-io/openpad/database"
	"github.com/openpad-io/openpad/event"
	"github.com/openpad-io/openpad/lockup"
	"github.com/openpad-io/openpad/vesting"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultClaimWindow is the period after finalization during which
// purchased tokens remain claimable.
const DefaultClaimWindow = 90 * 24 * time.Hour

// Deployer confirms that an address is authorized to activate sales it
// deployed. Implemented by the factory.
type Deployer interface {
	Authorized(addr asset.Address) bool
}

type Config struct {
	logger        *slog.Logger
	promRegistry  prometheus.Registerer
	eventBus      *event.EventBus
	database      *database.Database
	router        amm.Router
	locker        *lockup.Vault
	vesting       *vesting.Ledger
	deployer      Deployer
	nativeAsset   asset.Asset
	feeRecipient  asset.Address
	houseFeeBps   uint64
	claimWindow   time.Duration
	nowFunc       func() time.Time
	tracing       bool
	tracingStdout bool
}

// ConfigOptionFunc is a type that represents functions that modify the engine config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new engine config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:      slog.New(slog.NewJSONHandler(io.Discard, nil)),
		claimWindow: DefaultClaimWindow,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithEventBus specifies a shared EventBus. Sales sharing a prometheus
// registry should also share a bus; the default is a private bus per sale
func WithEventBus(eventBus *event.EventBus) ConfigOptionFunc {
	return func(c *Config) {
		c.eventBus = eventBus
	}
}

// WithDatabase specifies the persistence database. The default is no
// persistence
func WithDatabase(db *database.Database) ConfigOptionFunc {
	return func(c *Config) {
		c.database = db
	}
}

// WithRouter specifies the AMM router used to seed liquidity at settlement
func WithRouter(router amm.Router) ConfigOptionFunc {
	return func(c *Config) {
		c.router = router
	}
}

// WithLiquidityLocker specifies the vault that custodies pool tokens after
// settlement
func WithLiquidityLocker(locker *lockup.Vault) ConfigOptionFunc {
	return func(c *Config) {
		c.locker = locker
	}
}

// WithVestingLedger specifies the vesting ledger for leftover-vest
// settlements
func WithVestingLedger(ledger *vesting.Ledger) ConfigOptionFunc {
	return func(c *Config) {
		c.vesting = ledger
	}
}

// WithDeployer specifies the deployer authorization check applied at
// deposit time
func WithDeployer(deployer Deployer) ConfigOptionFunc {
	return func(c *Config) {
		c.deployer = deployer
	}
}

// WithNativeAsset specifies the asset used when the sale currency is the
// native coin
func WithNativeAsset(native asset.Asset) ConfigOptionFunc {
	return func(c *Config) {
		c.nativeAsset = native
	}
}

// WithHouseFee specifies the platform fee in basis points and its recipient
func WithHouseFee(bps uint64, recipient asset.Address) ConfigOptionFunc {
	return func(c *Config) {
		c.houseFeeBps = bps
		c.feeRecipient = recipient
	}
}

// WithClaimWindow specifies the claim window applied at finalization. This
// defaults to DefaultClaimWindow
func WithClaimWindow(window time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.claimWindow = window
	}
}

// WithNowFunc overrides the engine clock, for tests
func WithNowFunc(nowFunc func() time.Time) ConfigOptionFunc {
	return func(c *Config) {
		c.nowFunc = nowFunc
	}
}

// WithTracing enables the OpenTelemetry trace provider
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout specifies a stdout trace exporter instead of OTLP
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}
