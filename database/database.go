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

// Package database provides sqlite-backed persistence for sale state,
// contributions, and the emitted event journal. Writes happen inline with
// engine mutations so a restart can restore every sale.
package database

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

var ErrSaleNotFound = errors.New("sale not found")

type Config struct {
	DataDir      string
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
}

// Database is a sqlite-backed store. Uses an in-memory database when no
// data directory is configured.
type Database struct {
	db     *gorm.DB
	logger *slog.Logger
}

func New(config *Config) (*Database, error) {
	if config == nil {
		config = &Config{}
	}
	var gormDb *gorm.DB
	var err error
	if config.DataDir == "" {
		// Use in-memory database when no data directory is specified, useful for testing
		// cache=shared allows multiple connections to share the same in-memory database
		gormDb, err = gorm.Open(
			sqlite.Open("file::memory:?cache=shared"),
			&gorm.Config{
				Logger:                 gormlogger.Discard,
				SkipDefaultTransaction: true,
			},
		)
		if err != nil {
			return nil, err
		}
	} else {
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(config.DataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(config.DataDir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		dbPath := filepath.Join(config.DataDir, "openpad.sqlite")
		// WAL journal mode, disable sync on write
		connOpts := "_pragma=journal_mode(WAL)&_pragma=sync(OFF)"
		gormDb, err = gorm.Open(
			sqlite.Open(fmt.Sprintf("file:%s?%s", dbPath, connOpts)),
			&gorm.Config{
				Logger:                 gormlogger.Discard,
				SkipDefaultTransaction: true,
			},
		)
		if err != nil {
			return nil, err
		}
	}
	d := &Database{
		db:     gormDb,
		logger: config.Logger,
	}
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	// Configure tracing for GORM
	if err := d.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	for _, model := range MigrateModels {
		d.logger.Debug(
			fmt.Sprintf("creating table: %#v", model),
			"component", "database",
		)
		if err := d.db.AutoMigrate(model); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// DB returns the underlying GORM database handle.
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Close shuts down the database connection.
func (d *Database) Close() error {
	db, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return db.Close()
}

// UpsertSale inserts or replaces the row for sale.SaleID.
func (d *Database) UpsertSale(sale *Sale) error {
	result := d.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "sale_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"owner",
			"token_symbol",
			"phase",
			"total_raised",
			"token_balance",
			"paused",
			"finalize_time",
			"claim_deadline",
			"updated_at",
		}),
	}).Create(sale)
	return result.Error
}

// GetSale returns the persisted row for the given sale id.
func (d *Database) GetSale(saleID string) (*Sale, error) {
	var sale Sale
	result := d.db.Where("sale_id = ?", saleID).First(&sale)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, result.Error
	}
	return &sale, nil
}

// ListSales returns all persisted sales.
func (d *Database) ListSales() ([]Sale, error) {
	var sales []Sale
	result := d.db.Order("id").Find(&sales)
	return sales, result.Error
}

// UpsertContribution inserts or replaces the cumulative contribution row
// for (saleID, address). A zero-amount upsert deletes the row, which is how
// refunds are persisted.
func (d *Database) UpsertContribution(
	saleID string,
	address string,
	amount string,
	claimed string,
) error {
	if amount == "0" || amount == "" {
		result := d.db.Where(
			"sale_id = ? AND address = ?",
			saleID,
			address,
		).Delete(&Contribution{})
		return result.Error
	}
	result := d.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "sale_id"},
			{Name: "address"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"amount",
			"claimed",
			"updated_at",
		}),
	}).Create(&Contribution{
		SaleID:  saleID,
		Address: address,
		Amount:  amount,
		Claimed: claimed,
	})
	return result.Error
}

// ListContributions returns all contribution rows for a sale.
func (d *Database) ListContributions(saleID string) ([]Contribution, error) {
	var contributions []Contribution
	result := d.db.Where("sale_id = ?", saleID).
		Order("id").
		Find(&contributions)
	return contributions, result.Error
}

// AppendEvent journals an emitted event for a sale.
func (d *Database) AppendEvent(record *EventRecord) error {
	result := d.db.Create(record)
	return result.Error
}

// ListEvents returns the journaled events for a sale in emission order.
func (d *Database) ListEvents(saleID string) ([]EventRecord, error) {
	var records []EventRecord
	result := d.db.Where("sale_id = ?", saleID).
		Order("id").
		Find(&records)
	return records, result.Error
}
