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

package database

import (
	"time"
)

// MigrateModels contains a list of model objects that should have DB
// migrations applied
var MigrateModels = []any{
	&Sale{},
	&Contribution{},
	&EventRecord{},
}

// Sale is one persisted presale instance. Amounts are stored as decimal
// strings; they can exceed the range of any integer column type.
type Sale struct {
	SaleID        string `gorm:"uniqueIndex;size:36"`
	Owner         string `gorm:"index"`
	TokenSymbol   string
	Phase         string `gorm:"index"`
	TotalRaised   string
	TokenBalance  string
	Paused        bool
	FinalizeTime  time.Time
	ClaimDeadline time.Time
	ID            uint `gorm:"primarykey"`
	UpdatedAt     time.Time
}

func (Sale) TableName() string {
	return "sale"
}

// Contribution is the persisted cumulative contribution of one address to
// one sale.
type Contribution struct {
	SaleID    string `gorm:"uniqueIndex:idx_sale_address;size:36"`
	Address   string `gorm:"uniqueIndex:idx_sale_address"`
	Amount    string
	Claimed   string
	ID        uint `gorm:"primarykey"`
	UpdatedAt time.Time
}

func (Contribution) TableName() string {
	return "contribution"
}

// EventRecord journals one emitted event for a sale.
type EventRecord struct {
	SaleID    string `gorm:"index;size:36"`
	Type      string `gorm:"index"`
	Payload   string
	ID        uint `gorm:"primarykey"`
	Timestamp time.Time
}

func (EventRecord) TableName() string {
	return "event_record"
}
