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
	"time"

	"github.com/openpad-io/openpad/event"
)

// Canonical event stream. Event payload amounts are decimal strings so the
// journaled form round-trips through JSON without precision loss.
const (
	ContributionEventType          event.EventType = "presale.contribution"
	PurchaseEventType              event.EventType = "presale.purchase"
	TokensDepositedEventType       event.EventType = "presale.tokens_deposited"
	FinalizedEventType             event.EventType = "presale.finalized"
	CanceledEventType              event.EventType = "presale.canceled"
	PausedEventType                event.EventType = "presale.paused"
	UnpausedEventType              event.EventType = "presale.unpaused"
	ClaimDeadlineExtendedEventType event.EventType = "presale.claim_deadline_extended"
	LeftoverTokensBurnedEventType  event.EventType = "presale.leftover_tokens_burned"
	LeftoverTokensVestedEventType  event.EventType = "presale.leftover_tokens_vested"
	TokensClaimedEventType         event.EventType = "presale.tokens_claimed"
	RefundedEventType              event.EventType = "presale.refunded"
	TokensRescuedEventType         event.EventType = "presale.tokens_rescued"
)

// ContributionEvent records an accepted contribution in the payment
// currency.
type ContributionEvent struct {
	SaleId      string `json:"saleId"`
	Contributor string `json:"contributor"`
	Amount      string `json:"amount"`
	Cumulative  string `json:"cumulative"`
	TotalRaised string `json:"totalRaised"`
}

// PurchaseEvent records the token allocation matching a contribution.
type PurchaseEvent struct {
	SaleId      string `json:"saleId"`
	Buyer       string `json:"buyer"`
	Amount      string `json:"amount"`
	TokenAmount string `json:"tokenAmount"`
}

type TokensDepositedEvent struct {
	SaleId string `json:"saleId"`
	Amount string `json:"amount"`
}

type FinalizedEvent struct {
	SaleId        string    `json:"saleId"`
	TotalRaised   string    `json:"totalRaised"`
	TokensSold    string    `json:"tokensSold"`
	Liquidity     string    `json:"liquidity"`
	ClaimDeadline time.Time `json:"claimDeadline"`
}

type CanceledEvent struct {
	SaleId string `json:"saleId"`
}

type PausedEvent struct {
	SaleId string `json:"saleId"`
}

type UnpausedEvent struct {
	SaleId string `json:"saleId"`
}

type ClaimDeadlineExtendedEvent struct {
	SaleId      string    `json:"saleId"`
	NewDeadline time.Time `json:"newDeadline"`
}

type LeftoverTokensBurnedEvent struct {
	SaleId string `json:"saleId"`
	Amount string `json:"amount"`
}

type LeftoverTokensVestedEvent struct {
	SaleId      string `json:"saleId"`
	Amount      string `json:"amount"`
	Beneficiary string `json:"beneficiary"`
}

type TokensClaimedEvent struct {
	SaleId  string `json:"saleId"`
	Claimer string `json:"claimer"`
	Amount  string `json:"amount"`
}

type RefundedEvent struct {
	SaleId      string `json:"saleId"`
	Contributor string `json:"contributor"`
	Amount      string `json:"amount"`
}

type TokensRescuedEvent struct {
	SaleId string `json:"saleId"`
	Symbol string `json:"symbol"`
	Amount string `json:"amount"`
	To     string `json:"to"`
}
